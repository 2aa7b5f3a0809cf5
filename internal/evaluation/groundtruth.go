package evaluation

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/drive.eval/internal/align"
	"github.com/banshee-data/drive.eval/internal/config"
	"github.com/banshee-data/drive.eval/internal/metrics"
	"github.com/banshee-data/drive.eval/internal/monitoring"
	"github.com/banshee-data/drive.eval/internal/recording"
	"github.com/banshee-data/drive.eval/internal/report"
	"github.com/banshee-data/drive.eval/internal/timesync"
)

// Channels reported by EvaluateGroundTruth, in output order.
const (
	ChannelX       = "x"
	ChannelY       = "y"
	ChannelVX      = "vx"
	ChannelVY      = "vy"
	ChannelYaw     = "yaw"
	ChannelYawRate = "yaw_rate"
)

var channelLabels = map[string]string{
	ChannelX:       "x",
	ChannelY:       "y",
	ChannelVX:      "vx",
	ChannelVY:      "vy",
	ChannelYaw:     "yaw",
	ChannelYawRate: "angular velocity",
}

// GroundTruthOptions selects the streams and processing of a ground-truth
// evaluation.
type GroundTruthOptions struct {
	EstimateTopic  string
	EstimateFields config.OdometryFields

	GroundTruthTopic  string
	GroundTruthKind   string // config.GroundTruthOdometry or config.GroundTruthPose
	GroundTruthFields config.OdometryFields

	// VelocityAlpha weighs the newest finite-difference velocity in the
	// exponential smoothing of pose-only ground truth.
	VelocityAlpha float64
	// Normalize subtracts the first matched pose from both streams.
	Normalize bool

	Sync timesync.Config
}

// GroundTruthOptionsFromConfig reads GroundTruthOptions from cfg.
func GroundTruthOptionsFromConfig(cfg *config.EvalConfig) (GroundTruthOptions, error) {
	sync, err := SyncConfig(cfg)
	if err != nil {
		return GroundTruthOptions{}, err
	}
	return GroundTruthOptions{
		EstimateTopic:     cfg.GetEstimateTopic(),
		EstimateFields:    cfg.GetEstimateFields(),
		GroundTruthTopic:  cfg.GetGroundTruthTopic(),
		GroundTruthKind:   cfg.GetGroundTruthKind(),
		GroundTruthFields: cfg.GetGroundTruthFields(),
		VelocityAlpha:     cfg.GetVelocityAlpha(),
		Normalize:         cfg.GetNormalize(),
		Sync:              sync,
	}, nil
}

// ChannelError is the root mean squared error of one channel, truncated to
// four decimals.
type ChannelError struct {
	Channel string  `json:"channel"`
	RMSE    float64 `json:"rmse"`
}

// GroundTruthResult is the outcome of EvaluateGroundTruth.
type GroundTruthResult struct {
	Recording string         `json:"recording"`
	Errors    []ChannelError `json:"errors"`
	// Samples is the number of estimate messages paired with ground truth.
	Samples int `json:"samples"`
	// Skipped counts estimate messages with no usable ground-truth match.
	Skipped int `json:"skipped"`
	// TotalTimeDrift sums |ground truth time - estimate time| over all pairs.
	TotalTimeDrift float64 `json:"total_time_drift"`
	// Table holds time and each channel as estimate and gt_ columns.
	Table *report.Table `json:"-"`
}

// RMSE returns the error of channel.
func (r GroundTruthResult) RMSE(channel string) (float64, bool) {
	for _, e := range r.Errors {
		if e.Channel == channel {
			return e.RMSE, true
		}
	}
	return 0, false
}

// Metrics lists the errors as text summary lines.
func (r GroundTruthResult) Metrics() []report.Metric {
	out := make([]report.Metric, 0, len(r.Errors)+2)
	for _, e := range r.Errors {
		out = append(out, report.Metric{Label: "Root Mean Squared Error in " + channelLabels[e.Channel], Value: e.RMSE})
	}
	out = append(out,
		report.Metric{Label: "Number of samples", Value: float64(r.Samples)},
		report.Metric{Label: "Total time drift", Value: r.TotalTimeDrift},
	)
	return out
}

// Figures plots each channel of estimate and ground truth against time since
// the first pair.
func (r GroundTruthResult) Figures() []report.NamedFigure {
	if r.Table == nil || r.Table.Len() == 0 {
		return nil
	}
	t := relativeTime(r.Table.Column("time"))
	fig := func(name, ylabel, col string) report.NamedFigure {
		return report.NamedFigure{Name: name, Figure: report.Figure{
			Title:  r.Recording + " " + ylabel,
			XLabel: "Time [s]",
			YLabel: ylabel,
			Series: []report.Series{
				{Label: "car odom", X: t, Y: r.Table.Column(col)},
				{Label: "gt", X: t, Y: r.Table.Column("gt_" + col)},
			},
		}}
	}
	return []report.NamedFigure{
		fig("positionx", "x [m]", ChannelX),
		fig("positiony", "y [m]", ChannelY),
		fig("velocityx", "vx [m/s]", ChannelVX),
		fig("velocityy", "vy [m/s]", ChannelVY),
		fig("yaw", "yaw [rad]", ChannelYaw),
		fig("yawdot", "Angular velocity z [rad/s]", ChannelYawRate),
	}
}

// EvaluateGroundTruth pairs every estimate message of rec with the nearest
// ground-truth sample and scores x, y, vx, vy, yaw and yaw rate.
//
// Ground truth of kind pose carries no velocities: they are the finite
// difference to the previous ground-truth sample, rotated into the body
// frame and smoothed exponentially with VelocityAlpha. A match on the first
// ground-truth sample has no predecessor and is skipped in both modes.
func EvaluateGroundTruth(ctx context.Context, r recording.Reader, rec string, opts GroundTruthOptions) (GroundTruthResult, error) {
	res := GroundTruthResult{Recording: rec}
	poseOnly := opts.GroundTruthKind == config.GroundTruthPose

	gtBuf, err := loadOdometry(ctx, r, rec, opts.GroundTruthTopic, opts.GroundTruthFields, !poseOnly)
	if err != nil {
		return res, err
	}
	sync, err := timesync.NewSynchronizer(gtBuf, opts.Sync)
	if err != nil {
		return res, err
	}
	monitoring.Logf("evaluating %s: %d ground-truth samples on %s", rec, gtBuf.Len(), opts.GroundTruthTopic)

	var (
		errs        [6]metrics.SquaredError
		estInit     Odometry
		gtInit      Odometry
		initialised bool
		emaVX       float64
		emaVY       float64
		emaSeeded   bool
		rows        [][13]float64
	)
	err = r.Messages(ctx, rec, []string{opts.EstimateTopic}, func(m recording.Message) error {
		est, err := decodeOdometry(m, opts.EstimateFields, true)
		if err != nil {
			return err
		}
		match, ok := sync.Lookup(m.Timestamp)
		if !ok || match.Index == 0 {
			res.Skipped++
			monitoring.Debugf("no ground truth at %.3f", m.Timestamp)
			return nil
		}
		gt := match.Sample.Value

		if poseOnly {
			prev := gtBuf.At(match.Index - 1)
			dt := match.Sample.Timestamp - prev.Timestamp
			if dt <= 0 {
				res.Skipped++
				monitoring.Debugf("repeated ground-truth stamp at %.3f", match.Sample.Timestamp)
				return nil
			}
			vxg := (gt.X - prev.Value.X) / dt
			vyg := (gt.Y - prev.Value.Y) / dt
			sin, cos := math.Sincos(gt.Yaw)
			vx := vxg*cos + vyg*sin
			vy := -vxg*sin + vyg*cos
			if !emaSeeded {
				emaVX, emaVY, emaSeeded = vx, vy, true
			} else {
				emaVX = opts.VelocityAlpha*vx + (1-opts.VelocityAlpha)*emaVX
				emaVY = opts.VelocityAlpha*vy + (1-opts.VelocityAlpha)*emaVY
			}
			gt.VX, gt.VY = emaVX, emaVY
			gt.YawRate = align.WrapAngle(gt.Yaw-prev.Value.Yaw) / dt
		}

		if !initialised {
			if opts.Normalize {
				estInit, gtInit = est, gt
			}
			initialised = true
		}

		x, y, yaw := est.X-estInit.X, est.Y-estInit.Y, est.Yaw-estInit.Yaw
		gx, gy, gyaw := gt.X-gtInit.X, gt.Y-gtInit.Y, gt.Yaw-gtInit.Yaw

		errs[0].Add(x, gx)
		errs[1].Add(y, gy)
		errs[2].Add(est.VX, gt.VX)
		errs[3].Add(est.VY, gt.VY)
		errs[4].Add(align.WrapAngle(yaw-gyaw), 0)
		errs[5].Add(est.YawRate, gt.YawRate)

		res.TotalTimeDrift += match.Delta
		rows = append(rows, [13]float64{
			m.Timestamp,
			x, gx, y, gy,
			est.VX, gt.VX, est.VY, gt.VY,
			yaw, gyaw, est.YawRate, gt.YawRate,
		})
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("evaluate %s: %w", rec, err)
	}
	if len(rows) == 0 {
		return res, fmt.Errorf("%w: no estimate on %s matched ground truth on %s in %s",
			ErrNoData, opts.EstimateTopic, opts.GroundTruthTopic, rec)
	}
	res.Samples = len(rows)

	for i, ch := range []string{ChannelX, ChannelY, ChannelVX, ChannelVY, ChannelYaw, ChannelYawRate} {
		rmse, _ := errs[i].RMSE()
		res.Errors = append(res.Errors, ChannelError{Channel: ch, RMSE: rmse})
	}
	res.Table = groundTruthTable(rows)
	monitoring.Logf("%s: %d pairs, %d skipped, drift %.4fs", rec, res.Samples, res.Skipped, res.TotalTimeDrift)
	return res, nil
}

// groundTruthTable builds the time series with both yaw columns unwrapped.
func groundTruthTable(rows [][13]float64) *report.Table {
	yaw := make([]float64, len(rows))
	gyaw := make([]float64, len(rows))
	for i, row := range rows {
		yaw[i], gyaw[i] = row[9], row[10]
	}
	metrics.Unwrap(yaw)
	metrics.Unwrap(gyaw)

	t := report.NewTable("time",
		ChannelX, "gt_"+ChannelX, ChannelY, "gt_"+ChannelY,
		ChannelVX, "gt_"+ChannelVX, ChannelVY, "gt_"+ChannelVY,
		ChannelYaw, "gt_"+ChannelYaw, ChannelYawRate, "gt_"+ChannelYawRate)
	for i, row := range rows {
		row[9], row[10] = yaw[i], gyaw[i]
		_ = t.Append(row[:]...)
	}
	return t
}

// relativeTime returns t shifted so that it starts at zero.
func relativeTime(t []float64) []float64 {
	out := make([]float64, len(t))
	if len(t) == 0 {
		return out
	}
	for i, v := range t {
		out[i] = v - t[0]
	}
	return out
}
