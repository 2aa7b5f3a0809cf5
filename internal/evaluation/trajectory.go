package evaluation

import (
	"context"
	"fmt"

	"github.com/banshee-data/drive.eval/internal/config"
	"github.com/banshee-data/drive.eval/internal/recording"
	"github.com/banshee-data/drive.eval/internal/report"
)

// State columns, as named in tables and comparison output.
const (
	ColumnPositionX = "position_x"
	ColumnPositionY = "position_y"
	ColumnVelocityX = "velocity_x"
	ColumnVelocityY = "velocity_y"
	ColumnYaw       = "yaw"
	ColumnYawRate   = "vyaw"
)

// StateColumns lists the state columns in output order.
var StateColumns = []string{ColumnPositionX, ColumnPositionY, ColumnVelocityX, ColumnVelocityY, ColumnYaw, ColumnYawRate}

// StateSeries is the odometry of one recording as parallel columns. Time is
// in seconds since the first message on the topic.
type StateSeries struct {
	Recording string
	Time      []float64
	X, Y      []float64
	VX, VY    []float64
	Yaw       []float64
	YawRate   []float64
}

// Len returns the number of samples.
func (s StateSeries) Len() int { return len(s.Time) }

// Column returns the named state column, or nil.
func (s StateSeries) Column(name string) []float64 {
	switch name {
	case ColumnPositionX:
		return s.X
	case ColumnPositionY:
		return s.Y
	case ColumnVelocityX:
		return s.VX
	case ColumnVelocityY:
		return s.VY
	case ColumnYaw:
		return s.Yaw
	case ColumnYawRate:
		return s.YawRate
	}
	return nil
}

// Rotate returns a copy whose samples start at index start and wrap around
// to the beginning.
func (s StateSeries) Rotate(start int) StateSeries {
	rot := func(v []float64) []float64 {
		if len(v) == 0 {
			return nil
		}
		k := ((start % len(v)) + len(v)) % len(v)
		out := make([]float64, 0, len(v))
		out = append(out, v[k:]...)
		return append(out, v[:k]...)
	}
	return StateSeries{
		Recording: s.Recording,
		Time:      rot(s.Time),
		X:         rot(s.X),
		Y:         rot(s.Y),
		VX:        rot(s.VX),
		VY:        rot(s.VY),
		Yaw:       rot(s.Yaw),
		YawRate:   rot(s.YawRate),
	}
}

// Table returns the series as a time plus state-column table.
func (s StateSeries) Table() *report.Table {
	t := report.NewTable(append([]string{"time"}, StateColumns...)...)
	for i := range s.Time {
		_ = t.Append(s.Time[i], s.X[i], s.Y[i], s.VX[i], s.VY[i], s.Yaw[i], s.YawRate[i])
	}
	return t
}

// TrajectoryOptions selects the odometry stream and the time window of a
// trajectory extraction.
type TrajectoryOptions struct {
	Topic  string
	Fields config.OdometryFields
	// StartOffset drops samples earlier than this many seconds after the
	// first message.
	StartOffset float64
	// MaxTime drops samples later than this many seconds after the first
	// message. Zero keeps everything.
	MaxTime float64
	// Relative subtracts the position of the last dropped sample (or the
	// first sample when none was dropped) from every kept position.
	Relative bool
}

// TrajectoryOptionsFromConfig reads TrajectoryOptions from cfg.
func TrajectoryOptionsFromConfig(cfg *config.EvalConfig) TrajectoryOptions {
	return TrajectoryOptions{
		Topic:       cfg.GetEstimateTopic(),
		Fields:      cfg.GetEstimateFields(),
		StartOffset: cfg.GetStartOffset(),
		MaxTime:     cfg.GetMaxTime(),
	}
}

// ExtractTrajectory reads the odometry of rec into a StateSeries.
func ExtractTrajectory(ctx context.Context, r recording.Reader, rec string, opts TrajectoryOptions) (StateSeries, error) {
	s := StateSeries{Recording: rec}
	var (
		start    float64
		started  bool
		originX  float64
		originY  float64
		anchored bool
	)
	err := r.Messages(ctx, rec, []string{opts.Topic}, func(m recording.Message) error {
		o, err := decodeOdometry(m, opts.Fields, true)
		if err != nil {
			return err
		}
		if !started {
			start, started = m.Timestamp, true
		}
		rel := m.Timestamp - start
		if rel < opts.StartOffset {
			originX, originY, anchored = o.X, o.Y, true
			return nil
		}
		if opts.MaxTime > 0 && rel > opts.MaxTime {
			return nil
		}
		if !anchored {
			originX, originY, anchored = o.X, o.Y, true
		}
		if opts.Relative {
			o.X -= originX
			o.Y -= originY
		}
		s.Time = append(s.Time, rel)
		s.X = append(s.X, o.X)
		s.Y = append(s.Y, o.Y)
		s.VX = append(s.VX, o.VX)
		s.VY = append(s.VY, o.VY)
		s.Yaw = append(s.Yaw, o.Yaw)
		s.YawRate = append(s.YawRate, o.YawRate)
		return nil
	})
	if err != nil {
		return s, fmt.Errorf("extract trajectory from %s: %w", rec, err)
	}
	if s.Len() == 0 {
		return s, fmt.Errorf("%w: no %s messages in %s after %.1fs", ErrNoData, opts.Topic, rec, opts.StartOffset)
	}
	return s, nil
}

// TrajectoryFigures overlays the trajectories and state columns of several
// recordings.
func TrajectoryFigures(series []StateSeries) []report.NamedFigure {
	xy := report.Figure{Title: "trajectory", XLabel: "x [m]", YLabel: "y [m]", Equal: true}
	for _, s := range series {
		xy.Series = append(xy.Series, report.Series{Label: s.Recording, X: s.X, Y: s.Y})
	}
	over := func(name, ylabel, col string) report.NamedFigure {
		f := report.Figure{Title: ylabel, XLabel: "Time [s]", YLabel: ylabel}
		for _, s := range series {
			f.Series = append(f.Series, report.Series{Label: s.Recording, X: s.Time, Y: s.Column(col)})
		}
		return report.NamedFigure{Name: name, Figure: f}
	}
	return []report.NamedFigure{
		{Name: "trajectory", Figure: xy},
		over("positionx", "x [m]", ColumnPositionX),
		over("positiony", "y [m]", ColumnPositionY),
		over("velocityx", "vx [m/s]", ColumnVelocityX),
		over("velocityy", "vy [m/s]", ColumnVelocityY),
		over("yaw", "yaw [rad]", ColumnYaw),
		over("yawdot", "Angular velocity z [rad/s]", ColumnYawRate),
	}
}

// ExtractFields reads the numbers at each dotted path of every message on
// topic into a table with a leading time column, in seconds since the first
// message. Samples earlier than startOffset are dropped.
func ExtractFields(ctx context.Context, r recording.Reader, rec, topic string, fields []string, startOffset float64) (*report.Table, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("extract fields from %s: no fields given", rec)
	}
	t := report.NewTable(append([]string{"time"}, fields...)...)
	if len(t.Names()) != len(fields)+1 {
		return nil, fmt.Errorf("extract fields from %s: repeated field or field named time", rec)
	}
	var start float64
	started := false
	row := make([]float64, len(fields)+1)
	err := r.Messages(ctx, rec, []string{topic}, func(m recording.Message) error {
		if !started {
			start, started = m.Timestamp, true
		}
		rel := m.Timestamp - start
		if rel < startOffset {
			return nil
		}
		row[0] = rel
		for i, f := range fields {
			v, err := m.Float(f)
			if err != nil {
				return err
			}
			row[i+1] = v
		}
		return t.Append(row...)
	})
	if err != nil {
		return nil, fmt.Errorf("extract fields from %s: %w", rec, err)
	}
	if t.Len() == 0 {
		return nil, fmt.Errorf("%w: no %s messages in %s", ErrNoData, topic, rec)
	}
	return t, nil
}

// FieldFigures plots every non-time column of the tables against time, one
// figure per field with one series per recording.
func FieldFigures(recordings []string, tables []*report.Table) []report.NamedFigure {
	if len(tables) == 0 {
		return nil
	}
	var out []report.NamedFigure
	for _, field := range tables[0].Names()[1:] {
		f := report.Figure{Title: field, XLabel: "Time [s]", YLabel: field}
		for i, t := range tables {
			f.Series = append(f.Series, report.Series{Label: recordings[i], X: t.Column("time"), Y: t.Column(field)})
		}
		out = append(out, report.NamedFigure{Name: field, Figure: f})
	}
	return out
}
