package evaluation

import (
	"context"
	"fmt"

	"github.com/banshee-data/drive.eval/internal/config"
	"github.com/banshee-data/drive.eval/internal/metrics"
	"github.com/banshee-data/drive.eval/internal/monitoring"
	"github.com/banshee-data/drive.eval/internal/recording"
	"github.com/banshee-data/drive.eval/internal/report"
	"github.com/banshee-data/drive.eval/internal/timesync"
)

// CommandOptions selects one estimated field and the commanded field it
// should track.
type CommandOptions struct {
	EstimateTopic string
	EstimateField string
	CommandTopic  string
	CommandField  string
	Sync          timesync.Config
}

// CommandOptionsFromConfig reads CommandOptions from cfg.
func CommandOptionsFromConfig(cfg *config.EvalConfig) (CommandOptions, error) {
	sync, err := SyncConfig(cfg)
	if err != nil {
		return CommandOptions{}, err
	}
	return CommandOptions{
		EstimateTopic: cfg.GetEstimateTopic(),
		EstimateField: cfg.GetEstimateField(),
		CommandTopic:  cfg.GetCommandTopic(),
		CommandField:  cfg.GetCommandField(),
		Sync:          sync,
	}, nil
}

// CommandResult is the outcome of EvaluateCommand.
type CommandResult struct {
	Recording      string        `json:"recording"`
	RMSE           float64       `json:"rmse"`
	Samples        int           `json:"samples"`
	Skipped        int           `json:"skipped"`
	TotalTimeDrift float64       `json:"total_time_drift"`
	Table          *report.Table `json:"-"` // time, estimate, command
}

// Metrics lists the error as text summary lines.
func (r CommandResult) Metrics() []report.Metric {
	return []report.Metric{
		{Label: "Root Mean Squared Error", Value: r.RMSE},
		{Label: "Number of samples", Value: float64(r.Samples)},
	}
}

// Figures plots estimate and command against time since the first pair.
func (r CommandResult) Figures(ylabel string) []report.NamedFigure {
	if r.Table == nil || r.Table.Len() == 0 {
		return nil
	}
	t := relativeTime(r.Table.Column("time"))
	return []report.NamedFigure{{Name: "command", Figure: report.Figure{
		Title:  r.Recording,
		XLabel: "Time [s]",
		YLabel: ylabel,
		Series: []report.Series{
			{Label: "estimate", X: t, Y: r.Table.Column("estimate")},
			{Label: "gt", X: t, Y: r.Table.Column("command")},
		},
	}}}
}

// EvaluateCommand pairs every estimate message of rec with the nearest
// command and scores the difference of the two configured fields.
func EvaluateCommand(ctx context.Context, r recording.Reader, rec string, opts CommandOptions) (CommandResult, error) {
	res := CommandResult{Recording: rec}
	cmdBuf, err := loadScalar(ctx, r, rec, opts.CommandTopic, opts.CommandField)
	if err != nil {
		return res, err
	}
	sync, err := timesync.NewSynchronizer(cmdBuf, opts.Sync)
	if err != nil {
		return res, err
	}

	var sq metrics.SquaredError
	table := report.NewTable("time", "estimate", "command")
	err = r.Messages(ctx, rec, []string{opts.EstimateTopic}, func(m recording.Message) error {
		match, ok := sync.Lookup(m.Timestamp)
		if !ok || match.Index == 0 {
			res.Skipped++
			return nil
		}
		est, err := m.Float(opts.EstimateField)
		if err != nil {
			return err
		}
		sq.Add(est, match.Sample.Value)
		res.TotalTimeDrift += match.Delta
		return table.Append(m.Timestamp, est, match.Sample.Value)
	})
	if err != nil {
		return res, fmt.Errorf("evaluate %s: %w", rec, err)
	}
	rmse, ok := sq.RMSE()
	if !ok {
		return res, fmt.Errorf("%w: no estimate on %s matched a command on %s in %s",
			ErrNoData, opts.EstimateTopic, opts.CommandTopic, rec)
	}
	res.RMSE = rmse
	res.Samples = sq.Len()
	res.Table = table
	monitoring.Logf("%s: command RMSE %.4f over %d samples (%d skipped)", rec, res.RMSE, res.Samples, res.Skipped)
	return res, nil
}
