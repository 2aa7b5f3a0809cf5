package evaluation

import (
	"context"
	"fmt"

	"github.com/banshee-data/drive.eval/internal/config"
	"github.com/banshee-data/drive.eval/internal/metrics"
	"github.com/banshee-data/drive.eval/internal/monitoring"
	"github.com/banshee-data/drive.eval/internal/recording"
	"github.com/banshee-data/drive.eval/internal/report"
)

// RollingMeanOptions selects the field whose steadiness is measured.
type RollingMeanOptions struct {
	Topic string
	Field string
	// StartOffset drops samples earlier than this many seconds after the
	// first message.
	StartOffset float64
	// Window is the forward averaging window in seconds.
	Window float64
}

// RollingMeanOptionsFromConfig reads RollingMeanOptions from cfg.
func RollingMeanOptionsFromConfig(cfg *config.EvalConfig) RollingMeanOptions {
	return RollingMeanOptions{
		Topic:       cfg.GetEstimateTopic(),
		Field:       cfg.GetEstimateFields().VX,
		StartOffset: cfg.GetStartOffset(),
		Window:      cfg.GetMeanWindow(),
	}
}

// RollingMeanResult is the outcome of RollingMeanEvaluation.
type RollingMeanResult struct {
	Recording string `json:"recording"`
	// MeanAbsDeviation is the mean of |value - forward mean|.
	MeanAbsDeviation float64       `json:"var"`
	Samples          int           `json:"samples"`
	Table            *report.Table `json:"-"` // time, value, mean
}

// Metrics lists the deviation as a text summary line.
func (r RollingMeanResult) Metrics() []report.Metric {
	return []report.Metric{{Label: "Var", Value: r.MeanAbsDeviation}}
}

// RollingMeanFigures plots the values of every result with its forward mean
// dashed.
func RollingMeanFigures(name, ylabel string, results []RollingMeanResult) []report.NamedFigure {
	f := report.Figure{Title: ylabel, XLabel: "Time [s]", YLabel: ylabel}
	for _, r := range results {
		t := r.Table.Column("time")
		f.Series = append(f.Series,
			report.Series{Label: r.Recording, X: t, Y: r.Table.Column("value")},
			report.Series{Label: r.Recording + " mean", X: t, Y: r.Table.Column("mean"), Dashed: true},
		)
	}
	return []report.NamedFigure{{Name: name, Figure: f}}
}

// RollingMeanEvaluation measures how far a field strays from its forward
// mean over a fixed time window.
func RollingMeanEvaluation(ctx context.Context, r recording.Reader, rec string, opts RollingMeanOptions) (RollingMeanResult, error) {
	res := RollingMeanResult{Recording: rec}
	tbl, err := ExtractFields(ctx, r, rec, opts.Topic, []string{opts.Field}, opts.StartOffset)
	if err != nil {
		return res, err
	}
	t, v := tbl.Column("time"), tbl.Column(opts.Field)
	mean := metrics.ForwardMean(t, v, opts.Window)
	dev, ok := metrics.MeanAbsDeviation(v, mean)
	if !ok {
		return res, fmt.Errorf("%w: no %s samples in %s", ErrNoData, opts.Field, rec)
	}

	res.MeanAbsDeviation = dev
	res.Samples = len(v)
	res.Table = report.NewTable("time", "value", "mean")
	for i := range t {
		_ = res.Table.Append(t[i], v[i], mean[i])
	}
	monitoring.Logf("%s: mean absolute deviation from %.1fs mean of %s is %.4f", rec, opts.Window, opts.Field, dev)
	return res, nil
}
