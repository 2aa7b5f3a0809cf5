package evaluation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/banshee-data/drive.eval/internal/align"
	"github.com/banshee-data/drive.eval/internal/config"
	"github.com/banshee-data/drive.eval/internal/metrics"
	"github.com/banshee-data/drive.eval/internal/monitoring"
	"github.com/banshee-data/drive.eval/internal/recording"
	"github.com/banshee-data/drive.eval/internal/report"
)

// CompareOptions selects the odometry stream compared across runs.
type CompareOptions struct {
	Topic  string
	Fields config.OdometryFields
	// SampleRate of the stream in Hz, used for the Welch spectra.
	SampleRate float64
}

// CompareOptionsFromConfig reads CompareOptions from cfg.
func CompareOptionsFromConfig(cfg *config.EvalConfig) CompareOptions {
	return CompareOptions{
		Topic:      cfg.GetEstimateTopic(),
		Fields:     cfg.GetEstimateFields(),
		SampleRate: cfg.GetSampleRate(),
	}
}

// ColumnScores holds the similarity scores of one state column. A score is
// nil when it is undefined for the data, such as the correlation of a
// constant signal.
type ColumnScores struct {
	Cross   *float64 `json:"cross"`
	Pearson *float64 `json:"pearson"`
	KLD     *float64 `json:"kld"`
}

// Comparison scores one run against the reference run.
type Comparison struct {
	Recording string `json:"recording"`
	// StartIndex is the sample of this run nearest to the reference's first
	// position; the run is rotated to start there.
	StartIndex  int                     `json:"start_index"`
	PositionMSE float64                 `json:"position_mse"`
	Scores      map[string]ColumnScores `json:"scores"`
	// Series is the rotated run.
	Series StateSeries `json:"-"`
}

// ComparisonResult is the outcome of CompareStateEstimates.
type ComparisonResult struct {
	Reference   StateSeries  `json:"-"`
	Comparisons []Comparison `json:"comparisons"`
}

// Correlations returns the scores keyed by recording, then by column.
func (r ComparisonResult) Correlations() map[string]map[string]ColumnScores {
	out := make(map[string]map[string]ColumnScores, len(r.Comparisons))
	for _, c := range r.Comparisons {
		out[c.Recording] = c.Scores
	}
	return out
}

// Figures overlays x, y and vx of every run by sample index.
func (r ComparisonResult) Figures() []report.NamedFigure {
	runs := []StateSeries{r.Reference}
	for _, c := range r.Comparisons {
		runs = append(runs, c.Series)
	}
	fig := func(name, ylabel, col string) report.NamedFigure {
		f := report.Figure{Title: "SE Comparison", XLabel: "idx", YLabel: ylabel}
		for _, s := range runs {
			v := s.Column(col)
			f.Series = append(f.Series, report.Series{Label: s.Recording, X: sampleIndex(len(v)), Y: v})
		}
		return report.NamedFigure{Name: name, Figure: f}
	}
	return []report.NamedFigure{
		fig("se_comp_x", "pos x", ColumnPositionX),
		fig("se_comp_y", "pos y", ColumnPositionY),
		fig("se_comp_vel", "vel", ColumnVelocityX),
	}
}

// CompareStateEstimates scores every run in others against the reference
// run. Each run is first rotated to start at its sample nearest to the
// reference's first position. Position error, cross-correlation and Pearson
// correlation are computed against the rotated run; the spectral divergence
// uses the run as recorded.
func CompareStateEstimates(ctx context.Context, r recording.Reader, reference string, others []string, opts CompareOptions) (ComparisonResult, error) {
	topts := TrajectoryOptions{Topic: opts.Topic, Fields: opts.Fields}
	ref, err := ExtractTrajectory(ctx, r, reference, topts)
	if err != nil {
		return ComparisonResult{}, err
	}
	res := ComparisonResult{Reference: ref}
	for _, name := range others {
		if name == reference {
			continue
		}
		run, err := ExtractTrajectory(ctx, r, name, topts)
		if err != nil {
			return res, err
		}
		monitoring.Logf("comparing %s with %s", name, reference)
		res.Comparisons = append(res.Comparisons, compareRun(ref, run, opts.SampleRate))
	}
	return res, nil
}

func compareRun(ref, run StateSeries, fs float64) Comparison {
	pts := make([]align.Point2D, run.Len())
	for i := range pts {
		pts[i] = align.Point2D{X: run.X[i], Y: run.Y[i]}
	}
	start, _ := align.NewNearestIndex(pts).Nearest(ref.X[0], ref.Y[0])
	rolled := run.Rotate(start)

	c := Comparison{
		Recording:  run.Recording,
		StartIndex: start,
		Scores:     make(map[string]ColumnScores, len(StateColumns)),
		Series:     rolled,
	}
	c.PositionMSE, _ = metrics.PositionMSE(ref.X, ref.Y, rolled.X, rolled.Y)

	for _, col := range StateColumns {
		var sc ColumnScores
		if v, ok := metrics.CrossCorrelationMax(ref.Column(col), rolled.Column(col)); ok {
			sc.Cross = &v
		}
		if v, ok := metrics.Pearson(ref.Column(col), rolled.Column(col)); ok {
			sc.Pearson = &v
		}
		if v, ok := metrics.SpectralKLD(ref.Column(col), run.Column(col), fs); ok {
			sc.KLD = &v
		}
		c.Scores[col] = sc
	}
	monitoring.Debugf("%s: start index %d, position MSE %.4f", run.Recording, start, c.PositionMSE)
	return c
}

func sampleIndex(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

// ParseReference resolves a reference given as a recording name or as an
// index into names.
func ParseReference(ref string, names []string) (string, error) {
	for _, n := range names {
		if n == ref {
			return n, nil
		}
	}
	if i, err := strconv.Atoi(ref); err == nil && i >= 0 && i < len(names) {
		return names[i], nil
	}
	return "", fmt.Errorf("reference %q is neither a listed recording nor an index below %d", ref, len(names))
}
