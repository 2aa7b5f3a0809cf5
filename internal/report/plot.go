package report

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// ErrEmptyFigure is returned when a figure has no plottable series.
var ErrEmptyFigure = errors.New("figure has no data")

// Series is one labelled line of a figure.
type Series struct {
	Label  string
	X, Y   []float64
	Dashed bool
}

// Figure is a line plot with one or more series.
type Figure struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series
	// YRange fixes the Y axis when both bounds are set and Min < Max.
	YRange *Range
	// Equal makes both axes share one scale, for X/Y trajectory plots.
	Equal bool
}

// Range is a closed axis interval.
type Range struct {
	Min, Max float64
}

// PlotFormats lists the extensions SavePlot accepts.
var PlotFormats = []string{"pdf", "png", "svg"}

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 10 * vg.Inch
)

// SavePlot renders fig to path. The format follows the extension.
func SavePlot(fig Figure, path string) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !validFormat(ext) {
		return fmt.Errorf("save plot %s: unsupported format %q (want one of %v)", path, ext, PlotFormats)
	}

	p := plot.New()
	p.Title.Text = fig.Title
	p.X.Label.Text = fig.XLabel
	p.Y.Label.Text = fig.YLabel
	p.Add(plotter.NewGrid())

	colors := seriesColors(len(fig.Series))
	lines := 0
	for i, s := range fig.Series {
		n := min(len(s.X), len(s.Y))
		if n == 0 {
			continue
		}
		pts := make(plotter.XYs, n)
		for j := 0; j < n; j++ {
			pts[j] = plotter.XY{X: s.X[j], Y: s.Y[j]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("series %q: %w", s.Label, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1.5)
		if s.Dashed {
			line.Dashes = plotutil.Dashes(1)
		}
		p.Add(line)
		if s.Label != "" {
			p.Legend.Add(s.Label, line)
		}
		lines++
	}
	if lines == 0 {
		return fmt.Errorf("save plot %s: %w", path, ErrEmptyFigure)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if r := fig.YRange; r != nil && r.Min < r.Max {
		p.Y.Min, p.Y.Max = r.Min, r.Max
	}
	if fig.Equal {
		equalAxes(p)
	}

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}

// equalAxes widens the narrower axis so both span the same distance.
func equalAxes(p *plot.Plot) {
	dx, dy := p.X.Max-p.X.Min, p.Y.Max-p.Y.Min
	if dx > dy {
		c := (p.Y.Max + p.Y.Min) / 2
		p.Y.Min, p.Y.Max = c-dx/2, c+dx/2
	} else {
		c := (p.X.Max + p.X.Min) / 2
		p.X.Min, p.X.Max = c-dy/2, c+dy/2
	}
}

func validFormat(ext string) bool {
	for _, f := range PlotFormats {
		if f == ext {
			return true
		}
	}
	return false
}
