package report

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// SaveHTML writes one interactive page holding a line chart per figure.
func SaveHTML(figs []Figure, path, pageTitle string) error {
	page := components.NewPage()
	page.PageTitle = pageTitle
	added := 0
	for _, fig := range figs {
		chart := lineChart(fig)
		if chart == nil {
			continue
		}
		page.AddCharts(chart)
		added++
	}
	if added == 0 {
		return fmt.Errorf("save html %s: %w", path, ErrEmptyFigure)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render html %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("save html %s: %w", path, err)
	}
	return nil
}

func lineChart(fig Figure) *charts.Line {
	yAxis := opts.YAxis{Name: fig.YLabel, NameLocation: "middle", NameGap: 40, Scale: opts.Bool(true)}
	if r := fig.YRange; r != nil && r.Min < r.Max {
		yAxis.Min, yAxis.Max = r.Min, r.Max
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: fig.Title, Width: "1000px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: fig.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: fig.XLabel, NameLocation: "middle", NameGap: 25, Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(yAxis),
	)

	colors := seriesColors(len(fig.Series))
	added := 0
	for i, s := range fig.Series {
		n := min(len(s.X), len(s.Y))
		if n == 0 {
			continue
		}
		data := make([]opts.LineData, n)
		for j := 0; j < n; j++ {
			data[j] = opts.LineData{Value: []interface{}{s.X[j], s.Y[j]}}
		}
		style := opts.LineStyle{Color: hexColor(colors[i]), Width: 1.5}
		if s.Dashed {
			style.Type = "dashed"
		}
		line.AddSeries(s.Label, data,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(style),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(colors[i])}),
		)
		added++
	}
	if added == 0 {
		return nil
	}
	return line
}
