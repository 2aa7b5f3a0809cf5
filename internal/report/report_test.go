package report

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFigure() Figure {
	x := make([]float64, 50)
	y := make([]float64, 50)
	for i := range x {
		x[i] = float64(i) * 0.1
		y[i] = math.Sin(x[i])
	}
	return Figure{
		Title:  "velocity x",
		XLabel: "Time [s]",
		YLabel: "vx [m/s]",
		Series: []Series{
			{Label: "estimate", X: x, Y: y},
			{Label: "ground truth", X: x, Y: y, Dashed: true},
		},
	}
}

func TestTable(t *testing.T) {
	tbl := NewTable("time", "x", "x")
	assert.Equal(t, []string{"time", "x"}, tbl.Names())
	require.NoError(t, tbl.Append(0, 1.5))
	require.NoError(t, tbl.Append(0.1, -2))
	assert.Error(t, tbl.Append(1))
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []float64{1.5, -2}, tbl.Column("x"))
	assert.Nil(t, tbl.Column("y"))

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))
	assert.Equal(t, "time,x\n0,1.5\n0.1,-2\n", buf.String())
}

func TestSavePlot(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range PlotFormats {
		ext := ext
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "vx."+ext)
			fig := sampleFigure()
			fig.YRange = &Range{Min: -2, Max: 2}
			require.NoError(t, SavePlot(fig, path))
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		})
	}

	err := SavePlot(sampleFigure(), filepath.Join(dir, "vx.gif"))
	assert.ErrorContains(t, err, "unsupported format")

	err = SavePlot(Figure{Title: "empty", Series: []Series{{Label: "none"}}}, filepath.Join(dir, "e.png"))
	assert.ErrorIs(t, err, ErrEmptyFigure)
}

func TestSavePlot_EqualAxes(t *testing.T) {
	fig := Figure{
		Title:  "trajectory",
		Equal:  true,
		Series: []Series{{Label: "lap", X: []float64{0, 10, 10, 0}, Y: []float64{0, 0, 2, 2}}},
	}
	require.NoError(t, SavePlot(fig, filepath.Join(t.TempDir(), "xy.svg")))
}

func TestSaveHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, SaveHTML([]Figure{sampleFigure(), {Title: "skipped"}}, path, "evaluation"))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(body)
	assert.Contains(t, html, "velocity x")
	assert.Contains(t, html, "ground truth")
	assert.Contains(t, html, "dashed")
	assert.NotContains(t, html, "skipped")

	err = SaveHTML([]Figure{{Title: "nothing"}}, path, "evaluation")
	assert.ErrorIs(t, err, ErrEmptyFigure)
}

func TestWriteJSONAndMetrics(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "summary.json")
	require.NoError(t, WriteJSON(jsonPath, map[string]any{"candidates": []int{1}}))
	body, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"candidates\": [\n        1\n    ]\n}\n", string(body))
	var decoded map[string][]int
	require.NoError(t, json.Unmarshal(body, &decoded))

	txt := filepath.Join(dir, "errors.txt")
	require.NoError(t, WriteMetrics(txt, []Metric{{"RMSE x", 0.1234}, {"RMSE y", 2}}))
	body, err = os.ReadFile(txt)
	require.NoError(t, err)
	assert.Equal(t, "RMSE x: 0.1234\nRMSE y: 2\n", string(body))

	tbl := NewTable("a")
	require.NoError(t, tbl.Append(1))
	csvPath := filepath.Join(dir, "t.csv")
	require.NoError(t, WriteTable(csvPath, tbl))
	body, err = os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", string(body))
}

func TestPrepareOutputDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "plots")

	dir, err := PrepareOutputDir(root, "gt_eval", false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.pdf"), []byte("x"), 0o644))

	_, err = PrepareOutputDir(root, "gt_eval", false)
	assert.ErrorIs(t, err, ErrOutputExists)

	dir, err = PrepareOutputDir(root, "gt_eval", true)
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "overwrite starts from an empty directory")

	_, err = PrepareOutputDir(root, "../escape", true)
	assert.Error(t, err)
	_, err = PrepareOutputDir(root, ".", true)
	assert.Error(t, err)
}

func TestSeriesColors(t *testing.T) {
	c := seriesColors(10)
	require.Len(t, c, 10)
	assert.Equal(t, basePalette[0], c[0])
	assert.Equal(t, "#215caf", hexColor(c[0]))
	seen := map[string]bool{}
	for _, col := range c {
		seen[hexColor(col)] = true
	}
	assert.Len(t, seen, 10)
	assert.True(t, strings.HasPrefix(hexColor(c[9]), "#"))
	assert.Nil(t, seriesColors(0))
}

func TestSaveFigures(t *testing.T) {
	dir := t.TempDir()
	figs := []NamedFigure{
		{Name: "velocityx", Figure: sampleFigure()},
		{Name: "empty", Figure: Figure{Title: "empty"}},
		{Name: "yaw rate", Figure: sampleFigure()},
	}
	written, err := SaveFigures(dir, figs, "svg", true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "velocityx.svg"),
		filepath.Join(dir, "yaw_rate.svg"),
		filepath.Join(dir, "index.html"),
	}, written)
	_, err = os.Stat(filepath.Join(dir, "empty.svg"))
	assert.True(t, os.IsNotExist(err))

	_, err = SaveFigures(dir, figs[:1], "bmp", false)
	assert.ErrorContains(t, err, "unsupported format")
}
