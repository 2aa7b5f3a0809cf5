package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/drive.eval/internal/monitoring"
	"github.com/banshee-data/drive.eval/internal/security"
)

// ErrOutputExists is returned by PrepareOutputDir when the directory exists
// and overwriting was not requested.
var ErrOutputExists = errors.New("output directory exists")

// PrepareOutputDir creates root/name for a run's output. An existing
// directory is removed first when overwrite is set; otherwise ErrOutputExists
// is returned. name must not escape root.
func PrepareOutputDir(root, name string, overwrite bool) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create output root: %w", err)
	}
	dir := filepath.Join(root, name)
	if err := security.ValidatePathWithinDirectory(dir, root); err != nil {
		return "", err
	}
	if filepath.Clean(dir) == filepath.Clean(root) {
		return "", fmt.Errorf("output name %q resolves to the output root", name)
	}

	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return "", fmt.Errorf("%s exists and is not a directory", dir)
		}
		if !overwrite {
			return "", fmt.Errorf("%w: %s (pass --overwrite to replace it)", ErrOutputExists, dir)
		}
		monitoring.Logf("replacing output directory %s", dir)
		if err := os.RemoveAll(dir); err != nil {
			return "", fmt.Errorf("remove %s: %w", dir, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return dir, nil
}

// WriteJSON writes v as JSON indented by four spaces.
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Metric is one labelled scalar of a text summary.
type Metric struct {
	Label string
	Value float64
}

// WriteMetrics writes one "label: value" line per metric.
func WriteMetrics(path string, metrics []Metric) error {
	var buf bytes.Buffer
	for _, m := range metrics {
		fmt.Fprintf(&buf, "%s: %s\n", m.Label, strconv.FormatFloat(m.Value, 'g', -1, 64))
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// WriteTable writes t as CSV to path.
func WriteTable(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// NamedFigure pairs a figure with the base name of its output file.
type NamedFigure struct {
	Name string
	Figure
}

// SaveFigures writes every figure to dir as name.format and, when html is
// set, all of them to one index.html page. Figures without data are skipped.
// It returns the paths written.
func SaveFigures(dir string, figs []NamedFigure, format string, html bool) ([]string, error) {
	var written []string
	all := make([]Figure, 0, len(figs))
	for _, f := range figs {
		path := filepath.Join(dir, security.SanitizeFilename(f.Name)+"."+format)
		err := SavePlot(f.Figure, path)
		if errors.Is(err, ErrEmptyFigure) {
			monitoring.Debugf("skipping empty figure %s", f.Name)
			continue
		}
		if err != nil {
			return written, err
		}
		written = append(written, path)
		all = append(all, f.Figure)
	}
	if html && len(all) > 0 {
		path := filepath.Join(dir, "index.html")
		if err := SaveHTML(all, path, filepath.Base(dir)); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
