package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	root := t.TempDir()
	plots := filepath.Join(root, "plots")
	elsewhere := filepath.Join(root, "elsewhere")
	for _, d := range []string{plots, elsewhere} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	link := filepath.Join(plots, "linked-run")
	if err := os.Symlink(elsewhere, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{"new run directory", filepath.Join(plots, "gt_eval"), false},
		{"nested file in new directory", filepath.Join(plots, "gt_eval", "x.pdf"), false},
		{"root itself", plots, false},
		{"parent traversal", filepath.Join(plots, "..", "elsewhere"), true},
		{"relative escape", "../../../etc/passwd", true},
		{"absolute outside", "/etc/passwd", true},
		{"through symlinked directory", filepath.Join(link, "x.pdf"), true},
		{"symlink itself", link, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, plots)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantError %v", tt.path, err, tt.wantError)
			}
		})
	}

	if err := ValidatePathWithinDirectory(plots, filepath.Join(root, "missing")); err == nil {
		t.Error("expected an error for a safe directory that does not exist")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                       "unknown",
		"/car_state/odom":        "car_state_odom",
		"lap 3 (fast).jsonl":     "lap_3_fast_.jsonl",
		"...":                    "unknown",
		"ok-name_1.2":            "ok-name_1.2",
		"weird///name   here!!!": "weird_name_here",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
