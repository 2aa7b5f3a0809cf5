package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/drive.eval/internal/align"
	"github.com/banshee-data/drive.eval/internal/config"
	"github.com/banshee-data/drive.eval/internal/monitoring"
	"github.com/banshee-data/drive.eval/internal/recording"
	"github.com/banshee-data/drive.eval/internal/report"
)

// Waypoint payload field names.
const (
	waypointList    = "wpnts"
	waypointX       = "x_m"
	waypointY       = "y_m"
	waypointHeading = "psi_rad"
	waypointSpeed   = "vx_mps"
	waypointAccel   = "ax_mps2"
	waypointS       = "s_m"
	waypointKappa   = "kappa_radpm"

	// mapWaypointPath locates the waypoint list inside a map file.
	mapWaypointPath = "global_traj_wpnts_iqp." + waypointList
)

const maxMapFileSize = 64 << 20

// decodeWaypoints reads the waypoint list at path of m. Position is
// required; missing auxiliary fields read as zero.
func decodeWaypoints(m recording.Message, path string) ([]align.Point2D, error) {
	list, err := m.List(path)
	if err != nil {
		return nil, err
	}
	pts := make([]align.Point2D, 0, len(list))
	for i, el := range list {
		w, err := m.Sub(el)
		if err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		var p align.Point2D
		if p.X, err = w.Float(waypointX); err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		if p.Y, err = w.Float(waypointY); err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		p.Heading = optionalFloat(w, waypointHeading)
		p.Speed = optionalFloat(w, waypointSpeed)
		p.Accel = optionalFloat(w, waypointAccel)
		p.S = optionalFloat(w, waypointS)
		p.Curvature = optionalFloat(w, waypointKappa)
		pts = append(pts, p)
	}
	return pts, nil
}

func optionalFloat(m recording.Message, path string) float64 {
	v, err := m.Float(path)
	if err != nil {
		return 0
	}
	return v
}

// WaypointsFromRecording returns the waypoints of the first message on topic.
func WaypointsFromRecording(ctx context.Context, r recording.Reader, rec, topic string) ([]align.Point2D, error) {
	var pts []align.Point2D
	errFound := errors.New("found")
	err := r.Messages(ctx, rec, []string{topic}, func(m recording.Message) error {
		var err error
		if pts, err = decodeWaypoints(m, waypointList); err != nil {
			return err
		}
		return errFound
	})
	if err != nil && !errors.Is(err, errFound) {
		return nil, fmt.Errorf("read waypoints from %s: %w", rec, err)
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("%w: no waypoints on %s in %s", ErrNoData, topic, rec)
	}
	return pts, nil
}

// WaypointMap is a global-waypoints map file. Only the waypoint list is
// interpreted; every other member is preserved when the file is rewritten.
type WaypointMap struct {
	root map[string]any
}

// ReadWaypointMap loads a global-waypoints JSON file.
func ReadWaypointMap(path string) (*WaypointMap, error) {
	if ext := filepath.Ext(path); ext != ".json" {
		return nil, fmt.Errorf("waypoint map must be a .json file, got %q", ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxMapFileSize {
		return nil, fmt.Errorf("waypoint map too large: %d bytes (max %d)", info.Size(), maxMapFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse waypoint map %s: %w", path, err)
	}
	return &WaypointMap{root: root}, nil
}

// Points returns the map's waypoints.
func (w *WaypointMap) Points() ([]align.Point2D, error) {
	pts, err := decodeWaypoints(recording.Message{Topic: "map", Payload: w.root}, mapWaypointPath)
	if err != nil {
		return nil, err
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("%w: waypoint map has no waypoints", ErrNoData)
	}
	return pts, nil
}

// Replace swaps the waypoint list for points.
func (w *WaypointMap) Replace(points []align.Point2D) error {
	traj, ok := w.root["global_traj_wpnts_iqp"].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: waypoint map has no global_traj_wpnts_iqp object", recording.ErrFieldMissing)
	}
	list := make([]any, len(points))
	for i, p := range points {
		w := map[string]any{
			waypointX:       p.X,
			waypointY:       p.Y,
			waypointHeading: p.Heading,
			waypointSpeed:   p.Speed,
			waypointAccel:   p.Accel,
			waypointS:       p.S,
		}
		if p.Curvature != 0 {
			w[waypointKappa] = p.Curvature
		}
		list[i] = w
	}
	traj[waypointList] = list
	return nil
}

// Write stores the map as JSON indented by four spaces.
func (w *WaypointMap) Write(path string) error {
	return report.WriteJSON(path, w.root)
}

// WaypointAlignment is the outcome of AlignWaypoints.
type WaypointAlignment struct {
	Result align.AlignmentResult `json:"result"`
	// Aligned holds the matched moving waypoints in the reference frame,
	// deduplicated, with arc length resampled. Headings are as recorded.
	Aligned   []align.Point2D `json:"-"`
	Reference []align.Point2D `json:"-"`
}

// Rewritten returns Aligned with headings rotated into the reference frame,
// as written back to a map file.
func (a WaypointAlignment) Rewritten() []align.Point2D {
	out := append([]align.Point2D(nil), a.Aligned...)
	align.RotateHeadings(out, a.Result.Transform.Theta)
	return out
}

// Figures overlays the aligned waypoints on the reference, and compares
// heading and acceleration along the track.
func (a WaypointAlignment) Figures(refLabel, movingLabel string) []report.NamedFigure {
	col := func(pts []align.Point2D, f func(align.Point2D) float64) []float64 {
		out := make([]float64, len(pts))
		for i, p := range pts {
			out[i] = f(p)
		}
		return out
	}
	x := func(p align.Point2D) float64 { return p.X }
	y := func(p align.Point2D) float64 { return p.Y }
	s := func(p align.Point2D) float64 { return p.S }
	rewritten := a.Rewritten()
	return []report.NamedFigure{
		{Name: "waypoints_aligned", Figure: report.Figure{
			Title: "waypoints", XLabel: "Position X [m]", YLabel: "Position Y [m]", Equal: true,
			Series: []report.Series{
				{Label: refLabel, X: col(a.Reference, x), Y: col(a.Reference, y)},
				{Label: movingLabel, X: col(a.Aligned, x), Y: col(a.Aligned, y)},
			},
		}},
		{Name: "yaw", Figure: report.Figure{
			Title: "heading", XLabel: "s [m]", YLabel: "yaw [rad]",
			Series: []report.Series{
				{Label: refLabel, X: col(a.Reference, s), Y: col(a.Reference, func(p align.Point2D) float64 { return p.Heading })},
				{Label: movingLabel, X: col(rewritten, s), Y: col(rewritten, func(p align.Point2D) float64 { return p.Heading })},
			},
		}},
		{Name: "ax", Figure: report.Figure{
			Title: "ax", XLabel: "Position S [m]", YLabel: "ax [mps2]",
			Series: []report.Series{
				{Label: refLabel, X: col(a.Reference, s), Y: col(a.Reference, func(p align.Point2D) float64 { return p.Accel })},
				{Label: movingLabel, X: col(rewritten, s), Y: col(rewritten, func(p align.Point2D) float64 { return p.Accel })},
			},
		}},
	}
}

// AlignOptionsFromConfig reads the aligner options from cfg.
func AlignOptionsFromConfig(cfg *config.EvalConfig) (align.Options, error) {
	method, err := align.ParseMethod(cfg.GetAlignMethod())
	if err != nil {
		return align.Options{}, err
	}
	opts := align.DefaultOptions()
	opts.Method = method
	opts.RotationSeeds = cfg.GetRotationSeeds()
	opts.CentroidInit = cfg.GetCentroidInit()
	opts.MaxIterations = cfg.GetMaxIterations()
	opts.Tolerance = cfg.GetAlignTolerance()
	return opts, nil
}

// AlignWaypoints moves the moving waypoints into the reference frame. The
// matched points keep their auxiliary fields; duplicates are dropped and
// arc length is resampled uniformly over the recorded range.
func AlignWaypoints(reference, moving []align.Point2D, opts align.Options) (WaypointAlignment, error) {
	res, err := align.Align(reference, moving, opts)
	if err != nil {
		return WaypointAlignment{}, err
	}
	aligned := align.DedupPoints(res.MatchedPoints)
	align.ResampleArcLength(aligned)
	monitoring.Logf("aligned %d waypoints onto %d: dx=%.3f dy=%.3f theta=%.4f mse=%.6f",
		len(moving), len(reference), res.Transform.DX, res.Transform.DY, res.Transform.Theta, res.MeanSquaredError)
	return WaypointAlignment{Result: res, Aligned: aligned, Reference: reference}, nil
}
