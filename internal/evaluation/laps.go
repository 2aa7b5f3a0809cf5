package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/banshee-data/drive.eval/internal/config"
	"github.com/banshee-data/drive.eval/internal/monitoring"
	"github.com/banshee-data/drive.eval/internal/recording"
)

// scalarSentinel is the "no value" marker of a parameter update: values at
// or above it are ignored.
const scalarSentinel = 100.0

// LapOptions configures FindLapCandidates.
type LapOptions struct {
	ScalarTopic   string
	LapTopic      string
	InitialScalar float64
	// All keeps every valid lap instead of the fastest per scalar.
	All bool
}

// LapOptionsFromConfig reads LapOptions from cfg.
func LapOptionsFromConfig(cfg *config.EvalConfig) LapOptions {
	return LapOptions{
		ScalarTopic:   cfg.GetScalarTopic(),
		LapTopic:      cfg.GetLapTopic(),
		InitialScalar: cfg.GetInitialScalar(),
	}
}

// LapCandidate is one valid lap: the scalar parameter was not changed while
// it was driven.
type LapCandidate struct {
	Scalar      float64 `json:"scalar"`
	LapTime     float64 `json:"lap_time"`
	LatError    float64 `json:"lat_error"`
	MaxLatError float64 `json:"max_lat_error"`
	Recording   string  `json:"bag_file"`
	// StartTime is the end of the previous lap, or nil for the first lap of
	// a recording.
	StartTime *float64 `json:"start_time"`
	EndTime   float64  `json:"end_time"`
}

// LapReport is the JSON document written by the best-lap search.
type LapReport struct {
	Candidates []LapCandidate `json:"candidates"`
}

// FindLapCandidates scans the recordings in order for laps driven with an
// unchanged scalar. Unless All is set only the fastest lap per scalar is
// kept. The result is sorted by lap time. Recordings lacking either topic
// are skipped.
func FindLapCandidates(ctx context.Context, r recording.Reader, recordings []string, opts LapOptions) ([]LapCandidate, error) {
	var candidates []LapCandidate
	for _, rec := range recordings {
		ok, err := hasTopics(ctx, r, rec, opts.ScalarTopic, opts.LapTopic)
		if err != nil {
			return nil, err
		}
		if !ok {
			monitoring.Logf("skipping %s: needs both %s and %s", rec, opts.ScalarTopic, opts.LapTopic)
			continue
		}
		before := len(candidates)
		candidates, err = scanLaps(ctx, r, rec, opts, candidates)
		if err != nil {
			return nil, err
		}
		if len(candidates) == before {
			monitoring.Logf("no valid lap found in %s", rec)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].LapTime < candidates[j].LapTime })
	return candidates, nil
}

func hasTopics(ctx context.Context, r recording.Reader, rec string, topics ...string) (bool, error) {
	infos, err := r.Topics(ctx, rec)
	if err != nil {
		return false, err
	}
	present := make(map[string]bool, len(infos))
	for _, info := range infos {
		present[info.Topic] = true
	}
	for _, t := range topics {
		if !present[t] {
			return false, nil
		}
	}
	return true, nil
}

func scanLaps(ctx context.Context, r recording.Reader, rec string, opts LapOptions, candidates []LapCandidate) ([]LapCandidate, error) {
	scalar := opts.InitialScalar
	updated := false
	var start *float64
	err := r.Messages(ctx, rec, []string{opts.ScalarTopic, opts.LapTopic}, func(m recording.Message) error {
		switch m.Topic {
		case opts.ScalarTopic:
			if v, ok := minScalar(m); ok {
				scalar, updated = v, true
			}
		case opts.LapTopic:
			if !updated {
				c, err := lapCandidate(m, rec, scalar, start)
				if err != nil {
					return err
				}
				monitoring.Debugf("valid lap in %s with scalar %v and lap time %v", rec, scalar, c.LapTime)
				candidates = addCandidate(candidates, c, opts.All)
			}
			updated = false
			t := m.Timestamp
			start = &t
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan laps in %s: %w", rec, err)
	}
	return candidates, nil
}

// minScalar returns the smallest value below the sentinel among the
// update's doubles.
func minScalar(m recording.Message) (float64, bool) {
	list, err := m.List("doubles")
	if err != nil {
		return 0, false
	}
	best := scalarSentinel
	for _, el := range list {
		d, err := m.Sub(el)
		if err != nil {
			continue
		}
		if v, err := d.Float("value"); err == nil && v < best {
			best = v
		}
	}
	return best, best != scalarSentinel
}

func lapCandidate(m recording.Message, rec string, scalar float64, start *float64) (LapCandidate, error) {
	c := LapCandidate{Scalar: scalar, Recording: rec, StartTime: start, EndTime: m.Timestamp}
	var err error
	if c.LapTime, err = m.Float("lap_time"); err != nil {
		return c, err
	}
	if c.LatError, err = m.Float("average_lateral_error_to_global_waypoints"); err != nil {
		return c, err
	}
	if c.MaxLatError, err = m.Float("max_lateral_error_to_global_waypoints"); err != nil {
		return c, err
	}
	return c, nil
}

func addCandidate(candidates []LapCandidate, c LapCandidate, all bool) []LapCandidate {
	if !all {
		for i := range candidates {
			if candidates[i].Scalar == c.Scalar {
				if c.LapTime < candidates[i].LapTime {
					candidates[i] = c
				}
				return candidates
			}
		}
	}
	return append(candidates, c)
}

// ReadLapReport loads a best-lap JSON document.
func ReadLapReport(path string) (LapReport, error) {
	var rep LapReport
	data, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	if err := json.Unmarshal(data, &rep); err != nil {
		return rep, fmt.Errorf("parse lap report %s: %w", path, err)
	}
	return rep, nil
}

// LapWindow is the time span of one lap.
type LapWindow struct {
	Start, End float64
	LapTime    float64
}

// LapWindows returns the spans of the candidates recorded in rec that have a
// known start.
func (r LapReport) LapWindows(rec string) []LapWindow {
	var out []LapWindow
	for _, c := range r.Candidates {
		if c.Recording != rec || c.StartTime == nil {
			continue
		}
		out = append(out, LapWindow{Start: *c.StartTime, End: c.EndTime, LapTime: c.LapTime})
	}
	return out
}
