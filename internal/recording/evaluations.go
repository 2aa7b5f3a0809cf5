package recording

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EvaluationRecord is the persisted summary of one evaluation run.
type EvaluationRecord struct {
	RunID     string          `json:"run_id"`
	Recording string          `json:"recording"`
	Kind      string          `json:"kind"`
	Summary   json.RawMessage `json:"summary"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaveEvaluation stores a run summary. summary is encoded as JSON. It
// returns the stored record with a fresh run ID.
func (s *Store) SaveEvaluation(ctx context.Context, recording, kind string, summary any) (EvaluationRecord, error) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return EvaluationRecord{}, fmt.Errorf("encode %s summary: %w", kind, err)
	}
	rec := EvaluationRecord{
		RunID:     uuid.NewString(),
		Recording: recording,
		Kind:      kind,
		Summary:   raw,
		CreatedAt: s.clock.Now().UTC(),
	}
	_, err = s.ExecContext(ctx,
		`INSERT INTO evaluation_runs (run_id, recording, kind, summary, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.RunID, rec.Recording, rec.Kind, string(rec.Summary), rec.CreatedAt.UnixNano())
	if err != nil {
		return EvaluationRecord{}, fmt.Errorf("save %s evaluation of %q: %w", kind, recording, err)
	}
	return rec, nil
}

// Evaluations lists the stored runs for recording, oldest first.
func (s *Store) Evaluations(ctx context.Context, recording string) ([]EvaluationRecord, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT run_id, recording, kind, summary, created_at FROM evaluation_runs
		 WHERE recording = ? ORDER BY created_at, run_id`, recording)
	if err != nil {
		return nil, fmt.Errorf("list evaluations of %q: %w", recording, err)
	}
	defer rows.Close()

	var out []EvaluationRecord
	for rows.Next() {
		var (
			rec     EvaluationRecord
			summary string
			created int64
		)
		if err := rows.Scan(&rec.RunID, &rec.Recording, &rec.Kind, &summary, &created); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		rec.Summary = json.RawMessage(summary)
		rec.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
