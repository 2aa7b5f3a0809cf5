package recording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Recording describes one imported log.
type Recording struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Source     string    `json:"source"`
	ImportedAt time.Time `json:"imported_at"`
}

// CreateRecording registers a new, empty recording.
func (s *Store) CreateRecording(ctx context.Context, name, source string) (Recording, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Recording{}, fmt.Errorf("create recording: empty name")
	}
	if _, err := s.Recording(ctx, name); err == nil {
		return Recording{}, fmt.Errorf("create recording %q: %w", name, ErrRecordingExists)
	} else if !errors.Is(err, ErrNotFound) {
		return Recording{}, err
	}

	rec := Recording{
		ID:         uuid.NewString(),
		Name:       name,
		Source:     source,
		ImportedAt: s.clock.Now().UTC().Truncate(time.Second),
	}
	_, err := s.ExecContext(ctx,
		`INSERT INTO recordings (recording_id, name, source, imported_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Source, rec.ImportedAt.Unix())
	if err != nil {
		return Recording{}, fmt.Errorf("create recording %q: %w", name, err)
	}
	return rec, nil
}

// Recording looks up a recording by name.
func (s *Store) Recording(ctx context.Context, name string) (Recording, error) {
	var (
		rec      Recording
		imported int64
	)
	err := s.QueryRowContext(ctx,
		`SELECT recording_id, name, source, imported_at FROM recordings WHERE name = ?`, name).
		Scan(&rec.ID, &rec.Name, &rec.Source, &imported)
	if errors.Is(err, sql.ErrNoRows) {
		return Recording{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return Recording{}, fmt.Errorf("lookup recording %q: %w", name, err)
	}
	rec.ImportedAt = time.Unix(imported, 0).UTC()
	return rec, nil
}

// Recordings lists all recordings by name.
func (s *Store) Recordings(ctx context.Context) ([]Recording, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT recording_id, name, source, imported_at FROM recordings ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		var (
			rec      Recording
			imported int64
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Source, &imported); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		rec.ImportedAt = time.Unix(imported, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteRecording removes a recording and its messages.
func (s *Store) DeleteRecording(ctx context.Context, name string) error {
	rec, err := s.Recording(ctx, name)
	if err != nil {
		return err
	}
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE recording_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("delete messages of %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM recordings WHERE recording_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("delete recording %q: %w", name, err)
	}
	return tx.Commit()
}
