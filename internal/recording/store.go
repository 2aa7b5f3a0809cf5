// Package recording stores drive log recordings in SQLite and serves their
// messages, ordered by time, to the evaluation pipelines.
package recording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/drive.eval/internal/timeutil"
)

var (
	// ErrNotFound is returned when a named recording does not exist.
	ErrNotFound = errors.New("recording not found")
	// ErrRecordingExists is returned when creating a recording whose name is
	// already taken.
	ErrRecordingExists = errors.New("recording already exists")
	// ErrFieldMissing is returned when a dotted field path is absent from a
	// message payload or does not hold the requested type.
	ErrFieldMissing = errors.New("field missing")
)

// connection pragmas applied to every pooled connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(1)",
}

// Store is a recording database.
type Store struct {
	*sql.DB
	path  string
	clock timeutil.Clock
}

// Open opens (creating if needed) the SQLite database at path. The schema is
// not touched; call MigrateUp before first use.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("open recording store: empty path")
	}
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open recording store %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open recording store %s: %w", path, err)
	}
	return &Store{DB: db, path: path, clock: timeutil.RealClock{}}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// SetClock replaces the clock that stamps new recordings and evaluations.
func (s *Store) SetClock(c timeutil.Clock) { s.clock = c }

// OpenAndMigrate opens the store at path and brings its schema up to date.
func OpenAndMigrate(ctx context.Context, path string) (*Store, error) {
	s, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := s.MigrateUp(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
