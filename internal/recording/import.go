package recording

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/drive.eval/internal/monitoring"
)

// maxLineBytes bounds one JSONL record.
const maxLineBytes = 16 << 20

// ImportJSONL decodes one message per line, each an object
// {"topic": ..., "t": seconds, "msg": {...}}. Blank lines are skipped.
func ImportJSONL(r io.Reader) ([]Message, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []Message
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec struct {
			Topic   string         `json:"topic"`
			T       *float64       `json:"t"`
			Payload map[string]any `json:"msg"`
		}
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Topic == "" || rec.T == nil {
			return nil, fmt.Errorf("line %d: record needs \"topic\" and \"t\"", line)
		}
		if rec.Payload == nil {
			rec.Payload = map[string]any{}
		}
		out = append(out, Message{Topic: rec.Topic, Timestamp: *rec.T, Payload: rec.Payload})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line+1, err)
	}
	return out, nil
}

// ImportCSV decodes a table with a "time" column, a "topic" column and one
// column per dotted field path. Numeric cells become numbers, other non-empty
// cells strings. Empty cells and non-finite numbers (nan, inf) are left out
// of the payload.
func ImportCSV(r io.Reader) ([]Message, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	timeCol, topicCol := -1, -1
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
		switch header[i] {
		case "time":
			timeCol = i
		case "topic":
			topicCol = i
		}
	}
	if timeCol < 0 || topicCol < 0 {
		return nil, fmt.Errorf("header needs \"time\" and \"topic\" columns, got %v", header)
	}

	var out []Message
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		ts, err := strconv.ParseFloat(strings.TrimSpace(rec[timeCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad time %q", row, rec[timeCol])
		}
		m := Message{Topic: strings.TrimSpace(rec[topicCol]), Timestamp: ts, Payload: map[string]any{}}
		for i, cell := range rec {
			if i == timeCol || i == topicCol {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if f, err := strconv.ParseFloat(cell, 64); err == nil {
				if math.IsNaN(f) || math.IsInf(f, 0) {
					continue
				}
				setPath(m.Payload, header[i], f)
			} else {
				setPath(m.Payload, header[i], cell)
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// ImportFile decodes the JSONL (.jsonl, .ndjson) or CSV (.csv) log at path
// and stores it as a new recording called name.
func ImportFile(ctx context.Context, s *Store, path, name string) (Recording, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return Recording{}, 0, err
	}
	defer f.Close()

	var msgs []Message
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		msgs, err = ImportJSONL(f)
	case ".csv":
		msgs, err = ImportCSV(f)
	default:
		return Recording{}, 0, fmt.Errorf("import %s: unsupported extension (want .jsonl, .ndjson or .csv)", path)
	}
	if err != nil {
		return Recording{}, 0, fmt.Errorf("import %s: %w", path, err)
	}

	rec, err := s.CreateRecording(ctx, name, path)
	if err != nil {
		return Recording{}, 0, err
	}
	if err := s.AppendMessages(ctx, rec.ID, msgs); err != nil {
		if derr := s.DeleteRecording(ctx, name); derr != nil {
			monitoring.Logf("import %s: cleanup of %q failed: %v", path, name, derr)
		}
		return Recording{}, 0, err
	}
	monitoring.Logf("imported %d messages from %s as %q", len(msgs), path, name)
	return rec, len(msgs), nil
}
