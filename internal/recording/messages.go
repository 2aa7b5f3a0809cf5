package recording

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// AppendMessages stores msgs after the existing messages of the recording
// with the given ID, in one transaction.
func (s *Store) AppendMessages(ctx context.Context, recordingID string, msgs []Message) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM messages WHERE recording_id = ?`, recordingID).
		Scan(&next); err != nil {
		return fmt.Errorf("append messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (recording_id, seq, topic, timestamp, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("append messages: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		if math.IsNaN(m.Timestamp) || math.IsInf(m.Timestamp, 0) {
			return fmt.Errorf("append messages: message %d on %s has timestamp %v", i, m.Topic, m.Timestamp)
		}
		payload, err := json.Marshal(m.Payload)
		if err != nil {
			return fmt.Errorf("append messages: encode message %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, recordingID, next+int64(i), m.Topic, m.Timestamp, string(payload)); err != nil {
			return fmt.Errorf("append messages: insert message %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// topicFilter returns the SQL condition and arguments restricting to topics.
func topicFilter(topics []string) (string, []any) {
	if len(topics) == 0 {
		return "", nil
	}
	args := make([]any, len(topics))
	for i, t := range topics {
		args[i] = t
	}
	return " AND topic IN (?" + strings.Repeat(", ?", len(topics)-1) + ")", args
}

func (s *Store) Messages(ctx context.Context, recording string, topics []string, fn func(Message) error) error {
	rec, err := s.Recording(ctx, recording)
	if err != nil {
		return err
	}
	cond, targs := topicFilter(topics)
	rows, err := s.QueryContext(ctx,
		`SELECT topic, timestamp, payload FROM messages WHERE recording_id = ?`+cond+
			` ORDER BY timestamp, seq`,
		append([]any{rec.ID}, targs...)...)
	if err != nil {
		return fmt.Errorf("read messages of %q: %w", recording, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m       Message
			payload string
		)
		if err := rows.Scan(&m.Topic, &m.Timestamp, &payload); err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &m.Payload); err != nil {
			return fmt.Errorf("decode message on %s at %.6f: %w", m.Topic, m.Timestamp, err)
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) Count(ctx context.Context, recording string, topics ...string) (int, error) {
	rec, err := s.Recording(ctx, recording)
	if err != nil {
		return 0, err
	}
	cond, targs := topicFilter(topics)
	var n int
	err = s.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE recording_id = ?`+cond,
		append([]any{rec.ID}, targs...)...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages of %q: %w", recording, err)
	}
	return n, nil
}

func (s *Store) Topics(ctx context.Context, recording string) ([]TopicInfo, error) {
	rec, err := s.Recording(ctx, recording)
	if err != nil {
		return nil, err
	}
	rows, err := s.QueryContext(ctx,
		`SELECT topic, COUNT(*), MIN(timestamp), MAX(timestamp)
		 FROM messages WHERE recording_id = ? GROUP BY topic ORDER BY topic`, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("list topics of %q: %w", recording, err)
	}
	defer rows.Close()

	var out []TopicInfo
	for rows.Next() {
		var info TopicInfo
		if err := rows.Scan(&info.Topic, &info.Messages, &info.First, &info.Last); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// CopyRange copies the messages of src on topics (all when empty) whose
// timestamps lie in [start, end] into a new recording dst, renumbering them
// in time order. Pass -Inf or +Inf for an open bound. It returns the number
// of messages copied.
func (s *Store) CopyRange(ctx context.Context, src, dst string, topics []string, start, end float64) (int, error) {
	from, err := s.Recording(ctx, src)
	if err != nil {
		return 0, err
	}
	to, err := s.CreateRecording(ctx, dst, fmt.Sprintf("cut of %s", src))
	if err != nil {
		return 0, err
	}

	cond, targs := topicFilter(topics)
	args := []any{to.ID, from.ID}
	args = append(args, targs...)
	where := ""
	if !math.IsInf(start, -1) {
		where += " AND timestamp >= ?"
		args = append(args, start)
	}
	if !math.IsInf(end, 1) {
		where += " AND timestamp <= ?"
		args = append(args, end)
	}

	res, err := s.ExecContext(ctx,
		`INSERT INTO messages (recording_id, seq, topic, timestamp, payload)
		 SELECT ?, ROW_NUMBER() OVER (ORDER BY timestamp, seq) - 1, topic, timestamp, payload
		 FROM messages WHERE recording_id = ?`+cond+where, args...)
	if err != nil {
		return 0, fmt.Errorf("copy %q to %q: %w", src, dst, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CopyExcluding copies every message of src except those on the excluded
// topics into a new recording dst, renumbering them in time order.
func (s *Store) CopyExcluding(ctx context.Context, src, dst string, exclude []string) (int, error) {
	from, err := s.Recording(ctx, src)
	if err != nil {
		return 0, err
	}
	to, err := s.CreateRecording(ctx, dst, fmt.Sprintf("%s without %s", src, strings.Join(exclude, ", ")))
	if err != nil {
		return 0, err
	}
	cond, targs := topicFilter(exclude)
	cond = strings.Replace(cond, " AND topic IN", " AND topic NOT IN", 1)

	res, err := s.ExecContext(ctx,
		`INSERT INTO messages (recording_id, seq, topic, timestamp, payload)
		 SELECT ?, ROW_NUMBER() OVER (ORDER BY timestamp, seq) - 1, topic, timestamp, payload
		 FROM messages WHERE recording_id = ?`+cond,
		append([]any{to.ID, from.ID}, targs...)...)
	if err != nil {
		return 0, fmt.Errorf("copy %q to %q: %w", src, dst, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CopyTopics appends the messages of src on topics to the existing
// recording dst. When stamp is non-nil every copied message is stored at
// that time instead of its own.
func (s *Store) CopyTopics(ctx context.Context, src, dst string, topics []string, stamp *float64) (int, error) {
	if len(topics) == 0 {
		return 0, fmt.Errorf("copy topics from %q: no topics given", src)
	}
	from, err := s.Recording(ctx, src)
	if err != nil {
		return 0, err
	}
	to, err := s.Recording(ctx, dst)
	if err != nil {
		return 0, err
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM messages WHERE recording_id = ?`, to.ID).
		Scan(&next); err != nil {
		return 0, fmt.Errorf("copy topics to %q: %w", dst, err)
	}

	var at any
	if stamp != nil {
		at = *stamp
	}
	cond, targs := topicFilter(topics)
	args := append([]any{to.ID, next, at, from.ID}, targs...)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (recording_id, seq, topic, timestamp, payload)
		 SELECT ?, ? + ROW_NUMBER() OVER (ORDER BY timestamp, seq) - 1, topic, COALESCE(?, timestamp), payload
		 FROM messages WHERE recording_id = ?`+cond, args...)
	if err != nil {
		return 0, fmt.Errorf("copy topics from %q to %q: %w", src, dst, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), tx.Commit()
}

var _ Reader = (*Store)(nil)
var _ Reader = (*MemoryLog)(nil)
