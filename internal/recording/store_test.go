package recording

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/drive.eval/internal/timeutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenAndMigrate(context.Background(), filepath.Join(t.TempDir(), "rec.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func odom(topic string, ts, x float64) Message {
	return Message{Topic: topic, Timestamp: ts, Payload: map[string]any{
		"pose": map[string]any{"position": map[string]any{"x": x}},
	}}
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer s.Close()

	v, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	assert.False(t, dirty)

	require.NoError(t, s.MigrateUp())
	require.NoError(t, s.MigrateUp(), "second run is a no-op")
	v, dirty, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	var journal string
	require.NoError(t, s.QueryRow("PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", journal)

	require.NoError(t, s.MigrateDown())
	_, err = s.ExecContext(ctx, `SELECT COUNT(*) FROM recordings`)
	assert.Error(t, err, "tables are gone after rolling back")
}

func TestRecordings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.CreateRecording(ctx, "lap-b", "b.jsonl")
	require.NoError(t, err)
	assert.Len(t, a.ID, 36)
	_, err = s.CreateRecording(ctx, "lap-a", "a.jsonl")
	require.NoError(t, err)

	_, err = s.CreateRecording(ctx, "lap-b", "again")
	assert.ErrorIs(t, err, ErrRecordingExists)

	got, err := s.Recording(ctx, "lap-b")
	require.NoError(t, err)
	assert.Equal(t, a, got)

	all, err := s.Recordings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "lap-a", all[0].Name)

	require.NoError(t, s.DeleteRecording(ctx, "lap-a"))
	_, err = s.Recording(ctx, "lap-a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteRecording(ctx, "lap-a"), ErrNotFound)
}

func TestMessages_OrderedAndFiltered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rec, err := s.CreateRecording(ctx, "run", "")
	require.NoError(t, err)

	require.NoError(t, s.AppendMessages(ctx, rec.ID, []Message{
		odom("/odom", 2, 20),
		odom("/gt", 1, 10),
		odom("/odom", 1, 11),
	}))
	require.NoError(t, s.AppendMessages(ctx, rec.ID, []Message{odom("/odom", 0.5, 5)}))

	var got []float64
	err = s.Messages(ctx, "run", []string{"/odom"}, func(m Message) error {
		x, err := m.Float("pose.position.x")
		got = append(got, x)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 11, 20}, got)

	// Equal timestamps keep arrival order.
	var topics []string
	require.NoError(t, s.Messages(ctx, "run", nil, func(m Message) error {
		topics = append(topics, m.Topic)
		return nil
	}))
	assert.Equal(t, []string{"/odom", "/gt", "/odom", "/odom"}, topics)

	n, err := s.Count(ctx, "run", "/gt")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.Count(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	info, err := s.Topics(ctx, "run")
	require.NoError(t, err)
	want := []TopicInfo{
		{Topic: "/gt", Messages: 1, First: 1, Last: 1},
		{Topic: "/odom", Messages: 3, First: 0.5, Last: 2},
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("Topics mismatch (-want +got):\n%s", diff)
	}

	err = s.Messages(ctx, "missing", nil, func(Message) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.AppendMessages(ctx, rec.ID, []Message{odom("/odom", math.NaN(), 0)}))
}

func TestCopyRange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rec, err := s.CreateRecording(ctx, "full", "")
	require.NoError(t, err)
	var msgs []Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, odom("/odom", float64(i), float64(i)), odom("/tf", float64(i), 0))
	}
	require.NoError(t, s.AppendMessages(ctx, rec.ID, msgs))

	n, err := s.CopyRange(ctx, "full", "lap", []string{"/odom"}, 3, 6)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	var xs []float64
	require.NoError(t, s.Messages(ctx, "lap", nil, func(m Message) error {
		x, err := m.Float("pose.position.x")
		xs = append(xs, x)
		return err
	}))
	assert.Equal(t, []float64{3, 4, 5, 6}, xs)

	n, err = s.CopyRange(ctx, "full", "all", nil, math.Inf(-1), math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	_, err = s.CopyRange(ctx, "full", "lap", nil, 0, 1)
	assert.ErrorIs(t, err, ErrRecordingExists)
}

func TestCopyExcluding(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rec, err := s.CreateRecording(ctx, "full", "")
	require.NoError(t, err)
	var msgs []Message
	for i := 0; i < 5; i++ {
		msgs = append(msgs, odom("/odom", float64(i), float64(i)), odom("/tf", float64(i), 0), odom("/tf_static", 0, 0))
	}
	require.NoError(t, s.AppendMessages(ctx, rec.ID, msgs))

	n, err := s.CopyExcluding(ctx, "full", "clean", []string{"/tf", "/tf_static"})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	topics, err := s.Topics(ctx, "clean")
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "/odom", topics[0].Topic)

	_, err = s.CopyExcluding(ctx, "missing", "other", []string{"/tf"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCopyTopics(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	realRec, err := s.CreateRecording(ctx, "real", "")
	require.NoError(t, err)
	simRec, err := s.CreateRecording(ctx, "sim", "")
	require.NoError(t, err)
	require.NoError(t, s.AppendMessages(ctx, realRec.ID, []Message{odom("/wp", 50, 7), odom("/odom", 51, 1)}))
	require.NoError(t, s.AppendMessages(ctx, simRec.ID, []Message{odom("/odom", 10, 0), odom("/odom", 11, 1)}))

	at := 10.0
	n, err := s.CopyTopics(ctx, "real", "sim", []string{"/wp"}, &at)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var got []Message
	require.NoError(t, s.Messages(ctx, "sim", []string{"/wp"}, func(m Message) error {
		got = append(got, m)
		return nil
	}))
	require.Len(t, got, 1)
	assert.Equal(t, 10.0, got[0].Timestamp)
	count, err := s.Count(ctx, "sim")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	n, err = s.CopyTopics(ctx, "real", "sim", []string{"/odom"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	topics, err := s.Topics(ctx, "sim")
	require.NoError(t, err)
	assert.Equal(t, 51.0, topics[0].Last)

	_, err = s.CopyTopics(ctx, "real", "sim", nil, nil)
	assert.Error(t, err)
	_, err = s.CopyTopics(ctx, "real", "none", []string{"/wp"}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveEvaluation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	start := time.Date(2024, time.March, 9, 14, 30, 0, 123456789, time.UTC)
	clock := timeutil.NewManualClock(start)
	s.SetClock(clock)

	first, err := s.SaveEvaluation(ctx, "run", "gt-eval", map[string]float64{"x": 0.1})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = s.SaveEvaluation(ctx, "run", "cmd-eval", map[string]float64{"vx": 0.2})
	require.NoError(t, err)

	runs, err := s.Evaluations(ctx, "run")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.RunID, runs[0].RunID)
	assert.Equal(t, "gt-eval", runs[0].Kind)
	assert.JSONEq(t, `{"x":0.1}`, string(runs[0].Summary))
	assert.NotEqual(t, runs[0].RunID, runs[1].RunID)
	assert.True(t, runs[0].CreatedAt.Equal(start))
	assert.True(t, runs[1].CreatedAt.Equal(start.Add(time.Minute)))

	rec, err := s.CreateRecording(ctx, "stamped", "")
	require.NoError(t, err)
	assert.True(t, rec.ImportedAt.Equal(start.Add(time.Minute).Truncate(time.Second)))
}

func TestImportFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	dir := t.TempDir()

	jsonl := filepath.Join(dir, "run.jsonl")
	require.NoError(t, os.WriteFile(jsonl, []byte(
		`{"topic":"/odom","t":1.5,"msg":{"twist":{"linear":{"x":2}}}}`+"\n\n"+
			`{"topic":"/odom","t":1.0,"msg":{"twist":{"linear":{"x":1}}}}`+"\n"), 0o644))
	_, n, err := ImportFile(ctx, s, jsonl, "run")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var vx []float64
	require.NoError(t, s.Messages(ctx, "run", nil, func(m Message) error {
		v, err := m.Float("twist.linear.x")
		vx = append(vx, v)
		return err
	}))
	assert.Equal(t, []float64{1, 2}, vx)

	_, _, err = ImportFile(ctx, s, filepath.Join(dir, "run.bag"), "bag")
	assert.Error(t, err)
}

func TestImportFile_NonFiniteCells(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "odom.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"time,topic,pose.pose.position.x,pose.covariance,twist.linear.x\n"+
			"0.0,/odom,1.0,nan,-Inf\n"), 0o644))

	_, n, err := ImportFile(ctx, s, path, "odom")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Messages(ctx, "odom", nil, func(m Message) error {
		x, err := m.Float("pose.pose.position.x")
		require.NoError(t, err)
		assert.Equal(t, 1.0, x)
		_, err = m.Value("pose.covariance")
		assert.ErrorIs(t, err, ErrFieldMissing)
		_, err = m.Value("twist.linear.x")
		assert.ErrorIs(t, err, ErrFieldMissing)
		return nil
	}))
}

func TestImportJSONL_Errors(t *testing.T) {
	_, err := ImportJSONL(strings.NewReader(`{"topic":"/a"}`))
	assert.ErrorContains(t, err, "line 1")
	_, err = ImportJSONL(strings.NewReader("{}\n{"))
	assert.Error(t, err)
}

func TestImportCSV(t *testing.T) {
	in := "time,topic,pose.position.x,pose.position.y,frame\n" +
		"0.1,/gt,1.5,2,map\n" +
		"0.2,/gt,,3,\n"
	msgs, err := ImportCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	x, err := msgs[0].Float("pose.position.x")
	require.NoError(t, err)
	assert.Equal(t, 1.5, x)
	frame, err := msgs[0].Value("frame")
	require.NoError(t, err)
	assert.Equal(t, "map", frame)

	_, err = msgs[1].Float("pose.position.x")
	assert.ErrorIs(t, err, ErrFieldMissing)

	_, err = ImportCSV(strings.NewReader("t,topic\n1,/a\n"))
	assert.Error(t, err)
	_, err = ImportCSV(strings.NewReader("time,topic\nabc,/a\n"))
	assert.ErrorContains(t, err, "row 2")
}

func TestMessageAccessors(t *testing.T) {
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"pose": {"orientation": {"x": 0, "y": 0, "z": 0.7071067811865476, "w": 0.7071067811865476}},
		"wpnts": [{"x_m": 1}, {"x_m": 2}],
		"name": "kart"
	}`), &payload))
	m := Message{Topic: "/t", Payload: payload}

	yaw, err := m.Yaw("pose.orientation")
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, yaw, 1e-12)

	l, err := m.List("wpnts")
	require.NoError(t, err)
	require.Len(t, l, 2)
	wp, err := m.Sub(l[1])
	require.NoError(t, err)
	x, err := wp.Float("x_m")
	require.NoError(t, err)
	assert.Equal(t, 2.0, x)

	x, err = m.Float("wpnts.0.x_m")
	require.NoError(t, err)
	assert.Equal(t, 1.0, x)

	_, err = m.Float("name")
	assert.ErrorIs(t, err, ErrFieldMissing)
	_, err = m.Float("wpnts.5.x_m")
	assert.ErrorIs(t, err, ErrFieldMissing)
	_, err = m.List("name")
	assert.ErrorIs(t, err, ErrFieldMissing)
	_, err = m.Yaw("pose")
	assert.ErrorIs(t, err, ErrFieldMissing)
}

func TestMemoryLog(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryLog()
	log.Add("run", odom("/odom", 2, 2), odom("/gt", 1, 1), odom("/odom", 0, 0))

	var ts []float64
	require.NoError(t, log.Messages(ctx, "run", []string{"/odom"}, func(m Message) error {
		ts = append(ts, m.Timestamp)
		return nil
	}))
	assert.Equal(t, []float64{0, 2}, ts)

	n, err := log.Count(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	topics, err := log.Topics(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, []TopicInfo{
		{Topic: "/gt", Messages: 1, First: 1, Last: 1},
		{Topic: "/odom", Messages: 2, First: 0, Last: 2},
	}, topics)

	_, err = log.Count(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
