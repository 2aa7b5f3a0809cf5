package recording

import (
	"context"
	"fmt"
	"sort"
)

// Reader serves the messages of named recordings in time order.
type Reader interface {
	// Messages calls fn for every message of recording on one of topics
	// (all topics when empty), ordered by timestamp then arrival order.
	// Iteration stops at the first error fn returns.
	Messages(ctx context.Context, recording string, topics []string, fn func(Message) error) error
	// Count returns the number of messages on topics (all when empty).
	Count(ctx context.Context, recording string, topics ...string) (int, error)
	// Topics summarises the topics present in recording.
	Topics(ctx context.Context, recording string) ([]TopicInfo, error)
}

// TopicInfo summarises one topic of a recording.
type TopicInfo struct {
	Topic    string  `json:"topic"`
	Messages int     `json:"messages"`
	First    float64 `json:"first"`
	Last     float64 `json:"last"`
}

// MemoryLog is an in-memory Reader keyed by recording name.
type MemoryLog struct {
	recordings map[string][]Message
}

// NewMemoryLog returns an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{recordings: make(map[string][]Message)}
}

// Add appends messages to the named recording.
func (l *MemoryLog) Add(recording string, msgs ...Message) {
	l.recordings[recording] = append(l.recordings[recording], msgs...)
}

func (l *MemoryLog) sorted(recording string) ([]Message, error) {
	msgs, ok := l.recordings[recording]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, recording)
	}
	out := append([]Message(nil), msgs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (l *MemoryLog) Messages(ctx context.Context, recording string, topics []string, fn func(Message) error) error {
	msgs, err := l.sorted(recording)
	if err != nil {
		return err
	}
	want := topicSet(topics)
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if want != nil && !want[m.Topic] {
			continue
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func (l *MemoryLog) Count(ctx context.Context, recording string, topics ...string) (int, error) {
	n := 0
	err := l.Messages(ctx, recording, topics, func(Message) error {
		n++
		return nil
	})
	return n, err
}

func (l *MemoryLog) Topics(ctx context.Context, recording string) ([]TopicInfo, error) {
	msgs, err := l.sorted(recording)
	if err != nil {
		return nil, err
	}
	byTopic := map[string]*TopicInfo{}
	for _, m := range msgs {
		info, ok := byTopic[m.Topic]
		if !ok {
			info = &TopicInfo{Topic: m.Topic, First: m.Timestamp}
			byTopic[m.Topic] = info
		}
		info.Messages++
		info.Last = m.Timestamp
	}
	out := make([]TopicInfo, 0, len(byTopic))
	for _, info := range byTopic {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out, nil
}

func topicSet(topics []string) map[string]bool {
	if len(topics) == 0 {
		return nil
	}
	set := make(map[string]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}
	return set
}
