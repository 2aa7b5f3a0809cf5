package recording

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/drive.eval/internal/metrics"
)

// Message is one recorded message: its topic, the time it was recorded (in
// seconds), and its decoded payload.
type Message struct {
	Topic     string         `json:"topic"`
	Timestamp float64        `json:"t"`
	Payload   map[string]any `json:"msg"`
}

// Value returns the payload value at a dotted path such as
// "pose.pose.position.x". Numeric segments index into lists, so
// "wpnts.0.x_m" is the x_m field of the first waypoint.
func (m Message) Value(path string) (any, error) {
	var cur any = m.Payload
	if path == "" {
		return cur, nil
	}
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("%w: %s (no %q) on %s", ErrFieldMissing, path, seg, m.Topic)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("%w: %s (bad index %q) on %s", ErrFieldMissing, path, seg, m.Topic)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("%w: %s (%q is not a container) on %s", ErrFieldMissing, path, seg, m.Topic)
		}
	}
	return cur, nil
}

// Float returns the number at path.
func (m Message) Float(path string) (float64, error) {
	v, err := m.Value(path)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T, not a number", ErrFieldMissing, path, v)
	}
	return f, nil
}

// List returns the list at path.
func (m Message) List(path string) ([]any, error) {
	v, err := m.Value(path)
	if err != nil {
		return nil, err
	}
	l, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T, not a list", ErrFieldMissing, path, v)
	}
	return l, nil
}

// Yaw returns the heading, in radians, of the quaternion object {x, y, z, w}
// at path.
func (m Message) Yaw(path string) (float64, error) {
	var q [4]float64
	for i, c := range []string{"x", "y", "z", "w"} {
		f, err := m.Float(path + "." + c)
		if err != nil {
			return 0, err
		}
		q[i] = f
	}
	return metrics.YawFromQuaternion(q[0], q[1], q[2], q[3]), nil
}

// Sub wraps an element of a list field (such as one waypoint) as a Message
// so the same dotted-path accessors apply to it.
func (m Message) Sub(v any) (Message, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Message{}, fmt.Errorf("%w: list element on %s is %T, not an object", ErrFieldMissing, m.Topic, v)
	}
	return Message{Topic: m.Topic, Timestamp: m.Timestamp, Payload: obj}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// setPath stores v at a dotted path, creating intermediate objects.
func setPath(payload map[string]any, path string, v any) {
	segs := strings.Split(path, ".")
	node := payload
	for _, seg := range segs[:len(segs)-1] {
		next, ok := node[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[seg] = next
		}
		node = next
	}
	node[segs[len(segs)-1]] = v
}
