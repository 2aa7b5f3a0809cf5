package evaluation

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/drive.eval/internal/monitoring"
	"github.com/banshee-data/drive.eval/internal/recording"
)

// TransformTopics carry lists of transforms, each with its own header.
var TransformTopics = []string{"/tf", "/tf_static"}

// StampOptions configures FindDuplicateStamps.
type StampOptions struct {
	Topic string
	// FrameID restricts transform topics to transforms in this frame.
	FrameID string
}

// DuplicateStamp is a header stamp seen more than once on a topic.
type DuplicateStamp struct {
	Topic   string  `json:"topic"`
	FrameID string  `json:"frame_id,omitempty"`
	Stamp   float64 `json:"stamp"`
	// Count is the number of messages carrying the stamp.
	Count int `json:"count"`
}

// FindDuplicateStamps reports every header stamp that repeats on
// opts.Topic, in order of first repetition. On transform topics every
// transform's stamp is checked, per frame.
func FindDuplicateStamps(ctx context.Context, r recording.Reader, rec string, opts StampOptions) ([]DuplicateStamp, error) {
	ok, err := hasTopics(ctx, r, rec, opts.Topic)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: topic %s not in %s", ErrNoData, opts.Topic, rec)
	}
	transforms := false
	for _, t := range TransformTopics {
		transforms = transforms || t == opts.Topic
	}

	type key struct {
		frame string
		stamp int64
	}
	counts := map[key]int{}
	index := map[key]int{}
	var out []DuplicateStamp
	see := func(stamp int64, frame string) {
		k := key{frame, stamp}
		counts[k]++
		switch n := counts[k]; {
		case n == 2:
			index[k] = len(out)
			out = append(out, DuplicateStamp{Topic: opts.Topic, FrameID: frame, Stamp: float64(stamp) / 1e9, Count: n})
			monitoring.Logf("double timestamp on %s: %.9f %s", opts.Topic, float64(stamp)/1e9, frame)
		case n > 2:
			out[index[k]].Count = n
		}
	}

	err = r.Messages(ctx, rec, []string{opts.Topic}, func(m recording.Message) error {
		if !transforms {
			stamp, err := headerStamp(m)
			if err != nil {
				return err
			}
			see(stamp, "")
			return nil
		}
		list, err := m.List("transforms")
		if err != nil {
			return err
		}
		for _, el := range list {
			tf, err := m.Sub(el)
			if err != nil {
				return err
			}
			frame, _ := tf.Value("header.frame_id")
			frameID, _ := frame.(string)
			if opts.FrameID != "" && frameID != opts.FrameID {
				continue
			}
			stamp, err := headerStamp(tf)
			if err != nil {
				return err
			}
			see(stamp, frameID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("check stamps of %s in %s: %w", opts.Topic, rec, err)
	}
	return out, nil
}

// headerStamp returns header.stamp in nanoseconds. The stamp is either a
// number of seconds or an object of secs and nsecs (sec and nanosec).
func headerStamp(m recording.Message) (int64, error) {
	if f, err := m.Float("header.stamp"); err == nil {
		return int64(math.Round(f * 1e9)), nil
	}
	for _, names := range [][2]string{{"secs", "nsecs"}, {"sec", "nanosec"}} {
		secs, err := m.Float("header.stamp." + names[0])
		if err != nil {
			continue
		}
		nsecs, _ := m.Float("header.stamp." + names[1])
		return int64(secs)*1_000_000_000 + int64(nsecs), nil
	}
	return 0, fmt.Errorf("%w: no header stamp on %s", recording.ErrFieldMissing, m.Topic)
}
