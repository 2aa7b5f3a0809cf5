// Package evaluation runs the drive-log evaluations: estimate against ground
// truth, commanded against measured values, state-estimate comparison across
// runs, waypoint alignment, trajectory and rolling-mean extraction, best-lap
// search and duplicate stamp checks. Pipelines read recordings through a
// recording.Reader and return plain results; writing files is left to the
// caller.
package evaluation

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/drive.eval/internal/config"
	"github.com/banshee-data/drive.eval/internal/recording"
	"github.com/banshee-data/drive.eval/internal/timesync"
)

// ErrNoData is returned when a pipeline finds no usable messages or pairs.
var ErrNoData = errors.New("evaluation: no usable data")

// SyncConfig builds the synchronizer settings from cfg.
func SyncConfig(cfg *config.EvalConfig) (timesync.Config, error) {
	strategy, err := timesync.ParseStrategy(cfg.GetLookupStrategy())
	if err != nil {
		return timesync.Config{}, err
	}
	return timesync.Config{
		MaxTimeDelta: cfg.GetMaxTimeDelta(),
		Window:       cfg.GetSearchWindow(),
		Strategy:     strategy,
	}, nil
}

// Odometry is one decoded pose and twist sample. Velocities are in the body
// frame; angles are in radians.
type Odometry struct {
	X, Y, Yaw       float64
	VX, VY, YawRate float64
}

// decodeOdometry reads the pose of m and, when withTwist is set, the twist.
func decodeOdometry(m recording.Message, f config.OdometryFields, withTwist bool) (Odometry, error) {
	var o Odometry
	var err error
	if o.X, err = m.Float(f.X); err != nil {
		return o, err
	}
	if o.Y, err = m.Float(f.Y); err != nil {
		return o, err
	}
	if o.Yaw, err = m.Yaw(f.Orientation); err != nil {
		return o, err
	}
	if !withTwist {
		return o, nil
	}
	if o.VX, err = m.Float(f.VX); err != nil {
		return o, err
	}
	if o.VY, err = m.Float(f.VY); err != nil {
		return o, err
	}
	if o.YawRate, err = m.Float(f.YawRate); err != nil {
		return o, err
	}
	return o, nil
}

// loadOdometry buffers every sample of topic in rec.
func loadOdometry(ctx context.Context, r recording.Reader, rec, topic string, f config.OdometryFields, withTwist bool) (*timesync.SampleBuffer[Odometry], error) {
	var b timesync.BufferBuilder[Odometry]
	err := r.Messages(ctx, rec, []string{topic}, func(m recording.Message) error {
		o, err := decodeOdometry(m, f, withTwist)
		if err != nil {
			return err
		}
		b.Add(o, m.Timestamp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s from %s: %w", topic, rec, err)
	}
	return b.Build()
}

// loadScalar buffers the number at path of every message on topic.
func loadScalar(ctx context.Context, r recording.Reader, rec, topic, path string) (*timesync.SampleBuffer[float64], error) {
	var b timesync.BufferBuilder[float64]
	err := r.Messages(ctx, rec, []string{topic}, func(m recording.Message) error {
		v, err := m.Float(path)
		if err != nil {
			return err
		}
		b.Add(v, m.Timestamp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s from %s: %w", topic, rec, err)
	}
	return b.Build()
}
