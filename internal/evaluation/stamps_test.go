package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/drive.eval/internal/recording"
)

func stamped(topic string, t float64, header map[string]any) recording.Message {
	return recording.Message{Topic: topic, Timestamp: t, Payload: map[string]any{"header": header}}
}

func rosStamp(secs, nsecs float64) map[string]any {
	return map[string]any{"stamp": map[string]any{"secs": secs, "nsecs": nsecs}}
}

func transform(frame string, sec, nanosec float64) map[string]any {
	return map[string]any{
		"header":         map[string]any{"frame_id": frame, "stamp": map[string]any{"sec": sec, "nanosec": nanosec}},
		"child_frame_id": "base_link",
	}
}

func TestFindDuplicateStamps(t *testing.T) {
	log := recording.NewMemoryLog()
	log.Add("run",
		stamped("/imu", 1.0, rosStamp(10, 500)),
		stamped("/imu", 1.1, rosStamp(10, 600)),
		stamped("/imu", 1.2, rosStamp(10, 500)),
		stamped("/imu", 1.3, map[string]any{"stamp": 11.25}),
		stamped("/imu", 1.4, map[string]any{"stamp": 11.25}),
		stamped("/imu", 1.5, rosStamp(10, 500)),
	)

	got, err := FindDuplicateStamps(context.Background(), log, "run", StampOptions{Topic: "/imu"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, DuplicateStamp{Topic: "/imu", Stamp: 10.0000005, Count: 3}, got[0])
	assert.Equal(t, 11.25, got[1].Stamp)
	assert.Equal(t, 2, got[1].Count)
}

func TestFindDuplicateStamps_Transforms(t *testing.T) {
	log := recording.NewMemoryLog()
	log.Add("run",
		recording.Message{Topic: "/tf", Timestamp: 1, Payload: map[string]any{"transforms": []any{
			transform("odom", 5, 0), transform("map", 5, 0),
		}}},
		recording.Message{Topic: "/tf", Timestamp: 2, Payload: map[string]any{"transforms": []any{
			transform("odom", 5, 0), transform("map", 6, 0),
		}}},
	)

	all, err := FindDuplicateStamps(context.Background(), log, "run", StampOptions{Topic: "/tf"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].Count)
	assert.Equal(t, "odom", all[0].FrameID)

	mapOnly, err := FindDuplicateStamps(context.Background(), log, "run", StampOptions{Topic: "/tf", FrameID: "map"})
	require.NoError(t, err)
	assert.Empty(t, mapOnly)

	odom, err := FindDuplicateStamps(context.Background(), log, "run", StampOptions{Topic: "/tf", FrameID: "odom"})
	require.NoError(t, err)
	require.Len(t, odom, 1)
	assert.Equal(t, 2, odom[0].Count)
}

func TestFindDuplicateStamps_Errors(t *testing.T) {
	log := recording.NewMemoryLog()
	log.Add("run", recording.Message{Topic: "/scan", Timestamp: 1, Payload: map[string]any{"ranges": []any{1.0}}})

	_, err := FindDuplicateStamps(context.Background(), log, "run", StampOptions{Topic: "/imu"})
	assert.ErrorIs(t, err, ErrNoData)

	_, err = FindDuplicateStamps(context.Background(), log, "run", StampOptions{Topic: "/scan"})
	assert.ErrorIs(t, err, recording.ErrFieldMissing)

	_, err = FindDuplicateStamps(context.Background(), log, "nope", StampOptions{Topic: "/scan"})
	assert.ErrorIs(t, err, recording.ErrNotFound)
}
