package evaluation

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/drive.eval/internal/align"
	"github.com/banshee-data/drive.eval/internal/recording"
	"github.com/banshee-data/drive.eval/internal/testutil"
)

func TestTransformsFromOdometry(t *testing.T) {
	ctx := context.Background()
	states := testutil.CircleDrive(10, 5, 0.1, 4, 1)
	log := recording.NewMemoryLog()
	log.Add("drive", testutil.OdometryLog("/odom", states)...)

	tfs, err := TransformsFromOdometry(ctx, log, "drive", DefaultTransformOptions("/odom"))
	require.NoError(t, err)
	require.Len(t, tfs, len(states))

	m := tfs[3]
	assert.Equal(t, "/tf", m.Topic)
	assert.Equal(t, states[3].T, m.Timestamp)
	list, err := m.List("transforms")
	require.NoError(t, err)
	require.Len(t, list, 1)
	tf, err := m.Sub(list[0])
	require.NoError(t, err)
	x, err := tf.Float("transform.translation.x")
	require.NoError(t, err)
	assert.Equal(t, states[3].X, x)
	yaw, err := tf.Yaw("transform.rotation")
	require.NoError(t, err)
	assert.InDelta(t, states[3].Yaw, yaw, 1e-9)
	frame, err := tf.Value("child_frame_id")
	require.NoError(t, err)
	assert.Equal(t, "base_link", frame)

	// The generated stream is a valid transform topic without repeats.
	log.Add("with_tf", tfs...)
	dups, err := FindDuplicateStamps(ctx, log, "with_tf", StampOptions{Topic: "/tf", FrameID: "map"})
	require.NoError(t, err)
	assert.Empty(t, dups)

	t.Run("fixed rate", func(t *testing.T) {
		opts := DefaultTransformOptions("/odom")
		opts.Rate = 20
		tfs, err := TransformsFromOdometry(ctx, log, "drive", opts)
		require.NoError(t, err)
		tf, err := tfs[4].Sub(tfs[4].Payload["transforms"].([]any)[0])
		require.NoError(t, err)
		stamp, err := tf.Float("header.stamp")
		require.NoError(t, err)
		assert.InDelta(t, 5.2, stamp, 1e-12)
	})

	t.Run("header stamp", func(t *testing.T) {
		msg := testutil.OdometryMessage("/odom", states[0])
		msg.Payload["header"] = map[string]any{"stamp": map[string]any{"secs": 7.0, "nsecs": 5e8}}
		log.Add("stamped", msg)
		tfs, err := TransformsFromOdometry(ctx, log, "stamped", DefaultTransformOptions("/odom"))
		require.NoError(t, err)
		tf, err := tfs[0].Sub(tfs[0].Payload["transforms"].([]any)[0])
		require.NoError(t, err)
		stamp, err := tf.Float("header.stamp")
		require.NoError(t, err)
		assert.Equal(t, 7.5, stamp)
	})

	_, err = TransformsFromOdometry(ctx, log, "drive", DefaultTransformOptions("/missing"))
	assert.ErrorIs(t, err, ErrNoData)
}

// npcDrive follows wpnts from a point behind the first waypoint, each step
// heading for the waypoint of the same index at scalar times its speed.
func npcDrive(wpnts []align.Point2D, n int, dt, scalar float64) []NPCPose {
	poses := []NPCPose{{T: 0, X: wpnts[0].X - 1, Y: wpnts[0].Y}}
	for i := 0; i+1 < n; i++ {
		cur, w := poses[i], wpnts[i]
		dx, dy := w.X-cur.X, w.Y-cur.Y
		step := w.Speed * scalar * dt / math.Hypot(dx, dy)
		poses = append(poses, NPCPose{T: cur.T + dt, X: cur.X + dx*step, Y: cur.Y + dy*step})
	}
	return poses
}

func TestFitVelocityScalar(t *testing.T) {
	wpnts := testutil.Track(120)
	poses := npcDrive(wpnts, 60, 0.05, 0.55)

	scalar, e, err := FitVelocityScalar(poses, wpnts, 0.4)
	require.NoError(t, err)
	assert.InDelta(t, 0.55, scalar, 1e-6)
	assert.InDelta(t, 0, e, 1e-12)
	assert.Greater(t, VelocityScalarError(poses, wpnts, 0.4), e)

	_, _, err = FitVelocityScalar(poses[:1], wpnts, 0.4)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestNPCOdometry(t *testing.T) {
	ctx := context.Background()
	wpnts := testutil.Track(120)
	poses := npcDrive(wpnts, 60, 0.05, 0.55)

	log := recording.NewMemoryLog()
	for _, p := range poses {
		log.Add("npc", recording.Message{Topic: DefaultNPCPoseTopic, Timestamp: 100 + p.T, Payload: map[string]any{
			"header": map[string]any{"stamp": p.T},
			"pose": map[string]any{
				"position":    map[string]any{"x": p.X, "y": p.Y, "z": 0.0},
				"orientation": testutil.Quaternion(0),
			},
		}})
	}

	res, err := NPCOdometry(ctx, log, "npc", wpnts, DefaultNPCOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0.55, res.Scalar, 1e-6)
	assert.Equal(t, 60, res.Poses)
	require.Len(t, res.Messages, 60)

	m := res.Messages[10]
	assert.Equal(t, DefaultNPCOdomTopic, m.Topic)
	assert.InDelta(t, poses[10].T, m.Timestamp, 1e-9)
	x, err := m.Float("pose.pose.position.x")
	require.NoError(t, err)
	assert.Equal(t, poses[10].X, x)
	vx, err := m.Float("twist.twist.linear.x")
	require.NoError(t, err)
	assert.InDelta(t, wpnts[10].Speed*0.55, vx, 1e-5)
	wz, err := m.Float("twist.twist.angular.z")
	require.NoError(t, err)
	assert.InDelta(t, wpnts[10].Curvature*vx, wz, 1e-12)

	_, err = NPCOdometry(ctx, log, "npc", wpnts, NPCOptions{PoseTopic: "/none", PosePath: "pose"})
	assert.ErrorIs(t, err, ErrNoData)
}
