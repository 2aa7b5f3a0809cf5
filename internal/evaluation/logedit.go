package evaluation

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/banshee-data/drive.eval/internal/align"
	"github.com/banshee-data/drive.eval/internal/recording"
)

// TransformOptions configures TransformsFromOdometry.
type TransformOptions struct {
	// Topic is the odometry topic the transforms are built from.
	Topic string
	// PosePath locates the pose (position and orientation) in each message.
	PosePath     string
	FrameID      string
	ChildFrameID string
	// Rate, in Hz, restamps the transforms at a fixed rate from the first
	// odometry stamp. Zero keeps each message's own stamp.
	Rate float64
}

// DefaultTransformOptions reads nav_msgs/Odometry poses on topic into
// map -> base_link transforms.
func DefaultTransformOptions(topic string) TransformOptions {
	return TransformOptions{Topic: topic, PosePath: "pose.pose", FrameID: "map", ChildFrameID: "base_link"}
}

// TransformsFromOdometry builds one /tf message per odometry message of
// rec, stored at the odometry message's time. The header stamp is the
// odometry header stamp, or the message time when there is none.
func TransformsFromOdometry(ctx context.Context, r recording.Reader, rec string, opts TransformOptions) ([]recording.Message, error) {
	ok, err := hasTopics(ctx, r, rec, opts.Topic)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: topic %s not in %s", ErrNoData, opts.Topic, rec)
	}

	var (
		out   []recording.Message
		first float64
	)
	err = r.Messages(ctx, rec, []string{opts.Topic}, func(m recording.Message) error {
		stamp := m.Timestamp
		if ns, err := headerStamp(m); err == nil {
			stamp = float64(ns) / 1e9
		}
		if opts.Rate > 0 {
			if len(out) == 0 {
				first = stamp
			}
			stamp = first + float64(len(out))/opts.Rate
		}

		x, err := m.Float(opts.PosePath + ".position.x")
		if err != nil {
			return err
		}
		y, err := m.Float(opts.PosePath + ".position.y")
		if err != nil {
			return err
		}
		rotation, err := m.Value(opts.PosePath + ".orientation")
		if err != nil {
			return err
		}
		z, _ := m.Float(opts.PosePath + ".position.z")

		tf := map[string]any{
			"header":         map[string]any{"stamp": stamp, "frame_id": opts.FrameID},
			"child_frame_id": opts.ChildFrameID,
			"transform": map[string]any{
				"translation": map[string]any{"x": x, "y": y, "z": z},
				"rotation":    rotation,
			},
		}
		out = append(out, recording.Message{
			Topic:     TransformTopics[0],
			Timestamp: m.Timestamp,
			Payload:   map[string]any{"transforms": []any{tf}},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build transforms from %s in %s: %w", opts.Topic, rec, err)
	}
	return out, nil
}

// NPC topics of the simulator's traffic manager.
const (
	DefaultNPCPoseTopic = "/carla_interface/traffic_manager/npc_1/pose"
	DefaultNPCOdomTopic = "/carla_interface/traffic_manager/npc_1/odom"
)

// NPCOptions configures NPCOdometry.
type NPCOptions struct {
	PoseTopic string
	OdomTopic string
	// PosePath locates the pose in each pose message.
	PosePath string
	// InitialScalar starts the velocity scalar fit.
	InitialScalar float64
}

// DefaultNPCOptions reads geometry_msgs/PoseStamped NPC poses.
func DefaultNPCOptions() NPCOptions {
	return NPCOptions{
		PoseTopic:     DefaultNPCPoseTopic,
		OdomTopic:     DefaultNPCOdomTopic,
		PosePath:      "pose",
		InitialScalar: 0.4,
	}
}

// NPCPose is one recorded NPC pose.
type NPCPose struct {
	T, X, Y float64
	// Pose is the raw pose object, copied into the odometry message.
	Pose any
}

// NPCOdometryResult holds the fitted scalar and the odometry messages.
type NPCOdometryResult struct {
	Scalar   float64             `json:"scalar"`
	Error    float64             `json:"error"`
	Poses    int                 `json:"poses"`
	Messages []recording.Message `json:"-"`
}

// VelocityScalarError is the mean squared distance between each next pose
// and the pose predicted by driving from the current pose towards the
// matching waypoint at scalar times the waypoint speed. Poses and waypoints
// are paired by index.
func VelocityScalarError(poses []NPCPose, wpnts []align.Point2D, scalar float64) float64 {
	e, _ := scalarError(poses, wpnts, scalar)
	return e
}

// scalarError returns the error and its derivative in scalar.
func scalarError(poses []NPCPose, wpnts []align.Point2D, scalar float64) (float64, float64) {
	n := min(len(poses), len(wpnts)) - 1
	if n <= 0 {
		return math.NaN(), math.NaN()
	}
	var sum, grad float64
	for i := 0; i < n; i++ {
		cur, next, w := poses[i], poses[i+1], wpnts[i]
		dx, dy := w.X-cur.X, w.Y-cur.Y
		norm := math.Hypot(dx, dy)
		if norm == 0 {
			continue
		}
		step := w.Speed * (next.T - cur.T) / norm
		ex := cur.X + dx*step*scalar - next.X
		ey := cur.Y + dy*step*scalar - next.Y
		sum += ex*ex + ey*ey
		grad += 2 * (ex*dx*step + ey*dy*step)
	}
	return sum / float64(n), grad / float64(n)
}

// FitVelocityScalar minimises VelocityScalarError from initial.
func FitVelocityScalar(poses []NPCPose, wpnts []align.Point2D, initial float64) (float64, float64, error) {
	if min(len(poses), len(wpnts)) < 2 {
		return 0, 0, fmt.Errorf("%w: need two poses and waypoints to fit a velocity scalar", ErrNoData)
	}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			e, _ := scalarError(poses, wpnts, x[0])
			return e
		},
		Grad: func(grad, x []float64) {
			_, grad[0] = scalarError(poses, wpnts, x[0])
		},
	}
	settings := &optimize.Settings{GradientThreshold: 1e-10}
	res, err := optimize.Minimize(problem, []float64{initial}, settings, &optimize.BFGS{})
	if res == nil || math.IsNaN(res.F) || math.IsInf(res.F, 0) {
		return 0, 0, fmt.Errorf("fit velocity scalar: %w", err)
	}
	if err != nil && res.F > VelocityScalarError(poses, wpnts, initial) {
		return 0, 0, fmt.Errorf("fit velocity scalar (status %v): %w", res.Status, err)
	}
	return res.X[0], res.F, nil
}

// NPCOdometry fits the velocity scalar of the NPC poses of rec against the
// waypoints it follows, and builds one odometry message per pose paired
// with a waypoint: the pose as recorded, forward speed scalar*vx and yaw
// rate scalar*vx*kappa of the waypoint.
func NPCOdometry(ctx context.Context, r recording.Reader, rec string, wpnts []align.Point2D, opts NPCOptions) (NPCOdometryResult, error) {
	ok, err := hasTopics(ctx, r, rec, opts.PoseTopic)
	if err != nil {
		return NPCOdometryResult{}, err
	}
	if !ok {
		return NPCOdometryResult{}, fmt.Errorf("%w: topic %s not in %s", ErrNoData, opts.PoseTopic, rec)
	}

	var poses []NPCPose
	err = r.Messages(ctx, rec, []string{opts.PoseTopic}, func(m recording.Message) error {
		p := NPCPose{T: m.Timestamp}
		if ns, err := headerStamp(m); err == nil {
			p.T = float64(ns) / 1e9
		}
		var err error
		if p.X, err = m.Float(opts.PosePath + ".position.x"); err != nil {
			return err
		}
		if p.Y, err = m.Float(opts.PosePath + ".position.y"); err != nil {
			return err
		}
		if p.Pose, err = m.Value(opts.PosePath); err != nil {
			return err
		}
		poses = append(poses, p)
		return nil
	})
	if err != nil {
		return NPCOdometryResult{}, fmt.Errorf("read NPC poses from %s: %w", rec, err)
	}

	scalar, fitErr, err := FitVelocityScalar(poses, wpnts, opts.InitialScalar)
	if err != nil {
		return NPCOdometryResult{}, err
	}

	n := min(len(poses), len(wpnts))
	res := NPCOdometryResult{Scalar: scalar, Error: fitErr, Poses: len(poses), Messages: make([]recording.Message, n)}
	for i := 0; i < n; i++ {
		p, w := poses[i], wpnts[i]
		vx := w.Speed * scalar
		res.Messages[i] = recording.Message{
			Topic:     opts.OdomTopic,
			Timestamp: p.T,
			Payload: map[string]any{
				"header":         map[string]any{"stamp": p.T, "frame_id": "map"},
				"child_frame_id": "base_link",
				"pose":           map[string]any{"pose": p.Pose},
				"twist": map[string]any{"twist": map[string]any{
					"linear":  map[string]any{"x": vx, "y": 0.0, "z": 0.0},
					"angular": map[string]any{"x": 0.0, "y": 0.0, "z": w.Curvature * vx},
				}},
			},
		}
	}
	return res, nil
}
