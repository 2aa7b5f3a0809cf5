// Package testutil provides shared test utilities and synthetic drive-log
// fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/drive.eval/internal/align"
	"github.com/banshee-data/drive.eval/internal/recording"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// State is one kinematic state of the synthetic vehicle.
type State struct {
	T               float64
	X, Y, Yaw       float64
	VX, VY, YawRate float64
}

// Quaternion returns the {x, y, z, w} payload object of a pure yaw rotation.
func Quaternion(yaw float64) map[string]any {
	sin, cos := math.Sincos(yaw / 2)
	return map[string]any{"x": 0.0, "y": 0.0, "z": sin, "w": cos}
}

// OdometryMessage encodes s as a nav_msgs/Odometry-shaped payload.
func OdometryMessage(topic string, s State) recording.Message {
	return recording.Message{
		Topic:     topic,
		Timestamp: s.T,
		Payload: map[string]any{
			"pose": map[string]any{"pose": map[string]any{
				"position":    map[string]any{"x": s.X, "y": s.Y, "z": 0.0},
				"orientation": Quaternion(s.Yaw),
			}},
			"twist": map[string]any{"twist": map[string]any{
				"linear":  map[string]any{"x": s.VX, "y": s.VY, "z": 0.0},
				"angular": map[string]any{"x": 0.0, "y": 0.0, "z": s.YawRate},
			}},
		},
	}
}

// PoseMessage encodes the pose of s as a TransformStamped-shaped payload.
func PoseMessage(topic string, s State) recording.Message {
	return recording.Message{
		Topic:     topic,
		Timestamp: s.T,
		Payload: map[string]any{
			"transform": map[string]any{
				"translation": map[string]any{"x": s.X, "y": s.Y, "z": 0.0},
				"rotation":    Quaternion(s.Yaw),
			},
		},
	}
}

// CircleDrive samples a vehicle driving counter-clockwise around a circle of
// the given radius centred on the origin at constant speed, starting at
// (radius, 0) heading north. Samples are dt apart from t0.
func CircleDrive(n int, t0, dt, radius, speed float64) []State {
	omega := speed / radius
	out := make([]State, n)
	for i := range out {
		t := t0 + float64(i)*dt
		phi := omega * (t - t0)
		sin, cos := math.Sincos(phi)
		out[i] = State{
			T:       t,
			X:       radius * cos,
			Y:       radius * sin,
			Yaw:     wrap(phi + math.Pi/2),
			VX:      speed,
			YawRate: omega,
		}
	}
	return out
}

// Shift returns states with every pose offset by (dx, dy) and every time by dt.
func Shift(states []State, dx, dy, dt float64) []State {
	out := make([]State, len(states))
	for i, s := range states {
		s.X += dx
		s.Y += dy
		s.T += dt
		out[i] = s
	}
	return out
}

// OdometryLog encodes states as odometry messages on topic.
func OdometryLog(topic string, states []State) []recording.Message {
	out := make([]recording.Message, len(states))
	for i, s := range states {
		out[i] = OdometryMessage(topic, s)
	}
	return out
}

// PoseLog encodes states as pose messages on topic.
func PoseLog(topic string, states []State) []recording.Message {
	out := make([]recording.Message, len(states))
	for i, s := range states {
		out[i] = PoseMessage(topic, s)
	}
	return out
}

// Track returns an asymmetric closed track of n points: an ellipse with a
// bulge on one side, so no rotation maps it onto itself. Headings, speeds,
// accelerations and arc lengths are filled in.
func Track(n int) []align.Point2D {
	pts := make([]align.Point2D, n)
	s := 0.0
	for i := range pts {
		phi := 2 * math.Pi * float64(i) / float64(n)
		r := 1 + 0.3*math.Cos(phi)
		pts[i] = align.Point2D{
			X:     12 * r * math.Cos(phi),
			Y:     5 * r * math.Sin(phi),
			Speed:     6 + math.Sin(phi),
			Accel:     math.Cos(phi),
			Curvature: 0.1 + 0.05*math.Cos(phi),
		}
		if i > 0 {
			s += math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y)
		}
		pts[i].S = s
	}
	for i := range pts {
		next := pts[(i+1)%n]
		pts[i].Heading = math.Atan2(next.Y-pts[i].Y, next.X-pts[i].X)
	}
	return pts
}

// WaypointMessage encodes points as a waypoint array payload under "wpnts".
func WaypointMessage(topic string, t float64, points []align.Point2D) recording.Message {
	wpnts := make([]any, len(points))
	for i, p := range points {
		wpnts[i] = map[string]any{
			"id":          float64(i),
			"x_m":         p.X,
			"y_m":         p.Y,
			"psi_rad":     p.Heading,
			"vx_mps":      p.Speed,
			"ax_mps2":     p.Accel,
			"s_m":         p.S,
			"kappa_radpm": p.Curvature,
		}
	}
	return recording.Message{Topic: topic, Timestamp: t, Payload: map[string]any{"wpnts": wpnts}}
}

// ScalarUpdate encodes a parameter update whose doubles carry values.
func ScalarUpdate(topic string, t float64, values ...float64) recording.Message {
	doubles := make([]any, len(values))
	for i, v := range values {
		doubles[i] = map[string]any{"name": "scale", "value": v}
	}
	return recording.Message{Topic: topic, Timestamp: t, Payload: map[string]any{"doubles": doubles}}
}

// LapMessage encodes a finished lap.
func LapMessage(topic string, t, lapTime, avgErr, maxErr float64) recording.Message {
	return recording.Message{Topic: topic, Timestamp: t, Payload: map[string]any{
		"lap_time": lapTime,
		"average_lateral_error_to_global_waypoints": avgErr,
		"max_lateral_error_to_global_waypoints":     maxErr,
	}}
}

func wrap(a float64) float64 {
	return math.Atan2(math.Sin(a), math.Cos(a))
}
