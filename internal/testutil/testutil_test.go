package testutil

import (
	"math"
	"testing"
)

func TestCircleDrive(t *testing.T) {
	states := CircleDrive(40, 10, 0.1, 5, 2)
	if len(states) != 40 {
		t.Fatalf("len = %d, want 40", len(states))
	}
	if states[0].T != 10 || states[0].X != 5 || states[0].Y != 0 {
		t.Errorf("first state = %+v", states[0])
	}
	for i, s := range states {
		if r := math.Hypot(s.X, s.Y); math.Abs(r-5) > 1e-9 {
			t.Errorf("state %d radius = %v, want 5", i, r)
		}
	}
	if math.Abs(states[0].Yaw-math.Pi/2) > 1e-12 {
		t.Errorf("initial yaw = %v, want pi/2", states[0].Yaw)
	}
}

func TestOdometryMessageRoundTrip(t *testing.T) {
	m := OdometryMessage("/odom", State{T: 1, X: 2, Y: 3, Yaw: -2.5, VX: 4, VY: 0.5, YawRate: 0.1})
	x, err := m.Float("pose.pose.position.x")
	AssertNoError(t, err)
	if x != 2 {
		t.Errorf("x = %v, want 2", x)
	}
	yaw, err := m.Yaw("pose.pose.orientation")
	AssertNoError(t, err)
	if math.Abs(yaw+2.5) > 1e-12 {
		t.Errorf("yaw = %v, want -2.5", yaw)
	}
	_, err = PoseMessage("/pose", State{}).Float("twist.twist.linear.x")
	AssertError(t, err)
}

func TestTrackIsClosedAndOrdered(t *testing.T) {
	pts := Track(100)
	for i := 1; i < len(pts); i++ {
		if pts[i].S <= pts[i-1].S {
			t.Fatalf("arc length not increasing at %d", i)
		}
	}
	if math.Abs(pts[0].X-15.6) > 1e-9 {
		t.Errorf("first x = %v, want 15.6", pts[0].X)
	}
}
