// Package align estimates the rigid 2D transform that overlays one point
// sequence (the moving trajectory) onto another (the reference) when the two
// were recorded in different frames, and reports the nearest-neighbour
// correspondence between them.
package align

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInput is returned when either point sequence is empty or
	// contains non-finite coordinates.
	ErrInvalidInput = errors.New("align: invalid input")
	// ErrConvergence is returned when no minimiser run converged.
	ErrConvergence = errors.New("align: minimiser failed to converge")
)

// Point2D is a trajectory point. The auxiliary fields travel with the point
// through alignment unchanged.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`

	Speed     float64 `json:"speed,omitempty"`
	Heading   float64 `json:"heading,omitempty"`
	Curvature float64 `json:"curvature,omitempty"`
	S         float64 `json:"s,omitempty"`
	Accel     float64 `json:"accel,omitempty"`
}

// RigidTransform2D maps p to R(Theta)·p + (DX, DY), where R rotates
// counter-clockwise by Theta radians.
type RigidTransform2D struct {
	DX    float64 `json:"dx"`
	DY    float64 `json:"dy"`
	Theta float64 `json:"theta"`
}

// Apply transforms the coordinates of p, leaving auxiliary fields untouched.
func (t RigidTransform2D) Apply(p Point2D) Point2D {
	sin, cos := math.Sincos(t.Theta)
	x, y := p.X, p.Y
	p.X = cos*x - sin*y + t.DX
	p.Y = sin*x + cos*y + t.DY
	return p
}

// ApplyAll returns a transformed copy of points.
func (t RigidTransform2D) ApplyAll(points []Point2D) []Point2D {
	out := make([]Point2D, len(points))
	for i, p := range points {
		out[i] = t.Apply(p)
	}
	return out
}

// Inverse returns the transform that undoes t.
func (t RigidTransform2D) Inverse() RigidTransform2D {
	sin, cos := math.Sincos(-t.Theta)
	return RigidTransform2D{
		DX:    -(cos*t.DX - sin*t.DY),
		DY:    -(sin*t.DX + cos*t.DY),
		Theta: -t.Theta,
	}
}

// Normalized returns t with Theta wrapped into (-π, π].
func (t RigidTransform2D) Normalized() RigidTransform2D {
	t.Theta = WrapAngle(t.Theta)
	return t
}

// WrapAngle wraps a into (-π, π].
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// AlignmentResult is the outcome of Align.
type AlignmentResult struct {
	Transform RigidTransform2D `json:"transform"`
	// MeanSquaredError is averaged over both coordinates of every matched
	// pair, i.e. half the mean squared distance.
	MeanSquaredError float64 `json:"mean_squared_error"`
	// MatchedIndices[i] is the index into the moving sequence matched to
	// reference point i.
	MatchedIndices []int `json:"matched_indices"`
	// MatchedPoints[i] is moving[MatchedIndices[i]] after transformation,
	// carrying its auxiliary fields.
	MatchedPoints []Point2D `json:"-"`
	// Iterations used by the winning minimiser run.
	Iterations int `json:"iterations"`
	// Seed is the index of the starting point that produced the result.
	Seed int `json:"seed"`
}

func validate(points []Point2D, name string) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: %s sequence is empty", ErrInvalidInput, name)
	}
	for _, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("%w: %s sequence has non-finite coordinates", ErrInvalidInput, name)
		}
	}
	return nil
}
