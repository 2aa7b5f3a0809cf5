package align

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lShape returns an asymmetric L: a 4 m leg along X and a 2 m leg along Y,
// sampled every 0.5 m. It has no rotational symmetry, so the aligning
// transform is unique.
func lShape() []Point2D {
	var pts []Point2D
	for i := 0; i <= 8; i++ {
		pts = append(pts, Point2D{X: float64(i) * 0.5, Y: 0, S: float64(i) * 0.5})
	}
	for i := 1; i <= 4; i++ {
		pts = append(pts, Point2D{X: 0, Y: float64(i) * 0.5, S: 4 + float64(i)*0.5})
	}
	return pts
}

func TestAlign_LineScenario(t *testing.T) {
	t.Parallel()
	reference := []Point2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}}
	moving := []Point2D{{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 5, Y: 7}, {X: 5, Y: 8}}

	res, err := Align(reference, moving, DefaultOptions())
	require.NoError(t, err)

	assert.Less(t, res.MeanSquaredError, 1e-6)
	assert.InDelta(t, math.Pi/2, math.Abs(res.Transform.Theta), 1e-3)

	// A collinear, evenly spaced reference is fitted exactly by both
	// orientations of the moving line; the translation must agree with
	// whichever rotation was chosen.
	if res.Transform.Theta < 0 {
		assert.InDelta(t, -5, res.Transform.DX, 1e-3)
		assert.InDelta(t, 5, res.Transform.DY, 1e-3)
	} else {
		assert.InDelta(t, 8, res.Transform.DX, 1e-3)
		assert.InDelta(t, -5, res.Transform.DY, 1e-3)
	}

	for _, p := range res.Transform.ApplyAll(moving) {
		j, d := NewNearestIndex(reference).Nearest(p.X, p.Y)
		require.GreaterOrEqual(t, j, 0)
		assert.Less(t, math.Sqrt(d), 1e-3)
	}
}

func TestAlign_ForwardConvention(t *testing.T) {
	t.Parallel()
	// R(-π/2) maps the moving line's +Y direction onto +X.
	tr := RigidTransform2D{DX: -5, DY: 5, Theta: -math.Pi / 2}
	got := tr.Apply(Point2D{X: 5, Y: 6})
	assert.InDelta(t, 1, got.X, 1e-12)
	assert.InDelta(t, 0, got.Y, 1e-12)
}

func TestAlign_RoundTripRecoversInverse(t *testing.T) {
	t.Parallel()
	reference := lShape()
	known := RigidTransform2D{DX: 3, DY: -2, Theta: 0.7}
	moving := known.ApplyAll(reference)

	for _, method := range []Method{MethodICP, MethodBFGS} {
		method := method
		t.Run(method.String(), func(t *testing.T) {
			t.Parallel()
			opts := DefaultOptions()
			opts.Method = method
			res, err := Align(reference, moving, opts)
			require.NoError(t, err)

			want := known.Inverse()
			assert.InDelta(t, want.Theta, res.Transform.Theta, 1e-3)
			assert.InDelta(t, want.DX, res.Transform.DX, 1e-3)
			assert.InDelta(t, want.DY, res.Transform.DY, 1e-3)
			assert.Less(t, res.MeanSquaredError, 1e-6)

			back := res.Transform.ApplyAll(moving)
			for i := range reference {
				assert.InDelta(t, reference[i].X, back[i].X, 1e-3)
				assert.InDelta(t, reference[i].Y, back[i].Y, 1e-3)
				assert.Equal(t, i, res.MatchedIndices[i])
			}
		})
	}
}

func TestAlign_IdenticalSequences(t *testing.T) {
	t.Parallel()
	pts := lShape()
	cases := map[string]Options{
		"default":     DefaultOptions(),
		"icp single":  SingleStartOptions(MethodICP),
		"bfgs single": SingleStartOptions(MethodBFGS),
	}
	for name, opts := range cases {
		opts := opts
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			res, err := Align(pts, pts, opts)
			require.NoError(t, err)
			assert.InDelta(t, 0, res.Transform.Theta, 1e-9)
			assert.InDelta(t, 0, res.Transform.DX, 1e-9)
			assert.InDelta(t, 0, res.Transform.DY, 1e-9)
			assert.InDelta(t, 0, res.MeanSquaredError, 1e-12)
			assert.Equal(t, 0, res.Seed)
		})
	}
}

func TestAlign_SmallMisalignmentFromZero(t *testing.T) {
	t.Parallel()
	reference := lShape()
	known := RigidTransform2D{DX: 0.05, DY: -0.04, Theta: 0.02}
	moving := known.ApplyAll(reference)

	for _, method := range []Method{MethodICP, MethodBFGS} {
		res, err := Align(reference, moving, SingleStartOptions(method))
		require.NoError(t, err, method.String())
		want := known.Inverse()
		assert.InDelta(t, want.Theta, res.Transform.Theta, 1e-3, method.String())
		assert.InDelta(t, want.DX, res.Transform.DX, 1e-3, method.String())
		assert.InDelta(t, want.DY, res.Transform.DY, 1e-3, method.String())
	}
}

func TestAlign_NoisyEllipseFromZero(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))
	var reference []Point2D
	for i := 0; i < 200; i++ {
		phi := 2 * math.Pi * float64(i) / 200
		reference = append(reference, Point2D{X: 10 * math.Cos(phi), Y: 6 * math.Sin(phi)})
	}
	known := RigidTransform2D{DX: 0.3, DY: -0.2, Theta: 0.05}
	moving := known.ApplyAll(reference)
	for i := range moving {
		moving[i].X += 0.05 * rng.NormFloat64()
		moving[i].Y += 0.05 * rng.NormFloat64()
	}
	idx := make([]int, len(reference))
	atStart := NewNearestIndex(moving).nearestAll(reference, idx) / 2

	for _, method := range []Method{MethodICP, MethodBFGS} {
		res, err := Align(reference, moving, SingleStartOptions(method))
		require.NoError(t, err, method.String())
		assert.Less(t, res.MeanSquaredError, atStart, method.String())
	}
}

func TestAlign_UnequalLengths(t *testing.T) {
	t.Parallel()
	reference := lShape()
	// Every other point of a shifted copy.
	var moving []Point2D
	shift := RigidTransform2D{DX: 1.5, DY: 0.75}
	for i, p := range reference {
		if i%2 == 0 {
			moving = append(moving, shift.Apply(p))
		}
	}
	res, err := Align(reference, moving, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.MatchedIndices, len(reference))
	require.Len(t, res.MatchedPoints, len(reference))
	for _, j := range res.MatchedIndices {
		assert.GreaterOrEqual(t, j, 0)
		assert.Less(t, j, len(moving))
	}
	// Half the points are missing, so a residual remains, bounded by the
	// 0.5 m sample spacing.
	assert.Less(t, res.MeanSquaredError, 0.25)
}

func TestAlign_MatchedPointsCarryAuxiliaryFields(t *testing.T) {
	t.Parallel()
	reference := lShape()
	moving := make([]Point2D, len(reference))
	shift := RigidTransform2D{DX: -2, DY: 1}
	for i, p := range reference {
		p.Speed = float64(i)
		p.Heading = 0.1 * float64(i)
		p.Curvature = 0.01 * float64(i)
		moving[i] = shift.Apply(p)
	}

	res, err := Align(reference, moving, DefaultOptions())
	require.NoError(t, err)
	for i, p := range res.MatchedPoints {
		src := moving[res.MatchedIndices[i]]
		assert.Equal(t, src.Speed, p.Speed)
		assert.Equal(t, src.Heading, p.Heading)
		assert.Equal(t, src.Curvature, p.Curvature)
		assert.Equal(t, src.S, p.S)
		assert.InDelta(t, reference[i].X, p.X, 1e-6)
		assert.InDelta(t, reference[i].Y, p.Y, 1e-6)
	}
}

func TestAlign_InvalidInput(t *testing.T) {
	t.Parallel()
	pts := lShape()

	_, err := Align(pts, nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Align(nil, pts, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Align(pts, []Point2D{{X: math.NaN()}}, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAlign_ConvergenceFailure(t *testing.T) {
	t.Parallel()
	// Squared distances overflow, so the objective is never finite.
	reference := []Point2D{{X: 1e308, Y: 1e308}}
	moving := []Point2D{{X: -1e308, Y: -1e308}}

	for _, method := range []Method{MethodICP, MethodBFGS} {
		_, err := Align(reference, moving, SingleStartOptions(method))
		assert.ErrorIs(t, err, ErrConvergence, method.String())
	}
}

func TestSeeds_Order(t *testing.T) {
	t.Parallel()
	pts := []Point2D{{X: 1, Y: 1}}
	opts := Options{RotationSeeds: 4, InitialGuess: RigidTransform2D{DX: 2, DY: 3, Theta: 0.1}}
	got := seeds(pts, pts, opts)
	require.Len(t, got, 4)
	wantTheta := []float64{0.1, 0.1 - math.Pi/2, 0.1 + math.Pi/2, 0.1 - math.Pi}
	for i := range got {
		assert.InDelta(t, wantTheta[i], got[i].Theta, 1e-12)
		assert.Equal(t, 2.0, got[i].DX, "translation kept without centroid init")
		assert.Equal(t, 3.0, got[i].DY)
	}

	opts.CentroidInit = true
	for _, s := range seeds(pts, pts, opts) {
		p := s.Apply(pts[0])
		assert.InDelta(t, 1, p.X, 1e-12)
		assert.InDelta(t, 1, p.Y, 1e-12)
	}
}

func TestParseMethod(t *testing.T) {
	t.Parallel()
	m, err := ParseMethod("BFGS")
	require.NoError(t, err)
	assert.Equal(t, MethodBFGS, m)
	m, err = ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodICP, m)
	_, err = ParseMethod("svd")
	assert.Error(t, err)
}
