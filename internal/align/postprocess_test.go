package align

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestDedupPoints(t *testing.T) {
	t.Parallel()
	in := []Point2D{
		{X: 0, Y: 0, Speed: 1},
		{X: 1, Y: 0, Speed: 2},
		{X: 0, Y: 0, Speed: 3},
		{X: 1, Y: 1, Speed: 4},
		{X: 1, Y: 0, Speed: 5},
	}
	want := []Point2D{
		{X: 0, Y: 0, Speed: 1},
		{X: 1, Y: 0, Speed: 2},
		{X: 1, Y: 1, Speed: 4},
	}
	if diff := cmp.Diff(want, DedupPoints(in)); diff != "" {
		t.Errorf("DedupPoints mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, DedupPoints(nil))
}

func TestResampleArcLength(t *testing.T) {
	t.Parallel()
	pts := []Point2D{{S: 0}, {S: 0.1}, {S: 3.9}, {S: 2}, {S: 4}}
	ResampleArcLength(pts)
	for i, want := range []float64{0, 1, 2, 3, 4} {
		assert.InDelta(t, want, pts[i].S, 1e-12)
	}

	single := []Point2D{{S: 7}}
	ResampleArcLength(single)
	assert.Equal(t, 0.0, single[0].S)

	ResampleArcLength(nil)
}

func TestRotateHeadings(t *testing.T) {
	t.Parallel()
	pts := []Point2D{{Heading: 0}, {Heading: 1}}
	RotateHeadings(pts, -0.5)
	assert.InDelta(t, -0.5, pts[0].Heading, 1e-12)
	assert.InDelta(t, 0.5, pts[1].Heading, 1e-12)
}

func TestInverse(t *testing.T) {
	t.Parallel()
	tr := RigidTransform2D{DX: 1.25, DY: -3, Theta: 2.2}
	p := Point2D{X: -0.7, Y: 4.1, Speed: 9}
	got := tr.Inverse().Apply(tr.Apply(p))
	assert.InDelta(t, p.X, got.X, 1e-12)
	assert.InDelta(t, p.Y, got.Y, 1e-12)
	assert.Equal(t, p.Speed, got.Speed)
}

func TestWrapAngle(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-5 * math.Pi / 2, -math.Pi / 2},
		{4 * math.Pi, 0},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, WrapAngle(c.in), 1e-12, "WrapAngle(%v)", c.in)
	}
}

func TestNearestIndex(t *testing.T) {
	t.Parallel()
	idx := NewNearestIndex([]Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 5, Y: 5}})
	j, d := idx.Nearest(6, 4)
	assert.Equal(t, 2, j)
	assert.InDelta(t, 2, d, 1e-12)

	j, _ = NewNearestIndex(nil).Nearest(0, 0)
	assert.Equal(t, -1, j)
}
