package align

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/banshee-data/drive.eval/internal/monitoring"
)

// nnObjective is the mean squared nearest-neighbour distance from each
// reference point to the moving set transformed by x = (dx, dy, theta).
type nnObjective struct {
	ref, moving []Point2D
	idx         []int
}

func newNNObjective(ref, moving []Point2D) *nnObjective {
	return &nnObjective{ref: ref, moving: moving, idx: make([]int, len(ref))}
}

func (o *nnObjective) transform(x []float64) RigidTransform2D {
	return RigidTransform2D{DX: x[0], DY: x[1], Theta: x[2]}
}

func (o *nnObjective) Func(x []float64) float64 {
	index := NewNearestIndex(o.transform(x).ApplyAll(o.moving))
	return index.nearestAll(o.ref, o.idx)
}

// Grad is the analytic gradient of Func for the nearest-neighbour assignment
// at x. The assignment is piecewise constant, so this is exact almost
// everywhere.
func (o *nnObjective) Grad(grad, x []float64) {
	t := o.transform(x)
	index := NewNearestIndex(t.ApplyAll(o.moving))
	index.nearestAll(o.ref, o.idx)

	sin, cos := math.Sincos(t.Theta)
	var gx, gy, gt float64
	for i, r := range o.ref {
		m := o.moving[o.idx[i]]
		px := cos*m.X - sin*m.Y + t.DX
		py := sin*m.X + cos*m.Y + t.DY
		ex, ey := px-r.X, py-r.Y
		gx += 2 * ex
		gy += 2 * ey
		// d/dθ of R(θ)m is (-sin·mx - cos·my, cos·mx - sin·my).
		gt += 2 * (ex*(-sin*m.X-cos*m.Y) + ey*(cos*m.X-sin*m.Y))
	}
	n := float64(len(o.ref))
	grad[0], grad[1], grad[2] = gx/n, gy/n, gt/n
}

// zeroObjective is the objective value (squared metres) below which an
// optimiser error is treated as having reached the optimum.
const zeroObjective = 1e-12

// runBFGS minimises the nearest-neighbour objective with quasi-Newton
// updates starting from start.
//
// The objective has kinks wherever the nearest-neighbour assignment changes,
// and line searches that land on one stop early. A stopped run still counts
// when it reached zero or improved on the objective at start.
func runBFGS(ref, moving []Point2D, start RigidTransform2D, maxIter int) (icpRun, error) {
	obj := newNNObjective(ref, moving)
	problem := optimize.Problem{Func: obj.Func, Grad: obj.Grad}
	settings := &optimize.Settings{MajorIterations: maxIter, GradientThreshold: 1e-12}

	x0 := []float64{start.DX, start.DY, start.Theta}
	f0 := obj.Func(x0)
	res, err := optimize.Minimize(problem, x0, settings, &optimize.BFGS{})
	if res == nil {
		return icpRun{}, fmt.Errorf("bfgs: %w", err)
	}
	if math.IsNaN(res.F) || math.IsInf(res.F, 0) {
		return icpRun{}, fmt.Errorf("bfgs: objective is not finite")
	}
	if err != nil || res.Status == optimize.IterationLimit {
		if !(res.F <= zeroObjective || res.F < f0) {
			if err == nil {
				return icpRun{}, fmt.Errorf("bfgs: iteration limit %d reached", maxIter)
			}
			return icpRun{}, fmt.Errorf("bfgs (status %v): %w", res.Status, err)
		}
		monitoring.Debugf("align: bfgs stopped early (%v), objective %.6g from %.6g", res.Status, res.F, f0)
	}

	t := obj.transform(res.X)
	idx := make([]int, len(ref))
	mse := NewNearestIndex(t.ApplyAll(moving)).nearestAll(ref, idx)
	return icpRun{transform: t, mse: mse, indices: idx, iterations: res.Stats.MajorIterations}, nil
}
