package align

import (
	"fmt"
	"math"
)

// procrustes returns the rigid transform minimising
// Σ |ref[i] - T(moving[idx[i]])|² for a fixed correspondence, using the
// closed-form 2D solution.
func procrustes(ref, moving []Point2D, idx []int) RigidTransform2D {
	n := float64(len(ref))
	var crx, cry, cmx, cmy float64
	for i, r := range ref {
		m := moving[idx[i]]
		crx += r.X
		cry += r.Y
		cmx += m.X
		cmy += m.Y
	}
	crx, cry, cmx, cmy = crx/n, cry/n, cmx/n, cmy/n

	var dot, cross float64
	for i, r := range ref {
		m := moving[idx[i]]
		ax, ay := m.X-cmx, m.Y-cmy
		bx, by := r.X-crx, r.Y-cry
		dot += ax*bx + ay*by
		cross += ax*by - ay*bx
	}
	theta := math.Atan2(cross, dot)
	sin, cos := math.Sincos(theta)
	return RigidTransform2D{
		DX:    crx - (cos*cmx - sin*cmy),
		DY:    cry - (sin*cmx + cos*cmy),
		Theta: theta,
	}
}

// icpRun is the outcome of one ICP run from a single starting transform.
type icpRun struct {
	transform  RigidTransform2D
	mse        float64 // mean squared nearest-neighbour distance
	indices    []int
	iterations int
}

// runICP alternates nearest-neighbour matching and Procrustes updates until
// the assignment is stable or the objective stops improving.
func runICP(ref, moving []Point2D, start RigidTransform2D, maxIter int, tol float64) (icpRun, error) {
	t := start
	idx := make([]int, len(ref))
	prevIdx := make([]int, len(ref))
	prevMSE := math.Inf(1)

	for iter := 0; iter < maxIter; iter++ {
		index := NewNearestIndex(t.ApplyAll(moving))
		mse := index.nearestAll(ref, idx)
		if math.IsNaN(mse) || math.IsInf(mse, 0) {
			return icpRun{}, fmt.Errorf("objective is not finite at iteration %d", iter)
		}

		if iter > 0 && (sameAssignment(idx, prevIdx) || prevMSE-mse <= tol*math.Max(prevMSE, 1e-300)) {
			return icpRun{transform: t, mse: mse, indices: append([]int(nil), idx...), iterations: iter}, nil
		}

		t = procrustes(ref, moving, idx)
		copy(prevIdx, idx)
		prevMSE = mse
	}
	return icpRun{}, fmt.Errorf("no stable assignment after %d iterations", maxIter)
}

func sameAssignment(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
