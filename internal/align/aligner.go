package align

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/drive.eval/internal/monitoring"
)

// Method selects the minimiser used for each starting point.
type Method int

const (
	// MethodICP alternates nearest-neighbour matching with a closed-form
	// Procrustes fit.
	MethodICP Method = iota
	// MethodBFGS minimises the nearest-neighbour objective directly with a
	// quasi-Newton method.
	MethodBFGS
)

func (m Method) String() string {
	switch m {
	case MethodICP:
		return "icp"
	case MethodBFGS:
		return "bfgs"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod maps "icp" or "bfgs" to a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "icp":
		return MethodICP, nil
	case "bfgs":
		return MethodBFGS, nil
	}
	return 0, fmt.Errorf("align: unknown method %q", s)
}

// Options configures Align.
type Options struct {
	Method Method
	// InitialGuess is the first starting transform.
	InitialGuess RigidTransform2D
	// RotationSeeds is the number of starting rotations tried, evenly
	// spaced around InitialGuess.Theta. 1 tries only the initial guess.
	RotationSeeds int
	// CentroidInit replaces the initial translation of every seed with the
	// one that superimposes the centroids of both sequences.
	CentroidInit bool
	// MaxIterations bounds each minimiser run.
	MaxIterations int
	// Tolerance is the relative objective improvement below which ICP stops.
	Tolerance float64
}

// DefaultOptions tries eight centroid-aligned rotations with ICP.
func DefaultOptions() Options {
	return Options{
		Method:        MethodICP,
		RotationSeeds: 8,
		CentroidInit:  true,
		MaxIterations: 200,
		Tolerance:     1e-10,
	}
}

// SingleStartOptions starts one minimiser run at the zero transform, the
// historical behaviour.
func SingleStartOptions(m Method) Options {
	opts := DefaultOptions()
	opts.Method = m
	opts.RotationSeeds = 1
	opts.CentroidInit = false
	return opts
}

// tieTolerance keeps the earlier seed when two runs reach the same error.
const tieTolerance = 1e-12

// Align finds the rigid transform that best overlays moving onto reference.
//
// The objective is the mean squared distance from each reference point to
// its nearest transformed moving point. The objective is non-convex in the
// rotation, so a run can stop in a local optimum; trying several rotation
// seeds reduces but does not remove that risk.
func Align(reference, moving []Point2D, opts Options) (AlignmentResult, error) {
	if err := validate(reference, "reference"); err != nil {
		return AlignmentResult{}, err
	}
	if err := validate(moving, "moving"); err != nil {
		return AlignmentResult{}, err
	}
	if opts.RotationSeeds < 1 {
		opts.RotationSeeds = 1
	}
	if opts.MaxIterations < 2 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultOptions().Tolerance
	}

	var (
		best     icpRun
		bestSeed = -1
		lastErr  error
	)
	for i, start := range seeds(reference, moving, opts) {
		var (
			run icpRun
			err error
		)
		switch opts.Method {
		case MethodBFGS:
			run, err = runBFGS(reference, moving, start, opts.MaxIterations)
		case MethodICP:
			run, err = runICP(reference, moving, start, opts.MaxIterations, opts.Tolerance)
		default:
			return AlignmentResult{}, fmt.Errorf("align: unknown method %v", opts.Method)
		}
		if err != nil {
			monitoring.Debugf("align: seed %d (theta0=%.3f) failed: %v", i, start.Theta, err)
			lastErr = err
			continue
		}
		if bestSeed < 0 || run.mse < best.mse-tieTolerance {
			best, bestSeed = run, i
		}
	}
	if bestSeed < 0 {
		return AlignmentResult{}, fmt.Errorf("%w: %v", ErrConvergence, lastErr)
	}

	t := best.transform.Normalized()
	res := AlignmentResult{
		Transform:      t,
		MatchedIndices: best.indices,
		MatchedPoints:  make([]Point2D, len(reference)),
		Iterations:     best.iterations,
		Seed:           bestSeed,
	}
	sum := 0.0
	for i, r := range reference {
		p := t.Apply(moving[best.indices[i]])
		res.MatchedPoints[i] = p
		dx, dy := r.X-p.X, r.Y-p.Y
		sum += dx*dx + dy*dy
	}
	res.MeanSquaredError = sum / float64(2*len(reference))
	return res, nil
}

// seeds returns the starting transforms in the order they are tried: the
// initial guess first, then rotations alternating clockwise and
// counter-clockwise by increasing offset.
func seeds(reference, moving []Point2D, opts Options) []RigidTransform2D {
	step := 2 * math.Pi / float64(opts.RotationSeeds)
	offsets := []float64{0}
	for k := 1; len(offsets) < opts.RotationSeeds; k++ {
		offsets = append(offsets, -float64(k)*step)
		if len(offsets) < opts.RotationSeeds {
			offsets = append(offsets, float64(k)*step)
		}
	}

	crx, cry := centroid(reference)
	cmx, cmy := centroid(moving)
	out := make([]RigidTransform2D, len(offsets))
	for i, off := range offsets {
		t := opts.InitialGuess
		t.Theta += off
		if opts.CentroidInit {
			sin, cos := math.Sincos(t.Theta)
			t.DX = crx - (cos*cmx - sin*cmy)
			t.DY = cry - (sin*cmx + cos*cmy)
		}
		out[i] = t
	}
	return out
}

func centroid(points []Point2D) (float64, float64) {
	var x, y float64
	for _, p := range points {
		x += p.X
		y += p.Y
	}
	n := float64(len(points))
	return x / n, y / n
}
