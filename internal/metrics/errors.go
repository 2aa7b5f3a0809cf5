// Package metrics holds the numeric scores used to compare a recorded stream
// against a reference: root mean squared error, correlation measures, and the
// Kullback-Leibler divergence between Welch power spectra.
package metrics

import (
	"math"
)

// SquaredError accumulates squared residuals for one channel.
type SquaredError struct {
	sum float64
	n   int
}

// Add records the residual est - ref.
func (e *SquaredError) Add(est, ref float64) {
	d := est - ref
	e.sum += d * d
	e.n++
}

// Len returns the number of residuals recorded.
func (e *SquaredError) Len() int { return e.n }

// MSE returns the mean squared residual, or false when nothing was recorded.
func (e *SquaredError) MSE() (float64, bool) {
	if e.n == 0 {
		return 0, false
	}
	return e.sum / float64(e.n), true
}

// RMSE returns the root mean squared residual truncated to four decimals,
// or false when nothing was recorded.
func (e *SquaredError) RMSE() (float64, bool) {
	mse, ok := e.MSE()
	if !ok {
		return 0, false
	}
	return Truncate4(math.Sqrt(mse)), true
}

// Truncate4 drops everything after the fourth decimal, rounding toward zero.
func Truncate4(v float64) float64 {
	return math.Trunc(v*1e4) / 1e4
}

// PositionMSE is the mean squared Euclidean distance between paired points
// over the shorter of the two sequences.
func PositionMSE(ax, ay, bx, by []float64) (float64, bool) {
	n := min(len(ax), len(ay), len(bx), len(by))
	if n == 0 {
		return 0, false
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		dx, dy := ax[i]-bx[i], ay[i]-by[i]
		sum += dx*dx + dy*dy
	}
	return sum / float64(n), true
}
