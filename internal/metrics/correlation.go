package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Pearson returns the Pearson correlation coefficient of the paired prefix of
// x and y. It reports false when the coefficient is undefined, for example
// when either input is constant.
func Pearson(x, y []float64) (float64, bool) {
	n := min(len(x), len(y))
	if n < 2 {
		return 0, false
	}
	r := stat.Correlation(x[:n], y[:n], nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// CrossCorrelation returns the full discrete cross-correlation of x and y,
// c[k] = Σ x[n+k]·y[n] for lags k from -(len(y)-1) to len(x)-1.
func CrossCorrelation(x, y []float64) []float64 {
	if len(x) == 0 || len(y) == 0 {
		return nil
	}
	out := make([]float64, 0, len(x)+len(y)-1)
	for k := -(len(y) - 1); k < len(x); k++ {
		// Overlap of x[k:] with y[0:] (or x[0:] with y[-k:] for negative lags).
		xs, ys := 0, -k
		if k >= 0 {
			xs, ys = k, 0
		}
		n := min(len(x)-xs, len(y)-ys)
		out = append(out, floats.Dot(x[xs:xs+n], y[ys:ys+n]))
	}
	return out
}

// CrossCorrelationMax returns the largest value of CrossCorrelation(x, y),
// or false when either input is empty.
func CrossCorrelationMax(x, y []float64) (float64, bool) {
	c := CrossCorrelation(x, y)
	if len(c) == 0 {
		return 0, false
	}
	return floats.Max(c), true
}
