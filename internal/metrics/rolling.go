package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ForwardMean returns, for every sample i, the mean of the values whose time
// lies in [t[i], t[i]+window). Times must be non-decreasing.
func ForwardMean(t, v []float64, window float64) []float64 {
	n := min(len(t), len(v))
	out := make([]float64, n)
	end := 0
	for i := 0; i < n; i++ {
		if end < i {
			end = i
		}
		for end < n && t[end] < t[i]+window {
			end++
		}
		if end == i {
			// Non-positive window: the sample alone.
			out[i] = v[i]
			continue
		}
		out[i] = stat.Mean(v[i:end], nil)
	}
	return out
}

// MeanAbsDeviation returns the mean of |v[i] - ref[i]| over the paired prefix.
func MeanAbsDeviation(v, ref []float64) (float64, bool) {
	n := min(len(v), len(ref))
	if n == 0 {
		return 0, false
	}
	d := make([]float64, n)
	for i := range d {
		d[i] = math.Abs(v[i] - ref[i])
	}
	return stat.Mean(d, nil), true
}
