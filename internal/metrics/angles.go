package metrics

import "math"

// YawFromQuaternion returns the rotation about Z, in radians, of the unit
// quaternion (x, y, z, w) using the ZYX Euler convention.
func YawFromQuaternion(x, y, z, w float64) float64 {
	return math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
}

// Unwrap removes jumps larger than π between consecutive angles by adding
// multiples of 2π, in place.
func Unwrap(angles []float64) {
	offset := 0.0
	for i := 1; i < len(angles); i++ {
		d := angles[i] + offset - angles[i-1]
		if math.Abs(d) <= math.Pi {
			angles[i] += offset
			continue
		}
		m := math.Mod(d+math.Pi, 2*math.Pi)
		if m < 0 {
			m += 2 * math.Pi
		}
		m -= math.Pi
		if m == -math.Pi && d > 0 {
			m = math.Pi
		}
		offset += m - d
		angles[i] += offset
	}
}
