package align

import (
	"gonum.org/v1/gonum/floats"
)

// DedupPoints removes points whose (X, Y) repeat an earlier point, keeping
// the first occurrence. Aligned waypoints often contain duplicates because
// several reference points match the same moving point.
func DedupPoints(points []Point2D) []Point2D {
	type key struct{ x, y float64 }
	seen := make(map[key]struct{}, len(points))
	out := make([]Point2D, 0, len(points))
	for _, p := range points {
		k := key{p.X, p.Y}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ResampleArcLength overwrites S with len(points) evenly spaced values over
// [0, max S]. The true spacing between points is discarded.
func ResampleArcLength(points []Point2D) {
	if len(points) == 0 {
		return
	}
	s := make([]float64, len(points))
	for i, p := range points {
		s[i] = p.S
	}
	maxS := floats.Max(s)
	if len(points) == 1 {
		points[0].S = 0
		return
	}
	floats.Span(s, 0, maxS)
	for i := range points {
		points[i].S = s[i]
	}
}

// RotateHeadings adds theta to every heading, as needed when waypoints are
// moved into the reference frame.
func RotateHeadings(points []Point2D, theta float64) {
	for i := range points {
		points[i].Heading += theta
	}
}
