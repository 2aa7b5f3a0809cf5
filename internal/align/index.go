package align

import (
	"gonum.org/v1/gonum/spatial/kdtree"
)

// indexedPoint is a k-d tree entry that remembers its position in the
// source sequence.
type indexedPoint struct {
	x, y float64
	idx  int
}

func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(indexedPoint)
	if d == 0 {
		return p.x - q.x
	}
	return p.y - q.y
}

func (p indexedPoint) Dims() int { return 2 }

// Distance returns the squared Euclidean distance.
func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(indexedPoint)
	dx, dy := p.x-q.x, p.y-q.y
	return dx*dx + dy*dy
}

type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p indexedPoints) Len() int                              { return len(p) }
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }
func (p indexedPoints) Pivot(d kdtree.Dim) int {
	return indexedPlane{dim: d, points: p}.Pivot()
}

// indexedPlane sorts indexedPoints along one dimension for pivot selection.
type indexedPlane struct {
	dim    kdtree.Dim
	points indexedPoints
}

func (p indexedPlane) Len() int { return len(p.points) }
func (p indexedPlane) Less(i, j int) bool {
	if p.dim == 0 {
		return p.points[i].x < p.points[j].x
	}
	return p.points[i].y < p.points[j].y
}
func (p indexedPlane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }
func (p indexedPlane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
func (p indexedPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

// NearestIndex answers nearest-neighbour queries over a fixed point set.
type NearestIndex struct {
	tree *kdtree.Tree
}

// NewNearestIndex builds a k-d tree over points. The slice is copied.
func NewNearestIndex(points []Point2D) *NearestIndex {
	entries := make(indexedPoints, len(points))
	for i, p := range points {
		entries[i] = indexedPoint{x: p.X, y: p.Y, idx: i}
	}
	return &NearestIndex{tree: kdtree.New(entries, false)}
}

// Nearest returns the index of the indexed point closest to (x, y) and the
// squared distance to it. It returns -1 for an empty index.
func (n *NearestIndex) Nearest(x, y float64) (int, float64) {
	if n.tree == nil || n.tree.Root == nil {
		return -1, 0
	}
	c, d := n.tree.Nearest(indexedPoint{x: x, y: y})
	if c == nil {
		return -1, 0
	}
	return c.(indexedPoint).idx, d
}

// nearestAll matches every query point to its nearest indexed point. It
// writes indices into idx and returns the mean squared distance.
func (n *NearestIndex) nearestAll(queries []Point2D, idx []int) float64 {
	sum := 0.0
	for i, q := range queries {
		j, d := n.Nearest(q.X, q.Y)
		idx[i] = j
		sum += d
	}
	return sum / float64(len(queries))
}
