// Package overlap detects annotation boxes that cover the same object twice.
//
// Detection is advisory: anomalies such as missing vertices or degenerate edges
// are logged and treated as "no overlap" instead of being returned as errors.
package overlap

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ironsheep/rolabel-mcp/internal/logger"
	"github.com/ironsheep/rolabel-mcp/internal/shape"
)

// MinRatio is the share of the smaller axis-aligned box that must be covered
// before two plain boxes count as overlapping. The comparison is strict.
const MinRatio = 0.1

// Pair identifies two overlapping shapes by index, with A < B.
type Pair struct {
	A int `json:"a"`
	B int `json:"b"`
}

// Overlaps reports whether two shapes overlap.
//
// # Algorithm
//
//  1. Bounding rectangles that do not intersect reject immediately.
//  2. When neither shape is rotated, the intersection area is divided by the
//     smaller bounding area; the shapes overlap when the ratio exceeds MinRatio.
//  3. Otherwise the separating-axis test decides exactly, with no threshold.
//
// The result is symmetric in a and b.
func Overlaps(a, b *shape.Shape) bool {
	ra, rb := a.BoundingRect(), b.BoundingRect()
	if !ra.Intersects(rb) {
		return false
	}
	if !a.Rotated && !b.Rotated {
		return ratio(ra, rb) > MinRatio
	}
	return rotatedOverlap(a, b)
}

// ratio returns intersection area / smaller area for two bounding rectangles.
// A zero-area rectangle yields 0.
func ratio(ra, rb shape.Rect) float64 {
	minArea := math.Min(ra.Area(), rb.Area())
	if minArea <= 0 {
		return 0
	}
	return ra.Intersect(rb).Area() / minArea
}

func rotatedOverlap(a, b *shape.Shape) bool {
	if len(a.Points) < shape.MaxPoints || len(b.Points) < shape.MaxPoints {
		logger.S().Debugw("overlap: not enough vertices for separating-axis test",
			"label_a", a.Label, "points_a", len(a.Points),
			"label_b", b.Label, "points_b", len(b.Points))
		return false
	}
	return Intersect(vecs(a.Points), vecs(b.Points))
}

// Intersect applies the separating-axis theorem to two convex polygons. Every
// edge normal of both polygons is a candidate axis; the polygons are disjoint as
// soon as one axis separates their projections. Zero-length edges contribute no
// axis.
func Intersect(p, q []r2.Vec) bool {
	for _, axis := range append(axes(p), axes(q)...) {
		minP, maxP := project(p, axis)
		minQ, maxQ := project(q, axis)
		if maxP < minQ || maxQ < minP {
			return false
		}
	}
	return true
}

// FindAll scans every pair i < j and returns the overlapping ones in index
// order.
func FindAll(shapes []*shape.Shape) []Pair {
	var pairs []Pair
	for i := 0; i < len(shapes); i++ {
		for j := i + 1; j < len(shapes); j++ {
			if Overlaps(shapes[i], shapes[j]) {
				pairs = append(pairs, Pair{A: i, B: j})
			}
		}
	}
	return pairs
}

func axes(poly []r2.Vec) []r2.Vec {
	out := make([]r2.Vec, 0, len(poly))
	for i := range poly {
		edge := r2.Sub(poly[(i+1)%len(poly)], poly[i])
		normal := r2.Vec{X: -edge.Y, Y: edge.X}
		if r2.Norm(normal) == 0 {
			logger.S().Debugw("overlap: skipping degenerate edge", "index", i)
			continue
		}
		out = append(out, r2.Unit(normal))
	}
	return out
}

func project(poly []r2.Vec, axis r2.Vec) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range poly {
		d := r2.Dot(v, axis)
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}

func vecs(pts []shape.Point) []r2.Vec {
	out := make([]r2.Vec, len(pts))
	for i, p := range pts {
		out[i] = p.Vec()
	}
	return out
}
