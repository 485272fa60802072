package shape

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// AxisTolerance is the largest coordinate deviation for which four vertices
// still count as an axis-aligned rectangle.
const AxisTolerance = 1e-9

// Geometry is the closed set of box geometries an annotation can carry.
// It is implemented only by AxisBox and RotatedBox.
type Geometry interface {
	// Corners returns the four vertices in winding order.
	Corners() [4]Point
	isGeometry()
}

// AxisBox is an axis-aligned rectangle.
type AxisBox struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

// Corners expands the box clockwise starting at the top-left corner.
func (b AxisBox) Corners() [4]Point {
	return [4]Point{
		{X: b.XMin, Y: b.YMin},
		{X: b.XMax, Y: b.YMin},
		{X: b.XMax, Y: b.YMax},
		{X: b.XMin, Y: b.YMax},
	}
}

// Center returns the rectangle centroid.
func (b AxisBox) Center() Point {
	return Point{X: (b.XMin + b.XMax) / 2, Y: (b.YMin + b.YMax) / 2}
}

func (AxisBox) isGeometry() {}

// RotatedBox is a quadrilateral with explicit corners, a rotation pivot and a
// rotation angle in radians.
type RotatedBox struct {
	Points    [4]Point `json:"points"`
	Center    Point    `json:"center"`
	Direction float64  `json:"direction"`
}

// Corners returns the stored corners.
func (b RotatedBox) Corners() [4]Point {
	return b.Points
}

// Size returns the lengths of the first and second edges, which for a
// rectangle are its width and height before rotation.
func (b RotatedBox) Size() (w, h float64) {
	return b.Points[0].Distance(b.Points[1]), b.Points[1].Distance(b.Points[2])
}

func (RotatedBox) isGeometry() {}

// RotatedFromSize builds the w×h rectangle centered on (cx, cy) and turns it by
// direction radians about its center.
func RotatedFromSize(cx, cy, w, h, direction float64) RotatedBox {
	c := r2.Vec{X: cx, Y: cy}
	hw, hh := w/2, h/2
	unrotated := [4]r2.Vec{
		{X: cx - hw, Y: cy - hh},
		{X: cx + hw, Y: cy - hh},
		{X: cx + hw, Y: cy + hh},
		{X: cx - hw, Y: cy + hh},
	}
	var pts [4]Point
	for i, v := range unrotated {
		pts[i] = FromVec(r2.Rotate(v, direction, c))
	}
	return RotatedBox{Points: pts, Center: Point{X: cx, Y: cy}, Direction: direction}
}

// AxisBoxOf reports whether pts are exactly the clockwise corners of an
// axis-aligned rectangle, in the order AxisBox.Corners produces them.
func AxisBoxOf(pts [4]Point) (AxisBox, bool) {
	r := BoundsOf(pts[:])
	box := AxisBox{XMin: r.Min.X, YMin: r.Min.Y, XMax: r.Max.X, YMax: r.Max.Y}
	want := box.Corners()
	for i := range pts {
		if !pts[i].Near(want[i], AxisTolerance) {
			return AxisBox{}, false
		}
	}
	return box, true
}
