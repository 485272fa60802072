package shape

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// MaxPoints is the vertex count of a closed box.
	MaxPoints = 4

	// MinClosePoints is the fewest vertices a polygon may be closed with.
	MinClosePoints = 3
)

// Shape is a labelled polygon drawn on an image.
//
// Points holds the vertices in insertion order. Once closed a box has exactly
// MaxPoints vertices; Rotated distinguishes a free quadrilateral from an
// axis-aligned rectangle. Center is the rotation pivot and is refreshed by every
// geometry operation on the shape.
//
// The pointer identity of a Shape is its key inside an annotation set, so
// shapes are passed around as *Shape and mutated in place.
type Shape struct {
	Label     string  `json:"label"`
	Points    []Point `json:"points"`
	Difficult bool    `json:"difficult"`
	Rotated   bool    `json:"rotated"`
	Direction float64 `json:"direction"`
	Center    Point   `json:"center"`

	// LineColor and FillColor override the project defaults when non-nil.
	LineColor *Color `json:"line_color,omitempty"`
	FillColor *Color `json:"fill_color,omitempty"`

	closed bool
}

// New returns an open shape with no vertices.
func New(label string) *Shape {
	return &Shape{Label: label}
}

// NewAxisBox returns a closed axis-aligned box. The corners are normalized so
// the arguments may be given in any order.
func NewAxisBox(label string, x1, y1, x2, y2 float64) *Shape {
	box := AxisBox{
		XMin: math.Min(x1, x2), YMin: math.Min(y1, y2),
		XMax: math.Max(x1, x2), YMax: math.Max(y1, y2),
	}
	return FromGeometry(label, box)
}

// NewRotatedBox returns a closed w×h box centered on (cx, cy) turned by
// direction radians.
func NewRotatedBox(label string, cx, cy, w, h, direction float64) *Shape {
	return FromGeometry(label, RotatedFromSize(cx, cy, w, h, direction))
}

// FromGeometry builds a closed shape from a decoded geometry.
func FromGeometry(label string, g Geometry) *Shape {
	corners := g.Corners()
	s := &Shape{
		Label:  label,
		Points: append([]Point(nil), corners[:]...),
		closed: true,
	}
	switch g := g.(type) {
	case AxisBox:
		s.Center = g.Center()
	case RotatedBox:
		s.Rotated = true
		s.Direction = g.Direction
		s.Center = g.Center
	}
	return s
}

// AddPoint appends a vertex.
//
// Returns a *GeometryError wrapping ErrClosed when the shape is closed, or
// ErrTooManyPoints when it already holds MaxPoints vertices.
func (s *Shape) AddPoint(p Point) error {
	if s.closed {
		return &GeometryError{Op: "add point", Points: len(s.Points), Err: ErrClosed}
	}
	if len(s.Points) >= MaxPoints {
		return &GeometryError{Op: "add point", Points: len(s.Points), Err: ErrTooManyPoints}
	}
	s.Points = append(s.Points, p)
	return nil
}

// Close finalizes the polygon and refreshes Center.
// Returns a *GeometryError wrapping ErrTooFewPoints with fewer than
// MinClosePoints vertices.
func (s *Shape) Close() error {
	if len(s.Points) < MinClosePoints {
		return &GeometryError{Op: "close", Points: len(s.Points), Err: ErrTooFewPoints}
	}
	s.closed = true
	s.UpdateCenter()
	return nil
}

// IsClosed reports whether Close has succeeded.
func (s *Shape) IsClosed() bool {
	return s.closed
}

// BoundingRect returns the axis-aligned rectangle enclosing every vertex,
// regardless of rotation.
func (s *Shape) BoundingRect() Rect {
	return BoundsOf(s.Points)
}

// Centroid returns the mean of the vertices.
func (s *Shape) Centroid() Point {
	if len(s.Points) == 0 {
		return Point{}
	}
	var sum r2.Vec
	for _, p := range s.Points {
		sum = r2.Add(sum, p.Vec())
	}
	return FromVec(r2.Scale(1/float64(len(s.Points)), sum))
}

// UpdateCenter recomputes Center from the current vertices.
func (s *Shape) UpdateCenter() {
	s.Center = s.Centroid()
}

// Copy returns a deep, independent duplicate: vertex storage and color
// overrides are not shared with s.
func (s *Shape) Copy() *Shape {
	c := *s
	c.Points = append([]Point(nil), s.Points...)
	if s.LineColor != nil {
		lc := *s.LineColor
		c.LineColor = &lc
	}
	if s.FillColor != nil {
		fc := *s.FillColor
		c.FillColor = &fc
	}
	return &c
}

// SetLabel replaces the label.
func (s *Shape) SetLabel(text string) {
	s.Label = text
}

// SetDifficult sets the difficulty flag.
func (s *Shape) SetDifficult(v bool) {
	s.Difficult = v
}

// SetLineColor sets or, with nil, clears the outline override.
func (s *Shape) SetLineColor(c *Color) {
	s.LineColor = cloneColor(c)
}

// SetFillColor sets or, with nil, clears the fill override.
func (s *Shape) SetFillColor(c *Color) {
	s.FillColor = cloneColor(c)
}

// EffectiveColors resolves both colors against the project defaults.
func (s *Shape) EffectiveColors(d Defaults) (line, fill Color) {
	return ResolveColor(s.LineColor, d.Line), ResolveColor(s.FillColor, d.Fill)
}

// Translate moves every vertex and the center by (dx, dy).
func (s *Shape) Translate(dx, dy float64) {
	for i := range s.Points {
		s.Points[i].X += dx
		s.Points[i].Y += dy
	}
	s.UpdateCenter()
}

// Rotate turns the shape by theta radians about its centroid and marks it as
// rotated. Direction accumulates the angle in [0, 2π).
func (s *Shape) Rotate(theta float64) error {
	if len(s.Points) != MaxPoints {
		return &GeometryError{Op: "rotate", Points: len(s.Points), Err: ErrTooFewPoints}
	}
	s.UpdateCenter()
	c := s.Center.Vec()
	for i, p := range s.Points {
		s.Points[i] = FromVec(r2.Rotate(p.Vec(), theta, c))
	}
	s.Rotated = true
	s.Direction = normalizeAngle(s.Direction + theta)
	return nil
}

// Geometry classifies the shape for persistence. A shape that is not rotated
// and whose vertices are exactly the clockwise corners of an axis rectangle
// yields an AxisBox; anything else yields a RotatedBox whose center is
// recomputed from the vertices.
func (s *Shape) Geometry() (Geometry, error) {
	if len(s.Points) != MaxPoints {
		err := ErrTooFewPoints
		if len(s.Points) > MaxPoints {
			err = ErrTooManyPoints
		}
		return nil, &GeometryError{Op: "geometry", Points: len(s.Points), Err: err}
	}
	var pts [4]Point
	copy(pts[:], s.Points)
	if !s.Rotated {
		if box, ok := AxisBoxOf(pts); ok {
			return box, nil
		}
	}
	return RotatedBox{Points: pts, Center: s.Centroid(), Direction: s.Direction}, nil
}

func cloneColor(c *Color) *Color {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
