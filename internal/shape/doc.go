// Package shape defines the annotation entity drawn on an image: a closed
// quadrilateral with a label, a difficulty flag, optional rotation metadata and
// optional per-shape colors.
//
// # Coordinate System
//
// All coordinates are float64 pixel positions in the original image:
//   - X: horizontal position (0 = left edge)
//   - Y: vertical position (0 = top edge, increasing downward)
//
// Coordinates are never normalized. A rotation angle (Direction) is expressed in
// radians; a positive angle turns the box clockwise on screen because the Y axis
// points down.
//
// # Geometry
//
// A Shape stores its four vertices in insertion order. The order defines the
// polygon winding and is preserved by every codec. Two concrete geometries are
// modelled by the Geometry sum type:
//   - AxisBox: an axis-aligned rectangle (xmin, ymin, xmax, ymax)
//   - RotatedBox: four explicit corners plus center and direction
//
// # Colors
//
// Line and fill colors are optional. A nil color means "use the project
// default"; ResolveColor applies a caller-supplied default so that no shared
// mutable state is involved.
//
// # Thread Safety
//
// Shape values are not synchronized. The annotation set that owns them is
// expected to be driven from a single goroutine.
package shape
