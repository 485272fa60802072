package shape

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when a closed shape receives another vertex.
	ErrClosed = errors.New("shape already closed")

	// ErrTooFewPoints is returned when a shape has fewer vertices than an
	// operation needs.
	ErrTooFewPoints = errors.New("too few points")

	// ErrTooManyPoints is returned when a shape would exceed MaxPoints vertices.
	ErrTooManyPoints = errors.New("too many points")
)

// GeometryError reports malformed shape construction. It is always a local
// input error and is never corrected silently.
type GeometryError struct {
	Op     string // operation that failed: "add point", "close", "geometry", "rotate"
	Points int    // vertex count at the time of failure
	Err    error  // one of the Err* sentinels
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("shape %s: %v (have %d points)", e.Op, e.Err, e.Points)
}

func (e *GeometryError) Unwrap() error {
	return e.Err
}
