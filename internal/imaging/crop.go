package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/rolabel-mcp/internal/shape"
)

// CropResult contains the cropped image data
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropRegion extracts the pixels under r, given in image pixel coordinates.
//
// The region is rounded outward to whole pixels and clamped to the image, so a
// box drawn partly off the image still yields its visible part. A region with
// no area, or one that lies entirely outside the image, is an error.
func CropRegion(img image.Image, r shape.Rect, scale float64) (*CropResult, error) {
	if r.Empty() {
		return nil, fmt.Errorf("crop region (%g,%g)-(%g,%g) has no area", r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
	}
	px := clampRect(img.Bounds(), r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
	if px.Empty() {
		b := img.Bounds()
		return nil, fmt.Errorf("crop region (%g,%g)-(%g,%g) outside image bounds (%d,%d)-(%d,%d)",
			r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
	}
	return encode(imaging.Crop(img, px), scale)
}

// CropShape extracts the pixels covered by s.
//
// An axis-aligned box is cut along its bounding rectangle, rounded outward and
// clamped to the image. A rotated box is deskewed first: the image is turned
// about the box center by the box direction so the box edges line up with the
// pixel grid, and the box-sized window around the center is returned.
func CropShape(img image.Image, s *shape.Shape, scale float64) (*CropResult, error) {
	g, err := s.Geometry()
	if err != nil {
		return nil, err
	}

	switch g := g.(type) {
	case shape.AxisBox:
		return CropRegion(img, shape.Rect{Min: shape.Pt(g.XMin, g.YMin), Max: shape.Pt(g.XMax, g.YMax)}, scale)

	case shape.RotatedBox:
		w, h := g.Size()
		if w < 1 || h < 1 {
			return nil, fmt.Errorf("shape %q is too small to crop (%.1fx%.1f)", s.Label, w, h)
		}
		pivot := image.Pt(int(math.Round(g.Center.X)), int(math.Round(g.Center.Y)))
		// Points were turned clockwise on screen by Direction, so undo it.
		deskewed := transform.Rotate(img, -g.Direction*180/math.Pi, &transform.RotationOptions{
			ResizeBounds: false,
			Pivot:        &pivot,
		})
		r := clampRect(deskewed.Bounds(), g.Center.X-w/2, g.Center.Y-h/2, g.Center.X+w/2, g.Center.Y+h/2)
		if r.Empty() {
			return nil, fmt.Errorf("shape %q lies outside the image", s.Label)
		}
		return encode(imaging.Crop(deskewed, r), scale)
	}
	return nil, fmt.Errorf("unsupported geometry %T", g)
}

func clampRect(bounds image.Rectangle, x1, y1, x2, y2 float64) image.Rectangle {
	r := image.Rect(
		int(math.Floor(snap(x1))), int(math.Floor(snap(y1))),
		int(math.Ceil(snap(x2))), int(math.Ceil(snap(y2))),
	)
	return r.Intersect(bounds)
}

// snap removes rounding noise left by rotation so a box edge that sits on a
// pixel boundary does not grow the crop by one pixel.
func snap(v float64) float64 {
	if r := math.Round(v); math.Abs(v-r) < 1e-6 {
		return r
	}
	return v
}

func encode(cropped *image.NRGBA, scale float64) (*CropResult, error) {
	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &CropResult{
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
