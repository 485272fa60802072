package voc

import (
	"github.com/ironsheep/rolabel-mcp/internal/shape"
)

// Ext is the file extension of annotation documents.
const Ext = ".xml"

// ImageIdentity records which image an annotation file belongs to.
type ImageIdentity struct {
	// Path is the image path as it was opened.
	Path string `json:"path"`

	// Width, Height and Depth are the pixel dimensions and channel count
	// (1 for grayscale, 3 for color).
	Width  int `json:"width"`
	Height int `json:"height"`
	Depth  int `json:"depth"`

	// Bytes is the raw file length; 0 when unknown.
	Bytes int64 `json:"bytes,omitempty"`

	// Checksum is the lowercase hex SHA-256 of the raw file; empty when unknown.
	Checksum string `json:"checksum,omitempty"`
}

// Matches reports whether two identities can describe the same image file.
// Fields unknown on either side are not compared.
func (id ImageIdentity) Matches(other ImageIdentity) bool {
	if id.Bytes != 0 && other.Bytes != 0 && id.Bytes != other.Bytes {
		return false
	}
	if id.Checksum != "" && other.Checksum != "" && id.Checksum != other.Checksum {
		return false
	}
	return true
}

// Object is one decoded shape record.
type Object struct {
	Label     string         `json:"label"`
	Difficult bool           `json:"difficult"`
	Geometry  shape.Geometry `json:"geometry"`

	// LineColor and FillColor are set only when the document overrides the
	// project defaults.
	LineColor *shape.Color `json:"line_color,omitempty"`
	FillColor *shape.Color `json:"fill_color,omitempty"`
}

// AnnotationFile is the in-memory form of one annotation document.
type AnnotationFile struct {
	Image    ImageIdentity `json:"image"`
	Verified bool          `json:"verified"`
	Objects  []Object      `json:"objects"`
}

// FromShapes converts shapes into an annotation file, preserving their order.
//
// Colors equal to the matching project default are omitted so that the file
// does not pin stale overrides. A shape without exactly four vertices yields a
// *FormatError.
func FromShapes(shapes []*shape.Shape, img ImageIdentity, verified bool, defaults shape.Defaults) (*AnnotationFile, error) {
	f := &AnnotationFile{
		Image:    img,
		Verified: verified,
		Objects:  make([]Object, 0, len(shapes)),
	}
	for i, s := range shapes {
		g, err := s.Geometry()
		if err != nil {
			return nil, formatErrorf(err, "shape %d (%q)", i, s.Label)
		}
		f.Objects = append(f.Objects, Object{
			Label:     s.Label,
			Difficult: s.Difficult,
			Geometry:  g,
			LineColor: overrideOf(s.LineColor, defaults.Line),
			FillColor: overrideOf(s.FillColor, defaults.Fill),
		})
	}
	return f, nil
}

// Shapes builds closed shapes from the decoded objects. Objects without a color
// override produce shapes with nil colors, which resolve to the project default.
func (f *AnnotationFile) Shapes() []*shape.Shape {
	out := make([]*shape.Shape, 0, len(f.Objects))
	for _, o := range f.Objects {
		s := shape.FromGeometry(o.Label, o.Geometry)
		s.Difficult = o.Difficult
		s.SetLineColor(o.LineColor)
		s.SetFillColor(o.FillColor)
		out = append(out, s)
	}
	return out
}

func overrideOf(c *shape.Color, def shape.Color) *shape.Color {
	if c == nil || *c == def {
		return nil
	}
	v := *c
	return &v
}
