package voc

import (
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ironsheep/rolabel-mcp/internal/shape"
)

const (
	typeBndBox   = "bndbox"
	typeRoBndBox = "robndbox"
	checksumAlgo = "sha256"
)

type xmlAnnotation struct {
	XMLName   xml.Name     `xml:"annotation"`
	Verified  string       `xml:"verified,attr,omitempty"`
	Folder    string       `xml:"folder"`
	Filename  string       `xml:"filename"`
	Path      string       `xml:"path,omitempty"`
	Source    xmlSource    `xml:"source"`
	Size      xmlSize      `xml:"size"`
	Checksum  *xmlChecksum `xml:"checksum,omitempty"`
	Segmented string       `xml:"segmented"`
	Objects   []xmlObject  `xml:"object"`
}

type xmlSource struct {
	Database string `xml:"database"`
}

type xmlSize struct {
	Width  string `xml:"width"`
	Height string `xml:"height"`
	Depth  string `xml:"depth"`
}

type xmlChecksum struct {
	Algorithm string `xml:"algorithm,attr"`
	Bytes     string `xml:"bytes,attr,omitempty"`
	Value     string `xml:",chardata"`
}

type xmlObject struct {
	Type      string       `xml:"type,omitempty"`
	Name      *string      `xml:"name"`
	Pose      string       `xml:"pose,omitempty"`
	Truncated string       `xml:"truncated,omitempty"`
	Difficult string       `xml:"difficult"`
	BndBox    *xmlBndBox   `xml:"bndbox,omitempty"`
	RoBndBox  *xmlRoBndBox `xml:"robndbox,omitempty"`
	LineColor *xmlColor    `xml:"line_color,omitempty"`
	FillColor *xmlColor    `xml:"fill_color,omitempty"`
}

type xmlBndBox struct {
	XMin string `xml:"xmin"`
	YMin string `xml:"ymin"`
	XMax string `xml:"xmax"`
	YMax string `xml:"ymax"`
}

type xmlRoBndBox struct {
	CX     string     `xml:"cx"`
	CY     string     `xml:"cy"`
	W      string     `xml:"w,omitempty"`
	H      string     `xml:"h,omitempty"`
	Angle  string     `xml:"angle"`
	Points []xmlPoint `xml:"point"`
}

type xmlPoint struct {
	X string `xml:"x"`
	Y string `xml:"y"`
}

type xmlColor struct {
	R string `xml:"r,attr"`
	G string `xml:"g,attr"`
	B string `xml:"b,attr"`
	A string `xml:"a,attr,omitempty"`
}

// Decode parses one annotation document.
//
// Returns a *FormatError when the document is not well-formed, when an object
// lacks its label or point data, or when a rotated box does not have exactly
// four corners. No partial result is returned.
func Decode(r io.Reader) (*AnnotationFile, error) {
	var doc xmlAnnotation
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, formatErrorf(err, "malformed document")
	}

	f := &AnnotationFile{
		Verified: parseVerified(doc.Verified),
		Image: ImageIdentity{
			Path: doc.Path,
		},
	}
	if f.Image.Path == "" {
		f.Image.Path = doc.Filename
	}

	var err error
	if f.Image.Width, err = parseInt(doc.Size.Width, "size/width"); err != nil {
		return nil, err
	}
	if f.Image.Height, err = parseInt(doc.Size.Height, "size/height"); err != nil {
		return nil, err
	}
	if f.Image.Depth, err = parseInt(doc.Size.Depth, "size/depth"); err != nil {
		return nil, err
	}
	if doc.Checksum != nil {
		f.Image.Checksum = strings.ToLower(strings.TrimSpace(doc.Checksum.Value))
		if doc.Checksum.Bytes != "" {
			n, err := strconv.ParseInt(strings.TrimSpace(doc.Checksum.Bytes), 10, 64)
			if err != nil {
				return nil, formatErrorf(err, "checksum/@bytes")
			}
			f.Image.Bytes = n
		}
	}

	f.Objects = make([]Object, 0, len(doc.Objects))
	for i, raw := range doc.Objects {
		obj, err := decodeObject(raw)
		if err != nil {
			err.Reason = fmt.Sprintf("object %d: %s", i, err.Reason)
			return nil, err
		}
		f.Objects = append(f.Objects, obj)
	}
	return f, nil
}

func decodeObject(raw xmlObject) (Object, *FormatError) {
	if raw.Name == nil {
		return Object{}, formatErrorf(nil, "missing label")
	}
	obj := Object{Label: strings.TrimSpace(*raw.Name)}

	difficult, err := parseBool(raw.Difficult)
	if err != nil {
		return Object{}, formatErrorf(err, "difficult")
	}
	obj.Difficult = difficult

	useRotated := raw.RoBndBox != nil
	switch strings.TrimSpace(raw.Type) {
	case typeBndBox:
		useRotated = raw.BndBox == nil && raw.RoBndBox != nil
	case typeRoBndBox:
		useRotated = raw.RoBndBox != nil
	}

	switch {
	case useRotated:
		g, ferr := decodeRotated(raw.RoBndBox)
		if ferr != nil {
			return Object{}, ferr
		}
		obj.Geometry = g
	case raw.BndBox != nil:
		g, ferr := decodeAxis(raw.BndBox)
		if ferr != nil {
			return Object{}, ferr
		}
		obj.Geometry = g
	default:
		return Object{}, formatErrorf(nil, "missing point data")
	}

	if raw.LineColor != nil {
		c, ferr := decodeColor(raw.LineColor, "line_color")
		if ferr != nil {
			return Object{}, ferr
		}
		obj.LineColor = &c
	}
	if raw.FillColor != nil {
		c, ferr := decodeColor(raw.FillColor, "fill_color")
		if ferr != nil {
			return Object{}, ferr
		}
		obj.FillColor = &c
	}
	return obj, nil
}

func decodeAxis(b *xmlBndBox) (shape.AxisBox, *FormatError) {
	var box shape.AxisBox
	var err *FormatError
	if box.XMin, err = parseFloat(b.XMin, "bndbox/xmin"); err != nil {
		return box, err
	}
	if box.YMin, err = parseFloat(b.YMin, "bndbox/ymin"); err != nil {
		return box, err
	}
	if box.XMax, err = parseFloat(b.XMax, "bndbox/xmax"); err != nil {
		return box, err
	}
	if box.YMax, err = parseFloat(b.YMax, "bndbox/ymax"); err != nil {
		return box, err
	}
	return box, nil
}

func decodeRotated(b *xmlRoBndBox) (shape.RotatedBox, *FormatError) {
	var cx, cy, angle float64
	var err *FormatError
	if cx, err = parseFloat(b.CX, "robndbox/cx"); err != nil {
		return shape.RotatedBox{}, err
	}
	if cy, err = parseFloat(b.CY, "robndbox/cy"); err != nil {
		return shape.RotatedBox{}, err
	}
	if angle, err = parseFloat(b.Angle, "robndbox/angle"); err != nil {
		return shape.RotatedBox{}, err
	}

	switch len(b.Points) {
	case shape.MaxPoints:
		box := shape.RotatedBox{Center: shape.Pt(cx, cy), Direction: angle}
		for i, p := range b.Points {
			x, err := parseFloat(p.X, fmt.Sprintf("robndbox/point[%d]/x", i))
			if err != nil {
				return shape.RotatedBox{}, err
			}
			y, err := parseFloat(p.Y, fmt.Sprintf("robndbox/point[%d]/y", i))
			if err != nil {
				return shape.RotatedBox{}, err
			}
			box.Points[i] = shape.Pt(x, y)
		}
		return box, nil
	case 0:
		if strings.TrimSpace(b.W) == "" || strings.TrimSpace(b.H) == "" {
			return shape.RotatedBox{}, formatErrorf(nil, "missing point data")
		}
		w, err := parseFloat(b.W, "robndbox/w")
		if err != nil {
			return shape.RotatedBox{}, err
		}
		h, err := parseFloat(b.H, "robndbox/h")
		if err != nil {
			return shape.RotatedBox{}, err
		}
		return shape.RotatedFromSize(cx, cy, w, h, angle), nil
	default:
		return shape.RotatedBox{}, formatErrorf(nil, "rotated box has %d points, want %d", len(b.Points), shape.MaxPoints)
	}
}

func decodeColor(c *xmlColor, field string) (shape.Color, *FormatError) {
	var out shape.Color
	channels := []struct {
		s   string
		dst *uint8
		def uint8
		req bool
	}{
		{c.R, &out.R, 0, true},
		{c.G, &out.G, 0, true},
		{c.B, &out.B, 0, true},
		{c.A, &out.A, 255, false},
	}
	for _, ch := range channels {
		s := strings.TrimSpace(ch.s)
		if s == "" {
			if ch.req {
				return shape.Color{}, formatErrorf(nil, "%s: missing channel", field)
			}
			*ch.dst = ch.def
			continue
		}
		v, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return shape.Color{}, formatErrorf(err, "%s", field)
		}
		*ch.dst = uint8(v)
	}
	return out, nil
}

// Encode writes f as an indented XML document.
// Returns a *FormatError when an object has no geometry.
func Encode(w io.Writer, f *AnnotationFile) error {
	doc := xmlAnnotation{
		Folder:   filepath.Base(filepath.Dir(f.Image.Path)),
		Filename: filepath.Base(f.Image.Path),
		Path:     f.Image.Path,
		Source:   xmlSource{Database: "Unknown"},
		Size: xmlSize{
			Width:  strconv.Itoa(f.Image.Width),
			Height: strconv.Itoa(f.Image.Height),
			Depth:  strconv.Itoa(f.Image.Depth),
		},
		Segmented: "0",
		Objects:   make([]xmlObject, 0, len(f.Objects)),
	}
	if f.Verified {
		doc.Verified = "yes"
	}
	if f.Image.Checksum != "" {
		doc.Checksum = &xmlChecksum{Algorithm: checksumAlgo, Value: f.Image.Checksum}
		if f.Image.Bytes > 0 {
			doc.Checksum.Bytes = strconv.FormatInt(f.Image.Bytes, 10)
		}
	}

	for i, o := range f.Objects {
		label := o.Label
		raw := xmlObject{
			Name:      &label,
			Pose:      "Unspecified",
			Truncated: "0",
			Difficult: formatBool(o.Difficult),
			LineColor: encodeColor(o.LineColor),
			FillColor: encodeColor(o.FillColor),
		}
		switch g := o.Geometry.(type) {
		case shape.AxisBox:
			raw.Type = typeBndBox
			raw.BndBox = &xmlBndBox{
				XMin: formatFloat(g.XMin),
				YMin: formatFloat(g.YMin),
				XMax: formatFloat(g.XMax),
				YMax: formatFloat(g.YMax),
			}
		case shape.RotatedBox:
			w, h := g.Size()
			raw.Type = typeRoBndBox
			raw.RoBndBox = &xmlRoBndBox{
				CX:    formatFloat(g.Center.X),
				CY:    formatFloat(g.Center.Y),
				W:     formatFloat(w),
				H:     formatFloat(h),
				Angle: formatFloat(g.Direction),
			}
			for _, p := range g.Points {
				raw.RoBndBox.Points = append(raw.RoBndBox.Points, xmlPoint{X: formatFloat(p.X), Y: formatFloat(p.Y)})
			}
		default:
			return formatErrorf(nil, "object %d (%q): missing geometry", i, o.Label)
		}
		doc.Objects = append(doc.Objects, raw)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode annotation: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func encodeColor(c *shape.Color) *xmlColor {
	if c == nil {
		return nil
	}
	return &xmlColor{
		R: strconv.Itoa(int(c.R)),
		G: strconv.Itoa(int(c.G)),
		B: strconv.Itoa(int(c.B)),
		A: strconv.Itoa(int(c.A)),
	}
}

func parseFloat(s, field string) (float64, *FormatError) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, formatErrorf(nil, "missing %s", field)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, formatErrorf(err, "%s", field)
	}
	return v, nil
}

// parseInt accepts "640" and "640.0"; an absent value is 0.
func parseInt(s, field string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, formatErrorf(err, "%s", field)
	}
	return int(v), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no":
		return false, nil
	case "1", "true", "yes":
		return true, nil
	}
	return false, fmt.Errorf("invalid flag %q", s)
}

func parseVerified(s string) bool {
	v, err := parseBool(s)
	return err == nil && v
}

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
