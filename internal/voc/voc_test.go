package voc

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/rolabel-mcp/internal/shape"
)

const tolerance = 1e-6

func testIdentity() ImageIdentity {
	return ImageIdentity{
		Path:     "/data/images/frame_0001.jpg",
		Width:    640,
		Height:   480,
		Depth:    3,
		Bytes:    12345,
		Checksum: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
	}
}

func mixedShapes() []*shape.Shape {
	red := shape.Color{R: 255, G: 0, B: 0, A: 200}
	blue := shape.Color{R: 0, G: 0, B: 255, A: 64}

	plain := shape.NewAxisBox("car", 10.5, 20.25, 110.125, 220)
	rotated := shape.NewRotatedBox("plane", 300, 200, 80.5, 40.25, 0.7853981633974483)
	rotated.Difficult = true
	rotated.SetLineColor(&red)
	rotated.SetFillColor(&blue)
	unnamed := shape.NewAxisBox("", 1, 1, 2, 2)
	negative := shape.NewRotatedBox("ship", 50, 50, 10, 30, 5.9)

	return []*shape.Shape{plain, rotated, unnamed, negative}
}

func assertSameShapes(t *testing.T, got, want []*shape.Shape, defaults shape.Defaults) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("shape count: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Label != w.Label {
			t.Errorf("shape %d label: got %q, want %q", i, g.Label, w.Label)
		}
		if g.Difficult != w.Difficult {
			t.Errorf("shape %d difficult: got %v, want %v", i, g.Difficult, w.Difficult)
		}
		if g.Rotated != w.Rotated {
			t.Errorf("shape %d rotated: got %v, want %v", i, g.Rotated, w.Rotated)
		}
		if math.Abs(g.Direction-w.Direction) > tolerance {
			t.Errorf("shape %d direction: got %f, want %f", i, g.Direction, w.Direction)
		}
		if !g.Center.Near(w.Centroid(), tolerance) {
			t.Errorf("shape %d center: got %v, want %v", i, g.Center, w.Centroid())
		}
		if len(g.Points) != len(w.Points) {
			t.Fatalf("shape %d points: got %d, want %d", i, len(g.Points), len(w.Points))
		}
		for j := range w.Points {
			if !g.Points[j].Near(w.Points[j], tolerance) {
				t.Errorf("shape %d point %d: got %v, want %v", i, j, g.Points[j], w.Points[j])
			}
		}
		gl, gf := g.EffectiveColors(defaults)
		wl, wf := w.EffectiveColors(defaults)
		if gl != wl || gf != wf {
			t.Errorf("shape %d colors: got %v/%v, want %v/%v", i, gl, gf, wl, wf)
		}
		if !g.IsClosed() {
			t.Errorf("shape %d should be closed", i)
		}
	}
}

func TestRoundTrip_MixedShapes(t *testing.T) {
	defaults := shape.StandardDefaults()
	shapes := mixedShapes()

	f, err := FromShapes(shapes, testIdentity(), true, defaults)
	if err != nil {
		t.Fatalf("FromShapes failed: %v", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v\n%s", err, buf.String())
	}

	if !decoded.Verified {
		t.Error("verified flag lost")
	}
	if decoded.Image != testIdentity() {
		t.Errorf("image identity: got %+v, want %+v", decoded.Image, testIdentity())
	}
	assertSameShapes(t, decoded.Shapes(), shapes, defaults)
}

func TestRoundTrip_ReencodeIsStable(t *testing.T) {
	defaults := shape.StandardDefaults()
	f, err := FromShapes(mixedShapes(), testIdentity(), false, defaults)
	if err != nil {
		t.Fatalf("FromShapes failed: %v", err)
	}

	var first, second bytes.Buffer
	if err := Encode(&first, f); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(bytes.NewReader(first.Bytes()))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if err := Encode(&second, decoded); err != nil {
		t.Fatalf("second Encode failed: %v", err)
	}
	if first.String() != second.String() {
		t.Errorf("re-encoding changed the document:\nfirst:\n%s\nsecond:\n%s", first.String(), second.String())
	}
}

func TestEncode_SchemaSelection(t *testing.T) {
	f, err := FromShapes(mixedShapes(), testIdentity(), false, shape.StandardDefaults())
	if err != nil {
		t.Fatalf("FromShapes failed: %v", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	doc := buf.String()

	if got := strings.Count(doc, "<bndbox>"); got != 2 {
		t.Errorf("bndbox count: got %d, want 2", got)
	}
	if got := strings.Count(doc, "<robndbox>"); got != 2 {
		t.Errorf("robndbox count: got %d, want 2", got)
	}
	if got := strings.Count(doc, "<point>"); got != 8 {
		t.Errorf("point count: got %d, want 8", got)
	}
	if strings.Contains(doc, "verified=") {
		t.Error("unverified document should not carry a verified attribute")
	}
	// Order of objects follows the in-memory list.
	if strings.Index(doc, "<name>car</name>") > strings.Index(doc, "<name>plane</name>") {
		t.Error("objects were reordered")
	}
}

func TestFromShapes_ColorOmission(t *testing.T) {
	defaults := shape.StandardDefaults()
	same := defaults.Line
	other := shape.Color{R: 1, G: 2, B: 3, A: 4}

	s := shape.NewAxisBox("a", 0, 0, 1, 1)
	s.SetLineColor(&same)
	s.SetFillColor(&other)

	f, err := FromShapes([]*shape.Shape{s}, ImageIdentity{}, false, defaults)
	if err != nil {
		t.Fatalf("FromShapes failed: %v", err)
	}
	if f.Objects[0].LineColor != nil {
		t.Error("line color equal to the default should be omitted")
	}
	if f.Objects[0].FillColor == nil || *f.Objects[0].FillColor != other {
		t.Errorf("fill color override lost: %v", f.Objects[0].FillColor)
	}
}

func TestFromShapes_WrongPointCount(t *testing.T) {
	tri := shape.New("tri")
	for _, p := range []shape.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}} {
		_ = tri.AddPoint(p)
	}
	_ = tri.Close()

	_, err := FromShapes([]*shape.Shape{shape.NewAxisBox("ok", 0, 0, 1, 1), tri}, ImageIdentity{}, false, shape.StandardDefaults())
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("got %v, want *FormatError", err)
	}
	if !errors.Is(err, shape.ErrTooFewPoints) {
		t.Errorf("error should wrap ErrTooFewPoints: %v", err)
	}
}

func TestDecode_LegacyDocument(t *testing.T) {
	doc := `<annotation verified="yes">
	<folder>imgs</folder>
	<filename>a.jpg</filename>
	<path>/tmp/imgs/a.jpg</path>
	<source><database>Unknown</database></source>
	<size><width>800</width><height>600</height><depth>3</depth></size>
	<segmented>0</segmented>
	<object>
		<type>bndbox</type>
		<name>person</name>
		<pose>Unspecified</pose>
		<truncated>0</truncated>
		<difficult>1</difficult>
		<bndbox><xmin>10</xmin><ymin>20</ymin><xmax>30</xmax><ymax>60</ymax></bndbox>
	</object>
	<object>
		<type>robndbox</type>
		<name>boat</name>
		<pose>Unspecified</pose>
		<truncated>0</truncated>
		<difficult>0</difficult>
		<robndbox><cx>100</cx><cy>100</cy><w>40</w><h>20</h><angle>1.5707963267948966</angle></robndbox>
	</object>
</annotation>`

	f, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !f.Verified {
		t.Error("verified=\"yes\" should decode as true")
	}
	if f.Image.Width != 800 || f.Image.Height != 600 || f.Image.Depth != 3 {
		t.Errorf("size: got %+v", f.Image)
	}
	if f.Image.Checksum != "" || f.Image.Bytes != 0 {
		t.Error("legacy document has no checksum")
	}

	shapes := f.Shapes()
	if len(shapes) != 2 {
		t.Fatalf("shape count: got %d, want 2", len(shapes))
	}

	person := shapes[0]
	if person.Rotated || !person.Difficult || person.Label != "person" {
		t.Errorf("person: got %+v", person)
	}
	wantPts := []shape.Point{{X: 10, Y: 20}, {X: 30, Y: 20}, {X: 30, Y: 60}, {X: 10, Y: 60}}
	for i, p := range wantPts {
		if person.Points[i] != p {
			t.Errorf("person point %d: got %v, want %v", i, person.Points[i], p)
		}
	}
	if person.Center != shape.Pt(20, 40) {
		t.Errorf("person center: got %v", person.Center)
	}

	boat := shapes[1]
	if !boat.Rotated {
		t.Error("boat should be rotated")
	}
	// A quarter turn swaps the extents: 20 wide, 40 tall.
	r := boat.BoundingRect()
	if math.Abs(r.Width()-20) > tolerance || math.Abs(r.Height()-40) > tolerance {
		t.Errorf("boat bounds: got %fx%f, want 20x40", r.Width(), r.Height())
	}
	if boat.LineColor != nil || boat.FillColor != nil {
		t.Error("absent colors should stay unset")
	}
}

func TestDecode_Errors(t *testing.T) {
	wrap := func(obj string) string {
		return `<annotation><filename>a.jpg</filename><size><width>1</width><height>1</height><depth>3</depth></size>` + obj + `</annotation>`
	}

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"not xml", "this is not xml", "malformed"},
		{"wrong root", "<voc></voc>", "malformed"},
		{"truncated", "<annotation><object><name>a</name>", "malformed"},
		{"missing label", wrap(`<object><bndbox><xmin>0</xmin><ymin>0</ymin><xmax>1</xmax><ymax>1</ymax></bndbox></object>`), "missing label"},
		{"missing geometry", wrap(`<object><name>a</name></object>`), "missing point data"},
		{"missing coordinate", wrap(`<object><name>a</name><bndbox><xmin>0</xmin><ymin>0</ymin><xmax>1</xmax></bndbox></object>`), "bndbox/ymax"},
		{"bad coordinate", wrap(`<object><name>a</name><bndbox><xmin>zero</xmin><ymin>0</ymin><xmax>1</xmax><ymax>1</ymax></bndbox></object>`), "bndbox/xmin"},
		{"three corners", wrap(`<object><name>a</name><robndbox><cx>0</cx><cy>0</cy><angle>0</angle>` +
			`<point><x>0</x><y>0</y></point><point><x>1</x><y>0</y></point><point><x>1</x><y>1</y></point></robndbox></object>`), "3 points"},
		{"rotated without size or points", wrap(`<object><name>a</name><robndbox><cx>0</cx><cy>0</cy><angle>0</angle></robndbox></object>`), "missing point data"},
		{"rotated without angle", wrap(`<object><name>a</name><robndbox><cx>0</cx><cy>0</cy><w>1</w><h>1</h></robndbox></object>`), "robndbox/angle"},
		{"bad difficult", wrap(`<object><name>a</name><difficult>maybe</difficult><bndbox><xmin>0</xmin><ymin>0</ymin><xmax>1</xmax><ymax>1</ymax></bndbox></object>`), "difficult"},
		{"bad color", wrap(`<object><name>a</name><bndbox><xmin>0</xmin><ymin>0</ymin><xmax>1</xmax><ymax>1</ymax></bndbox><line_color r="300" g="0" b="0"/></object>`), "line_color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("Decode should fail")
			}
			if f != nil {
				t.Error("no partial result should be returned")
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("got %T, want *FormatError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestDecode_ColorAlphaDefault(t *testing.T) {
	doc := `<annotation><object><name>a</name><bndbox><xmin>0</xmin><ymin>0</ymin><xmax>1</xmax><ymax>1</ymax></bndbox>` +
		`<line_color r="1" g="2" b="3"/></object></annotation>`
	f, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := shape.Color{R: 1, G: 2, B: 3, A: 255}
	if c := f.Objects[0].LineColor; c == nil || *c != want {
		t.Errorf("line color: got %v, want %v", c, want)
	}
}

func TestSaveLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame_0001.xml")
	defaults := shape.StandardDefaults()
	shapes := mixedShapes()

	if err := SaveShapes(path, shapes, testIdentity(), false, defaults); err != nil {
		t.Fatalf("SaveShapes failed: %v", err)
	}

	got, err := LoadShapes(path)
	if err != nil {
		t.Fatalf("LoadShapes failed: %v", err)
	}
	assertSameShapes(t, got, shapes, defaults)

	// Overwrite with fewer shapes; the previous content must be fully replaced.
	if err := SaveShapes(path, shapes[:1], testIdentity(), false, defaults); err != nil {
		t.Fatalf("second SaveShapes failed: %v", err)
	}
	got, err = LoadShapes(path)
	if err != nil {
		t.Fatalf("LoadShapes failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("shape count after overwrite: got %d, want 1", len(got))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestSave_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "a.xml")
	err := SaveShapes(path, mixedShapes(), testIdentity(), false, shape.StandardDefaults())
	if err == nil {
		t.Fatal("Save into a missing directory should fail")
	}
	var fe *FormatError
	if errors.As(err, &fe) {
		t.Error("filesystem failures should not be reported as format errors")
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.xml"))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("got %v, want *FormatError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("error should wrap os.ErrNotExist")
	}
}

func TestIsAnnotationFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"annotation", write("a.xml", `<?xml version="1.0"?><annotation><filename>a</filename></annotation>`), true},
		{"upper extension", write("b.XML", `<annotation/>`), true},
		{"comment first", write("c.xml", `<!-- made by hand --><annotation/>`), true},
		{"other root", write("d.xml", `<project><name>x</name></project>`), false},
		{"wrong extension", write("e.txt", `<annotation/>`), false},
		{"not xml", write("f.xml", `hello`), false},
		{"missing", filepath.Join(dir, "none.xml"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAnnotationFile(tt.path); got != tt.want {
				t.Errorf("IsAnnotationFile(%s): got %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestImageIdentity_Matches(t *testing.T) {
	id := testIdentity()
	tests := []struct {
		name  string
		other ImageIdentity
		want  bool
	}{
		{"same", id, true},
		{"unknown checksum", ImageIdentity{Bytes: id.Bytes}, true},
		{"nothing recorded", ImageIdentity{}, true},
		{"different size", ImageIdentity{Bytes: 1, Checksum: id.Checksum}, false},
		{"different checksum", ImageIdentity{Bytes: id.Bytes, Checksum: "00"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := id.Matches(tt.other); got != tt.want {
				t.Errorf("Matches: got %v, want %v", got, tt.want)
			}
		})
	}
}
