package annotation

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/rolabel-mcp/internal/overlap"
	"github.com/ironsheep/rolabel-mcp/internal/project"
	"github.com/ironsheep/rolabel-mcp/internal/shape"
	"github.com/ironsheep/rolabel-mcp/internal/voc"
)

// fakeImages identifies any path as a 640x480 RGB image unless overridden.
type fakeImages map[string]voc.ImageIdentity

func (f fakeImages) Identify(path string) (voc.ImageIdentity, error) {
	if id, ok := f[path]; ok {
		return id, nil
	}
	if filepath.Base(path) == "missing.jpg" {
		return voc.ImageIdentity{}, os.ErrNotExist
	}
	return voc.ImageIdentity{Path: path, Width: 640, Height: 480, Depth: 3}, nil
}

func newTestSet(t *testing.T, images fakeImages) (*Set, string) {
	t.Helper()
	dir := t.TempDir()
	if images == nil {
		images = fakeImages{}
	}
	s := NewSet(Options{
		Resolver: project.Resolver{},
		Images:   images,
		Defaults: shape.StandardDefaults(),
	})
	return s, dir
}

func mustOpen(t *testing.T, s *Set, path string) {
	t.Helper()
	if err := s.Open(path); err != nil {
		t.Fatalf("Open(%s) failed: %v", path, err)
	}
}

func mustAdd(t *testing.T, s *Set, sh *shape.Shape) EntryID {
	t.Helper()
	id, err := s.Add(sh)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return id
}

func TestNewSet_Empty(t *testing.T) {
	s, _ := newTestSet(t, nil)

	if s.State() != StateEmpty {
		t.Errorf("state: got %s, want empty", s.State())
	}
	if _, err := s.Add(shape.NewAxisBox("a", 0, 0, 10, 10)); !errors.Is(err, ErrNoImage) {
		t.Errorf("Add: got %v, want ErrNoImage", err)
	}
	if err := s.Save(); !errors.Is(err, ErrNoImage) {
		t.Errorf("Save: got %v, want ErrNoImage", err)
	}
	if err := s.CopyAllTo("x.jpg"); !errors.Is(err, ErrNoImage) {
		t.Errorf("CopyAllTo: got %v, want ErrNoImage", err)
	}
}

func TestDirtyTransitions(t *testing.T) {
	s, dir := newTestSet(t, nil)
	img := filepath.Join(dir, "a.jpg")

	mustOpen(t, s, img)
	if s.State() != StateClean {
		t.Fatalf("after open: got %s, want clean", s.State())
	}

	mustAdd(t, s, shape.NewAxisBox("car", 0, 0, 10, 10))
	if s.State() != StateDirty {
		t.Fatalf("after add: got %s, want dirty", s.State())
	}

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if s.State() != StateClean {
		t.Errorf("after save: got %s, want clean", s.State())
	}
	if want := filepath.Join(dir, "a.xml"); s.AnnotationPath() != want {
		t.Errorf("AnnotationPath: got %s, want %s", s.AnnotationPath(), want)
	}

	shapes, err := voc.LoadShapes(s.AnnotationPath())
	if err != nil {
		t.Fatalf("LoadShapes failed: %v", err)
	}
	if len(shapes) != 1 || shapes[0].Label != "car" {
		t.Errorf("saved shapes: got %d", len(shapes))
	}
}

func TestSave_FailureKeepsDirty(t *testing.T) {
	dir := t.TempDir()
	s := NewSet(Options{
		Resolver: project.Resolver{SaveDir: filepath.Join(dir, "does-not-exist")},
		Images:   fakeImages{},
		Defaults: shape.StandardDefaults(),
	})
	mustOpen(t, s, filepath.Join(dir, "a.jpg"))
	mustAdd(t, s, shape.NewAxisBox("car", 0, 0, 10, 10))

	if err := s.Save(); err == nil {
		t.Fatal("Save should fail when the save directory is missing")
	}
	if s.State() != StateDirty {
		t.Errorf("after failed save: got %s, want dirty", s.State())
	}
}

func TestSave_InvalidShapeKeepsDirty(t *testing.T) {
	s, dir := newTestSet(t, nil)
	mustOpen(t, s, filepath.Join(dir, "a.jpg"))

	tri := shape.New("tri")
	for _, p := range []shape.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 5, Y: 5}} {
		if err := tri.AddPoint(p); err != nil {
			t.Fatalf("AddPoint failed: %v", err)
		}
	}
	mustAdd(t, s, tri)

	err := s.Save()
	var ferr *voc.FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("Save: got %v, want *voc.FormatError", err)
	}
	if s.State() != StateDirty {
		t.Errorf("state: got %s, want dirty", s.State())
	}
}

func TestOpen_LoadsExisting(t *testing.T) {
	s, dir := newTestSet(t, nil)
	img := filepath.Join(dir, "a.jpg")
	shapes := []*shape.Shape{
		shape.NewAxisBox("car", 0, 0, 10, 10),
		shape.NewRotatedBox("ship", 50, 50, 20, 10, 0.5),
	}
	id := voc.ImageIdentity{Path: img, Width: 640, Height: 480, Depth: 3}
	if err := voc.SaveShapes(filepath.Join(dir, "a.xml"), shapes, id, true, shape.StandardDefaults()); err != nil {
		t.Fatalf("SaveShapes failed: %v", err)
	}

	mustOpen(t, s, img)
	if s.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", s.Len())
	}
	if !s.Verified() {
		t.Error("Verified should be loaded from the file")
	}
	if s.State() != StateClean {
		t.Errorf("state: got %s, want clean", s.State())
	}
	if s.IdentityMismatch() {
		t.Error("identity should match")
	}
	got := s.Shapes()
	if got[0].Label != "car" || got[1].Label != "ship" || !got[1].Rotated {
		t.Errorf("shapes out of order or wrong: %q %q", got[0].Label, got[1].Label)
	}
}

func TestOpen_FormatErrorKeepsState(t *testing.T) {
	s, dir := newTestSet(t, nil)
	first := filepath.Join(dir, "a.jpg")
	mustOpen(t, s, first)
	mustAdd(t, s, shape.NewAxisBox("car", 0, 0, 10, 10))

	if err := os.WriteFile(filepath.Join(dir, "b.xml"), []byte("<annotation><object>"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	err := s.Open(filepath.Join(dir, "b.jpg"))
	var ferr *voc.FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("Open: got %v, want *voc.FormatError", err)
	}
	if s.Image() != first || s.Len() != 1 || s.State() != StateDirty {
		t.Errorf("state changed: image=%s len=%d state=%s", s.Image(), s.Len(), s.State())
	}

	if err := s.Open(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Error("Open should fail when the image cannot be identified")
	}
	if s.Image() != first {
		t.Errorf("image changed to %s", s.Image())
	}
}

func TestOpen_IgnoresForeignXML(t *testing.T) {
	s, dir := newTestSet(t, nil)
	if err := os.WriteFile(filepath.Join(dir, "a.xml"), []byte("<settings><k>v</k></settings>"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	img := filepath.Join(dir, "a.jpg")
	mustOpen(t, s, img)
	if s.State() != StateClean || s.Len() != 0 {
		t.Errorf("got state=%s len=%d, want clean with no shapes", s.State(), s.Len())
	}

	rep := s.Statistics([]string{img})
	if rep.Project.Annotated != 0 {
		t.Errorf("Annotated: got %d, want 0", rep.Project.Annotated)
	}
}

func TestOpen_IdentityMismatch(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "a.jpg")
	images := fakeImages{img: {Path: img, Width: 640, Height: 480, Depth: 3, Bytes: 100, Checksum: "bbbb"}}
	s, _ := newTestSet(t, images)

	recorded := voc.ImageIdentity{Path: img, Width: 640, Height: 480, Depth: 3, Bytes: 100, Checksum: "aaaa"}
	if err := voc.SaveShapes(filepath.Join(dir, "a.xml"), []*shape.Shape{shape.NewAxisBox("car", 0, 0, 5, 5)}, recorded, false, shape.StandardDefaults()); err != nil {
		t.Fatalf("SaveShapes failed: %v", err)
	}

	mustOpen(t, s, img)
	if !s.IdentityMismatch() {
		t.Error("IdentityMismatch should be reported")
	}
	if s.Len() != 1 {
		t.Errorf("shapes should still load: got %d", s.Len())
	}
}

func TestRemove_Untracked(t *testing.T) {
	s, dir := newTestSet(t, nil)
	mustOpen(t, s, filepath.Join(dir, "a.jpg"))

	if s.Remove(shape.NewAxisBox("stranger", 0, 0, 1, 1)) {
		t.Error("Remove of an untracked shape should report false")
	}
	if n := s.RemoveEntries([]EntryID{"nope"}); n != 0 {
		t.Errorf("RemoveEntries of an unknown id: got %d removed, want 0", n)
	}
	if s.State() != StateClean {
		t.Errorf("state: got %s, want clean", s.State())
	}
}

func TestEntryMappings(t *testing.T) {
	s, dir := newTestSet(t, nil)
	mustOpen(t, s, filepath.Join(dir, "a.jpg"))

	a := shape.NewAxisBox("a", 0, 0, 10, 10)
	b := shape.NewAxisBox("b", 20, 20, 30, 30)
	idA := mustAdd(t, s, a)
	idB := mustAdd(t, s, b)

	if idA == idB {
		t.Fatal("entry ids must be unique")
	}
	if _, err := s.Add(a); !errors.Is(err, ErrAlreadyTracked) {
		t.Errorf("re-adding: got %v, want ErrAlreadyTracked", err)
	}
	if got, ok := s.Shape(idB); !ok || got != b {
		t.Error("Shape(idB) should return b")
	}
	if got, ok := s.EntryOf(a); !ok || got != idA {
		t.Error("EntryOf(a) should return idA")
	}

	entries := s.Entries()
	if len(entries) != 2 || entries[0].ID != idA || entries[1].ID != idB {
		t.Errorf("entries out of order: %+v", entries)
	}

	if s.RemoveEntries([]EntryID{idA}) != 1 {
		t.Fatal("RemoveEntries should remove a tracked entry")
	}
	if _, ok := s.Shape(idA); ok {
		t.Error("removed entry still resolves")
	}
	if _, ok := s.EntryOf(a); ok {
		t.Error("removed shape still has an entry")
	}
	if s.Len() != 1 {
		t.Errorf("Len: got %d, want 1", s.Len())
	}
}

func TestRemoveEntries(t *testing.T) {
	s, dir := newTestSet(t, nil)
	mustOpen(t, s, filepath.Join(dir, "a.jpg"))
	idA := mustAdd(t, s, shape.NewAxisBox("a", 0, 0, 10, 10))
	idB := mustAdd(t, s, shape.NewAxisBox("b", 5, 5, 15, 15))
	idC := mustAdd(t, s, shape.NewAxisBox("c", 50, 50, 60, 60))
	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if n := s.RemoveEntries([]EntryID{"nope"}); n != 0 {
		t.Errorf("unknown ids: got %d removed, want 0", n)
	}
	if s.State() != StateClean {
		t.Errorf("removing nothing should keep the set clean, got %s", s.State())
	}

	if n := s.RemoveEntries([]EntryID{idA, "nope", idB, idA}); n != 2 {
		t.Fatalf("removed: got %d, want 2", n)
	}
	if s.State() != StateDirty {
		t.Errorf("state: got %s, want dirty", s.State())
	}
	entries := s.Entries()
	if len(entries) != 1 || entries[0].ID != idC {
		t.Errorf("remaining entries: got %+v, want only %s", entries, idC)
	}
	if len(s.Overlaps()) != 0 {
		t.Errorf("overlaps should be rescanned after removal, got %v", s.Overlaps())
	}
}

func TestDuplicate(t *testing.T) {
	s, dir := newTestSet(t, nil)
	mustOpen(t, s, filepath.Join(dir, "a.jpg"))
	src := shape.NewAxisBox("car", 10, 10, 20, 20)
	red := shape.Color{R: 255, A: 255}
	src.SetLineColor(&red)
	id := mustAdd(t, s, src)
	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	dupID, err := s.Duplicate(id)
	if err != nil {
		t.Fatalf("Duplicate failed: %v", err)
	}
	if dupID == id {
		t.Fatal("duplicate must get a new id")
	}
	if s.Len() != 2 || s.State() != StateDirty {
		t.Fatalf("after duplicate: len=%d state=%s", s.Len(), s.State())
	}

	dup, _ := s.Shape(dupID)
	if dup == src {
		t.Fatal("duplicate shares the source shape")
	}
	if dup.Label != "car" || dup.Points[0] != src.Points[0] || *dup.LineColor != red {
		t.Errorf("duplicate differs from source: %+v", dup)
	}
	if len(s.Overlaps()) != 1 {
		t.Errorf("overlaps: got %d, want 1", len(s.Overlaps()))
	}

	if err := s.Translate(dupID, 100, 0); err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if src.Points[0].X != 10 {
		t.Errorf("moving the duplicate moved the source: x=%v", src.Points[0].X)
	}
}

func TestSetVerified(t *testing.T) {
	s, dir := newTestSet(t, nil)
	img := filepath.Join(dir, "a.jpg")
	mustOpen(t, s, img)
	mustAdd(t, s, shape.NewAxisBox("car", 10, 10, 20, 20))

	if err := s.Verify(); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if err := s.SetVerified(false); err != nil {
		t.Fatalf("SetVerified(false) failed: %v", err)
	}
	if s.Verified() || s.State() != StateClean {
		t.Errorf("after unverify: verified=%v state=%s", s.Verified(), s.State())
	}

	mustOpen(t, s, img)
	if s.Verified() {
		t.Error("cleared flag should be saved")
	}
	if s.Len() != 1 {
		t.Errorf("shapes: got %d, want 1", s.Len())
	}
}

func TestMutations(t *testing.T) {
	s, dir := newTestSet(t, nil)
	mustOpen(t, s, filepath.Join(dir, "a.jpg"))
	id := mustAdd(t, s, shape.NewAxisBox("car", 10, 10, 20, 20))
	red := shape.Color{R: 255, A: 255}

	tests := []struct {
		name   string
		mutate func() error
		check  func(*shape.Shape) bool
	}{
		{"label", func() error { return s.SetLabel(id, "truck") }, func(sh *shape.Shape) bool { return sh.Label == "truck" }},
		{"difficult", func() error { return s.SetDifficult(id, true) }, func(sh *shape.Shape) bool { return sh.Difficult }},
		{"colors", func() error { return s.SetColors(id, &red, nil) }, func(sh *shape.Shape) bool { return sh.LineColor != nil && *sh.LineColor == red }},
		{"translate", func() error { return s.Translate(id, 5, 0) }, func(sh *shape.Shape) bool { return sh.Points[0].X == 15 }},
		{"rotate", func() error { return s.Rotate(id, math.Pi/6) }, func(sh *shape.Shape) bool { return sh.Rotated }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Verify(); err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if !s.Verified() || s.State() != StateClean {
				t.Fatalf("after verify: verified=%v state=%s", s.Verified(), s.State())
			}

			if err := tt.mutate(); err != nil {
				t.Fatalf("mutation failed: %v", err)
			}
			sh, _ := s.Shape(id)
			if !tt.check(sh) {
				t.Error("mutation not applied")
			}
			if s.State() != StateDirty {
				t.Errorf("state: got %s, want dirty", s.State())
			}
			if s.Verified() {
				t.Error("mutation should clear verified")
			}
		})
	}
}

func TestMutations_UnknownEntry(t *testing.T) {
	s, dir := newTestSet(t, nil)
	mustOpen(t, s, filepath.Join(dir, "a.jpg"))

	errs := []error{
		s.SetLabel("nope", "x"),
		s.SetDifficult("nope", true),
		s.SetColors("nope", nil, nil),
		s.Translate("nope", 1, 1),
		s.Rotate("nope", 1),
		s.CopySelectedTo(filepath.Join(dir, "b.jpg"), []EntryID{"nope"}),
		func() error { _, err := s.Duplicate("nope"); return err }(),
	}
	for i, err := range errs {
		if !errors.Is(err, ErrUnknownEntry) {
			t.Errorf("call %d: got %v, want ErrUnknownEntry", i, err)
		}
	}
	if s.State() != StateClean || s.Image() != filepath.Join(dir, "a.jpg") {
		t.Errorf("failed calls changed the set: state=%s image=%s", s.State(), s.Image())
	}
}

func TestVerify_SaveFailureRestoresFlag(t *testing.T) {
	dir := t.TempDir()
	s := NewSet(Options{
		Resolver: project.Resolver{SaveDir: filepath.Join(dir, "missing")},
		Images:   fakeImages{},
		Defaults: shape.StandardDefaults(),
	})
	mustOpen(t, s, filepath.Join(dir, "a.jpg"))

	if err := s.Verify(); err == nil {
		t.Fatal("Verify should fail when the save fails")
	}
	if s.Verified() {
		t.Error("verified flag should be restored")
	}
}

func TestOverlapRecomputation(t *testing.T) {
	s, dir := newTestSet(t, nil)
	mustOpen(t, s, filepath.Join(dir, "a.jpg"))

	a := shape.NewAxisBox("a", 0, 0, 100, 100)
	mustAdd(t, s, a)
	mustAdd(t, s, shape.NewAxisBox("b", 50, 0, 150, 100))
	mustAdd(t, s, shape.NewAxisBox("c", 500, 500, 510, 510))

	got := s.Overlaps()
	if len(got) != 1 || got[0] != (overlap.Pair{A: 0, B: 1}) {
		t.Errorf("overlaps: got %v, want [{0 1}]", got)
	}

	s.Remove(a)
	if got := s.Overlaps(); len(got) != 0 {
		t.Errorf("overlaps after remove: got %v, want none", got)
	}
}

func TestCopySelectedTo(t *testing.T) {
	s, dir := newTestSet(t, nil)
	first := filepath.Join(dir, "a.jpg")
	second := filepath.Join(dir, "b.jpg")

	mustOpen(t, s, first)
	car := shape.NewAxisBox("car", 0, 0, 10, 10)
	idCar := mustAdd(t, s, car)
	mustAdd(t, s, shape.NewRotatedBox("ship", 50, 50, 20, 10, 0.5))

	if err := s.CopySelectedTo(second, []EntryID{idCar}); err != nil {
		t.Fatalf("CopySelectedTo failed: %v", err)
	}

	if s.Image() != second {
		t.Errorf("image: got %s, want %s", s.Image(), second)
	}
	if s.State() != StateClean {
		t.Errorf("state: got %s, want clean", s.State())
	}
	if s.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", s.Len())
	}
	copied := s.Shapes()[0]
	if copied == car {
		t.Error("copied shape must not be the original")
	}

	// The prior image was saved before switching.
	prior, err := voc.LoadShapes(filepath.Join(dir, "a.xml"))
	if err != nil {
		t.Fatalf("LoadShapes(a.xml) failed: %v", err)
	}
	if len(prior) != 2 {
		t.Errorf("a.xml shapes: got %d, want 2", len(prior))
	}

	// The target was persisted immediately.
	target, err := voc.LoadShapes(filepath.Join(dir, "b.xml"))
	if err != nil {
		t.Fatalf("LoadShapes(b.xml) failed: %v", err)
	}
	if len(target) != 1 || target[0].Label != "car" {
		t.Errorf("b.xml shapes: got %d", len(target))
	}

	car.Translate(100, 100)
	if copied.Points[0] != (shape.Point{X: 0, Y: 0}) {
		t.Errorf("copy follows original: %v", copied.Points[0])
	}
}

func TestCopyAllTo_AppendsToExisting(t *testing.T) {
	s, dir := newTestSet(t, nil)
	first := filepath.Join(dir, "a.jpg")
	second := filepath.Join(dir, "b.jpg")

	existing := []*shape.Shape{shape.NewAxisBox("tree", 300, 300, 310, 310)}
	if err := voc.SaveShapes(filepath.Join(dir, "b.xml"), existing, voc.ImageIdentity{Path: second}, true, shape.StandardDefaults()); err != nil {
		t.Fatalf("SaveShapes failed: %v", err)
	}

	mustOpen(t, s, first)
	mustAdd(t, s, shape.NewAxisBox("car", 0, 0, 10, 10))
	mustAdd(t, s, shape.NewAxisBox("bus", 20, 20, 40, 40))

	if err := s.CopyAllTo(second); err != nil {
		t.Fatalf("CopyAllTo failed: %v", err)
	}

	labels := []string{}
	for _, sh := range s.Shapes() {
		labels = append(labels, sh.Label)
	}
	want := []string{"tree", "car", "bus"}
	if len(labels) != len(want) {
		t.Fatalf("labels: got %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("label %d: got %s, want %s", i, labels[i], want[i])
		}
	}
	if s.Verified() {
		t.Error("copying into an image clears its verified flag")
	}
}

func TestCopySelectedTo_PriorSaveFails(t *testing.T) {
	dir := t.TempDir()
	s := NewSet(Options{
		Resolver: project.Resolver{SaveDir: filepath.Join(dir, "missing")},
		Images:   fakeImages{},
		Defaults: shape.StandardDefaults(),
	})
	first := filepath.Join(dir, "a.jpg")
	mustOpen(t, s, first)
	id := mustAdd(t, s, shape.NewAxisBox("car", 0, 0, 10, 10))

	if err := s.CopySelectedTo(filepath.Join(dir, "b.jpg"), []EntryID{id}); err == nil {
		t.Fatal("CopySelectedTo should fail when the current image cannot be saved")
	}
	if s.Image() != first || s.State() != StateDirty {
		t.Errorf("set switched despite failure: image=%s state=%s", s.Image(), s.State())
	}
}

func TestLabelColors(t *testing.T) {
	dir := t.TempDir()
	s := NewSet(Options{
		Resolver:    project.Resolver{},
		Images:      fakeImages{},
		Defaults:    shape.StandardDefaults(),
		LabelColors: true,
	})
	mustOpen(t, s, filepath.Join(dir, "a.jpg"))

	plain := shape.NewAxisBox("car", 0, 0, 10, 10)
	id := mustAdd(t, s, plain)
	if plain.LineColor == nil || *plain.LineColor != shape.LabelColor("car") {
		t.Errorf("line color: got %v, want label color", plain.LineColor)
	}

	if err := s.SetLabel(id, "boat"); err != nil {
		t.Fatalf("SetLabel failed: %v", err)
	}
	if *plain.FillColor != shape.LabelColor("boat") {
		t.Errorf("fill color should follow the new label")
	}

	custom := shape.Color{R: 1, G: 2, B: 3, A: 4}
	colored := shape.NewAxisBox("car", 20, 20, 30, 30)
	colored.SetLineColor(&custom)
	mustAdd(t, s, colored)
	if *colored.LineColor != custom {
		t.Error("explicit colors must be kept")
	}
}

func TestClose(t *testing.T) {
	s, dir := newTestSet(t, nil)
	mustOpen(t, s, filepath.Join(dir, "a.jpg"))
	mustAdd(t, s, shape.NewAxisBox("car", 0, 0, 10, 10))

	s.Close()
	if s.State() != StateEmpty || s.Len() != 0 || s.Image() != "" {
		t.Errorf("after close: state=%s len=%d image=%q", s.State(), s.Len(), s.Image())
	}
}
