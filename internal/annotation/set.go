package annotation

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ironsheep/rolabel-mcp/internal/logger"
	"github.com/ironsheep/rolabel-mcp/internal/overlap"
	"github.com/ironsheep/rolabel-mcp/internal/shape"
	"github.com/ironsheep/rolabel-mcp/internal/voc"
)

// State is the lifecycle state of a Set.
type State int

const (
	StateEmpty State = iota
	StateClean
	StateDirty
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// EntryID identifies one shape in the list view of a Set.
type EntryID string

// Entry pairs a list entry with its shape.
type Entry struct {
	ID    EntryID      `json:"id"`
	Shape *shape.Shape `json:"shape"`
}

// PathResolver locates annotation files for images.
type PathResolver interface {
	AnnotationPathFor(imagePath string) string
	Exists(path string) bool
	Annotated(imagePath string) bool
	DefaultSaveDir() string
}

// ImageIdentifier describes the image file recorded in annotation documents.
type ImageIdentifier interface {
	Identify(imagePath string) (voc.ImageIdentity, error)
}

// Options configures a Set.
type Options struct {
	Resolver PathResolver
	Images   ImageIdentifier

	// Defaults are the project colors used to omit redundant overrides.
	Defaults shape.Defaults

	// LabelColors gives uncolored shapes a color derived from their label.
	LabelColors bool
}

// Set holds the shapes of the open image.
type Set struct {
	opts Options

	state          State
	image          string
	identity       voc.ImageIdentity
	annotationPath string
	verified       bool
	mismatch       bool

	shapes  []*shape.Shape
	toShape map[EntryID]*shape.Shape
	toEntry map[*shape.Shape]EntryID

	overlaps []overlap.Pair
}

// NewSet returns an empty set.
func NewSet(opts Options) *Set {
	s := &Set{opts: opts}
	s.reset()
	return s
}

func (s *Set) reset() {
	s.state = StateEmpty
	s.image = ""
	s.identity = voc.ImageIdentity{}
	s.annotationPath = ""
	s.verified = false
	s.mismatch = false
	s.shapes = nil
	s.toShape = make(map[EntryID]*shape.Shape)
	s.toEntry = make(map[*shape.Shape]EntryID)
	s.overlaps = nil
}

// Open switches to imagePath and loads its annotation file when one exists.
// A file at the annotation path that is not an annotation document is
// ignored, and the image opens with no shapes.
//
// The previous image's shapes are discarded without saving. If the image
// cannot be identified or its annotation file cannot be decoded, the error is
// returned and the set keeps its previous state.
//
// An annotation file whose recorded image identity disagrees with the image
// still loads; IdentityMismatch reports the condition.
func (s *Set) Open(imagePath string) error {
	identity, err := s.opts.Images.Identify(imagePath)
	if err != nil {
		return fmt.Errorf("failed to identify image: %w", err)
	}

	annPath := s.opts.Resolver.AnnotationPathFor(imagePath)
	var (
		loaded   []*shape.Shape
		verified bool
		mismatch bool
	)
	switch {
	case s.opts.Resolver.Annotated(imagePath):
		f, err := voc.Load(annPath)
		if err != nil {
			return err
		}
		loaded = f.Shapes()
		verified = f.Verified
		if !f.Image.Matches(identity) {
			mismatch = true
			logger.S().Warnw("annotation file does not match image",
				"image", imagePath, "annotation", annPath,
				"recorded_bytes", f.Image.Bytes, "image_bytes", identity.Bytes)
		}
	case s.opts.Resolver.Exists(annPath):
		logger.S().Warnw("ignoring file that is not an annotation document",
			"image", imagePath, "path", annPath)
	}

	s.reset()
	s.state = StateClean
	s.image = imagePath
	s.identity = identity
	s.annotationPath = annPath
	s.verified = verified
	s.mismatch = mismatch
	for _, sh := range loaded {
		s.applyLabelColor(sh)
		s.track(sh)
	}
	s.overlaps = overlap.FindAll(s.shapes)

	logger.S().Debugw("image opened", "image", imagePath, "shapes", len(loaded), "verified", verified)
	return nil
}

// Close discards the current image and its shapes.
func (s *Set) Close() {
	s.reset()
}

// State returns the lifecycle state.
func (s *Set) State() State { return s.state }

// Dirty reports whether there are unsaved changes.
func (s *Set) Dirty() bool { return s.state == StateDirty }

// Image returns the open image path, or "".
func (s *Set) Image() string { return s.image }

// Identity returns the open image's identity.
func (s *Set) Identity() voc.ImageIdentity { return s.identity }

// AnnotationPath returns where Save writes.
func (s *Set) AnnotationPath() string { return s.annotationPath }

// Verified reports the human-review flag.
func (s *Set) Verified() bool { return s.verified }

// IdentityMismatch reports whether the loaded annotation file was recorded
// against a different image file.
func (s *Set) IdentityMismatch() bool { return s.mismatch }

// Len returns the number of shapes.
func (s *Set) Len() int { return len(s.shapes) }

// Shapes returns the shapes in list order.
func (s *Set) Shapes() []*shape.Shape {
	return append([]*shape.Shape(nil), s.shapes...)
}

// Entries returns the list entries in list order.
func (s *Set) Entries() []Entry {
	out := make([]Entry, len(s.shapes))
	for i, sh := range s.shapes {
		out[i] = Entry{ID: s.toEntry[sh], Shape: sh}
	}
	return out
}

// Shape returns the shape behind an entry.
func (s *Set) Shape(id EntryID) (*shape.Shape, bool) {
	sh, ok := s.toShape[id]
	return sh, ok
}

// EntryOf returns the entry of a tracked shape.
func (s *Set) EntryOf(sh *shape.Shape) (EntryID, bool) {
	id, ok := s.toEntry[sh]
	return id, ok
}

// Overlaps returns the overlapping index pairs found after the last change.
func (s *Set) Overlaps() []overlap.Pair {
	return append([]overlap.Pair(nil), s.overlaps...)
}

// Add appends sh and returns its new entry.
func (s *Set) Add(sh *shape.Shape) (EntryID, error) {
	if s.state == StateEmpty {
		return "", ErrNoImage
	}
	if _, ok := s.toEntry[sh]; ok {
		return "", ErrAlreadyTracked
	}
	s.applyLabelColor(sh)
	id := s.track(sh)
	s.mutated()
	return id, nil
}

// Remove drops sh from the set. Untracked shapes are ignored; the result
// reports whether anything was removed.
func (s *Set) Remove(sh *shape.Shape) bool {
	id, ok := s.toEntry[sh]
	if !ok {
		return false
	}
	s.untrack(id, sh)
	s.mutated()
	return true
}

// RemoveEntries drops every listed entry and refreshes the overlap scan once.
// Unknown ids are skipped; the result is the number of shapes removed.
func (s *Set) RemoveEntries(ids []EntryID) int {
	n := 0
	for _, id := range ids {
		sh, ok := s.toShape[id]
		if !ok {
			continue
		}
		s.untrack(id, sh)
		n++
	}
	if n > 0 {
		s.mutated()
	}
	return n
}

// Duplicate appends an independent copy of an entry and returns the new id.
func (s *Set) Duplicate(id EntryID) (EntryID, error) {
	sh, err := s.lookup(id)
	if err != nil {
		return "", err
	}
	dup := s.track(sh.Copy())
	s.mutated()
	return dup, nil
}

// SetLabel relabels an entry. With label colors enabled the shape's colors
// follow the new label.
func (s *Set) SetLabel(id EntryID, label string) error {
	sh, err := s.lookup(id)
	if err != nil {
		return err
	}
	sh.SetLabel(label)
	if s.opts.LabelColors {
		c := shape.LabelColor(label)
		sh.SetLineColor(&c)
		sh.SetFillColor(&c)
	}
	s.mutated()
	return nil
}

// SetDifficult updates the difficult flag of an entry.
func (s *Set) SetDifficult(id EntryID, difficult bool) error {
	sh, err := s.lookup(id)
	if err != nil {
		return err
	}
	sh.SetDifficult(difficult)
	s.mutated()
	return nil
}

// SetColors overrides the colors of an entry. A nil color reverts to the
// project default.
func (s *Set) SetColors(id EntryID, line, fill *shape.Color) error {
	sh, err := s.lookup(id)
	if err != nil {
		return err
	}
	sh.SetLineColor(line)
	sh.SetFillColor(fill)
	s.mutated()
	return nil
}

// Translate moves an entry by (dx, dy).
func (s *Set) Translate(id EntryID, dx, dy float64) error {
	sh, err := s.lookup(id)
	if err != nil {
		return err
	}
	sh.Translate(dx, dy)
	s.mutated()
	return nil
}

// Rotate turns an entry by theta radians about its centroid.
func (s *Set) Rotate(id EntryID, theta float64) error {
	sh, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := sh.Rotate(theta); err != nil {
		return err
	}
	s.mutated()
	return nil
}

// Save writes the complete set to AnnotationPath.
func (s *Set) Save() error {
	return s.SaveAs(s.annotationPath)
}

// SaveAs writes the complete set to path, which becomes the new save target.
// On failure the set's state is unchanged.
func (s *Set) SaveAs(path string) error {
	if s.state == StateEmpty {
		return ErrNoImage
	}
	if err := voc.SaveShapes(path, s.shapes, s.identity, s.verified, s.opts.Defaults); err != nil {
		return err
	}
	s.annotationPath = path
	s.state = StateClean
	logger.S().Infow("annotation saved", "path", path, "shapes", len(s.shapes), "verified", s.verified)
	return nil
}

// Verify marks the image as reviewed and saves it.
func (s *Set) Verify() error {
	return s.SetVerified(true)
}

// SetVerified records whether the image has been reviewed and saves it. If the
// save fails the previous flag is restored.
func (s *Set) SetVerified(v bool) error {
	if s.state == StateEmpty {
		return ErrNoImage
	}
	prev := s.verified
	s.verified = v
	if err := s.Save(); err != nil {
		s.verified = prev
		return err
	}
	return nil
}

// CopySelectedTo carries copies of the selected entries over to target.
//
// Unsaved changes on the current image are saved first; if that save fails
// nothing else happens. The set then opens target, appends the copies after
// its existing shapes and saves it.
func (s *Set) CopySelectedTo(target string, ids []EntryID) error {
	if s.state == StateEmpty {
		return ErrNoImage
	}
	copies := make([]*shape.Shape, 0, len(ids))
	for _, id := range ids {
		sh, err := s.lookup(id)
		if err != nil {
			return err
		}
		copies = append(copies, sh.Copy())
	}

	if s.Dirty() {
		if err := s.Save(); err != nil {
			return fmt.Errorf("failed to save %s before switching: %w", s.image, err)
		}
	}
	if err := s.Open(target); err != nil {
		return err
	}
	for _, c := range copies {
		s.track(c)
	}
	s.mutated()
	return s.Save()
}

// CopyAllTo carries copies of every shape over to target.
func (s *Set) CopyAllTo(target string) error {
	ids := make([]EntryID, len(s.shapes))
	for i, sh := range s.shapes {
		ids[i] = s.toEntry[sh]
	}
	return s.CopySelectedTo(target, ids)
}

// Statistics reports on the current shapes and on imagePaths.
func (s *Set) Statistics(imagePaths []string) Report {
	return Statistics(s.shapes, imagePaths, s.opts.Resolver)
}

func (s *Set) lookup(id EntryID) (*shape.Shape, error) {
	sh, ok := s.toShape[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	return sh, nil
}

func (s *Set) track(sh *shape.Shape) EntryID {
	id := EntryID(uuid.NewString())
	s.shapes = append(s.shapes, sh)
	s.toShape[id] = sh
	s.toEntry[sh] = id
	return id
}

func (s *Set) untrack(id EntryID, sh *shape.Shape) {
	for i, cur := range s.shapes {
		if cur == sh {
			s.shapes = append(s.shapes[:i], s.shapes[i+1:]...)
			break
		}
	}
	delete(s.toEntry, sh)
	delete(s.toShape, id)
}

func (s *Set) applyLabelColor(sh *shape.Shape) {
	if !s.opts.LabelColors || sh.LineColor != nil || sh.FillColor != nil {
		return
	}
	c := shape.LabelColor(sh.Label)
	sh.SetLineColor(&c)
	sh.SetFillColor(&c)
}

func (s *Set) mutated() {
	s.state = StateDirty
	s.verified = false
	s.overlaps = overlap.FindAll(s.shapes)
	if len(s.overlaps) > 0 {
		logger.S().Warnw("overlapping annotations", "image", s.image, "pairs", len(s.overlaps))
	}
}
