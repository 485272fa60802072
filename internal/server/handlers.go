package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ironsheep/rolabel-mcp/internal/annotation"
	"github.com/ironsheep/rolabel-mcp/internal/imaging"
	"github.com/ironsheep/rolabel-mcp/internal/project"
	"github.com/ironsheep/rolabel-mcp/internal/shape"
	"github.com/ironsheep/rolabel-mcp/internal/voc"
)

var (
	// ErrNoProject is returned by tools that navigate a project before one is
	// opened.
	ErrNoProject = errors.New("no project is open")

	// ErrUnsaved is returned when switching away from an image with unsaved
	// changes without discard_changes.
	ErrUnsaved = errors.New("current image has unsaved changes; save it or pass discard_changes")
)

// ArgumentError reports tool arguments that could not be decoded.
type ArgumentError struct {
	Tool string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_open", "annotation_add_box").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Undecodable arguments return code -32602; other tool failures return -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.CallTool(params.Name, params.Arguments)
	if err != nil {
		var argErr *ArgumentError
		if errors.As(err, &argErr) {
			return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// CallTool runs one tool. Calls are serialized across all transports.
func (s *Server) CallTool(name string, args json.RawMessage) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executeTool(name, args)
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Project
	case "project_open":
		return s.handleProjectOpen(args)
	case "project_images":
		return s.handleProjectImages(args)
	case "project_statistics":
		return s.handleProjectStatistics(args)

	// Image navigation
	case "image_open":
		return s.handleImageOpen(args)
	case "image_next":
		return s.handleImageStep(name, args, true)
	case "image_prev":
		return s.handleImageStep(name, args, false)
	case "image_info":
		return s.handleImageInfo(args)
	case "image_crop":
		return s.handleImageCrop(args)

	// Annotation files
	case "annotation_load":
		return s.handleAnnotationLoad(args)
	case "annotation_save":
		return s.handleAnnotationSave(args)
	case "annotation_list":
		return s.handleAnnotationList(args)

	// Annotation edits
	case "annotation_add_box":
		return s.handleAnnotationAddBox(args)
	case "annotation_add_rotated_box":
		return s.handleAnnotationAddRotatedBox(args)
	case "annotation_update":
		return s.handleAnnotationUpdate(args)
	case "annotation_move":
		return s.handleAnnotationMove(args)
	case "annotation_rotate":
		return s.handleAnnotationRotate(args)
	case "annotation_remove":
		return s.handleAnnotationRemove(args)
	case "annotation_duplicate":
		return s.handleAnnotationDuplicate(args)
	case "annotation_verify":
		return s.handleAnnotationVerify(args)

	// Analysis
	case "annotation_overlaps":
		return s.handleAnnotationOverlaps(args)
	case "annotation_statistics":
		return s.handleAnnotationStatistics(args)
	case "annotation_copy_to_next":
		return s.handleAnnotationCopyToNext(args)
	case "annotation_crop":
		return s.handleAnnotationCrop(args)
	case "labels_list":
		return s.handleLabelsList(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(tool string, args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &ArgumentError{Tool: tool, Err: err}
	}
	return nil
}

// === Result Views ===

type imageState struct {
	Image            string `json:"image"`
	AnnotationPath   string `json:"annotation_path"`
	State            string `json:"state"`
	Verified         bool   `json:"verified"`
	IdentityMismatch bool   `json:"identity_mismatch"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	Annotations      int    `json:"annotations"`
	Overlaps         int    `json:"overlaps"`
	Index            int    `json:"index"`
	Total            int    `json:"total"`
}

func (s *Server) imageState() imageState {
	id := s.set.Identity()
	st := imageState{
		Image:            s.set.Image(),
		AnnotationPath:   s.set.AnnotationPath(),
		State:            s.set.State().String(),
		Verified:         s.set.Verified(),
		IdentityMismatch: s.set.IdentityMismatch(),
		Width:            id.Width,
		Height:           id.Height,
		Annotations:      s.set.Len(),
		Overlaps:         len(s.set.Overlaps()),
		Index:            -1,
	}
	if s.workspace != nil {
		st.Index = s.workspace.Index(st.Image)
		st.Total = len(s.workspace.Images())
	}
	return st
}

type shapeView struct {
	ID        annotation.EntryID `json:"id,omitempty"`
	Label     string             `json:"label"`
	Difficult bool               `json:"difficult"`
	Rotated   bool               `json:"rotated"`
	Direction float64            `json:"direction"`
	Center    shape.Point        `json:"center"`
	Points    []shape.Point      `json:"points"`
	Bounds    shape.Rect         `json:"bounds"`
	LineColor string             `json:"line_color"`
	FillColor string             `json:"fill_color"`
}

func (s *Server) viewOf(id annotation.EntryID, sh *shape.Shape) shapeView {
	line, fill := sh.EffectiveColors(s.defaults)
	return shapeView{
		ID:        id,
		Label:     sh.Label,
		Difficult: sh.Difficult,
		Rotated:   sh.Rotated,
		Direction: sh.Direction,
		Center:    sh.Centroid(),
		Points:    append([]shape.Point(nil), sh.Points...),
		Bounds:    sh.BoundingRect(),
		LineColor: line.Hex(),
		FillColor: fill.Hex(),
	}
}

func (s *Server) entryView(id annotation.EntryID) (shapeView, error) {
	sh, ok := s.set.Shape(id)
	if !ok {
		return shapeView{}, fmt.Errorf("%w: %s", annotation.ErrUnknownEntry, id)
	}
	return s.viewOf(id, sh), nil
}

type mutationResult struct {
	Annotation shapeView  `json:"annotation"`
	Image      imageState `json:"image"`
}

func (s *Server) mutationResult(id annotation.EntryID) (interface{}, error) {
	view, err := s.entryView(id)
	if err != nil {
		return nil, err
	}
	return &mutationResult{Annotation: view, Image: s.imageState()}, nil
}

// === Project Handlers ===

type projectOpenArgs struct {
	Dir            string   `json:"dir"`
	SaveDir        *string  `json:"save_dir"`
	Extensions     []string `json:"extensions"`
	DiscardChanges bool     `json:"discard_changes"`
}

type projectResult struct {
	Dir       string   `json:"dir"`
	SaveDir   string   `json:"save_dir,omitempty"`
	Images    int      `json:"images"`
	Annotated int      `json:"annotated"`
	First     string   `json:"first,omitempty"`
	Classes   []string `json:"classes"`
}

func (s *Server) handleProjectOpen(args json.RawMessage) (interface{}, error) {
	var a projectOpenArgs
	if err := decodeArgs("project_open", args, &a); err != nil {
		return nil, err
	}
	if a.Dir == "" {
		return nil, &ArgumentError{Tool: "project_open", Err: errors.New("dir is required")}
	}
	if s.set.Dirty() && !a.DiscardChanges {
		return nil, ErrUnsaved
	}

	saveDir := s.cfg.Annotation.SaveDir
	if a.SaveDir != nil {
		saveDir = *a.SaveDir
	}
	exts := a.Extensions
	if len(exts) == 0 {
		exts = s.cfg.Project.ImageExtensions
	}

	ws, err := project.Open(a.Dir, saveDir, exts)
	if err != nil {
		return nil, err
	}
	ws.SetClasses(s.classes)

	s.set.Close()
	s.cache.Clear()
	s.workspace = ws
	s.set = s.newSet(ws.Resolver)

	images := ws.Images()
	rep := annotation.Statistics(nil, images, ws.Resolver)
	res := &projectResult{
		Dir:       ws.Dir,
		SaveDir:   saveDir,
		Images:    len(images),
		Annotated: rep.Project.Annotated,
		Classes:   ws.Classes(),
	}
	if len(images) > 0 {
		res.First = images[0]
	}
	return res, nil
}

type projectImage struct {
	Path      string `json:"path"`
	Index     int    `json:"index"`
	Annotated bool   `json:"annotated"`
}

func (s *Server) handleProjectImages(_ json.RawMessage) (interface{}, error) {
	if s.workspace == nil {
		return nil, ErrNoProject
	}
	out := []projectImage{}
	for i, img := range s.workspace.Images() {
		out = append(out, projectImage{Path: img, Index: i, Annotated: s.workspace.Annotated(img)})
	}
	return map[string]interface{}{"images": out}, nil
}

func (s *Server) handleProjectStatistics(_ json.RawMessage) (interface{}, error) {
	if s.workspace == nil {
		return nil, ErrNoProject
	}
	rep := annotation.Statistics(nil, s.workspace.Images(), s.workspace.Resolver)
	return rep.Project, nil
}

// === Image Handlers ===

type imageOpenArgs struct {
	Path           string `json:"path"`
	DiscardChanges bool   `json:"discard_changes"`
}

func (s *Server) handleImageOpen(args json.RawMessage) (interface{}, error) {
	var a imageOpenArgs
	if err := decodeArgs("image_open", args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, &ArgumentError{Tool: "image_open", Err: errors.New("path is required")}
	}
	return s.switchImage(a.Path, a.DiscardChanges)
}

type imageStepArgs struct {
	DiscardChanges bool `json:"discard_changes"`
}

func (s *Server) handleImageStep(tool string, args json.RawMessage, forward bool) (interface{}, error) {
	var a imageStepArgs
	if err := decodeArgs(tool, args, &a); err != nil {
		return nil, err
	}
	if s.workspace == nil {
		return nil, ErrNoProject
	}

	cur := s.set.Image()
	var (
		target string
		ok     bool
	)
	switch {
	case cur == "" || s.workspace.Index(cur) < 0:
		images := s.workspace.Images()
		if len(images) == 0 {
			return nil, fmt.Errorf("project %s has no images", s.workspace.Dir)
		}
		target, ok = images[0], true
	case forward:
		target, ok = s.workspace.Next(cur)
	default:
		target, ok = s.workspace.Prev(cur)
	}
	if !ok {
		if forward {
			return nil, errors.New("already at the last image")
		}
		return nil, errors.New("already at the first image")
	}
	return s.switchImage(target, a.DiscardChanges)
}

func (s *Server) switchImage(path string, discard bool) (interface{}, error) {
	if s.set.Dirty() && !discard {
		return nil, ErrUnsaved
	}
	prev := s.set.Image()
	if err := s.set.Open(path); err != nil {
		return nil, err
	}
	if prev != "" && prev != path {
		s.cache.Evict(prev)
	}
	return s.imageState(), nil
}

type imageInfoArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageInfo(args json.RawMessage) (interface{}, error) {
	var a imageInfoArgs
	if err := decodeArgs("image_info", args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		a.Path = s.set.Image()
	}
	if a.Path == "" {
		return nil, annotation.ErrNoImage
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

type imageCropArgs struct {
	Path  string  `json:"path"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Scale float64 `json:"scale"`
}

func (s *Server) handleImageCrop(args json.RawMessage) (interface{}, error) {
	var a imageCropArgs
	if err := decodeArgs("image_crop", args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		a.Path = s.set.Image()
	}
	if a.Path == "" {
		return nil, annotation.ErrNoImage
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.CropRegion(img, shape.Rect{Min: shape.Pt(a.X1, a.Y1), Max: shape.Pt(a.X2, a.Y2)}, a.Scale)
}

// === Annotation File Handlers ===

type annotationLoadArgs struct {
	Path string `json:"path"`
}

type annotationFileView struct {
	Image       voc.ImageIdentity `json:"image"`
	Verified    bool              `json:"verified"`
	Annotations []shapeView       `json:"annotations"`
}

func (s *Server) handleAnnotationLoad(args json.RawMessage) (interface{}, error) {
	var a annotationLoadArgs
	if err := decodeArgs("annotation_load", args, &a); err != nil {
		return nil, err
	}
	f, err := voc.Load(a.Path)
	if err != nil {
		return nil, err
	}
	view := &annotationFileView{
		Image:       f.Image,
		Verified:    f.Verified,
		Annotations: []shapeView{},
	}
	for _, sh := range f.Shapes() {
		view.Annotations = append(view.Annotations, s.viewOf("", sh))
	}
	return view, nil
}

type annotationSaveArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleAnnotationSave(args json.RawMessage) (interface{}, error) {
	var a annotationSaveArgs
	if err := decodeArgs("annotation_save", args, &a); err != nil {
		return nil, err
	}
	var err error
	if a.Path != "" {
		err = s.set.SaveAs(a.Path)
	} else {
		err = s.set.Save()
	}
	if err != nil {
		return nil, err
	}
	return s.imageState(), nil
}

type annotationListResult struct {
	Image       imageState  `json:"image"`
	Annotations []shapeView `json:"annotations"`
}

func (s *Server) handleAnnotationList(_ json.RawMessage) (interface{}, error) {
	res := &annotationListResult{Image: s.imageState(), Annotations: []shapeView{}}
	for _, e := range s.set.Entries() {
		res.Annotations = append(res.Annotations, s.viewOf(e.ID, e.Shape))
	}
	return res, nil
}

// === Annotation Edit Handlers ===

type annotationAddBoxArgs struct {
	Label     string  `json:"label"`
	XMin      float64 `json:"xmin"`
	YMin      float64 `json:"ymin"`
	XMax      float64 `json:"xmax"`
	YMax      float64 `json:"ymax"`
	Difficult bool    `json:"difficult"`
}

func (s *Server) handleAnnotationAddBox(args json.RawMessage) (interface{}, error) {
	var a annotationAddBoxArgs
	if err := decodeArgs("annotation_add_box", args, &a); err != nil {
		return nil, err
	}
	if a.XMin == a.XMax || a.YMin == a.YMax {
		return nil, fmt.Errorf("box (%g,%g)-(%g,%g) has zero area", a.XMin, a.YMin, a.XMax, a.YMax)
	}

	sh := shape.NewAxisBox(a.Label, a.XMin, a.YMin, a.XMax, a.YMax)
	sh.SetDifficult(a.Difficult)
	id, err := s.set.Add(sh)
	if err != nil {
		return nil, err
	}
	return s.mutationResult(id)
}

type annotationAddRotatedBoxArgs struct {
	Label     string        `json:"label"`
	CX        float64       `json:"cx"`
	CY        float64       `json:"cy"`
	Width     float64       `json:"width"`
	Height    float64       `json:"height"`
	Angle     float64       `json:"angle"`
	Points    []shape.Point `json:"points"`
	Difficult bool          `json:"difficult"`
}

func (s *Server) handleAnnotationAddRotatedBox(args json.RawMessage) (interface{}, error) {
	var a annotationAddRotatedBoxArgs
	if err := decodeArgs("annotation_add_rotated_box", args, &a); err != nil {
		return nil, err
	}

	var sh *shape.Shape
	if len(a.Points) > 0 {
		sh = shape.New(a.Label)
		for _, p := range a.Points {
			if err := sh.AddPoint(p); err != nil {
				return nil, err
			}
		}
		if len(sh.Points) < shape.MaxPoints {
			return nil, &shape.GeometryError{Op: "add rotated box", Points: len(sh.Points), Err: shape.ErrTooFewPoints}
		}
		if err := sh.Close(); err != nil {
			return nil, err
		}
		sh.Rotated = true
		sh.Direction = a.Angle
	} else {
		if a.Width <= 0 || a.Height <= 0 {
			return nil, fmt.Errorf("rotated box needs a positive width and height, got %gx%g", a.Width, a.Height)
		}
		sh = shape.NewRotatedBox(a.Label, a.CX, a.CY, a.Width, a.Height, a.Angle)
	}
	sh.SetDifficult(a.Difficult)

	id, err := s.set.Add(sh)
	if err != nil {
		return nil, err
	}
	return s.mutationResult(id)
}

type annotationUpdateArgs struct {
	ID        annotation.EntryID `json:"id"`
	Label     *string            `json:"label"`
	Difficult *bool              `json:"difficult"`
	LineColor *string            `json:"line_color"`
	FillColor *string            `json:"fill_color"`
}

func (s *Server) handleAnnotationUpdate(args json.RawMessage) (interface{}, error) {
	var a annotationUpdateArgs
	if err := decodeArgs("annotation_update", args, &a); err != nil {
		return nil, err
	}
	sh, ok := s.set.Shape(a.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", annotation.ErrUnknownEntry, a.ID)
	}

	// Parse colors before touching anything so a bad value changes nothing.
	line, err := parseColorArg(a.LineColor)
	if err != nil {
		return nil, fmt.Errorf("line_color: %w", err)
	}
	fill, err := parseColorArg(a.FillColor)
	if err != nil {
		return nil, fmt.Errorf("fill_color: %w", err)
	}

	if a.Label != nil {
		if err := s.set.SetLabel(a.ID, *a.Label); err != nil {
			return nil, err
		}
	}
	if a.Difficult != nil {
		if err := s.set.SetDifficult(a.ID, *a.Difficult); err != nil {
			return nil, err
		}
	}
	if a.LineColor != nil || a.FillColor != nil {
		if a.LineColor == nil {
			line = sh.LineColor
		}
		if a.FillColor == nil {
			fill = sh.FillColor
		}
		if err := s.set.SetColors(a.ID, line, fill); err != nil {
			return nil, err
		}
	}
	return s.mutationResult(a.ID)
}

// parseColorArg parses an optional hex argument. nil and "" both yield nil;
// callers tell them apart by the argument itself.
func parseColorArg(arg *string) (*shape.Color, error) {
	if arg == nil || *arg == "" {
		return nil, nil
	}
	c, err := shape.ParseHex(*arg)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type annotationMoveArgs struct {
	ID annotation.EntryID `json:"id"`
	DX float64            `json:"dx"`
	DY float64            `json:"dy"`
}

func (s *Server) handleAnnotationMove(args json.RawMessage) (interface{}, error) {
	var a annotationMoveArgs
	if err := decodeArgs("annotation_move", args, &a); err != nil {
		return nil, err
	}
	if err := s.set.Translate(a.ID, a.DX, a.DY); err != nil {
		return nil, err
	}
	return s.mutationResult(a.ID)
}

type annotationRotateArgs struct {
	ID    annotation.EntryID `json:"id"`
	Angle float64            `json:"angle"`
}

func (s *Server) handleAnnotationRotate(args json.RawMessage) (interface{}, error) {
	var a annotationRotateArgs
	if err := decodeArgs("annotation_rotate", args, &a); err != nil {
		return nil, err
	}
	if err := s.set.Rotate(a.ID, a.Angle); err != nil {
		return nil, err
	}
	return s.mutationResult(a.ID)
}

type annotationRemoveArgs struct {
	ID  annotation.EntryID   `json:"id"`
	IDs []annotation.EntryID `json:"ids"`
}

type removeResult struct {
	Removed int        `json:"removed"`
	Image   imageState `json:"image"`
}

func (s *Server) handleAnnotationRemove(args json.RawMessage) (interface{}, error) {
	var a annotationRemoveArgs
	if err := decodeArgs("annotation_remove", args, &a); err != nil {
		return nil, err
	}
	ids := a.IDs
	if a.ID != "" {
		ids = append([]annotation.EntryID{a.ID}, ids...)
	}
	if len(ids) == 0 {
		return nil, &ArgumentError{Tool: "annotation_remove", Err: errors.New("id or ids is required")}
	}
	removed := s.set.RemoveEntries(ids)
	return &removeResult{Removed: removed, Image: s.imageState()}, nil
}

type annotationDuplicateArgs struct {
	ID annotation.EntryID `json:"id"`
}

func (s *Server) handleAnnotationDuplicate(args json.RawMessage) (interface{}, error) {
	var a annotationDuplicateArgs
	if err := decodeArgs("annotation_duplicate", args, &a); err != nil {
		return nil, err
	}
	id, err := s.set.Duplicate(a.ID)
	if err != nil {
		return nil, err
	}
	return s.mutationResult(id)
}

type annotationVerifyArgs struct {
	Verified *bool `json:"verified"`
}

func (s *Server) handleAnnotationVerify(args json.RawMessage) (interface{}, error) {
	var a annotationVerifyArgs
	if err := decodeArgs("annotation_verify", args, &a); err != nil {
		return nil, err
	}
	verified := true
	if a.Verified != nil {
		verified = *a.Verified
	}
	if err := s.set.SetVerified(verified); err != nil {
		return nil, err
	}
	return s.imageState(), nil
}

// === Analysis Handlers ===

type overlapView struct {
	A      annotation.EntryID `json:"a"`
	B      annotation.EntryID `json:"b"`
	IndexA int                `json:"index_a"`
	IndexB int                `json:"index_b"`
	LabelA string             `json:"label_a"`
	LabelB string             `json:"label_b"`
}

func (s *Server) handleAnnotationOverlaps(_ json.RawMessage) (interface{}, error) {
	entries := s.set.Entries()
	out := []overlapView{}
	for _, p := range s.set.Overlaps() {
		out = append(out, overlapView{
			A:      entries[p.A].ID,
			B:      entries[p.B].ID,
			IndexA: p.A,
			IndexB: p.B,
			LabelA: entries[p.A].Shape.Label,
			LabelB: entries[p.B].Shape.Label,
		})
	}
	return map[string]interface{}{"overlaps": out}, nil
}

func (s *Server) handleAnnotationStatistics(_ json.RawMessage) (interface{}, error) {
	var images []string
	if s.workspace != nil {
		images = s.workspace.Images()
	}
	return s.set.Statistics(images), nil
}

type annotationCopyArgs struct {
	IDs []annotation.EntryID `json:"ids"`
}

func (s *Server) handleAnnotationCopyToNext(args json.RawMessage) (interface{}, error) {
	var a annotationCopyArgs
	if err := decodeArgs("annotation_copy_to_next", args, &a); err != nil {
		return nil, err
	}
	if s.workspace == nil {
		return nil, ErrNoProject
	}
	cur := s.set.Image()
	if cur == "" {
		return nil, annotation.ErrNoImage
	}
	next, ok := s.workspace.Next(cur)
	if !ok {
		return nil, errors.New("already at the last image")
	}

	var err error
	if len(a.IDs) == 0 {
		err = s.set.CopyAllTo(next)
	} else {
		err = s.set.CopySelectedTo(next, a.IDs)
	}
	if err != nil {
		return nil, err
	}
	if s.set.Image() != cur {
		s.cache.Evict(cur)
	}
	return s.imageState(), nil
}

type annotationCropArgs struct {
	ID    annotation.EntryID `json:"id"`
	Scale float64            `json:"scale"`
}

func (s *Server) handleAnnotationCrop(args json.RawMessage) (interface{}, error) {
	var a annotationCropArgs
	if err := decodeArgs("annotation_crop", args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	sh, ok := s.set.Shape(a.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", annotation.ErrUnknownEntry, a.ID)
	}
	img, err := s.cache.Load(s.set.Image())
	if err != nil {
		return nil, err
	}
	return imaging.CropShape(img, sh, a.Scale)
}

type labelView struct {
	Label      string `json:"label"`
	Color      string `json:"color"`
	InUse      int    `json:"in_use"`
	Predefined bool   `json:"predefined"`
}

func (s *Server) handleLabelsList(_ json.RawMessage) (interface{}, error) {
	classes := s.classes
	if s.workspace != nil {
		classes = s.workspace.Classes()
	}

	inUse := make(map[string]int)
	for _, sh := range s.set.Shapes() {
		inUse[sh.Label]++
	}

	out := []labelView{}
	seen := make(map[string]bool)
	for _, c := range classes {
		seen[c] = true
		out = append(out, labelView{Label: c, Color: shape.LabelColor(c).Hex(), InUse: inUse[c], Predefined: true})
	}
	var extra []string
	for l := range inUse {
		if !seen[l] {
			extra = append(extra, l)
		}
	}
	sort.Strings(extra)
	for _, l := range extra {
		out = append(out, labelView{Label: l, Color: shape.LabelColor(l).Hex(), InUse: inUse[l]})
	}
	return map[string]interface{}{"labels": out}, nil
}
