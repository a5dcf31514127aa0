package editor

import (
	"errors"
	"log/slog"
	"time"

	"github.com/nathsir75/mmap/internal/geom"
	"github.com/nathsir75/mmap/internal/scene"
	"github.com/nathsir75/mmap/internal/typeid"
)

var (
	ErrNotEditing  = errors.New("editor: no text edit in progress")
	ErrNotFound    = errors.New("editor: item not found")
	ErrNotAnImage  = errors.New("editor: item is not an image")
	ErrNothingToDo = errors.New("editor: nothing to apply")
)

// Paste ingestion defaults.
const (
	pasteImageMaxW = 420
	pasteImageMaxH = 320
	pasteTextWidth = 320

	defaultFontSize   = 22
	defaultFontFamily = "Inter"

	defaultShapeWidth  = 140
	defaultShapeHeight = 90
)

// Options configures a new Editor. Store and Schedule are required; Preview
// and Loader may be nil when the host does not render thumbnails or images.
type Options struct {
	Store    ContentStore
	Schedule Scheduler
	Preview  PreviewFunc
	Loader   ImageLoader
	Logger   *slog.Logger
	Now      func() time.Time
}

// Editor owns one open page: its scene, selection, tool state, history and
// autosave pipeline. It is not safe for concurrent use; the host must call
// every method, including scheduled fires and loader callbacks, from the
// single goroutine that owns it.
type Editor struct {
	sc        *scene.Scene
	selection *Selection
	history   *History

	store    ContentStore
	schedule Scheduler
	preview  PreviewFunc
	loader   ImageLoader
	log      *slog.Logger
	now      func() time.Time

	// tool state
	tool      Tool
	toolColor string
	thickness float64

	// in-progress gestures
	drawing   *scene.Item
	lassoing  bool
	lasso     []geom.Point
	lastErase time.Time

	// transform capture, one drag at a time
	dragID    string
	dragStart scene.Snapshot

	// text editing
	editingID string

	// autosave pipeline
	pageID         string
	dirty          bool
	ignoreAutosave bool
	hadContent     bool
	lastSaved      uint64
	cancelSave     func()
}

func New(opts Options) *Editor {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	loader := opts.Loader
	if loader == nil {
		loader = nopLoader{}
	}
	return &Editor{
		sc:        scene.New(),
		selection: NewSelection(),
		history:   NewHistory(),
		store:     opts.Store,
		schedule:  opts.Schedule,
		preview:   opts.Preview,
		loader:    loader,
		log:       log,
		now:       now,
		tool:      ToolSelect,
		toolColor: "#1f2544",
		thickness: 4,
	}
}

type nopLoader struct{}

func (nopLoader) Load(string, func(w, h float64, ok bool)) {}

func (e *Editor) Scene() *scene.Scene   { return e.sc }
func (e *Editor) Selection() *Selection { return e.selection }
func (e *Editor) History() *History     { return e.history }
func (e *Editor) PageID() string        { return e.pageID }
func (e *Editor) ActiveTool() Tool      { return e.tool }

// SetTool switches the active tool. Leaving the select tool drops the
// selection so stale transform handles never linger over ink gestures.
func (e *Editor) SetTool(t Tool) {
	if t != ToolSelect && t != ToolLasso {
		e.selection.Clear()
	}
	e.tool = t
}

// SetColor changes the pen color and recolors any selected strokes.
func (e *Editor) SetColor(color string) {
	e.toolColor = color
	changed := false
	for _, it := range e.selection.Items() {
		if it.Kind == scene.KindInk {
			it.Style.Stroke = color
			changed = true
		}
	}
	if changed {
		e.markDirty("set-color")
	}
}

// SetThickness changes the pen width and rewidths any selected strokes.
func (e *Editor) SetThickness(w float64) {
	e.thickness = w
	changed := false
	for _, it := range e.selection.Items() {
		if it.Kind == scene.KindInk {
			it.Style.StrokeWidth = w
			changed = true
		}
	}
	if changed {
		e.markDirty("set-thickness")
	}
}

// SetFontFamily applies the family to every text-bearing selected item.
func (e *Editor) SetFontFamily(family string) {
	e.selection.FontFamily = family
	changed := false
	for _, it := range e.selection.Items() {
		if txt := textTarget(it); txt != nil {
			txt.FontFamily = family
			changed = true
		}
	}
	if changed {
		e.markDirty("set-font-family")
	}
}

// SetFontSize applies the size to every text-bearing selected item.
func (e *Editor) SetFontSize(size float64) {
	e.selection.FontSize = size
	changed := false
	for _, it := range e.selection.Items() {
		if txt := textTarget(it); txt != nil {
			txt.FontSize = size
			changed = true
		}
	}
	if changed {
		e.markDirty("set-font-size")
	}
}

// textTarget resolves the item that actually carries text: the item itself
// for plain text nodes, the label child for groups.
func textTarget(it *scene.Item) *scene.Item {
	if it.Kind == scene.KindText {
		return it
	}
	return it.TextChild()
}

// PointerDown dispatches the press to the active tool.
func (e *Editor) PointerDown(pos geom.Point) {
	switch e.tool {
	case ToolPen:
		e.beginStroke(pos, false)
	case ToolHighlighter:
		e.beginStroke(pos, true)
	case ToolEraser:
		e.eraseAt(pos, e.now())
	case ToolLasso:
		e.beginLasso(pos)
	case ToolText:
		e.AddTextAt(pos)
	case ToolSelect:
		e.selectAt(pos)
	}
}

// PointerMove dispatches pointer motion to the active tool.
func (e *Editor) PointerMove(pos geom.Point) {
	switch e.tool {
	case ToolPen, ToolHighlighter:
		e.extendStroke(pos)
	case ToolEraser:
		e.eraseAt(pos, e.now())
	case ToolLasso:
		e.extendLasso(pos)
	}
}

// PointerUp completes the gesture of the active tool.
func (e *Editor) PointerUp() {
	switch e.tool {
	case ToolPen, ToolHighlighter:
		e.endStroke()
	case ToolEraser:
		e.markDirty("erase-end")
	case ToolLasso:
		e.endLasso()
	}
}

// selectAt hit-tests the press and updates the selection. Hitting a
// selected item keeps the selection so a drag can start; hitting empty
// canvas clears it.
func (e *Editor) selectAt(pos geom.Point) {
	hit := e.sc.HitAt(pos)
	if hit == nil {
		e.selection.Clear()
		return
	}
	if !e.selection.Contains(hit.ID) {
		e.selection.Select(hit)
	}
	e.dragID = hit.ID
	e.dragStart = hit.Snapshot()
}

// DragEnd commits a finished drag of the item to (x, y) and records it as
// one undoable transform.
func (e *Editor) DragEnd(id string, x, y float64) error {
	it := e.sc.Get(id)
	if it == nil {
		return ErrNotFound
	}

	before := e.transformBase(id, it)
	it.X, it.Y = x, y
	e.history.PushTransform(id, before, it.Snapshot())
	e.markDirty("drag-end")
	return nil
}

// ResizeEnd commits a finished handle resize: the transient scale the
// handles accumulated is folded into concrete dimensions and reset to 1, so
// stroke widths and font sizes never inherit distortion.
func (e *Editor) ResizeEnd(id string, scaleX, scaleY, x, y float64) error {
	it := e.sc.Get(id)
	if it == nil {
		return ErrNotFound
	}

	before := e.transformBase(id, it)
	it.X, it.Y = x, y
	it.ScaleX, it.ScaleY = scaleX, scaleY
	commitTransform(it)
	e.history.PushTransform(id, before, it.Snapshot())
	e.markDirty("resize-end")
	return nil
}

// transformBase returns the snapshot captured when the gesture started on
// this item, falling back to the current state when the host never routed a
// press through selectAt.
func (e *Editor) transformBase(id string, it *scene.Item) scene.Snapshot {
	if e.dragID == id {
		e.dragID = ""
		return e.dragStart
	}
	return it.Snapshot()
}

// AddTextAt inserts an editable text node at pos and opens it for editing.
func (e *Editor) AddTextAt(pos geom.Point) *scene.Item {
	it := &scene.Item{
		ID:          typeid.NewItemID(),
		Kind:        scene.KindText,
		UserContent: true,
		Draggable:   true,
		X:           pos.X,
		Y:           pos.Y,
		Width:       pasteTextWidth,
		Height:      minTextHeight,
		ScaleX:      1,
		ScaleY:      1,
		FontFamily:  defaultFontFamily,
		FontSize:    defaultFontSize,
		WrapWord:    true,
		Style:       scene.Style{Fill: e.toolColor, Opacity: 1},
	}
	e.sc.Add(scene.LayerShapes, it)
	e.history.PushAdd(it.Snapshot())
	e.selection.Select(it)
	e.editingID = it.ID
	e.markDirty("add-text")
	return it
}

// AddShapeNode inserts a shape of the given kind at pos. Box groups carry a
// centered label child from the start so text editing always has a target.
func (e *Editor) AddShapeNode(kind scene.Kind, pos geom.Point) *scene.Item {
	it := &scene.Item{
		ID:          typeid.NewItemID(),
		Kind:        kind,
		UserContent: true,
		Draggable:   true,
		X:           pos.X,
		Y:           pos.Y,
		Width:       defaultShapeWidth,
		Height:      defaultShapeHeight,
		ScaleX:      1,
		ScaleY:      1,
		Style: scene.Style{
			Stroke:      e.toolColor,
			Fill:        "#ffffff",
			StrokeWidth: 2,
			Opacity:     1,
		},
	}
	if kind == scene.KindRectGroup {
		label := &scene.Item{
			ID:         typeid.NewItemID(),
			Kind:       scene.KindText,
			ScaleX:     1,
			ScaleY:     1,
			FontFamily: defaultFontFamily,
			FontSize:   defaultFontSize,
			WrapWord:   true,
			Style:      scene.Style{Fill: e.toolColor, Opacity: 1},
		}
		it.Children = append(it.Children, label)
		layoutBoxLabel(it)
	}
	e.sc.Add(scene.LayerShapes, it)
	e.history.PushAdd(it.Snapshot())
	e.selection.Select(it)
	e.markDirty("add-shape")
	return it
}

// PasteImage inserts an image from a data URI at pos. The node appears
// immediately; once the loader reports the natural size it is fitted inside
// the paste box preserving aspect ratio.
func (e *Editor) PasteImage(src string, pos geom.Point) *scene.Item {
	it := &scene.Item{
		ID:          typeid.NewItemID(),
		Kind:        scene.KindImage,
		UserContent: true,
		Draggable:   true,
		X:           pos.X,
		Y:           pos.Y,
		ScaleX:      1,
		ScaleY:      1,
		Src:         src,
		Style:       scene.Style{Opacity: 1},
	}
	e.sc.Add(scene.LayerShapes, it)

	item := it
	e.loader.Load(src, func(w, h float64, ok bool) {
		if !ok || w <= 0 || h <= 0 {
			e.log.Warn("pasted image failed to decode", "item", item.ID)
			return
		}
		item.Width, item.Height = fitInside(w, h, pasteImageMaxW, pasteImageMaxH)
		item.ImageReady = true
		e.markDirty("image-loaded")
	})

	e.history.PushAdd(it.Snapshot())
	e.selection.Select(it)
	e.markDirty("paste-image")
	return it
}

// fitInside scales (w, h) down to fit in (maxW, maxH) without changing the
// aspect ratio. Smaller sources are kept at natural size.
func fitInside(w, h, maxW, maxH float64) (float64, float64) {
	scale := min(maxW/w, maxH/h, 1)
	return w * scale, h * scale
}

// PasteText inserts plain clipboard text as a wrapped text node at pos.
func (e *Editor) PasteText(text string, pos geom.Point) *scene.Item {
	it := e.AddTextAt(pos)
	it.Text = text
	e.editingID = ""
	e.markDirty("paste-text")
	return it
}

// StartTextEdit opens the item's text for in-place editing.
func (e *Editor) StartTextEdit(id string) error {
	it := e.sc.Get(id)
	if it == nil {
		return ErrNotFound
	}
	if textTarget(it) == nil {
		return ErrNothingToDo
	}
	e.editingID = id
	return nil
}

// CommitTextEdit stores the edited text and closes the edit session. Box
// groups re-center their label afterwards.
func (e *Editor) CommitTextEdit(text string) error {
	if e.editingID == "" {
		return ErrNotEditing
	}
	it := e.sc.Get(e.editingID)
	e.editingID = ""
	if it == nil {
		return ErrNotFound
	}
	txt := textTarget(it)
	if txt == nil {
		return ErrNothingToDo
	}
	txt.Text = text
	if it.Kind == scene.KindRectGroup {
		layoutBoxLabel(it)
	}
	e.markDirty("text-commit")
	return nil
}

// CancelTextEdit abandons the edit session without touching the item.
func (e *Editor) CancelTextEdit() {
	e.editingID = ""
}

// Editing reports the id of the item currently open for text editing.
func (e *Editor) Editing() string { return e.editingID }

// ApplyCrop replaces an image's source with its cropped rendition and
// resets the box to the crop's dimensions.
func (e *Editor) ApplyCrop(id, src string, w, h float64) error {
	it := e.sc.Get(id)
	if it == nil {
		return ErrNotFound
	}
	if it.Kind != scene.KindImage {
		return ErrNotAnImage
	}

	before := it.Snapshot()
	it.Src = src
	it.Width, it.Height = w, h
	it.ImageReady = false
	e.ReviveImages([]*scene.Item{it})
	e.history.PushTransform(id, before, it.Snapshot())
	e.markDirty("crop")
	return nil
}

// DeleteSelection removes every selected item, each as its own undoable
// delete.
func (e *Editor) DeleteSelection() {
	items := e.selection.Items()
	if len(items) == 0 {
		return
	}
	for _, it := range items {
		e.history.PushDelete(it.Snapshot())
		e.sc.Remove(it.ID)
	}
	e.selection.Clear()
	e.markDirty("delete")
}

// GroupSelection wraps the selected items in a group positioned at their
// union bounds. Children keep their absolute placement and stop being
// individually draggable; the group moves as one.
func (e *Editor) GroupSelection() *scene.Item {
	items := e.selection.Items()
	if len(items) < 2 {
		return nil
	}

	box := items[0].Bounds()
	for _, it := range items[1:] {
		box = box.Union(it.Bounds())
	}

	group := &scene.Item{
		ID:          typeid.NewItemID(),
		Kind:        scene.KindGroup,
		UserContent: true,
		Draggable:   true,
		X:           box.X,
		Y:           box.Y,
		Width:       box.Width,
		Height:      box.Height,
		ScaleX:      1,
		ScaleY:      1,
	}

	origin := geom.Point{X: box.X, Y: box.Y}
	for _, it := range items {
		abs := it.AbsolutePosition(geom.Point{})
		e.sc.Remove(it.ID)
		it.SetAbsolutePosition(abs, origin)
		it.Draggable = false
		group.Children = append(group.Children, it)
	}

	e.sc.Add(scene.LayerShapes, group)
	e.selection.Select(group)
	e.markDirty("group")
	return group
}

// UngroupSelection dissolves a selected group back into top-level items,
// preserving every child's absolute placement and restoring draggability.
func (e *Editor) UngroupSelection() []*scene.Item {
	group := e.selection.Primary()
	if group == nil || group.Kind != scene.KindGroup {
		return nil
	}

	origin := geom.Point{X: group.X, Y: group.Y}
	children := group.Children
	group.Children = nil
	e.sc.Remove(group.ID)

	for _, ch := range children {
		abs := ch.AbsolutePosition(origin)
		ch.SetAbsolutePosition(abs, geom.Point{})
		ch.Draggable = true
		layer := scene.LayerShapes
		if ch.Kind == scene.KindInk {
			layer = scene.LayerInk
		}
		e.sc.Add(layer, ch)
	}

	e.selection.SelectMany(children)
	e.markDirty("ungroup")
	return children
}

// z-order operations act on the primary selected item.

func (e *Editor) BringForward() {
	if it := e.selection.Primary(); it != nil && e.sc.MoveUp(it.ID) {
		e.markDirty("z-order")
	}
}

func (e *Editor) SendBackward() {
	if it := e.selection.Primary(); it != nil && e.sc.MoveDown(it.ID) {
		e.markDirty("z-order")
	}
}

func (e *Editor) BringToFront() {
	if it := e.selection.Primary(); it != nil && e.sc.MoveToForeground(it.ID) {
		e.markDirty("z-order")
	}
}

func (e *Editor) SendToBack() {
	if it := e.selection.Primary(); it != nil && e.sc.MoveToBackground(it.ID) {
		e.markDirty("z-order")
	}
}

// Undo reverts the most recent recorded action. The selection is dropped
// afterwards so handles never point at an item the replay just replaced.
func (e *Editor) Undo() bool {
	a, ok := e.history.PopUndo()
	if !ok {
		return false
	}
	e.history.BeginReplay()
	switch a.Type {
	case ActionAdd:
		e.sc.Remove(a.ItemID)
	case ActionDelete:
		e.restoreSnapshot(a.Snap)
	case ActionTransform:
		e.replaceFromSnapshot(a.ItemID, a.Before)
	}
	e.history.EndReplay()
	e.selection.Clear()
	e.markDirty("undo")
	return true
}

// Redo reapplies the most recently undone action.
func (e *Editor) Redo() bool {
	a, ok := e.history.PopRedo()
	if !ok {
		return false
	}
	e.history.BeginReplay()
	switch a.Type {
	case ActionAdd:
		e.restoreSnapshot(a.Snap)
	case ActionDelete:
		e.sc.Remove(a.ItemID)
	case ActionTransform:
		e.replaceFromSnapshot(a.ItemID, a.After)
	}
	e.history.EndReplay()
	e.selection.Clear()
	e.markDirty("redo")
	return true
}

// restoreSnapshot materializes a snapshot back into the scene on the layer
// its kind belongs to, re-decoding any images it carries.
func (e *Editor) restoreSnapshot(s scene.Snapshot) {
	it, err := scene.FromSnapshot(s)
	if err != nil {
		e.log.Warn("history snapshot unusable", "item", s.ID, "error", err)
		return
	}
	layer := scene.LayerShapes
	if it.Kind == scene.KindInk {
		layer = scene.LayerInk
	}
	e.sc.Add(layer, it)
	e.ReviveImages([]*scene.Item{it})
}

func (e *Editor) replaceFromSnapshot(id string, s scene.Snapshot) {
	it, err := scene.FromSnapshot(s)
	if err != nil {
		e.log.Warn("history snapshot unusable", "item", id, "error", err)
		return
	}
	if !e.sc.Replace(id, it) {
		e.restoreSnapshot(s)
		return
	}
	e.ReviveImages([]*scene.Item{it})
}
