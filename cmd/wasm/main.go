//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"syscall/js"
	"time"

	"github.com/nathsir75/mmap/internal/bridge"
	"github.com/nathsir75/mmap/internal/editor"
	"github.com/nathsir75/mmap/internal/geom"
	"github.com/nathsir75/mmap/internal/preview"
	"github.com/nathsir75/mmap/internal/scene"
)

var (
	// mu stands in for the editor's owning goroutine: every entry point,
	// including autosave timer fires and image load callbacks, serializes
	// through it.
	mu      sync.Mutex
	ed      *editor.Editor
	mailbox *bridge.Mailbox
)

func main() {
	renderer := &preview.Renderer{DecodeImages: false}
	mailbox = bridge.New()
	ed = editor.New(editor.Options{
		Store:  jsStore{},
		Loader: jsLoader{},
		Preview: func(sc *scene.Scene) (string, error) {
			return renderer.Render(sc)
		},
		Schedule: func(d time.Duration, fire func()) func() {
			t := time.AfterFunc(d, func() {
				mu.Lock()
				defer mu.Unlock()
				fire()
			})
			return func() { t.Stop() }
		},
	})

	api := js.Global().Get("Object").New()

	// --- Commands (frontend → editor) ---
	api.Set("loadPage", js.FuncOf(loadPage))
	api.Set("flush", js.FuncOf(flush))
	api.Set("pointerDown", js.FuncOf(pointerDown))
	api.Set("pointerMove", js.FuncOf(pointerMove))
	api.Set("pointerUp", js.FuncOf(pointerUp))
	api.Set("setTool", js.FuncOf(setTool))
	api.Set("setColor", js.FuncOf(setColor))
	api.Set("setThickness", js.FuncOf(setThickness))
	api.Set("setFontFamily", js.FuncOf(setFontFamily))
	api.Set("setFontSize", js.FuncOf(setFontSize))
	api.Set("dragEnd", js.FuncOf(dragEnd))
	api.Set("resizeEnd", js.FuncOf(resizeEnd))
	api.Set("addTextAt", js.FuncOf(addTextAt))
	api.Set("addShape", js.FuncOf(addShape))
	api.Set("pasteImage", js.FuncOf(pasteImage))
	api.Set("pasteText", js.FuncOf(pasteText))
	api.Set("startTextEdit", js.FuncOf(startTextEdit))
	api.Set("commitTextEdit", js.FuncOf(commitTextEdit))
	api.Set("cancelTextEdit", js.FuncOf(cancelTextEdit))
	api.Set("deleteSelection", js.FuncOf(deleteSelection))
	api.Set("groupSelection", js.FuncOf(groupSelection))
	api.Set("ungroupSelection", js.FuncOf(ungroupSelection))
	api.Set("bringForward", js.FuncOf(bringForward))
	api.Set("sendBackward", js.FuncOf(sendBackward))
	api.Set("bringToFront", js.FuncOf(bringToFront))
	api.Set("sendToBack", js.FuncOf(sendToBack))
	api.Set("undo", js.FuncOf(undo))
	api.Set("redo", js.FuncOf(redo))

	// --- Crop and node-editor handoffs ---
	api.Set("postCropResult", js.FuncOf(postCropResult))
	api.Set("applyPendingCrop", js.FuncOf(applyPendingCrop))
	api.Set("beginNodeEdit", js.FuncOf(beginNodeEdit))
	api.Set("takeNodeEdit", js.FuncOf(takeNodeEdit))

	// --- Queries (frontend ← editor) ---
	api.Set("getState", js.FuncOf(getState))
	api.Set("renderPreview", js.FuncOf(renderPreview))

	js.Global().Set("mmapEditor", api)

	// Signal that WASM is ready
	js.Global().Set("mmapWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

// jsStore persists pages through callbacks the host page installs on
// globalThis.mmapHost before loading the wasm bundle.
type jsStore struct{}

func (jsStore) SavePage(ctx context.Context, pageID string, content []byte, previewURL string) error {
	res := js.Global().Get("mmapHost").Call("savePage", pageID, string(content), previewURL)
	if res.Type() == js.TypeString && res.String() != "" {
		return errors.New(res.String())
	}
	return nil
}

func (jsStore) LoadPage(ctx context.Context, pageID string) ([]byte, error) {
	res := js.Global().Get("mmapHost").Call("loadPage", pageID)
	if res.IsNull() || res.IsUndefined() {
		return nil, nil
	}
	return []byte(res.String()), nil
}

// jsLoader resolves image sources through the host so the browser's own
// decoder reports natural sizes.
type jsLoader struct{}

func (jsLoader) Load(src string, done func(w, h float64, ok bool)) {
	var cb js.Func
	cb = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		defer cb.Release()
		mu.Lock()
		defer mu.Unlock()
		if len(args) < 3 || !args[2].Bool() {
			done(0, 0, false)
			return nil
		}
		done(args[0].Float(), args[1].Float(), true)
		return nil
	})
	js.Global().Get("mmapHost").Call("loadImage", src, cb)
}

func ok() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func fail(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

// --- Command Handlers ---

func loadPage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return fail(errors.New("missing page id"))
	}
	mu.Lock()
	defer mu.Unlock()
	if err := ed.LoadPage(context.Background(), args[0].String()); err != nil {
		return fail(err)
	}
	return ok()
}

func flush(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	if err := ed.Flush(context.Background()); err != nil {
		return fail(err)
	}
	return ok()
}

func pointerDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	ed.PointerDown(geom.Point{X: args[0].Float(), Y: args[1].Float()})
	return nil
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	ed.PointerMove(geom.Point{X: args[0].Float(), Y: args[1].Float()})
	return nil
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	ed.PointerUp()
	return nil
}

func setTool(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	ed.SetTool(editor.Tool(args[0].String()))
	return nil
}

func setColor(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	ed.SetColor(args[0].String())
	return nil
}

func setThickness(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	ed.SetThickness(args[0].Float())
	return nil
}

func setFontFamily(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	ed.SetFontFamily(args[0].String())
	return nil
}

func setFontSize(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	ed.SetFontSize(args[0].Float())
	return nil
}

func dragEnd(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return fail(errors.New("dragEnd needs id, x, y"))
	}
	mu.Lock()
	defer mu.Unlock()
	if err := ed.DragEnd(args[0].String(), args[1].Float(), args[2].Float()); err != nil {
		return fail(err)
	}
	return ok()
}

func resizeEnd(this js.Value, args []js.Value) interface{} {
	if len(args) < 5 {
		return fail(errors.New("resizeEnd needs id, scaleX, scaleY, x, y"))
	}
	mu.Lock()
	defer mu.Unlock()
	if err := ed.ResizeEnd(args[0].String(), args[1].Float(), args[2].Float(), args[3].Float(), args[4].Float()); err != nil {
		return fail(err)
	}
	return ok()
}

func addTextAt(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	it := ed.AddTextAt(geom.Point{X: args[0].Float(), Y: args[1].Float()})
	return js.ValueOf(it.ID)
}

func addShape(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return fail(errors.New("addShape needs kind, x, y"))
	}
	kind := scene.Kind(args[0].String())
	if !kind.Valid() {
		return fail(errors.New("unknown shape kind"))
	}
	mu.Lock()
	defer mu.Unlock()
	it := ed.AddShapeNode(kind, geom.Point{X: args[1].Float(), Y: args[2].Float()})
	return js.ValueOf(it.ID)
}

func pasteImage(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return fail(errors.New("pasteImage needs src, x, y"))
	}
	mu.Lock()
	defer mu.Unlock()
	it := ed.PasteImage(args[0].String(), geom.Point{X: args[1].Float(), Y: args[2].Float()})
	return js.ValueOf(it.ID)
}

func pasteText(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return fail(errors.New("pasteText needs text, x, y"))
	}
	mu.Lock()
	defer mu.Unlock()
	it := ed.PasteText(args[0].String(), geom.Point{X: args[1].Float(), Y: args[2].Float()})
	return js.ValueOf(it.ID)
}

func startTextEdit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return fail(errors.New("missing item id"))
	}
	mu.Lock()
	defer mu.Unlock()
	if err := ed.StartTextEdit(args[0].String()); err != nil {
		return fail(err)
	}
	return ok()
}

func commitTextEdit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return fail(errors.New("missing text"))
	}
	mu.Lock()
	defer mu.Unlock()
	if err := ed.CommitTextEdit(args[0].String()); err != nil {
		return fail(err)
	}
	return ok()
}

func cancelTextEdit(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	ed.CancelTextEdit()
	return nil
}

func deleteSelection(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	ed.DeleteSelection()
	return nil
}

func groupSelection(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	if g := ed.GroupSelection(); g != nil {
		return js.ValueOf(g.ID)
	}
	return js.Null()
}

func ungroupSelection(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	ed.UngroupSelection()
	return nil
}

func bringForward(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	ed.BringForward()
	return nil
}

func sendBackward(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	ed.SendBackward()
	return nil
}

func bringToFront(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	ed.BringToFront()
	return nil
}

func sendToBack(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	ed.SendToBack()
	return nil
}

func undo(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(ed.Undo())
}

func redo(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(ed.Redo())
}

// --- Crop and node-editor handoffs ---

func postCropResult(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return fail(errors.New("postCropResult needs id, src, width, height"))
	}
	mailbox.SetCrop(bridge.CropResult{
		ItemID: args[0].String(),
		Src:    args[1].String(),
		Width:  args[2].Float(),
		Height: args[3].Float(),
	})
	return ok()
}

func applyPendingCrop(this js.Value, args []js.Value) interface{} {
	res, pending := mailbox.TakeCrop()
	if !pending {
		return fail(errors.New("no pending crop"))
	}
	mu.Lock()
	defer mu.Unlock()
	if err := ed.ApplyCrop(res.ItemID, res.Src, res.Width, res.Height); err != nil {
		return fail(err)
	}
	return ok()
}

func beginNodeEdit(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return fail(errors.New("beginNodeEdit needs pageId, nodeId"))
	}
	mailbox.SetEditing(bridge.EditingContext{
		PageID:   args[0].String(),
		NodeID:   args[1].String(),
		OpenedAt: time.Now(),
	})
	return ok()
}

func takeNodeEdit(this js.Value, args []js.Value) interface{} {
	ctx, pending := mailbox.TakeEditing()
	if !pending {
		return js.Null()
	}
	return js.ValueOf(map[string]interface{}{
		"pageId": ctx.PageID,
		"nodeId": ctx.NodeID,
	})
}

// --- Query Handlers ---

type editorState struct {
	PageID    string           `json:"pageId"`
	Items     []scene.Snapshot `json:"items"`
	Selection []string         `json:"selection"`
	Editing   string           `json:"editing,omitempty"`
	Tool      string           `json:"tool"`
	UndoDepth int              `json:"undoDepth"`
	RedoDepth int              `json:"redoDepth"`
}

func getState(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()

	var ids []string
	for _, it := range ed.Selection().Items() {
		ids = append(ids, it.ID)
	}
	state := editorState{
		PageID:    ed.PageID(),
		Items:     ed.Scene().Export(),
		Selection: ids,
		Editing:   ed.Editing(),
		Tool:      string(ed.ActiveTool()),
		UndoDepth: ed.History().UndoLen(),
		RedoDepth: ed.History().RedoLen(),
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return js.ValueOf("{}")
	}
	return js.ValueOf(string(raw))
}

func renderPreview(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()

	r := &preview.Renderer{DecodeImages: false}
	url, err := r.Render(ed.Scene())
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(url)
}
