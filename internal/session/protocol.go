package session

import (
	"encoding/json"

	"github.com/nathsir75/mmap/internal/scene"
)

// Message is the wire envelope in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client to server.
const (
	TypePointerDown = "pointer.down"
	TypePointerMove = "pointer.move"
	TypePointerUp   = "pointer.up"

	TypeToolSet = "tool.set"

	TypeDragEnd   = "item.drag_end"
	TypeResizeEnd = "item.resize_end"
	TypeCropApply = "item.crop"

	TypeTextStart  = "text.start"
	TypeTextCommit = "text.commit"
	TypeTextCancel = "text.cancel"

	TypePasteImage = "paste.image"
	TypePasteText  = "paste.text"
	TypeShapeAdd   = "shape.add"

	TypeDelete  = "selection.delete"
	TypeGroup   = "selection.group"
	TypeUngroup = "selection.ungroup"

	TypeUndo = "history.undo"
	TypeRedo = "history.redo"

	TypeOrderFront    = "order.front"
	TypeOrderBack     = "order.back"
	TypeOrderForward  = "order.forward"
	TypeOrderBackward = "order.backward"

	TypeFlush = "page.flush"
)

// Server to client.
const (
	TypeWelcome    = "welcome"
	TypeSceneState = "scene.state"
	TypeError      = "error"
)

type PointerPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ToolPayload struct {
	Tool       string  `json:"tool"`
	Color      string  `json:"color,omitempty"`
	Thickness  float64 `json:"thickness,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
}

type DragEndPayload struct {
	ItemID string  `json:"itemId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type ResizeEndPayload struct {
	ItemID string  `json:"itemId"`
	ScaleX float64 `json:"scaleX"`
	ScaleY float64 `json:"scaleY"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type CropPayload struct {
	ItemID string  `json:"itemId"`
	Src    string  `json:"src"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type TextStartPayload struct {
	ItemID string `json:"itemId"`
}

type TextCommitPayload struct {
	Text string `json:"text"`
}

type PastePayload struct {
	Src  string  `json:"src,omitempty"`
	Text string  `json:"text,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type ShapeAddPayload struct {
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type WelcomePayload struct {
	PageID string `json:"pageId"`
}

// SceneStatePayload mirrors the whole editor state after a command; the UI
// is a dumb renderer of it.
type SceneStatePayload struct {
	PageID    string           `json:"pageId"`
	Items     []scene.Snapshot `json:"items"`
	Selection []string         `json:"selection"`
	Editing   string           `json:"editing,omitempty"`
	UndoDepth int              `json:"undoDepth"`
	RedoDepth int              `json:"redoDepth"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func mustJSON(v any) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}
