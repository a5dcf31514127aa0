package scene

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nathsir75/mmap/internal/geom"
)

// SnapshotVersion is stamped on every serialized item so future kind or
// field additions can be migrated instead of silently breaking old undo
// entries and stored pages.
const SnapshotVersion = 1

var (
	ErrUnknownKind = errors.New("unknown item kind")
	ErrNoID        = errors.New("item snapshot has no id")
)

// Snapshot is the fully self-describing serialization of one item, nested
// group children included. It reconstructs the item with no external lookup:
// image bytes travel on the item itself as a data URI.
type Snapshot struct {
	V           int     `json:"v"`
	ID          string  `json:"id"`
	Kind        Kind    `json:"kind"`
	UserContent bool    `json:"userContent"`
	Draggable   bool    `json:"draggable"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width,omitempty"`
	Height      float64 `json:"height,omitempty"`
	Style       Style   `json:"style"`

	Text       string  `json:"text,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	WrapWord   bool    `json:"wrapWord,omitempty"`
	Ellipsis   bool    `json:"ellipsis,omitempty"`

	Points      []geom.Point `json:"points,omitempty"`
	Highlighter bool         `json:"highlighter,omitempty"`

	Src   string `json:"src,omitempty"`
	Title string `json:"title,omitempty"`

	Children []Snapshot `json:"children,omitempty"`
}

// Snapshot captures the item's full serializable state. Scale never appears
// here: commits normalize it to 1 before anything is snapshotted, and
// in-flight scale is an interaction artifact that must not be persisted.
func (it *Item) Snapshot() Snapshot {
	s := Snapshot{
		V:           SnapshotVersion,
		ID:          it.ID,
		Kind:        it.Kind,
		UserContent: it.UserContent,
		Draggable:   it.Draggable,
		X:           it.X,
		Y:           it.Y,
		Width:       it.Width,
		Height:      it.Height,
		Style:       it.Style,
		Text:        it.Text,
		FontFamily:  it.FontFamily,
		FontSize:    it.FontSize,
		WrapWord:    it.WrapWord,
		Ellipsis:    it.Ellipsis,
		Highlighter: it.Highlighter,
		Src:         it.Src,
		Title:       it.Title,
	}

	if len(it.Points) > 0 {
		s.Points = make([]geom.Point, len(it.Points))
		copy(s.Points, it.Points)
	}

	for _, c := range it.Children {
		s.Children = append(s.Children, c.Snapshot())
	}

	return s
}

// FromSnapshot reconstructs an item from its snapshot. Images come back with
// ImageReady=false; the caller is responsible for re-triggering the
// asynchronous raster load.
func FromSnapshot(s Snapshot) (*Item, error) {
	if s.ID == "" {
		return nil, ErrNoID
	}
	if !s.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
	}

	it := &Item{
		ID:          s.ID,
		Kind:        s.Kind,
		UserContent: s.UserContent,
		Draggable:   s.Draggable,
		X:           s.X,
		Y:           s.Y,
		Width:       s.Width,
		Height:      s.Height,
		ScaleX:      1,
		ScaleY:      1,
		Style:       s.Style,
		Text:        s.Text,
		FontFamily:  s.FontFamily,
		FontSize:    s.FontSize,
		WrapWord:    s.WrapWord,
		Ellipsis:    s.Ellipsis,
		Highlighter: s.Highlighter,
		Src:         s.Src,
		Title:       s.Title,
	}

	if len(s.Points) > 0 {
		it.Points = make([]geom.Point, len(s.Points))
		copy(it.Points, s.Points)
	}

	for _, cs := range s.Children {
		child, err := FromSnapshot(cs)
		if err != nil {
			return nil, fmt.Errorf("child of %s: %w", s.ID, err)
		}
		it.Children = append(it.Children, child)
	}

	return it, nil
}

// MarshalSnapshots serializes a snapshot list as JSON.
func MarshalSnapshots(snaps []Snapshot) ([]byte, error) {
	data, err := json.Marshal(snaps)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshots: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshots parses a snapshot list from JSON.
func UnmarshalSnapshots(data []byte) ([]Snapshot, error) {
	var snaps []Snapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, fmt.Errorf("unmarshal snapshots: %w", err)
	}
	return snaps, nil
}
