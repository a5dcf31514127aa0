package scene

import (
	"log/slog"

	"github.com/nathsir75/mmap/internal/geom"
)

// Layer identifies one of the two parallel render layers. Shapes paint
// first, ink paints on top; the transform-handle overlay lives outside the
// scene entirely, so it can never be exported, erased or lasso-selected.
type Layer int

const (
	LayerShapes Layer = iota
	LayerInk

	layerCount
)

// Scene is the full set of drawable items currently loaded for one open
// page. It exclusively owns its items; they never outlive it except as
// snapshots held by the history log or the persistence pipeline.
type Scene struct {
	layers [layerCount][]*Item // paint order, back to front
	index  map[string]*Item    // top-level items by id
}

func New() *Scene {
	return &Scene{index: make(map[string]*Item)}
}

// Add appends the item to the top of the given layer.
func (s *Scene) Add(layer Layer, it *Item) {
	s.layers[layer] = append(s.layers[layer], it)
	s.index[it.ID] = it
}

// Remove detaches the top-level item with the given id and returns it with
// the layer it was on. The second result is false if the id is not present.
func (s *Scene) Remove(id string) (*Item, Layer, bool) {
	for layer := LayerShapes; layer < layerCount; layer++ {
		for i, it := range s.layers[layer] {
			if it.ID == id {
				s.layers[layer] = append(s.layers[layer][:i], s.layers[layer][i+1:]...)
				delete(s.index, id)
				return it, layer, true
			}
		}
	}
	return nil, 0, false
}

// Get returns the top-level item with the given id, or nil.
func (s *Scene) Get(id string) *Item {
	return s.index[id]
}

// LayerOf returns the layer holding the top-level item with the given id.
func (s *Scene) LayerOf(id string) (Layer, bool) {
	for layer := LayerShapes; layer < layerCount; layer++ {
		for _, it := range s.layers[layer] {
			if it.ID == id {
				return layer, true
			}
		}
	}
	return 0, false
}

// Items returns the layer's items in paint order. The returned slice is the
// scene's own; callers must not mutate it.
func (s *Scene) Items(layer Layer) []*Item {
	return s.layers[layer]
}

// TopLevel returns all top-level items, shapes first then ink, in paint
// order.
func (s *Scene) TopLevel() []*Item {
	out := make([]*Item, 0, len(s.layers[LayerShapes])+len(s.layers[LayerInk]))
	out = append(out, s.layers[LayerShapes]...)
	out = append(out, s.layers[LayerInk]...)
	return out
}

// Len returns the number of top-level items.
func (s *Scene) Len() int {
	return len(s.layers[LayerShapes]) + len(s.layers[LayerInk])
}

// Clear destroys all top-level items on both layers.
func (s *Scene) Clear() {
	for layer := LayerShapes; layer < layerCount; layer++ {
		s.layers[layer] = nil
	}
	s.index = make(map[string]*Item)
}

// MoveUp moves the item one step toward the front within its layer.
func (s *Scene) MoveUp(id string) bool {
	layer, i, ok := s.locate(id)
	if !ok || i == len(s.layers[layer])-1 {
		return false
	}
	items := s.layers[layer]
	items[i], items[i+1] = items[i+1], items[i]
	return true
}

// MoveDown moves the item one step toward the back within its layer.
func (s *Scene) MoveDown(id string) bool {
	layer, i, ok := s.locate(id)
	if !ok || i == 0 {
		return false
	}
	items := s.layers[layer]
	items[i], items[i-1] = items[i-1], items[i]
	return true
}

// MoveToForeground moves the item onto the top of the ink layer so it paints
// above every stroke. Position is unchanged; only paint order moves.
func (s *Scene) MoveToForeground(id string) bool {
	it, _, ok := s.Remove(id)
	if !ok {
		return false
	}
	s.Add(LayerInk, it)
	return true
}

// MoveToBackground moves the item to the bottom of the shape layer so every
// other item paints above it.
func (s *Scene) MoveToBackground(id string) bool {
	it, _, ok := s.Remove(id)
	if !ok {
		return false
	}
	s.layers[LayerShapes] = append([]*Item{it}, s.layers[LayerShapes]...)
	s.index[it.ID] = it
	return true
}

// Replace swaps the top-level item with the given id for a new item,
// preserving layer and paint order. Used by transform undo, which restores
// a snapshot in place.
func (s *Scene) Replace(id string, it *Item) bool {
	layer, i, ok := s.locate(id)
	if !ok {
		return false
	}
	delete(s.index, id)
	s.layers[layer][i] = it
	s.index[it.ID] = it
	return true
}

// HitAt returns the topmost user-content item whose bounds contain p,
// searching front to back across both layers. Returns nil on miss.
func (s *Scene) HitAt(p geom.Point) *Item {
	for layer := LayerInk; layer >= LayerShapes; layer-- {
		items := s.layers[layer]
		for i := len(items) - 1; i >= 0; i-- {
			it := items[i]
			if !it.UserContent {
				continue
			}
			if it.Bounds().Contains(p.X, p.Y) {
				return it
			}
		}
	}
	return nil
}

// StrokeAt returns the topmost ink stroke whose bounds contain p, searching
// both layers front to back. Only strokes are eligible; everything else is
// transparent to the eraser.
func (s *Scene) StrokeAt(p geom.Point) *Item {
	for layer := LayerInk; layer >= LayerShapes; layer-- {
		items := s.layers[layer]
		for i := len(items) - 1; i >= 0; i-- {
			it := items[i]
			if it.Kind != KindInk || !it.UserContent {
				continue
			}
			if it.Bounds().Contains(p.X, p.Y) {
				return it
			}
		}
	}
	return nil
}

// Export serializes all top-level user-content items, shapes first then
// ink, in paint order. Non-content items (grid, background) are excluded by
// construction because they are never tagged UserContent.
func (s *Scene) Export() []Snapshot {
	var out []Snapshot
	for _, it := range s.TopLevel() {
		if !it.UserContent {
			continue
		}
		out = append(out, it.Snapshot())
	}
	return out
}

// Restore replaces the scene's content with the given snapshots. Existing
// top-level items are destroyed first. A snapshot that fails to deserialize
// is skipped with a warning; one corrupt item must not abort the rest of the
// page. Returns the restored items so the caller can re-trigger image loads.
func (s *Scene) Restore(snaps []Snapshot) []*Item {
	s.Clear()

	restored := make([]*Item, 0, len(snaps))
	for _, snap := range snaps {
		it, err := FromSnapshot(snap)
		if err != nil {
			slog.Warn("skip corrupt item", "id", snap.ID, "kind", snap.Kind, "error", err)
			continue
		}

		if it.UserContent {
			it.Draggable = true
		}

		layer := LayerShapes
		if it.Kind == KindInk {
			layer = LayerInk
		}
		s.Add(layer, it)
		restored = append(restored, it)
	}
	return restored
}

func (s *Scene) locate(id string) (Layer, int, bool) {
	for layer := LayerShapes; layer < layerCount; layer++ {
		for i, it := range s.layers[layer] {
			if it.ID == id {
				return layer, i, true
			}
		}
	}
	return 0, 0, false
}
