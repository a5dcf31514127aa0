package editor

import (
	"github.com/nathsir75/mmap/internal/geom"
	"github.com/nathsir75/mmap/internal/scene"
)

// MinItemSize is the floor applied to any proposed transform box: a resize
// that would shrink an item below this in either dimension is rejected.
const MinItemSize = 20

// Floors applied when folding scale back into text-bearing items.
const (
	minTextWidth   = 60
	minTextHeight  = 30
	minGroupHeight = 40
	labelPad       = 10
)

// HandleState describes how the transform-handle overlay should behave for
// the current selection. The overlay itself is rendered by the host UI; it
// is never part of the scene.
type HandleState struct {
	Visible     bool
	AspectLock  bool // only when the sole selected item is an image
	Rotation    bool // rotation disabled throughout
	CornersOnly bool
}

// Selection tracks the currently selected items and the toolbar state
// derived from them.
type Selection struct {
	items []*scene.Item

	// Text toolbar state, synchronized from the selected item's
	// text-bearing child.
	FontFamily string
	FontSize   float64
}

func NewSelection() *Selection {
	return &Selection{}
}

// Select replaces the selection with a single item; nil clears it. If the
// item carries text, the toolbar state follows it.
func (sel *Selection) Select(it *scene.Item) {
	if it == nil {
		sel.items = nil
		return
	}
	sel.items = []*scene.Item{it}
	sel.syncTextToolbar(it)
}

// SelectMany replaces the selection with several items; used by lasso
// completion.
func (sel *Selection) SelectMany(items []*scene.Item) {
	sel.items = items
	if len(items) > 0 {
		sel.syncTextToolbar(items[0])
	}
}

// Clear empties the selection.
func (sel *Selection) Clear() {
	sel.items = nil
}

// Items returns the selected items in selection order.
func (sel *Selection) Items() []*scene.Item {
	return sel.items
}

// Primary returns the first selected item, or nil.
func (sel *Selection) Primary() *scene.Item {
	if len(sel.items) == 0 {
		return nil
	}
	return sel.items[0]
}

// Len returns the selection size.
func (sel *Selection) Len() int { return len(sel.items) }

// Contains reports whether the item with the given id is selected.
func (sel *Selection) Contains(id string) bool {
	for _, it := range sel.items {
		if it.ID == id {
			return true
		}
	}
	return false
}

// Handles returns the overlay policy for the current selection.
func (sel *Selection) Handles() HandleState {
	hs := HandleState{
		Visible:     len(sel.items) > 0,
		CornersOnly: true,
	}
	if len(sel.items) == 1 && sel.items[0].Kind == scene.KindImage {
		hs.AspectLock = true
	}
	return hs
}

// AcceptBox implements the transform bound check: a proposed box smaller
// than the floor is rejected and the gesture keeps the previous box.
func (sel *Selection) AcceptBox(box geom.Rect) bool {
	return box.Width >= MinItemSize && box.Height >= MinItemSize
}

func (sel *Selection) syncTextToolbar(it *scene.Item) {
	t := it.TextChild()
	if t == nil {
		return
	}
	if t.FontFamily != "" {
		sel.FontFamily = t.FontFamily
	}
	if t.FontSize > 0 {
		sel.FontSize = t.FontSize
	}
}

// commitTransform folds the item's scale factors into real geometry and
// resets scale to 1. Serialization downstream assumes scale is always 1,
// so this runs on transform end for every transformable kind.
func commitTransform(it *scene.Item) {
	sx, sy := it.ScaleX, it.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	if sx == 1 && sy == 1 {
		return
	}

	switch it.Kind {
	case scene.KindInk:
		for i := range it.Points {
			it.Points[i].X *= sx
			it.Points[i].Y *= sy
		}

	case scene.KindImage:
		it.Width = max(MinItemSize, it.Width*sx)
		it.Height = max(MinItemSize, it.Height*sy)

	case scene.KindText:
		it.Width = max(minTextWidth, it.Width*sx)
		it.Height = max(minTextHeight, it.Height*sy)
		// re-wrap to the new width; truncation stays off
		it.WrapWord = true
		it.Ellipsis = false

	case scene.KindRectGroup:
		it.Width = max(minTextWidth, it.Width*sx)
		it.Height = max(minGroupHeight, it.Height*sy)
		layoutBoxLabel(it)

	default:
		// ad-hoc and crop groups, plain shapes: scale the box and
		// cascade through children so the whole subtree stays scale-1
		it.Width *= sx
		it.Height *= sy
		scaleChildren(it, sx, sy)
	}

	it.ScaleX = 1
	it.ScaleY = 1
}

// layoutBoxLabel re-fits a rect-group's label to the box with padding and
// word wrap after a resize.
func layoutBoxLabel(group *scene.Item) {
	label := group.TextChild()
	if label == nil {
		return
	}
	label.X = labelPad
	label.Y = labelPad
	label.Width = max(MinItemSize, group.Width-labelPad*2)
	label.Height = max(MinItemSize, group.Height-labelPad*2)
	label.WrapWord = true
	label.Ellipsis = false
}

func scaleChildren(group *scene.Item, sx, sy float64) {
	for _, c := range group.Children {
		c.X *= sx
		c.Y *= sy
		c.Width *= sx
		c.Height *= sy
		for i := range c.Points {
			c.Points[i].X *= sx
			c.Points[i].Y *= sy
		}
		scaleChildren(c, sx, sy)
	}
}
