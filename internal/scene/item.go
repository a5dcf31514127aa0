package scene

import (
	"github.com/nathsir75/mmap/internal/geom"
)

// Kind identifies the concrete variant of a scene item. Roles are carried
// explicitly on the item (Kind, UserContent) rather than encoded in display
// names, so selection and export logic never string-match.
type Kind string

const (
	KindRectGroup Kind = "RectGroup" // box + editable label
	KindCircle    Kind = "Circle"
	KindDiamond   Kind = "Diamond"
	KindArrow     Kind = "Arrow"
	KindText      Kind = "Text" // standalone text block
	KindInk       Kind = "Ink"  // freehand stroke (pen or highlighter)
	KindImage     Kind = "Image"
	KindCropGroup Kind = "CropGroup" // crop result pinned back onto the canvas
	KindNodeGroup Kind = "NodeGroup" // mindmap node rendered as a group
	KindGroup     Kind = "Group"     // ad-hoc multi-select group
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindRectGroup, KindCircle, KindDiamond, KindArrow, KindText,
		KindInk, KindImage, KindCropGroup, KindNodeGroup, KindGroup:
		return true
	}
	return false
}

// IsGroup reports whether items of this kind contain children.
func (k Kind) IsGroup() bool {
	switch k {
	case KindRectGroup, KindCropGroup, KindNodeGroup, KindGroup:
		return true
	}
	return false
}

// Blend modes for stroke rendering.
const (
	BlendNormal   = "source-over"
	BlendMultiply = "multiply"
)

// Style holds the paint attributes of an item.
type Style struct {
	Stroke      string  `json:"stroke,omitempty"`
	Fill        string  `json:"fill,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
	Blend       string  `json:"blend,omitempty"`
}

// Item is one drawable unit of the retained scene. The scene that created an
// item owns it exclusively; snapshots are the only form in which item state
// leaves the scene.
//
// Children of a group store positions relative to the group's origin.
// ScaleX/ScaleY are transient interaction state: every transform commit folds
// them back into Width/Height (or ink points), so persisted items always
// carry scale 1.
type Item struct {
	ID          string
	Kind        Kind
	UserContent bool
	Draggable   bool

	X, Y          float64
	Width, Height float64
	ScaleX        float64
	ScaleY        float64

	Style Style

	// Text content (KindText and group labels).
	Text       string
	FontFamily string
	FontSize   float64
	WrapWord   bool
	Ellipsis   bool

	// Ink content.
	Points      []geom.Point
	Highlighter bool

	// Image content. Src is a self-describing data URI; Ready flips once the
	// asynchronous decode has resolved. An item with Ready=false is fully
	// selectable and transformable, it just has no raster yet.
	Src        string
	ImageReady bool

	// Auto-generated display title for pasted content.
	Title string

	Children []*Item
}

const inkBoundsPad = 4

// Bounds returns the item's bounding box in its parent's coordinate space,
// accounting for any uncommitted scale.
func (it *Item) Bounds() geom.Rect {
	sx, sy := it.effectiveScale()

	if it.Kind == KindInk {
		r := geom.BoundsOf(it.Points, inkBoundsPad)
		return geom.Rect{
			X:      it.X + r.X*sx,
			Y:      it.Y + r.Y*sy,
			Width:  r.Width * sx,
			Height: r.Height * sy,
		}
	}

	if it.Kind.IsGroup() && it.Width == 0 && it.Height == 0 {
		// ad-hoc groups have no intrinsic size; derive from children
		var r geom.Rect
		for _, c := range it.Children {
			r = r.Union(c.Bounds())
		}
		return geom.Rect{
			X:      it.X + r.X*sx,
			Y:      it.Y + r.Y*sy,
			Width:  r.Width * sx,
			Height: r.Height * sy,
		}
	}

	return geom.Rect{X: it.X, Y: it.Y, Width: it.Width * sx, Height: it.Height * sy}
}

func (it *Item) effectiveScale() (float64, float64) {
	sx, sy := it.ScaleX, it.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	return sx, sy
}

// AbsolutePosition returns the item's position offset by the given parent
// origin. Top-level items pass a zero origin.
func (it *Item) AbsolutePosition(origin geom.Point) geom.Point {
	return geom.Point{X: origin.X + it.X, Y: origin.Y + it.Y}
}

// SetAbsolutePosition places the item so that its absolute position equals p
// given the parent origin.
func (it *Item) SetAbsolutePosition(p, origin geom.Point) {
	it.X = p.X - origin.X
	it.Y = p.Y - origin.Y
}

// FindChild returns the first direct or nested child with the given kind,
// or nil. Used to reach a group's label or image.
func (it *Item) FindChild(kind Kind) *Item {
	for _, c := range it.Children {
		if c.Kind == kind {
			return c
		}
		if found := c.FindChild(kind); found != nil {
			return found
		}
	}
	return nil
}

// TextChild returns the text-bearing descendant of a group, or the item
// itself for standalone text.
func (it *Item) TextChild() *Item {
	if it.Kind == KindText {
		return it
	}
	return it.FindChild(KindText)
}

// Clone returns a deep copy of the item, children included.
func (it *Item) Clone() *Item {
	cp := *it

	if it.Points != nil {
		cp.Points = make([]geom.Point, len(it.Points))
		copy(cp.Points, it.Points)
	}

	if it.Children != nil {
		cp.Children = make([]*Item, len(it.Children))
		for i, c := range it.Children {
			cp.Children[i] = c.Clone()
		}
	}

	return &cp
}
