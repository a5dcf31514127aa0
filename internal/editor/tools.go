package editor

import (
	"time"

	"github.com/nathsir75/mmap/internal/geom"
	"github.com/nathsir75/mmap/internal/scene"
	"github.com/nathsir75/mmap/internal/typeid"
)

// Tool selects the active pointer behavior.
type Tool string

const (
	ToolSelect      Tool = "select"
	ToolPen         Tool = "pen"
	ToolHighlighter Tool = "highlighter"
	ToolEraser      Tool = "eraser"
	ToolLasso       Tool = "lasso"
	ToolText        Tool = "text"
)

const (
	// eraser geometry
	eraseRadius   = 18
	eraseGap      = 2
	eraseInterval = 35 * time.Millisecond

	// a stroke shorter than max(minInkLen, width*inkLenPerWidth) after a
	// split is invisible clutter and is discarded
	minInkLen      = 30
	inkLenPerWidth = 6

	// a freshly drawn stroke below this is a stray dot and is dropped on
	// finalize
	strayDotPerWidth = 2

	highlighterOpacity    = 0.3
	highlighterMinWidth   = 12
	highlighterWidthScale = 3
)

// beginStroke starts a new ink stroke at pos with the current tool style.
func (e *Editor) beginStroke(pos geom.Point, highlighter bool) {
	width := e.thickness
	opacity := 1.0
	blend := scene.BlendNormal
	if highlighter {
		width = max(highlighterMinWidth, e.thickness*highlighterWidthScale)
		opacity = highlighterOpacity
		blend = scene.BlendMultiply
	}

	e.drawing = &scene.Item{
		ID:          typeid.NewItemID(),
		Kind:        scene.KindInk,
		UserContent: true,
		Draggable:   true,
		ScaleX:      1,
		ScaleY:      1,
		Points:      []geom.Point{pos},
		Highlighter: highlighter,
		Style: scene.Style{
			Stroke:      e.toolColor,
			StrokeWidth: width,
			Opacity:     opacity,
			Blend:       blend,
		},
	}
	e.sc.Add(scene.LayerInk, e.drawing)
}

// extendStroke appends the pointer position to the in-progress stroke.
func (e *Editor) extendStroke(pos geom.Point) {
	if e.drawing == nil {
		return
	}
	e.drawing.Points = append(e.drawing.Points, pos)
}

// endStroke finalizes the in-progress stroke. Stray dots (too few points or
// length below the width-proportional floor) are discarded rather than
// persisted.
func (e *Editor) endStroke() {
	line := e.drawing
	e.drawing = nil
	if line == nil {
		return
	}

	minLen := line.Style.StrokeWidth * strayDotPerWidth
	if len(line.Points) < 3 || geom.PolylineLength(line.Points) < minLen {
		e.sc.Remove(line.ID)
		return
	}

	e.history.PushAdd(line.Snapshot())
	e.markDirty("stroke-end")
}

// eraseAt erases at most once per eraseInterval: it finds the topmost ink
// stroke under the pointer and splits it there.
func (e *Editor) eraseAt(pos geom.Point, now time.Time) {
	if now.Sub(e.lastErase) < eraseInterval {
		return
	}
	e.lastErase = now

	hit := e.sc.StrokeAt(pos)
	if hit == nil {
		return
	}
	e.partialErase(hit, pos)
}

// partialErase splits the stroke's polyline around the erase point. The
// original stroke is destroyed; each side survives as a new stroke only if
// it has at least 3 points and enough length to be visible. A cleanup pass
// then drops fragments accumulated by earlier erases on the same layer.
func (e *Editor) partialErase(line *scene.Item, pos geom.Point) {
	pts := line.Points
	if len(pts) < 3 {
		return
	}

	// erase point in stroke-local coordinates
	local := geom.Point{X: pos.X - line.X, Y: pos.Y - line.Y}

	cut, ok := nearestSegment(pts, local, eraseRadius)
	if !ok {
		return
	}

	leftEnd := max(0, cut-eraseGap)
	rightStart := min(len(pts)-1, cut+eraseGap)

	left := pts[:leftEnd+1]
	right := pts[rightStart:]

	minLen := max(minInkLen, line.Style.StrokeWidth*inkLenPerWidth)
	keepLeft := len(left) >= 3 && geom.PolylineLength(left) >= minLen
	keepRight := len(right) >= 3 && geom.PolylineLength(right) >= minLen

	if !keepLeft && !keepRight {
		return
	}

	layer, _ := e.sc.LayerOf(line.ID)
	e.sc.Remove(line.ID)

	if keepLeft {
		e.sc.Add(layer, splitStroke(line, left))
	}
	if keepRight {
		e.sc.Add(layer, splitStroke(line, right))
	}

	e.cleanupTinyStrokes(layer, minLen)
}

// splitStroke builds a new stroke carrying the original's style and
// position with a sub-range of its points.
func splitStroke(src *scene.Item, pts []geom.Point) *scene.Item {
	out := &scene.Item{
		ID:          typeid.NewItemID(),
		Kind:        scene.KindInk,
		UserContent: true,
		Draggable:   true,
		X:           src.X,
		Y:           src.Y,
		ScaleX:      1,
		ScaleY:      1,
		Highlighter: src.Highlighter,
		Style:       src.Style,
	}
	out.Points = make([]geom.Point, len(pts))
	copy(out.Points, pts)
	return out
}

// nearestSegment finds the polyline segment index closest to p. Returns
// false if even the closest segment is farther than radius.
func nearestSegment(pts []geom.Point, p geom.Point, radius float64) (int, bool) {
	best := -1
	bestDist := radius + 1
	for i := 0; i+1 < len(pts); i++ {
		d := geom.DistPointToSegment(p, pts[i], pts[i+1])
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best < 0 || bestDist > radius {
		return 0, false
	}
	return best, true
}

// cleanupTinyStrokes removes every ink stroke on the layer below the length
// threshold. Repeated erasing leaves fragments behind; without this pass
// they accumulate as invisible items that inflate the serialized page
// forever.
func (e *Editor) cleanupTinyStrokes(layer scene.Layer, minLen float64) {
	var doomed []string
	for _, it := range e.sc.Items(layer) {
		if it.Kind != scene.KindInk || !it.UserContent {
			continue
		}
		if len(it.Points) < 3 || geom.PolylineLength(it.Points) < minLen {
			doomed = append(doomed, it.ID)
		}
	}
	for _, id := range doomed {
		e.sc.Remove(id)
	}
}

// beginLasso starts capturing a freeform selection polygon.
func (e *Editor) beginLasso(pos geom.Point) {
	e.lassoing = true
	e.lasso = []geom.Point{pos}
}

func (e *Editor) extendLasso(pos geom.Point) {
	if !e.lassoing {
		return
	}
	e.lasso = append(e.lasso, pos)
}

// endLasso completes the capture and selects every top-level user-content
// item whose bounding-box center lies inside the polygon.
func (e *Editor) endLasso() {
	poly := e.lasso
	e.lasso = nil
	e.lassoing = false

	if len(poly) < 3 {
		return
	}

	var selected []*scene.Item
	for _, it := range e.sc.TopLevel() {
		if !it.UserContent {
			continue
		}
		if geom.PointInPolygon(it.Bounds().Center(), poly) {
			selected = append(selected, it)
		}
	}

	e.selection.SelectMany(selected)
	e.markDirty("lasso-end")
}
