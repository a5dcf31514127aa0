package scene

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathsir75/mmap/internal/geom"
)

func newText(id string, x, y float64) *Item {
	return &Item{
		ID: id, Kind: KindText, UserContent: true, Draggable: true,
		X: x, Y: y, Width: 320, Height: 60, ScaleX: 1, ScaleY: 1,
		Text: "hello", FontFamily: "Inter", FontSize: 22,
		Style: Style{Fill: "#111", Opacity: 1},
	}
}

func newInk(id string, pts []geom.Point) *Item {
	return &Item{
		ID: id, Kind: KindInk, UserContent: true, Draggable: true,
		ScaleX: 1, ScaleY: 1, Points: pts,
		Style: Style{Stroke: "#000", StrokeWidth: 6, Opacity: 1, Blend: BlendNormal},
	}
}

func TestAddRemoveGet(t *testing.T) {
	s := New()

	a := newText("a", 0, 0)
	s.Add(LayerShapes, a)
	s.Add(LayerInk, newInk("b", []geom.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}))

	assert.Equal(t, 2, s.Len())
	assert.Same(t, a, s.Get("a"))

	it, layer, ok := s.Remove("a")
	require.True(t, ok)
	assert.Same(t, a, it)
	assert.Equal(t, LayerShapes, layer)
	assert.Nil(t, s.Get("a"))

	_, _, ok = s.Remove("a")
	assert.False(t, ok)
}

func TestZOrderSteps(t *testing.T) {
	s := New()
	for _, id := range []string{"a", "b", "c"} {
		s.Add(LayerShapes, newText(id, 0, 0))
	}

	require.True(t, s.MoveUp("a"))
	ids := func() []string {
		var out []string
		for _, it := range s.Items(LayerShapes) {
			out = append(out, it.ID)
		}
		return out
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids())

	require.True(t, s.MoveDown("c"))
	assert.Equal(t, []string{"b", "c", "a"}, ids())

	require.True(t, s.MoveUp("c"))
	assert.Equal(t, []string{"b", "a", "c"}, ids())

	// already at the edges
	assert.False(t, s.MoveDown("b"))
	assert.False(t, s.MoveUp("c"))
}

func TestMoveBetweenLayers(t *testing.T) {
	s := New()
	s.Add(LayerShapes, newText("a", 0, 0))
	s.Add(LayerShapes, newText("b", 0, 0))
	s.Add(LayerInk, newInk("stroke", []geom.Point{{X: 0, Y: 0}, {X: 50, Y: 0}}))

	require.True(t, s.MoveToForeground("a"))
	layer, ok := s.LayerOf("a")
	require.True(t, ok)
	assert.Equal(t, LayerInk, layer)
	// on top of the existing stroke
	ink := s.Items(LayerInk)
	assert.Equal(t, "a", ink[len(ink)-1].ID)

	require.True(t, s.MoveToBackground("a"))
	shapes := s.Items(LayerShapes)
	assert.Equal(t, "a", shapes[0].ID)

	assert.False(t, s.MoveToForeground("missing"))
}

func TestHitAtTopmost(t *testing.T) {
	s := New()
	s.Add(LayerShapes, newText("under", 0, 0))
	top := newText("over", 0, 0)
	s.Add(LayerShapes, top)

	hit := s.HitAt(geom.Point{X: 10, Y: 10})
	require.NotNil(t, hit)
	assert.Equal(t, "over", hit.ID)

	// ink layer paints above shapes
	s.Add(LayerInk, newInk("stroke", []geom.Point{{X: 5, Y: 5}, {X: 20, Y: 20}}))
	hit = s.HitAt(geom.Point{X: 10, Y: 10})
	require.NotNil(t, hit)
	assert.Equal(t, "stroke", hit.ID)

	// non-content never hit
	grid := newText("grid", 0, 0)
	grid.UserContent = false
	s.Add(LayerInk, grid)
	hit = s.HitAt(geom.Point{X: 10, Y: 10})
	require.NotNil(t, hit)
	assert.Equal(t, "stroke", hit.ID)

	assert.Nil(t, s.HitAt(geom.Point{X: 9999, Y: 9999}))
}

func TestStrokeAtIgnoresShapes(t *testing.T) {
	s := New()
	s.Add(LayerShapes, newText("text", 0, 0))
	s.Add(LayerInk, newInk("stroke", []geom.Point{{X: 0, Y: 0}, {X: 40, Y: 40}}))

	hit := s.StrokeAt(geom.Point{X: 5, Y: 5})
	require.NotNil(t, hit)
	assert.Equal(t, "stroke", hit.ID)

	_, _, _ = s.Remove("stroke")
	assert.Nil(t, s.StrokeAt(geom.Point{X: 5, Y: 5}))
}

func TestExportRestoreRoundTrip(t *testing.T) {
	s := New()

	group := &Item{
		ID: "g1", Kind: KindRectGroup, UserContent: true, Draggable: true,
		X: 100, Y: 80, Width: 220, Height: 140, ScaleX: 1, ScaleY: 1,
		Style: Style{Stroke: "#333", Fill: "#fff", StrokeWidth: 2, Opacity: 1},
		Children: []*Item{
			{ID: "g1-box", Kind: KindDiamond, Width: 220, Height: 140, ScaleX: 1, ScaleY: 1},
			{ID: "g1-label", Kind: KindText, X: 10, Y: 10, Width: 200, Height: 120,
				ScaleX: 1, ScaleY: 1, Text: "Topic", FontSize: 18, WrapWord: true},
		},
	}
	img := &Item{
		ID: "img1", Kind: KindImage, UserContent: true, Draggable: true,
		X: 300, Y: 40, Width: 420, Height: 320, ScaleX: 1, ScaleY: 1,
		Src: "data:image/png;base64,AAAA", ImageReady: true,
	}
	s.Add(LayerShapes, group)
	s.Add(LayerShapes, img)
	s.Add(LayerInk, newInk("ink1", []geom.Point{{X: 0, Y: 0}, {X: 30, Y: 30}, {X: 60, Y: 10}}))

	// the transform overlay equivalent: never tagged, never exported
	s.Add(LayerInk, &Item{ID: "lasso", Kind: KindInk, Points: []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}})

	snaps := s.Export()
	require.Len(t, snaps, 3)

	// survive an encode/decode cycle, as the persistence pipeline does
	data, err := MarshalSnapshots(snaps)
	require.NoError(t, err)
	decoded, err := UnmarshalSnapshots(data)
	require.NoError(t, err)

	restored := s.Restore(decoded)
	require.Len(t, restored, 3)
	assert.Equal(t, 3, s.Len())

	g := s.Get("g1")
	require.NotNil(t, g)
	assert.Equal(t, KindRectGroup, g.Kind)
	assert.Equal(t, 100.0, g.X)
	assert.Equal(t, 220.0, g.Width)
	require.Len(t, g.Children, 2)
	assert.Equal(t, "Topic", g.Children[1].Text)
	assert.Equal(t, 1.0, g.ScaleX)

	// image comes back selectable but not yet rendered
	ri := s.Get("img1")
	require.NotNil(t, ri)
	assert.Equal(t, "data:image/png;base64,AAAA", ri.Src)
	assert.False(t, ri.ImageReady)

	// ink went back to the ink layer
	layer, ok := s.LayerOf("ink1")
	require.True(t, ok)
	assert.Equal(t, LayerInk, layer)
}

func TestRestoreSkipsCorruptItem(t *testing.T) {
	s := New()

	snaps := []Snapshot{
		newText("ok1", 0, 0).Snapshot(),
		{V: SnapshotVersion, ID: "bad", Kind: Kind("Wat")},
		{V: SnapshotVersion, Kind: KindText}, // no id
		newText("ok2", 10, 10).Snapshot(),
	}

	restored := s.Restore(snaps)
	assert.Len(t, restored, 2)
	assert.NotNil(t, s.Get("ok1"))
	assert.NotNil(t, s.Get("ok2"))
	assert.Nil(t, s.Get("bad"))
}

func TestSnapshotOmitsTransientScale(t *testing.T) {
	it := newText("a", 0, 0)
	it.ScaleX = 2 // mid-interaction state

	data, err := json.Marshal(it.Snapshot())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "scale")

	back, err := FromSnapshot(it.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, 1.0, back.ScaleX)
	assert.Equal(t, 1.0, back.ScaleY)
}

func TestBoundsInk(t *testing.T) {
	ink := newInk("i", []geom.Point{{X: 10, Y: 10}, {X: 50, Y: 30}})
	ink.X, ink.Y = 5, 5

	b := ink.Bounds()
	assert.Equal(t, geom.Rect{X: 11, Y: 11, Width: 48, Height: 28}, b)
}

func TestCloneIsDeep(t *testing.T) {
	g := &Item{
		ID: "g", Kind: KindGroup, UserContent: true, ScaleX: 1, ScaleY: 1,
		Children: []*Item{newInk("c", []geom.Point{{X: 0, Y: 0}, {X: 5, Y: 5}})},
	}

	cp := g.Clone()
	cp.Children[0].Points[0].X = 99
	cp.Children[0].ID = "changed"

	assert.Equal(t, 0.0, g.Children[0].Points[0].X)
	assert.Equal(t, "c", g.Children[0].ID)
}
