package preview

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathsir75/mmap/internal/geom"
	"github.com/nathsir75/mmap/internal/scene"
)

func testScene() *scene.Scene {
	sc := scene.New()
	sc.Add(scene.LayerShapes, &scene.Item{
		ID: "item_box", Kind: scene.KindRectGroup, UserContent: true,
		X: 40, Y: 40, Width: 200, Height: 120,
		Style: scene.Style{Stroke: "#1f2544", Fill: "#ffffff"},
	})
	sc.Add(scene.LayerInk, &scene.Item{
		ID: "item_ink", Kind: scene.KindInk, UserContent: true,
		Points: []geom.Point{{X: 10, Y: 10}, {X: 120, Y: 90}, {X: 260, Y: 30}},
		Style:  scene.Style{Stroke: "#cc3344", StrokeWidth: 6, Opacity: 1},
	})
	return sc
}

func TestRenderProducesPNGDataURL(t *testing.T) {
	var r Renderer
	url, err := r.Render(testScene())
	require.NoError(t, err)
	require.NotEmpty(t, url)

	img, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), MaxThumbWidth)
	assert.Positive(t, img.Bounds().Dy())
}

func TestRenderEmptySceneYieldsNoPreview(t *testing.T) {
	var r Renderer
	url, err := r.Render(scene.New())
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestRenderSkipsNonUserContent(t *testing.T) {
	sc := scene.New()
	sc.Add(scene.LayerShapes, &scene.Item{
		ID: "item_grid", Kind: scene.KindRectGroup,
		X: 0, Y: 0, Width: 5000, Height: 5000,
	})

	var r Renderer
	url, err := r.Render(sc)
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestWideContentIsDownscaled(t *testing.T) {
	sc := scene.New()
	sc.Add(scene.LayerShapes, &scene.Item{
		ID: "item_wide", Kind: scene.KindRectGroup, UserContent: true,
		X: 0, Y: 0, Width: 2000, Height: 500,
		Style: scene.Style{Fill: "#eeeeee"},
	})

	var r Renderer
	url, err := r.Render(sc)
	require.NoError(t, err)

	img, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, MaxThumbWidth, img.Bounds().Dx())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	src.SetNRGBA(3, 2, color.NRGBA{R: 0xff, A: 0xff})

	url, err := EncodePNG(src)
	require.NoError(t, err)

	back, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, 8, back.Bounds().Dx())
	assert.Equal(t, 6, back.Bounds().Dy())
	r, _, _, _ := back.At(3, 2).RGBA()
	assert.NotZero(t, r)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeDataURL("http://example.com/a.png")
	assert.ErrorIs(t, err, ErrNotDataURL)

	_, err = DecodeDataURL("data:image/png;base64,!!!not-base64!!!")
	assert.Error(t, err)
}

func TestLoaderReportsDimensions(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 33, 21))
	url, err := EncodePNG(src)
	require.NoError(t, err)

	var w, h float64
	var ok bool
	Loader{}.Load(url, func(lw, lh float64, lok bool) { w, h, ok = lw, lh, lok })
	require.True(t, ok)
	assert.Equal(t, 33.0, w)
	assert.Equal(t, 21.0, h)

	Loader{}.Load("nonsense", func(_, _ float64, lok bool) { ok = lok })
	assert.False(t, ok)
}

func TestParseHexForms(t *testing.T) {
	c, ok := parseHex("#cc3344")
	require.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 0xcc, G: 0x33, B: 0x44, A: 0xff}, c)

	c, ok = parseHex("#fff")
	require.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, c)

	_, ok = parseHex("tomato")
	assert.False(t, ok)
	_, ok = parseHex("#12345")
	assert.False(t, ok)
}
