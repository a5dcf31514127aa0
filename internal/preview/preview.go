// Package preview rasterizes a scene into a small PNG thumbnail suitable
// for page pickers. The rendering is deliberately approximate: boxes,
// strokes and embedded images at thumbnail scale, not a faithful replica of
// the canvas.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/nathsir75/mmap/internal/geom"
	"github.com/nathsir75/mmap/internal/scene"
)

// MaxThumbWidth bounds the thumbnail. Height follows the content's aspect
// ratio.
const MaxThumbWidth = 420

const contentMargin = 24

var (
	canvasBg      = color.NRGBA{R: 0xfa, G: 0xfa, B: 0xf7, A: 0xff}
	defaultStroke = color.NRGBA{R: 0x1f, G: 0x25, B: 0x44, A: 0xff}
	imageFill     = color.NRGBA{R: 0xd6, G: 0xdc, B: 0xe8, A: 0xff}
)

// Renderer rasterizes scenes. The zero value is usable.
type Renderer struct {
	// DecodeImages controls whether embedded data-URI images are decoded
	// and drawn. When off, images render as placeholder boxes.
	DecodeImages bool
}

// Render rasterizes the scene's user content and returns it as a PNG data
// URL. An empty scene yields an empty string so callers can store "no
// preview" without a sentinel.
func (r *Renderer) Render(sc *scene.Scene) (string, error) {
	var box geom.Rect
	first := true
	var items []*scene.Item
	for _, it := range sc.TopLevel() {
		if !it.UserContent {
			continue
		}
		items = append(items, it)
		if first {
			box = it.Bounds()
			first = false
		} else {
			box = box.Union(it.Bounds())
		}
	}
	if len(items) == 0 || box.Width <= 0 || box.Height <= 0 {
		return "", nil
	}

	box.X -= contentMargin
	box.Y -= contentMargin
	box.Width += contentMargin * 2
	box.Height += contentMargin * 2

	full := image.NewNRGBA(image.Rect(0, 0, int(math.Ceil(box.Width)), int(math.Ceil(box.Height))))
	draw.Draw(full, full.Bounds(), image.NewUniform(canvasBg), image.Point{}, draw.Src)

	origin := geom.Point{X: box.X, Y: box.Y}
	for _, it := range items {
		r.drawItem(full, it, origin)
	}

	thumb := downscale(full, MaxThumbWidth)
	url, err := EncodePNG(thumb)
	if err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	return url, nil
}

// drawItem paints one item (and its children) offset so that origin maps to
// the canvas top-left.
func (r *Renderer) drawItem(dst *image.NRGBA, it *scene.Item, origin geom.Point) {
	switch it.Kind {
	case scene.KindInk:
		r.drawStroke(dst, it, origin)
	case scene.KindImage:
		r.drawImage(dst, it, origin)
	default:
		b := it.Bounds().Translate(-origin.X, -origin.Y)
		if fill, ok := parseHex(it.Style.Fill); ok {
			fillRect(dst, b, fill)
		}
		stroke := defaultStroke
		if c, ok := parseHex(it.Style.Stroke); ok {
			stroke = c
		}
		strokeRect(dst, b, stroke)
	}

	for _, ch := range it.Children {
		shifted := geom.Point{X: origin.X - it.X, Y: origin.Y - it.Y}
		r.drawItem(dst, ch, shifted)
	}
}

func (r *Renderer) drawStroke(dst *image.NRGBA, it *scene.Item, origin geom.Point) {
	c := defaultStroke
	if parsed, ok := parseHex(it.Style.Stroke); ok {
		c = parsed
	}
	if it.Style.Opacity > 0 && it.Style.Opacity < 1 {
		c.A = uint8(float64(c.A) * it.Style.Opacity)
	}

	radius := math.Max(1, it.Style.StrokeWidth/2)
	for i := 0; i+1 < len(it.Points); i++ {
		a := geom.Point{X: it.X + it.Points[i].X - origin.X, Y: it.Y + it.Points[i].Y - origin.Y}
		b := geom.Point{X: it.X + it.Points[i+1].X - origin.X, Y: it.Y + it.Points[i+1].Y - origin.Y}
		stampSegment(dst, a, b, radius, c)
	}
}

func (r *Renderer) drawImage(dst *image.NRGBA, it *scene.Item, origin geom.Point) {
	b := it.Bounds().Translate(-origin.X, -origin.Y)

	if r.DecodeImages && it.Src != "" {
		if src, err := DecodeDataURL(it.Src); err == nil {
			rect := image.Rect(int(b.X), int(b.Y), int(b.X+b.Width), int(b.Y+b.Height))
			xdraw.ApproxBiLinear.Scale(dst, rect, src, src.Bounds(), xdraw.Over, nil)
			return
		}
	}
	fillRect(dst, b, imageFill)
	strokeRect(dst, b, defaultStroke)
}

// downscale fits img within maxW pixels wide, preserving aspect ratio.
// Narrower images pass through untouched.
func downscale(img *image.NRGBA, maxW int) image.Image {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if w <= maxW || w == 0 {
		return img
	}
	scale := float64(maxW) / float64(w)
	out := image.NewNRGBA(image.Rect(0, 0, maxW, int(math.Max(1, math.Round(float64(h)*scale)))))
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return out
}

// stampSegment draws a thick line by stamping discs along it.
func stampSegment(dst *image.NRGBA, a, b geom.Point, radius float64, c color.NRGBA) {
	dx, dy := b.X-a.X, b.Y-a.Y
	dist := math.Hypot(dx, dy)
	steps := int(dist/math.Max(1, radius)) + 1
	for s := 0; s <= steps; s++ {
		f := float64(s) / float64(steps)
		stampDisc(dst, a.X+dx*f, a.Y+dy*f, radius, c)
	}
}

func stampDisc(dst *image.NRGBA, cx, cy, radius float64, c color.NRGBA) {
	r2 := radius * radius
	for y := int(cy - radius); y <= int(cy+radius); y++ {
		for x := int(cx - radius); x <= int(cx+radius); x++ {
			ddx := float64(x) - cx
			ddy := float64(y) - cy
			if ddx*ddx+ddy*ddy <= r2 {
				blend(dst, x, y, c)
			}
		}
	}
}

func fillRect(dst *image.NRGBA, b geom.Rect, c color.NRGBA) {
	for y := int(b.Y); y < int(b.Y+b.Height); y++ {
		for x := int(b.X); x < int(b.X+b.Width); x++ {
			blend(dst, x, y, c)
		}
	}
}

func strokeRect(dst *image.NRGBA, b geom.Rect, c color.NRGBA) {
	x0, y0 := int(b.X), int(b.Y)
	x1, y1 := int(b.X+b.Width)-1, int(b.Y+b.Height)-1
	for x := x0; x <= x1; x++ {
		blend(dst, x, y0, c)
		blend(dst, x, y1, c)
	}
	for y := y0; y <= y1; y++ {
		blend(dst, x0, y, c)
		blend(dst, x1, y, c)
	}
}

func blend(dst *image.NRGBA, x, y int, c color.NRGBA) {
	if !(image.Point{X: x, Y: y}.In(dst.Bounds())) {
		return
	}
	if c.A == 0xff {
		dst.SetNRGBA(x, y, c)
		return
	}
	old := dst.NRGBAAt(x, y)
	a := float64(c.A) / 255
	mix := func(n, o uint8) uint8 {
		return uint8(float64(n)*a + float64(o)*(1-a))
	}
	dst.SetNRGBA(x, y, color.NRGBA{
		R: mix(c.R, old.R),
		G: mix(c.G, old.G),
		B: mix(c.B, old.B),
		A: 0xff,
	})
}

// parseHex parses #rgb and #rrggbb colors.
func parseHex(s string) (color.NRGBA, bool) {
	if len(s) == 0 || s[0] != '#' {
		return color.NRGBA{}, false
	}
	hex := s[1:]
	var r, g, b uint8
	switch len(hex) {
	case 3:
		var ok bool
		if r, ok = nibble(hex[0]); !ok {
			return color.NRGBA{}, false
		}
		r = r<<4 | r
		if g, ok = nibble(hex[1]); !ok {
			return color.NRGBA{}, false
		}
		g = g<<4 | g
		if b, ok = nibble(hex[2]); !ok {
			return color.NRGBA{}, false
		}
		b = b<<4 | b
	case 6:
		var ok bool
		if r, ok = byteAt(hex, 0); !ok {
			return color.NRGBA{}, false
		}
		if g, ok = byteAt(hex, 2); !ok {
			return color.NRGBA{}, false
		}
		if b, ok = byteAt(hex, 4); !ok {
			return color.NRGBA{}, false
		}
	default:
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, true
}

func nibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func byteAt(s string, i int) (uint8, bool) {
	hi, ok := nibble(s[i])
	if !ok {
		return 0, false
	}
	lo, ok := nibble(s[i+1])
	if !ok {
		return 0, false
	}
	return hi<<4 | lo, true
}
