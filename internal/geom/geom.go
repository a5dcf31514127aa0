package geom

import "math"

// Point is a position in logical canvas units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect represents an axis-aligned bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains checks if a point is inside the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}

	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.X+r.Width, other.X+other.Width)
	maxY := max(r.Y+r.Height, other.Y+other.Height)

	return Rect{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

// Center returns the center point of the rect.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Translate returns the rect shifted by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, Width: r.Width, Height: r.Height}
}

// DistPointToSegment returns the distance from point p to the segment [a, b].
func DistPointToSegment(p, a, b Point) float64 {
	vx := b.X - a.X
	vy := b.Y - a.Y
	wx := p.X - a.X
	wy := p.Y - a.Y

	c1 := vx*wx + vy*wy
	if c1 <= 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}

	c2 := vx*vx + vy*vy
	if c2 <= c1 {
		return math.Hypot(p.X-b.X, p.Y-b.Y)
	}

	t := c1 / c2
	return math.Hypot(p.X-(a.X+t*vx), p.Y-(a.Y+t*vy))
}

// PolylineLength returns the total length of the polyline through pts.
func PolylineLength(pts []Point) float64 {
	var length float64
	for i := 0; i+1 < len(pts); i++ {
		length += math.Hypot(pts[i+1].X-pts[i].X, pts[i+1].Y-pts[i].Y)
	}
	return length
}

// PointInPolygon reports whether p lies inside the polygon using the
// even-odd crossing rule. Polygons with fewer than 3 vertices contain
// nothing.
func PointInPolygon(p Point, poly []Point) bool {
	if len(poly) < 3 {
		return false
	}

	inside := false
	j := len(poly) - 1
	for i := 0; i < len(poly); i++ {
		xi, yi := poly[i].X, poly[i].Y
		xj, yj := poly[j].X, poly[j].Y

		if (yi > p.Y) != (yj > p.Y) &&
			p.X < (xj-xi)*(p.Y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// BoundsOf returns the axis-aligned bounding box of pts, expanded by pad
// on every side so stroked edges are not clipped.
func BoundsOf(pts []Point, pad float64) Rect {
	if len(pts) == 0 {
		return Rect{}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)

	for _, p := range pts {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}

	return Rect{
		X:      minX - pad,
		Y:      minY - pad,
		Width:  (maxX - minX) + pad*2,
		Height: (maxY - minY) + pad*2,
	}
}

// Clamp limits v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
