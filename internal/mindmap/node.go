// Package mindmap manages mindmap pages: a tree of topic nodes with
// computed edge routing. Node bodies are ordinary canvas pages; this
// package only owns the tree and its geometry.
package mindmap

import (
	"github.com/nathsir75/mmap/internal/geom"
)

// MapVersion is stamped on the persisted map.
const MapVersion = 1

// Node box defaults and placement offsets for new children.
const (
	DefaultNodeWidth  = 220
	DefaultNodeHeight = 140

	childOffsetX = 260
	childOffsetY = 180
)

// Node is one topic box. ParentID is empty only for the root. PageID links
// the canvas page that opens when the node is edited; Snapshot caches a
// thumbnail of that page for rendering inside the box.
type Node struct {
	ID       string  `json:"id"`
	ParentID string  `json:"parentId,omitempty"`
	PageID   string  `json:"pageId,omitempty"`
	Title    string  `json:"title"`
	Snapshot string  `json:"snapshot,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

// Bounds returns the node's box.
func (n *Node) Bounds() geom.Rect {
	return geom.Rect{X: n.X, Y: n.Y, Width: n.Width, Height: n.Height}
}

// Center returns the box midpoint.
func (n *Node) Center() geom.Point {
	return n.Bounds().Center()
}

// Map is the serialized mindmap state.
type Map struct {
	V        int     `json:"v"`
	RootID   string  `json:"rootId"`
	Nodes    []*Node `json:"nodes"`
	Selected string  `json:"selected,omitempty"`
}

func (m *Map) node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// children returns the direct children of id in insertion order.
func (m *Map) children(id string) []*Node {
	var out []*Node
	for _, n := range m.Nodes {
		if n.ParentID == id {
			out = append(out, n)
		}
	}
	return out
}

// subtree returns id and every descendant, depth first.
func (m *Map) subtree(id string) []string {
	out := []string{id}
	for _, c := range m.children(id) {
		out = append(out, m.subtree(c.ID)...)
	}
	return out
}
