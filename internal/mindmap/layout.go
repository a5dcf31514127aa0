package mindmap

import (
	"math"

	"github.com/nathsir75/mmap/internal/geom"
)

// Edge routing tuning. Children are bundled per side: a straight stem runs
// from the parent to a junction dot, then one curved branch per child.
const (
	stemBase      = 80
	stemSpread    = 0.16
	stemMin       = 140
	stemMax       = 260
	JunctionR     = 6
	curveXSpread  = 0.6
	curveXMin     = 160
	curveXMax     = 520
	curveYSpread  = 0.22
	curveYMaxRise = 90
)

// Side is the horizontal side of the parent a child hangs off.
type Side int

const (
	SideRight Side = iota
	SideLeft
)

// Cubic is one cubic bezier segment.
type Cubic struct {
	From, C1, C2, To geom.Point
}

// Branch is the curve from a junction to one child.
type Branch struct {
	ChildID string
	Curve   Cubic
}

// Bundle is the routed connector from one parent to all children on one
// side: stem, junction dot, branches.
type Bundle struct {
	ParentID string
	Side     Side
	Stem     [2]geom.Point
	Junction geom.Point
	Radius   float64
	Branches []Branch
}

// Layout is the full routing of a map.
type Layout struct {
	Bundles []Bundle
}

// Route computes edge routing for every parent with children. Children are
// split by which side of the parent they sit on; each side gets its own
// stem and junction.
func Route(m *Map) Layout {
	var out Layout
	for _, parent := range m.Nodes {
		kids := m.children(parent.ID)
		if len(kids) == 0 {
			continue
		}

		var left, right []*Node
		pc := parent.Center()
		for _, k := range kids {
			if k.Center().X < pc.X {
				left = append(left, k)
			} else {
				right = append(right, k)
			}
		}

		if len(right) > 0 {
			out.Bundles = append(out.Bundles, routeSide(parent, right, SideRight))
		}
		if len(left) > 0 {
			out.Bundles = append(out.Bundles, routeSide(parent, left, SideLeft))
		}
	}
	return out
}

func routeSide(parent *Node, kids []*Node, side Side) Bundle {
	sign := 1.0
	if side == SideLeft {
		sign = -1
	}

	anchor := geom.Point{X: parent.X, Y: parent.Y + parent.Height/2}
	if side == SideRight {
		anchor.X = parent.X + parent.Width
	}

	// the stem grows with how far the farthest child sits, within bounds
	farDx := 0.0
	sumMidY := 0.0
	for _, k := range kids {
		farDx = math.Max(farDx, math.Abs(k.Center().X-anchor.X))
		sumMidY += k.Center().Y
	}
	stem := geom.Clamp(stemBase+farDx*stemSpread, stemMin, stemMax)

	junction := geom.Point{
		X: anchor.X + sign*stem,
		Y: sumMidY / float64(len(kids)),
	}

	b := Bundle{
		ParentID: parent.ID,
		Side:     side,
		Stem:     [2]geom.Point{anchor, junction},
		Junction: junction,
		Radius:   JunctionR,
	}

	for _, k := range kids {
		to := geom.Point{X: k.X, Y: k.Y + k.Height/2}
		if side == SideLeft {
			to.X = k.X + k.Width
		}

		dx := to.X - junction.X
		dy := to.Y - junction.Y
		curveX := geom.Clamp(math.Abs(dx)*curveXSpread, curveXMin, curveXMax)
		curveY := geom.Clamp(dy*curveYSpread, -curveYMaxRise, curveYMaxRise)

		b.Branches = append(b.Branches, Branch{
			ChildID: k.ID,
			Curve: Cubic{
				From: junction,
				C1:   geom.Point{X: junction.X + sign*curveX/2, Y: junction.Y + curveY},
				C2:   geom.Point{X: to.X - sign*curveX/2, Y: to.Y - curveY},
				To:   to,
			},
		})
	}
	return b
}
