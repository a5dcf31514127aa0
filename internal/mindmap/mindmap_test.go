package mindmap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathsir75/mmap/internal/store"
)

func newTestMap(t *testing.T) *Store {
	t.Helper()
	s := NewStore(store.NewMem(), nil, "page_mm")
	_, err := s.Load(context.Background())
	require.NoError(t, err)
	return s
}

func TestLoadCreatesRoot(t *testing.T) {
	s := newTestMap(t)

	m := s.Map()
	require.Len(t, m.Nodes, 1)
	root := m.Nodes[0]
	assert.Equal(t, m.RootID, root.ID)
	assert.Equal(t, "Central topic", root.Title)
	assert.Equal(t, float64(DefaultNodeWidth), root.Width)
	assert.Equal(t, root.ID, m.Selected)
}

func TestLoadIsStableAcrossReopen(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMem()

	s := NewStore(kv, nil, "page_mm")
	_, err := s.Load(ctx)
	require.NoError(t, err)
	child, err := s.CreateChild(ctx, s.Map().RootID)
	require.NoError(t, err)

	again := NewStore(kv, nil, "page_mm")
	m, err := again.Load(ctx)
	require.NoError(t, err)
	require.Len(t, m.Nodes, 2)
	assert.Equal(t, child.ID, m.Nodes[1].ID)
}

func TestCreateChildStacksSiblings(t *testing.T) {
	s := newTestMap(t)
	ctx := context.Background()
	root := s.Map().Nodes[0]

	a, err := s.CreateChild(ctx, root.ID)
	require.NoError(t, err)
	b, err := s.CreateChild(ctx, root.ID)
	require.NoError(t, err)

	assert.Equal(t, root.X+childOffsetX, a.X)
	assert.Equal(t, root.Y, a.Y)
	assert.Equal(t, root.X+childOffsetX, b.X)
	assert.Equal(t, root.Y+childOffsetY, b.Y)
	assert.Equal(t, b.ID, s.Map().Selected)
}

func TestCreateChildOfMissingParent(t *testing.T) {
	s := newTestMap(t)
	_, err := s.CreateChild(context.Background(), "node_missing")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestDeleteCascadesSubtreeAndReselectsParent(t *testing.T) {
	s := newTestMap(t)
	ctx := context.Background()
	rootID := s.Map().RootID

	child, err := s.CreateChild(ctx, rootID)
	require.NoError(t, err)
	grand, err := s.CreateChild(ctx, child.ID)
	require.NoError(t, err)
	great, err := s.CreateChild(ctx, grand.ID)
	require.NoError(t, err)
	keep, err := s.CreateChild(ctx, rootID)
	require.NoError(t, err)

	pages, err := s.DeleteNode(ctx, child.ID)
	require.NoError(t, err)

	m := s.Map()
	require.Len(t, m.Nodes, 2)
	assert.Nil(t, m.node(child.ID))
	assert.Nil(t, m.node(grand.ID))
	assert.NotNil(t, m.node(keep.ID))
	assert.Equal(t, rootID, m.Selected)
	assert.ElementsMatch(t, []string{child.PageID, grand.PageID, great.PageID}, pages)
}

func TestRootIsNotDeletable(t *testing.T) {
	s := newTestMap(t)
	_, err := s.DeleteNode(context.Background(), s.Map().RootID)
	assert.ErrorIs(t, err, ErrRootDelete)
	assert.Len(t, s.Map().Nodes, 1)
}

func TestMoveAndResizeRound(t *testing.T) {
	s := newTestMap(t)
	ctx := context.Background()
	rootID := s.Map().RootID

	require.NoError(t, s.MoveNode(ctx, rootID, 100.4, 200.6))
	n := s.Map().node(rootID)
	assert.Equal(t, 100.0, n.X)
	assert.Equal(t, 201.0, n.Y)

	require.NoError(t, s.ResizeNode(ctx, rootID, 300.2, 10))
	n = s.Map().node(rootID)
	assert.Equal(t, 300.0, n.Width)
	// floored at half the default
	assert.Equal(t, float64(DefaultNodeHeight)/2, n.Height)
}

func TestSetTitleAndSelect(t *testing.T) {
	s := newTestMap(t)
	ctx := context.Background()

	child, err := s.CreateChild(ctx, s.Map().RootID)
	require.NoError(t, err)

	require.NoError(t, s.SetTitle(ctx, child.ID, "Budget"))
	assert.Equal(t, "Budget", s.Map().node(child.ID).Title)

	require.NoError(t, s.Select(ctx, s.Map().RootID))
	assert.Equal(t, s.Map().RootID, s.Map().Selected)

	assert.ErrorIs(t, s.Select(ctx, "node_missing"), ErrNodeNotFound)
}

func TestRouteBundlesChildrenPerSide(t *testing.T) {
	s := newTestMap(t)
	ctx := context.Background()
	rootID := s.Map().RootID

	r1, err := s.CreateChild(ctx, rootID)
	require.NoError(t, err)
	r2, err := s.CreateChild(ctx, rootID)
	require.NoError(t, err)
	l1, err := s.CreateChild(ctx, rootID)
	require.NoError(t, err)
	require.NoError(t, s.MoveNode(ctx, l1.ID, -800, 0))

	layout := s.Layout()
	require.Len(t, layout.Bundles, 2)

	var right, left *Bundle
	for i := range layout.Bundles {
		switch layout.Bundles[i].Side {
		case SideRight:
			right = &layout.Bundles[i]
		case SideLeft:
			left = &layout.Bundles[i]
		}
	}
	require.NotNil(t, right)
	require.NotNil(t, left)

	assert.Len(t, right.Branches, 2)
	assert.Len(t, left.Branches, 1)
	assert.ElementsMatch(t,
		[]string{r1.ID, r2.ID},
		[]string{right.Branches[0].ChildID, right.Branches[1].ChildID})

	// right junction sits right of the parent edge, left junction left
	root := s.Map().node(rootID)
	assert.Greater(t, right.Junction.X, root.X+root.Width)
	assert.Less(t, left.Junction.X, root.X)
	assert.Equal(t, float64(JunctionR), right.Radius)
}

func TestStemLengthIsClamped(t *testing.T) {
	s := newTestMap(t)
	ctx := context.Background()
	rootID := s.Map().RootID

	near, err := s.CreateChild(ctx, rootID)
	require.NoError(t, err)
	root := s.Map().node(rootID)

	// child hugging the parent still gets the minimum stem
	require.NoError(t, s.MoveNode(ctx, near.ID, root.X+root.Width+10, root.Y))
	b := s.Layout().Bundles[0]
	assert.InDelta(t, stemMin, b.Junction.X-(root.X+root.Width), 1e-9)

	// child far away maxes out
	require.NoError(t, s.MoveNode(ctx, near.ID, root.X+5000, root.Y))
	b = s.Layout().Bundles[0]
	assert.InDelta(t, stemMax, b.Junction.X-(root.X+root.Width), 1e-9)
}

func TestBranchCurveEndsAtChildEdge(t *testing.T) {
	s := newTestMap(t)
	ctx := context.Background()
	rootID := s.Map().RootID

	child, err := s.CreateChild(ctx, rootID)
	require.NoError(t, err)

	b := s.Layout().Bundles[0]
	require.Len(t, b.Branches, 1)
	c := b.Branches[0].Curve

	got := s.Map().node(child.ID)
	assert.Equal(t, got.X, c.To.X)
	assert.Equal(t, got.Y+got.Height/2, c.To.Y)
	assert.Equal(t, b.Junction, c.From)
}
