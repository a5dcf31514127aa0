package mindmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/nathsir75/mmap/internal/store"
	"github.com/nathsir75/mmap/internal/typeid"
)

const mapPrefix = "mindmap:"

var (
	ErrNodeNotFound = errors.New("mindmap: node not found")

	// ErrRootDelete rejects attempts to delete the central topic. A map
	// with no root is unrecoverable in the UI.
	ErrRootDelete = errors.New("mindmap: root node cannot be deleted")
)

// Store owns one mindmap page's tree and persists every mutation. Safe for
// concurrent use.
type Store struct {
	kv     store.KV
	log    *slog.Logger
	pageID string

	mu sync.Mutex
	m  *Map
}

func NewStore(kv store.KV, log *slog.Logger, pageID string) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{kv: kv, log: log, pageID: pageID}
}

func (s *Store) key() string { return mapPrefix + s.pageID }

// Load reads the map, creating a fresh one with a central topic on first
// open.
func (s *Store) Load(ctx context.Context) (*Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.Get(ctx, s.key())
	if errors.Is(err, store.ErrNotFound) {
		root := &Node{
			ID:     typeid.NewNodeID(),
			PageID: typeid.NewPageID(),
			Title:  "Central topic",
			X:      -DefaultNodeWidth / 2,
			Y:      -DefaultNodeHeight / 2,
			Width:  DefaultNodeWidth,
			Height: DefaultNodeHeight,
		}
		s.m = &Map{V: MapVersion, RootID: root.ID, Nodes: []*Node{root}, Selected: root.ID}
		if err := s.persist(ctx); err != nil {
			return nil, err
		}
		return s.snapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load mindmap %s: %w", s.pageID, err)
	}

	var m Map
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode mindmap %s: %w", s.pageID, err)
	}
	s.m = &m
	return s.snapshot(), nil
}

// Map returns a deep copy of the current tree.
func (s *Store) Map() *Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() *Map {
	raw, _ := json.Marshal(s.m)
	var out Map
	_ = json.Unmarshal(raw, &out)
	return &out
}

// CreateChild adds a child topic offset right and below the parent,
// stacking siblings downward, and selects it.
func (s *Store) CreateChild(ctx context.Context, parentID string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.m.node(parentID)
	if parent == nil {
		return nil, fmt.Errorf("parent %s: %w", parentID, ErrNodeNotFound)
	}

	siblings := len(s.m.children(parentID))
	n := &Node{
		ID:       typeid.NewNodeID(),
		ParentID: parentID,
		PageID:   typeid.NewPageID(),
		Title:    "New topic",
		X:        parent.X + childOffsetX,
		Y:        parent.Y + childOffsetY*float64(siblings),
		Width:    DefaultNodeWidth,
		Height:   DefaultNodeHeight,
	}
	s.m.Nodes = append(s.m.Nodes, n)
	s.m.Selected = n.ID
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	return n, nil
}

// DeleteNode removes a node and its whole subtree, reselecting the parent.
// The root is never deletable. It returns the page ids the removed nodes
// linked so the caller can drop their content.
func (s *Store) DeleteNode(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.m.node(id)
	if n == nil {
		return nil, fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}
	if id == s.m.RootID {
		return nil, ErrRootDelete
	}

	doomed := map[string]bool{}
	for _, d := range s.m.subtree(id) {
		doomed[d] = true
	}

	var pages []string
	kept := s.m.Nodes[:0]
	for _, x := range s.m.Nodes {
		if !doomed[x.ID] {
			kept = append(kept, x)
			continue
		}
		if x.PageID != "" {
			pages = append(pages, x.PageID)
		}
	}
	s.m.Nodes = kept
	s.m.Selected = n.ParentID
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	return pages, nil
}

// MoveNode places the node at (x, y), rounded to whole pixels so repeated
// drags never accumulate fractional drift.
func (s *Store) MoveNode(ctx context.Context, id string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.m.node(id)
	if n == nil {
		return fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}
	n.X = math.Round(x)
	n.Y = math.Round(y)
	return s.persist(ctx)
}

// ResizeNode sets the node box, rounded, with a floor at half the default
// size.
func (s *Store) ResizeNode(ctx context.Context, id string, w, h float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.m.node(id)
	if n == nil {
		return fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}
	n.Width = math.Max(DefaultNodeWidth/2, math.Round(w))
	n.Height = math.Max(DefaultNodeHeight/2, math.Round(h))
	return s.persist(ctx)
}

// SetTitle renames a node.
func (s *Store) SetTitle(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.m.node(id)
	if n == nil {
		return fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}
	n.Title = title
	return s.persist(ctx)
}

// SetSnapshot caches a thumbnail of the node's linked page.
func (s *Store) SetSnapshot(ctx context.Context, id, dataURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.m.node(id)
	if n == nil {
		return fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}
	n.Snapshot = dataURL
	return s.persist(ctx)
}

// Select records the focused node.
func (s *Store) Select(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.m.node(id) == nil {
		return fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}
	s.m.Selected = id
	return s.persist(ctx)
}

// Layout computes the current edge routing.
func (s *Store) Layout() Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Route(s.m)
}

func (s *Store) persist(ctx context.Context) error {
	raw, err := json.Marshal(s.m)
	if err != nil {
		return fmt.Errorf("encode mindmap %s: %w", s.pageID, err)
	}
	if err := s.kv.Set(ctx, s.key(), raw); err != nil {
		return fmt.Errorf("save mindmap %s: %w", s.pageID, err)
	}
	return nil
}
