package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nathsir75/mmap/internal/store"
	"github.com/nathsir75/mmap/internal/typeid"
)

const (
	metaKey       = "workspace"
	pagePrefix    = "page:"
	previewPrefix = "preview:"
)

var (
	ErrNotFound = errors.New("workspace: not found")

	// ErrUnpersisted reports that content is held only in memory because
	// the backend is out of room even after shedding previews.
	ErrUnpersisted = errors.New("workspace: content kept in memory, store is full")
)

// Store owns the workspace tree and its persistence. Safe for concurrent
// use.
type Store struct {
	kv  store.KV
	log *slog.Logger
	now func() time.Time

	mu    sync.Mutex
	state *State

	// pages whose latest content only exists here because every write
	// path hit the quota
	unpersisted map[string][]byte
}

func NewStore(kv store.KV, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		kv:          kv,
		log:         log,
		now:         time.Now,
		unpersisted: map[string][]byte{},
	}
}

// Load reads the workspace metadata, creating a starter workspace on first
// launch.
func (s *Store) Load(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.Get(ctx, metaKey)
	if errors.Is(err, store.ErrNotFound) {
		s.state = NewState(s.now())
		if err := s.persistMeta(ctx); err != nil {
			return nil, err
		}
		return s.snapshotState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode workspace: %w", err)
	}
	s.state = &st
	s.sortTree()
	return s.snapshotState(), nil
}

// State returns a deep copy of the current tree.
func (s *Store) State() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotState()
}

func (s *Store) snapshotState() *State {
	raw, _ := json.Marshal(s.state)
	var out State
	_ = json.Unmarshal(raw, &out)
	return &out
}

// CreateNotebook appends a notebook at the end of the tree.
func (s *Store) CreateNotebook(ctx context.Context, title string) (*Notebook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nb := &Notebook{
		ID:    typeid.NewNotebookID(),
		Title: title,
		Order: len(s.state.Notebooks),
	}
	s.state.Notebooks = append(s.state.Notebooks, nb)
	if err := s.persistMeta(ctx); err != nil {
		return nil, err
	}
	return nb, nil
}

// CreateSection appends a section to the notebook.
func (s *Store) CreateSection(ctx context.Context, notebookID, title string) (*Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nb := s.state.notebook(notebookID)
	if nb == nil {
		return nil, fmt.Errorf("notebook %s: %w", notebookID, ErrNotFound)
	}
	sec := &Section{
		ID:    typeid.NewSectionID(),
		Title: title,
		Order: len(nb.Sections),
	}
	nb.Sections = append(nb.Sections, sec)
	if err := s.persistMeta(ctx); err != nil {
		return nil, err
	}
	return sec, nil
}

// CreatePage appends a page to the section and makes it active.
func (s *Store) CreatePage(ctx context.Context, sectionID, title string, mindmap bool) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, sec := s.state.section(sectionID)
	if sec == nil {
		return nil, fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
	}
	now := s.now()
	p := &Page{
		ID:        typeid.NewPageID(),
		Title:     title,
		Order:     len(sec.Pages),
		Mindmap:   mindmap,
		CreatedAt: now,
		UpdatedAt: now,
	}
	sec.Pages = append(sec.Pages, p)
	s.state.ActivePageID = p.ID
	if err := s.persistMeta(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Rename changes the title of a notebook, section or page by id.
func (s *Store) Rename(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state.notebook(id) != nil:
		s.state.notebook(id).Title = title
	default:
		if _, sec := s.state.section(id); sec != nil {
			sec.Title = title
			break
		}
		_, p := s.state.page(id)
		if p == nil {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		p.Title = title
		p.UpdatedAt = s.now()
	}
	return s.persistMeta(ctx)
}

// DeleteNotebook removes the notebook and the content of every page in it.
func (s *Store) DeleteNotebook(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nb := s.state.notebook(id)
	if nb == nil {
		return fmt.Errorf("notebook %s: %w", id, ErrNotFound)
	}
	for _, sec := range nb.Sections {
		for _, p := range sec.Pages {
			s.dropPageBlobs(ctx, p.ID)
		}
	}
	s.state.Notebooks = remove(s.state.Notebooks, func(n *Notebook) bool { return n.ID == id })
	s.fixActivePage()
	return s.persistMeta(ctx)
}

// DeleteSection removes the section and the content of its pages.
func (s *Store) DeleteSection(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nb, sec := s.state.section(id)
	if sec == nil {
		return fmt.Errorf("section %s: %w", id, ErrNotFound)
	}
	for _, p := range sec.Pages {
		s.dropPageBlobs(ctx, p.ID)
	}
	nb.Sections = remove(nb.Sections, func(x *Section) bool { return x.ID == id })
	s.fixActivePage()
	return s.persistMeta(ctx)
}

// DeletePage removes the page and its stored content and preview.
func (s *Store) DeletePage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, p := s.state.page(id)
	if p == nil {
		return fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	s.dropPageBlobs(ctx, id)
	sec.Pages = remove(sec.Pages, func(x *Page) bool { return x.ID == id })
	s.fixActivePage()
	return s.persistMeta(ctx)
}

// SetActivePage records which page the UI has open.
func (s *Store) SetActivePage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, p := s.state.page(id); p == nil {
		return fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	s.state.ActivePageID = id
	return s.persistMeta(ctx)
}

// EnsurePage registers a page id that arrived from outside the tree (an
// import, a mindmap jump) so content saves always have a metadata row.
func (s *Store) EnsurePage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, p := s.state.page(id); p != nil {
		return nil
	}
	if len(s.state.Notebooks) == 0 || len(s.state.Notebooks[0].Sections) == 0 {
		return fmt.Errorf("page %s: no section to attach to: %w", id, ErrNotFound)
	}
	sec := s.state.Notebooks[0].Sections[0]
	now := s.now()
	sec.Pages = append(sec.Pages, &Page{
		ID:        id,
		Title:     "Untitled page",
		Order:     len(sec.Pages),
		CreatedAt: now,
		UpdatedAt: now,
	})
	return s.persistMeta(ctx)
}

// SavePage stores page content and preview, degrading when the backend
// runs out of room: first the previews are shed, then the content is kept
// in memory and the save reported as ErrUnpersisted.
func (s *Store) SavePage(ctx context.Context, pageID string, content []byte, preview string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, p := s.state.page(pageID); p != nil {
		p.UpdatedAt = s.now()
		if err := s.persistMeta(ctx); err != nil {
			s.log.Warn("workspace metadata save failed", "error", err)
		}
	}

	if preview != "" {
		if err := s.kv.Set(ctx, previewPrefix+pageID, []byte(preview)); err != nil {
			// previews are expendable
			s.log.Warn("preview save failed", "page", pageID, "error", err)
		}
	}

	err := s.kv.Set(ctx, pagePrefix+pageID, content)
	if errors.Is(err, store.ErrQuotaExceeded) {
		s.log.Warn("store full, shedding previews", "page", pageID)
		s.shedPreviews(ctx)
		err = s.kv.Set(ctx, pagePrefix+pageID, content)
	}
	if errors.Is(err, store.ErrQuotaExceeded) {
		s.unpersisted[pageID] = content
		s.log.Warn("content held in memory only", "page", pageID, "bytes", len(content))
		return fmt.Errorf("page %s: %w", pageID, ErrUnpersisted)
	}
	if err != nil {
		return fmt.Errorf("save page %s: %w", pageID, err)
	}
	delete(s.unpersisted, pageID)
	return nil
}

// LoadPage returns the stored content of a page; empty content for a page
// that was never saved.
func (s *Store) LoadPage(ctx context.Context, pageID string) ([]byte, error) {
	s.mu.Lock()
	if v, ok := s.unpersisted[pageID]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	raw, err := s.kv.Get(ctx, pagePrefix+pageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load page %s: %w", pageID, err)
	}
	return raw, nil
}

// Preview returns the stored thumbnail data URL, or "" when none exists.
func (s *Store) Preview(ctx context.Context, pageID string) (string, error) {
	raw, err := s.kv.Get(ctx, previewPrefix+pageID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load preview %s: %w", pageID, err)
	}
	return string(raw), nil
}

// Unpersisted reports the pages whose latest content never reached the
// backend.
func (s *Store) Unpersisted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.unpersisted))
	for id := range s.unpersisted {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Store) persistMeta(ctx context.Context) error {
	raw, err := json.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("encode workspace: %w", err)
	}
	if err := s.kv.Set(ctx, metaKey, raw); err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	return nil
}

// shedPreviews deletes every stored thumbnail to reclaim room for content.
func (s *Store) shedPreviews(ctx context.Context) {
	keys, err := s.kv.Keys(ctx, previewPrefix)
	if err != nil {
		s.log.Warn("listing previews failed", "error", err)
		return
	}
	for _, k := range keys {
		if err := s.kv.Delete(ctx, k); err != nil {
			s.log.Warn("dropping preview failed", "key", k, "error", err)
		}
	}
}

func (s *Store) dropPageBlobs(ctx context.Context, pageID string) {
	if err := s.kv.Delete(ctx, pagePrefix+pageID); err != nil {
		s.log.Warn("dropping page content failed", "page", pageID, "error", err)
	}
	if err := s.kv.Delete(ctx, previewPrefix+pageID); err != nil {
		s.log.Warn("dropping page preview failed", "page", pageID, "error", err)
	}
	delete(s.unpersisted, pageID)
}

// fixActivePage repoints the active page after deletions.
func (s *Store) fixActivePage() {
	if _, p := s.state.page(s.state.ActivePageID); p != nil {
		return
	}
	s.state.ActivePageID = ""
	if pages := s.state.Pages(); len(pages) > 0 {
		s.state.ActivePageID = pages[0].ID
	}
}

// sortTree restores order-field sorting after load.
func (s *Store) sortTree() {
	sort.SliceStable(s.state.Notebooks, func(i, j int) bool {
		return s.state.Notebooks[i].Order < s.state.Notebooks[j].Order
	})
	for _, nb := range s.state.Notebooks {
		sort.SliceStable(nb.Sections, func(i, j int) bool {
			return nb.Sections[i].Order < nb.Sections[j].Order
		})
		for _, sec := range nb.Sections {
			sort.SliceStable(sec.Pages, func(i, j int) bool {
				return sec.Pages[i].Order < sec.Pages[j].Order
			})
		}
	}
}

func remove[T any](xs []T, match func(T) bool) []T {
	out := xs[:0]
	for _, x := range xs {
		if !match(x) {
			out = append(out, x)
		}
	}
	return out
}
