package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"

	"github.com/nathsir75/mmap/internal/editor"
	"github.com/nathsir75/mmap/internal/typeid"
)

// Deps are the collaborators a session needs beyond its page id.
type Deps struct {
	Store   editor.ContentStore
	Loader  editor.ImageLoader
	Preview editor.PreviewFunc
	Logger  *slog.Logger
}

// Hub tracks the open sessions, one per page.
type Hub struct {
	deps    Deps
	origins []string

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewHub(deps Deps, allowedOrigins []string) *Hub {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Hub{
		deps:     deps,
		origins:  allowedOrigins,
		sessions: map[string]*Session{},
	}
}

// get returns the session for pageID, starting one (and loading the page)
// on first use.
func (h *Hub) get(ctx context.Context, pageID string) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("hub is shut down")
	}
	if s, ok := h.sessions[pageID]; ok {
		return s, nil
	}

	s := newSession(pageID, h.deps)
	s.onIdle = func() { h.evict(s) }
	go s.run()

	var loadErr error
	s.post(func() { loadErr = s.ed.LoadPage(ctx, pageID) })
	if loadErr != nil {
		close(s.done)
		return nil, fmt.Errorf("open session for %s: %w", pageID, loadErr)
	}

	h.sessions[pageID] = s
	return s, nil
}

// evict tears the session down once its last client is gone. A client that
// re-attached since the idle notification keeps the session alive.
func (h *Hub) evict(s *Session) {
	h.mu.Lock()
	if h.sessions[s.pageID] != s || !s.retire() {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s.pageID)
	h.mu.Unlock()

	if err := s.close(context.Background()); err != nil {
		h.deps.Logger.Error("session close failed", "page", s.pageID, "error", err)
	}
}

// ServeHTTP upgrades GET /session/{pageID} to a websocket and attaches the
// client to the page's session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pageID := mux.Vars(r)["pageID"]
	if err := typeid.Validate(pageID, typeid.PrefixPage); err != nil {
		http.Error(w, "invalid page id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns(),
	})
	if err != nil {
		h.deps.Logger.Warn("websocket accept failed", "error", err)
		return
	}

	var c *Client
	for {
		s, err := h.get(r.Context(), pageID)
		if err != nil {
			h.deps.Logger.Error("session open failed", "page", pageID, "error", err)
			conn.Close(websocket.StatusInternalError, "session open failed")
			return
		}
		c = newClient(s, conn)
		// a session can retire between lookup and attach; start over on a
		// fresh one
		if s.addClient(c) {
			break
		}
	}

	go c.writePump(r.Context())
	c.readPump(r.Context())
}

// originPatterns strips schemes; websocket.AcceptOptions matches on host
// patterns.
func (h *Hub) originPatterns() []string {
	out := make([]string, 0, len(h.origins))
	for _, o := range h.origins {
		o = strings.TrimPrefix(o, "http://")
		o = strings.TrimPrefix(o, "https://")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Preview renders the current thumbnail of an open page straight from its
// live scene, bypassing the stored copy.
func (h *Hub) Preview(pageID string) (string, bool) {
	h.mu.Lock()
	s, ok := h.sessions[pageID]
	h.mu.Unlock()
	if !ok || h.deps.Preview == nil {
		return "", false
	}

	var url string
	var err error
	s.post(func() { url, err = h.deps.Preview(s.ed.Scene()) })
	// an empty url also covers a session that closed mid-call; the stored
	// preview serves those
	if err != nil || url == "" {
		return "", false
	}
	return url, true
}

// Shutdown flushes and closes every session. New sessions are refused
// afterwards.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = map[string]*Session{}
	h.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
