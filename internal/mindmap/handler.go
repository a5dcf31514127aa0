package mindmap

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/nathsir75/mmap/internal/store"
)

// Manager hands out one Store per mindmap page, loading each lazily on
// first use.
type Manager struct {
	kv  store.KV
	log *slog.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

func NewManager(kv store.KV, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{kv: kv, log: log, stores: map[string]*Store{}}
}

func (m *Manager) store(ctx context.Context, pageID string) (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[pageID]; ok {
		return s, nil
	}
	s := NewStore(m.kv, m.log, pageID)
	if _, err := s.Load(ctx); err != nil {
		return nil, err
	}
	m.stores[pageID] = s
	return s, nil
}

// Forget drops the cached store for a deleted page.
func (m *Manager) Forget(pageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, pageID)
}

// Handler serves the mindmap endpoints.
type Handler struct {
	mgr *Manager

	// dropPage, when set, disposes the canvas page a deleted node linked.
	dropPage func(ctx context.Context, pageID string)
}

func NewHandler(mgr *Manager, dropPage func(ctx context.Context, pageID string)) *Handler {
	return &Handler{mgr: mgr, dropPage: dropPage}
}

// Register mounts the mindmap routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/mindmaps/{pageId}", h.GetMap).Methods("GET")
	r.HandleFunc("/mindmaps/{pageId}/nodes", h.CreateNode).Methods("POST")
	r.HandleFunc("/mindmaps/{pageId}/nodes/{nodeId}", h.UpdateNode).Methods("PATCH")
	r.HandleFunc("/mindmaps/{pageId}/nodes/{nodeId}", h.DeleteNode).Methods("DELETE")
}

type mapResponse struct {
	Map    *Map   `json:"map"`
	Layout Layout `json:"layout"`
}

func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.store(r.Context(), mux.Vars(r)["pageId"])
	if err != nil {
		handleMapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapResponse{Map: s.Map(), Layout: s.Layout()})
}

type createNodeRequest struct {
	ParentID string `json:"parentId"`
}

func (h *Handler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req createNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "parentId is required"})
		return
	}
	s, err := h.mgr.store(r.Context(), mux.Vars(r)["pageId"])
	if err != nil {
		handleMapError(w, err)
		return
	}
	if _, err := s.CreateChild(r.Context(), req.ParentID); err != nil {
		handleMapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapResponse{Map: s.Map(), Layout: s.Layout()})
}

// updateNodeRequest carries one optional mutation per field group. A single
// PATCH may combine them; each applies independently.
type updateNodeRequest struct {
	Title    *string  `json:"title,omitempty"`
	Snapshot *string  `json:"snapshot,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Selected bool     `json:"selected,omitempty"`
}

func (h *Handler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var req updateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	vars := mux.Vars(r)
	s, err := h.mgr.store(r.Context(), vars["pageId"])
	if err != nil {
		handleMapError(w, err)
		return
	}
	nodeID := vars["nodeId"]

	if req.X != nil && req.Y != nil {
		if err := s.MoveNode(r.Context(), nodeID, *req.X, *req.Y); err != nil {
			handleMapError(w, err)
			return
		}
	}
	if req.Width != nil && req.Height != nil {
		if err := s.ResizeNode(r.Context(), nodeID, *req.Width, *req.Height); err != nil {
			handleMapError(w, err)
			return
		}
	}
	if req.Title != nil {
		if err := s.SetTitle(r.Context(), nodeID, *req.Title); err != nil {
			handleMapError(w, err)
			return
		}
	}
	if req.Snapshot != nil {
		if err := s.SetSnapshot(r.Context(), nodeID, *req.Snapshot); err != nil {
			handleMapError(w, err)
			return
		}
	}
	if req.Selected {
		if err := s.Select(r.Context(), nodeID); err != nil {
			handleMapError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, mapResponse{Map: s.Map(), Layout: s.Layout()})
}

func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s, err := h.mgr.store(r.Context(), vars["pageId"])
	if err != nil {
		handleMapError(w, err)
		return
	}
	pages, err := s.DeleteNode(r.Context(), vars["nodeId"])
	if err != nil {
		handleMapError(w, err)
		return
	}
	if h.dropPage != nil {
		for _, pageID := range pages {
			h.dropPage(r.Context(), pageID)
		}
	}
	writeJSON(w, http.StatusOK, mapResponse{Map: s.Map(), Layout: s.Layout()})
}

func handleMapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNodeNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "node not found"})
	case errors.Is(err, ErrRootDelete):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "root node cannot be deleted"})
	default:
		slog.Error("mindmap error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
