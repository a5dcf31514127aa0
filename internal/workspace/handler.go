package workspace

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

const maxBackupSize = 256 << 20 // imported backups carry inline images

// Handler serves the workspace tree and page content endpoints.
type Handler struct {
	store *Store

	// livePreview, when set, renders a fresh thumbnail for pages that are
	// open in a session instead of serving the stored one.
	livePreview func(pageID string) (string, bool)
}

func NewHandler(store *Store, livePreview func(pageID string) (string, bool)) *Handler {
	return &Handler{store: store, livePreview: livePreview}
}

// Register mounts the workspace routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/workspace", h.GetState).Methods("GET")
	r.HandleFunc("/workspace/active", h.SetActive).Methods("PUT")

	r.HandleFunc("/notebooks", h.CreateNotebook).Methods("POST")
	r.HandleFunc("/notebooks/{notebookId}", h.DeleteNotebook).Methods("DELETE")
	r.HandleFunc("/notebooks/{notebookId}/sections", h.CreateSection).Methods("POST")
	r.HandleFunc("/sections/{sectionId}", h.DeleteSection).Methods("DELETE")
	r.HandleFunc("/sections/{sectionId}/pages", h.CreatePage).Methods("POST")
	r.HandleFunc("/pages/{pageId}", h.DeletePage).Methods("DELETE")
	r.HandleFunc("/items/{id}", h.Rename).Methods("PATCH")

	r.HandleFunc("/pages/{pageId}/content", h.GetContent).Methods("GET")
	r.HandleFunc("/pages/{pageId}/content", h.PutContent).Methods("PUT")
	r.HandleFunc("/pages/{pageId}/preview", h.GetPreview).Methods("GET")

	r.HandleFunc("/backup", h.ExportBackup).Methods("GET")
	r.HandleFunc("/backup", h.ImportBackup).Methods("POST")
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.State())
}

type activeRequest struct {
	PageID string `json:"pageId"`
}

func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.store.SetActivePage(r.Context(), req.PageID); err != nil {
		handleStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createRequest struct {
	Title   string `json:"title"`
	Mindmap bool   `json:"mindmap,omitempty"`
}

func (h *Handler) CreateNotebook(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	nb, err := h.store.CreateNotebook(r.Context(), req.Title)
	if err != nil {
		handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, nb)
}

func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	sec, err := h.store.CreateSection(r.Context(), mux.Vars(r)["notebookId"], req.Title)
	if err != nil {
		handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sec)
}

func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	p, err := h.store.CreatePage(r.Context(), mux.Vars(r)["sectionId"], req.Title, req.Mindmap)
	if err != nil {
		handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type renameRequest struct {
	Title string `json:"title"`
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if err := h.store.Rename(r.Context(), mux.Vars(r)["id"], req.Title); err != nil {
		handleStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteNotebook(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteNotebook(r.Context(), mux.Vars(r)["notebookId"]); err != nil {
		handleStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSection(r.Context(), mux.Vars(r)["sectionId"]); err != nil {
		handleStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeletePage(r.Context(), mux.Vars(r)["pageId"]); err != nil {
		handleStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	content, err := h.store.LoadPage(r.Context(), mux.Vars(r)["pageId"])
	if err != nil {
		handleStoreError(w, err)
		return
	}
	if len(content) == 0 {
		content = []byte("[]")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

func (h *Handler) PutContent(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBackupSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body too large"})
		return
	}
	if !json.Valid(content) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content must be JSON"})
		return
	}
	if err := h.store.SavePage(r.Context(), mux.Vars(r)["pageId"], content, ""); err != nil {
		handleStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	pageID := mux.Vars(r)["pageId"]

	if h.livePreview != nil {
		if url, ok := h.livePreview(pageID); ok {
			writeJSON(w, http.StatusOK, map[string]string{"preview": url})
			return
		}
	}

	url, err := h.store.Preview(r.Context(), pageID)
	if err != nil {
		handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"preview": url})
}

func (h *Handler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	raw, err := h.store.Export(r.Context())
	if err != nil {
		handleStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="notes-backup.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func (h *Handler) ImportBackup(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBackupSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body too large"})
		return
	}
	if err := h.store.Import(r.Context(), raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.store.State())
}

func handleStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrUnpersisted):
		writeJSON(w, http.StatusInsufficientStorage, map[string]string{"error": "store is full, content held in memory"})
	default:
		slog.Error("workspace error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
