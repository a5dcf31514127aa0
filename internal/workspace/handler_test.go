package workspace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathsir75/mmap/internal/store"
)

func newTestHandler(t *testing.T) (*Store, *mux.Router) {
	t.Helper()
	ws := NewStore(store.NewMem(), nil)
	_, err := ws.Load(context.Background())
	require.NoError(t, err)

	h := NewHandler(ws, nil)
	r := mux.NewRouter()
	h.Register(r)
	return ws, r
}

func do(r *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestGetStateReturnsStarterTree(t *testing.T) {
	_, r := newTestHandler(t)

	rec := do(r, "GET", "/workspace", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "My notebook")
	assert.Contains(t, rec.Body.String(), "activePageId")
}

func TestCreateAndRenameNotebook(t *testing.T) {
	ws, r := newTestHandler(t)

	rec := do(r, "POST", "/notebooks", `{"title":"Work"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var nb *Notebook
	for _, x := range ws.State().Notebooks {
		if x.Title == "Work" {
			nb = x
		}
	}
	require.NotNil(t, nb)

	rec = do(r, "PATCH", "/items/"+nb.ID, `{"title":"Projects"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCreateRejectsEmptyTitle(t *testing.T) {
	_, r := newTestHandler(t)

	rec := do(r, "POST", "/notebooks", `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenameMissingItemIs404(t *testing.T) {
	_, r := newTestHandler(t)

	rec := do(r, "PATCH", "/items/nb_missing", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContentRoundTripOverHTTP(t *testing.T) {
	ws, r := newTestHandler(t)
	pageID := ws.State().ActivePageID

	rec := do(r, "PUT", "/pages/"+pageID+"/content", `[{"v":1,"id":"item_1","kind":"Line"}]`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(r, "GET", "/pages/"+pageID+"/content", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"v":1,"id":"item_1","kind":"Line"}]`, rec.Body.String())
}

func TestContentRejectsNonJSON(t *testing.T) {
	ws, r := newTestHandler(t)
	pageID := ws.State().ActivePageID

	rec := do(r, "PUT", "/pages/"+pageID+"/content", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmptyPageServesEmptyArray(t *testing.T) {
	ws, r := newTestHandler(t)

	rec := do(r, "GET", "/pages/"+ws.State().ActivePageID+"/content", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestLivePreviewWinsOverStored(t *testing.T) {
	ws := NewStore(store.NewMem(), nil)
	_, err := ws.Load(context.Background())
	require.NoError(t, err)
	pageID := ws.State().ActivePageID
	require.NoError(t, ws.SavePage(context.Background(), pageID, []byte("[]"), "data:stored"))

	h := NewHandler(ws, func(id string) (string, bool) {
		return "data:live", id == pageID
	})
	r := mux.NewRouter()
	h.Register(r)

	rec := do(r, "GET", "/pages/"+pageID+"/preview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "data:live")
}

func TestBackupRoundTripOverHTTP(t *testing.T) {
	ws, r := newTestHandler(t)
	pageID := ws.State().ActivePageID
	require.NoError(t, ws.SavePage(context.Background(), pageID, []byte(`[{"v":1}]`), ""))

	rec := do(r, "GET", "/backup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	// import into a fresh workspace
	ws2 := NewStore(store.NewMem(), nil)
	_, err := ws2.Load(context.Background())
	require.NoError(t, err)
	h2 := NewHandler(ws2, nil)
	r2 := mux.NewRouter()
	h2.Register(r2)

	rec2 := do(r2, "POST", "/backup", rec.Body.String())
	require.Equal(t, http.StatusOK, rec2.Code)

	restored, err := ws2.LoadPage(context.Background(), pageID)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"v":1}]`, string(restored))
}

func TestImportGarbageIs400(t *testing.T) {
	_, r := newTestHandler(t)

	rec := do(r, "POST", "/backup", `{"v":99}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePageOverHTTP(t *testing.T) {
	ws, r := newTestHandler(t)
	pageID := ws.State().ActivePageID

	rec := do(r, "DELETE", "/pages/"+pageID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(r, "DELETE", "/pages/"+pageID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
