package workspace

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathsir75/mmap/internal/store"
)

func newTestStore(t *testing.T) (*Store, *store.Mem) {
	t.Helper()
	kv := store.NewMem()
	ws := NewStore(kv, nil)
	_, err := ws.Load(context.Background())
	require.NoError(t, err)
	return ws, kv
}

func TestLoadCreatesStarterWorkspace(t *testing.T) {
	ws, _ := newTestStore(t)

	st := ws.State()
	require.Len(t, st.Notebooks, 1)
	require.Len(t, st.Notebooks[0].Sections, 1)
	require.Len(t, st.Notebooks[0].Sections[0].Pages, 1)
	assert.Equal(t, st.Notebooks[0].Sections[0].Pages[0].ID, st.ActivePageID)
}

func TestLoadIsStableAcrossReopen(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMem()

	ws := NewStore(kv, nil)
	_, err := ws.Load(ctx)
	require.NoError(t, err)
	nb, err := ws.CreateNotebook(ctx, "Work")
	require.NoError(t, err)

	again := NewStore(kv, nil)
	st, err := again.Load(ctx)
	require.NoError(t, err)
	require.Len(t, st.Notebooks, 2)
	assert.Equal(t, nb.ID, st.Notebooks[1].ID)
	assert.Equal(t, "Work", st.Notebooks[1].Title)
}

func TestCreateTreeAndRename(t *testing.T) {
	ws, _ := newTestStore(t)
	ctx := context.Background()

	nb, err := ws.CreateNotebook(ctx, "Work")
	require.NoError(t, err)
	sec, err := ws.CreateSection(ctx, nb.ID, "Planning")
	require.NoError(t, err)
	p, err := ws.CreatePage(ctx, sec.ID, "Q3 goals", false)
	require.NoError(t, err)

	assert.Equal(t, p.ID, ws.State().ActivePageID)

	require.NoError(t, ws.Rename(ctx, p.ID, "Q4 goals"))
	_, got := ws.State().page(p.ID)
	require.NotNil(t, got)
	assert.Equal(t, "Q4 goals", got.Title)

	assert.ErrorIs(t, ws.Rename(ctx, "page_missing", "x"), ErrNotFound)
}

func TestCreateSectionInMissingNotebook(t *testing.T) {
	ws, _ := newTestStore(t)
	_, err := ws.CreateSection(context.Background(), "nb_missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePageDropsContentAndRepointsActive(t *testing.T) {
	ws, kv := newTestStore(t)
	ctx := context.Background()

	st := ws.State()
	sec := st.Notebooks[0].Sections[0]
	first := sec.Pages[0]

	second, err := ws.CreatePage(ctx, sec.ID, "Second", false)
	require.NoError(t, err)
	require.NoError(t, ws.SavePage(ctx, second.ID, []byte(`[{"id":"x"}]`), "data:image/png;base64,t"))

	require.NoError(t, ws.DeletePage(ctx, second.ID))

	_, err = kv.Get(ctx, pagePrefix+second.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = kv.Get(ctx, previewPrefix+second.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, first.ID, ws.State().ActivePageID)
}

func TestDeleteNotebookCascades(t *testing.T) {
	ws, kv := newTestStore(t)
	ctx := context.Background()

	nb, err := ws.CreateNotebook(ctx, "Work")
	require.NoError(t, err)
	sec, err := ws.CreateSection(ctx, nb.ID, "Planning")
	require.NoError(t, err)
	p, err := ws.CreatePage(ctx, sec.ID, "Doomed", false)
	require.NoError(t, err)
	require.NoError(t, ws.SavePage(ctx, p.ID, []byte(`[]`), ""))

	require.NoError(t, ws.DeleteNotebook(ctx, nb.ID))
	assert.Len(t, ws.State().Notebooks, 1)
	_, err = kv.Get(ctx, pagePrefix+p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveAndLoadPageContent(t *testing.T) {
	ws, _ := newTestStore(t)
	ctx := context.Background()

	id := ws.State().ActivePageID
	content := []byte(`[{"v":1,"id":"item_a","kind":"circle"}]`)
	require.NoError(t, ws.SavePage(ctx, id, content, "data:image/png;base64,tn"))

	got, err := ws.LoadPage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	preview, err := ws.Preview(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,tn", preview)
}

func TestLoadPageNeverSavedReturnsEmpty(t *testing.T) {
	ws, _ := newTestStore(t)
	got, err := ws.LoadPage(context.Background(), ws.State().ActivePageID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQuotaFallbackShedsPreviewsThenHoldsInMemory(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemWithQuota(3000)
	ws := NewStore(kv, nil)
	_, err := ws.Load(ctx)
	require.NoError(t, err)

	id := ws.State().ActivePageID

	// fill the store with previews, then a content write that only fits
	// once they are shed
	require.NoError(t, kv.Set(ctx, previewPrefix+"page_old1", make([]byte, 900)))
	require.NoError(t, kv.Set(ctx, previewPrefix+"page_old2", make([]byte, 900)))

	content := make([]byte, 1000)
	require.NoError(t, ws.SavePage(ctx, id, content, ""))

	keys, err := kv.Keys(ctx, previewPrefix)
	require.NoError(t, err)
	assert.Empty(t, keys)

	got, err := ws.LoadPage(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got, 1000)
	assert.Empty(t, ws.Unpersisted())
}

func TestQuotaExhaustedKeepsContentInMemory(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemWithQuota(3000)
	ws := NewStore(kv, nil)
	_, err := ws.Load(ctx)
	require.NoError(t, err)

	id := ws.State().ActivePageID
	content := make([]byte, 5000)
	err = ws.SavePage(ctx, id, content, "")
	require.ErrorIs(t, err, ErrUnpersisted)

	// reads still see the latest content
	got, err := ws.LoadPage(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got, 5000)
	assert.Equal(t, []string{id}, ws.Unpersisted())
}

func TestEnsurePageAttachesUnknownID(t *testing.T) {
	ws, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, ws.EnsurePage(ctx, "page_imported"))
	_, p := ws.State().page("page_imported")
	require.NotNil(t, p)

	// idempotent
	require.NoError(t, ws.EnsurePage(ctx, "page_imported"))
	assert.Len(t, ws.State().Pages(), 2)
}

func TestBackupRoundTrip(t *testing.T) {
	ws, _ := newTestStore(t)
	ctx := context.Background()

	id := ws.State().ActivePageID
	content := []byte(`[{"v":1,"id":"item_a","kind":"ink"}]`)
	require.NoError(t, ws.SavePage(ctx, id, content, "data:image/png;base64,tn"))

	raw, err := ws.Export(ctx)
	require.NoError(t, err)

	var b Backup
	require.NoError(t, json.Unmarshal(raw, &b))
	assert.Equal(t, BackupVersion, b.V)
	assert.False(t, b.ExportedAt.IsZero())
	assert.JSONEq(t, string(content), string(b.Pages[id]))

	// restore into a fresh workspace
	fresh := NewStore(store.NewMem(), nil)
	_, err = fresh.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, fresh.Import(ctx, raw))

	got, err := fresh.LoadPage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	preview, err := fresh.Preview(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,tn", preview)
	assert.Equal(t, id, fresh.State().ActivePageID)
}

func TestImportRejectsBadPayloads(t *testing.T) {
	ws, _ := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, ws.Import(ctx, []byte("not json")))
	assert.Error(t, ws.Import(ctx, []byte(`{"v":99,"workspace":{"v":1}}`)))
	assert.Error(t, ws.Import(ctx, []byte(`{"v":1}`)))
}
