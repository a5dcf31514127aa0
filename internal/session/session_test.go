package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathsir75/mmap/internal/scene"
)

type memStore struct {
	mu    sync.Mutex
	pages map[string][]byte
}

func (s *memStore) SavePage(_ context.Context, pageID string, content []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[pageID] = content
	return nil
}

func (s *memStore) LoadPage(_ context.Context, pageID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[pageID], nil
}

func newTestSession(t *testing.T) (*Session, *memStore) {
	t.Helper()
	store := &memStore{pages: map[string][]byte{}}
	s := newSession("page_test", Deps{Store: store})
	go s.run()
	t.Cleanup(func() {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	})

	var err error
	s.post(func() { err = s.ed.LoadPage(context.Background(), "page_test") })
	require.NoError(t, err)
	return s, store
}

func msg(t *testing.T, typ string, payload any) *Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &Message{Type: typ, Payload: raw}
}

func applyOn(s *Session, m *Message) error {
	var err error
	s.post(func() { err = s.apply(m) })
	return err
}

func TestApplyShapeAddAndState(t *testing.T) {
	s, _ := newTestSession(t)

	require.NoError(t, applyOn(s, msg(t, TypeShapeAdd, ShapeAddPayload{Kind: "Circle", X: 10, Y: 20})))

	var state SceneStatePayload
	s.post(func() {
		require.NoError(t, json.Unmarshal(s.stateMessage().Payload, &state))
	})
	require.Len(t, state.Items, 1)
	assert.Equal(t, scene.KindCircle, state.Items[0].Kind)
	assert.Len(t, state.Selection, 1)
	assert.Equal(t, 1, state.UndoDepth)
}

func TestApplyRejectsUnknownShapeKind(t *testing.T) {
	s, _ := newTestSession(t)
	err := applyOn(s, msg(t, TypeShapeAdd, ShapeAddPayload{Kind: "Blob"}))
	assert.Error(t, err)
}

func TestApplyStrokeViaPointerMessages(t *testing.T) {
	s, _ := newTestSession(t)

	require.NoError(t, applyOn(s, msg(t, TypeToolSet, ToolPayload{Tool: "pen"})))
	require.NoError(t, applyOn(s, msg(t, TypePointerDown, PointerPayload{X: 0, Y: 0})))
	for i := 1; i <= 20; i++ {
		require.NoError(t, applyOn(s, msg(t, TypePointerMove, PointerPayload{X: float64(i * 10)})))
	}
	require.NoError(t, applyOn(s, &Message{Type: TypePointerUp}))

	s.post(func() {
		assert.Len(t, s.ed.Scene().Items(scene.LayerInk), 1)
	})
}

func TestApplyDragUndoRedo(t *testing.T) {
	s, _ := newTestSession(t)

	require.NoError(t, applyOn(s, msg(t, TypeShapeAdd, ShapeAddPayload{Kind: "RectGroup", X: 5, Y: 5})))

	var id string
	s.post(func() { id = s.ed.Selection().Primary().ID })

	require.NoError(t, applyOn(s, msg(t, TypeDragEnd, DragEndPayload{ItemID: id, X: 400, Y: 300})))
	s.post(func() { assert.Equal(t, 400.0, s.ed.Scene().Get(id).X) })

	require.NoError(t, applyOn(s, &Message{Type: TypeUndo}))
	s.post(func() { assert.Equal(t, 5.0, s.ed.Scene().Get(id).X) })

	require.NoError(t, applyOn(s, &Message{Type: TypeRedo}))
	s.post(func() { assert.Equal(t, 400.0, s.ed.Scene().Get(id).X) })
}

func TestApplyDragEndUnknownItemFails(t *testing.T) {
	s, _ := newTestSession(t)
	err := applyOn(s, msg(t, TypeDragEnd, DragEndPayload{ItemID: "item_missing", X: 1, Y: 1}))
	assert.Error(t, err)
}

func TestApplyFlushPersists(t *testing.T) {
	s, store := newTestSession(t)

	require.NoError(t, applyOn(s, msg(t, TypePasteText, PastePayload{Text: "note", X: 2, Y: 3})))
	require.NoError(t, applyOn(s, &Message{Type: TypeFlush}))

	snaps, err := scene.UnmarshalSnapshots(store.pages["page_test"])
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "note", snaps[0].Text)
}

func TestApplyUnknownTypeFails(t *testing.T) {
	s, _ := newTestSession(t)
	assert.Error(t, applyOn(s, &Message{Type: "nope"}))
}

func TestHubEvictsSessionAfterLastDisconnect(t *testing.T) {
	store := &memStore{pages: map[string][]byte{}}
	h := NewHub(Deps{Store: store}, nil)

	s, err := h.get(context.Background(), "page_test")
	require.NoError(t, err)

	c := &Client{id: "c1", session: s, send: make(chan []byte, 8), log: s.log}
	require.True(t, s.addClient(c))

	require.NoError(t, applyOn(s, msg(t, TypeShapeAdd, ShapeAddPayload{Kind: "Circle", X: 10, Y: 20})))

	s.removeClient(c)

	h.mu.Lock()
	_, alive := h.sessions["page_test"]
	h.mu.Unlock()
	assert.False(t, alive)

	select {
	case <-s.done:
	default:
		t.Fatal("session loop still running after eviction")
	}

	store.mu.Lock()
	saved := store.pages["page_test"]
	store.mu.Unlock()
	assert.NotEmpty(t, saved)

	// the next lookup starts over with a fresh session
	again, err := h.get(context.Background(), "page_test")
	require.NoError(t, err)
	assert.NotSame(t, s, again)
	require.NoError(t, again.close(context.Background()))
}

func TestRetiredSessionRefusesClients(t *testing.T) {
	s, _ := newTestSession(t)

	c := &Client{id: "c1", session: s, send: make(chan []byte, 8), log: s.log}
	require.True(t, s.addClient(c))

	// a session with a client attached cannot retire
	assert.False(t, s.retire())

	s.removeClient(c)
	require.True(t, s.retire())
	assert.False(t, s.addClient(c))
}

func TestOriginPatternsStripScheme(t *testing.T) {
	h := NewHub(Deps{}, []string{"http://localhost:5173", "https://notes.example.com", ""})
	assert.Equal(t, []string{"localhost:5173", "notes.example.com"}, h.originPatterns())
}
