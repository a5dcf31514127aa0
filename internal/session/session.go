// Package session hosts editors behind websockets: one session per open
// page, with every editor mutation applied on the session's own goroutine.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nathsir75/mmap/internal/editor"
	"github.com/nathsir75/mmap/internal/geom"
	"github.com/nathsir75/mmap/internal/scene"
)

// Session owns one page's editor. Commands from every connected client are
// funneled through a single channel, so the editor is only ever touched by
// the session goroutine; autosave fires are posted onto the same channel.
type Session struct {
	pageID string
	ed     *editor.Editor
	log    *slog.Logger

	commands  chan func()
	done      chan struct{}
	closeOnce sync.Once

	// onIdle, when set, runs after the last client disconnects and the page
	// has flushed, letting the hub tear the session down.
	onIdle func()

	mu      sync.Mutex
	clients map[*Client]struct{}
	retired bool
}

func newSession(pageID string, deps Deps) *Session {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		pageID:   pageID,
		log:      log.With("page", pageID),
		commands: make(chan func(), 64),
		done:     make(chan struct{}),
		clients:  map[*Client]struct{}{},
	}
	s.ed = editor.New(editor.Options{
		Store:    deps.Store,
		Loader:   deps.Loader,
		Preview:  deps.Preview,
		Logger:   s.log,
		Schedule: s.schedule,
	})
	return s
}

// schedule defers fire onto the session goroutine.
func (s *Session) schedule(d time.Duration, fire func()) func() {
	timer := time.AfterFunc(d, func() {
		select {
		case s.commands <- fire:
		case <-s.done:
		}
	})
	return func() { timer.Stop() }
}

// run processes commands until the session closes.
func (s *Session) run() {
	for {
		select {
		case cmd := <-s.commands:
			cmd()
		case <-s.done:
			return
		}
	}
}

// post runs fn on the session goroutine and waits for it.
func (s *Session) post(fn func()) {
	ack := make(chan struct{})
	select {
	case s.commands <- func() { fn(); close(ack) }:
		<-ack
	case <-s.done:
	}
}

// close flushes the page and stops the loop. Safe to call more than once.
func (s *Session) close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.post(func() { err = s.ed.Close(ctx) })
		close(s.done)
	})
	return err
}

// retire marks the session unattachable. It fails when a client joined in
// the meantime.
func (s *Session) retire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) > 0 {
		return false
	}
	s.retired = true
	return true
}

// addClient attaches c and sends it the current state. It fails when the
// session was already retired; the caller should start a fresh one.
func (s *Session) addClient(c *Client) bool {
	s.mu.Lock()
	if s.retired {
		s.mu.Unlock()
		return false
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	c.Send(&Message{Type: TypeWelcome, Payload: mustJSON(WelcomePayload{PageID: s.pageID})})
	s.post(func() { c.Send(s.stateMessage()) })
	return true
}

func (s *Session) removeClient(c *Client) {
	// c.send is left open: a broadcast may still hold a reference to the
	// client. The write pump exits on its own once the conn closes.
	s.mu.Lock()
	delete(s.clients, c)
	empty := len(s.clients) == 0
	s.mu.Unlock()

	if !empty {
		return
	}
	s.post(func() {
		if err := s.ed.Flush(context.Background()); err != nil {
			s.log.Error("flush on last disconnect failed", "error", err)
		}
	})
	if s.onIdle != nil {
		s.onIdle()
	}
}

func (s *Session) broadcast(msg *Message) {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

// stateMessage builds the full scene state. Must run on the session
// goroutine.
func (s *Session) stateMessage() *Message {
	sel := s.ed.Selection().Items()
	ids := make([]string, 0, len(sel))
	for _, it := range sel {
		ids = append(ids, it.ID)
	}
	return &Message{Type: TypeSceneState, Payload: mustJSON(SceneStatePayload{
		PageID:    s.pageID,
		Items:     s.ed.Scene().Export(),
		Selection: ids,
		Editing:   s.ed.Editing(),
		UndoDepth: s.ed.History().UndoLen(),
		RedoDepth: s.ed.History().RedoLen(),
	})}
}

// handle applies one client message. Runs on the session goroutine via
// post; broadcasts the resulting state on success.
func (s *Session) handle(c *Client, msg *Message) {
	s.post(func() {
		if err := s.apply(msg); err != nil {
			s.log.Warn("command failed", "type", msg.Type, "error", err)
			c.Send(&Message{Type: TypeError, Payload: mustJSON(ErrorPayload{Error: err.Error()})})
			return
		}
		s.broadcast(s.stateMessage())
	})
}

func (s *Session) apply(msg *Message) error {
	switch msg.Type {
	case TypePointerDown, TypePointerMove:
		var p PointerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode pointer: %w", err)
		}
		if msg.Type == TypePointerDown {
			s.ed.PointerDown(geom.Point{X: p.X, Y: p.Y})
		} else {
			s.ed.PointerMove(geom.Point{X: p.X, Y: p.Y})
		}
		return nil

	case TypePointerUp:
		s.ed.PointerUp()
		return nil

	case TypeToolSet:
		var p ToolPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode tool: %w", err)
		}
		if p.Tool != "" {
			s.ed.SetTool(editor.Tool(p.Tool))
		}
		if p.Color != "" {
			s.ed.SetColor(p.Color)
		}
		if p.Thickness > 0 {
			s.ed.SetThickness(p.Thickness)
		}
		if p.FontFamily != "" {
			s.ed.SetFontFamily(p.FontFamily)
		}
		if p.FontSize > 0 {
			s.ed.SetFontSize(p.FontSize)
		}
		return nil

	case TypeDragEnd:
		var p DragEndPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode drag end: %w", err)
		}
		return s.ed.DragEnd(p.ItemID, p.X, p.Y)

	case TypeResizeEnd:
		var p ResizeEndPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode resize end: %w", err)
		}
		return s.ed.ResizeEnd(p.ItemID, p.ScaleX, p.ScaleY, p.X, p.Y)

	case TypeCropApply:
		var p CropPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode crop: %w", err)
		}
		return s.ed.ApplyCrop(p.ItemID, p.Src, p.Width, p.Height)

	case TypeTextStart:
		var p TextStartPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode text start: %w", err)
		}
		return s.ed.StartTextEdit(p.ItemID)

	case TypeTextCommit:
		var p TextCommitPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode text commit: %w", err)
		}
		return s.ed.CommitTextEdit(p.Text)

	case TypeTextCancel:
		s.ed.CancelTextEdit()
		return nil

	case TypePasteImage:
		var p PastePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode paste: %w", err)
		}
		s.ed.PasteImage(p.Src, geom.Point{X: p.X, Y: p.Y})
		return nil

	case TypePasteText:
		var p PastePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode paste: %w", err)
		}
		s.ed.PasteText(p.Text, geom.Point{X: p.X, Y: p.Y})
		return nil

	case TypeShapeAdd:
		var p ShapeAddPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode shape add: %w", err)
		}
		kind := scene.Kind(p.Kind)
		if !kind.Valid() {
			return fmt.Errorf("unknown shape kind %q", p.Kind)
		}
		s.ed.AddShapeNode(kind, geom.Point{X: p.X, Y: p.Y})
		return nil

	case TypeDelete:
		s.ed.DeleteSelection()
		return nil
	case TypeGroup:
		s.ed.GroupSelection()
		return nil
	case TypeUngroup:
		s.ed.UngroupSelection()
		return nil

	case TypeUndo:
		s.ed.Undo()
		return nil
	case TypeRedo:
		s.ed.Redo()
		return nil

	case TypeOrderFront:
		s.ed.BringToFront()
		return nil
	case TypeOrderBack:
		s.ed.SendToBack()
		return nil
	case TypeOrderForward:
		s.ed.BringForward()
		return nil
	case TypeOrderBackward:
		s.ed.SendBackward()
		return nil

	case TypeFlush:
		return s.ed.Flush(context.Background())

	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}
