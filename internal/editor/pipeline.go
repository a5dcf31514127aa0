package editor

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/nathsir75/mmap/internal/scene"
)

// AutosaveDelay is how long the editor waits after the last mutation before
// persisting. Every new mutation restarts the countdown.
const AutosaveDelay = 800 * time.Millisecond

// ContentStore persists serialized page content. The editor only ever talks
// to pages it has open; workspace structure lives elsewhere.
type ContentStore interface {
	SavePage(ctx context.Context, pageID string, content []byte, preview string) error
	LoadPage(ctx context.Context, pageID string) ([]byte, error)
}

// Scheduler defers fire by d on the goroutine that owns the editor. The
// returned cancel stops a pending fire. Hosts back this with their event
// loop; tests fire by hand.
type Scheduler func(d time.Duration, fire func()) (cancel func())

// PreviewFunc renders a thumbnail of the current scene as a data URL. A nil
// PreviewFunc disables previews.
type PreviewFunc func(sc *scene.Scene) (string, error)

// markDirty notes a content mutation and restarts the autosave countdown.
// Mutations during history replay or page switching are not autosaved; the
// caller flushes explicitly at the right moment instead.
func (e *Editor) markDirty(reason string) {
	if e.ignoreAutosave || e.history.Replaying() {
		return
	}
	e.dirty = true
	if e.cancelSave != nil {
		e.cancelSave()
	}
	e.cancelSave = e.schedule(AutosaveDelay, func() {
		if err := e.Flush(context.Background()); err != nil {
			e.log.Error("autosave failed", "page", e.pageID, "reason", reason, "error", err)
		}
	})
}

// Flush persists the current page immediately if it has unsaved changes.
// Identical content (by hash) is not rewritten, and a scene that became
// empty never overwrites a page that had content: that pattern is almost
// always a load race, not an intentional wipe.
func (e *Editor) Flush(ctx context.Context) error {
	if !e.dirty || e.pageID == "" {
		return nil
	}

	snaps := e.sc.Export()
	raw, err := scene.MarshalSnapshots(snaps)
	if err != nil {
		return fmt.Errorf("serialize page %s: %w", e.pageID, err)
	}

	if len(snaps) == 0 && e.hadContent {
		e.log.Warn("skipping autosave of empty scene over existing content", "page", e.pageID)
		e.dirty = false
		return nil
	}

	sum := xxhash.Sum64(raw)
	if sum == e.lastSaved {
		e.dirty = false
		return nil
	}

	preview := ""
	if e.preview != nil {
		preview, err = e.preview(e.sc)
		if err != nil {
			e.log.Warn("preview render failed", "page", e.pageID, "error", err)
			preview = ""
		}
	}

	if err := e.store.SavePage(ctx, e.pageID, raw, preview); err != nil {
		return fmt.Errorf("persist page %s: %w", e.pageID, err)
	}

	e.lastSaved = sum
	e.hadContent = len(snaps) > 0
	e.dirty = false
	return nil
}

// LoadPage flushes the page being left, then replaces the scene with the
// stored content of pageID. Autosave stays suspended for the whole swap so
// the intermediate empty scene can never be persisted.
func (e *Editor) LoadPage(ctx context.Context, pageID string) error {
	if err := e.Flush(ctx); err != nil {
		return err
	}

	e.ignoreAutosave = true
	defer func() { e.ignoreAutosave = false }()

	raw, err := e.store.LoadPage(ctx, pageID)
	if err != nil {
		return fmt.Errorf("load page %s: %w", pageID, err)
	}

	var snaps []scene.Snapshot
	if len(raw) > 0 {
		snaps, err = scene.UnmarshalSnapshots(raw)
		if err != nil {
			return fmt.Errorf("decode page %s: %w", pageID, err)
		}
	}

	e.selection.Clear()
	e.history.Reset()
	restored := e.sc.Restore(snaps)
	e.ReviveImages(restored)

	e.pageID = pageID
	e.dirty = false
	e.hadContent = len(snaps) > 0
	e.lastSaved = xxhash.Sum64(raw)
	return nil
}

// Close flushes outstanding changes and stops the autosave timer. The
// editor must not be used afterwards.
func (e *Editor) Close(ctx context.Context) error {
	if e.cancelSave != nil {
		e.cancelSave()
		e.cancelSave = nil
	}
	err := e.Flush(ctx)
	e.ignoreAutosave = true
	return err
}
