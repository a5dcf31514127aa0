// Package bridge carries one-shot handoffs between the canvas editor and
// host surfaces that open on top of it (the mindmap node editor, the image
// crop dialog). Values are consumed on read so a stale handoff can never
// leak into the next interaction.
package bridge

import (
	"sync"
	"time"
)

// EditingContext identifies which mindmap node a child editor was opened
// for.
type EditingContext struct {
	PageID   string
	NodeID   string
	OpenedAt time.Time
}

// CropResult is the outcome of a crop dialog: the replacement image for one
// item.
type CropResult struct {
	ItemID string
	Src    string
	Width  float64
	Height float64
}

// Mailbox holds at most one pending value per slot. Safe for concurrent
// use.
type Mailbox struct {
	mu      sync.Mutex
	editing *EditingContext
	crop    *CropResult
}

func New() *Mailbox {
	return &Mailbox{}
}

// SetEditing records which node is being edited, replacing any previous
// handoff.
func (b *Mailbox) SetEditing(ctx EditingContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.editing = &ctx
}

// TakeEditing returns and clears the pending editing context.
func (b *Mailbox) TakeEditing() (EditingContext, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.editing == nil {
		return EditingContext{}, false
	}
	out := *b.editing
	b.editing = nil
	return out, true
}

// PeekEditing returns the pending editing context without consuming it.
func (b *Mailbox) PeekEditing() (EditingContext, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.editing == nil {
		return EditingContext{}, false
	}
	return *b.editing, true
}

// SetCrop stores a crop outcome, replacing any unconsumed one.
func (b *Mailbox) SetCrop(res CropResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.crop = &res
}

// TakeCrop returns and clears the pending crop result.
func (b *Mailbox) TakeCrop() (CropResult, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.crop == nil {
		return CropResult{}, false
	}
	out := *b.crop
	b.crop = nil
	return out, true
}

// Clear drops every pending handoff.
func (b *Mailbox) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.editing = nil
	b.crop = nil
}
