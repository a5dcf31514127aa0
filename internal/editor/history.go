package editor

import (
	"github.com/nathsir75/mmap/internal/scene"
)

// ActionType tags one history entry.
type ActionType string

const (
	ActionAdd       ActionType = "add"
	ActionDelete    ActionType = "delete"
	ActionTransform ActionType = "transform"
)

// Action is one undoable mutation, carried as full item snapshots rather
// than field diffs. Snapshots are versioned (scene.SnapshotVersion), so
// entries written before an item-kind addition still replay.
type Action struct {
	Type   ActionType
	ItemID string

	// Add/Delete: the item's full state at the time of the action.
	Snap scene.Snapshot

	// Transform: state on either side of the commit.
	Before scene.Snapshot
	After  scene.Snapshot
}

// History is the snapshot-based undo/redo log. It is unbounded; see
// DESIGN.md for the production-hardening note.
//
// Pushes are suppressed while a replay is in progress so that undoing a
// deletion does not record the re-insertion as a fresh action.
type History struct {
	undo     []Action
	redo     []Action
	applying bool
}

func NewHistory() *History {
	return &History{}
}

// PushAdd records the creation of an item.
func (h *History) PushAdd(snap scene.Snapshot) {
	h.push(Action{Type: ActionAdd, ItemID: snap.ID, Snap: snap})
}

// PushDelete records the destruction of an item.
func (h *History) PushDelete(snap scene.Snapshot) {
	h.push(Action{Type: ActionDelete, ItemID: snap.ID, Snap: snap})
}

// PushTransform records a committed move/resize with both sides of the
// change.
func (h *History) PushTransform(itemID string, before, after scene.Snapshot) {
	h.push(Action{Type: ActionTransform, ItemID: itemID, Before: before, After: after})
}

func (h *History) push(a Action) {
	if h.applying {
		return
	}
	h.undo = append(h.undo, a)
	// a new action branches the timeline; stale redo entries are invalid
	h.redo = nil
}

// PopUndo removes and returns the most recent action, moving it to the redo
// stack. The second result is false when there is nothing to undo.
func (h *History) PopUndo() (Action, bool) {
	if len(h.undo) == 0 {
		return Action{}, false
	}
	a := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, a)
	return a, true
}

// PopRedo removes and returns the most recently undone action, moving it
// back to the undo stack.
func (h *History) PopRedo() (Action, bool) {
	if len(h.redo) == 0 {
		return Action{}, false
	}
	a := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, a)
	return a, true
}

// BeginReplay suppresses pushes until EndReplay. Replay application code
// re-runs the same mutation paths as user input; without the guard every
// undo would pollute the log with its own inverse.
func (h *History) BeginReplay() { h.applying = true }
func (h *History) EndReplay()   { h.applying = false }

// Replaying reports whether a replay is in progress.
func (h *History) Replaying() bool { return h.applying }

// UndoLen and RedoLen expose stack depths for UI enablement.
func (h *History) UndoLen() int { return len(h.undo) }
func (h *History) RedoLen() int { return len(h.redo) }

// Reset drops both stacks. Called when a different page is loaded.
func (h *History) Reset() {
	h.undo = nil
	h.redo = nil
	h.applying = false
}
