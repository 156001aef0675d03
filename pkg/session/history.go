package session

import (
	"github.com/chazu/furnish/pkg/scene"
	"github.com/samber/lo"
)

// MaxHistory bounds the number of undoable actions kept.
const MaxHistory = 100

type actionKind int

const (
	actionPlace  actionKind = iota // undo removes, redo restores
	actionDelete                   // undo restores, redo removes
)

// action is one undoable step. snapshot holds the removed subtree while
// the objects are out of the scene.
type action struct {
	kind     actionKind
	root     scene.Handle
	snapshot []scene.Object
}

// handles returns every handle the action touches.
func (a *action) handles() []scene.Handle {
	if len(a.snapshot) == 0 {
		return []scene.Handle{a.root}
	}
	return lo.Map(a.snapshot, func(o scene.Object, _ int) scene.Handle { return o.Handle })
}

// History is a linear undo/redo stack.
type History struct {
	undo []*action
	redo []*action
}

func (h *History) record(a *action) {
	h.undo = append(h.undo, a)
	if len(h.undo) > MaxHistory {
		h.undo = h.undo[len(h.undo)-MaxHistory:]
	}
	h.redo = nil
}

// CanUndo reports whether Undo has something to do.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether Redo has something to do.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Len returns the number of undoable and redoable actions.
func (h *History) Len() (undo, redo int) { return len(h.undo), len(h.redo) }

func (h *History) clear() {
	h.undo = nil
	h.redo = nil
}

// forget drops every action that touches one of removed. Used when
// objects leave the scene outside of history, such as an asset failure.
func (h *History) forget(removed []scene.Handle) {
	keep := func(a *action, _ int) bool {
		return !lo.Some(a.handles(), removed)
	}
	h.undo = lo.Filter(h.undo, keep)
	h.redo = lo.Filter(h.redo, keep)
}
