// Package selection tracks the single selected object and applies
// quarter-turn rotations to it or to the drag preview.
package selection

import (
	"errors"
	"fmt"

	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/scene"
)

var (
	// ErrDragActive is returned by Select while a drag is in progress.
	ErrDragActive = errors.New("selection: drag in progress")

	// ErrNotPlaced is returned by Select for a handle that is not in the
	// scene.
	ErrNotPlaced = errors.New("selection: object not placed")
)

// Highlighter toggles the visual highlight of a placed object.
type Highlighter interface {
	SetHighlight(h scene.Handle, on bool)
}

// Rotatable is anything with a quarter-turn yaw, such as a drag preview.
type Rotatable interface {
	Yaw() geom.Yaw
	SetYaw(geom.Yaw)
}

// State holds zero or one selected object and whether a drag is active.
// The two are exclusive: beginning a drag clears the selection.
type State struct {
	scene    *scene.Scene
	hl       Highlighter
	selected scene.Handle
	dragging bool
}

// New returns an empty selection over s. hl may be nil.
func New(s *scene.Scene, hl Highlighter) *State {
	return &State{scene: s, hl: hl}
}

// Selected returns the selected handle, if any.
func (st *State) Selected() (scene.Handle, bool) {
	return st.selected, st.selected != 0
}

// Dragging reports whether a drag is active.
func (st *State) Dragging() bool {
	return st.dragging
}

// Select makes h the selection, deselecting any previous object.
// Selecting the current selection again is a no-op.
func (st *State) Select(h scene.Handle) error {
	if st.dragging {
		return ErrDragActive
	}
	if !st.scene.Contains(h) {
		return fmt.Errorf("select %s: %w", h, ErrNotPlaced)
	}
	if h == st.selected {
		return nil
	}
	st.Deselect()
	st.selected = h
	st.highlight(h, true)
	return nil
}

// Deselect clears the selection. It is safe with nothing selected.
func (st *State) Deselect() {
	if st.selected == 0 {
		return
	}
	if st.scene.Contains(st.selected) {
		st.highlight(st.selected, false)
	}
	st.selected = 0
}

// Forget drops the selection if it is among removed, without touching the
// highlight of objects that no longer exist.
func (st *State) Forget(removed ...scene.Handle) {
	for _, h := range removed {
		if h == st.selected {
			st.selected = 0
			return
		}
	}
}

// RotateSelected turns the selected object a quarter turn and returns its
// new yaw. The second result is false when nothing is selected.
func (st *State) RotateSelected() (geom.Yaw, bool) {
	if st.selected == 0 {
		return 0, false
	}
	o := st.scene.Get(st.selected)
	if o == nil {
		st.selected = 0
		return 0, false
	}
	pose := o.Pose
	pose.Yaw = pose.Yaw.Next()
	if err := st.scene.SetPose(st.selected, pose); err != nil {
		return 0, false
	}
	return pose.Yaw, true
}

// RotatePreview turns p a quarter turn and returns its new yaw.
func (st *State) RotatePreview(p Rotatable) geom.Yaw {
	y := p.Yaw().Next()
	p.SetYaw(y)
	return y
}

// BeginDrag marks a drag as active and clears the selection.
func (st *State) BeginDrag() {
	st.Deselect()
	st.dragging = true
}

// EndDrag marks the drag as finished.
func (st *State) EndDrag() {
	st.dragging = false
}

// Reset clears the selection and drag flag without highlight callbacks.
func (st *State) Reset() {
	st.selected = 0
	st.dragging = false
}

func (st *State) highlight(h scene.Handle, on bool) {
	if st.hl != nil {
		st.hl.SetHighlight(h, on)
	}
}
