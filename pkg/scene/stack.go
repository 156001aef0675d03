package scene

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

var (
	// ErrUnknownParent is returned by Attach when the parent is not in the
	// scene. The child is left resting on nothing.
	ErrUnknownParent = errors.New("scene: unknown parent")

	// ErrUnknownObject is returned when an operation names a handle that
	// is not in the scene.
	ErrUnknownObject = errors.New("scene: unknown object")

	// ErrCycle is returned by Attach when parent rests, directly or
	// transitively, on child.
	ErrCycle = errors.New("scene: attach would create a cycle")
)

// Attach records that child rests on parent. A child resting on a
// different parent is detached from it first. A zero parent detaches.
func (s *Scene) Attach(child, parent Handle) error {
	c, ok := s.objects[child]
	if !ok {
		return fmt.Errorf("attach %s: %w", child, ErrUnknownObject)
	}
	if parent == 0 {
		s.Detach(child)
		return nil
	}
	p, ok := s.objects[parent]
	if !ok {
		s.Detach(child)
		return fmt.Errorf("attach %s to %s: %w", child, parent, ErrUnknownParent)
	}
	if c.RestingOn == parent {
		return nil
	}
	if parent == child || s.restsOn(parent, child) {
		return fmt.Errorf("attach %s to %s: %w", child, parent, ErrCycle)
	}
	s.Detach(child)
	c.RestingOn = parent
	p.Children = append(p.Children, child)
	return nil
}

// Detach clears child's parent and removes child from that parent's
// children. Detaching a root or an unknown handle does nothing.
func (s *Scene) Detach(child Handle) {
	c, ok := s.objects[child]
	if !ok || c.RestingOn == 0 {
		return
	}
	if p, ok := s.objects[c.RestingOn]; ok {
		p.Children = lo.Without(p.Children, child)
	}
	c.RestingOn = 0
}

// restsOn reports whether a rests on b through any chain of parents.
func (s *Scene) restsOn(a, b Handle) bool {
	seen := make(map[Handle]bool)
	for cur := s.objects[a]; cur != nil && cur.RestingOn != 0; cur = s.objects[cur.RestingOn] {
		if cur.RestingOn == b {
			return true
		}
		if seen[cur.Handle] {
			return false
		}
		seen[cur.Handle] = true
	}
	return false
}

// Descendants returns h followed by everything resting on it,
// transitively, in pre-order. Unknown handles yield nil.
func (s *Scene) Descendants(h Handle) []Handle {
	if _, ok := s.objects[h]; !ok {
		return nil
	}
	var out []Handle
	seen := make(map[Handle]bool)
	var walk func(Handle)
	walk = func(id Handle) {
		if seen[id] {
			return
		}
		seen[id] = true
		o, ok := s.objects[id]
		if !ok {
			return
		}
		out = append(out, id)
		for _, c := range o.Children {
			walk(c)
		}
	}
	walk(h)
	return out
}

// Subtree returns copies of h and its descendants in pre-order, with
// their stacking pointers as they are now. Used to restore a deleted
// stack later.
func (s *Scene) Subtree(h Handle) []Object {
	handles := s.Descendants(h)
	out := make([]Object, 0, len(handles))
	for _, id := range handles {
		o := *s.objects[id]
		o.Children = append([]Handle(nil), o.Children...)
		out = append(out, o)
	}
	return out
}

// CascadeDelete removes h and everything resting on it. The removed
// handles are returned in pre-order; h is detached from its own parent and
// every removed object has both stacking pointers cleared.
func (s *Scene) CascadeDelete(h Handle) []Handle {
	removed := s.Descendants(h)
	if len(removed) == 0 {
		return nil
	}
	s.Detach(h)
	for _, id := range removed {
		o := s.objects[id]
		o.RestingOn = 0
		o.Children = nil
		s.remove(id)
	}
	return removed
}
