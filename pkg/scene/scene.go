// Package scene holds the placed objects of a floor plan and the stacking
// relation between them. Each object rests on at most one other object;
// the relation is kept as a forest with parent and child pointers that are
// always mutual inverses.
package scene

import (
	"fmt"
	"sort"

	"github.com/EngoEngine/ecs"
	"github.com/chazu/furnish/pkg/catalog"
	"github.com/chazu/furnish/pkg/geom"
)

// Handle identifies a placed object. Zero means "none".
type Handle uint64

// NewHandle allocates a process-unique handle. Handles increase
// monotonically and are never reused.
func NewHandle() Handle {
	return Handle(ecs.NewBasic().ID())
}

func (h Handle) String() string {
	return fmt.Sprintf("#%d", uint64(h))
}

// Pose is the mutable transform of a placed object.
type Pose struct {
	Position geom.Vec `json:"position"`
	Yaw      geom.Yaw `json:"yaw"`
}

// Object is a committed item in the scene.
type Object struct {
	Handle    Handle       `json:"handle"`
	Kind      catalog.Kind `json:"kind"`
	Prototype string       `json:"prototype"`
	Pose      Pose         `json:"pose"`
	Local     geom.Box     `json:"local"` // extent in the object's frame at yaw 0

	RestingOn    Handle   `json:"resting_on,omitempty"`
	Children     []Handle `json:"children,omitempty"`
	Materialized bool     `json:"materialized"`
}

// Bounds returns the object's world-space box in its current pose.
func (o *Object) Bounds() geom.Box {
	return geom.Place(o.Local, o.Pose.Position, o.Pose.Yaw)
}

// Scene is the set of placed objects. It is not safe for concurrent use.
type Scene struct {
	objects map[Handle]*Object
	index   *Index
}

// New creates an empty scene.
func New() *Scene {
	return &Scene{
		objects: make(map[Handle]*Object),
		index:   NewIndex(),
	}
}

// Add inserts o into the scene. The handle must be non-zero and unused.
// Stacking pointers on o are cleared; use Attach to relate objects.
func (s *Scene) Add(o *Object) error {
	if o.Handle == 0 {
		return fmt.Errorf("scene: add %q: zero handle", o.Prototype)
	}
	if _, exists := s.objects[o.Handle]; exists {
		return fmt.Errorf("scene: add %q: handle %s already in use", o.Prototype, o.Handle)
	}
	o.Pose.Yaw = o.Pose.Yaw.Normalize()
	o.RestingOn = 0
	o.Children = nil
	s.objects[o.Handle] = o
	s.index.Insert(o.Handle, o.Bounds())
	return nil
}

// Get returns the object with the given handle, or nil.
func (s *Scene) Get(h Handle) *Object {
	return s.objects[h]
}

// Contains reports whether h is in the scene.
func (s *Scene) Contains(h Handle) bool {
	_, ok := s.objects[h]
	return ok
}

// Len returns the number of placed objects.
func (s *Scene) Len() int {
	return len(s.objects)
}

// Handles returns every placed handle in allocation order.
func (s *Scene) Handles() []Handle {
	out := make([]Handle, 0, len(s.objects))
	for h := range s.objects {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Roots returns the handles of objects that rest on nothing, in
// allocation order.
func (s *Scene) Roots() []Handle {
	var roots []Handle
	for _, h := range s.Handles() {
		if s.objects[h].RestingOn == 0 {
			roots = append(roots, h)
		}
	}
	return roots
}

// BoundingBox returns the world box of h in its current pose. The second
// result is false if h is not in the scene.
func (s *Scene) BoundingBox(h Handle) (geom.Box, bool) {
	o, ok := s.objects[h]
	if !ok {
		return geom.Box{}, false
	}
	return o.Bounds(), true
}

// SetPose moves h. Yaw is normalised onto [0, 360).
func (s *Scene) SetPose(h Handle, p Pose) error {
	o, ok := s.objects[h]
	if !ok {
		return fmt.Errorf("scene: set pose: unknown handle %s", h)
	}
	p.Yaw = p.Yaw.Normalize()
	o.Pose = p
	s.index.Update(h, o.Bounds())
	return nil
}

// SetMaterialized records whether h has its visual representation.
func (s *Scene) SetMaterialized(h Handle, v bool) {
	if o, ok := s.objects[h]; ok {
		o.Materialized = v
	}
}

// Near returns the handles whose boxes intersect box, as a broad phase for
// exact tests. Touching boxes are included.
func (s *Scene) Near(box geom.Box) []Handle {
	return s.index.Search(box)
}

// Clear removes every object.
func (s *Scene) Clear() {
	s.objects = make(map[Handle]*Object)
	s.index = NewIndex()
}

// remove drops h from the map and index without touching relations.
func (s *Scene) remove(h Handle) {
	if _, ok := s.objects[h]; !ok {
		return
	}
	s.index.Delete(h)
	delete(s.objects, h)
}
