package placement

import (
	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/scene"
	"github.com/samber/lo"
)

// Space is the set of placed objects a candidate is checked against.
type Space interface {
	BoundsQuery
	// Near returns handles whose boxes may intersect box.
	Near(box geom.Box) []scene.Handle
}

// Validator rejects candidates that would interpenetrate placed objects.
type Validator struct {
	space Space
}

// NewValidator returns a validator over s.
func NewValidator(s Space) *Validator {
	return &Validator{space: s}
}

// Validate reports whether box is free. Boxes that only touch are free.
// Handles in excluding are ignored.
func (v *Validator) Validate(box geom.Box, excluding ...scene.Handle) bool {
	return len(v.collisions(box, excluding, true)) == 0
}

// Collisions returns every placed object box overlaps, in handle order.
func (v *Validator) Collisions(box geom.Box, excluding ...scene.Handle) []scene.Handle {
	return v.collisions(box, excluding, false)
}

func (v *Validator) collisions(box geom.Box, excluding []scene.Handle, first bool) []scene.Handle {
	var hits []scene.Handle
	for _, h := range v.space.Near(box) {
		if lo.Contains(excluding, h) {
			continue
		}
		other, ok := v.space.BoundingBox(h)
		if !ok || !geom.Overlaps(box, other) {
			continue
		}
		hits = append(hits, h)
		if first {
			break
		}
	}
	return hits
}
