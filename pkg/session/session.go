// Package session orchestrates drag-and-drop placement: it owns the one
// live drag session, feeds pointer positions through the placement
// resolver, validates drops, commits objects to the scene, and keeps the
// undo history.
package session

import (
	"fmt"

	"github.com/chazu/furnish/pkg/catalog"
	"github.com/chazu/furnish/pkg/placement"
	"github.com/google/uuid"
)

// Outcome is the result of ending a drag.
type Outcome int

const (
	// OutcomeNoCandidate means the pointer was over nothing placeable.
	OutcomeNoCandidate Outcome = iota
	// OutcomeRejected means the drop would have interpenetrated placed
	// objects. Nothing was created.
	OutcomeRejected
	// OutcomeCommitted means a new object was placed.
	OutcomeCommitted
	// OutcomeFailed means the object could not be materialised and was
	// rolled back.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoCandidate:
		return "no-candidate"
	case OutcomeRejected:
		return "rejected"
	case OutcomeCommitted:
		return "committed"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Session is an in-progress drag. At most one exists, owned by the
// Controller.
type Session struct {
	ID        string
	Prototype *catalog.Prototype
	Preview   *Preview
	Candidate placement.Candidate

	// Last pointer position, so a rotation can re-resolve in place.
	pointerX, pointerY float64
	hasPointer         bool
}

func newSession(proto *catalog.Prototype) (*Session, error) {
	p, err := newPreview(proto)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        uuid.NewString(),
		Prototype: proto,
		Preview:   p,
	}, nil
}
