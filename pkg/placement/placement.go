// Package placement turns a pick under the pointer into a snapped
// candidate pose for the dragged item, and decides whether a candidate
// may be committed without interpenetrating what is already placed.
package placement

import (
	"fmt"

	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/scene"
)

// Target says what a pick ray hit.
type Target int

const (
	TargetNone Target = iota
	TargetGround
	TargetObject
)

func (t Target) String() string {
	switch t {
	case TargetNone:
		return "none"
	case TargetGround:
		return "ground"
	case TargetObject:
		return "object"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// Pick is the nearest hit under the pointer.
type Pick struct {
	Target Target
	Point  geom.Vec     // world-space hit point
	Object scene.Handle // owning object when Target is TargetObject
}

// Ground is a pick on the floor plane at p.
func Ground(p geom.Vec) Pick {
	return Pick{Target: TargetGround, Point: p}
}

// On is a pick on object h at p.
func On(h scene.Handle, p geom.Vec) Pick {
	return Pick{Target: TargetObject, Point: p, Object: h}
}

// Footprint is the extent of the dragged item in its preview yaw, plus the
// distance from its pivot down to its base.
type Footprint struct {
	Size geom.Vec
	Lift float64
}

// FootprintOf derives the footprint of a local box turned by yaw.
func FootprintOf(local geom.Box, yaw geom.Yaw) Footprint {
	r := geom.Rotate(local, yaw)
	return Footprint{Size: r.Size(), Lift: geom.Lift(r)}
}

// Mode is the kind of snap a candidate represents.
type Mode int

const (
	ModeNone Mode = iota
	ModeGround
	ModeStack
	ModeBeside
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeGround:
		return "ground"
	case ModeStack:
		return "stack"
	case ModeBeside:
		return "beside"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Candidate is a proposed pose for the dragged item. Yaw is carried by the
// preview, not the candidate.
type Candidate struct {
	Position    geom.Vec     `json:"position"`
	StackParent scene.Handle `json:"stack_parent,omitempty"`
	Mode        Mode         `json:"mode"`
	Side        Side         `json:"side,omitempty"`
	Valid       bool         `json:"valid"`
}

// Box returns the world box the item would occupy at the candidate.
func (c Candidate) Box(local geom.Box, yaw geom.Yaw) geom.Box {
	return geom.Place(local, c.Position, yaw)
}
