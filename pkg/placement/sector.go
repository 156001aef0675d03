package placement

import (
	"fmt"
	"math"
)

// Side is the face of a target an item is placed against.
type Side int

const (
	SideNone  Side = iota
	SideRight      // +X
	SideFront      // +Z
	SideBack       // -Z
	SideLeft       // -X
)

func (s Side) String() string {
	switch s {
	case SideNone:
		return "none"
	case SideRight:
		return "right"
	case SideFront:
		return "front"
	case SideBack:
		return "back"
	case SideLeft:
		return "left"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// ClassifySide maps the horizontal offset (dx, dz) of a hit from a
// target's centre to one of four 90° sectors of θ = atan2(dz, dx):
//
//	right  (-45°, 45°]
//	front  (45°, 135°]
//	back   (-135°, -45°]
//	left   otherwise
//
// The sectors are tested with exact comparisons rather than trigonometry
// so a hit on a diagonal always lands on the closed end of its arc; 45°
// is right. A zero offset has θ = 0 and is right.
func ClassifySide(dx, dz float64) Side {
	switch {
	case dx == 0 && dz == 0:
		return SideRight
	case dx > 0 && -dx < dz && dz <= dx:
		return SideRight
	case dz > 0 && -dz <= dx && dx < dz:
		return SideFront
	case dz < 0 && dz < dx && dx <= -dz:
		return SideBack
	default:
		return SideLeft
	}
}

// Angle returns θ in degrees for the offset, for logging.
func Angle(dx, dz float64) float64 {
	return math.Atan2(dz, dx) * 180 / math.Pi
}
