// Package geom holds the vector, box and yaw helpers shared by the
// placement packages. Vectors and boxes are the sdfx types so kernel
// output flows through without conversion.
package geom

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Box is a world-space axis-aligned bounding box.
type Box = sdf.Box3

// Vec is a point or extent in world units (Y up).
type Vec = v3.Vec

// Axis indexes a world axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Component returns v's coordinate along axis a.
func Component(v Vec, a Axis) float64 {
	switch a {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	default:
		return v.Z
	}
}

// Overlap returns the signed overlap of a and b along one axis.
// Zero means the boxes touch; negative means they are apart.
func Overlap(a, b Box, axis Axis) float64 {
	lo := math.Max(Component(a.Min, axis), Component(b.Min, axis))
	hi := math.Min(Component(a.Max, axis), Component(b.Max, axis))
	return hi - lo
}

// Overlaps reports whether a and b share a strictly positive volume.
// Boxes that only touch at a face, edge or corner do not overlap.
func Overlaps(a, b Box) bool {
	return Overlap(a, b, AxisX) > 0 &&
		Overlap(a, b, AxisY) > 0 &&
		Overlap(a, b, AxisZ) > 0
}

// ---------------------------------------------------------------------------
// Placement of local boxes
// ---------------------------------------------------------------------------

// Rotate turns a local box about the Y axis by a quarter-turn yaw.
// Quarter turns permute the X/Z extents exactly, so no rounding error is
// introduced into the resulting bounds.
func Rotate(local Box, yaw Yaw) Box {
	lo, hi := local.Min, local.Max
	switch yaw.Normalize() {
	case Yaw90:
		// (x, z) -> (z, -x)
		return Box{
			Min: Vec{X: lo.Z, Y: lo.Y, Z: -hi.X},
			Max: Vec{X: hi.Z, Y: hi.Y, Z: -lo.X},
		}
	case Yaw180:
		// (x, z) -> (-x, -z)
		return Box{
			Min: Vec{X: -hi.X, Y: lo.Y, Z: -hi.Z},
			Max: Vec{X: -lo.X, Y: hi.Y, Z: -lo.Z},
		}
	case Yaw270:
		// (x, z) -> (-z, x)
		return Box{
			Min: Vec{X: -hi.Z, Y: lo.Y, Z: lo.X},
			Max: Vec{X: -lo.Z, Y: hi.Y, Z: hi.X},
		}
	default:
		return local
	}
}

// Place returns the world box of a local box posed at position with yaw.
func Place(local Box, position Vec, yaw Yaw) Box {
	r := Rotate(local, yaw)
	return Box{Min: r.Min.Add(position), Max: r.Max.Add(position)}
}

// Lift is the distance from a local box's pivot (its origin) down to its
// base. A centred primitive has a lift of half its height; a base-pivot
// model has zero lift.
func Lift(local Box) float64 {
	return -local.Min.Y
}
