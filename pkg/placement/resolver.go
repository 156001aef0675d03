package placement

import (
	"math"

	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/scene"
)

// DefaultTopMargin is how far below a target's top face a hit still counts
// as a stack request.
const DefaultTopMargin = 0.2

// BoundsQuery reports the world box of a placed object.
type BoundsQuery interface {
	BoundingBox(h scene.Handle) (geom.Box, bool)
}

// Resolver computes snapped candidates. It is pure: it reads the scene
// through Bounds and never mutates anything.
type Resolver struct {
	GridSize  float64 // ground snap cell; zero or negative disables snapping
	TopMargin float64
	Bounds    BoundsQuery
}

// NewResolver returns a resolver over b.
func NewResolver(b BoundsQuery, gridSize, topMargin float64) *Resolver {
	return &Resolver{GridSize: gridSize, TopMargin: topMargin, Bounds: b}
}

// Resolve turns a pick into a candidate for an item with footprint f.
//
// Ground hits snap x and z to the grid and rest the item on the floor.
// Object hits near the target's top stack the item centred on it; other
// object hits place it flush against the face on the hit's side, resting
// on the floor. A pick on an object that is no longer placed is treated
// as a ground pick at the same point.
func (r *Resolver) Resolve(p Pick, f Footprint) Candidate {
	switch p.Target {
	case TargetGround:
		return r.ground(p.Point, f)
	case TargetObject:
		box, ok := r.Bounds.BoundingBox(p.Object)
		if !ok {
			return r.ground(p.Point, f)
		}
		if p.Point.Y > box.Max.Y-r.TopMargin {
			return stack(p.Object, box, f)
		}
		return beside(p.Point, box, f)
	default:
		return Candidate{}
	}
}

func (r *Resolver) ground(p geom.Vec, f Footprint) Candidate {
	return Candidate{
		Position: geom.Vec{X: r.snap(p.X), Y: f.Lift, Z: r.snap(p.Z)},
		Mode:     ModeGround,
		Valid:    true,
	}
}

func (r *Resolver) snap(v float64) float64 {
	if r.GridSize <= 0 {
		return v
	}
	return math.Floor(v/r.GridSize+0.5) * r.GridSize
}

func stack(target scene.Handle, box geom.Box, f Footprint) Candidate {
	c := box.Center()
	return Candidate{
		Position:    geom.Vec{X: c.X, Y: box.Max.Y + f.Lift, Z: c.Z},
		StackParent: target,
		Mode:        ModeStack,
		Valid:       true,
	}
}

func beside(p geom.Vec, box geom.Box, f Footprint) Candidate {
	c := box.Center()
	side := ClassifySide(p.X-c.X, p.Z-c.Z)
	pos := geom.Vec{X: c.X, Y: f.Lift, Z: c.Z}
	switch side {
	case SideRight:
		pos.X = box.Max.X + f.Size.X/2
	case SideLeft:
		pos.X = box.Min.X - f.Size.X/2
	case SideFront:
		pos.Z = box.Max.Z + f.Size.Z/2
	case SideBack:
		pos.Z = box.Min.Z - f.Size.Z/2
	}
	return Candidate{
		Position: pos,
		Mode:     ModeBeside,
		Side:     side,
		Valid:    true,
	}
}
