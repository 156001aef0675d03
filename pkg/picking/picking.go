// Package picking turns screen points into placement picks by casting a
// camera ray against placed objects and the floor.
package picking

import (
	"fmt"
	"math"

	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/placement"
	"github.com/chazu/furnish/pkg/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultFloorSize is the edge length of the pickable floor square.
const DefaultFloorSize = 40.0

// Camera is a perspective camera looking at Target from Eye.
type Camera struct {
	Eye    geom.Vec
	Target geom.Vec
	Up     geom.Vec
	FovY   float64 // degrees
	Near   float64
	Far    float64
	Width  int // viewport, pixels
	Height int
}

// DefaultCamera looks down at the origin from the front-right, as the
// planner's initial view does.
func DefaultCamera() Camera {
	return Camera{
		Eye:    geom.Vec{X: 8, Y: 10, Z: 12},
		Target: geom.Vec{},
		Up:     geom.Vec{Y: 1},
		FovY:   60,
		Near:   0.1,
		Far:    200,
		Width:  1280,
		Height: 720,
	}
}

func toMgl(v geom.Vec) mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

func fromMgl(v mgl64.Vec3) geom.Vec { return geom.Vec{X: v[0], Y: v[1], Z: v[2]} }

func (c Camera) view() mgl64.Mat4 {
	up := c.Up
	if up == (geom.Vec{}) {
		up = geom.Vec{Y: 1}
	}
	return mgl64.LookAtV(toMgl(c.Eye), toMgl(c.Target), toMgl(up))
}

func (c Camera) projection() mgl64.Mat4 {
	aspect := float64(c.Width) / float64(c.Height)
	return mgl64.Perspective(mgl64.DegToRad(c.FovY), aspect, c.Near, c.Far)
}

// Ray is a half line from Origin along the unit vector Dir.
type Ray struct {
	Origin geom.Vec
	Dir    geom.Vec
}

// At returns the point t units along the ray.
func (r Ray) At(t float64) geom.Vec {
	return r.Origin.Add(r.Dir.MulScalar(t))
}

// Ray returns the world ray through screen point (x, y). Screen y grows
// downward.
func (c Camera) Ray(x, y float64) (Ray, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return Ray{}, fmt.Errorf("picking: viewport %dx%d", c.Width, c.Height)
	}
	view, proj := c.view(), c.projection()
	wy := float64(c.Height) - y
	near, err := mgl64.UnProject(mgl64.Vec3{x, wy, 0}, view, proj, 0, 0, c.Width, c.Height)
	if err != nil {
		return Ray{}, fmt.Errorf("picking: unproject near: %w", err)
	}
	far, err := mgl64.UnProject(mgl64.Vec3{x, wy, 1}, view, proj, 0, 0, c.Width, c.Height)
	if err != nil {
		return Ray{}, fmt.Errorf("picking: unproject far: %w", err)
	}
	dir := far.Sub(near)
	if dir.Len() == 0 {
		return Ray{}, fmt.Errorf("picking: degenerate ray at (%g, %g)", x, y)
	}
	return Ray{Origin: fromMgl(near), Dir: fromMgl(dir.Normalize())}, nil
}

// IntersectBox returns the distance along r to box. A ray starting inside
// the box hits at its exit.
func (r Ray) IntersectBox(box geom.Box) (float64, bool) {
	tmin, tmax := math.Inf(-1), math.Inf(1)
	for a := geom.AxisX; a <= geom.AxisZ; a++ {
		o := geom.Component(r.Origin, a)
		d := geom.Component(r.Dir, a)
		lo, hi := geom.Component(box.Min, a), geom.Component(box.Max, a)
		if d == 0 {
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}
		t1, t2 := (lo-o)/d, (hi-o)/d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
	}
	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// IntersectFloor returns the distance along r to the y = 0 plane, limited
// to a centred square with edge size. A size of zero or less is unbounded.
func (r Ray) IntersectFloor(size float64) (float64, bool) {
	if math.Abs(r.Dir.Y) < 1e-9 {
		return 0, false
	}
	t := -r.Origin.Y / r.Dir.Y
	if t < 0 {
		return 0, false
	}
	if size > 0 {
		p := r.At(t)
		if math.Abs(p.X) > size/2 || math.Abs(p.Z) > size/2 {
			return 0, false
		}
	}
	return t, true
}

// Picker casts camera rays against the candidates' world boxes and the
// floor, returning the nearest hit.
type Picker struct {
	Camera    Camera
	FloorSize float64
	Bounds    placement.BoundsQuery
}

// NewPicker returns a picker over b.
func NewPicker(cam Camera, floorSize float64, b placement.BoundsQuery) *Picker {
	return &Picker{Camera: cam, FloorSize: floorSize, Bounds: b}
}

// Pick implements the session picker port.
func (p *Picker) Pick(x, y float64, candidates []scene.Handle) placement.Pick {
	ray, err := p.Camera.Ray(x, y)
	if err != nil {
		return placement.Pick{}
	}
	return p.Cast(ray, candidates)
}

// Cast returns the nearest hit of ray among candidates and the floor.
// Objects win ties with the floor.
func (p *Picker) Cast(ray Ray, candidates []scene.Handle) placement.Pick {
	return cast(ray, candidates, p.Bounds, p.FloorSize)
}

// planHeight is where plan rays start; above anything stacked in a room.
const planHeight = 1000.0

// PlanPicker picks straight down from above, so screen point (x, y) is
// world point (x, y) on the floor plan, as snapshots draw it.
type PlanPicker struct {
	FloorSize float64
	Bounds    placement.BoundsQuery
}

// Pick implements the session picker port.
func (p *PlanPicker) Pick(x, y float64, candidates []scene.Handle) placement.Pick {
	ray := Ray{Origin: geom.Vec{X: x, Y: planHeight, Z: y}, Dir: geom.Vec{Y: -1}}
	return cast(ray, candidates, p.Bounds, p.FloorSize)
}

func cast(ray Ray, candidates []scene.Handle, bounds placement.BoundsQuery, floorSize float64) placement.Pick {
	best := math.Inf(1)
	var pick placement.Pick
	if bounds != nil {
		for _, h := range candidates {
			box, ok := bounds.BoundingBox(h)
			if !ok {
				continue
			}
			if t, hit := ray.IntersectBox(box); hit && t < best {
				best = t
				pick = placement.On(h, ray.At(t))
			}
		}
	}
	if t, hit := ray.IntersectFloor(floorSize); hit && t < best {
		pick = placement.Ground(ray.At(t))
	}
	return pick
}
