package picking

import (
	"math"
	"testing"

	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/placement"
	"github.com/chazu/furnish/pkg/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boxes map[scene.Handle]geom.Box

func (b boxes) BoundingBox(h scene.Handle) (geom.Box, bool) {
	box, ok := b[h]
	return box, ok
}

func unitCube(x, z float64) geom.Box {
	return geom.Box{Min: geom.Vec{X: x - 0.5, Z: z - 0.5}, Max: geom.Vec{X: x + 0.5, Y: 1, Z: z + 0.5}}
}

func down(x, z float64) Ray {
	return Ray{Origin: geom.Vec{X: x, Y: 10, Z: z}, Dir: geom.Vec{Y: -1}}
}

func assertVec(t *testing.T, want, got geom.Vec) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-6, "x")
	assert.InDelta(t, want.Y, got.Y, 1e-6, "y")
	assert.InDelta(t, want.Z, got.Z, 1e-6, "z")
}

func TestCameraCentreRay(t *testing.T) {
	cam := Camera{
		Eye:    geom.Vec{Y: 10, Z: 10},
		FovY:   60,
		Near:   0.1,
		Far:    100,
		Width:  800,
		Height: 600,
	}
	r, err := cam.Ray(400, 300)
	require.NoError(t, err)
	s := 1 / math.Sqrt2
	assertVec(t, geom.Vec{Y: -s, Z: -s}, r.Dir)

	d, ok := r.IntersectFloor(0)
	require.True(t, ok)
	assertVec(t, geom.Vec{}, r.At(d))
}

func TestCameraScreenYGrowsDown(t *testing.T) {
	cam := DefaultCamera()
	upper, err := cam.Ray(640, 100)
	require.NoError(t, err)
	lower, err := cam.Ray(640, 600)
	require.NoError(t, err)
	assert.Greater(t, upper.Dir.Y, lower.Dir.Y, "rays near the top of the screen point higher")
}

func TestCameraBadViewport(t *testing.T) {
	_, err := Camera{FovY: 60, Near: 0.1, Far: 10}.Ray(0, 0)
	assert.Error(t, err)
}

func TestIntersectBox(t *testing.T) {
	box := unitCube(0, 0)
	tests := []struct {
		name string
		ray  Ray
		hit  bool
		dist float64
	}{
		{"top face", down(0.2, 0.1), true, 9},
		{"miss", down(2, 0), false, 0},
		{"edge grazes", down(0.5, 0), true, 9},
		{"behind", Ray{Origin: geom.Vec{Y: 5}, Dir: geom.Vec{Y: 1}}, false, 0},
		{"from inside", Ray{Origin: geom.Vec{Y: 0.5}, Dir: geom.Vec{X: 1}}, true, 0.5},
		{"side on", Ray{Origin: geom.Vec{X: -5, Y: 0.5}, Dir: geom.Vec{X: 1}}, true, 4.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := tt.ray.IntersectBox(box)
			assert.Equal(t, tt.hit, ok)
			if tt.hit {
				assert.InDelta(t, tt.dist, d, 1e-9)
			}
		})
	}
}

func TestIntersectFloorBounded(t *testing.T) {
	_, ok := down(3, 0).IntersectFloor(4)
	assert.False(t, ok, "outside a 4x4 floor")
	d, ok := down(1.9, -1.9).IntersectFloor(4)
	assert.True(t, ok)
	assert.InDelta(t, 10, d, 1e-9)

	flat := Ray{Origin: geom.Vec{Y: 1}, Dir: geom.Vec{Z: -1}}
	_, ok = flat.IntersectFloor(0)
	assert.False(t, ok, "parallel to the floor")
}

func TestCastNearestWins(t *testing.T) {
	b := boxes{
		1: unitCube(0, 0),
		2: {Min: geom.Vec{X: -0.5, Y: 1, Z: -0.5}, Max: geom.Vec{X: 0.5, Y: 2, Z: 0.5}},
		3: unitCube(5, 5),
	}
	p := NewPicker(DefaultCamera(), DefaultFloorSize, b)

	pick := p.Cast(down(0, 0), []scene.Handle{1, 2, 3})
	require.Equal(t, placement.TargetObject, pick.Target)
	assert.Equal(t, scene.Handle(2), pick.Object)
	assertVec(t, geom.Vec{Y: 2}, pick.Point)

	pick = p.Cast(down(0, 0), []scene.Handle{1})
	assert.Equal(t, scene.Handle(1), pick.Object, "only candidates are tested")

	pick = p.Cast(down(2, 2), []scene.Handle{1, 2, 3})
	assert.Equal(t, placement.TargetGround, pick.Target)
	assertVec(t, geom.Vec{X: 2, Z: 2}, pick.Point)
}

func TestCastSkipsUnknownHandles(t *testing.T) {
	p := NewPicker(DefaultCamera(), 0, boxes{})
	pick := p.Cast(down(0, 0), []scene.Handle{7})
	assert.Equal(t, placement.TargetGround, pick.Target)
}

func TestCastMissesEverything(t *testing.T) {
	p := NewPicker(DefaultCamera(), 10, boxes{1: unitCube(0, 0)})
	up := Ray{Origin: geom.Vec{Y: 3}, Dir: geom.Vec{X: math.Sqrt2 / 2, Y: math.Sqrt2 / 2}}
	assert.Equal(t, placement.TargetNone, p.Cast(up, []scene.Handle{1}).Target)
	assert.Equal(t, placement.TargetNone, p.Cast(down(20, 0), nil).Target)
}

func TestPickThroughScene(t *testing.T) {
	s := scene.New()
	o := &scene.Object{
		Handle: scene.NewHandle(),
		Pose:   scene.Pose{Position: geom.Vec{Y: 0.5}},
		Local:  geom.Box{Min: geom.Vec{X: -0.5, Y: -0.5, Z: -0.5}, Max: geom.Vec{X: 0.5, Y: 0.5, Z: 0.5}},
	}
	require.NoError(t, s.Add(o))

	cam := Camera{Eye: geom.Vec{Y: 10, Z: 10}, FovY: 60, Near: 0.1, Far: 100, Width: 800, Height: 600}
	p := NewPicker(cam, DefaultFloorSize, s)
	pick := p.Pick(400, 300, s.Handles())
	require.Equal(t, placement.TargetObject, pick.Target)
	assert.Equal(t, o.Handle, pick.Object)
	// The centre ray enters through the front face.
	assertVec(t, geom.Vec{Y: 0.5, Z: 0.5}, pick.Point)
}

func TestPlanPicker(t *testing.T) {
	b := boxes{
		1: unitCube(0, 0),
		2: {Min: geom.Vec{X: -0.5, Y: 1, Z: -0.5}, Max: geom.Vec{X: 0.5, Y: 2, Z: 0.5}},
	}
	p := &PlanPicker{FloorSize: 10, Bounds: b}

	pick := p.Pick(0.2, -0.3, []scene.Handle{1, 2})
	require.Equal(t, placement.TargetObject, pick.Target)
	assert.Equal(t, scene.Handle(2), pick.Object, "the top of the stack is seen first")
	assertVec(t, geom.Vec{X: 0.2, Y: 2, Z: -0.3}, pick.Point)

	pick = p.Pick(3, 4, []scene.Handle{1, 2})
	assert.Equal(t, placement.TargetGround, pick.Target)
	assertVec(t, geom.Vec{X: 3, Z: 4}, pick.Point)

	assert.Equal(t, placement.TargetNone, p.Pick(6, 0, nil).Target, "off the floor")
	assert.Equal(t, placement.TargetGround, (&PlanPicker{}).Pick(1, 1, []scene.Handle{1}).Target, "no bounds yet")
}
