package scene

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/chazu/furnish/pkg/catalog"
	"github.com/chazu/furnish/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitCube = geom.Box{
	Min: geom.Vec{X: -0.5, Y: -0.5, Z: -0.5},
	Max: geom.Vec{X: 0.5, Y: 0.5, Z: 0.5},
}

// addCube places a unit cube primitive centred at (x, y, z).
func addCube(t *testing.T, s *Scene, x, y, z float64) Handle {
	t.Helper()
	o := &Object{
		Handle:    NewHandle(),
		Kind:      catalog.KindPrimitive,
		Prototype: "RedCube",
		Pose:      Pose{Position: geom.Vec{X: x, Y: y, Z: z}},
		Local:     unitCube,
	}
	require.NoError(t, s.Add(o))
	return o.Handle
}

// assertMutualInverse fails the test if any stacking invariant is broken.
func assertMutualInverse(t *testing.T, s *Scene) {
	t.Helper()
	for _, e := range Validate(s) {
		if e.Severity == SeverityError {
			t.Errorf("invariant broken: %v", e)
		}
	}
}

func TestNewHandleIsUniqueAndIncreasing(t *testing.T) {
	a := NewHandle()
	b := NewHandle()
	assert.NotZero(t, a)
	assert.Greater(t, uint64(b), uint64(a))
}

func TestAddRejectsZeroAndDuplicateHandles(t *testing.T) {
	s := New()
	assert.Error(t, s.Add(&Object{Prototype: "x", Local: unitCube}))

	h := addCube(t, s, 0, 0.5, 0)
	err := s.Add(&Object{Handle: h, Prototype: "x", Local: unitCube})
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestBoundingBoxFollowsPose(t *testing.T) {
	s := New()
	h := addBox(t, s, geom.Box{Min: geom.Vec{X: -1, Y: 0, Z: -0.25}, Max: geom.Vec{X: 1, Y: 1, Z: 0.25}})

	b, ok := s.BoundingBox(h)
	require.True(t, ok)
	assert.Equal(t, 2.0, b.Size().X)

	require.NoError(t, s.SetPose(h, Pose{Position: geom.Vec{X: 3}, Yaw: geom.Yaw90}))
	b, _ = s.BoundingBox(h)
	assert.Equal(t, 0.5, b.Size().X)
	assert.Equal(t, 2.0, b.Size().Z)
	assert.Equal(t, 3.0, b.Center().X)

	_, ok = s.BoundingBox(NewHandle())
	assert.False(t, ok)
}

func addBox(t *testing.T, s *Scene, local geom.Box) Handle {
	t.Helper()
	o := &Object{Handle: NewHandle(), Kind: catalog.KindModel, Prototype: "Bed", Local: local}
	require.NoError(t, s.Add(o))
	return o.Handle
}

func TestSetPoseNormalisesYaw(t *testing.T) {
	s := New()
	h := addCube(t, s, 0, 0.5, 0)
	require.NoError(t, s.SetPose(h, Pose{Yaw: 450}))
	assert.Equal(t, geom.Yaw90, s.Get(h).Pose.Yaw)
	assert.Error(t, s.SetPose(NewHandle(), Pose{}))
}

func TestAttachDetach(t *testing.T) {
	s := New()
	table := addCube(t, s, 0, 0.5, 0)
	lamp := addCube(t, s, 0, 1.5, 0)

	require.NoError(t, s.Attach(lamp, table))
	assert.Equal(t, table, s.Get(lamp).RestingOn)
	assert.Equal(t, []Handle{lamp}, s.Get(table).Children)
	assert.Equal(t, []Handle{table}, s.Roots())

	// Attaching again is a no-op.
	require.NoError(t, s.Attach(lamp, table))
	assert.Len(t, s.Get(table).Children, 1)

	s.Detach(lamp)
	assert.Zero(t, s.Get(lamp).RestingOn)
	assert.Empty(t, s.Get(table).Children)
	assertMutualInverse(t, s)
}

func TestAttachReparents(t *testing.T) {
	s := New()
	a := addCube(t, s, 0, 0.5, 0)
	b := addCube(t, s, 3, 0.5, 0)
	c := addCube(t, s, 0, 1.5, 0)

	require.NoError(t, s.Attach(c, a))
	require.NoError(t, s.Attach(c, b))
	assert.Empty(t, s.Get(a).Children)
	assert.Equal(t, []Handle{c}, s.Get(b).Children)
	assertMutualInverse(t, s)

	require.NoError(t, s.Attach(c, 0))
	assert.Zero(t, s.Get(c).RestingOn)
	assertMutualInverse(t, s)
}

func TestAttachUnknownParentRestsOnNothing(t *testing.T) {
	s := New()
	a := addCube(t, s, 0, 0.5, 0)
	c := addCube(t, s, 0, 1.5, 0)
	require.NoError(t, s.Attach(c, a))

	err := s.Attach(c, NewHandle())
	assert.ErrorIs(t, err, ErrUnknownParent)
	assert.Zero(t, s.Get(c).RestingOn)
	assert.Empty(t, s.Get(a).Children)
	assertMutualInverse(t, s)

	assert.ErrorIs(t, s.Attach(NewHandle(), a), ErrUnknownObject)
}

func TestAttachRefusesCycles(t *testing.T) {
	s := New()
	a := addCube(t, s, 0, 0.5, 0)
	b := addCube(t, s, 0, 1.5, 0)
	c := addCube(t, s, 0, 2.5, 0)
	require.NoError(t, s.Attach(b, a))
	require.NoError(t, s.Attach(c, b))

	assert.ErrorIs(t, s.Attach(a, c), ErrCycle)
	assert.ErrorIs(t, s.Attach(a, a), ErrCycle)
	assertMutualInverse(t, s)
}

// buildFiveStack builds A with children B, C and grandchildren D, E under B.
func buildFiveStack(t *testing.T, s *Scene) (a, b, c, d, e Handle) {
	t.Helper()
	a = addCube(t, s, 0, 0.5, 0)
	b = addCube(t, s, 0, 1.5, 0)
	c = addCube(t, s, 2, 1.5, 0)
	d = addCube(t, s, 0, 2.5, 0)
	e = addCube(t, s, 2, 2.5, 0)
	require.NoError(t, s.Attach(b, a))
	require.NoError(t, s.Attach(c, a))
	require.NoError(t, s.Attach(d, b))
	require.NoError(t, s.Attach(e, b))
	return
}

func TestCascadeDeleteRemovesFive(t *testing.T) {
	s := New()
	bystander := addCube(t, s, 10, 0.5, 10)
	a, b, c, d, e := buildFiveStack(t, s)

	removed := s.CascadeDelete(a)
	assert.Equal(t, []Handle{a, b, d, e, c}, removed)
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains(bystander))
	for _, h := range removed {
		assert.False(t, s.Contains(h))
	}
	assert.Empty(t, s.Near(geom.Box{Min: geom.Vec{X: -5, Y: -5, Z: -5}, Max: geom.Vec{X: 5, Y: 5, Z: 5}}))
	assertMutualInverse(t, s)
}

func TestCascadeDeleteDetachesFromParent(t *testing.T) {
	s := New()
	a, b, _, d, e := buildFiveStack(t, s)

	removed := s.CascadeDelete(b)
	assert.ElementsMatch(t, []Handle{b, d, e}, removed)
	assert.NotContains(t, s.Get(a).Children, b)
	assert.Equal(t, 2, s.Len())
	assertMutualInverse(t, s)

	assert.Nil(t, s.CascadeDelete(b), "deleting twice removes nothing")
}

func TestSubtreeCopiesRelations(t *testing.T) {
	s := New()
	a, b, c, d, e := buildFiveStack(t, s)

	sub := s.Subtree(b)
	require.Len(t, sub, 3)
	assert.Equal(t, b, sub[0].Handle)
	assert.Equal(t, a, sub[0].RestingOn)
	assert.Equal(t, []Handle{d, e}, sub[0].Children)

	// Copies are independent of the live scene.
	sub[0].Children[0] = c
	assert.Equal(t, []Handle{d, e}, s.Get(b).Children)
}

func TestNearUsesIndex(t *testing.T) {
	s := New()
	a := addCube(t, s, 0, 0.5, 0)
	b := addCube(t, s, 5, 0.5, 0)

	query := geom.Box{Min: geom.Vec{X: 0.25, Y: 0, Z: -0.25}, Max: geom.Vec{X: 0.75, Y: 1, Z: 0.25}}
	assert.Equal(t, []Handle{a}, s.Near(query))

	require.NoError(t, s.SetPose(b, Pose{Position: geom.Vec{X: 1, Y: 0.5}}))
	assert.Equal(t, []Handle{a, b}, s.Near(query))

	s.Clear()
	assert.Empty(t, s.Near(query))
	assert.Zero(t, s.Len())
}

func TestValidateFindsCorruption(t *testing.T) {
	s := New()
	a := addCube(t, s, 0, 0.5, 0)
	b := addCube(t, s, 0, 1.5, 0)

	// One-sided pointer.
	s.Get(b).RestingOn = a
	errs := Validate(s)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "does not list it")

	// Two-node cycle.
	s.Get(a).Children = []Handle{b}
	s.Get(b).Children = []Handle{a}
	s.Get(a).RestingOn = b
	var cycle bool
	for _, e := range Validate(s) {
		if e.Severity == SeverityError {
			cycle = cycle || strings.Contains(e.Message, "cycle")
		}
	}
	assert.True(t, cycle)
}

func TestValidateWarnsOnOverlap(t *testing.T) {
	s := New()
	addCube(t, s, 0, 0.5, 0)
	addCube(t, s, 0.5, 0.5, 0)
	addCube(t, s, 1.5, 0.5, 0) // touches the second cube only

	errs := Validate(s)
	require.Len(t, errs, 1)
	assert.Equal(t, SeverityWarning, errs[0].Severity)
}

// TestMutualInverseUnderRandomOps drives a random sequence of attach,
// detach and cascade delete operations and checks the invariants hold
// after every step.
func TestMutualInverseUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := New()
	for i := 0; i < 12; i++ {
		addCube(t, s, float64(i)*2, 0.5, 0)
	}

	for step := 0; step < 300; step++ {
		live := s.Handles()
		if len(live) < 3 {
			for i := 0; i < 5; i++ {
				addCube(t, s, float64(step*10+i), 0.5, 0)
			}
			continue
		}
		a := live[rng.Intn(len(live))]
		b := live[rng.Intn(len(live))]
		switch rng.Intn(5) {
		case 0, 1, 2:
			_ = s.Attach(a, b) // cycles are refused, which is fine
		case 3:
			s.Detach(a)
		case 4:
			if rng.Intn(3) == 0 {
				s.CascadeDelete(a)
			}
		}
		for _, e := range Validate(s) {
			if e.Severity == SeverityError {
				t.Fatalf("step %d: %v", step, e)
			}
		}
	}
}
