// Package kernel defines the abstract geometry kernel used to build the
// renderable shape of furniture prototypes. Implementations (sdfx) provide
// primitives and rigid transforms behind this interface so the placement
// core never depends on a particular solid modeller.
package kernel

import "github.com/chazu/furnish/pkg/geom"

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// Bounds returns the axis-aligned bounding box in the solid's frame.
	Bounds() geom.Box
}

// Kernel is the abstract geometry kernel interface. All primitives are
// Y-up and centred on their origin.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) (Solid, error)
	Cylinder(height, radius float64) (Solid, error)
	Sphere(radius float64) (Solid, error)
	Cone(height, radius float64) (Solid, error)

	// Rigid transforms
	Translate(s Solid, v geom.Vec) Solid
	RotateY(s Solid, yaw geom.Yaw) Solid

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
