// Package catalog holds the furniture prototypes a user can drag into the
// plan. A prototype knows its extent in its own frame and can build a
// proxy solid for mesh output; it never holds placement state.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/kernel"
	"gopkg.in/yaml.v3"
)

// Kind distinguishes generated primitives from imported models. The two
// differ in pivot: primitives are centred on their origin, models are
// normalised so the origin sits at the centre of the base.
type Kind int

const (
	KindPrimitive Kind = iota
	KindModel
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindModel:
		return "model"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "primitive", "":
		*k = KindPrimitive
	case "model":
		*k = KindModel
	default:
		return fmt.Errorf("catalog: unknown kind %q", string(b))
	}
	return nil
}

// Shape selects the generated geometry of a primitive.
type Shape string

const (
	ShapeBox      Shape = "box"
	ShapeSphere   Shape = "sphere"
	ShapeCylinder Shape = "cylinder"
	ShapeCone     Shape = "cone"
)

// Prototype is a catalog entry. Size is the width, height and depth of
// the item at yaw 0 before Scale is applied.
type Prototype struct {
	Name  string     `yaml:"name"`
	Kind  Kind       `yaml:"kind"`
	Shape Shape      `yaml:"shape,omitempty"`
	Size  [3]float64 `yaml:"size"`
	Scale float64    `yaml:"scale,omitempty"`
	Color string     `yaml:"color,omitempty"`
	Path  string     `yaml:"path,omitempty"` // model asset, resolved by the host
}

// Extent returns the scaled width, height and depth.
func (p *Prototype) Extent() geom.Vec {
	s := p.Scale
	if s == 0 {
		s = 1
	}
	return geom.Vec{X: p.Size[0] * s, Y: p.Size[1] * s, Z: p.Size[2] * s}
}

// LocalBounds returns the prototype's box in its own frame at yaw 0.
// Bounds are derived from the declared extent, not from kernel output, so
// they are exact.
func (p *Prototype) LocalBounds() geom.Box {
	e := p.Extent()
	hx, hz := e.X/2, e.Z/2
	if p.Kind == KindModel {
		return geom.Box{
			Min: geom.Vec{X: -hx, Y: 0, Z: -hz},
			Max: geom.Vec{X: hx, Y: e.Y, Z: hz},
		}
	}
	hy := e.Y / 2
	return geom.Box{
		Min: geom.Vec{X: -hx, Y: -hy, Z: -hz},
		Max: geom.Vec{X: hx, Y: hy, Z: hz},
	}
}

// Solid builds the prototype's geometry with k, in the same frame as
// LocalBounds. Models have no generated geometry and are represented by
// a proxy box standing on the origin.
func (p *Prototype) Solid(k kernel.Kernel) (kernel.Solid, error) {
	e := p.Extent()
	if p.Kind == KindModel {
		s, err := k.Box(e.X, e.Y, e.Z)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s: %w", p.Name, err)
		}
		return k.Translate(s, geom.Vec{Y: e.Y / 2}), nil
	}

	var (
		s   kernel.Solid
		err error
	)
	switch p.Shape {
	case ShapeBox, "":
		s, err = k.Box(e.X, e.Y, e.Z)
	case ShapeSphere:
		s, err = k.Sphere(min(e.X, e.Y, e.Z) / 2)
	case ShapeCylinder:
		s, err = k.Cylinder(e.Y, min(e.X, e.Z)/2)
	case ShapeCone:
		s, err = k.Cone(e.Y, min(e.X, e.Z)/2)
	default:
		return nil, fmt.Errorf("catalog: %s: unknown shape %q", p.Name, p.Shape)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", p.Name, err)
	}
	return s, nil
}

// Validate checks that the prototype is usable for placement.
func (p *Prototype) Validate() error {
	if p.Name == "" {
		return errors.New("catalog: prototype has no name")
	}
	for i, v := range p.Size {
		if v <= 0 {
			return fmt.Errorf("catalog: %s: size[%d] must be positive, got %g", p.Name, i, v)
		}
	}
	if p.Scale < 0 {
		return fmt.Errorf("catalog: %s: scale must not be negative, got %g", p.Name, p.Scale)
	}
	switch p.Shape {
	case "", ShapeBox, ShapeSphere, ShapeCylinder, ShapeCone:
	default:
		return fmt.Errorf("catalog: %s: unknown shape %q", p.Name, p.Shape)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// Catalog is an ordered set of prototypes keyed by name.
type Catalog struct {
	byName map[string]*Prototype
	order  []string
}

type file struct {
	Prototypes []Prototype `yaml:"prototypes"`
}

// New builds a catalog, validating each prototype. Duplicate names are an
// error.
func New(protos ...Prototype) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Prototype, len(protos))}
	for i := range protos {
		p := protos[i]
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[p.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate prototype %q", p.Name)
		}
		c.byName[p.Name] = &p
		c.order = append(c.order, p.Name)
	}
	return c, nil
}

// Default returns the built-in palette.
func Default() *Catalog {
	c, err := New(
		Prototype{Name: "RedCube", Kind: KindPrimitive, Shape: ShapeBox, Size: [3]float64{1, 1, 1}, Color: "#ff0000"},
		Prototype{Name: "BlueSphere", Kind: KindPrimitive, Shape: ShapeSphere, Size: [3]float64{1, 1, 1}, Color: "#0000ff"},
		Prototype{Name: "GreenCylinder", Kind: KindPrimitive, Shape: ShapeCylinder, Size: [3]float64{1, 1, 1}, Color: "#00ff00"},
		Prototype{Name: "Box", Kind: KindModel, Size: [3]float64{0.5, 0.5, 0.5}, Scale: 2, Path: "models/Box.glb"},
		Prototype{Name: "Duck", Kind: KindModel, Size: [3]float64{0.6, 0.6, 0.4}, Scale: 1.5, Path: "models/Duck.glb"},
		Prototype{Name: "Commode", Kind: KindModel, Size: [3]float64{0.5, 0.5, 0.3}, Scale: 1.8, Path: "models/commode.glb"},
		Prototype{Name: "Bed", Kind: KindModel, Size: [3]float64{1, 0.3, 1.1}, Scale: 2, Path: "models/bed.glb"},
		Prototype{Name: "Table", Kind: KindModel, Size: [3]float64{0.8, 0.5, 0.8}, Scale: 1.5, Path: "models/table.glb"},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse reads a catalog from YAML of the form
//
//	prototypes:
//	  - name: RedCube
//	    kind: primitive
//	    shape: box
//	    size: [1, 1, 1]
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	if len(f.Prototypes) == 0 {
		return nil, errors.New("catalog: no prototypes defined")
	}
	return New(f.Prototypes...)
}

// Load reads a catalog file. An empty path yields the built-in palette.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return c, nil
}

// Get returns the named prototype.
func (c *Catalog) Get(name string) (*Prototype, bool) {
	p, ok := c.byName[name]
	return p, ok
}

// Names returns the prototype names in palette order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of prototypes.
func (c *Catalog) Len() int {
	return len(c.order)
}
