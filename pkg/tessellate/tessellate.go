// Package tessellate walks a scene's stacking forest and produces triangle
// meshes using a geometry kernel. One mesh is produced per placed object.
package tessellate

import (
	"fmt"

	"github.com/chazu/furnish/pkg/catalog"
	"github.com/chazu/furnish/pkg/kernel"
	"github.com/chazu/furnish/pkg/scene"
	"github.com/chazu/furnish/pkg/session"
)

// PreviewName is the mesh name given to the drag preview.
const PreviewName = "preview"

// Tessellate walks the scene from its roots through the objects stacked
// on them and produces one mesh per materialized object. Objects still
// waiting for their asset are skipped, but what rests on them is not. The
// tessellator is read-only and never mutates the scene.
func Tessellate(s *scene.Scene, cat *catalog.Catalog, k kernel.Kernel) ([]*kernel.Mesh, error) {
	if s == nil {
		return nil, nil
	}

	var meshes []*kernel.Mesh
	for _, root := range s.Roots() {
		collected, err := walkObject(s, cat, k, root)
		if err != nil {
			return nil, fmt.Errorf("tessellate: error walking root %s: %w", root, err)
		}
		meshes = append(meshes, collected...)
	}
	return meshes, nil
}

// walkObject meshes h and then everything stacked on it.
func walkObject(s *scene.Scene, cat *catalog.Catalog, k kernel.Kernel, h scene.Handle) ([]*kernel.Mesh, error) {
	o := s.Get(h)
	if o == nil {
		return nil, nil
	}

	var meshes []*kernel.Mesh
	if o.Materialized {
		proto, ok := cat.Get(o.Prototype)
		if !ok {
			return nil, fmt.Errorf("object %s has unknown prototype %q", h, o.Prototype)
		}
		mesh, err := Object(k, proto, o.Pose)
		if err != nil {
			return nil, err
		}
		mesh.Handle = uint64(h)
		meshes = append(meshes, mesh)
	}

	for _, child := range o.Children {
		collected, err := walkObject(s, cat, k, child)
		if err != nil {
			return nil, err
		}
		meshes = append(meshes, collected...)
	}
	return meshes, nil
}

// Object builds the mesh of proto at pose. Rotation is applied first,
// then translation.
func Object(k kernel.Kernel, proto *catalog.Prototype, pose scene.Pose) (*kernel.Mesh, error) {
	solid, err := proto.Solid(k)
	if err != nil {
		return nil, fmt.Errorf("tessellate: solid for %s: %w", proto.Name, err)
	}
	solid = k.RotateY(solid, pose.Yaw)
	solid = k.Translate(solid, pose.Position)

	mesh, err := k.ToMesh(solid)
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for %s: %w", proto.Name, err)
	}
	mesh.Name = proto.Name
	return mesh, nil
}

// Preview builds the mesh of a visible drag preview. It returns nil for a
// hidden preview.
func Preview(k kernel.Kernel, p *session.Preview) (*kernel.Mesh, error) {
	if p == nil || !p.Visible {
		return nil, nil
	}
	mesh, err := Object(k, &p.Prototype, p.Pose)
	if err != nil {
		return nil, err
	}
	mesh.Name = PreviewName
	return mesh, nil
}
