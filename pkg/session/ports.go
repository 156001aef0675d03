package session

import (
	"github.com/chazu/furnish/pkg/catalog"
	"github.com/chazu/furnish/pkg/placement"
	"github.com/chazu/furnish/pkg/scene"
)

// Picker casts a ray from a screen point and reports the nearest hit
// among candidates or the ground.
type Picker interface {
	Pick(x, y float64, candidates []scene.Handle) placement.Pick
}

// Renderer is the visual side of the scene. Every method must be cheap
// and must not call back into the controller.
type Renderer interface {
	ShowPreview(p *Preview)
	HidePreview()
	SetPose(h scene.Handle, pose scene.Pose)
	Destroy(h scene.Handle)
	SetHighlight(h scene.Handle, on bool)
}

// Assets acquires the visual representation of a newly placed object.
// When Request returns ready=false the host must later call
// Controller.Materialized with the outcome.
type Assets interface {
	Request(h scene.Handle, proto *catalog.Prototype) (ready bool, err error)
}

// NopRenderer discards all rendering calls.
type NopRenderer struct{}

func (NopRenderer) ShowPreview(*Preview) {}
func (NopRenderer) HidePreview() {}
func (NopRenderer) SetPose(scene.Handle, scene.Pose) {}
func (NopRenderer) Destroy(scene.Handle) {}
func (NopRenderer) SetHighlight(scene.Handle, bool) {}

// InstantAssets reports every asset as ready immediately.
type InstantAssets struct{}

func (InstantAssets) Request(scene.Handle, *catalog.Prototype) (bool, error) {
	return true, nil
}
