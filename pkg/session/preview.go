package session

import (
	"fmt"

	"github.com/chazu/furnish/pkg/catalog"
	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/placement"
	"github.com/chazu/furnish/pkg/scene"
	"github.com/jinzhu/copier"
)

// PreviewOpacity is the alpha a renderer should draw the preview with.
const PreviewOpacity = 0.5

// Preview is the translucent stand-in that follows the pointer during a
// drag. It is never part of the scene and is never a pick candidate.
type Preview struct {
	Prototype catalog.Prototype `json:"prototype"`
	Pose      scene.Pose        `json:"pose"`
	Visible   bool              `json:"visible"`
	Opacity   float64           `json:"opacity"`
}

// newPreview clones proto so later catalog edits cannot change an active
// drag.
func newPreview(proto *catalog.Prototype) (*Preview, error) {
	p := &Preview{Opacity: PreviewOpacity}
	if err := copier.CopyWithOption(&p.Prototype, proto, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("session: clone prototype %s: %w", proto.Name, err)
	}
	return p, nil
}

// Yaw returns the preview's yaw.
func (p *Preview) Yaw() geom.Yaw { return p.Pose.Yaw }

// SetYaw sets the preview's yaw.
func (p *Preview) SetYaw(y geom.Yaw) { p.Pose.Yaw = y.Normalize() }

// Local returns the preview's box in its own frame at yaw 0.
func (p *Preview) Local() geom.Box { return p.Prototype.LocalBounds() }

// Footprint returns the preview's extent in its current yaw.
func (p *Preview) Footprint() placement.Footprint {
	return placement.FootprintOf(p.Local(), p.Pose.Yaw)
}
