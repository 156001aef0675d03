package session

import (
	"errors"
	"testing"

	"github.com/chazu/furnish/pkg/catalog"
	"github.com/chazu/furnish/pkg/events"
	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/placement"
	"github.com/chazu/furnish/pkg/scene"
	"github.com/stretchr/testify/require"
)

// fakePicker maps screen points to scripted picks. Unscripted points hit
// the ground at (x, 0, y), so screen coordinates double as floor
// coordinates in tests. It does not filter by candidates, so a stale
// object pick can be simulated.
type fakePicker struct {
	picks map[[2]float64]placement.Pick
}

func newFakePicker() *fakePicker {
	return &fakePicker{picks: make(map[[2]float64]placement.Pick)}
}

func (p *fakePicker) Pick(x, y float64, _ []scene.Handle) placement.Pick {
	if pk, ok := p.picks[[2]float64{x, y}]; ok {
		return pk
	}
	return placement.Ground(geom.Vec{X: x, Z: y})
}

// on scripts screen point (x, y) to hit object h at world point w.
func (p *fakePicker) on(x, y float64, h scene.Handle, w geom.Vec) {
	p.picks[[2]float64{x, y}] = placement.On(h, w)
}

// nothing scripts screen point (x, y) to miss everything.
func (p *fakePicker) nothing(x, y float64) {
	p.picks[[2]float64{x, y}] = placement.Pick{}
}

// fakeRenderer records rendering calls.
type fakeRenderer struct {
	previewShown bool
	previewPose  scene.Pose
	poses        map[scene.Handle]scene.Pose
	destroyed    []scene.Handle
	highlighted  map[scene.Handle]bool
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		poses:       make(map[scene.Handle]scene.Pose),
		highlighted: make(map[scene.Handle]bool),
	}
}

func (r *fakeRenderer) ShowPreview(p *Preview) {
	r.previewShown = true
	r.previewPose = p.Pose
}

func (r *fakeRenderer) HidePreview() { r.previewShown = false }

func (r *fakeRenderer) SetPose(h scene.Handle, pose scene.Pose) { r.poses[h] = pose }

func (r *fakeRenderer) Destroy(h scene.Handle) {
	r.destroyed = append(r.destroyed, h)
	delete(r.poses, h)
	delete(r.highlighted, h)
}

func (r *fakeRenderer) SetHighlight(h scene.Handle, on bool) { r.highlighted[h] = on }

// fakeAssets answers requests according to mode.
type fakeAssets struct {
	mode      string // "ready", "pending" or "fail"
	requested []scene.Handle
}

var errAssetMissing = errors.New("asset missing")

func (a *fakeAssets) Request(h scene.Handle, _ *catalog.Prototype) (bool, error) {
	a.requested = append(a.requested, h)
	switch a.mode {
	case "pending":
		return false, nil
	case "fail":
		return false, errAssetMissing
	default:
		return true, nil
	}
}

type harness struct {
	c        *Controller
	picker   *fakePicker
	renderer *fakeRenderer
	assets   *fakeAssets
	events   *events.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bus := events.NewBus()
	h := &harness{
		picker:   newFakePicker(),
		renderer: newFakeRenderer(),
		assets:   &fakeAssets{mode: "ready"},
		events:   events.Record(bus),
	}
	h.c = NewController(catalog.Default(), h.picker, h.renderer, h.assets, bus, Options{GridSize: 1, TopMargin: placement.DefaultTopMargin})
	return h
}

// drop drags prototype to screen point (x, y) and drops it there.
func (h *harness) drop(t *testing.T, prototype string, x, y float64) (Outcome, scene.Handle) {
	t.Helper()
	require.NoError(t, h.c.StartDrag(prototype))
	_, err := h.c.UpdateDrag(x, y)
	require.NoError(t, err)
	before := h.c.Scene().Handles()
	out, err := h.c.EndDrag(x, y)
	require.NoError(t, err)
	if out != OutcomeCommitted {
		return out, 0
	}
	after := h.c.Scene().Handles()
	require.Len(t, after, len(before)+1)
	return out, after[len(after)-1]
}

// requireConsistent fails on any broken stacking invariant.
func (h *harness) requireConsistent(t *testing.T) {
	t.Helper()
	for _, e := range scene.Validate(h.c.Scene()) {
		require.NotEqual(t, scene.SeverityError, e.Severity, "invariant broken: %v", e)
	}
}
