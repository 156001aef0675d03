package session

import (
	"errors"
	"fmt"

	"github.com/chazu/furnish/pkg/catalog"
	"github.com/chazu/furnish/pkg/events"
	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/placement"
	"github.com/chazu/furnish/pkg/scene"
	"github.com/chazu/furnish/pkg/selection"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrUnknownPrototype is returned by StartDrag for a name that is not
	// in the catalog.
	ErrUnknownPrototype = errors.New("session: unknown prototype")

	// ErrNotDragging is returned by drag operations with no active drag.
	ErrNotDragging = errors.New("session: no drag in progress")

	// ErrNothingToUndo is returned by Undo with an empty history.
	ErrNothingToUndo = errors.New("session: nothing to undo")

	// ErrNothingToRedo is returned by Redo with nothing undone.
	ErrNothingToRedo = errors.New("session: nothing to redo")

	// ErrBlocked is returned when restoring objects would interpenetrate
	// what is placed now, or the surface they rested on is gone.
	ErrBlocked = errors.New("session: space is taken")
)

// Options configures a Controller.
type Options struct {
	GridSize  float64
	TopMargin float64
}

// Controller drives the Idle → Dragging → Idle state machine and the
// selection commands. It is not safe for concurrent use; hosts serialise
// calls.
type Controller struct {
	scene     *scene.Scene
	catalog   *catalog.Catalog
	resolver  *placement.Resolver
	validator *placement.Validator
	sel       *selection.State
	history   History

	picker   Picker
	renderer Renderer
	assets   Assets
	bus      *events.Bus

	session *Session
	pending map[scene.Handle]bool
}

// NewController wires a controller over an empty scene. A nil renderer or
// assets port is replaced by a no-op; a nil bus drops events.
func NewController(cat *catalog.Catalog, picker Picker, renderer Renderer, assets Assets, bus *events.Bus, opts Options) *Controller {
	if renderer == nil {
		renderer = NopRenderer{}
	}
	if assets == nil {
		assets = InstantAssets{}
	}
	s := scene.New()
	return &Controller{
		scene:     s,
		catalog:   cat,
		resolver:  placement.NewResolver(s, opts.GridSize, opts.TopMargin),
		validator: placement.NewValidator(s),
		sel:       selection.New(s, renderer),
		picker:    picker,
		renderer:  renderer,
		assets:    assets,
		bus:       bus,
		pending:   make(map[scene.Handle]bool),
	}
}

// Scene returns the controller's scene. Callers must not mutate it.
func (c *Controller) Scene() *scene.Scene { return c.scene }

// Catalog returns the prototype catalog.
func (c *Controller) Catalog() *catalog.Catalog { return c.catalog }

// Session returns the active drag, or nil.
func (c *Controller) Session() *Session { return c.session }

// Dragging reports whether a drag is active.
func (c *Controller) Dragging() bool { return c.session != nil }

// Selected returns the selected handle, if any.
func (c *Controller) Selected() (scene.Handle, bool) { return c.sel.Selected() }

// History returns the undo history.
func (c *Controller) History() *History { return &c.history }

// Pending reports whether h is placed but still waiting for its visual.
func (c *Controller) Pending(h scene.Handle) bool { return c.pending[h] }

// ---------------------------------------------------------------------------
// Drag session
// ---------------------------------------------------------------------------

// StartDrag begins dragging a new instance of the named prototype. An
// active drag is cancelled first, and any selection is cleared.
func (c *Controller) StartDrag(prototype string) error {
	proto, ok := c.catalog.Get(prototype)
	if !ok {
		return fmt.Errorf("start drag %q: %w", prototype, ErrUnknownPrototype)
	}
	if c.session != nil {
		c.CancelDrag()
	}
	s, err := newSession(proto)
	if err != nil {
		return err
	}

	_, wasSelected := c.sel.Selected()
	c.sel.BeginDrag()
	if wasSelected {
		c.bus.Publish(events.SelectionChanged{})
	}
	c.session = s

	log.WithFields(log.Fields{
		"session":   s.ID,
		"prototype": proto.Name,
	}).Debug("drag started")
	return nil
}

// UpdateDrag moves the preview to the candidate under (x, y), or hides it
// when there is none. Collisions are not checked while hovering.
func (c *Controller) UpdateDrag(x, y float64) (placement.Candidate, error) {
	if c.session == nil {
		return placement.Candidate{}, ErrNotDragging
	}
	cand := c.resolve(x, y)
	p := c.session.Preview
	if !cand.Valid {
		if p.Visible {
			p.Visible = false
			c.renderer.HidePreview()
		}
		return cand, nil
	}
	p.Pose.Position = cand.Position
	p.Visible = true
	c.renderer.ShowPreview(p)

	log.WithFields(log.Fields{
		"session": c.session.ID,
		"mode":    cand.Mode,
		"x":       cand.Position.X,
		"y":       cand.Position.Y,
		"z":       cand.Position.Z,
	}).Debug("drag over")
	return cand, nil
}

// EndDrag drops the preview at (x, y). The candidate is resolved once more
// and validated against the scene; on success a new object is committed
// and attached to its stack parent. The preview is discarded in every
// case.
func (c *Controller) EndDrag(x, y float64) (Outcome, error) {
	if c.session == nil {
		return OutcomeNoCandidate, ErrNotDragging
	}
	s := c.session
	cand := c.resolve(x, y)
	defer c.endSession()

	logger := log.WithFields(log.Fields{
		"session":   s.ID,
		"prototype": s.Prototype.Name,
	})
	if !cand.Valid {
		logger.Debug("drop over nothing")
		return OutcomeNoCandidate, nil
	}

	local := s.Preview.Local()
	yaw := s.Preview.Yaw()
	box := cand.Box(local, yaw)
	var excluding []scene.Handle
	if cand.StackParent != 0 {
		excluding = append(excluding, cand.StackParent)
	}
	if hits := c.validator.Collisions(box, excluding...); len(hits) > 0 {
		logger.WithField("collisions", hits).Info("placement rejected")
		c.bus.Publish(events.PlacementRejected{
			Prototype:  s.Prototype.Name,
			Position:   cand.Position,
			Collisions: hits,
		})
		return OutcomeRejected, nil
	}

	obj := &scene.Object{
		Handle:    scene.NewHandle(),
		Kind:      s.Prototype.Kind,
		Prototype: s.Prototype.Name,
		Pose:      scene.Pose{Position: cand.Position, Yaw: yaw},
		Local:     local,
	}
	if err := c.scene.Add(obj); err != nil {
		return OutcomeNoCandidate, err
	}
	if cand.StackParent != 0 {
		if err := c.scene.Attach(obj.Handle, cand.StackParent); err != nil {
			logger.WithError(err).Warn("stack parent vanished, placing on nothing")
		}
	}
	logger = logger.WithFields(log.Fields{
		"handle": obj.Handle,
		"mode":   cand.Mode,
		"parent": cand.StackParent,
	})

	if err := c.materialize(obj.Handle, s.Prototype); err != nil {
		logger.WithError(err).Warn("asset failed, placement rolled back")
		return OutcomeFailed, err
	}
	c.history.record(&action{kind: actionPlace, root: obj.Handle})

	logger.Info("object placed")
	c.bus.Publish(events.ObjectPlaced{
		Handle:      obj.Handle,
		Prototype:   obj.Prototype,
		Position:    obj.Pose.Position,
		Yaw:         obj.Pose.Yaw,
		StackParent: obj.RestingOn,
	})
	return OutcomeCommitted, nil
}

// CancelDrag discards the preview and returns to idle. It is safe to call
// at any time.
func (c *Controller) CancelDrag() {
	if c.session == nil {
		return
	}
	log.WithField("session", c.session.ID).Debug("drag cancelled")
	c.endSession()
}

func (c *Controller) endSession() {
	c.renderer.HidePreview()
	c.session = nil
	c.sel.EndDrag()
}

func (c *Controller) resolve(x, y float64) placement.Candidate {
	s := c.session
	s.pointerX, s.pointerY, s.hasPointer = x, y, true
	pick := c.picker.Pick(x, y, c.scene.Handles())
	s.Candidate = c.resolver.Resolve(pick, s.Preview.Footprint())
	return s.Candidate
}

// ---------------------------------------------------------------------------
// Assets
// ---------------------------------------------------------------------------

// materialize requests the visual for h. A synchronous failure rolls the
// object back and returns the error.
func (c *Controller) materialize(h scene.Handle, proto *catalog.Prototype) error {
	ready, err := c.assets.Request(h, proto)
	if err != nil {
		c.rollback(h)
		return fmt.Errorf("session: materialize %s %s: %w", proto.Name, h, err)
	}
	if !ready {
		c.pending[h] = true
		return nil
	}
	c.show(h)
	return nil
}

// Materialized completes an asynchronous asset request started for h. A
// non-nil err removes h and everything stacked on it. Completions for
// objects that are no longer pending are ignored.
func (c *Controller) Materialized(h scene.Handle, err error) {
	if !c.pending[h] {
		return
	}
	delete(c.pending, h)
	if err != nil {
		log.WithError(err).WithField("handle", h).Warn("asset failed, placement rolled back")
		c.rollback(h)
		return
	}
	c.show(h)
}

func (c *Controller) show(h scene.Handle) {
	c.scene.SetMaterialized(h, true)
	if o := c.scene.Get(h); o != nil {
		c.renderer.SetPose(h, o.Pose)
	}
}

func (c *Controller) rollback(h scene.Handle) {
	removed := c.removeSubtree(h)
	c.history.forget(removed)
	c.bus.Publish(events.ObjectsRemoved{Handles: removed, Reason: "asset-failure"})
}

// removeSubtree cascade-deletes h and tears down everything that refers
// to the removed objects.
func (c *Controller) removeSubtree(h scene.Handle) []scene.Handle {
	var shown []scene.Handle
	for _, id := range c.scene.Descendants(h) {
		if o := c.scene.Get(id); o != nil && o.Materialized {
			shown = append(shown, id)
		}
	}
	removed := c.scene.CascadeDelete(h)
	for _, id := range shown {
		c.renderer.Destroy(id)
	}
	for _, id := range removed {
		delete(c.pending, id)
	}
	if sel, ok := c.sel.Selected(); ok {
		c.sel.Forget(removed...)
		if _, still := c.sel.Selected(); !still {
			log.WithField("handle", sel).Debug("selection removed")
			c.bus.Publish(events.SelectionChanged{})
		}
	}
	return removed
}

// ---------------------------------------------------------------------------
// Selection and rotation
// ---------------------------------------------------------------------------

// SelectAt selects the placed object under (x, y). A click on nothing
// clears the selection. Selection is refused during a drag.
func (c *Controller) SelectAt(x, y float64) (scene.Handle, error) {
	if c.session != nil {
		return 0, selection.ErrDragActive
	}
	pick := c.picker.Pick(x, y, c.scene.Handles())
	if pick.Target != placement.TargetObject || !c.scene.Contains(pick.Object) {
		c.DeselectCurrent()
		return 0, nil
	}
	prev, _ := c.sel.Selected()
	if err := c.sel.Select(pick.Object); err != nil {
		return 0, err
	}
	if prev != pick.Object {
		log.WithField("handle", pick.Object).Debug("selected")
		c.bus.Publish(events.SelectionChanged{Handle: pick.Object})
	}
	return pick.Object, nil
}

// DeselectCurrent clears the selection.
func (c *Controller) DeselectCurrent() {
	if _, ok := c.sel.Selected(); !ok {
		return
	}
	c.sel.Deselect()
	c.bus.Publish(events.SelectionChanged{})
}

// RotateCurrentSelectionOrPreview turns the drag preview when dragging,
// otherwise the selected object, by a quarter turn. It returns the new
// yaw, or false when there was nothing to rotate.
func (c *Controller) RotateCurrentSelectionOrPreview() (geom.Yaw, bool) {
	if s := c.session; s != nil {
		yaw := c.sel.RotatePreview(s.Preview)
		if s.hasPointer {
			// The footprint changed, so beside offsets may have too.
			if _, err := c.UpdateDrag(s.pointerX, s.pointerY); err != nil {
				log.WithError(err).Warn("re-resolve after rotate")
			}
		}
		return yaw, true
	}
	yaw, ok := c.sel.RotateSelected()
	if !ok {
		return 0, false
	}
	h, _ := c.sel.Selected()
	if o := c.scene.Get(h); o != nil {
		c.renderer.SetPose(h, o.Pose)
	}
	c.bus.Publish(events.ObjectRotated{Handle: h, Yaw: yaw})
	return yaw, true
}

// ---------------------------------------------------------------------------
// Scene commands
// ---------------------------------------------------------------------------

// DeleteSelected removes the selected object and everything stacked on it
// and returns the removed handles. The deletion can be undone.
func (c *Controller) DeleteSelected() []scene.Handle {
	h, ok := c.sel.Selected()
	if !ok {
		return nil
	}
	snapshot := c.scene.Subtree(h)
	removed := c.removeSubtree(h)
	if len(removed) == 0 {
		return nil
	}
	c.history.record(&action{kind: actionDelete, root: h, snapshot: snapshot})

	log.WithFields(log.Fields{"handle": h, "removed": len(removed)}).Info("objects deleted")
	c.bus.Publish(events.ObjectsRemoved{Handles: removed, Reason: "delete"})
	return removed
}

// ResetAll removes every object, cancels any drag and clears the
// selection and history.
func (c *Controller) ResetAll() {
	c.CancelDrag()
	n := c.scene.Len()
	for _, h := range c.scene.Handles() {
		if o := c.scene.Get(h); o.Materialized {
			c.renderer.Destroy(h)
		}
	}
	c.scene.Clear()
	c.sel.Reset()
	c.history.clear()
	c.pending = make(map[scene.Handle]bool)

	log.WithField("removed", n).Info("scene reset")
	c.bus.Publish(events.SceneReset{Removed: n})
}

// ---------------------------------------------------------------------------
// Undo / redo
// ---------------------------------------------------------------------------

// Undo reverts the most recent placement or deletion.
func (c *Controller) Undo() error {
	for len(c.history.undo) > 0 {
		a := c.history.undo[len(c.history.undo)-1]
		c.history.undo = c.history.undo[:len(c.history.undo)-1]

		var err error
		switch a.kind {
		case actionPlace:
			err = c.takeOut(a, "undo")
		case actionDelete:
			err = c.putBack(a)
		}
		if errors.Is(err, scene.ErrUnknownObject) {
			// The objects left the scene some other way; skip the entry.
			continue
		}
		if err != nil {
			c.history.undo = append(c.history.undo, a)
			return err
		}
		c.history.redo = append(c.history.redo, a)
		return nil
	}
	return ErrNothingToUndo
}

// Redo re-applies the most recently undone action. Restoring objects is
// refused with ErrBlocked if their space has since been taken.
func (c *Controller) Redo() error {
	if len(c.history.redo) == 0 {
		return ErrNothingToRedo
	}
	a := c.history.redo[len(c.history.redo)-1]

	var err error
	switch a.kind {
	case actionPlace:
		err = c.putBack(a)
	case actionDelete:
		err = c.takeOut(a, "delete")
	}
	if errors.Is(err, scene.ErrUnknownObject) {
		c.history.redo = c.history.redo[:len(c.history.redo)-1]
		return err
	}
	if err != nil {
		return err
	}
	c.history.redo = c.history.redo[:len(c.history.redo)-1]
	c.history.undo = append(c.history.undo, a)
	return nil
}

// takeOut removes a's subtree from the scene, keeping a snapshot so it can
// be put back.
func (c *Controller) takeOut(a *action, reason string) error {
	if !c.scene.Contains(a.root) {
		return fmt.Errorf("session: %s %s: %w", reason, a.root, scene.ErrUnknownObject)
	}
	a.snapshot = c.scene.Subtree(a.root)
	removed := c.removeSubtree(a.root)
	log.WithFields(log.Fields{"handle": a.root, "removed": len(removed), "reason": reason}).Info("objects removed")
	c.bus.Publish(events.ObjectsRemoved{Handles: removed, Reason: reason})
	return nil
}

// putBack restores a's snapshot with the same handles, poses and
// stacking relations.
func (c *Controller) putBack(a *action) error {
	if len(a.snapshot) == 0 {
		return fmt.Errorf("session: restore %s: %w", a.root, scene.ErrUnknownObject)
	}
	handles := a.handles()
	root := a.snapshot[0]
	if root.RestingOn != 0 && !c.scene.Contains(root.RestingOn) {
		return fmt.Errorf("session: restore %s: parent %s is gone: %w", a.root, root.RestingOn, ErrBlocked)
	}
	excluding := append([]scene.Handle{root.RestingOn}, handles...)
	for i := range a.snapshot {
		o := &a.snapshot[i]
		if c.scene.Contains(o.Handle) {
			return fmt.Errorf("session: restore %s: %s already placed: %w", a.root, o.Handle, ErrBlocked)
		}
		if hits := c.validator.Collisions(o.Bounds(), excluding...); len(hits) > 0 {
			return fmt.Errorf("session: restore %s: collides with %v: %w", a.root, hits, ErrBlocked)
		}
	}

	for i := range a.snapshot {
		o := a.snapshot[i]
		o.Materialized = false
		if err := c.scene.Add(&o); err != nil {
			return err
		}
	}
	for _, o := range a.snapshot {
		if o.RestingOn == 0 {
			continue
		}
		if err := c.scene.Attach(o.Handle, o.RestingOn); err != nil {
			return err
		}
	}

	for _, o := range a.snapshot {
		proto, ok := c.catalog.Get(o.Prototype)
		if !ok {
			c.rollback(a.root)
			return fmt.Errorf("session: restore %s: %q: %w", o.Handle, o.Prototype, ErrUnknownPrototype)
		}
		if err := c.materialize(o.Handle, proto); err != nil {
			if c.scene.Contains(a.root) {
				c.rollback(a.root)
			}
			return err
		}
		c.bus.Publish(events.ObjectPlaced{
			Handle:      o.Handle,
			Prototype:   o.Prototype,
			Position:    o.Pose.Position,
			Yaw:         o.Pose.Yaw,
			StackParent: o.RestingOn,
		})
	}
	a.snapshot = nil
	log.WithFields(log.Fields{"handle": a.root, "restored": len(handles)}).Info("objects restored")
	return nil
}
