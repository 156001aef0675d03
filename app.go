package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"sync"

	"github.com/EngoEngine/engo"
	"github.com/chazu/furnish/pkg/catalog"
	"github.com/chazu/furnish/pkg/config"
	"github.com/chazu/furnish/pkg/engine"
	"github.com/chazu/furnish/pkg/events"
	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/kernel"
	"github.com/chazu/furnish/pkg/kernel/sdfx"
	"github.com/chazu/furnish/pkg/picking"
	"github.com/chazu/furnish/pkg/placement"
	"github.com/chazu/furnish/pkg/scene"
	"github.com/chazu/furnish/pkg/session"
	"github.com/chazu/furnish/pkg/snapshot"
	"github.com/chazu/furnish/pkg/tessellate"
	log "github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Frontend event names.
const (
	EventPose      = "pose"
	EventPreview   = "preview"
	EventDestroy   = "destroy"
	EventHighlight = "highlight"
	EventScene     = "scene"
	EventAsset     = "asset"
)

// emitFunc sends an event to the frontend.
type emitFunc func(name string, data ...interface{})

// App is the Wails backend. It exposes methods to the frontend via bindings.
// Wails calls bindings from concurrent goroutines, so every binding takes mu.
type App struct {
	ctx context.Context

	mu     sync.Mutex
	cfg    config.Config
	ctrl   *session.Controller
	engine *engine.Engine
	kernel kernel.Kernel
	picker *picking.Picker
	emit   emitFunc
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Handle   uint64    `json:"handle"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	Opacity  float64   `json:"opacity"`
}

// PoseData is a placed object's pose as the frontend sees it.
type PoseData struct {
	Handle   uint64     `json:"handle"`
	Position [3]float64 `json:"position"`
	Yaw      int        `json:"yaw"`
}

// PreviewData describes the drag preview. Session identifies the drag it
// belongs to and is empty once the preview is hidden.
type PreviewData struct {
	Session   string     `json:"session,omitempty"`
	Prototype string     `json:"prototype"`
	Position  [3]float64 `json:"position"`
	Yaw       int        `json:"yaw"`
	Visible   bool       `json:"visible"`
	Opacity   float64    `json:"opacity"`
}

// CandidateData is the resolved placement under the pointer.
type CandidateData struct {
	Session     string     `json:"session,omitempty"`
	Mode        string     `json:"mode"`
	Valid       bool       `json:"valid"`
	Position    [3]float64 `json:"position"`
	StackParent uint64     `json:"stackParent"`
	Error       string     `json:"error,omitempty"`
}

// ActionResult reports whether a command took effect.
type ActionResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// DropResult reports how a drag ended.
type DropResult struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// SelectResult reports the object selected by a click, zero for none.
type SelectResult struct {
	Handle uint64 `json:"handle"`
	Error  string `json:"error,omitempty"`
}

// RotateResult reports the new yaw after a rotate.
type RotateResult struct {
	Yaw int  `json:"yaw"`
	OK  bool `json:"ok"`
}

// PrototypeData is a palette entry.
type PrototypeData struct {
	Name  string     `json:"name"`
	Kind  string     `json:"kind"`
	Size  [3]float64 `json:"size"`
	Color string     `json:"color"`
	Path  string     `json:"path,omitempty"`
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// ScriptResult is the full result of a console script returned to the
// frontend.
type ScriptResult struct {
	Steps  []engine.Step   `json:"steps"`
	Value  string          `json:"value"`
	Errors []EvalErrorData `json:"errors"`
	Meshes []MeshData      `json:"meshes"`
}

// MeshResult holds every placed object's mesh plus the preview.
type MeshResult struct {
	Meshes []MeshData `json:"meshes"`
	Errors []string   `json:"errors"`
}

// SnapshotResult is a base64 WebP floor plan.
type SnapshotResult struct {
	WebP   string `json:"webp"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Error  string `json:"error,omitempty"`
}

// NewApp creates a new App over cfg with the sdfx kernel.
func NewApp(cfg config.Config, cat *catalog.Catalog) *App {
	a := &App{
		cfg:    cfg,
		kernel: sdfx.New(),
	}
	bus := events.NewBus()
	a.picker = picking.NewPicker(cfg.PickCamera(), cfg.Camera.FloorSize, nil)
	a.ctrl = session.NewController(cat, a.picker, &wailsRenderer{app: a}, &modelAssets{app: a}, bus, cfg.Options())
	a.picker.Bounds = a.ctrl.Scene()
	a.engine = engine.NewEngine(a.ctrl)

	bus.SubscribeAll(func(m engo.Message) {
		a.send(EventScene, m.Type(), m)
	})
	return a
}

// startup is called by Wails on app startup. The context is saved
// so events can be emitted to the frontend.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.mu.Lock()
	a.emit = func(name string, data ...interface{}) {
		runtime.EventsEmit(ctx, name, data...)
	}
	a.mu.Unlock()
	log.Info("furnish started")
}

// send emits to the frontend when one is attached. Callers hold mu.
func (a *App) send(name string, data ...interface{}) {
	if a.emit != nil {
		a.emit(name, data...)
	}
}

// ---------------------------------------------------------------------------
// Rendering and assets ports
// ---------------------------------------------------------------------------

// wailsRenderer forwards controller rendering calls to the frontend as
// events. It runs inside bindings, so mu is already held.
type wailsRenderer struct {
	app *App
}

func (r *wailsRenderer) ShowPreview(p *session.Preview) {
	d := previewData(p)
	d.Session = r.app.sessionID()
	r.app.send(EventPreview, d)
}

func (r *wailsRenderer) HidePreview() {
	r.app.send(EventPreview, PreviewData{})
}

func (r *wailsRenderer) SetPose(h scene.Handle, pose scene.Pose) {
	r.app.send(EventPose, poseData(h, pose))
}

func (r *wailsRenderer) Destroy(h scene.Handle) {
	r.app.send(EventDestroy, uint64(h))
}

func (r *wailsRenderer) SetHighlight(h scene.Handle, on bool) {
	r.app.send(EventHighlight, uint64(h), on)
}

// modelAssets builds primitives with the kernel straight away. Models are
// loaded by the frontend from their path, which reports back through
// AssetLoaded. Without a frontend, models stand in as their bounding box.
type modelAssets struct {
	app *App
}

func (m *modelAssets) Request(h scene.Handle, proto *catalog.Prototype) (bool, error) {
	if proto.Kind == catalog.KindModel && proto.Path != "" && m.app.emit != nil {
		m.app.send(EventAsset, uint64(h), proto.Path)
		return false, nil
	}
	if _, err := proto.Solid(m.app.kernel); err != nil {
		return false, err
	}
	return true, nil
}

// sessionID names the active drag, or "" when none is running.
func (a *App) sessionID() string {
	if s := a.ctrl.Session(); s != nil {
		return s.ID
	}
	return ""
}

func vec3(v geom.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func poseData(h scene.Handle, pose scene.Pose) PoseData {
	return PoseData{Handle: uint64(h), Position: vec3(pose.Position), Yaw: int(pose.Yaw)}
}

func previewData(p *session.Preview) PreviewData {
	return PreviewData{
		Prototype: p.Prototype.Name,
		Position:  vec3(p.Pose.Position),
		Yaw:       int(p.Pose.Yaw),
		Visible:   p.Visible,
		Opacity:   p.Opacity,
	}
}

func candidateData(c placement.Candidate) CandidateData {
	return CandidateData{
		Mode:        c.Mode.String(),
		Valid:       c.Valid,
		Position:    vec3(c.Position),
		StackParent: uint64(c.StackParent),
	}
}

func actionResult(err error) ActionResult {
	if err != nil {
		return ActionResult{Error: err.Error()}
	}
	return ActionResult{OK: true}
}

// ---------------------------------------------------------------------------
// Bindings
// ---------------------------------------------------------------------------

// Prototypes lists the palette.
func (a *App) Prototypes() []PrototypeData {
	a.mu.Lock()
	defer a.mu.Unlock()

	cat := a.ctrl.Catalog()
	out := make([]PrototypeData, 0, cat.Len())
	for _, name := range cat.Names() {
		p, _ := cat.Get(name)
		out = append(out, PrototypeData{
			Name:  p.Name,
			Kind:  p.Kind.String(),
			Size:  vec3(p.Extent()),
			Color: p.Color,
			Path:  p.Path,
		})
	}
	return out
}

// SetViewport tells the picker the canvas size in pixels.
func (a *App) SetViewport(width, height int) ActionResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	if width <= 0 || height <= 0 {
		return ActionResult{Error: "viewport must be positive"}
	}
	a.picker.Camera.Width = width
	a.picker.Camera.Height = height
	return ActionResult{OK: true}
}

// StartDrag begins dragging the named prototype from the palette.
func (a *App) StartDrag(prototype string) ActionResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return actionResult(a.ctrl.StartDrag(prototype))
}

// UpdateDrag moves the preview to the candidate under (x, y).
func (a *App) UpdateDrag(x, y float64) CandidateData {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.ctrl.UpdateDrag(x, y)
	if err != nil {
		return CandidateData{Mode: placement.ModeNone.String(), Error: err.Error()}
	}
	d := candidateData(c)
	d.Session = a.sessionID()
	return d
}

// EndDrag drops the preview at (x, y).
func (a *App) EndDrag(x, y float64) DropResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out, err := a.ctrl.EndDrag(x, y)
	res := DropResult{Outcome: out.String()}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// CancelDrag discards the drag without placing anything.
func (a *App) CancelDrag() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctrl.CancelDrag()
}

// AssetLoaded completes a model load started by an asset event. An
// empty message means success.
func (a *App) AssetLoaded(handle uint64, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var err error
	if message != "" {
		err = errors.New(message)
	}
	a.ctrl.Materialized(scene.Handle(handle), err)
}

// SelectAt selects the object under (x, y).
func (a *App) SelectAt(x, y float64) SelectResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, err := a.ctrl.SelectAt(x, y)
	if err != nil {
		return SelectResult{Error: err.Error()}
	}
	return SelectResult{Handle: uint64(h)}
}

// DeselectCurrent clears the selection.
func (a *App) DeselectCurrent() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctrl.DeselectCurrent()
}

// Rotate turns the preview or the selected object a quarter turn.
func (a *App) Rotate() RotateResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	yaw, ok := a.ctrl.RotateCurrentSelectionOrPreview()
	return RotateResult{Yaw: int(yaw), OK: ok}
}

// DeleteSelected removes the selection and everything stacked on it.
func (a *App) DeleteSelected() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := a.ctrl.DeleteSelected()
	out := make([]uint64, len(removed))
	for i, h := range removed {
		out[i] = uint64(h)
	}
	return out
}

// ResetAll clears the room.
func (a *App) ResetAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctrl.ResetAll()
}

// Undo reverts the last placement or deletion.
func (a *App) Undo() ActionResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return actionResult(a.ctrl.Undo())
}

// Redo reapplies the last undone command.
func (a *App) Redo() ActionResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return actionResult(a.ctrl.Redo())
}

// Meshes tessellates the room and the visible preview.
func (a *App) Meshes() MeshResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.meshes()
}

func (a *App) meshes() MeshResult {
	res := MeshResult{Meshes: []MeshData{}, Errors: []string{}}
	cat := a.ctrl.Catalog()

	meshes, err := tessellate.Tessellate(a.ctrl.Scene(), cat, a.kernel)
	if err != nil {
		log.WithError(err).Error("tessellate")
		res.Errors = append(res.Errors, "tessellation failed: "+err.Error())
		return res
	}
	for _, m := range meshes {
		res.Meshes = append(res.Meshes, meshData(m, cat, 1))
	}

	if s := a.ctrl.Session(); s != nil {
		m, err := tessellate.Preview(a.kernel, s.Preview)
		if err != nil {
			res.Errors = append(res.Errors, "preview: "+err.Error())
		} else if m != nil {
			res.Meshes = append(res.Meshes, meshData(m, cat, s.Preview.Opacity))
		}
	}
	return res
}

func meshData(m *kernel.Mesh, cat *catalog.Catalog, opacity float64) MeshData {
	color := ""
	if p, ok := cat.Get(m.Name); ok {
		color = p.Color
	}
	return MeshData{
		Vertices: m.Vertices,
		Normals:  m.Normals,
		Indices:  m.Indices,
		Handle:   m.Handle,
		Name:     m.Name,
		Color:    color,
		Opacity:  opacity,
	}
}

// Snapshot draws the floor plan as a base64 WebP image.
func (a *App) Snapshot() SnapshotResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	img, err := snapshot.Render(a.ctrl.Scene(), a.ctrl.Catalog(), a.cfg.SnapshotOptions())
	if err != nil {
		return SnapshotResult{Error: err.Error()}
	}
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, img); err != nil {
		return SnapshotResult{Error: err.Error()}
	}
	b := img.Bounds()
	return SnapshotResult{
		WebP:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:  b.Dx(),
		Height: b.Dy(),
	}
}

// RunScript evaluates console source against the room and returns the
// steps it took plus the resulting meshes.
func (a *App) RunScript(source string) ScriptResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := ScriptResult{
		Steps:  []engine.Step{},
		Errors: []EvalErrorData{},
		Meshes: []MeshData{},
	}

	res, evalErrs, err := a.engine.Run(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		log.WithError(err).Error("script fatal error")
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
	}
	for _, e := range evalErrs {
		result.Errors = append(result.Errors, EvalErrorData{
			Line:    e.Line,
			Col:     e.Col,
			Message: e.Message,
		})
	}
	if res != nil {
		result.Steps = append(result.Steps, res.Steps...)
		result.Value = res.Value
	}

	// Commands before an error stay applied, so the room is always sent.
	m := a.meshes()
	result.Meshes = m.Meshes
	for _, e := range m.Errors {
		result.Errors = append(result.Errors, EvalErrorData{Message: e})
	}
	return result
}
