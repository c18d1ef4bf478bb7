package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/chazu/csgbox/pkg/compile"
	"github.com/chazu/csgbox/pkg/config"
	"github.com/chazu/csgbox/pkg/editor"
	"github.com/chazu/csgbox/pkg/engine"
	"github.com/chazu/csgbox/pkg/evaluate"
	"github.com/chazu/csgbox/pkg/forest"
	"github.com/chazu/csgbox/pkg/ident"
	"github.com/chazu/csgbox/pkg/kernel"
	"github.com/chazu/csgbox/pkg/kernel/sdfx"
	"github.com/chazu/csgbox/pkg/logging"
	"github.com/chazu/csgbox/pkg/metrics"
	"github.com/chazu/csgbox/pkg/picking"
	"github.com/chazu/csgbox/pkg/picking/raster"
	"github.com/chazu/csgbox/pkg/scene"
)

// Event names emitted to the frontend.
const (
	EventNotification = "csgbox:notification"
)

// App is the Wails backend. It exposes methods to the frontend via bindings.
type App struct {
	ctx     context.Context
	log     *slog.Logger
	session *editor.Session
	picker  *raster.Renderer
	engine  *engine.Engine
	kernel  kernel.Kernel
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Root     int       `json:"root"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// ScriptResult is the console output returned to the frontend.
type ScriptResult struct {
	Value  string          `json:"value"`
	Errors []EvalErrorData `json:"errors"`
	Roots  int             `json:"roots"`
}

// FrameData is one frame's shader input. Ops and Primitives are the packed
// GPU buffers; JSON carries them base64 encoded.
type FrameData struct {
	Frame      uint64   `json:"frame"`
	Ops        []byte   `json:"ops"`
	Primitives []byte   `json:"primitives"`
	OpCount    int      `json:"opCount"`
	Roots      int      `json:"roots"`
	Selection  []uint32 `json:"selection"`
	Mode       string   `json:"mode"`
	Picked     *uint32  `json:"picked"`
}

// NotificationData mirrors editor.Notification for the frontend.
type NotificationData struct {
	Kind  string   `json:"kind"`
	ID    uint32   `json:"id"`
	Op    string   `json:"op,omitempty"`
	IDs   []uint32 `json:"ids,omitempty"`
	Mode  string   `json:"mode,omitempty"`
	Error string   `json:"error,omitempty"`
}

// NewApp wires a session, its raster picking pass, the console engine and
// the sdfx kernel from cfg.
func NewApp(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) *App {
	log = logging.OrNop(log)
	a := &App{log: log}

	protocol := picking.New(picking.WithLogger(log))
	a.picker = raster.New(protocol, raster.WithPatch(cfg.Picking.Patch), raster.WithLogger(log))

	a.session = editor.New(
		editor.WithLogger(log),
		editor.WithMetrics(m),
		editor.WithProtocol(protocol),
		editor.WithRequester(a.picker),
		editor.WithNotifier(a.notify),
		editor.WithBoxDefaults(boxDefaults(cfg)),
		editor.WithIDBase(ident.ID(cfg.IDBase)),
		editor.WithDebug(debugFlag),
		editor.WithViewport(scene.Viewport{Width: cfg.Window.Width, Height: cfg.Window.Height}),
	)
	a.engine = newEngine(cfg, log, m)
	a.kernel = sdfx.New(sdfx.WithMeshCells(cfg.Mesh.Cells))
	return a
}

// startup is called by Wails on app startup. The context is saved so
// notifications can be emitted as events.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// shutdown waits for picking passes still in flight.
func (a *App) shutdown(ctx context.Context) {
	a.picker.Wait()
}

func (a *App) notify(n editor.Notification) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, EventNotification, toNotificationData(n))
}

func toNotificationData(n editor.Notification) NotificationData {
	d := NotificationData{Kind: n.Kind.String(), ID: n.ID.Uint32(), IDs: toUint32s(n.IDs)}
	switch n.Kind {
	case editor.NoteCombined, editor.NoteCombineFailed:
		d.Op = n.Op.String()
	case editor.NoteModeChanged:
		d.Mode = n.Mode.String()
	}
	if n.Err != nil {
		d.Error = n.Err.Error()
	}
	return d
}

func toUint32s(ids []ident.ID) []uint32 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = id.Uint32()
	}
	return out
}

func (a *App) frameCtx() context.Context {
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// Frame runs one frame stage for a cursor at (x, y) and returns the
// buffers to draw.
func (a *App) Frame(x, y float64) (FrameData, error) {
	res, err := a.session.Frame(a.frameCtx(), scene.Cursor{X: x, Y: y})
	if err != nil {
		return FrameData{}, err
	}
	ops, err := res.Program.MarshalBinary()
	if err != nil {
		return FrameData{}, err
	}
	fd := FrameData{
		Frame:      res.Frame,
		Ops:        ops,
		Primitives: compile.PackPrimitives(res.Records),
		OpCount:    len(res.Program.Ops),
		Roots:      len(res.Program.Roots),
		Selection:  toUint32s(res.Selection),
		Mode:       res.Mode.String(),
	}
	if fd.Selection == nil {
		fd.Selection = []uint32{}
	}
	if res.HasPick {
		id := res.Picked.Uint32()
		fd.Picked = &id
	}
	return fd, nil
}

// PlaceAt drops a default box where the cursor meets the ground plane.
// It returns -1 when the cursor misses the plane.
func (a *App) PlaceAt(x, y float64) (int64, error) {
	id, ok, err := a.session.PlaceAtCursor(scene.Cursor{X: x, Y: y})
	if err != nil || !ok {
		return -1, err
	}
	return int64(id), nil
}

// SetMode switches to "select", "place", "union-select" or
// "subtract-select".
func (a *App) SetMode(mode string) error {
	m, err := scene.ParseMode(mode)
	if err != nil {
		return err
	}
	a.session.SetMode(m)
	return nil
}

// Select applies a pick of id under the current mode's policy.
func (a *App) Select(id uint32) (bool, error) {
	return a.session.Select(ident.ID(id))
}

// Cancel drops back to select mode.
func (a *App) Cancel() {
	a.session.Cancel()
}

// Combine confirms a union or subtract of the two selected boxes.
func (a *App) Combine(kind string) (uint32, error) {
	var k forest.Kind
	switch kind {
	case "union":
		k = forest.KindUnion
	case "subtract":
		k = forest.KindSubtract
	default:
		return 0, fmt.Errorf("unknown operation %q", kind)
	}
	id, err := a.session.RequestCombine(k)
	return id.Uint32(), err
}

// Delete removes the hierarchy containing id.
func (a *App) Delete(id uint32) ([]uint32, error) {
	removed, err := a.session.Delete(ident.ID(id))
	return toUint32s(removed), err
}

// Paint recolors the hierarchy containing id.
func (a *App) Paint(id uint32, hex string) error {
	c, err := ident.ParseHex(hex)
	if err != nil {
		return err
	}
	return a.session.Paint(ident.ID(id), c)
}

// SetBlend sets the smoothing of the operation above id.
func (a *App) SetBlend(id uint32, k float64) error {
	return a.session.SetOperationBlend(ident.ID(id), float32(k))
}

func (a *App) Orbit(dAzimuth, dElevation float64) { a.session.Orbit(dAzimuth, dElevation) }
func (a *App) Zoom(delta float64)                 { a.session.Zoom(delta) }
func (a *App) Pan(right, forward float64)         { a.session.Pan(right, forward) }

// Resize tracks the canvas size in pixels.
func (a *App) Resize(width, height int) {
	a.session.Resize(scene.Viewport{Width: width, Height: height})
}

// Reset clears the scene.
func (a *App) Reset() {
	a.session.Reset()
}

// RunScript evaluates console source against the live scene.
func (a *App) RunScript(source string) ScriptResult {
	result := ScriptResult{Errors: []EvalErrorData{}}

	v, evalErrs, err := a.engine.Exec(source, a.session)
	if err != nil {
		a.log.Error("script fatal error", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
	}
	for _, e := range evalErrs {
		result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
	}
	result.Value = v
	result.Roots = a.session.Roots()
	return result
}

// Meshes tessellates every hierarchy for the preview pane.
func (a *App) Meshes() ([]MeshData, error) {
	prog, prims, err := a.session.Compile()
	if err != nil {
		return nil, err
	}
	meshes, err := evaluate.Meshes(prog, prims, a.kernel)
	if err != nil {
		return nil, err
	}
	out := make([]MeshData, 0, len(meshes))
	for _, m := range meshes {
		out = append(out, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			Root:     m.Root,
			Color:    ident.RGBFromBytes(m.Color).Hex(),
		})
	}
	return out, nil
}

// ExportSTL writes the whole scene to path.
func (a *App) ExportSTL(path string) error {
	prog, prims, err := a.session.Compile()
	if err != nil {
		return err
	}
	return evaluate.WriteSTL(prog, prims, a.kernel, path)
}
