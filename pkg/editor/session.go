// Package editor ties the composition forest, the primitive store and the
// picking protocol into one editing session.
//
// A Session serializes every forest mutation against frame compilation
// with a single RWMutex: a Frame never observes a half-finished combine,
// and the program it compiles always matches the primitive set it was
// compiled against.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/csgbox/pkg/compile"
	"github.com/chazu/csgbox/pkg/forest"
	"github.com/chazu/csgbox/pkg/ident"
	"github.com/chazu/csgbox/pkg/logging"
	"github.com/chazu/csgbox/pkg/metrics"
	"github.com/chazu/csgbox/pkg/picking"
	"github.com/chazu/csgbox/pkg/scene"
)

var (
	// ErrAlreadyCombined is returned when both selected boxes already
	// belong to the same hierarchy. The forest is unchanged.
	ErrAlreadyCombined = forest.ErrAlreadyCombined

	// ErrWrongMode is returned by RequestCombine outside the matching
	// select mode.
	ErrWrongMode = errors.New("editor: not in the matching select mode")

	// ErrSelectionIncomplete is returned by RequestCombine unless exactly
	// two boxes are selected.
	ErrSelectionIncomplete = errors.New("editor: combine needs exactly two selected boxes")

	// ErrUnknownID is returned for ids that name no live primitive.
	ErrUnknownID = errors.New("editor: unknown id")
)

// BoxDefaults describes newly placed boxes.
type BoxDefaults struct {
	Scale    float64
	Color    ident.RGB
	Rounding float32
}

// DefaultBox is a light grey unit cube with slightly rounded edges.
var DefaultBox = BoxDefaults{Scale: 1, Color: ident.RGB{0.8, 0.8, 0.8}, Rounding: 0.1}

// Session is one editing session. All methods are safe for concurrent use.
type Session struct {
	mu     sync.RWMutex
	store  *scene.Store
	forest *forest.Forest
	ids    *ident.Allocator
	idBase ident.ID
	sel    scene.Selection
	mode   scene.Mode
	cam    scene.Camera
	vp     scene.Viewport
	box    BoxDefaults
	frame  uint64
	debug  bool

	pick    *picking.Protocol
	req     picking.Requester
	log     *slog.Logger
	metrics *metrics.Metrics
	notify  Notifier
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = logging.OrNop(l) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRequester sets the picking pass issued at the end of every frame.
// Without one, picks only arrive through Protocol().Deliver.
func WithRequester(r picking.Requester) Option {
	return func(s *Session) { s.req = r }
}

// WithProtocol shares an existing picking protocol, typically the one a
// Requester was built to deliver to.
func WithProtocol(p *picking.Protocol) Option {
	return func(s *Session) {
		if p != nil {
			s.pick = p
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notify = n }
}

func WithBoxDefaults(b BoxDefaults) Option {
	return func(s *Session) { s.box = b }
}

// WithIDBase starts id allocation at base.
func WithIDBase(base ident.ID) Option {
	return func(s *Session) { s.idBase = base }
}

func WithViewport(vp scene.Viewport) Option {
	return func(s *Session) { s.vp = vp }
}

// WithDebug validates the forest partition after every mutation and logs
// any violation.
func WithDebug(on bool) Option {
	return func(s *Session) { s.debug = on }
}

// New returns an empty session in select mode.
func New(opts ...Option) *Session {
	s := &Session{
		store:  scene.NewStore(),
		forest: forest.New(),
		cam:    scene.DefaultCamera(),
		vp:     scene.Viewport{Width: 1280, Height: 720},
		box:    DefaultBox,
		log:    logging.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.pick == nil {
		s.pick = picking.New(picking.WithLogger(s.log))
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	s.ids = ident.NewAllocator(s.idBase)
	return s
}

// BoxDefaults returns the description of newly placed boxes.
func (s *Session) BoxDefaults() BoxDefaults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.box
}

// Protocol returns the picking protocol samples are delivered to.
func (s *Session) Protocol() *picking.Protocol {
	return s.pick
}

// Metrics returns the session's collectors.
func (s *Session) Metrics() *metrics.Metrics {
	return s.metrics
}

func (s *Session) publish(notes ...Notification) {
	if s.notify == nil {
		return
	}
	for _, n := range notes {
		s.notify(n)
	}
}

// checkLocked runs the partition validator in debug mode.
func (s *Session) checkLocked(after string) {
	if !s.debug {
		return
	}
	for _, v := range s.forest.Validate(s.store.IDs()) {
		s.log.Error("forest invariant violated", "after", after, "id", v.ID, "problem", v.Message)
	}
}

// nextIDLocked allocates an id not used by any primitive or operation.
func (s *Session) nextIDLocked() (ident.ID, error) {
	for {
		id, err := s.ids.Next()
		if err != nil {
			return 0, err
		}
		if !s.store.Has(id) && !s.forest.Has(id) {
			return id, nil
		}
	}
}

// PlaceBox adds a box centered at pos with the session's defaults and
// returns its id. The box starts as its own root.
func (s *Session) PlaceBox(pos v3.Vec) (ident.ID, error) {
	s.mu.Lock()
	id, err := s.placeLocked(scene.Primitive{
		Position: pos,
		Scale:    v3.Vec{X: s.box.Scale, Y: s.box.Scale, Z: s.box.Scale},
		Color:    s.box.Color,
		Rounding: s.box.Rounding,
	})
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	s.publish(Notification{Kind: NotePlaced, ID: id})
	return id, nil
}

// Place adds p with a freshly allocated id, ignoring p.ID.
func (s *Session) Place(p scene.Primitive) (ident.ID, error) {
	s.mu.Lock()
	id, err := s.placeLocked(p)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	s.publish(Notification{Kind: NotePlaced, ID: id})
	return id, nil
}

func (s *Session) placeLocked(p scene.Primitive) (ident.ID, error) {
	id, err := s.nextIDLocked()
	if err != nil {
		return 0, fmt.Errorf("editor: place: %w", err)
	}
	p.ID = id
	if err := s.store.Add(p); err != nil {
		return 0, fmt.Errorf("editor: place: %w", err)
	}
	s.forest.PushLeaf(id)
	s.metrics.Placements.Inc()
	s.log.Debug("box placed", "id", id, "pos", p.Position)
	s.checkLocked("place")
	return id, nil
}

// PlaceAtCursor places a default box where the cursor ray meets the ground
// plane. ok is false when the ray misses the plane.
func (s *Session) PlaceAtCursor(cur scene.Cursor) (id ident.ID, ok bool, err error) {
	s.mu.RLock()
	cam, vp := s.cam, s.vp
	s.mu.RUnlock()

	if !cur.Inside(vp) {
		return 0, false, nil
	}
	hit, ok := cam.GroundHit(cur, vp)
	if !ok {
		return 0, false, nil
	}
	id, err = s.PlaceBox(hit)
	return id, err == nil, err
}

// Select records a pick of id under the current mode's policy and reports
// whether the selection changed.
func (s *Session) Select(id ident.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.Has(id) {
		return false, fmt.Errorf("%w: %s", ErrUnknownID, id)
	}
	return s.sel.Apply(s.mode.Policy(), id), nil
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.sel.Clear()
	s.mu.Unlock()
}

// Selection returns the selected ids in pick order.
func (s *Session) Selection() []ident.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel.IDs()
}

// SetMode switches the interaction mode. Entering a combine mode starts a
// fresh selection.
func (s *Session) SetMode(m scene.Mode) {
	s.mu.Lock()
	changed := s.mode != m
	s.setModeLocked(m)
	s.mu.Unlock()
	if changed {
		s.publish(Notification{Kind: NoteModeChanged, Mode: m})
	}
}

func (s *Session) setModeLocked(m scene.Mode) {
	if m == s.mode {
		return
	}
	if m == scene.ModeUnionSelect || m == scene.ModeSubtractSelect {
		s.sel.Clear()
	}
	s.mode = m
}

// Cancel drops back to select mode, as Escape does.
func (s *Session) Cancel() {
	s.SetMode(scene.ModeSelect)
}

// Mode returns the current interaction mode.
func (s *Session) Mode() scene.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Delete removes the whole hierarchy containing leaf together with its
// primitives and returns the removed primitive ids.
func (s *Session) Delete(leaf ident.ID) ([]ident.ID, error) {
	s.mu.Lock()
	removed, err := s.forest.RemoveTree(leaf)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("editor: delete: %w", err)
	}
	for _, id := range removed {
		if err := s.store.Remove(id); err != nil {
			s.log.Warn("deleted leaf had no primitive", "id", id)
		}
		s.sel.Remove(id)
	}
	s.metrics.Deletions.Inc()
	s.log.Info("hierarchy deleted", "leaf", leaf, "primitives", len(removed))
	s.checkLocked("delete")
	s.mu.Unlock()

	s.publish(Notification{Kind: NoteDeleted, ID: leaf, IDs: removed})
	return removed, nil
}

// Move offsets primitive id by delta.
func (s *Session) Move(id ident.ID, delta v3.Vec) error {
	s.mu.Lock()
	err := s.store.Update(id, func(p *scene.Primitive) {
		p.Position = p.Position.Add(delta)
	})
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("editor: move: %w", err)
	}
	s.publish(Notification{Kind: NoteEdited, ID: id})
	return nil
}

// MoveSelected offsets every selected primitive by delta and returns how
// many moved.
func (s *Session) MoveSelected(delta v3.Vec) int {
	s.mu.Lock()
	ids := s.sel.IDs()
	moved := 0
	for _, id := range ids {
		if err := s.store.Update(id, func(p *scene.Primitive) {
			p.Position = p.Position.Add(delta)
		}); err == nil {
			moved++
		}
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.publish(Notification{Kind: NoteEdited, ID: id})
	}
	return moved
}

// UpdatePrimitive applies fn to primitive id. fn must not keep p.
func (s *Session) UpdatePrimitive(id ident.ID, fn func(p *scene.Primitive)) error {
	s.mu.Lock()
	err := s.store.Update(id, fn)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("editor: update: %w", err)
	}
	s.publish(Notification{Kind: NoteEdited, ID: id})
	return nil
}

// SetOperationColor sets the color of the top operation of leaf's
// hierarchy.
func (s *Session) SetOperationColor(leaf ident.ID, c ident.RGB) error {
	return s.editOperation(leaf, func(op *forest.Operation) { op.Color = c })
}

// SetOperationBlend sets the blend of the top operation of leaf's
// hierarchy, clamped to [0, 1].
func (s *Session) SetOperationBlend(leaf ident.ID, blend float32) error {
	return s.editOperation(leaf, func(op *forest.Operation) { op.SetBlend(blend) })
}

func (s *Session) editOperation(leaf ident.ID, fn func(op *forest.Operation)) error {
	s.mu.Lock()
	op, err := s.forest.FindOperation(leaf)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("editor: %w", err)
	}
	fn(op)
	id := op.ID
	s.mu.Unlock()
	s.publish(Notification{Kind: NoteEdited, ID: id})
	return nil
}

// Paint recolors what leaf's hierarchy displays as: the top operation for
// a composite, the primitive itself for a bare leaf.
func (s *Session) Paint(leaf ident.ID, c ident.RGB) error {
	err := s.SetOperationColor(leaf, c)
	if !errors.Is(err, forest.ErrNotComposite) {
		return err
	}
	return s.UpdatePrimitive(leaf, func(p *scene.Primitive) { p.Color = c })
}

// Reset discards every primitive and hierarchy and restarts id
// allocation. Camera and viewport are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	s.store = scene.NewStore()
	s.forest = forest.New()
	s.ids = ident.NewAllocator(s.idBase)
	s.sel.Clear()
	s.mode = scene.ModeSelect
	s.mu.Unlock()
	s.publish(Notification{Kind: NoteReset})
}

// Validate checks the forest partition against the live primitives.
func (s *Session) Validate() []forest.ValidationError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forest.Validate(s.store.IDs())
}

// Primitive returns a copy of primitive id.
func (s *Session) Primitive(id ident.ID) (scene.Primitive, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Get(id)
}

// Primitives returns copies of the live primitives ordered by id.
func (s *Session) Primitives() []scene.Primitive {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Sorted()
}

// Roots returns the number of independent hierarchies.
func (s *Session) Roots() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forest.Len()
}

// Forest returns a deep copy of the forest.
func (s *Session) Forest() *forest.Forest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forest.Clone()
}

// Compile compiles the current forest without running a frame stage.
// prims is in the program's primitive index order.
func (s *Session) Compile() (prog *compile.Program, prims []scene.Primitive, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prog, err = compile.Compile(s.forest, s.store)
	if err != nil {
		return nil, nil, fmt.Errorf("editor: %w", err)
	}
	return prog, s.store.Sorted(), nil
}
