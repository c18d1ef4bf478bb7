package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/csgbox/pkg/compile"
	"github.com/chazu/csgbox/pkg/forest"
	"github.com/chazu/csgbox/pkg/ident"
	"github.com/chazu/csgbox/pkg/picking"
	"github.com/chazu/csgbox/pkg/picking/raster"
	"github.com/chazu/csgbox/pkg/scene"
)

// recorder collects notifications.
type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) notify(n Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *recorder) kinds() []NoteKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NoteKind, len(r.notes))
	for i, n := range r.notes {
		out[i] = n.Kind
	}
	return out
}

func (r *recorder) last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notes[len(r.notes)-1]
}

func placeN(t *testing.T, s *Session, n int) []ident.ID {
	t.Helper()
	ids := make([]ident.ID, n)
	for i := range ids {
		id, err := s.PlaceBox(v3.Vec{X: float64(i) * 2})
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func selectPair(t *testing.T, s *Session, kind forest.Kind, a, b ident.ID) {
	t.Helper()
	s.SetMode(selectMode(kind))
	for _, id := range []ident.ID{a, b} {
		changed, err := s.Select(id)
		require.NoError(t, err)
		require.True(t, changed)
	}
}

func TestPlaceBox(t *testing.T) {
	s := New(WithBoxDefaults(BoxDefaults{Scale: 2, Color: ident.RGB{1, 0, 0}, Rounding: 0.5}))
	ids := placeN(t, s, 3)

	assert.Equal(t, []ident.ID{0, 1, 2}, ids)
	assert.Equal(t, 3, s.Roots())

	p, ok := s.Primitive(1)
	require.True(t, ok)
	assert.Equal(t, v3.Vec{X: 2}, p.Position)
	assert.Equal(t, v3.Vec{X: 2, Y: 2, Z: 2}, p.Scale)
	assert.Equal(t, ident.RGB{1, 0, 0}, p.Color)
	assert.Equal(t, float32(0.5), p.Rounding)
	assert.Equal(t, 3.0, testutil.ToFloat64(s.Metrics().Placements))
}

func TestIDBase(t *testing.T) {
	s := New(WithIDBase(100))
	ids := placeN(t, s, 2)
	assert.Equal(t, []ident.ID{100, 101}, ids)
}

func TestSelectFollowsModePolicy(t *testing.T) {
	s := New()
	ids := placeN(t, s, 3)

	// Select mode replaces.
	_, err := s.Select(ids[0])
	require.NoError(t, err)
	_, err = s.Select(ids[1])
	require.NoError(t, err)
	assert.Equal(t, []ident.ID{ids[1]}, s.Selection())

	// Place mode ignores picks.
	s.SetMode(scene.ModePlaceGeometry)
	changed, err := s.Select(ids[2])
	require.NoError(t, err)
	assert.False(t, changed)

	// Union select starts fresh and keeps pick order up to two.
	s.SetMode(scene.ModeUnionSelect)
	assert.Empty(t, s.Selection())
	for _, id := range []ident.ID{ids[2], ids[0], ids[1]} {
		_, err := s.Select(id)
		require.NoError(t, err)
	}
	assert.Equal(t, []ident.ID{ids[2], ids[0]}, s.Selection())

	_, err = s.Select(99)
	assert.ErrorIs(t, err, ErrUnknownID)
}

func TestRequestCombine(t *testing.T) {
	rec := &recorder{}
	s := New(WithNotifier(rec.notify))
	ids := placeN(t, s, 3)
	selectPair(t, s, forest.KindUnion, ids[0], ids[1])

	op, err := s.RequestCombine(forest.KindUnion)
	require.NoError(t, err)

	// Operations draw from the same id space as primitives.
	assert.Equal(t, ident.ID(3), op)
	assert.Equal(t, 2, s.Roots())
	assert.Equal(t, scene.ModeSelect, s.Mode())
	assert.Empty(t, s.Selection())
	assert.Empty(t, s.Validate())
	assert.Contains(t, rec.kinds(), NoteCombined)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics().Combines.WithLabelValues("union", "ok")))
}

func TestRequestCombineAlreadyCombined(t *testing.T) {
	rec := &recorder{}
	s := New(WithNotifier(rec.notify))
	ids := placeN(t, s, 2)
	_, err := s.Combine(forest.KindUnion, ids[0], ids[1])
	require.NoError(t, err)

	selectPair(t, s, forest.KindSubtract, ids[1], ids[0])
	_, err = s.RequestCombine(forest.KindSubtract)
	require.ErrorIs(t, err, ErrAlreadyCombined)

	// The request is spent either way.
	assert.Equal(t, scene.ModeSelect, s.Mode())
	assert.Empty(t, s.Selection())
	assert.Equal(t, 1, s.Roots())
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics().Combines.WithLabelValues("subtract", "already_combined")))

	kinds := rec.kinds()
	assert.Contains(t, kinds, NoteCombineFailed)
}

func TestRejectedCombineKeepsNextID(t *testing.T) {
	s := New()
	ids := placeN(t, s, 3)
	op, err := s.Combine(forest.KindUnion, ids[0], ids[1])
	require.NoError(t, err)
	require.Equal(t, ident.ID(3), op)

	_, err = s.Combine(forest.KindUnion, ids[0], ids[1])
	require.ErrorIs(t, err, ErrAlreadyCombined)

	op, err = s.Combine(forest.KindSubtract, ids[0], ids[2])
	require.NoError(t, err)
	assert.Equal(t, ident.ID(4), op)

	next, err := s.PlaceBox(v3.Vec{})
	require.NoError(t, err)
	assert.Equal(t, ident.ID(5), next)
}

func TestRequestCombinePreconditions(t *testing.T) {
	s := New()
	ids := placeN(t, s, 2)

	_, err := s.RequestCombine(forest.KindUnion)
	assert.ErrorIs(t, err, ErrWrongMode)

	s.SetMode(scene.ModeUnionSelect)
	_, err = s.Select(ids[0])
	require.NoError(t, err)
	_, err = s.RequestCombine(forest.KindUnion)
	assert.ErrorIs(t, err, ErrSelectionIncomplete)

	// Incomplete requests leave the mode and selection alone.
	assert.Equal(t, scene.ModeUnionSelect, s.Mode())
	assert.Equal(t, []ident.ID{ids[0]}, s.Selection())

	_, err = s.RequestCombine(forest.KindSubtract)
	assert.ErrorIs(t, err, ErrWrongMode)
}

func TestCombineUnknownLeaf(t *testing.T) {
	s := New()
	ids := placeN(t, s, 1)
	_, err := s.Combine(forest.KindUnion, ids[0], 42)
	assert.ErrorIs(t, err, ErrUnknownID)
	assert.Equal(t, 1, s.Roots())
}

func TestDelete(t *testing.T) {
	s := New()
	ids := placeN(t, s, 3)
	_, err := s.Combine(forest.KindUnion, ids[0], ids[1])
	require.NoError(t, err)
	_, err = s.Select(ids[0])
	require.NoError(t, err)

	removed, err := s.Delete(ids[1])
	require.NoError(t, err)
	assert.ElementsMatch(t, []ident.ID{ids[0], ids[1]}, removed)
	assert.Equal(t, 1, s.Roots())
	assert.Len(t, s.Primitives(), 1)
	assert.Empty(t, s.Selection())
	assert.Empty(t, s.Validate())

	_, err = s.Delete(ids[1])
	assert.ErrorIs(t, err, forest.ErrNotFound)
}

func TestOperationEdits(t *testing.T) {
	s := New()
	ids := placeN(t, s, 3)

	err := s.SetOperationBlend(ids[0], 0.5)
	assert.ErrorIs(t, err, forest.ErrNotComposite)

	_, err = s.Combine(forest.KindSubtract, ids[0], ids[1])
	require.NoError(t, err)
	require.NoError(t, s.SetOperationBlend(ids[1], 3))
	require.NoError(t, s.SetOperationColor(ids[0], ident.RGB{0, 0, 1}))

	prog, _, err := s.Compile()
	require.NoError(t, err)
	top := prog.Ops[prog.Roots[1]]
	assert.Equal(t, compile.OpSubtract, top.Kind)
	assert.Equal(t, float32(1), top.Blend)
	assert.Equal(t, ident.RGB{0, 0, 1}, top.Color)
}

func TestPaint(t *testing.T) {
	s := New()
	ids := placeN(t, s, 3)
	op, err := s.Combine(forest.KindUnion, ids[0], ids[1])
	require.NoError(t, err)

	red := ident.RGB{1, 0, 0}
	require.NoError(t, s.Paint(ids[2], red))
	p, _ := s.Primitive(ids[2])
	assert.Equal(t, red, p.Color)

	green := ident.RGB{0, 1, 0}
	require.NoError(t, s.Paint(ids[1], green))
	f := s.Forest()
	root, err := f.FindRoot(ids[1])
	require.NoError(t, err)
	assert.Equal(t, op, forest.NodeID(root))
	assert.Equal(t, green, root.(*forest.Operation).Color)

	assert.Error(t, s.Paint(77, red))
}

func TestMove(t *testing.T) {
	s := New()
	ids := placeN(t, s, 2)
	require.NoError(t, s.Move(ids[0], v3.Vec{Y: 1}))
	p, _ := s.Primitive(ids[0])
	assert.Equal(t, v3.Vec{Y: 1}, p.Position)

	_, err := s.Select(ids[1])
	require.NoError(t, err)
	assert.Equal(t, 1, s.MoveSelected(v3.Vec{Z: -1}))
	p, _ = s.Primitive(ids[1])
	assert.Equal(t, v3.Vec{X: 2, Z: -1}, p.Position)

	assert.ErrorIs(t, s.Move(50, v3.Vec{}), scene.ErrUnknownPrimitive)
}

func TestCancel(t *testing.T) {
	s := New()
	s.SetMode(scene.ModeSubtractSelect)
	s.Cancel()
	assert.Equal(t, scene.ModeSelect, s.Mode())
}

func TestReset(t *testing.T) {
	rec := &recorder{}
	s := New(WithNotifier(rec.notify))
	placeN(t, s, 2)
	s.Reset()
	assert.Equal(t, 0, s.Roots())
	assert.Empty(t, s.Primitives())
	ids := placeN(t, s, 1)
	assert.Equal(t, ident.ID(0), ids[0])
	assert.Contains(t, rec.kinds(), NoteReset)
}

func TestFrameAppliesPick(t *testing.T) {
	rec := &recorder{}
	s := New(WithNotifier(rec.notify))
	ids := placeN(t, s, 2)

	s.Protocol().Deliver(picking.Sample{RGB: ident.Encode(ids[1])})
	res, err := s.Frame(context.Background(), scene.Cursor{X: -1, Y: -1})
	require.NoError(t, err)

	assert.True(t, res.HasPick)
	assert.Equal(t, ids[1], res.Picked)
	assert.Equal(t, []ident.ID{ids[1]}, res.Selection)
	assert.Len(t, res.Program.Ops, 2)
	assert.Len(t, res.Records, 2)
	assert.True(t, res.Records[1].Selected)
	assert.False(t, res.Records[0].Selected)
	assert.Equal(t, NotePicked, rec.last().Kind)

	// No new sample: nothing picked.
	res, err = s.Frame(context.Background(), scene.Cursor{})
	require.NoError(t, err)
	assert.False(t, res.HasPick)
	assert.EqualValues(t, 2, res.Frame)
}

func TestFrameRunsResolvedHandlerUnlocked(t *testing.T) {
	s := New()
	ids := placeN(t, s, 2)

	var seen []ident.ID
	s.Protocol().OnResolved(func(id ident.ID, frame uint64) {
		// Reads the session from inside the handler.
		seen = s.Selection()
	})
	s.Protocol().Deliver(picking.Sample{RGB: ident.Encode(ids[0])})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.Frame(context.Background(), scene.Cursor{X: -1, Y: -1})
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Frame did not return while the resolved handler read the session")
	}
	assert.Equal(t, []ident.ID{ids[0]}, seen)
}

func TestFrameIgnoresDeadPick(t *testing.T) {
	s := New()
	placeN(t, s, 1)
	s.Protocol().Deliver(picking.Sample{RGB: ident.RGB{1, 1, 1}})

	res, err := s.Frame(context.Background(), scene.Cursor{})
	require.NoError(t, err)
	assert.False(t, res.HasPick)
	assert.Empty(t, res.Selection)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics().PickSamples.WithLabelValues("miss")))
}

func TestFrameCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Frame(ctx, scene.Cursor{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFrameWithRasterPicking(t *testing.T) {
	proto := picking.New()
	r := raster.New(proto)
	vp := scene.Viewport{Width: 160, Height: 120}
	s := New(WithProtocol(proto), WithRequester(r), WithViewport(vp),
		WithBoxDefaults(BoxDefaults{Scale: 2, Color: ident.RGB{1, 1, 1}}))

	id, err := s.PlaceBox(v3.Vec{})
	require.NoError(t, err)

	cam := s.Camera()
	x, y, _, ok := cam.Project(v3.Vec{}, vp)
	require.True(t, ok)
	cur := scene.Cursor{X: x, Y: y}

	_, err = s.Frame(context.Background(), cur)
	require.NoError(t, err)
	r.Wait()

	res, err := s.Frame(context.Background(), cur)
	require.NoError(t, err)
	require.True(t, res.HasPick)
	assert.Equal(t, id, res.Picked)
	assert.Equal(t, []ident.ID{id}, res.Selection)
}

func TestPlaceAtCursor(t *testing.T) {
	vp := scene.Viewport{Width: 200, Height: 100}
	s := New(WithViewport(vp))

	id, ok, err := s.PlaceAtCursor(scene.Cursor{X: 100, Y: 50})
	require.NoError(t, err)
	require.True(t, ok)
	p, _ := s.Primitive(id)
	assert.InDelta(t, 0, p.Position.Y, 1e-9)
	// The view center looks at the camera target.
	assert.InDelta(t, 0, p.Position.X, 1e-6)
	assert.InDelta(t, 0, p.Position.Z, 1e-6)

	_, ok, err = s.PlaceAtCursor(scene.Cursor{X: 500, Y: 50})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentEditsAndFrames(t *testing.T) {
	s := New(WithDebug(true))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			res, err := s.Frame(ctx, scene.Cursor{X: -1})
			if err != nil {
				return
			}
			if verr := res.Program.Verify(); verr != nil {
				t.Errorf("frame %d: %v", res.Frame, verr)
				return
			}
		}
	}()

	var ids []ident.ID
	for i := 0; i < 40; i++ {
		id, err := s.PlaceBox(v3.Vec{X: float64(i)})
		require.NoError(t, err)
		ids = append(ids, id)
		if i > 0 {
			_, err := s.Combine(forest.KindUnion, ids[i-1], id)
			require.NoError(t, err)
		}
	}
	cancel()
	wg.Wait()

	assert.Equal(t, 1, s.Roots())
	assert.Empty(t, s.Validate())
}

func TestNoteKindString(t *testing.T) {
	assert.Equal(t, "combine-failed", NoteCombineFailed.String())
	assert.Equal(t, "NoteKind(99)", NoteKind(99).String())
}
