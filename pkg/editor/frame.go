package editor

import (
	"context"
	"fmt"
	"time"

	"github.com/chazu/csgbox/pkg/compile"
	"github.com/chazu/csgbox/pkg/ident"
	"github.com/chazu/csgbox/pkg/picking"
	"github.com/chazu/csgbox/pkg/scene"
)

// FrameResult is what a frame stage hands to the renderer.
type FrameResult struct {
	Frame      uint64
	Program    *compile.Program
	Primitives []scene.Primitive         // program index order
	Records    []compile.PrimitiveRecord // packed view of Primitives
	Selection  []ident.ID
	Mode       scene.Mode
	Picked     ident.ID // valid when HasPick
	HasPick    bool
}

// liveLocked reports whether id names a live primitive or operation.
func (s *Session) liveLocked(id ident.ID) bool {
	return s.store.Has(id) || s.forest.Has(id)
}

// Frame runs one frame stage: it consumes the latest picking sample and
// applies it to the selection, compiles the forest against the committed
// primitives, then issues the next picking request for cur.
func (s *Session) Frame(ctx context.Context, cur scene.Cursor) (*FrameResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.frame++
	res := &FrameResult{Frame: s.frame}

	var notes []Notification
	o := picking.OutcomeEmpty
	var id ident.ID
	sample, taken := s.pick.Take()
	if taken {
		id, o = s.pick.Classify(sample, s.liveLocked)
		s.metrics.PickSamples.WithLabelValues(o.String()).Inc()
	}
	if o == picking.OutcomeHit {
		res.Picked, res.HasPick = id, true
		if s.store.Has(id) && s.sel.Apply(s.mode.Policy(), id) {
			notes = append(notes, Notification{Kind: NotePicked, ID: id, Frame: s.frame})
		}
	}

	start := time.Now()
	index := compile.NewPrimitiveIndex(s.store)
	prog, err := compile.CompileIndexed(s.forest, index)
	if err != nil {
		s.mu.Unlock()
		s.resolved(o, id, sample.Frame)
		s.publish(notes...)
		return nil, fmt.Errorf("editor: frame %d: %w", res.Frame, err)
	}
	s.metrics.CompileDuration.Observe(time.Since(start).Seconds())
	s.metrics.Ops.Set(float64(len(prog.Ops)))
	s.metrics.Roots.Set(float64(len(prog.Roots)))

	res.Program = prog
	res.Primitives = s.store.Sorted()
	res.Records = s.store.Records(index, s.sel.Contains)
	res.Selection = s.sel.IDs()
	res.Mode = s.mode

	req := picking.Request{
		Frame:      res.Frame,
		Cursor:     cur,
		Viewport:   s.vp,
		Camera:     s.cam,
		Primitives: res.Primitives,
	}
	s.mu.Unlock()

	s.resolved(o, id, sample.Frame)
	s.publish(notes...)
	if s.req != nil && cur.Inside(req.Viewport) {
		s.req.Request(ctx, req)
	}
	return res, nil
}

// resolved runs the picking handler for a hit. Call without s.mu held.
func (s *Session) resolved(o picking.Outcome, id ident.ID, frame uint64) {
	if o == picking.OutcomeHit {
		s.pick.Dispatch(id, frame)
	}
}
