// Package picking resolves which object is under the cursor from an
// asynchronous color readback.
//
// The renderer draws every object filled with its identity color and, some
// frames later, reads back the pixel under the cursor. Readbacks complete on
// arbitrary goroutines and call Deliver; the frame loop calls Poll once per
// frame to consume the most recent sample. Only the latest completed sample
// matters: newer deliveries overwrite older ones whatever their frame
// number, so a slow readback never produces a second event.
package picking

import (
	"context"
	"log/slog"
	"sync"

	"github.com/chazu/csgbox/pkg/ident"
	"github.com/chazu/csgbox/pkg/logging"
	"github.com/chazu/csgbox/pkg/scene"
)

// Sample is one completed readback.
type Sample struct {
	RGB   ident.RGB
	Frame uint64 // frame the request was issued on
	// Background is set when the pixel is the cleared target color, so
	// nothing was drawn under the cursor.
	Background bool
}

// Outcome classifies a Poll.
type Outcome int

const (
	OutcomeEmpty Outcome = iota // no sample since the last poll
	OutcomeMiss                 // sample decoded to an id that is not live
	OutcomeHit                  // sample resolved to a live id
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeMiss:
		return "miss"
	case OutcomeHit:
		return "hit"
	default:
		return "unknown"
	}
}

// Liveness reports whether id names a live primitive or operation.
type Liveness func(id ident.ID) bool

// Handler receives resolved identifiers.
type Handler func(id ident.ID, frame uint64)

// Request describes one picking pass: the cursor and everything needed to
// draw the identity image it samples.
type Request struct {
	Frame      uint64
	Cursor     scene.Cursor
	Viewport   scene.Viewport
	Camera     scene.Camera
	Primitives []scene.Primitive
}

// Requester issues picking passes. Request must not block; the result is
// delivered later through the Protocol the requester was built with.
type Requester interface {
	Request(ctx context.Context, req Request)
}

// Protocol holds the latest completed sample.
type Protocol struct {
	mu      sync.Mutex
	latest  Sample
	pending bool
	handler Handler
	log     *slog.Logger
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Protocol) { p.log = logging.OrNop(l) }
}

// WithHandler registers the resolved-identifier handler.
func WithHandler(h Handler) Option {
	return func(p *Protocol) { p.handler = h }
}

// New returns an empty Protocol.
func New(opts ...Option) *Protocol {
	p := &Protocol{log: logging.Nop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// OnResolved replaces the resolved-identifier handler.
func (p *Protocol) OnResolved(h Handler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

// Deliver stores s as the latest sample, replacing any unconsumed one.
// Safe to call from any goroutine.
func (p *Protocol) Deliver(s Sample) {
	p.mu.Lock()
	if p.pending {
		p.log.Debug("picking sample overwritten", "stale_frame", p.latest.Frame, "frame", s.Frame)
	}
	p.latest = s
	p.pending = true
	p.mu.Unlock()
}

// Pending reports whether a sample is waiting to be polled.
func (p *Protocol) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Poll consumes the latest sample, if any, and reports the id it resolved
// to. The handler is called on a hit.
func (p *Protocol) Poll(live Liveness) (ident.ID, bool) {
	id, o := p.PollOutcome(live)
	return id, o == OutcomeHit
}

// PollOutcome is Poll with the reason for a non-hit.
func (p *Protocol) PollOutcome(live Liveness) (ident.ID, Outcome) {
	sample, ok := p.Take()
	if !ok {
		return 0, OutcomeEmpty
	}
	id, o := p.Classify(sample, live)
	if o == OutcomeHit {
		p.Dispatch(id, sample.Frame)
	}
	return id, o
}

// Take consumes the latest sample without resolving it.
func (p *Protocol) Take() (Sample, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pending {
		return Sample{}, false
	}
	p.pending = false
	return p.latest, true
}

// Classify decodes s and checks the id against live. It never calls the
// handler, so it is safe to use while holding locks live depends on.
func (p *Protocol) Classify(s Sample, live Liveness) (ident.ID, Outcome) {
	if s.Background {
		p.log.Debug("picking miss", "frame", s.Frame, "background", true)
		return 0, OutcomeMiss
	}
	id := ident.Decode(s.RGB)
	if live == nil || !live(id) {
		p.log.Debug("picking miss", "frame", s.Frame, "decoded", id)
		return 0, OutcomeMiss
	}
	p.log.Debug("picking hit", "frame", s.Frame, "id", id)
	return id, OutcomeHit
}

// Dispatch calls the resolved-identifier handler, if one is registered.
func (p *Protocol) Dispatch(id ident.ID, frame uint64) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h(id, frame)
	}
}
