// Package raster is a software picking pass. It draws the screen footprint
// of every primitive in its identity color into a small offscreen gg
// pixmap centered on the cursor, reads back the center pixel and delivers
// it to a picking.Protocol from a background goroutine.
package raster

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/gogpu/gg"

	"github.com/chazu/csgbox/pkg/ident"
	"github.com/chazu/csgbox/pkg/logging"
	"github.com/chazu/csgbox/pkg/picking"
)

// DefaultPatch is the edge length in pixels of the offscreen target.
const DefaultPatch = 16

// Deliverer receives completed samples.
type Deliverer interface {
	Deliver(picking.Sample)
}

var _ picking.Requester = (*Renderer)(nil)

// Renderer implements picking.Requester.
type Renderer struct {
	dst   Deliverer
	patch int
	log   *slog.Logger
	wg    sync.WaitGroup
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithPatch sets the offscreen target size. Values below 1 are ignored.
func WithPatch(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.patch = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.log = logging.OrNop(l) }
}

// New returns a Renderer delivering to dst.
func New(dst Deliverer, opts ...Option) *Renderer {
	r := &Renderer{dst: dst, patch: DefaultPatch, log: logging.Nop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Request renders req in the background. Cursors outside the viewport are
// ignored. If ctx is done before the pass finishes the sample is dropped.
func (r *Renderer) Request(ctx context.Context, req picking.Request) {
	if !req.Cursor.Inside(req.Viewport) {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		s, err := r.Render(req)
		if err != nil {
			r.log.Warn("picking pass failed", "frame", req.Frame, "err", err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		r.dst.Deliver(s)
	}()
}

// Wait blocks until every outstanding request has finished.
func (r *Renderer) Wait() {
	r.wg.Wait()
}

// footprint is one primitive's projected outline.
type footprint struct {
	id    ident.ID
	depth float64
	hull  [][2]float64
}

// Render draws req synchronously and returns the sample under the cursor.
func (r *Renderer) Render(req picking.Request) (picking.Sample, error) {
	half := r.patch / 2
	ox := math.Floor(req.Cursor.X) - float64(half)
	oy := math.Floor(req.Cursor.Y) - float64(half)

	pm := gg.NewPixmap(r.patch, r.patch)
	dc := gg.NewContext(r.patch, r.patch, gg.WithPixmap(pm))
	defer dc.Close()
	dc.ClearWithColor(gg.White)

	for _, fp := range footprints(req) {
		b := ident.EncodeBytes(fp.id)
		// Bias into the middle of each channel step so the 8-bit store
		// lands on the intended byte whether it truncates or rounds.
		dc.SetRGB(channel(b[0]), channel(b[1]), channel(b[2]))
		dc.MoveTo(fp.hull[0][0]-ox, fp.hull[0][1]-oy)
		for _, p := range fp.hull[1:] {
			dc.LineTo(p[0]-ox, p[1]-oy)
		}
		dc.ClosePath()
		if err := dc.Fill(); err != nil {
			return picking.Sample{}, err
		}
	}

	i := (half*r.patch + half) * 4
	px := [3]uint8{pm.Data()[i], pm.Data()[i+1], pm.Data()[i+2]}
	return picking.Sample{
		RGB:        ident.RGBFromBytes(px),
		Frame:      req.Frame,
		Background: px == [3]uint8{0xff, 0xff, 0xff},
	}, nil
}

func channel(b uint8) float64 {
	return (float64(b) + 0.25) / 255
}

// footprints projects every primitive fully in front of the camera and
// returns them sorted far to near.
func footprints(req picking.Request) []footprint {
	out := make([]footprint, 0, len(req.Primitives))
	for i := range req.Primitives {
		p := &req.Primitives[i]
		var pts [][2]float64
		visible := true
		for _, c := range p.Corners() {
			x, y, _, ok := req.Camera.Project(c, req.Viewport)
			if !ok {
				visible = false
				break
			}
			pts = append(pts, [2]float64{x, y})
		}
		if !visible {
			continue
		}
		_, _, depth, _ := req.Camera.Project(p.Position, req.Viewport)
		hull := convexHull(pts)
		if len(hull) < 3 {
			continue
		}
		out = append(out, footprint{id: p.ID, depth: depth, hull: hull})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].depth > out[j].depth })
	return out
}

// convexHull returns the hull of pts in counter-clockwise order using the
// monotone chain method.
func convexHull(pts [][2]float64) [][2]float64 {
	if len(pts) < 3 {
		return pts
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})
	cross := func(o, a, b [2]float64) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}
	hull := make([][2]float64, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}
