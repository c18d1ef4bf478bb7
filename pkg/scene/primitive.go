package scene

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chazu/csgbox/pkg/compile"
	"github.com/chazu/csgbox/pkg/ident"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrUnknownPrimitive is returned when an id is not in the store.
var ErrUnknownPrimitive = errors.New("scene: unknown primitive")

// Primitive is an axis-aligned rounded box.
type Primitive struct {
	ID       ident.ID
	Position v3.Vec    // center
	Scale    v3.Vec    // full edge lengths
	Color    ident.RGB // shading color
	Rounding float32   // fraction of the largest possible corner radius, [0, 1]
	Subtract bool      // render hint: draw as a cutter
}

// Corners returns the eight corners of the box.
func (p *Primitive) Corners() [8]v3.Vec {
	h := p.Scale.MulScalar(0.5)
	var out [8]v3.Vec
	for i := range out {
		c := p.Position
		if i&1 == 0 {
			c.X -= h.X
		} else {
			c.X += h.X
		}
		if i&2 == 0 {
			c.Y -= h.Y
		} else {
			c.Y += h.Y
		}
		if i&4 == 0 {
			c.Z -= h.Z
		} else {
			c.Z += h.Z
		}
		out[i] = c
	}
	return out
}

// Radius returns the corner radius in world units.
func (p *Primitive) Radius() float64 {
	r := float64(p.Rounding)
	if r < 0 {
		r = 0
	}
	if r > 1 {
		r = 1
	}
	return r * p.Scale.MinComponent() / 2
}

// Store owns the live primitives. It is not safe for concurrent use.
type Store struct {
	prims map[ident.ID]*Primitive
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{prims: make(map[ident.ID]*Primitive)}
}

// Add inserts p. Ids must be unique.
func (s *Store) Add(p Primitive) error {
	if _, ok := s.prims[p.ID]; ok {
		return fmt.Errorf("scene: primitive %s already exists", p.ID)
	}
	s.prims[p.ID] = &p
	return nil
}

// Get returns a copy of the primitive with the given id.
func (s *Store) Get(id ident.ID) (Primitive, bool) {
	p, ok := s.prims[id]
	if !ok {
		return Primitive{}, false
	}
	return *p, true
}

// Has reports whether id is a live primitive.
func (s *Store) Has(id ident.ID) bool {
	_, ok := s.prims[id]
	return ok
}

// Update applies fn to the stored primitive. fn must not change the id.
func (s *Store) Update(id ident.ID, fn func(p *Primitive)) error {
	p, ok := s.prims[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPrimitive, id)
	}
	fn(p)
	p.ID = id
	return nil
}

// Remove deletes the primitive with the given id.
func (s *Store) Remove(id ident.ID) error {
	if _, ok := s.prims[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPrimitive, id)
	}
	delete(s.prims, id)
	return nil
}

// Len returns the number of live primitives.
func (s *Store) Len() int {
	return len(s.prims)
}

// IDs returns the live ids in ascending order.
func (s *Store) IDs() []ident.ID {
	ids := make([]ident.ID, 0, len(s.prims))
	for id := range s.prims {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Sorted returns copies of the live primitives ordered by id.
func (s *Store) Sorted() []Primitive {
	out := make([]Primitive, 0, len(s.prims))
	for _, id := range s.IDs() {
		out = append(out, *s.prims[id])
	}
	return out
}

// Color implements forest.ColorLookup.
func (s *Store) Color(id ident.ID) (ident.RGB, bool) {
	p, ok := s.prims[id]
	if !ok {
		return ident.RGB{}, false
	}
	return p.Color, true
}

// Records converts the primitives to packed shader records in index order.
func (s *Store) Records(index *compile.PrimitiveIndex, selected func(ident.ID) bool) []compile.PrimitiveRecord {
	recs := make([]compile.PrimitiveRecord, 0, index.Len())
	for _, id := range index.IDs() {
		p, ok := s.prims[id]
		if !ok {
			continue
		}
		recs = append(recs, compile.PrimitiveRecord{
			Position: vec32(p.Position),
			Rounding: p.Rounding,
			Scale:    vec32(p.Scale),
			Subtract: p.Subtract,
			Color:    p.Color,
			Selected: selected != nil && selected(id),
		})
	}
	return recs
}

func vec32(v v3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}
