package forest

import (
	"fmt"

	"github.com/chazu/csgbox/pkg/ident"
)

// ColorLookup returns the stored color of a primitive.
type ColorLookup func(id ident.ID) (ident.RGB, bool)

// CombineError describes a combine request that left the forest unchanged.
// Err is ErrAlreadyCombined or wraps ErrNotFound.
type CombineError struct {
	Kind  Kind
	LeafA ident.ID
	LeafB ident.ID
	Err   error
}

func (e *CombineError) Error() string {
	return fmt.Sprintf("%s of %s and %s: %v", e.Kind, e.LeafA, e.LeafB, e.Err)
}

func (e *CombineError) Unwrap() error {
	return e.Err
}

// Combine merges the hierarchies holding leafA and leafB under a new
// operation with id next, which becomes a single new root. leafA's
// hierarchy is the left operand and donates its color: a bare leaf passes
// on its primitive's color, an operation its own stored color.
//
// If both leaves already share a root, Combine returns a CombineError
// wrapping ErrAlreadyCombined. Missing ids wrap ErrNotFound. In both cases
// the forest is unchanged.
func (f *Forest) Combine(kind Kind, leafA, leafB, next ident.ID, colors ColorLookup) (ident.ID, error) {
	fail := func(err error) (ident.ID, error) {
		return 0, &CombineError{Kind: kind, LeafA: leafA, LeafB: leafB, Err: err}
	}

	first, second, err := f.combinable(leafA, leafB)
	if err != nil {
		return fail(err)
	}

	var color ident.RGB
	switch n := first.(type) {
	case *Geometry:
		c, ok := colors(n.ID)
		if !ok {
			return fail(fmt.Errorf("%w: color of primitive %s", ErrNotFound, n.ID))
		}
		color = c
	case *Operation:
		color = n.Color
	}

	firstID, secondID := NodeID(first), NodeID(second)
	if f.Has(next) {
		return fail(fmt.Errorf("operation id %s already in use", next))
	}

	left, err := f.TakeRoot(firstID)
	if err != nil {
		return fail(err)
	}
	right, err := f.TakeRoot(secondID)
	if err != nil {
		// Unreachable while the partition invariant holds.
		f.InsertRoot(left)
		return fail(err)
	}

	f.InsertRoot(&Operation{
		Kind:  kind,
		ID:    next,
		Left:  left,
		Right: right,
		Blend: 0,
		Color: color,
	})
	return next, nil
}

// CanCombine reports the error Combine would return for leafA and leafB
// before any operation id is chosen: missing leaves or a shared root.
func (f *Forest) CanCombine(kind Kind, leafA, leafB ident.ID) error {
	if _, _, err := f.combinable(leafA, leafB); err != nil {
		return &CombineError{Kind: kind, LeafA: leafA, LeafB: leafB, Err: err}
	}
	return nil
}

func (f *Forest) combinable(leafA, leafB ident.ID) (first, second Node, err error) {
	if first, err = f.FindRoot(leafA); err != nil {
		return nil, nil, err
	}
	if second, err = f.FindRoot(leafB); err != nil {
		return nil, nil, err
	}
	if first == second {
		return nil, nil, ErrAlreadyCombined
	}
	return first, second, nil
}
