package forest

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/csgbox/pkg/ident"
)

var (
	// ErrNotFound means a leaf or root id is absent from the forest. The
	// caller and the forest disagree about which primitives exist.
	ErrNotFound = errors.New("forest: id not found")

	// ErrAlreadyCombined means both leaves already share a root. It is an
	// expected outcome of user input, not a fault.
	ErrAlreadyCombined = errors.New("forest: leaves already share a root")

	// ErrNotComposite is returned by FindOperation when the leaf's root is
	// a bare Geometry with no operation parameters to edit.
	ErrNotComposite = errors.New("forest: root is not an operation")
)

// Forest is an ordered collection of root nodes. Root order is stable and
// determines compiled output order.
type Forest struct {
	roots []Node
}

// New returns an empty forest.
func New() *Forest {
	return &Forest{}
}

// PushLeaf appends a new Geometry root for a freshly placed primitive.
func (f *Forest) PushLeaf(id ident.ID) {
	f.roots = append(f.roots, &Geometry{ID: id})
}

// InsertRoot appends a fully formed node as a new root.
func (f *Forest) InsertRoot(n Node) {
	f.roots = append(f.roots, n)
}

// Roots returns the roots in order. The slice is a copy; the nodes are not.
func (f *Forest) Roots() []Node {
	out := make([]Node, len(f.roots))
	copy(out, f.roots)
	return out
}

// Len returns the number of roots.
func (f *Forest) Len() int {
	return len(f.roots)
}

// NodeCount returns the total number of leaves and operations.
func (f *Forest) NodeCount() int {
	total := 0
	for _, r := range f.roots {
		total += CountNodes(r)
	}
	return total
}

// findRootIndex returns the index of the root containing leaf, or -1.
func (f *Forest) findRootIndex(leaf ident.ID) int {
	for i, r := range f.roots {
		if Contains(r, leaf) {
			return i
		}
	}
	return -1
}

// FindRoot returns the root whose subtree contains leaf.
func (f *Forest) FindRoot(leaf ident.ID) (Node, error) {
	i := f.findRootIndex(leaf)
	if i < 0 {
		return nil, fmt.Errorf("%w: leaf %s", ErrNotFound, leaf)
	}
	return f.roots[i], nil
}

// TakeRoot removes and returns the root whose own id is rootID.
func (f *Forest) TakeRoot(rootID ident.ID) (Node, error) {
	for i, r := range f.roots {
		if NodeID(r) == rootID {
			f.roots = append(f.roots[:i], f.roots[i+1:]...)
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: root %s", ErrNotFound, rootID)
}

// FindOperation returns the top-level operation of the hierarchy holding
// leaf, for editing its Color and Blend in place. It walks the same
// containment search as FindRoot.
func (f *Forest) FindOperation(leaf ident.ID) (*Operation, error) {
	root, err := f.FindRoot(leaf)
	if err != nil {
		return nil, err
	}
	op, ok := root.(*Operation)
	if !ok {
		return nil, fmt.Errorf("%w: leaf %s", ErrNotComposite, leaf)
	}
	return op, nil
}

// SetBlend stores blend on the operation, clamped to [0, 1].
func (op *Operation) SetBlend(blend float32) {
	switch {
	case blend < 0 || math.IsNaN(float64(blend)):
		blend = 0
	case blend > 1:
		blend = 1
	}
	op.Blend = blend
}

// Has reports whether id names any node in the forest, leaf or operation.
func (f *Forest) Has(id ident.ID) bool {
	for _, r := range f.roots {
		found := false
		Walk(r, func(n Node) bool {
			if NodeID(n) == id {
				found = true
				return false
			}
			return true
		})
		if found {
			return true
		}
	}
	return false
}

// RemoveTree deletes the entire root subtree that contains leaf and
// returns the primitive ids it held, so the caller can drop them from the
// primitive store.
func (f *Forest) RemoveTree(leaf ident.ID) ([]ident.ID, error) {
	i := f.findRootIndex(leaf)
	if i < 0 {
		return nil, fmt.Errorf("%w: leaf %s", ErrNotFound, leaf)
	}
	root := f.roots[i]
	f.roots = append(f.roots[:i], f.roots[i+1:]...)
	return Leaves(root), nil
}

// Clone returns a deep copy of the forest.
func (f *Forest) Clone() *Forest {
	cp := &Forest{roots: make([]Node, len(f.roots))}
	for i, r := range f.roots {
		cp.roots[i] = cloneNode(r)
	}
	return cp
}
