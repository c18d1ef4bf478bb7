package forest

import (
	"fmt"

	"github.com/chazu/csgbox/pkg/ident"
)

// Kind enumerates the CSG operations an Operation node can perform.
type Kind int

const (
	KindUnion    Kind = iota // a ∪ b
	KindSubtract             // a − b
)

func (k Kind) String() string {
	switch k {
	case KindUnion:
		return "union"
	case KindSubtract:
		return "subtract"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Node is either a *Geometry leaf or an *Operation. The set is closed.
type Node interface {
	node() // marker method restricting implementations to this package
}

// Geometry is a leaf referencing a primitive by id.
type Geometry struct {
	ID ident.ID
}

func (*Geometry) node() {}

// Operation combines two exclusively owned subtrees.
type Operation struct {
	Kind  Kind
	ID    ident.ID
	Left  Node
	Right Node
	Blend float32 // smoothing factor in [0, 1]
	Color ident.RGB
}

func (*Operation) node() {}

// NodeID returns the node's own top-level id: the primitive id for a leaf,
// the operation id otherwise.
func NodeID(n Node) ident.ID {
	switch n := n.(type) {
	case *Geometry:
		return n.ID
	case *Operation:
		return n.ID
	default:
		panic(fmt.Sprintf("forest: unknown node type %T", n))
	}
}

// Contains reports whether leaf is referenced by a Geometry in n's subtree.
// Operation ids are not leaves and never match.
func Contains(n Node, leaf ident.ID) bool {
	switch n := n.(type) {
	case *Geometry:
		return n.ID == leaf
	case *Operation:
		return Contains(n.Left, leaf) || Contains(n.Right, leaf)
	default:
		panic(fmt.Sprintf("forest: unknown node type %T", n))
	}
}

// Walk visits n's subtree in postorder (left, right, self). Returning false
// from fn stops the walk; Walk reports whether it ran to completion.
func Walk(n Node, fn func(Node) bool) bool {
	if op, ok := n.(*Operation); ok {
		if !Walk(op.Left, fn) || !Walk(op.Right, fn) {
			return false
		}
	}
	return fn(n)
}

// Leaves returns the primitive ids under n in left-to-right order.
func Leaves(n Node) []ident.ID {
	var ids []ident.ID
	Walk(n, func(n Node) bool {
		if g, ok := n.(*Geometry); ok {
			ids = append(ids, g.ID)
		}
		return true
	})
	return ids
}

// CountNodes returns the number of nodes (leaves and operations) under n.
func CountNodes(n Node) int {
	count := 0
	Walk(n, func(Node) bool {
		count++
		return true
	})
	return count
}

// cloneNode deep-copies a subtree.
func cloneNode(n Node) Node {
	switch n := n.(type) {
	case *Geometry:
		return &Geometry{ID: n.ID}
	case *Operation:
		cp := *n
		cp.Left = cloneNode(n.Left)
		cp.Right = cloneNode(n.Right)
		return &cp
	default:
		panic(fmt.Sprintf("forest: unknown node type %T", n))
	}
}
