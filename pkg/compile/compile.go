// Package compile flattens the composition forest into a dependency-ordered
// op buffer that a forward-only evaluator (a fragment shader, or the CPU
// evaluator in package evaluate) can execute without recursion: every
// record's operands sit at lower indices than the record itself.
//
// Compilation is a pure function of the forest and the primitive set and is
// rerun from scratch every frame.
package compile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chazu/csgbox/pkg/forest"
	"github.com/chazu/csgbox/pkg/ident"
)

// ErrUnknownPrimitive is returned when a leaf references an id that is not
// in the primitive set being compiled against.
var ErrUnknownPrimitive = errors.New("compile: leaf references unknown primitive")

// ErrForwardReference is returned by Verify when a record refers to itself
// or to a later record.
var ErrForwardReference = errors.New("compile: operand does not precede its record")

// OpKind identifies what an OpRecord computes.
type OpKind uint32

const (
	OpPrimitive OpKind = iota // distance to one primitive
	OpUnion                   // min of two earlier records
	OpSubtract                // left minus right
)

func (k OpKind) String() string {
	switch k {
	case OpPrimitive:
		return "primitive"
	case OpUnion:
		return "union"
	case OpSubtract:
		return "subtract"
	default:
		return fmt.Sprintf("OpKind(%d)", uint32(k))
	}
}

// OpRecord is one instruction. Primitive is meaningful for OpPrimitive;
// Left, Right, Blend and Color for the operation kinds.
type OpRecord struct {
	Kind      OpKind
	Primitive uint32 // index into the id-sorted primitive array
	Left      uint32 // index of the left operand's record
	Right     uint32 // index of the right operand's record
	Blend     float32
	Color     ident.RGB
}

// Program is a compiled forest.
type Program struct {
	Ops   []OpRecord
	Roots []uint32 // index of each root's top record, in forest root order
}

// PrimitiveSource enumerates the ids of the live primitives.
type PrimitiveSource interface {
	IDs() []ident.ID
}

// PrimitiveIndex maps primitive ids to their position in the id-sorted
// enumeration of the live set. The order does not depend on how the
// source stores or iterates its primitives.
type PrimitiveIndex struct {
	order []ident.ID
	pos   map[ident.ID]uint32
}

// NewPrimitiveIndex sorts the ids of src.
func NewPrimitiveIndex(src PrimitiveSource) *PrimitiveIndex {
	ids := src.IDs()
	order := make([]ident.ID, len(ids))
	copy(order, ids)
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	pos := make(map[ident.ID]uint32, len(order))
	for i, id := range order {
		pos[id] = uint32(i)
	}
	return &PrimitiveIndex{order: order, pos: pos}
}

// Lookup returns id's index.
func (p *PrimitiveIndex) Lookup(id ident.ID) (uint32, bool) {
	i, ok := p.pos[id]
	return i, ok
}

// IDs returns the sorted ids. The caller must not modify the slice.
func (p *PrimitiveIndex) IDs() []ident.ID {
	return p.order
}

// Len returns the number of primitives.
func (p *PrimitiveIndex) Len() int {
	return len(p.order)
}

// Compile linearizes f in postorder against the primitives in prims.
func Compile(f *forest.Forest, prims PrimitiveSource) (*Program, error) {
	return CompileIndexed(f, NewPrimitiveIndex(prims))
}

// CompileIndexed is Compile with a precomputed primitive index, so the
// caller can pack primitive data in exactly the same order.
func CompileIndexed(f *forest.Forest, index *PrimitiveIndex) (*Program, error) {
	c := compiler{
		index: index,
		prog: &Program{
			Ops:   make([]OpRecord, 0, f.NodeCount()),
			Roots: make([]uint32, 0, f.Len()),
		},
	}
	for _, root := range f.Roots() {
		top, err := c.emit(root)
		if err != nil {
			return nil, err
		}
		c.prog.Roots = append(c.prog.Roots, top)
	}
	return c.prog, nil
}

type compiler struct {
	index *PrimitiveIndex
	prog  *Program
}

// emit appends n's subtree in postorder and returns the index of n's own
// record.
func (c *compiler) emit(n forest.Node) (uint32, error) {
	switch n := n.(type) {
	case *forest.Geometry:
		pi, ok := c.index.Lookup(n.ID)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownPrimitive, n.ID)
		}
		return c.push(OpRecord{Kind: OpPrimitive, Primitive: pi}), nil

	case *forest.Operation:
		left, err := c.emit(n.Left)
		if err != nil {
			return 0, err
		}
		right, err := c.emit(n.Right)
		if err != nil {
			return 0, err
		}
		var kind OpKind
		switch n.Kind {
		case forest.KindUnion:
			kind = OpUnion
		case forest.KindSubtract:
			kind = OpSubtract
		default:
			return 0, fmt.Errorf("compile: operation %s has unknown kind %v", n.ID, n.Kind)
		}
		return c.push(OpRecord{
			Kind:  kind,
			Left:  left,
			Right: right,
			Blend: n.Blend,
			Color: n.Color,
		}), nil

	default:
		return 0, fmt.Errorf("compile: unknown node type %T", n)
	}
}

func (c *compiler) push(r OpRecord) uint32 {
	c.prog.Ops = append(c.prog.Ops, r)
	return uint32(len(c.prog.Ops) - 1)
}

// Verify checks that every operand index precedes its record and that
// every root index is in range.
func (p *Program) Verify() error {
	for i, op := range p.Ops {
		if op.Kind == OpPrimitive {
			continue
		}
		if op.Left >= uint32(i) || op.Right >= uint32(i) {
			return fmt.Errorf("%w: record %d reads %d and %d", ErrForwardReference, i, op.Left, op.Right)
		}
	}
	for _, r := range p.Roots {
		if int(r) >= len(p.Ops) {
			return fmt.Errorf("compile: root index %d out of range (%d records)", r, len(p.Ops))
		}
	}
	return nil
}
