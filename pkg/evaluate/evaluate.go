// Package evaluate is a CPU reference for the op-buffer evaluator. It walks
// a compiled program front to back exactly once, building one kernel solid
// per record from solids it has already built, and never recurses.
package evaluate

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/csgbox/pkg/compile"
	"github.com/chazu/csgbox/pkg/ident"
	"github.com/chazu/csgbox/pkg/kernel"
	"github.com/chazu/csgbox/pkg/scene"
)

// ErrForwardReference is returned when a record reads an operand that has
// not been built yet.
var ErrForwardReference = compile.ErrForwardReference

// Run evaluates prog. prims must be the live primitives in index order,
// which is what scene.Store.Sorted returns for the store the program was
// compiled against. Run returns one solid per program root.
func Run(prog *compile.Program, prims []scene.Primitive, k kernel.Kernel) ([]kernel.Solid, error) {
	if prog == nil {
		return nil, nil
	}
	built := make([]kernel.Solid, len(prog.Ops))

	for i, op := range prog.Ops {
		switch op.Kind {
		case compile.OpPrimitive:
			if int(op.Primitive) >= len(prims) {
				return nil, fmt.Errorf("evaluate: record %d: primitive index %d out of range (%d primitives)",
					i, op.Primitive, len(prims))
			}
			s, err := primitiveSolid(k, &prims[op.Primitive])
			if err != nil {
				return nil, fmt.Errorf("evaluate: record %d: %w", i, err)
			}
			built[i] = s

		case compile.OpUnion, compile.OpSubtract:
			if op.Left >= uint32(i) || op.Right >= uint32(i) {
				return nil, fmt.Errorf("%w: record %d reads %d and %d", ErrForwardReference, i, op.Left, op.Right)
			}
			a, b := built[op.Left], built[op.Right]
			if op.Kind == compile.OpUnion {
				built[i] = k.Union(a, b, float64(op.Blend))
			} else {
				built[i] = k.Difference(a, b, float64(op.Blend))
			}

		default:
			return nil, fmt.Errorf("evaluate: record %d: unknown op kind %v", i, op.Kind)
		}
	}

	out := make([]kernel.Solid, len(prog.Roots))
	for i, r := range prog.Roots {
		if int(r) >= len(built) {
			return nil, fmt.Errorf("evaluate: root %d points at record %d of %d", i, r, len(built))
		}
		out[i] = built[r]
	}
	return out, nil
}

func primitiveSolid(k kernel.Kernel, p *scene.Primitive) (kernel.Solid, error) {
	s, err := k.RoundedBox([3]float64{p.Scale.X, p.Scale.Y, p.Scale.Z}, p.Radius())
	if err != nil {
		return nil, fmt.Errorf("primitive %s: %w", p.ID, err)
	}
	return k.Translate(s, p.Position.X, p.Position.Y, p.Position.Z), nil
}

// Meshes evaluates prog and tessellates every root concurrently. Mesh i
// belongs to root i and carries the root's display color.
func Meshes(prog *compile.Program, prims []scene.Primitive, k kernel.Kernel) ([]*kernel.Mesh, error) {
	solids, err := Run(prog, prims, k)
	if err != nil {
		return nil, err
	}

	meshes := make([]*kernel.Mesh, len(solids))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range solids {
		g.Go(func() error {
			m, err := k.ToMesh(s)
			if err != nil {
				return fmt.Errorf("evaluate: root %d: %w", i, err)
			}
			m.Root = i
			m.Color = RootColor(prog, prims, i).Bytes()
			meshes[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return meshes, nil
}

// RootColor returns the display color of root i: the operation's inherited
// color, or the primitive's own color when the root is a bare leaf.
func RootColor(prog *compile.Program, prims []scene.Primitive, i int) ident.RGB {
	op := prog.Ops[prog.Roots[i]]
	if op.Kind == compile.OpPrimitive && int(op.Primitive) < len(prims) {
		return prims[op.Primitive].Color
	}
	return op.Color
}

// ErrEmpty is returned by WriteSTL for a program with no roots.
var ErrEmpty = errors.New("evaluate: nothing to export")

// Merge evaluates prog and hard-unions its roots into one solid.
func Merge(prog *compile.Program, prims []scene.Primitive, k kernel.Kernel) (kernel.Solid, error) {
	solids, err := Run(prog, prims, k)
	if err != nil {
		return nil, err
	}
	if len(solids) == 0 {
		return nil, ErrEmpty
	}
	out := solids[0]
	for _, s := range solids[1:] {
		out = k.Union(out, s, 0)
	}
	return out, nil
}

// WriteSTL writes every root of prog to one STL file at path.
func WriteSTL(prog *compile.Program, prims []scene.Primitive, k kernel.Kernel, path string) error {
	s, err := Merge(prog, prims, k)
	if err != nil {
		return err
	}
	if err := k.WriteSTL(s, path); err != nil {
		return fmt.Errorf("evaluate: write %s: %w", path, err)
	}
	return nil
}
