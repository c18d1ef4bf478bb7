package engine

import (
	"fmt"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/csgbox/pkg/editor"
	"github.com/chazu/csgbox/pkg/forest"
	"github.com/chazu/csgbox/pkg/ident"
	"github.com/chazu/csgbox/pkg/scene"
)

// ---------------------------------------------------------------------------
// Custom Sexp types
// ---------------------------------------------------------------------------

// sexpVec3 carries a vector between builtins.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. A
// trailing keyword with no value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func describe(s zygo.Sexp) string {
	if s == nil {
		return "nil"
	}
	return fmt.Sprintf("%T (%s)", s, s.SexpString(nil))
}

// toFloat64 extracts a float64 from a SexpInt or SexpFloat.
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %s", describe(s))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %s", describe(s))
}

// toBool accepts true/false. A bare trailing keyword counts as true.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %s", describe(s))
}

// toID extracts a box or operation id from an integer.
func toID(s zygo.Sexp) (ident.ID, error) {
	v, ok := s.(*zygo.SexpInt)
	if !ok {
		return 0, fmt.Errorf("expected id, got %s", describe(s))
	}
	if v.Val < 0 || v.Val >= ident.Limit {
		return 0, fmt.Errorf("id %d out of range", v.Val)
	}
	return ident.ID(v.Val), nil
}

func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %s", describe(s))
}

// toScale accepts a vec3 or a single number for a cube.
func toScale(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	f, err := toFloat64(s)
	if err != nil {
		return v3.Vec{}, fmt.Errorf("expected vec3 or number, got %s", describe(s))
	}
	return v3.Vec{X: f, Y: f, Z: f}, nil
}

func toColor(s zygo.Sexp) (ident.RGB, error) {
	str, err := toString(s)
	if err != nil {
		return ident.RGB{}, err
	}
	return ident.ParseHex(str)
}

func idSexp(id ident.ID) zygo.Sexp {
	return &zygo.SexpInt{Val: int64(id)}
}

// fixedArgs checks the positional arity of a builtin.
func fixedArgs(name string, args []zygo.Sexp, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s requires exactly %d arguments, got %d", name, n, len(args))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Box construction
// ---------------------------------------------------------------------------

// boxFromArgs builds a primitive from (box [at] :at v :scale s :color c
// :round r :subtract b), starting from the session defaults.
func boxFromArgs(def editor.BoxDefaults, args []zygo.Sexp) (scene.Primitive, error) {
	pa := parseArgs(args)
	p := scene.Primitive{
		Scale:    v3.Vec{X: def.Scale, Y: def.Scale, Z: def.Scale},
		Color:    def.Color,
		Rounding: def.Rounding,
	}

	switch len(pa.positional) {
	case 0:
	case 1:
		if _, dup := pa.kw["at"]; dup {
			return p, fmt.Errorf("position given twice")
		}
		pa.kw["at"] = pa.positional[0]
	default:
		return p, fmt.Errorf("expected at most one positional argument, got %d", len(pa.positional))
	}

	for k, v := range pa.kw {
		var err error
		switch k {
		case "at":
			p.Position, err = toVec3(v)
		case "scale":
			p.Scale, err = toScale(v)
			if err == nil && (p.Scale.X <= 0 || p.Scale.Y <= 0 || p.Scale.Z <= 0) {
				err = fmt.Errorf("scale must be positive, got %v", p.Scale)
			}
		case "color":
			p.Color, err = toColor(v)
		case "round":
			var r float64
			r, err = toFloat64(v)
			if err == nil && (r < 0 || r > 1) {
				err = fmt.Errorf("rounding must be in [0, 1], got %g", r)
			}
			p.Rounding = float32(r)
		case "subtract":
			p.Subtract, err = toBool(v)
		default:
			err = fmt.Errorf("unknown keyword")
		}
		if err != nil {
			return p, fmt.Errorf("%s: %w", k, err)
		}
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the csgbox builtins into env. They act on s as
// they run, so a script that fails halfway keeps its earlier effects.
//
// Source must go through preprocessSource first so that :keyword tokens
// reach the builtins as recognizable strings.
func registerBuiltins(env *zygo.Zlisp, s *editor.Session) {

	// (box (vec3 0 0 0) :scale 2 :color "#ff0000" :round 0.2 :subtract true)
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		p, err := boxFromArgs(s.BoxDefaults(), args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		id, err := s.Place(p)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		return idSexp(id), nil
	})

	// (vec3 1 2 3)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := fixedArgs(name, args, 3); err != nil {
			return zygo.SexpNull, err
		}
		var xyz [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			xyz[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}}, nil
	})

	// (union a b) and (subtract a b) return the new root's id.
	combine := func(kind forest.Kind) func(*zygo.Zlisp, string, []zygo.Sexp) (zygo.Sexp, error) {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if err := fixedArgs(name, args, 2); err != nil {
				return zygo.SexpNull, err
			}
			a, err := toID(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			b, err := toID(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			id, err := s.Combine(kind, a, b)
			if err != nil {
				return zygo.SexpNull, err
			}
			return idSexp(id), nil
		}
	}
	env.AddFunction("union", combine(forest.KindUnion))
	env.AddFunction("subtract", combine(forest.KindSubtract))

	// (blend leaf 0.5)
	env.AddFunction("blend", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := fixedArgs(name, args, 2); err != nil {
			return zygo.SexpNull, err
		}
		leaf, err := toID(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("blend: %w", err)
		}
		k, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("blend: %w", err)
		}
		if err := s.SetOperationBlend(leaf, float32(k)); err != nil {
			return zygo.SexpNull, fmt.Errorf("blend: %w", err)
		}
		return args[0], nil
	})

	// (paint leaf "#00ff00")
	env.AddFunction("paint", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := fixedArgs(name, args, 2); err != nil {
			return zygo.SexpNull, err
		}
		leaf, err := toID(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("paint: %w", err)
		}
		c, err := toColor(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("paint: %w", err)
		}
		if err := s.Paint(leaf, c); err != nil {
			return zygo.SexpNull, fmt.Errorf("paint: %w", err)
		}
		return args[0], nil
	})

	// (delete leaf) removes the whole hierarchy and returns how many boxes
	// went with it.
	env.AddFunction("delete", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := fixedArgs(name, args, 1); err != nil {
			return zygo.SexpNull, err
		}
		leaf, err := toID(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("delete: %w", err)
		}
		removed, err := s.Delete(leaf)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("delete: %w", err)
		}
		return &zygo.SexpInt{Val: int64(len(removed))}, nil
	})

	// (move leaf (vec3 1 0 0))
	env.AddFunction("move", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := fixedArgs(name, args, 2); err != nil {
			return zygo.SexpNull, err
		}
		id, err := toID(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move: %w", err)
		}
		d, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move: %w", err)
		}
		if err := s.Move(id, d); err != nil {
			return zygo.SexpNull, fmt.Errorf("move: %w", err)
		}
		return args[0], nil
	})

	// (roots)
	env.AddFunction("roots", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := fixedArgs(name, args, 0); err != nil {
			return zygo.SexpNull, err
		}
		return &zygo.SexpInt{Val: int64(s.Roots())}, nil
	})
}
