// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/csgbox/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var _ kernel.Kernel = (*SdfxKernel)(nil)

const (
	// DefaultMeshCells controls marching cubes tessellation resolution.
	DefaultMeshCells = 200

	// MaxBlendRadius is the smoothing radius used at blend == 1.
	MaxBlendRadius = 1.0
)

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	cells int
}

// Option configures an SdfxKernel.
type Option func(*SdfxKernel)

// WithMeshCells sets the marching cubes resolution along the longest axis.
func WithMeshCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.cells = n
		}
	}
}

// New returns a new SdfxKernel.
func New(opts ...Option) *SdfxKernel {
	k := &SdfxKernel{cells: DefaultMeshCells}
	for _, o := range opts {
		o(k)
	}
	return k
}

func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// RoundedBox creates a box centered on the origin. The rounding radius is
// clamped to half the smallest extent.
func (k *SdfxKernel) RoundedBox(size [3]float64, round float64) (kernel.Solid, error) {
	v := v3.Vec{X: size[0], Y: size[1], Z: size[2]}
	if v.MinComponent() <= 0 {
		return nil, fmt.Errorf("sdfx: box size %v must be positive", size)
	}
	round = math.Max(0, math.Min(round, v.MinComponent()/2))
	s, err := sdf.Box3D(v, round)
	if err != nil {
		return nil, fmt.Errorf("sdfx: box3d: %w", err)
	}
	return wrap(s), nil
}

func blendRadius(blend float64) float64 {
	if math.IsNaN(blend) || blend <= 0 {
		return 0
	}
	return math.Min(blend, 1) * MaxBlendRadius
}

// Union returns the union of two solids, smoothed by a polynomial minimum
// when blend is positive.
func (k *SdfxKernel) Union(a, b kernel.Solid, blend float64) kernel.Solid {
	u := sdf.Union3D(unwrap(a), unwrap(b))
	if r := blendRadius(blend); r > 0 {
		if us, ok := u.(*sdf.UnionSDF3); ok {
			us.SetMin(sdf.PolyMin(r))
		}
	}
	return wrap(u)
}

// Difference returns a - b, smoothed by a polynomial maximum when blend is
// positive.
func (k *SdfxKernel) Difference(a, b kernel.Solid, blend float64) kernel.Solid {
	d := sdf.Difference3D(unwrap(a), unwrap(b))
	if r := blendRadius(blend); r > 0 {
		if ds, ok := d.(*sdf.DifferenceSDF3); ok {
			ds.SetMax(sdf.PolyMax(r))
		}
	}
	return wrap(d)
}

// Translate moves a solid by (x, y, z).
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Distance evaluates the signed distance field of s at p.
func (k *SdfxKernel) Distance(s kernel.Solid, p [3]float64) float64 {
	return unwrap(s).Evaluate(v3.Vec{X: p[0], Y: p[1], Z: p[2]})
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	renderer := render.NewMarchingCubesUniform(k.cells)
	triangles := render.ToTriangles(unwrap(s), renderer)

	numVerts := len(triangles) * 3
	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		n := tri.Normal()
		nx, ny, nz := float32(n.X), float32(n.Y), float32(n.Z)
		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}

// WriteSTL tessellates s and writes it to path as binary STL.
func (k *SdfxKernel) WriteSTL(s kernel.Solid, path string) error {
	renderer := render.NewMarchingCubesUniform(k.cells)
	triangles := render.ToTriangles(unwrap(s), renderer)
	if len(triangles) == 0 {
		return fmt.Errorf("sdfx: %s: solid produced no triangles", path)
	}
	if err := render.SaveSTL(path, triangles); err != nil {
		return fmt.Errorf("sdfx: write %s: %w", path, err)
	}
	return nil
}
