// Package kernel defines the geometry kernel the reference evaluator runs
// against. A kernel builds rounded boxes, blends them with union and
// difference, and turns the result into triangles for display or export.
package kernel

// Solid is an opaque handle to a kernel solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// RoundedBox returns a box of the given full extents centered on the
	// origin. round is the edge radius in world units.
	RoundedBox(size [3]float64, round float64) (Solid, error)

	// Union and Difference combine two solids. blend in [0,1] controls the
	// width of the smooth transition; 0 is a hard boolean.
	Union(a, b Solid, blend float64) Solid
	Difference(a, b Solid, blend float64) Solid

	Translate(s Solid, x, y, z float64) Solid

	// Distance returns the signed distance from p to the surface of s,
	// negative inside.
	Distance(s Solid, p [3]float64) float64

	ToMesh(s Solid) (*Mesh, error)
	WriteSTL(s Solid, path string) error
}
