package scene

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Orbit limits.
const (
	MinDistance  = 0.1
	MaxDistance  = 20.0
	maxElevation = math.Pi/2 - 0.01
)

// Camera orbits a target point. Azimuth rotates about +Y, elevation lifts
// the eye above the ground plane.
type Camera struct {
	Target    v3.Vec
	Azimuth   float64
	Elevation float64
	Distance  float64
}

// DefaultCamera looks at the origin from 10 units away, 45° up.
func DefaultCamera() Camera {
	return Camera{Elevation: math.Pi / 4, Distance: 10}
}

// Viewport is the pixel size of a render target.
type Viewport struct {
	Width, Height int
}

// Aspect returns width / height.
func (v Viewport) Aspect() float64 {
	if v.Height == 0 {
		return 1
	}
	return float64(v.Width) / float64(v.Height)
}

// Cursor is a pixel position in a viewport. Y grows downward.
type Cursor struct {
	X, Y float64
}

// Inside reports whether c falls on a pixel of v.
func (c Cursor) Inside(v Viewport) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < float64(v.Width) && c.Y < float64(v.Height)
}

// Orbit rotates the camera by the given deltas (radians), clamping the
// elevation short of the poles.
func (c *Camera) Orbit(dAzimuth, dElevation float64) {
	c.Azimuth += dAzimuth
	c.Elevation = clamp(c.Elevation+dElevation, -maxElevation, maxElevation)
}

// Zoom moves the eye toward or away from the target.
func (c *Camera) Zoom(delta float64) {
	c.Distance = clamp(c.Distance+delta, MinDistance, MaxDistance)
}

// Pan slides the target in the ground plane relative to the view heading.
func (c *Camera) Pan(right, forward float64) {
	sin, cos := math.Sincos(c.Azimuth)
	c.Target.X += right*cos - forward*sin
	c.Target.Z += -right*sin - forward*cos
}

// Eye returns the camera position.
func (c *Camera) Eye() v3.Vec {
	sinA, cosA := math.Sincos(c.Azimuth)
	sinE, cosE := math.Sincos(c.Elevation)
	offset := v3.Vec{X: cosE * sinA, Y: sinE, Z: cosE * cosA}
	return c.Target.Add(offset.MulScalar(c.Distance))
}

// basis returns the camera's right, up and forward unit vectors.
func (c *Camera) basis() (right, up, forward v3.Vec) {
	forward = c.Target.Sub(c.Eye()).Normalize()
	right = forward.Cross(v3.Vec{Y: 1}).Normalize()
	up = right.Cross(forward)
	return right, up, forward
}

// Project maps a world point to viewport pixels. ok is false for points at
// or behind the eye.
func (c *Camera) Project(p v3.Vec, vp Viewport) (x, y, depth float64, ok bool) {
	right, up, forward := c.basis()
	d := p.Sub(c.Eye())
	depth = d.Dot(forward)
	if depth <= 1e-6 {
		return 0, 0, depth, false
	}
	ndcX := d.Dot(right) / depth / vp.Aspect()
	ndcY := d.Dot(up) / depth
	x = (ndcX + 1) / 2 * float64(vp.Width)
	y = (1 - ndcY) / 2 * float64(vp.Height)
	return x, y, depth, true
}

// Ray returns the world-space ray through a cursor pixel.
func (c *Camera) Ray(cur Cursor, vp Viewport) (origin, dir v3.Vec) {
	right, up, forward := c.basis()
	ndcX := 2*cur.X/float64(vp.Width) - 1
	ndcY := 1 - 2*cur.Y/float64(vp.Height)
	dir = right.MulScalar(ndcX * vp.Aspect()).
		Add(up.MulScalar(ndcY)).
		Add(forward).
		Normalize()
	return c.Eye(), dir
}

// GroundHit intersects the cursor ray with the Y=0 plane. ok is false when
// the ray points away from the plane.
func (c *Camera) GroundHit(cur Cursor, vp Viewport) (v3.Vec, bool) {
	origin, dir := c.Ray(cur, vp)
	if math.Abs(dir.Y) < 1e-9 {
		return v3.Vec{}, false
	}
	t := -origin.Y / dir.Y
	if t < 0 {
		return v3.Vec{}, false
	}
	return origin.Add(dir.MulScalar(t)), true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
