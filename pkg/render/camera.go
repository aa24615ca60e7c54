package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Camera is a quaternion trackball producing the view rotation the
// kernels build their ray bases from. Screen drags map onto a virtual
// hemisphere over the viewport; scripted turntables use Orbit.
type Camera struct {
	width, height int
	rot           mgl64.Quat
}

// NewCamera creates a trackball over a viewport of the given size,
// looking down the volume's z axis.
func NewCamera(width, height int) *Camera {
	return &Camera{width: width, height: height, rot: mgl64.QuatIdent()}
}

// SetViewport updates the viewport size drags are projected against.
func (c *Camera) SetViewport(width, height int) {
	c.width = width
	c.height = height
}

// ViewMatrix returns the current view rotation. Only the 3x3 rotation
// block is meaningful; there is no translation.
func (c *Camera) ViewMatrix() mgl64.Mat4 {
	return c.rot.Mat4()
}

// Drag rotates the camera as if the mouse moved from (x0, y0) to
// (x1, y1) on the viewport. Both points are projected onto a
// hemisphere; the rotation axis is their cross product and the angle
// grows with the projected distance, 90 degrees per unit. A drag that
// does not move leaves the orientation unchanged.
func (c *Camera) Drag(x0, y0, x1, y1 int) {
	p0 := c.project(x0, y0)
	p1 := c.project(x1, y1)

	d := p1.Sub(p0)
	if d.Len() == 0 {
		return
	}
	axis := p0.Cross(p1)
	if axis.Len() == 0 {
		return
	}
	angle := mgl64.DegToRad(90 * d.Len())
	c.rot = mgl64.QuatRotate(angle, axis.Normalize()).Mul(c.rot).Normalize()
}

// Orbit rotates the camera by the given angle about an axis, for
// scripted turntable sequences. A zero axis is ignored.
func (c *Camera) Orbit(axis mgl64.Vec3, degrees float64) {
	if axis.Len() == 0 {
		return
	}
	c.rot = mgl64.QuatRotate(mgl64.DegToRad(degrees), axis.Normalize()).Mul(c.rot).Normalize()
}

// Reset restores the identity orientation.
func (c *Camera) Reset() {
	c.rot = mgl64.QuatIdent()
}

// project maps viewport coordinates onto a unit hemisphere centered on
// the viewport, slightly inset so edge drags still land on the sphere.
func (c *Camera) project(x, y int) mgl64.Vec3 {
	radius := float64(min(c.width, c.height) - 20)
	vx := (2*float64(x) - float64(c.width)) / radius
	vy := (float64(c.height) - 2*float64(y)) / radius
	d := math.Sqrt(vx*vx + vy*vy)
	if d > 1 {
		d = 1
	}
	vz := math.Cos(math.Pi / 2 * d)
	return mgl64.Vec3{vx, vy, vz}.Normalize()
}
