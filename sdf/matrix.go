package sdf

import (
	"math"

	"github.com/soypat/workbox/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

const epsilon = 1e-12

// M44 is a 4x4 homogeneous matrix holding a rigid transform
// (rotation followed by translation). Rows are stored in order.
type M44 struct {
	x00, x01, x02, x03 float64
	x10, x11, x12, x13 float64
	x20, x21, x22, x23 float64
	x30, x31, x32, x33 float64
}

// Identity3D returns the identity transform.
func Identity3D() M44 {
	return M44{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate3D returns a transform that translates by v.
func Translate3D(v r3.Vec) M44 {
	return M44{
		1, 0, 0, v.X,
		0, 1, 0, v.Y,
		0, 0, 1, v.Z,
		0, 0, 0, 1,
	}
}

// Frame3D returns the transform taking local coordinates of an orthonormal
// frame into world coordinates. The columns of the rotation are x, y and z.
func Frame3D(origin, x, y, z r3.Vec) M44 {
	return M44{
		x.X, y.X, z.X, origin.X,
		x.Y, y.Y, z.Y, origin.Y,
		x.Z, y.Z, z.Z, origin.Z,
		0, 0, 0, 1,
	}
}

// RotateToVec returns the rotation that turns direction a onto direction b.
// Opposite vectors yield a half turn about an axis perpendicular to a.
func RotateToVec(a, b r3.Vec) M44 {
	if d3.EqualWithin(a, r3.Vec{}, epsilon) || d3.EqualWithin(b, r3.Vec{}, epsilon) {
		return Identity3D()
	}
	a = r3.Unit(a)
	b = r3.Unit(b)
	c := r3.Dot(a, b)
	if c > 1-1e-9 {
		return Identity3D()
	}
	if c < -1+1e-9 {
		// Half turn about u: R = 2uu' - I.
		ref := r3.Vec{X: 1}
		if math.Abs(a.X) > 0.9 {
			ref = r3.Vec{Y: 1}
		}
		u := r3.Unit(r3.Cross(a, ref))
		return M44{
			2*u.X*u.X - 1, 2 * u.X * u.Y, 2 * u.X * u.Z, 0,
			2 * u.Y * u.X, 2*u.Y*u.Y - 1, 2 * u.Y * u.Z, 0,
			2 * u.Z * u.X, 2 * u.Z * u.Y, 2*u.Z*u.Z - 1, 0,
			0, 0, 0, 1,
		}
	}
	// Rodrigues: R = I + [v]x + k*(vv' - |v|^2 I), k = 1/(1+c).
	v := r3.Cross(a, b)
	k := 1 / (1 + c)
	v2 := r3.Norm2(v)
	return M44{
		1 + k*(v.X*v.X-v2), -v.Z + k*v.X*v.Y, v.Y + k*v.X*v.Z, 0,
		v.Z + k*v.Y*v.X, 1 + k*(v.Y*v.Y-v2), -v.X + k*v.Y*v.Z, 0,
		-v.Y + k*v.Z*v.X, v.X + k*v.Z*v.Y, 1 + k*(v.Z*v.Z-v2), 0,
		0, 0, 0, 1,
	}
}

// Mul multiplies two transforms. The result applies b first, then a.
func (a M44) Mul(b M44) M44 {
	return M44{
		a.x00*b.x00 + a.x01*b.x10 + a.x02*b.x20 + a.x03*b.x30,
		a.x00*b.x01 + a.x01*b.x11 + a.x02*b.x21 + a.x03*b.x31,
		a.x00*b.x02 + a.x01*b.x12 + a.x02*b.x22 + a.x03*b.x32,
		a.x00*b.x03 + a.x01*b.x13 + a.x02*b.x23 + a.x03*b.x33,

		a.x10*b.x00 + a.x11*b.x10 + a.x12*b.x20 + a.x13*b.x30,
		a.x10*b.x01 + a.x11*b.x11 + a.x12*b.x21 + a.x13*b.x31,
		a.x10*b.x02 + a.x11*b.x12 + a.x12*b.x22 + a.x13*b.x32,
		a.x10*b.x03 + a.x11*b.x13 + a.x12*b.x23 + a.x13*b.x33,

		a.x20*b.x00 + a.x21*b.x10 + a.x22*b.x20 + a.x23*b.x30,
		a.x20*b.x01 + a.x21*b.x11 + a.x22*b.x21 + a.x23*b.x31,
		a.x20*b.x02 + a.x21*b.x12 + a.x22*b.x22 + a.x23*b.x32,
		a.x20*b.x03 + a.x21*b.x13 + a.x22*b.x23 + a.x23*b.x33,

		a.x30*b.x00 + a.x31*b.x10 + a.x32*b.x20 + a.x33*b.x30,
		a.x30*b.x01 + a.x31*b.x11 + a.x32*b.x21 + a.x33*b.x31,
		a.x30*b.x02 + a.x31*b.x12 + a.x32*b.x22 + a.x33*b.x32,
		a.x30*b.x03 + a.x31*b.x13 + a.x32*b.x23 + a.x33*b.x33,
	}
}

// MulPosition transforms a point.
func (a M44) MulPosition(b r3.Vec) r3.Vec {
	return r3.Vec{
		X: a.x00*b.X + a.x01*b.Y + a.x02*b.Z + a.x03,
		Y: a.x10*b.X + a.x11*b.Y + a.x12*b.Z + a.x13,
		Z: a.x20*b.X + a.x21*b.Y + a.x22*b.Z + a.x23,
	}
}

// MulDirection transforms a direction. Translation is ignored.
func (a M44) MulDirection(b r3.Vec) r3.Vec {
	return r3.Vec{
		X: a.x00*b.X + a.x01*b.Y + a.x02*b.Z,
		Y: a.x10*b.X + a.x11*b.Y + a.x12*b.Z,
		Z: a.x20*b.X + a.x21*b.Y + a.x22*b.Z,
	}
}

// Translation returns the translation component of the transform.
func (a M44) Translation() r3.Vec {
	return r3.Vec{X: a.x03, Y: a.x13, Z: a.x23}
}

// Inverse returns the inverse of a rigid transform.
func (a M44) Inverse() M44 {
	// Rotation part is orthonormal so its inverse is its transpose.
	t := r3.Vec{X: a.x03, Y: a.x13, Z: a.x23}
	inv := M44{
		a.x00, a.x10, a.x20, 0,
		a.x01, a.x11, a.x21, 0,
		a.x02, a.x12, a.x22, 0,
		0, 0, 0, 1,
	}
	it := inv.MulDirection(t)
	inv.x03, inv.x13, inv.x23 = -it.X, -it.Y, -it.Z
	return inv
}

// MulBox returns the axis aligned box enclosing the transformed box.
func (a M44) MulBox(box r3.Box) r3.Box {
	vs := d3.Box(box).Vertices()
	bb := d3.Box{Min: a.MulPosition(vs[0]), Max: a.MulPosition(vs[0])}
	for _, v := range vs[1:] {
		bb = bb.Include(a.MulPosition(v))
	}
	return r3.Box(bb)
}

// Equals tests the equality of two transforms within tol.
func (a M44) Equals(b M44, tol float64) bool {
	da := [16]float64{a.x00, a.x01, a.x02, a.x03, a.x10, a.x11, a.x12, a.x13, a.x20, a.x21, a.x22, a.x23, a.x30, a.x31, a.x32, a.x33}
	db := [16]float64{b.x00, b.x01, b.x02, b.x03, b.x10, b.x11, b.x12, b.x13, b.x20, b.x21, b.x22, b.x23, b.x30, b.x31, b.x32, b.x33}
	for i := range da {
		if math.Abs(da[i]-db[i]) > tol {
			return false
		}
	}
	return true
}
