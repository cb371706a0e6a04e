package workplane

import (
	"errors"
	"math"

	"github.com/soypat/workbox/sdf"
	"gonum.org/v1/gonum/spatial/r3"
)

// Plane is a 2D coordinate system embedded in 3D space.
type Plane struct {
	Origin r3.Vec
	XDir   r3.Vec
	Normal r3.Vec
}

// XY is the plane through the origin facing +Z. It is also called "front".
var XY = Plane{XDir: r3.Vec{X: 1}, Normal: r3.Vec{Z: 1}}

// NewPlane returns a plane with orthonormalized axes.
func NewPlane(origin, xDir, normal r3.Vec) (Plane, error) {
	if r3.Norm(normal) == 0 || r3.Norm(xDir) == 0 {
		return Plane{}, errors.New("zero plane direction")
	}
	n := r3.Unit(normal)
	x := r3.Sub(xDir, r3.Scale(r3.Dot(xDir, n), n))
	if r3.Norm(x) < 1e-12 {
		return Plane{}, errors.New("plane x direction parallel to normal")
	}
	return Plane{Origin: origin, XDir: r3.Unit(x), Normal: n}, nil
}

// YDir returns the plane's y axis, completing a right handed frame.
func (p Plane) YDir() r3.Vec {
	return r3.Cross(p.Normal, p.XDir)
}

// ToWorld converts plane coordinates into world coordinates.
func (p Plane) ToWorld(x, y float64) r3.Vec {
	return r3.Add(p.Origin, r3.Add(r3.Scale(x, p.XDir), r3.Scale(y, p.YDir())))
}

// Frame returns the transform from plane-local coordinates (with z along
// the normal) to world coordinates.
func (p Plane) Frame() sdf.M44 {
	return sdf.Frame3D(p.Origin, p.XDir, p.YDir(), p.Normal)
}

// Offset returns the plane moved along its normal by d.
func (p Plane) Offset(d float64) Plane {
	p.Origin = r3.Add(p.Origin, r3.Scale(d, p.Normal))
	return p
}

// At returns the plane moved to a new origin.
func (p Plane) At(origin r3.Vec) Plane {
	p.Origin = origin
	return p
}

// Transform returns the plane moved by a rigid transform.
func (p Plane) Transform(m sdf.M44) Plane {
	return Plane{
		Origin: m.MulPosition(p.Origin),
		XDir:   m.MulDirection(p.XDir),
		Normal: m.MulDirection(p.Normal),
	}
}

// defaultXDir picks the x axis for a workplane created on a face.
func defaultXDir(normal r3.Vec) r3.Vec {
	if math.Abs(normal.X) > 1-1e-9 {
		return r3.Vec{Y: 1}
	}
	return r3.Vec{X: 1}
}
