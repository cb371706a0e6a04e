package sdf

import (
	"math"

	"github.com/soypat/workbox/internal/d3"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// box is a 3d box centered at the origin.
type box struct {
	size  r3.Vec
	round float64
	bb    r3.Box
}

// Box3D returns an SDF3 for a 3d box centered at the origin
// (rounded edges with round > 0).
func Box3D(size r3.Vec, round float64) (SDF3, error) {
	if d3.LTEZero(size) {
		return nil, errMsg("box size <= 0")
	}
	if round < 0 {
		return nil, errMsg("round < 0")
	}
	if 2*round > d3.Min(size) {
		return nil, errMsg("round exceeds half of smallest box side")
	}
	size = r3.Scale(0.5, size)
	return &box{
		size:  r3.Sub(size, d3.Elem(round)),
		round: round,
		bb:    r3.Box{Min: r3.Scale(-1, size), Max: size},
	}, nil
}

// Evaluate returns the minimum distance to a 3d box.
func (s *box) Evaluate(p r3.Vec) float64 {
	return sdfBox3d(p, s.size) - s.round
}

// Bounds returns the bounding box for a 3d box.
func (s *box) Bounds() r3.Box {
	return s.bb
}

// cylinder is a cylinder along the z axis centered at the origin.
type cylinder struct {
	height float64 // half height
	radius float64
	round  float64
	bb     r3.Box
}

// Cylinder3D returns an SDF3 for a cylinder along z (rounded edges with round > 0).
func Cylinder3D(height, radius, round float64) (SDF3, error) {
	switch {
	case radius <= 0:
		return nil, errMsg("radius <= 0")
	case height <= 0:
		return nil, errMsg("height <= 0")
	case round < 0:
		return nil, errMsg("round < 0")
	case round > radius:
		return nil, errMsg("round > radius")
	case height < 2*round:
		return nil, errMsg("height < 2 * round")
	}
	d := r3.Vec{X: radius, Y: radius, Z: height / 2}
	return &cylinder{
		height: height/2 - round,
		radius: radius - round,
		round:  round,
		bb:     r3.Box{Min: r3.Scale(-1, d), Max: d},
	}, nil
}

// Evaluate returns the minimum distance to a cylinder.
func (s *cylinder) Evaluate(p r3.Vec) float64 {
	d := sdfBox2d(r2.Vec{X: math.Hypot(p.X, p.Y), Y: p.Z}, r2.Vec{X: s.radius, Y: s.height})
	return d - s.round
}

// Bounds returns the bounding box for a cylinder.
func (s *cylinder) Bounds() r3.Box {
	return s.bb
}

// rect2 is a 2d rectangle centered at the origin.
type rect2 struct {
	size  r2.Vec // half size less round
	round float64
	bb    r2.Box
}

// Rect2D returns an SDF2 for a rectangle centered at the origin
// (rounded corners with round > 0).
func Rect2D(size r2.Vec, round float64) (SDF2, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, errMsg("rectangle size <= 0")
	}
	if round < 0 {
		return nil, errMsg("round < 0")
	}
	if 2*round > math.Min(size.X, size.Y) {
		return nil, errMsg("round exceeds half of smallest rectangle side")
	}
	half := r2.Scale(0.5, size)
	return &rect2{
		size:  r2.Sub(half, r2.Vec{X: round, Y: round}),
		round: round,
		bb:    r2.Box{Min: r2.Scale(-1, half), Max: half},
	}, nil
}

func (s *rect2) Evaluate(p r2.Vec) float64 {
	return sdfBox2d(p, s.size) - s.round
}

func (s *rect2) Bounds() r2.Box {
	return s.bb
}

// circle2 is a 2d circle centered at the origin.
type circle2 struct {
	radius float64
	bb     r2.Box
}

// Circle2D returns an SDF2 for a circle centered at the origin.
func Circle2D(radius float64) (SDF2, error) {
	if radius <= 0 {
		return nil, errMsg("radius <= 0")
	}
	d := r2.Vec{X: radius, Y: radius}
	return &circle2{radius: radius, bb: r2.Box{Min: r2.Scale(-1, d), Max: d}}, nil
}

func (s *circle2) Evaluate(p r2.Vec) float64 {
	return r2.Norm(p) - s.radius
}

func (s *circle2) Bounds() r2.Box {
	return s.bb
}

func sdfBox3d(p, s r3.Vec) float64 {
	d := r3.Sub(d3.AbsElem(p), s)
	if d.X > 0 && d.Y > 0 && d.Z > 0 {
		return r3.Norm(d)
	}
	if d.X > 0 && d.Y > 0 {
		return math.Hypot(d.X, d.Y)
	}
	if d.X > 0 && d.Z > 0 {
		return math.Hypot(d.X, d.Z)
	}
	if d.Y > 0 && d.Z > 0 {
		return math.Hypot(d.Y, d.Z)
	}
	if d.X > 0 {
		return d.X
	}
	if d.Y > 0 {
		return d.Y
	}
	if d.Z > 0 {
		return d.Z
	}
	return d3.Max(d)
}

func sdfBox2d(p, s r2.Vec) float64 {
	p = r2.Vec{X: math.Abs(p.X), Y: math.Abs(p.Y)}
	d := r2.Sub(p, s)
	if d.X > 0 && d.Y > 0 {
		return r2.Norm(d)
	}
	return math.Max(d.X, d.Y)
}
