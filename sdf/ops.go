package sdf

import (
	"math"
	"strconv"

	"github.com/soypat/workbox/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// union3 is a union of SDF3s.
type union3 struct {
	sdf []SDF3
	bb  r3.Box
}

// Union3D returns the union of multiple SDF3s. A single argument is returned as is.
func Union3D(sdf ...SDF3) (SDF3, error) {
	if len(sdf) == 0 {
		return nil, errMsg("union requires at least one sdf")
	}
	for i, x := range sdf {
		if x == nil {
			return nil, errMsg("nil sdf argument (" + strconv.Itoa(i) + ") to Union3D")
		}
	}
	if len(sdf) == 1 {
		return sdf[0], nil
	}
	bb := d3.Box(sdf[0].Bounds())
	for _, x := range sdf[1:] {
		bb = bb.Extend(d3.Box(x.Bounds()))
	}
	return &union3{sdf: sdf, bb: r3.Box(bb)}, nil
}

// Evaluate returns the minimum distance to an SDF3 union.
func (s *union3) Evaluate(p r3.Vec) float64 {
	d := s.sdf[0].Evaluate(p)
	for _, x := range s.sdf[1:] {
		d = math.Min(d, x.Evaluate(p))
	}
	return d
}

// Bounds returns the bounding box of an SDF3 union.
func (s *union3) Bounds() r3.Box {
	return s.bb
}

// diff3 is the difference of two SDF3s, s0 - s1.
type diff3 struct {
	s0 SDF3
	s1 SDF3
}

// Difference3D returns the difference of two SDF3s, s0 - s1.
func Difference3D(s0, s1 SDF3) (SDF3, error) {
	if s0 == nil || s1 == nil {
		return nil, ErrNilSDF
	}
	return &diff3{s0: s0, s1: s1}, nil
}

// Evaluate returns the minimum distance to the SDF3 difference.
func (s *diff3) Evaluate(p r3.Vec) float64 {
	return math.Max(s.s0.Evaluate(p), -s.s1.Evaluate(p))
}

// Bounds returns the bounding box of the minuend.
func (s *diff3) Bounds() r3.Box {
	return s.s0.Bounds()
}

// intersection3 is the intersection of two SDF3s.
type intersection3 struct {
	s0 SDF3
	s1 SDF3
	bb r3.Box
}

// Intersect3D returns the intersection of two SDF3s.
func Intersect3D(s0, s1 SDF3) (SDF3, error) {
	if s0 == nil || s1 == nil {
		return nil, ErrNilSDF
	}
	bb := d3.Box(s0.Bounds()).Intersect(d3.Box(s1.Bounds()))
	return &intersection3{s0: s0, s1: s1, bb: r3.Box(bb)}, nil
}

// Evaluate returns the minimum distance to the SDF3 intersection.
func (s *intersection3) Evaluate(p r3.Vec) float64 {
	return math.Max(s.s0.Evaluate(p), s.s1.Evaluate(p))
}

// Bounds returns the bounding box of an SDF3 intersection.
func (s *intersection3) Bounds() r3.Box {
	return s.bb
}

// offset3 grows or shrinks an SDF3 by a distance.
type offset3 struct {
	sdf      SDF3
	distance float64
	bb       r3.Box
}

// Offset3D returns an SDF3 that offsets the surface of another SDF3 outward
// by offset. Negative offsets shrink the shape.
func Offset3D(sdf SDF3, offset float64) (SDF3, error) {
	if sdf == nil {
		return nil, ErrNilSDF
	}
	bb := d3.Box(sdf.Bounds())
	return &offset3{
		sdf:      sdf,
		distance: offset,
		bb:       r3.Box(d3.NewBox(bb.Center(), r3.Add(bb.Size(), d3.Elem(2*offset)))),
	}, nil
}

// Evaluate returns the minimum distance to an offset SDF3.
func (s *offset3) Evaluate(p r3.Vec) float64 {
	return s.sdf.Evaluate(p) - s.distance
}

// Bounds returns the bounding box of an offset SDF3.
func (s *offset3) Bounds() r3.Box {
	return s.bb
}

// cut3 makes a planar cut through an SDF3.
type cut3 struct {
	sdf SDF3
	a   r3.Vec // point on plane
	n   r3.Vec // outward normal of the kept half space
	bb  r3.Box
}

// Cut3D cuts an SDF3 along a plane passing through a with normal n.
// The part of the SDF3 opposite to the normal remains.
func Cut3D(sdf SDF3, a, n r3.Vec) (SDF3, error) {
	if sdf == nil {
		return nil, ErrNilSDF
	}
	if r3.Norm(n) == 0 {
		return nil, errMsg("zero cut plane normal")
	}
	n = r3.Unit(n)
	bb := d3.Box(sdf.Bounds())
	// Clip the box when the plane is axis aligned.
	switch {
	case n.Z > 1-epsilon:
		bb.Max.Z = math.Min(bb.Max.Z, a.Z)
	case n.Z < -1+epsilon:
		bb.Min.Z = math.Max(bb.Min.Z, a.Z)
	case n.Y > 1-epsilon:
		bb.Max.Y = math.Min(bb.Max.Y, a.Y)
	case n.Y < -1+epsilon:
		bb.Min.Y = math.Max(bb.Min.Y, a.Y)
	case n.X > 1-epsilon:
		bb.Max.X = math.Min(bb.Max.X, a.X)
	case n.X < -1+epsilon:
		bb.Min.X = math.Max(bb.Min.X, a.X)
	}
	return &cut3{sdf: sdf, a: a, n: n, bb: r3.Box(bb)}, nil
}

// Evaluate returns the minimum distance to the cut SDF3.
func (s *cut3) Evaluate(p r3.Vec) float64 {
	return math.Max(r3.Dot(r3.Sub(p, s.a), s.n), s.sdf.Evaluate(p))
}

// Bounds returns the bounding box of the cut SDF3.
func (s *cut3) Bounds() r3.Box {
	return s.bb
}

// extrude3 is a linear extrusion of an SDF2 along z, centered on z=0.
type extrude3 struct {
	sdf    SDF2
	height float64 // half height
	bb     r3.Box
}

// Extrude3D does a linear extrude on an SDF2 along the z axis.
// The result is centered about z=0.
func Extrude3D(sdf SDF2, height float64) (SDF3, error) {
	if sdf == nil {
		return nil, ErrNilSDF
	}
	if height <= 0 {
		return nil, errMsg("extrude height <= 0")
	}
	bb := sdf.Bounds()
	h := height / 2
	return &extrude3{
		sdf:    sdf,
		height: h,
		bb:     r3.Box{Min: r3.Vec{X: bb.Min.X, Y: bb.Min.Y, Z: -h}, Max: r3.Vec{X: bb.Max.X, Y: bb.Max.Y, Z: h}},
	}, nil
}

// Evaluate returns the minimum distance to an extrusion.
func (s *extrude3) Evaluate(p r3.Vec) float64 {
	a := s.sdf.Evaluate(r2Of(p))
	b := math.Abs(p.Z) - s.height
	if a > 0 && b > 0 {
		return math.Hypot(a, b)
	}
	return math.Max(a, b)
}

// Bounds returns the bounding box for an extrusion.
func (s *extrude3) Bounds() r3.Box {
	return s.bb
}

// transform3 is an SDF3 placed by a rigid transform.
type transform3 struct {
	sdf     SDF3
	matrix  M44
	inverse M44
	bb      r3.Box
}

// Transform3D applies a rigid transformation matrix to an SDF3.
func Transform3D(sdf SDF3, matrix M44) (SDF3, error) {
	if sdf == nil {
		return nil, ErrNilSDF
	}
	return &transform3{
		sdf:     sdf,
		matrix:  matrix,
		inverse: matrix.Inverse(),
		bb:      matrix.MulBox(sdf.Bounds()),
	}, nil
}

// Evaluate returns the minimum distance to a transformed SDF3.
func (s *transform3) Evaluate(p r3.Vec) float64 {
	return s.sdf.Evaluate(s.inverse.MulPosition(p))
}

// Bounds returns the bounding box of a transformed SDF3.
func (s *transform3) Bounds() r3.Box {
	return s.bb
}

// Translate moves an SDF3 by v.
func Translate(sdf SDF3, v r3.Vec) (SDF3, error) {
	return Transform3D(sdf, Translate3D(v))
}
