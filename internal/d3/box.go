package d3

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Box is a 3d axis aligned bounding box.
type Box r3.Box

// NewBox creates a 3d box with a given center and size.
// Negative components of size will be interpreted as zero.
func NewBox(center, size r3.Vec) Box {
	size = MaxElem(size, r3.Vec{})
	half := r3.Scale(0.5, size)
	return Box{Min: r3.Sub(center, half), Max: r3.Add(center, half)}
}

// Equals test the equality of 3d boxes.
func (a Box) Equals(b Box, tol float64) bool {
	return EqualWithin(a.Min, b.Min, tol) && EqualWithin(a.Max, b.Max, tol)
}

// Extend returns a box enclosing two 3d boxes.
func (a Box) Extend(b Box) Box {
	return Box{
		Min: MinElem(a.Min, b.Min),
		Max: MaxElem(a.Max, b.Max),
	}
}

// Intersect returns the overlap of two boxes. The result has
// zero size along any axis where the boxes do not overlap.
func (a Box) Intersect(b Box) Box {
	out := Box{
		Min: MaxElem(a.Min, b.Min),
		Max: MinElem(a.Max, b.Max),
	}
	out.Max = MaxElem(out.Max, out.Min)
	return out
}

// Include enlarges a 3d box to include a point.
func (a Box) Include(v r3.Vec) Box {
	return Box{
		Min: MinElem(a.Min, v),
		Max: MaxElem(a.Max, v),
	}
}

// Translate translates a 3d box.
func (a Box) Translate(v r3.Vec) Box {
	return Box{r3.Add(a.Min, v), r3.Add(a.Max, v)}
}

// Size returns the size of a 3d box.
func (a Box) Size() r3.Vec {
	return r3.Sub(a.Max, a.Min)
}

// Center returns the center of a 3d box.
func (a Box) Center() r3.Vec {
	return r3.Add(a.Min, r3.Scale(0.5, a.Size()))
}

// Enlarge returns a new 3d box enlarged by a size vector.
func (a Box) Enlarge(v r3.Vec) Box {
	v = r3.Scale(0.5, v)
	return Box{
		Min: r3.Sub(a.Min, v),
		Max: r3.Add(a.Max, v),
	}
}

// Contains checks if the 3d box contains the given vector (considering bounds as inside).
func (a Box) Contains(v r3.Vec) bool {
	return a.Min.X <= v.X && a.Min.Y <= v.Y && a.Min.Z <= v.Z &&
		v.X <= a.Max.X && v.Y <= a.Max.Y && v.Z <= a.Max.Z
}

// Empty reports whether the box has zero volume.
func (a Box) Empty() bool {
	return LTEZero(a.Size())
}

// Vertices returns the 8 corner vertices of the box.
func (a Box) Vertices() [8]r3.Vec {
	return [8]r3.Vec{
		a.Min,
		{X: a.Min.X, Y: a.Min.Y, Z: a.Max.Z},
		{X: a.Min.X, Y: a.Max.Y, Z: a.Min.Z},
		{X: a.Min.X, Y: a.Max.Y, Z: a.Max.Z},
		{X: a.Max.X, Y: a.Min.Y, Z: a.Min.Z},
		{X: a.Max.X, Y: a.Min.Y, Z: a.Max.Z},
		{X: a.Max.X, Y: a.Max.Y, Z: a.Min.Z},
		a.Max,
	}
}
