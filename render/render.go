// Package render turns SDF3 solids into triangle meshes and writes them out
// as binary STL, hidden-line SVG drawings and shaded PNG previews.
package render

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Renderer streams the triangles of a surface mesh. ReadTriangles returns
// io.EOF once every triangle has been read.
type Renderer interface {
	ReadTriangles(t []Triangle3) (int, error)
}

// Triangle3 is a 3D triangle. Vertices are ordered counter-clockwise
// when seen from outside the solid.
type Triangle3 struct {
	V [3]r3.Vec
}

// Normal returns the unit normal of the triangle. Degenerate triangles
// return the zero vector.
func (t Triangle3) Normal() r3.Vec {
	n := r3.Cross(r3.Sub(t.V[1], t.V[0]), r3.Sub(t.V[2], t.V[0]))
	l := r3.Norm(n)
	if l == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/l, n)
}

// Area returns the area of the triangle.
func (t Triangle3) Area() float64 {
	return 0.5 * r3.Norm(r3.Cross(r3.Sub(t.V[1], t.V[0]), r3.Sub(t.V[2], t.V[0])))
}

// Degenerate returns true if two vertices of the triangle are within tol of each other.
func (t Triangle3) Degenerate(tol float64) bool {
	return r3.Norm(r3.Sub(t.V[0], t.V[1])) <= tol ||
		r3.Norm(r3.Sub(t.V[1], t.V[2])) <= tol ||
		r3.Norm(r3.Sub(t.V[2], t.V[0])) <= tol
}

// Transform returns the triangles moved by f. The input is not modified.
func Transform(model []Triangle3, f func(r3.Vec) r3.Vec) []Triangle3 {
	out := make([]Triangle3, len(model))
	for i, t := range model {
		out[i] = Triangle3{V: [3]r3.Vec{f(t.V[0]), f(t.V[1]), f(t.V[2])}}
	}
	return out
}
