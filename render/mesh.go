package render

import (
	"fmt"

	"github.com/soypat/workbox/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh. Vertices with identical coordinates
// are welded into one.
type Mesh struct {
	Vertices []r3.Vec
	Faces    [][3]int
}

// NewMesh indexes model, welding vertices that compare exactly equal.
// Vertex indices are assigned in order of first appearance.
func NewMesh(model []Triangle3) *Mesh {
	index := make(map[r3.Vec]int, len(model)/2)
	m := &Mesh{Faces: make([][3]int, len(model))}
	for i, t := range model {
		for j, v := range t.V {
			k, ok := index[v]
			if !ok {
				k = len(m.Vertices)
				index[v] = k
				m.Vertices = append(m.Vertices, v)
			}
			m.Faces[i][j] = k
		}
	}
	return m
}

type edge [2]int

func (m *Mesh) directedEdges() map[edge]int {
	edges := make(map[edge]int, 3*len(m.Faces))
	for _, f := range m.Faces {
		edges[edge{f[0], f[1]}]++
		edges[edge{f[1], f[2]}]++
		edges[edge{f[2], f[0]}]++
	}
	return edges
}

// CheckClosed returns an error unless every directed edge of the mesh
// appears exactly once and is matched by exactly one opposite edge.
// Such a mesh is closed and consistently oriented.
func (m *Mesh) CheckClosed() error {
	if len(m.Faces) == 0 {
		return fmt.Errorf("mesh has no faces")
	}
	edges := m.directedEdges()
	for _, f := range m.Faces {
		for j := 0; j < 3; j++ {
			e := edge{f[j], f[(j+1)%3]}
			if c := edges[e]; c != 1 {
				return fmt.Errorf("edge %v-%v used %d times in same direction", m.Vertices[e[0]], m.Vertices[e[1]], c)
			}
			if c := edges[edge{e[1], e[0]}]; c != 1 {
				return fmt.Errorf("edge %v-%v has %d opposite edges", m.Vertices[e[0]], m.Vertices[e[1]], c)
			}
		}
	}
	return nil
}

// Components returns the number of edge connected components of the mesh.
func (m *Mesh) Components() int {
	parent := make([]int, len(m.Vertices))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	used := make([]bool, len(m.Vertices))
	for _, f := range m.Faces {
		union(f[0], f[1])
		union(f[1], f[2])
		used[f[0]], used[f[1]], used[f[2]] = true, true, true
	}
	roots := make(map[int]struct{})
	for i, u := range used {
		if u {
			roots[find(i)] = struct{}{}
		}
	}
	return len(roots)
}

// Volume returns the signed volume enclosed by the mesh. It is positive
// for closed meshes with outward facing triangles.
func (m *Mesh) Volume() float64 {
	var vol float64
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		vol += r3.Dot(a, r3.Cross(b, c))
	}
	return vol / 6
}

// Bounds returns the bounding box of the mesh vertices.
func (m *Mesh) Bounds() r3.Box {
	if len(m.Vertices) == 0 {
		return r3.Box{}
	}
	bb := d3.Box{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		bb = bb.Include(v)
	}
	return r3.Box(bb)
}

// FaceNormal returns the unit normal of face i.
func (m *Mesh) FaceNormal(i int) r3.Vec {
	f := m.Faces[i]
	return Triangle3{V: [3]r3.Vec{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}}.Normal()
}
