package render

import (
	"errors"
	"math"

	"github.com/soypat/workbox/internal/d3"
	"github.com/soypat/workbox/sdf"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	_ sdf.SDF3         = (*kdSDF)(nil)
	_ kdtree.Interface = kdCentroids{}
)

// kdNeighbours is the number of triangles measured per evaluation.
const kdNeighbours = 16

// NewKDSDF returns an SDF3 backed by a closed triangle mesh, such as one read
// back from an STL file. Triangle centroids are kept in a k-d tree and each
// evaluation measures the exact distance to the triangles nearest the query
// point. The sign comes from the normals at the closest point, so the
// mesh must be outward facing.
func NewKDSDF(model []Triangle3) (sdf.SDF3, error) {
	if len(model) == 0 {
		return nil, errors.New("empty mesh")
	}
	centroids := make(kdCentroids, len(model))
	bb := d3.Box{Min: model[0].V[0], Max: model[0].V[0]}
	for i, t := range model {
		centroids[i] = kdCentroid{p: t.centroid(), index: i}
		for _, v := range t.V {
			bb = bb.Include(v)
		}
	}
	return &kdSDF{
		tree:  kdtree.New(centroids, false),
		model: model,
		bb:    r3.Box(bb),
	}, nil
}

type kdSDF struct {
	tree  *kdtree.Tree
	model []Triangle3
	bb    r3.Box
}

func (s *kdSDF) Evaluate(p r3.Vec) float64 {
	const tie = 1e-9
	keep := kdtree.NewNKeeper(kdNeighbours)
	s.tree.NearestSet(keep, kdCentroid{p: p})
	best := math.Inf(1)
	var closest, normal r3.Vec
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		t := s.model[c.Comparable.(kdCentroid).index]
		q := t.closestPoint(p)
		d := r3.Norm(r3.Sub(p, q))
		switch {
		case d < best-tie:
			best, closest, normal = d, q, t.Normal()
		case d <= best+tie:
			// Closest point on a shared edge or vertex.
			normal = r3.Add(normal, t.Normal())
		}
	}
	if best == 0 || math.IsInf(best, 1) {
		return best
	}
	if r3.Dot(r3.Sub(p, closest), normal) < 0 {
		return -best
	}
	return best
}

func (s *kdSDF) Bounds() r3.Box {
	return s.bb
}

func (t Triangle3) centroid() r3.Vec {
	return r3.Scale(1./3., r3.Add(t.V[0], r3.Add(t.V[1], t.V[2])))
}

// closestPoint returns the point of the triangle nearest to p.
func (t Triangle3) closestPoint(p r3.Vec) r3.Vec {
	a, b, c := t.V[0], t.V[1], t.V[2]
	ab, ac, ap := r3.Sub(b, a), r3.Sub(c, a), r3.Sub(p, a)
	s1, s2 := r3.Dot(ab, ap), r3.Dot(ac, ap)
	if s1 <= 0 && s2 <= 0 {
		return a
	}
	bp := r3.Sub(p, b)
	s3, s4 := r3.Dot(ab, bp), r3.Dot(ac, bp)
	if s3 >= 0 && s4 <= s3 {
		return b
	}
	vc := s1*s4 - s3*s2
	if vc <= 0 && s1 >= 0 && s3 <= 0 {
		return r3.Add(a, r3.Scale(s1/(s1-s3), ab))
	}
	cp := r3.Sub(p, c)
	s5, s6 := r3.Dot(ab, cp), r3.Dot(ac, cp)
	if s6 >= 0 && s5 <= s6 {
		return c
	}
	vb := s5*s2 - s1*s6
	if vb <= 0 && s2 >= 0 && s6 <= 0 {
		return r3.Add(a, r3.Scale(s2/(s2-s6), ac))
	}
	va := s3*s6 - s5*s4
	if va <= 0 && s4-s3 >= 0 && s5-s6 >= 0 {
		return r3.Add(b, r3.Scale((s4-s3)/((s4-s3)+(s5-s6)), r3.Sub(c, b)))
	}
	denom := 1 / (va + vb + vc)
	return r3.Add(a, r3.Add(r3.Scale(vb*denom, ab), r3.Scale(vc*denom, ac)))
}

// kdCentroid is a triangle's centroid and its index in the model.
type kdCentroid struct {
	p     r3.Vec
	index int
}

// Compare returns the signed distance of a from the plane passing through
// b and perpendicular to the dimension d.
func (a kdCentroid) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return kdComp(a.p, b.(kdCentroid).p, d)
}

// Dims returns the number of dimensions described in the Comparable.
func (a kdCentroid) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between the receiver and
// the parameter.
func (a kdCentroid) Distance(b kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(a.p, b.(kdCentroid).p))
}

type kdCentroids []kdCentroid

func (k kdCentroids) Index(i int) kdtree.Comparable { return k[i] }

func (k kdCentroids) Len() int { return len(k) }

// Pivot partitions the list based on the dimension specified.
func (k kdCentroids) Pivot(d kdtree.Dim) int {
	p := kdPlane{dim: d, centroids: k}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (k kdCentroids) Slice(start, end int) kdtree.Interface { return k[start:end] }

// c = a.dim - b.dim
func kdComp(a, b r3.Vec, dim kdtree.Dim) float64 {
	switch dim {
	case 0:
		return a.X - b.X
	case 1:
		return a.Y - b.Y
	}
	return a.Z - b.Z
}

type kdPlane struct {
	dim       kdtree.Dim
	centroids kdCentroids
}

func (p kdPlane) Less(i, j int) bool {
	return kdComp(p.centroids[i].p, p.centroids[j].p, p.dim) < 0
}

func (p kdPlane) Swap(i, j int) {
	p.centroids[i], p.centroids[j] = p.centroids[j], p.centroids[i]
}

func (p kdPlane) Len() int { return len(p.centroids) }

func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.centroids = p.centroids[start:end]
	return p
}
