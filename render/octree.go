package render

import (
	"errors"
	"io"
	"math"

	"github.com/soypat/workbox/internal/d3"
	"github.com/soypat/workbox/sdf"
	"gonum.org/v1/gonum/spatial/r3"
)

// Each leaf cube is split into 6 tetrahedra which yield at most 2 triangles each.
const leafMaxTriangles = 12

// gridShift offsets the sampling grid by a fraction of the resolution so
// axis aligned faces at round coordinates do not land on sample points.
const gridShift = 0.1273

// kuhn lists the 6 tetrahedra of a cube sharing the diagonal from corner 0
// to corner 7. Corner index bits are x=1, y=2, z=4. Every cube of the grid is
// split the same way so neighbouring tetrahedra share whole faces.
var kuhn = [6][4]int{
	{0, 1, 3, 7},
	{0, 1, 5, 7},
	{0, 2, 3, 7},
	{0, 2, 6, 7},
	{0, 4, 5, 7},
	{0, 4, 6, 7},
}

type v3i [3]int

func (a v3i) add(b v3i) v3i { return v3i{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }

func (a v3i) less(b v3i) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	if a[1] != b[1] {
		return a[1] < b[1]
	}
	return a[2] < b[2]
}

// octree renders with marching tetrahedra over octree space sampling.
type octree struct {
	dc        dc3
	todo      []cube
	unwritten triangle3Buffer
	scratch   [leafMaxTriangles]Triangle3
}

type cube struct {
	v v3i  // origin of cube as integers
	n uint // level of cube, size = 1 << n
}

// NewOctreeRenderer returns a marching tetrahedra Renderer for s sampling
// space with cubes of side resolution. Empty octree nodes are pruned.
// The resulting mesh is closed and consistently oriented, and the output
// is deterministic for a given shape and resolution.
func NewOctreeRenderer(s sdf.SDF3, resolution float64) (Renderer, error) {
	if s == nil {
		return nil, sdf.ErrNilSDF
	}
	if !(resolution > 0) {
		return nil, errors.New("resolution must be positive")
	}
	bb := d3.Box(s.Bounds())
	if bb.Empty() {
		return nil, errors.New("cannot render shape with empty bounds")
	}
	// Pad so the boundary cubes never touch the surface.
	pad := 2 * resolution
	bb = bb.Enlarge(d3.Elem(2 * pad))
	origin := r3.Sub(bb.Min, d3.Elem(gridShift*resolution))
	longAxis := d3.Max(bb.Size()) + resolution
	// The level=0 cube is at half resolution so leaf cube centers are grid points.
	unit := resolution / 2
	top := uint(math.Ceil(math.Log2(longAxis / unit)))
	if top < 1 {
		top = 1
	}
	if top >= 30 {
		return nil, errors.New("resolution too fine for shape size")
	}
	return &octree{
		dc:   *newDc3(s, origin, unit, top+1),
		todo: []cube{{v3i{0, 0, 0}, top}},
	}, nil
}

// ReadTriangles writes triangles rendered from the model into the argument buffer.
// returns number of triangles written and an error if present.
func (oc *octree) ReadTriangles(dst []Triangle3) (n int, err error) {
	if len(dst) == 0 {
		return 0, errors.New("cannot write to empty triangle slice")
	}
	for oc.unwritten.Len() < len(dst) && len(oc.todo) > 0 {
		// Depth first keeps the todo list short.
		c := oc.todo[len(oc.todo)-1]
		oc.todo = oc.todo[:len(oc.todo)-1]
		oc.processCube(c)
	}
	n = oc.unwritten.Read(dst)
	if n == 0 && len(oc.todo) == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// processCube generates triangles for a leaf cube or queues its non-empty children.
func (oc *octree) processCube(c cube) {
	if c.n == 1 {
		var keys [8]v3i
		var pos [8]r3.Vec
		var vals [8]float64
		for i := range keys {
			keys[i] = c.v.add(v3i{2 * (i & 1), (i & 2), (i & 4) / 2})
			pos[i], vals[i] = oc.dc.Evaluate(keys[i])
		}
		nt := 0
		for _, tet := range kuhn {
			nt += tetraTriangles(oc.scratch[nt:],
				[4]v3i{keys[tet[0]], keys[tet[1]], keys[tet[2]], keys[tet[3]]},
				[4]r3.Vec{pos[tet[0]], pos[tet[1]], pos[tet[2]], pos[tet[3]]},
				[4]float64{vals[tet[0]], vals[tet[1]], vals[tet[2]], vals[tet[3]]},
			)
		}
		oc.unwritten.Write(oc.scratch[:nt])
		return
	}
	n := c.n - 1
	s := 1 << n
	// Push in reverse so sub cubes are processed in index order.
	for i := 7; i >= 0; i-- {
		sub := cube{c.v.add(v3i{s * (i & 1), s * (i >> 1 & 1), s * (i >> 2 & 1)}), n}
		if !oc.dc.IsEmpty(&sub) {
			oc.todo = append(oc.todo, sub)
		}
	}
}

// tetraTriangles writes the zero isosurface of a tetrahedron into dst and
// returns the number of triangles written. Points with negative distance are inside.
func tetraTriangles(dst []Triangle3, keys [4]v3i, pos [4]r3.Vec, vals [4]float64) int {
	var in, out [4]int
	ni, no := 0, 0
	for i, v := range vals {
		if v < 0 {
			in[ni] = i
			ni++
		} else {
			out[no] = i
			no++
		}
	}
	if ni == 0 || no == 0 {
		return 0
	}
	edge := func(a, b int) r3.Vec {
		ka, kb := keys[a], keys[b]
		pa, pb, da, db := pos[a], pos[b], vals[a], vals[b]
		// Interpolate in canonical order so shared edges of
		// neighbouring tetrahedra produce identical vertices.
		if kb.less(ka) {
			pa, pb, da, db = pb, pa, db, da
		}
		return d3.Lerp(pa, pb, da/(da-db))
	}
	// Direction from the inside vertices towards the outside vertices.
	var cin, cout r3.Vec
	for _, i := range in[:ni] {
		cin = r3.Add(cin, pos[i])
	}
	for _, i := range out[:no] {
		cout = r3.Add(cout, pos[i])
	}
	g := r3.Sub(r3.Scale(1/float64(no), cout), r3.Scale(1/float64(ni), cin))

	var tris [2]Triangle3
	nt := 0
	switch {
	case ni == 1:
		a := in[0]
		tris[0] = Triangle3{V: [3]r3.Vec{edge(a, out[0]), edge(a, out[1]), edge(a, out[2])}}
		nt = 1
	case no == 1:
		a := out[0]
		tris[0] = Triangle3{V: [3]r3.Vec{edge(in[0], a), edge(in[1], a), edge(in[2], a)}}
		nt = 1
	default:
		a, b, c, d := in[0], in[1], out[0], out[1]
		ac, ad, bd, bc := edge(a, c), edge(a, d), edge(b, d), edge(b, c)
		tris[0] = Triangle3{V: [3]r3.Vec{ac, ad, bd}}
		tris[1] = Triangle3{V: [3]r3.Vec{ac, bd, bc}}
		nt = 2
	}
	written := 0
	for _, t := range tris[:nt] {
		if t.V[0] == t.V[1] || t.V[1] == t.V[2] || t.V[2] == t.V[0] {
			continue
		}
		n := r3.Cross(r3.Sub(t.V[1], t.V[0]), r3.Sub(t.V[2], t.V[0]))
		if r3.Dot(n, g) < 0 {
			t.V[1], t.V[2] = t.V[2], t.V[1]
		}
		dst[written] = t
		written++
	}
	return written
}

// dc3 is a 3 dimensional distance cache. It evaluates the SDF3 at integer
// grid coordinates and remembers the result so shared corners are evaluated once.
type dc3 struct {
	cache      map[v3i]float64
	origin     r3.Vec    // origin of the overall bounding cube
	resolution float64   // size of smallest octree cube
	hdiag      []float64 // lookup table of cube half diagonals
	s          sdf.SDF3
}

// Evaluate returns the position of grid point vi and the distance there.
func (dc *dc3) Evaluate(vi v3i) (r3.Vec, float64) {
	v := r3.Add(dc.origin, r3.Scale(dc.resolution, r3.Vec{X: float64(vi[0]), Y: float64(vi[1]), Z: float64(vi[2])}))
	if dist, found := dc.cache[vi]; found {
		return v, dist
	}
	dist := dc.s.Evaluate(v)
	dc.cache[vi] = dist
	return v, dist
}

// IsEmpty returns true if the cube contains no SDF surface.
func (dc *dc3) IsEmpty(c *cube) bool {
	s := 1 << (c.n - 1) // half side
	_, d := dc.Evaluate(c.v.add(v3i{s, s, s}))
	return math.Abs(d) > dc.hdiag[c.n]
}

func newDc3(s sdf.SDF3, origin r3.Vec, resolution float64, n uint) *dc3 {
	dc := dc3{
		origin:     origin,
		resolution: resolution,
		hdiag:      make([]float64, n),
		s:          s,
		cache:      make(map[v3i]float64),
	}
	for i := range dc.hdiag {
		side := float64(uint64(1)<<uint(i)) * dc.resolution
		dc.hdiag[i] = 0.5 * math.Sqrt(3.0*side*side)
	}
	return &dc
}
