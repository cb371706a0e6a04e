package workplane

import (
	"math"
	"testing"

	"github.com/soypat/workbox/internal/d3"
	"github.com/soypat/workbox/sdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

func TestParseSelector(t *testing.T) {
	for _, test := range []struct {
		sel     string
		kind    byte
		dir     r3.Vec
		wantErr bool
	}{
		{sel: ">Z", kind: '>', dir: r3.Vec{Z: 1}},
		{sel: "+Z", kind: '>', dir: r3.Vec{Z: 1}},
		{sel: "-y", kind: '<', dir: r3.Vec{Y: 1}},
		{sel: "<XZ", kind: '<', dir: r3.Vec{X: 1, Z: 1}},
		{sel: "|Z", kind: '|', dir: r3.Vec{Z: 1}},
		{sel: "Z", wantErr: true},
		{sel: ">", wantErr: true},
		{sel: ">XX", wantErr: true},
		{sel: ">W", wantErr: true},
	} {
		got, err := parseSelector(test.sel)
		if test.wantErr {
			assert.Error(t, err, test.sel)
			continue
		}
		require.NoError(t, err, test.sel)
		assert.Equal(t, test.kind, got.kind, test.sel)
		assert.Equal(t, test.dir, got.dir, test.sel)
	}
}

func TestSelectFace(t *testing.T) {
	box, err := sdf.Box3D(r3.Vec{X: 4, Y: 6, Z: 8}, 0)
	require.NoError(t, err)
	for _, test := range []struct {
		sel    string
		origin r3.Vec
		normal r3.Vec
		xdir   r3.Vec
	}{
		{">Z", r3.Vec{Z: 4}, r3.Vec{Z: 1}, r3.Vec{X: 1}},
		{"<Z", r3.Vec{Z: -4}, r3.Vec{Z: -1}, r3.Vec{X: 1}},
		{">Y", r3.Vec{Y: 3}, r3.Vec{Y: 1}, r3.Vec{X: 1}},
		{"<X", r3.Vec{X: -2}, r3.Vec{X: -1}, r3.Vec{Y: 1}},
	} {
		p, err := SelectFace(box, test.sel)
		require.NoError(t, err, test.sel)
		assert.True(t, d3.EqualWithin(p.Origin, test.origin, tol), "%s origin %v", test.sel, p.Origin)
		assert.Equal(t, test.normal, p.Normal, test.sel)
		assert.Equal(t, test.xdir, p.XDir, test.sel)
	}
	// A foot below the box widens the bounds but not the +Y face.
	foot, err := sdf.Box3D(r3.Vec{X: 2, Y: 2, Z: 2}, 0)
	require.NoError(t, err)
	foot, err = sdf.Translate(foot, r3.Vec{Z: -5})
	require.NoError(t, err)
	footed, err := sdf.Union3D(box, foot)
	require.NoError(t, err)
	p, err := SelectFace(footed, ">Y")
	require.NoError(t, err)
	assert.True(t, d3.EqualWithin(p.Origin, r3.Vec{Y: 3}, tol), "footed >Y origin %v", p.Origin)
	p, err = SelectFace(footed, "<Z")
	require.NoError(t, err)
	assert.True(t, d3.EqualWithin(p.Origin, r3.Vec{Z: -6}, tol), "footed <Z origin %v", p.Origin)

	_, err = SelectFace(box, "|Z")
	assert.Error(t, err)
	_, err = SelectFace(box, ">XY")
	assert.Error(t, err)
	_, err = SelectFace(nil, ">Z")
	assert.Error(t, err)
}

func TestSelectPoints(t *testing.T) {
	pts := []r3.Vec{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}}
	got, err := selectPoints(pts, ">XY")
	require.NoError(t, err)
	assert.Equal(t, []r3.Vec{{X: 1, Y: 1}}, got)

	got, err = selectPoints(pts, ">X")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = selectPoints(pts, "")
	require.NoError(t, err)
	assert.Len(t, got, 4)

	_, err = selectPoints(nil, ">X")
	assert.ErrorContains(t, err, "no vertices match selector")
	_, err = selectPoints(pts, "|X")
	assert.Error(t, err)
}

func TestPlaneFrame(t *testing.T) {
	p, err := NewPlane(r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 1, Z: 5}, r3.Vec{Y: -2})
	require.NoError(t, err)
	assert.InDelta(t, 0, r3.Dot(p.XDir, p.Normal), tol)
	assert.InDelta(t, 1, r3.Norm(p.YDir()), tol)
	m := p.Frame()
	got := m.MulPosition(r3.Vec{X: 2, Y: 3, Z: 4})
	want := r3.Add(p.ToWorld(2, 3), r3.Scale(4, p.Normal))
	assert.True(t, d3.EqualWithin(got, want, tol), "got %v want %v", got, want)

	_, err = NewPlane(r3.Vec{}, r3.Vec{Z: 1}, r3.Vec{Z: 2})
	assert.Error(t, err)
	_, err = NewPlane(r3.Vec{}, r3.Vec{X: 1}, r3.Vec{})
	assert.Error(t, err)
}

func TestBoxAndSticky(t *testing.T) {
	w := New(XY).Box(4, 6, 8, true)
	s, err := w.Solid()
	require.NoError(t, err)
	assert.True(t, d3.Box(s.Bounds()).Equals(d3.NewBox(r3.Vec{}, r3.Vec{X: 4, Y: 6, Z: 8}), tol))

	bad := w.Faces(">XY")
	require.Error(t, bad.Err())
	// Later operations keep the first error.
	after := bad.Workplane(0).Circle(1).Extrude(2)
	assert.Equal(t, bad.Err(), after.Err())
	_, err = after.Solid()
	assert.Error(t, err)

	// Branches are independent.
	assert.NoError(t, w.Err())

	_, err = New(XY).Solid()
	assert.Error(t, err)
}

func TestShellOutward(t *testing.T) {
	const w, l, h, th = 10.0, 20.0, 6.0, 1.0
	s, err := New(XY).Box(w, l, h, true).Faces("+Z").Shell(th).Solid()
	require.NoError(t, err)
	bb := d3.Box(s.Bounds())
	want := r3.Box{
		Min: r3.Vec{X: -w/2 - th, Y: -l/2 - th, Z: -h/2 - th},
		Max: r3.Vec{X: w/2 + th, Y: l/2 + th, Z: h / 2},
	}
	assert.True(t, bb.Equals(d3.Box(want), tol), "bounds %+v", bb)

	for _, test := range []struct {
		p      r3.Vec
		inside bool
	}{
		{r3.Vec{}, false},                                 // cavity
		{r3.Vec{Z: h/2 + 0.5}, false},                     // above open face
		{r3.Vec{Z: -h/2 - th/2}, true},                    // floor
		{r3.Vec{X: w/2 + th/2}, true},                     // side wall
		{r3.Vec{Y: -l/2 - th/2, Z: h/2 - 0.1}, true},      // wall near rim
		{r3.Vec{X: w/2 + th*0.9, Y: l/2 + th*0.9}, false}, // rounded vertical edge
	} {
		assert.Equal(t, test.inside, sdf.Inside(s, test.p, 0), "point %v", test.p)
	}
}

func TestShellInward(t *testing.T) {
	s, err := New(XY).Box(10, 10, 10, true).Faces(">Z").Shell(-1).Solid()
	require.NoError(t, err)
	assert.True(t, d3.Box(s.Bounds()).Equals(d3.NewBox(r3.Vec{}, d3.Elem(10)), tol))
	assert.False(t, sdf.Inside(s, r3.Vec{}, 0))
	assert.True(t, sdf.Inside(s, r3.Vec{X: 4.5}, 0))
	assert.True(t, sdf.Inside(s, r3.Vec{Z: -4.5}, 0))
	assert.False(t, sdf.Inside(s, r3.Vec{Z: 4.5}, 0))
}

func TestShellErrors(t *testing.T) {
	assert.Error(t, New(XY).Box(1, 1, 1, true).Shell(0.1).Err(), "shell without face")
	assert.Error(t, New(XY).Box(1, 1, 1, true).Faces(">Z").Shell(0).Err())
}

func TestFillet(t *testing.T) {
	const r = 2.0
	s, err := New(XY).Box(10, 20, 4, false).Edges("|Z").Fillet(r).Solid()
	require.NoError(t, err)
	assert.True(t, d3.Box(s.Bounds()).Equals(d3.NewBox(r3.Vec{}, r3.Vec{X: 10, Y: 20, Z: 4}), tol))
	// Corner material is removed, straight faces remain.
	assert.False(t, sdf.Inside(s, r3.Vec{X: 4.9, Y: 9.9}, 0))
	assert.True(t, sdf.Inside(s, r3.Vec{X: 4.9}, 0))
	d := s.Evaluate(r3.Vec{X: 5, Y: 10})
	assert.InDelta(t, math.Sqrt2*r-r, d, 1e-6)

	assert.Error(t, New(XY).Box(1, 1, 1, false).Edges("|X").Fillet(0.1).Err())
	assert.Error(t, New(XY).Box(1, 1, 1, false).Fillet(0.1).Err())
	assert.Error(t, New(XY).Box(2, 2, 2, false).Faces(">Z").Workplane(0).Circle(0.5).Extrude(1).Edges("|Z").Fillet(0.1).Err())
	assert.Error(t, New(XY).Box(1, 1, 1, false).Edges(">Z").Err())
}

func TestConstructionVertices(t *testing.T) {
	w := New(XY).Box(10, 10, 2, true).Faces(">Z").Workplane(0).ConstructionRect(6, 4)
	require.NoError(t, w.Err())
	all := w.Vertices("").Points()
	assert.Len(t, all, 4)
	for _, p := range all {
		assert.InDelta(t, 1, p.Z, tol)
		assert.InDelta(t, 3, math.Abs(p.X), tol)
		assert.InDelta(t, 2, math.Abs(p.Y), tol)
	}
	corner := w.Vertices(">XY").Points()
	require.Len(t, corner, 1)
	assert.True(t, d3.EqualWithin(corner[0], r3.Vec{X: 3, Y: 2, Z: 1}, tol))

	// Construction geometry adds no material.
	s, err := w.Solid()
	require.NoError(t, err)
	assert.True(t, d3.Box(s.Bounds()).Equals(d3.NewBox(r3.Vec{}, r3.Vec{X: 10, Y: 10, Z: 2}), tol))

	assert.Error(t, New(XY).Vertices(">X").Err())
	assert.Error(t, w.ConstructionRect(0, 1).Err())
}

func TestExtrudeAndCutBlind(t *testing.T) {
	base := New(XY).Box(10, 10, 2, true)
	up, err := base.Faces(">Z").Workplane(0).Circle(1).Extrude(3).Solid()
	require.NoError(t, err)
	bb := d3.Box(up.Bounds())
	assert.InDelta(t, 4, bb.Max.Z, tol)
	assert.True(t, sdf.Inside(up, r3.Vec{Z: 3.5}, 0))

	// Negative distances go against the face normal.
	pocket, err := base.Faces(">Z").Workplane(0).Rect(2, 2).CutBlind(-1).Solid()
	require.NoError(t, err)
	assert.False(t, sdf.Inside(pocket, r3.Vec{Z: 0.5}, 0))
	assert.True(t, sdf.Inside(pocket, r3.Vec{Z: -0.5}, 0))

	assert.Error(t, base.Faces(">Z").Workplane(0).Extrude(1).Err(), "nothing sketched")
	assert.Error(t, base.Faces(">Z").Workplane(0).Circle(1).Extrude(0).Err())
	assert.Error(t, New(XY).Circle(1).CutBlind(1).Err())
}

func TestHoles(t *testing.T) {
	base := New(XY).Box(20, 20, 4, true)
	top := base.Faces(">Z").Workplane(0).ConstructionRect(10, 10).Vertices("")
	s, err := top.Hole(2).Solid()
	require.NoError(t, err)
	for _, z := range []float64{-1.9, 0, 1.9} {
		assert.False(t, sdf.Inside(s, r3.Vec{X: 5, Y: 5, Z: z}, 0), "hole at z=%g", z)
	}
	assert.True(t, sdf.Inside(s, r3.Vec{X: 5 + 1.5, Y: 5}, 0))

	cb, err := top.CboreHole(2, 5, 1.5).Solid()
	require.NoError(t, err)
	assert.False(t, sdf.Inside(cb, r3.Vec{X: 5 + 2, Y: 5, Z: 1}, 0), "counterbore")
	assert.True(t, sdf.Inside(cb, r3.Vec{X: 5 + 2, Y: 5, Z: -1}, 0), "below counterbore")

	assert.Error(t, top.CboreHole(2, 1, 1).Err())
	assert.Error(t, top.CboreHole(2, 5, 0).Err())
	assert.Error(t, New(XY).Hole(1).Err())
}

func TestTags(t *testing.T) {
	w := New(XY).Box(4, 4, 4, false).Faces("<Z").Tag("rim")
	require.NoError(t, w.Err())
	rim, ok := w.Tagged("rim")
	require.True(t, ok)
	assert.Equal(t, r3.Vec{Z: -1}, rim.Normal)
	assert.InDelta(t, -2, rim.Origin.Z, tol)

	// Tags survive later operations and do not leak between branches.
	grown := w.Workplane(0).Box(2, 2, 1, true)
	_, ok = grown.Tagged("rim")
	assert.True(t, ok)
	other := w.Faces(">Z").Tag("top")
	_, ok = w.Tagged("top")
	assert.False(t, ok)
	_, ok = other.Tagged("top")
	assert.True(t, ok)

	assert.Error(t, New(XY).Box(1, 1, 1, false).Tag("x").Err())
	assert.Error(t, New(XY).Box(1, 1, 1, false).Faces(">Z").Tag("").Err())
}
