package workplane

import (
	"fmt"
	"math"
	"strings"

	"github.com/soypat/workbox/internal/d3"
	"github.com/soypat/workbox/sdf"
	"gonum.org/v1/gonum/spatial/r3"
)

// selector is a parsed direction query such as ">Z", "<XY" or "|Z".
type selector struct {
	kind byte // '>' max, '<' min, '|' parallel
	dir  r3.Vec
}

func parseSelector(sel string) (selector, error) {
	sel = strings.TrimSpace(sel)
	if len(sel) < 2 {
		return selector{}, fmt.Errorf("invalid selector %q", sel)
	}
	s := selector{kind: sel[0]}
	switch s.kind {
	case '+':
		s.kind = '>'
	case '-':
		s.kind = '<'
	case '>', '<', '|':
	default:
		return selector{}, fmt.Errorf("invalid selector %q: must start with one of > < + - |", sel)
	}
	for _, c := range strings.ToUpper(sel[1:]) {
		switch c {
		case 'X':
			s.dir.X++
		case 'Y':
			s.dir.Y++
		case 'Z':
			s.dir.Z++
		default:
			return selector{}, fmt.Errorf("invalid selector %q: unknown axis %q", sel, c)
		}
	}
	if s.dir.X > 1 || s.dir.Y > 1 || s.dir.Z > 1 {
		return selector{}, fmt.Errorf("invalid selector %q: repeated axis", sel)
	}
	return s, nil
}

// axisAligned reports whether the selector names a single axis.
func (s selector) axisAligned() bool {
	return s.dir.X+s.dir.Y+s.dir.Z == 1
}

// SelectFace returns the plane of the face of s picked by a direction
// selector: ">Z" is the top face, "<Y" the face with the least y, and so on.
// The face lies on the axis aligned boundary of the solid and faces outward.
// The origin is the center of the extent of the solid's planar region on that
// boundary, which is the center of mass for symmetric faces.
func SelectFace(s sdf.SDF3, sel string) (Plane, error) {
	if s == nil {
		return Plane{}, fmt.Errorf("select faces %q: no solid", sel)
	}
	q, err := parseSelector(sel)
	if err != nil {
		return Plane{}, err
	}
	if q.kind == '|' || !q.axisAligned() {
		return Plane{}, fmt.Errorf("select faces %q: only single axis > or < selectors are supported", sel)
	}
	bb := d3.Box(s.Bounds())
	if bb.Empty() {
		return Plane{}, fmt.Errorf("select faces %q: solid has no volume", sel)
	}
	origin := bb.Center()
	normal := q.dir
	if q.kind == '<' {
		normal = r3.Scale(-1, normal)
	}
	switch {
	case normal.X > 0:
		origin.X = bb.Max.X
	case normal.X < 0:
		origin.X = bb.Min.X
	case normal.Y > 0:
		origin.Y = bb.Max.Y
	case normal.Y < 0:
		origin.Y = bb.Min.Y
	case normal.Z > 0:
		origin.Z = bb.Max.Z
	default:
		origin.Z = bb.Min.Z
	}
	if c, ok := faceCenter(s, bb, origin, normal); ok {
		origin = c
	}
	return Plane{Origin: origin, XDir: defaultXDir(normal), Normal: normal}, nil
}

// faceSamples is the sampling grid size per side used to find a face's extent.
const faceSamples = 64

// faceCenter finds the extent of the region where s touches the plane through
// origin with axis aligned outward normal n and returns its center.
// It reports false if no part of the grid lands on the face.
func faceCenter(s sdf.SDF3, bb d3.Box, origin, n r3.Vec) (r3.Vec, bool) {
	u, v := tangentAxes(n)
	// Sample just inside so the face itself reads as solid.
	base := r3.Sub(origin, r3.Scale(1e-9*math.Max(d3.Max(bb.Size()), 1), n))
	solid := func(a, b float64) bool {
		p := r3.Add(base, r3.Scale(a-r3.Dot(base, u), u))
		p = r3.Add(p, r3.Scale(b-r3.Dot(base, v), v))
		return s.Evaluate(p) <= 0
	}
	uLo, uHi, ok := faceExtent(solid, r3.Dot(bb.Min, u), r3.Dot(bb.Size(), u), r3.Dot(bb.Min, v), r3.Dot(bb.Size(), v))
	if !ok {
		return r3.Vec{}, false
	}
	swapped := func(b, a float64) bool { return solid(a, b) }
	vLo, vHi, ok := faceExtent(swapped, r3.Dot(bb.Min, v), r3.Dot(bb.Size(), v), r3.Dot(bb.Min, u), r3.Dot(bb.Size(), u))
	if !ok {
		return r3.Vec{}, false
	}
	c := r3.Add(base, r3.Scale((uLo+uHi)/2-r3.Dot(base, u), u))
	c = r3.Add(c, r3.Scale((vLo+vHi)/2-r3.Dot(base, v), v))
	return r3.Add(c, r3.Scale(r3.Dot(r3.Sub(origin, c), n), n)), true
}

// faceExtent scans rows of a grid over [a0, a0+la] x [b0, b0+lb] and returns
// the least and greatest a for which solid holds, refined by bisection.
func faceExtent(solid func(a, b float64) bool, a0, la, b0, lb float64) (lo, hi float64, ok bool) {
	da, db := la/faceSamples, lb/faceSamples
	at := func(i int) float64 { return a0 + (float64(i)+0.5)*da }
	lo, hi = math.Inf(1), math.Inf(-1)
	for j := 0; j < faceSamples; j++ {
		b := b0 + (float64(j)+0.5)*db
		row := func(a float64) bool { return solid(a, b) }
		first, last := -1, -1
		for i := 0; i < faceSamples; i++ {
			if row(at(i)) {
				if first < 0 {
					first = i
				}
				last = i
			}
		}
		if first < 0 {
			continue
		}
		lo = math.Min(lo, bisect(row, at(first), at(first-1)))
		hi = math.Max(hi, bisect(row, at(last), at(last+1)))
		ok = true
	}
	return lo, hi, ok
}

// bisect narrows in on the boundary between a point where in holds and one
// where it does not.
func bisect(in func(float64) bool, inside, outside float64) float64 {
	for i := 0; i < 60; i++ {
		mid := (inside + outside) / 2
		if in(mid) {
			inside = mid
		} else {
			outside = mid
		}
	}
	return inside
}

// tangentAxes returns the two coordinate axes perpendicular to the axis
// aligned direction n.
func tangentAxes(n r3.Vec) (u, v r3.Vec) {
	switch {
	case n.X != 0:
		return r3.Vec{Y: 1}, r3.Vec{Z: 1}
	case n.Y != 0:
		return r3.Vec{X: 1}, r3.Vec{Z: 1}
	default:
		return r3.Vec{X: 1}, r3.Vec{Y: 1}
	}
}

// selectPoints returns the points extreme along the selector direction.
// An empty selector returns all points.
func selectPoints(pts []r3.Vec, sel string) ([]r3.Vec, error) {
	if strings.TrimSpace(sel) == "" {
		return pts, nil
	}
	q, err := parseSelector(sel)
	if err != nil {
		return nil, err
	}
	if q.kind == '|' {
		return nil, fmt.Errorf("vertex selector %q: parallel selectors apply to edges", sel)
	}
	sign := 1.0
	if q.kind == '<' {
		sign = -1
	}
	best := math.Inf(-1)
	for _, p := range pts {
		best = math.Max(best, sign*r3.Dot(p, q.dir))
	}
	var scale float64
	for _, p := range pts {
		scale = math.Max(scale, d3.Max(d3.AbsElem(p)))
	}
	tol := 1e-9 * math.Max(scale, 1)
	var out []r3.Vec
	for _, p := range pts {
		if sign*r3.Dot(p, q.dir) >= best-tol {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no vertices match selector %q", sel)
	}
	return out, nil
}

// CheckVertexSelector reports whether sel is usable with Vertices.
// An empty selector is valid and selects every vertex.
func CheckVertexSelector(sel string) error {
	if strings.TrimSpace(sel) == "" {
		return nil
	}
	q, err := parseSelector(sel)
	if err != nil {
		return err
	}
	if q.kind == '|' {
		return fmt.Errorf("vertex selector %q: parallel selectors apply to edges", sel)
	}
	return nil
}
