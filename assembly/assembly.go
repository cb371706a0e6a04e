// Package assembly places parts relative to each other with face
// constraints and checks the result for interference.
package assembly

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/soypat/workbox/internal/d3"
	"github.com/soypat/workbox/sdf"
	"github.com/soypat/workbox/workplane"
	"gonum.org/v1/gonum/spatial/r3"
)

// Kind is the kind of a constraint between two faces.
type Kind int

const (
	// Plane makes face normals anti-parallel and face centres coincident.
	Plane Kind = iota
	// Point makes face centres coincident without rotating.
	Point
	// Axis makes face normals anti-parallel without moving the centre.
	Axis
)

func (k Kind) String() string {
	switch k {
	case Plane:
		return "Plane"
	case Point:
		return "Point"
	case Axis:
		return "Axis"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// residualTol is the largest constraint violation accepted after solving.
const residualTol = 1e-6

// Part is a named solid with a colour and a location in the assembly.
type Part struct {
	Name     string
	Color    color.RGBA
	Location sdf.M44

	wp    *workplane.Workplane
	solid sdf.SDF3
	// Degrees of freedom fixed so far by solving.
	rotFixed, posFixed bool
}

// Solid returns the part in its own coordinates.
func (p *Part) Solid() sdf.SDF3 { return p.solid }

// Constraint relates two face queries.
type Constraint struct {
	A, B string
	Kind Kind
	a, b query
}

// Assembly holds parts and constraints. The first part added is fixed.
type Assembly struct {
	parts       []*Part
	byName      map[string]*Part
	constraints []Constraint
	solved      bool
}

// New returns an empty assembly.
func New() *Assembly {
	return &Assembly{byName: make(map[string]*Part)}
}

// Add appends a part built by wp with colour c.
func (a *Assembly) Add(name string, wp *workplane.Workplane, c color.Color) error {
	if name == "" {
		return errors.New("empty part name")
	}
	if _, ok := a.byName[name]; ok {
		return fmt.Errorf("duplicate part %q", name)
	}
	solid, err := wp.Solid()
	if err != nil {
		return fmt.Errorf("part %q: %w", name, err)
	}
	p := &Part{
		Name:     name,
		Color:    color.RGBAModel.Convert(c).(color.RGBA),
		Location: sdf.Identity3D(),
		wp:       wp,
		solid:    solid,
	}
	if len(a.parts) == 0 {
		p.rotFixed, p.posFixed = true, true
	}
	a.parts = append(a.parts, p)
	a.byName[name] = p
	a.solved = false
	return nil
}

// Constrain adds a constraint between two face queries.
func (a *Assembly) Constrain(q1, q2 string, kind Kind) error {
	if kind < Plane || kind > Axis {
		return fmt.Errorf("unknown constraint kind %v", kind)
	}
	qa, err := parseQuery(q1)
	if err != nil {
		return err
	}
	qb, err := parseQuery(q2)
	if err != nil {
		return err
	}
	if qa.part == qb.part {
		return fmt.Errorf("constraint %s %s: both queries on part %q", q1, q2, qa.part)
	}
	for _, q := range []query{qa, qb} {
		if _, err := a.localFace(q); err != nil {
			return fmt.Errorf("constraint %s %s: %w", q1, q2, err)
		}
	}
	a.constraints = append(a.constraints, Constraint{A: q1, B: q2, Kind: kind, a: qa, b: qb})
	a.solved = false
	return nil
}

// Parts returns the parts in insertion order.
func (a *Assembly) Parts() []*Part {
	return append([]*Part(nil), a.parts...)
}

// Part returns the named part.
func (a *Assembly) Part(name string) (*Part, bool) {
	p, ok := a.byName[name]
	return p, ok
}

// Location returns the solved location of a part.
func (a *Assembly) Location(name string) (sdf.M44, error) {
	p, ok := a.byName[name]
	if !ok {
		return sdf.M44{}, fmt.Errorf("unknown part %q", name)
	}
	if !a.solved {
		return sdf.M44{}, errors.New("assembly not solved")
	}
	return p.Location, nil
}

// Placed returns the part solid moved to its solved location.
func (a *Assembly) Placed(name string) (sdf.SDF3, error) {
	loc, err := a.Location(name)
	if err != nil {
		return nil, err
	}
	return sdf.Transform3D(a.byName[name].solid, loc)
}

// localFace resolves a query to a plane in the part's own coordinates.
func (a *Assembly) localFace(q query) (workplane.Plane, error) {
	p, ok := a.byName[q.part]
	if !ok {
		return workplane.Plane{}, fmt.Errorf("query %s: unknown part %q", q, q.part)
	}
	if q.tag != "" {
		f, ok := p.wp.Tagged(q.tag)
		if !ok {
			return workplane.Plane{}, fmt.Errorf("query %s: part has no tag %q", q, q.tag)
		}
		return f, nil
	}
	f, err := workplane.SelectFace(p.solid, q.sel)
	if err != nil {
		return workplane.Plane{}, fmt.Errorf("query %s: %w", q, err)
	}
	return f, nil
}

func (a *Assembly) worldFace(q query) (workplane.Plane, error) {
	f, err := a.localFace(q)
	if err != nil {
		return f, err
	}
	return f.Transform(a.byName[q.part].Location), nil
}

// Solve computes part locations from the constraints. Constraints are
// applied repeatedly until no part moves: each one fixes the degrees of
// freedom of a part whose partner is already placed. Every constraint is
// then checked against the result.
func (a *Assembly) Solve() error {
	if len(a.parts) == 0 {
		return errors.New("empty assembly")
	}
	for _, p := range a.parts[1:] {
		p.Location = sdf.Identity3D()
		p.rotFixed, p.posFixed = false, false
	}
	for progress := true; progress; {
		progress = false
		for _, c := range a.constraints {
			moved, err := a.apply(c)
			if err != nil {
				return err
			}
			progress = progress || moved
		}
	}
	for _, c := range a.constraints {
		if r, err := a.residual(c); err != nil {
			return err
		} else if r > residualTol {
			return fmt.Errorf("constraint %s %s (%v) unsatisfied after solve: residual %g", c.A, c.B, c.Kind, r)
		}
	}
	a.solved = true
	return nil
}

func (k Kind) fixesRotation() bool { return k == Plane || k == Axis }
func (k Kind) fixesPosition() bool { return k == Plane || k == Point }

// apply moves the free part of c onto its placed partner.
func (a *Assembly) apply(c Constraint) (bool, error) {
	pa, pb := a.byName[c.a.part], a.byName[c.b.part]
	mover, target := pa, pb
	mq, tq := c.a, c.b
	if !placed(pb) || (placed(pa) && needs(pb, c.Kind)) {
		mover, target = pb, pa
		mq, tq = c.b, c.a
	}
	if !placed(target) || !needs(mover, c.Kind) {
		return false, nil
	}
	local, err := a.localFace(mq)
	if err != nil {
		return false, err
	}
	goal, err := a.worldFace(tq)
	if err != nil {
		return false, err
	}
	loc := mover.Location
	if c.Kind.fixesRotation() && !mover.rotFixed {
		// Rotate about the face centre so the position found so far is kept.
		cur := local.Transform(loc)
		rot := sdf.RotateToVec(cur.Normal, r3.Scale(-1, goal.Normal))
		loc = sdf.Translate3D(cur.Origin).Mul(rot).Mul(sdf.Translate3D(r3.Scale(-1, cur.Origin))).Mul(loc)
		mover.rotFixed = true
	}
	if c.Kind.fixesPosition() && !mover.posFixed {
		cur := loc.MulPosition(local.Origin)
		loc = sdf.Translate3D(r3.Sub(goal.Origin, cur)).Mul(loc)
		mover.posFixed = true
	}
	mover.Location = loc
	return true, nil
}

// placed reports whether a part has any degree of freedom fixed.
func placed(p *Part) bool { return p.rotFixed || p.posFixed }

// needs reports whether kind would fix a free degree of freedom of p.
func needs(p *Part, kind Kind) bool {
	return (kind.fixesRotation() && !p.rotFixed) || (kind.fixesPosition() && !p.posFixed)
}

func (a *Assembly) residual(c Constraint) (float64, error) {
	fa, err := a.worldFace(c.a)
	if err != nil {
		return 0, err
	}
	fb, err := a.worldFace(c.b)
	if err != nil {
		return 0, err
	}
	normal := r3.Norm(r3.Add(fa.Normal, fb.Normal))
	point := r3.Norm(r3.Sub(fa.Origin, fb.Origin))
	switch c.Kind {
	case Plane:
		return math.Max(normal, point), nil
	case Point:
		return point, nil
	default:
		return normal, nil
	}
}

// Interference estimates the volume shared by two placed parts with Overlap.
func (a *Assembly) Interference(name1, name2 string, resolution float64) (float64, error) {
	if resolution <= 0 {
		return 0, fmt.Errorf("non-positive interference resolution %g", resolution)
	}
	s1, err := a.Placed(name1)
	if err != nil {
		return 0, err
	}
	s2, err := a.Placed(name2)
	if err != nil {
		return 0, err
	}
	return Overlap(s1, s2, resolution)
}

// Overlap estimates the volume shared by two solids by sampling cell centres
// of a grid with spacing resolution over the overlap of their bounds.
// Points within tolerance of either surface do not count.
func Overlap(s1, s2 sdf.SDF3, resolution float64) (float64, error) {
	if resolution <= 0 {
		return 0, fmt.Errorf("non-positive interference resolution %g", resolution)
	}
	both, err := sdf.Intersect3D(s1, s2)
	if err != nil {
		return 0, err
	}
	overlap := d3.Box(both.Bounds())
	if overlap.Empty() {
		return 0, nil
	}
	size := overlap.Size()
	nx := int(math.Ceil(size.X / resolution))
	ny := int(math.Ceil(size.Y / resolution))
	nz := int(math.Ceil(size.Z / resolution))
	tol := resolution * 1e-6
	var count int
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				p := r3.Add(overlap.Min, r3.Vec{
					X: (float64(i) + 0.5) * resolution,
					Y: (float64(j) + 0.5) * resolution,
					Z: (float64(k) + 0.5) * resolution,
				})
				if !overlap.Contains(p) {
					continue
				}
				if sdf.Inside(both, p, tol) {
					count++
				}
			}
		}
	}
	return float64(count) * resolution * resolution * resolution, nil
}
