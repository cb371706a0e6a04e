// Package workplane builds solids with the workplane vocabulary of script
// based CAD tools: select a face, place a workplane on it, lay out
// construction geometry, pick its vertices and extrude, cut or drill there.
//
// Every operation returns a new Workplane so chains can branch. The first
// failing operation records its error; later operations do nothing and
// Solid or Err report the error.
package workplane

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/workbox/internal/d3"
	"github.com/soypat/workbox/sdf"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Workplane is an immutable step of a modelling chain.
type Workplane struct {
	plane Plane
	solid sdf.SDF3
	// face is set by Faces until Workplane, Shell or Tag consume it.
	face *Plane
	// box is set while the solid is a single box made by Box.
	box *boxRecord
	// edgeSel is the selector set by Edges for Fillet.
	edgeSel string
	// construction holds corners of construction geometry.
	construction []r3.Vec
	// points are selected locations in world coordinates.
	points  []r3.Vec
	pending []sketch
	tags    map[string]Plane
	err     error
}

type boxRecord struct {
	plane Plane
	size  r3.Vec
}

// sketch is a 2D shape in the current plane centered at a world location.
type sketch struct {
	shape sdf.SDF2
	at    r3.Vec
}

// New starts a chain on plane p.
func New(p Plane) *Workplane {
	return &Workplane{plane: p}
}

// Err returns the first error of the chain.
func (w *Workplane) Err() error { return w.err }

// Solid returns the solid built so far.
func (w *Workplane) Solid() (sdf.SDF3, error) {
	if w.err != nil {
		return nil, w.err
	}
	if w.solid == nil {
		return nil, errors.New("workplane has no solid")
	}
	return w.solid, nil
}

// Plane returns the current workplane.
func (w *Workplane) Plane() Plane { return w.plane }

// Tagged returns the face plane stored under name.
func (w *Workplane) Tagged(name string) (Plane, bool) {
	p, ok := w.tags[name]
	return p, ok
}

// Points returns the currently selected locations.
func (w *Workplane) Points() []r3.Vec {
	return append([]r3.Vec(nil), w.points...)
}

func (w *Workplane) next() *Workplane {
	c := *w
	return &c
}

func (w *Workplane) fail(op string, err error) *Workplane {
	c := w.next()
	c.err = fmt.Errorf("%s: %w", op, err)
	return c
}

// locations returns the selected points or the plane origin.
func (w *Workplane) locations() []r3.Vec {
	if len(w.points) == 0 {
		return []r3.Vec{w.plane.Origin}
	}
	return w.points
}

// place positions a shape given in plane-local coordinates at world point at.
func (w *Workplane) place(s sdf.SDF3, at r3.Vec) (sdf.SDF3, error) {
	return sdf.Transform3D(s, w.plane.At(at).Frame())
}

// Box creates a box centered on each selected location (or the plane
// origin). With combine the boxes are unioned with the solid, otherwise
// they replace it.
func (w *Workplane) Box(x, y, z float64, combine bool) *Workplane {
	if w.err != nil {
		return w
	}
	size := r3.Vec{X: x, Y: y, Z: z}
	b, err := sdf.Box3D(size, 0)
	if err != nil {
		return w.fail("box", err)
	}
	var parts []sdf.SDF3
	for _, at := range w.locations() {
		placed, err := w.place(b, at)
		if err != nil {
			return w.fail("box", err)
		}
		parts = append(parts, placed)
	}
	c := w.next()
	c.box = nil
	if len(parts) == 1 && (!combine || w.solid == nil) {
		c.box = &boxRecord{plane: w.plane.At(w.locations()[0]), size: size}
	}
	if combine && w.solid != nil {
		parts = append([]sdf.SDF3{w.solid}, parts...)
	}
	c.solid, err = sdf.Union3D(parts...)
	if err != nil {
		return w.fail("box", err)
	}
	c.reset()
	return c
}

// reset clears per-step selections after a solid operation.
func (w *Workplane) reset() {
	w.face = nil
	w.edgeSel = ""
	w.points = nil
	w.construction = nil
	w.pending = nil
}

// Faces selects a face of the solid with a direction selector such as ">Z".
func (w *Workplane) Faces(sel string) *Workplane {
	if w.err != nil {
		return w
	}
	f, err := SelectFace(w.solid, sel)
	if err != nil {
		return w.fail("faces", err)
	}
	c := w.next()
	c.reset()
	c.face = &f
	return c
}

// Workplane places a new workplane on the selected face, moved along the
// face normal by offset.
func (w *Workplane) Workplane(offset float64) *Workplane {
	if w.err != nil {
		return w
	}
	if w.face == nil {
		return w.fail("workplane", errors.New("no face selected"))
	}
	c := w.next()
	c.plane = w.face.Offset(offset)
	c.reset()
	return c
}

// Tag stores the selected face under name for later constraint queries.
func (w *Workplane) Tag(name string) *Workplane {
	if w.err != nil {
		return w
	}
	if w.face == nil {
		return w.fail("tag", errors.New("no face selected"))
	}
	if name == "" {
		return w.fail("tag", errors.New("empty tag name"))
	}
	c := w.next()
	c.tags = make(map[string]Plane, len(w.tags)+1)
	for k, v := range w.tags {
		c.tags[k] = v
	}
	c.tags[name] = *w.face
	return c
}

// Shell hollows the solid leaving the selected face open. Positive thickness
// grows walls outward with rounded outer edges, negative thickness grows them
// inward. The solid must be prismatic along the face normal.
func (w *Workplane) Shell(thickness float64) *Workplane {
	if w.err != nil {
		return w
	}
	if w.face == nil {
		return w.fail("shell", errors.New("no face selected"))
	}
	if thickness == 0 {
		return w.fail("shell", errors.New("zero thickness"))
	}
	f := *w.face
	var outer, cavity sdf.SDF3
	var err error
	if thickness > 0 {
		outer, err = sdf.Offset3D(w.solid, thickness)
		if err == nil {
			outer, err = sdf.Cut3D(outer, f.Origin, f.Normal)
		}
		cavity = w.solid
	} else {
		outer = w.solid
		cavity, err = sdf.Offset3D(w.solid, thickness)
	}
	if err != nil {
		return w.fail("shell", err)
	}
	// Extend the cavity through the open face.
	t := math.Abs(thickness)
	through, err := sdf.Translate(cavity, r3.Scale(2*t, f.Normal))
	if err == nil {
		cavity, err = sdf.Union3D(cavity, through)
	}
	if err != nil {
		return w.fail("shell", err)
	}
	c := w.next()
	c.solid, err = sdf.Difference3D(outer, cavity)
	if err != nil {
		return w.fail("shell", err)
	}
	c.box = nil
	c.reset()
	return c
}

// Edges selects edges parallel to an axis, such as "|Z", for Fillet.
func (w *Workplane) Edges(sel string) *Workplane {
	if w.err != nil {
		return w
	}
	q, err := parseSelector(sel)
	if err != nil {
		return w.fail("edges", err)
	}
	if q.kind != '|' || !q.axisAligned() {
		return w.fail("edges", fmt.Errorf("only axis parallel edge selectors are supported, got %q", sel))
	}
	c := w.next()
	c.reset()
	c.edgeSel = sel
	return c
}

// Fillet rounds the selected edges with radius. Edges of a box parallel to
// the normal of the plane it was built on are supported.
func (w *Workplane) Fillet(radius float64) *Workplane {
	if w.err != nil {
		return w
	}
	if w.edgeSel == "" {
		return w.fail("fillet", errors.New("no edges selected"))
	}
	if w.box == nil {
		return w.fail("fillet", errors.New("fillet is only supported on a box primitive"))
	}
	q, _ := parseSelector(w.edgeSel)
	if math.Abs(r3.Dot(q.dir, w.box.plane.Normal)) < 1-1e-9 {
		return w.fail("fillet", fmt.Errorf("edges %q are not parallel to the box plane normal", w.edgeSel))
	}
	rect, err := sdf.Rect2D(r2.Vec{X: w.box.size.X, Y: w.box.size.Y}, radius)
	if err != nil {
		return w.fail("fillet", err)
	}
	prism, err := sdf.Extrude3D(rect, w.box.size.Z)
	if err != nil {
		return w.fail("fillet", err)
	}
	c := w.next()
	c.solid, err = sdf.Transform3D(prism, w.box.plane.Frame())
	if err != nil {
		return w.fail("fillet", err)
	}
	c.box = nil
	c.reset()
	return c
}

// ConstructionRect lays out a rectangle centered on the workplane origin
// whose corners can be picked with Vertices. It adds no material.
func (w *Workplane) ConstructionRect(width, height float64) *Workplane {
	if w.err != nil {
		return w
	}
	if width <= 0 || height <= 0 {
		return w.fail("construction rect", fmt.Errorf("non-positive size %gx%g", width, height))
	}
	c := w.next()
	c.reset()
	hw, hh := width/2, height/2
	c.construction = []r3.Vec{
		w.plane.ToWorld(-hw, -hh),
		w.plane.ToWorld(hw, -hh),
		w.plane.ToWorld(hw, hh),
		w.plane.ToWorld(-hw, hh),
	}
	return c
}

// Vertices selects corners of the construction geometry matching a
// direction selector such as ">XY". An empty selector picks all corners.
func (w *Workplane) Vertices(sel string) *Workplane {
	if w.err != nil {
		return w
	}
	if len(w.construction) == 0 {
		return w.fail("vertices", errors.New("no construction geometry to select from"))
	}
	pts, err := selectPoints(w.construction, sel)
	if err != nil {
		return w.fail("vertices", err)
	}
	c := w.next()
	c.points = pts
	c.pending = nil
	return c
}

// Rect sketches a rectangle at each selected location.
func (w *Workplane) Rect(width, height float64) *Workplane {
	if w.err != nil {
		return w
	}
	shape, err := sdf.Rect2D(r2.Vec{X: width, Y: height}, 0)
	if err != nil {
		return w.fail("rect", err)
	}
	return w.sketch(shape)
}

// Circle sketches a circle of radius at each selected location.
func (w *Workplane) Circle(radius float64) *Workplane {
	if w.err != nil {
		return w
	}
	shape, err := sdf.Circle2D(radius)
	if err != nil {
		return w.fail("circle", err)
	}
	return w.sketch(shape)
}

func (w *Workplane) sketch(shape sdf.SDF2) *Workplane {
	c := w.next()
	c.pending = append([]sketch(nil), w.pending...)
	for _, at := range w.locations() {
		c.pending = append(c.pending, sketch{shape: shape, at: at})
	}
	return c
}

// sweep turns pending sketches into prisms from the workplane along the
// normal by distance. Negative distances sweep against the normal.
func (w *Workplane) sweep(distance float64) (sdf.SDF3, error) {
	if len(w.pending) == 0 {
		return nil, errors.New("no pending sketch")
	}
	if distance == 0 {
		return nil, errors.New("zero distance")
	}
	var prisms []sdf.SDF3
	for _, sk := range w.pending {
		prism, err := sdf.Extrude3D(sk.shape, math.Abs(distance))
		if err != nil {
			return nil, err
		}
		prism, err = w.place(prism, r3.Add(sk.at, r3.Scale(distance/2, w.plane.Normal)))
		if err != nil {
			return nil, err
		}
		prisms = append(prisms, prism)
	}
	return sdf.Union3D(prisms...)
}

// Extrude sweeps the pending sketches by distance and unions them with the solid.
func (w *Workplane) Extrude(distance float64) *Workplane {
	if w.err != nil {
		return w
	}
	prism, err := w.sweep(distance)
	if err != nil {
		return w.fail("extrude", err)
	}
	c := w.next()
	if w.solid == nil {
		c.solid = prism
	} else if c.solid, err = sdf.Union3D(w.solid, prism); err != nil {
		return w.fail("extrude", err)
	}
	c.box = nil
	c.pending = nil
	return c
}

// CutBlind sweeps the pending sketches by distance and removes them from the solid.
// Negative distances cut into material below a face.
func (w *Workplane) CutBlind(distance float64) *Workplane {
	if w.err != nil {
		return w
	}
	if w.solid == nil {
		return w.fail("cut blind", errors.New("no solid to cut"))
	}
	prism, err := w.sweep(distance)
	if err != nil {
		return w.fail("cut blind", err)
	}
	c := w.next()
	if c.solid, err = sdf.Difference3D(w.solid, prism); err != nil {
		return w.fail("cut blind", err)
	}
	c.box = nil
	c.pending = nil
	return c
}

// throughDepth is long enough to pass through the whole solid from any workplane.
func (w *Workplane) throughDepth() float64 {
	bb := d3.Box(w.solid.Bounds())
	bb = bb.Include(w.plane.Origin)
	return 2*r3.Norm(bb.Size()) + 1
}

// bore returns a cylinder of diameter starting at the workplane and going
// depth against the normal, placed at location at.
func (w *Workplane) bore(diameter, depth float64, at r3.Vec) (sdf.SDF3, error) {
	cyl, err := sdf.Cylinder3D(depth, diameter/2, 0)
	if err != nil {
		return nil, err
	}
	return w.place(cyl, r3.Sub(at, r3.Scale(depth/2, w.plane.Normal)))
}

// Hole drills through holes of diameter at each selected location,
// going into the solid against the workplane normal.
func (w *Workplane) Hole(diameter float64) *Workplane {
	return w.CboreHole(diameter, 0, 0)
}

// CboreHole drills counterbored through holes at each selected location.
// A zero counterbore diameter drills a plain hole.
func (w *Workplane) CboreHole(diameter, cboreDiameter, cboreDepth float64) *Workplane {
	if w.err != nil {
		return w
	}
	op := "hole"
	if cboreDiameter > 0 {
		op = "cbore hole"
		if cboreDiameter <= diameter {
			return w.fail(op, fmt.Errorf("counterbore diameter %g not larger than hole diameter %g", cboreDiameter, diameter))
		}
		if cboreDepth <= 0 {
			return w.fail(op, fmt.Errorf("non-positive counterbore depth %g", cboreDepth))
		}
	}
	if w.solid == nil {
		return w.fail(op, errors.New("no solid to drill"))
	}
	depth := w.throughDepth()
	var tools []sdf.SDF3
	for _, at := range w.locations() {
		hole, err := w.bore(diameter, depth, at)
		if err != nil {
			return w.fail(op, err)
		}
		tools = append(tools, hole)
		if cboreDiameter > 0 {
			cb, err := w.bore(cboreDiameter, cboreDepth, at)
			if err != nil {
				return w.fail(op, err)
			}
			tools = append(tools, cb)
		}
	}
	tool, err := sdf.Union3D(tools...)
	if err != nil {
		return w.fail(op, err)
	}
	c := w.next()
	if c.solid, err = sdf.Difference3D(w.solid, tool); err != nil {
		return w.fail(op, err)
	}
	c.box = nil
	c.pending = nil
	return c
}
