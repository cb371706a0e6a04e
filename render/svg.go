package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	svg "github.com/ajstarks/svgo"
	"github.com/soypat/workbox/internal/d3"
	"github.com/soypat/workbox/sdf"
	"gonum.org/v1/gonum/spatial/r3"
)

// svgUnit is the number of viewBox units per output pixel.
const svgUnit = 100

// SVGConfig controls the line drawing written by WriteSVG.
type SVGConfig struct {
	// Width and Height of the drawing in pixels.
	Width, Height int
	// Margins around the fitted drawing in pixels.
	MarginLeft, MarginTop int
	// ProjectionDir points from the model towards the viewer.
	ProjectionDir r3.Vec
	// ShowHidden draws occluded edges dashed.
	ShowHidden bool
	// ShowAxes draws a small XYZ triad in the lower left corner.
	ShowAxes bool
	// StrokeWidth in pixels.
	StrokeWidth float64
	StrokeColor string
	HiddenColor string
	// FeatureAngle in degrees. Edges between faces bending more than
	// this are drawn.
	FeatureAngle float64
	// Title is written as the document title when not empty.
	Title string
}

// DefaultSVGConfig returns the drawing defaults: an 800x240 canvas viewed
// along (-1.75, 1.1, 5), hidden lines shown and axes hidden.
func DefaultSVGConfig() SVGConfig {
	return SVGConfig{
		Width:         800,
		Height:        240,
		MarginLeft:    200,
		MarginTop:     20,
		ProjectionDir: r3.Vec{X: -1.75, Y: 1.1, Z: 5},
		ShowHidden:    true,
		ShowAxes:      false,
		StrokeWidth:   1,
		StrokeColor:   "rgb(0,0,0)",
		HiddenColor:   "rgb(160,160,160)",
		FeatureAngle:  30,
	}
}

func (cfg SVGConfig) validate() error {
	switch {
	case cfg.Width <= 2*cfg.MarginLeft || cfg.Height <= 2*cfg.MarginTop:
		return errors.New("svg canvas smaller than its margins")
	case cfg.MarginLeft < 0 || cfg.MarginTop < 0:
		return errors.New("negative svg margin")
	case r3.Norm(cfg.ProjectionDir) == 0:
		return errors.New("zero svg projection direction")
	case cfg.StrokeWidth <= 0:
		return errors.New("svg stroke width must be positive")
	case cfg.FeatureAngle <= 0 || cfg.FeatureAngle >= 180:
		return errors.New("svg feature angle must be in (0, 180) degrees")
	}
	return nil
}

// CreateSVG writes the line drawing of a rendered shape to a file at path.
func CreateSVG(path string, s sdf.SDF3, model []Triangle3, cfg SVGConfig) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	err = WriteSVG(fp, s, model, cfg)
	if cerr := fp.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteSVG writes an orthographic line drawing of model. s is the shape the
// model was rendered from and is used to decide which edges are occluded.
func WriteSVG(w io.Writer, s sdf.SDF3, model []Triangle3, cfg SVGConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if len(model) == 0 {
		return errors.New("empty triangle slice")
	}
	m := NewMesh(model)
	visible, hidden := m.outlineSegments(s, r3.Unit(cfg.ProjectionDir), cfg.FeatureAngle)
	proj := newProjector(cfg, m.Bounds())

	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Startview(cfg.Width, cfg.Height, 0, 0, cfg.Width*svgUnit, cfg.Height*svgUnit)
	if cfg.Title != "" {
		canvas.Title(cfg.Title)
	}
	stroke := int(math.Round(cfg.StrokeWidth * svgUnit))
	if cfg.ShowHidden && len(hidden) > 0 {
		dash := 4 * stroke
		canvas.Gstyle(fmt.Sprintf("stroke:%s;stroke-width:%d;fill:none;stroke-dasharray:%d,%d", cfg.HiddenColor, stroke, dash, dash/2))
		writePolylines(canvas, proj, m.Vertices, chainSegments(hidden))
		canvas.Gend()
	}
	canvas.Gstyle(fmt.Sprintf("stroke:%s;stroke-width:%d;fill:none", cfg.StrokeColor, stroke))
	writePolylines(canvas, proj, m.Vertices, chainSegments(visible))
	canvas.Gend()
	if cfg.ShowAxes {
		proj.writeAxes(canvas, stroke)
	}
	canvas.End()
	return ew.err
}

// outlineSegments returns the feature and silhouette edges of the mesh split
// by visibility along the view direction. Edges are returned in face order.
func (m *Mesh) outlineSegments(s sdf.SDF3, view r3.Vec, featureAngle float64) (visible, hidden []edge) {
	normals := make([]r3.Vec, len(m.Faces))
	var edgeLen float64
	for i, f := range m.Faces {
		normals[i] = m.FaceNormal(i)
		edgeLen += r3.Norm(r3.Sub(m.Vertices[f[1]], m.Vertices[f[0]]))
	}
	edgeLen /= float64(len(m.Faces))
	// Undirected edge to the faces using it.
	type faces struct{ a, b int }
	adj := make(map[edge]*faces, 3*len(m.Faces)/2)
	var order []edge
	for i, f := range m.Faces {
		for j := 0; j < 3; j++ {
			e := edge{f[j], f[(j+1)%3]}
			if e[0] > e[1] {
				e[0], e[1] = e[1], e[0]
			}
			if fa, ok := adj[e]; ok {
				fa.b = i
				continue
			}
			adj[e] = &faces{a: i, b: -1}
			order = append(order, e)
		}
	}
	cosFeature := math.Cos(featureAngle * math.Pi / 180)
	bb := d3.Box(s.Bounds())
	maxDist := r3.Norm(bb.Size()) + 2*edgeLen
	for _, e := range order {
		fa := adj[e]
		n := normals[fa.a]
		if fa.b >= 0 {
			n1 := normals[fa.b]
			crease := r3.Dot(n, n1) < cosFeature
			silhouette := (r3.Dot(n, view) > 0) != (r3.Dot(n1, view) > 0)
			if !crease && !silhouette {
				continue
			}
			n = r3.Add(n, n1)
			if r3.Norm(n) > 0 {
				n = r3.Unit(n)
			}
		}
		mid := d3.Lerp(m.Vertices[e[0]], m.Vertices[e[1]], 0.5)
		if occluded(s, mid, n, view, edgeLen, maxDist) {
			hidden = append(hidden, e)
		} else {
			visible = append(visible, e)
		}
	}
	return visible, hidden
}

// occluded reports whether the surface point p with normal n is blocked from
// the viewer by s. The ray starts one edge length off the surface.
func occluded(s sdf.SDF3, p, n, view r3.Vec, h, maxDist float64) bool {
	start := r3.Add(p, r3.Scale(h, n))
	if s.Evaluate(start) < 0 {
		return true
	}
	_, t, _ := sdf.Raycast3(s, start, view, 0.05*h, maxDist, 512)
	return t >= 0
}

// chainSegments joins edges sharing vertices into polylines.
func chainSegments(segs []edge) [][]int {
	byVertex := make(map[int][]int, 2*len(segs))
	for i, e := range segs {
		byVertex[e[0]] = append(byVertex[e[0]], i)
		byVertex[e[1]] = append(byVertex[e[1]], i)
	}
	used := make([]bool, len(segs))
	next := func(v int) (int, bool) {
		for _, si := range byVertex[v] {
			if !used[si] {
				used[si] = true
				e := segs[si]
				if e[0] == v {
					return e[1], true
				}
				return e[0], true
			}
		}
		return 0, false
	}
	var lines [][]int
	for i, e := range segs {
		if used[i] {
			continue
		}
		used[i] = true
		fwd := []int{e[0], e[1]}
		for v, ok := next(e[1]); ok; v, ok = next(v) {
			fwd = append(fwd, v)
		}
		var back []int
		for v, ok := next(e[0]); ok; v, ok = next(v) {
			back = append(back, v)
		}
		line := make([]int, 0, len(back)+len(fwd))
		for j := len(back) - 1; j >= 0; j-- {
			line = append(line, back[j])
		}
		lines = append(lines, append(line, fwd...))
	}
	return lines
}

// projector maps model coordinates onto the SVG viewBox.
type projector struct {
	right, up r3.Vec
	scale     float64
	offX      float64
	offY      float64
	cfg       SVGConfig
}

func newProjector(cfg SVGConfig, bb r3.Box) projector {
	view := r3.Unit(cfg.ProjectionDir)
	ref := r3.Vec{Z: 1}
	if math.Abs(r3.Dot(ref, view)) > 1-1e-6 {
		ref = r3.Vec{Y: 1}
	}
	p := projector{cfg: cfg}
	p.right = r3.Unit(r3.Cross(ref, view))
	p.up = r3.Cross(view, p.right)
	// Fit the projected bounding box corners into the area inside the margins.
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range d3.Box(bb).Vertices() {
		x, y := p.raw(v)
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	areaW := float64(cfg.Width-2*cfg.MarginLeft) * svgUnit
	areaH := float64(cfg.Height-2*cfg.MarginTop) * svgUnit
	p.scale = math.Min(areaW/math.Max(maxX-minX, 1e-9), areaH/math.Max(maxY-minY, 1e-9))
	p.offX = float64(cfg.Width*svgUnit)/2 - p.scale*(minX+maxX)/2
	p.offY = float64(cfg.Height*svgUnit)/2 - p.scale*(minY+maxY)/2
	return p
}

// raw returns screen coordinates with y pointing down, before scaling.
func (p projector) raw(v r3.Vec) (x, y float64) {
	return r3.Dot(v, p.right), -r3.Dot(v, p.up)
}

func (p projector) project(v r3.Vec) (int, int) {
	x, y := p.raw(v)
	return int(math.Round(p.offX + p.scale*x)), int(math.Round(p.offY + p.scale*y))
}

func writePolylines(canvas *svg.SVG, p projector, verts []r3.Vec, lines [][]int) {
	for _, line := range lines {
		xs := make([]int, len(line))
		ys := make([]int, len(line))
		for i, vi := range line {
			xs[i], ys[i] = p.project(verts[vi])
		}
		canvas.Polyline(xs, ys)
	}
}

func (p projector) writeAxes(canvas *svg.SVG, stroke int) {
	const length = 30 * svgUnit
	ox := 2 * p.cfg.MarginTop * svgUnit
	oy := (p.cfg.Height - 2*p.cfg.MarginTop) * svgUnit
	axes := []struct {
		dir   r3.Vec
		label string
		color string
	}{
		{r3.Vec{X: 1}, "X", "rgb(255,0,0)"},
		{r3.Vec{Y: 1}, "Y", "rgb(0,128,0)"},
		{r3.Vec{Z: 1}, "Z", "rgb(0,0,255)"},
	}
	for _, a := range axes {
		x, y := p.raw(a.dir)
		ex := ox + int(math.Round(length*x))
		ey := oy + int(math.Round(length*y))
		canvas.Line(ox, oy, ex, ey, fmt.Sprintf("stroke:%s;stroke-width:%d", a.color, stroke))
		canvas.Text(ex, ey, a.label, fmt.Sprintf("fill:%s;font-size:%dpx", a.color, 10*svgUnit))
	}
}

// errWriter remembers the first write error since svgo does not report them.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(b []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(b)
	ew.err = err
	return n, err
}
