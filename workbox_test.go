package workbox

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/hschendel/stl"
	"github.com/soypat/workbox/internal/d3"
	"github.com/soypat/workbox/render"
	"github.com/soypat/workbox/sdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const tol = 1e-9

// coarse keeps export tests fast. Closure is checked at a finer step.
const coarse = 2.0

func TestDeriveScenario(t *testing.T) {
	p := DefaultParams()
	require.Equal(t, 90.0, p.Length)
	require.Equal(t, 65.0, p.Width)
	d := p.Derive()
	assert.Equal(t, 69.0, d.LidWidth)
	assert.Equal(t, 94.0, d.LidLength)
	assert.Equal(t, Vec2{X: 61, Y: 86}, d.ScrewPostRect)
	assert.Equal(t, Vec2{X: 46.5, Y: 20}, d.WirePortRect)
	assert.Equal(t, Vec2{X: 33, Y: 58}, d.ButtonRect)
	assert.Equal(t, Vec3{X: 65, Y: 90, Z: 25}, d.Cavity)
	assert.InDelta(t, 64.8, d.Plug.X, tol)
	assert.InDelta(t, 89.8, d.Plug.Y, tol)
	assert.Equal(t, 1.0, d.Plug.Z)
	assert.InDelta(t, 4.2, d.PostClearanceDiam, tol)
}

func TestLidIsShellOuterFootprint(t *testing.T) {
	for _, p := range []Params{
		{Width: 10, Length: 20, ShellThickness: 1},
		{Width: 65, Length: 90.5, ShellThickness: 2.25},
		{Width: 1e3, Length: 3, ShellThickness: 0.5},
	} {
		d := p.Derive()
		assert.Equal(t, p.Width+2*p.ShellThickness, d.LidWidth)
		assert.Equal(t, p.Length+2*p.ShellThickness, d.LidLength)
	}
}

func TestPlugSmallerThanCavity(t *testing.T) {
	for _, eps := range []float64{1e-3, 0.1, 0.5, 2} {
		p := DefaultParams()
		p.FitmentEpsilon = eps
		d := p.Derive()
		assert.Less(t, d.Plug.X, d.Cavity.X, "eps=%g", eps)
		assert.Less(t, d.Plug.Y, d.Cavity.Y, "eps=%g", eps)
		assert.Less(t, d.Plug.Z, d.Cavity.Z, "eps=%g", eps)
		assert.Greater(t, d.PostClearanceDiam, p.ScrewPostDiam, "eps=%g", eps)
	}
}

// invalidFields returns the Field of every ParamError joined in err.
func invalidFields(err error) []string {
	var fields []string
	var errs []error
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs = j.Unwrap()
	} else if err != nil {
		errs = []error{err}
	}
	for _, e := range errs {
		var pe *ParamError
		if errors.As(e, &pe) {
			fields = append(fields, pe.Field)
		}
	}
	return fields
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
	for _, test := range []struct {
		name   string
		modify func(p *Params)
		field  string
	}{
		{"zero shell", func(p *Params) { p.ShellThickness = 0 }, "shell_thickness"},
		{"NaN length", func(p *Params) { p.Length = math.NaN() }, "length"},
		{"negative epsilon", func(p *Params) { p.FitmentEpsilon = -0.1 }, "fitment_epsilon"},
		{"post rect", func(p *Params) { p.ScrewPostDiam = 200; p.ScrewHoleSize = 2 }, "screw_post_rect"},
		{"narrow box", func(p *Params) { p.Width = 4 }, "screw_post_rect"},
		{"wire port rect", func(p *Params) { p.WirePortOffset.Y = 30 }, "wire_port_rect"},
		{"button rect", func(p *Params) { p.ButtonOffset = 40 }, "button_rect"},
		{"plug", func(p *Params) { p.FitmentEpsilon = 40 }, "plug"},
		{"hole wider than post", func(p *Params) { p.ScrewHoleSize = 4 }, "screw_hole_size"},
		{"cbore narrower than hole", func(p *Params) { p.CboreDiam = 2 }, "cbore_diam"},
		{"cbore through lid", func(p *Params) { p.CboreDepth = 4 }, "cbore_depth"},
		{"button selector", func(p *Params) { p.ButtonCorners = "|Z" }, "button_corners"},
		{"wire selector", func(p *Params) { p.WirePortCorner = "XZ" }, "wire_port_corner"},
	} {
		t.Run(test.name, func(t *testing.T) {
			p := DefaultParams()
			test.modify(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, invalidFields(err), test.field)
		})
	}
}

func TestValidateJoinsAll(t *testing.T) {
	p := DefaultParams()
	p.Height = -1
	p.WirePortWidth = 0
	p.FitmentEpsilon = -1
	fields := invalidFields(p.Validate())
	assert.Subset(t, fields, []string{"height", "wire_port_width", "fitment_epsilon"})
}

func TestValidateAllowsAllButtonCorners(t *testing.T) {
	p := DefaultParams()
	p.ButtonCorners = ""
	assert.NoError(t, p.Validate())
}

func TestBuildRejectsInvalid(t *testing.T) {
	p := DefaultParams()
	p.Width = 5
	_, err := Build(p)
	var pe *ParamError
	require.ErrorAs(t, err, &pe)
}

func buildDefault(t testing.TB) *Enclosure {
	t.Helper()
	e, err := Build(DefaultParams())
	require.NoError(t, err)
	return e
}

func boxOf(s sdf.SDF3) d3.Box { return d3.Box(s.Bounds()) }

func TestBuildBounds(t *testing.T) {
	e := buildDefault(t)
	wantBase := d3.Box{Min: r3.Vec{X: -34.5, Y: -47, Z: -14.5}, Max: r3.Vec{X: 34.5, Y: 47, Z: 12.5}}
	assert.True(t, boxOf(e.Base).Equals(wantBase, tol), "base bounds %+v", boxOf(e.Base))
	// Lid is built on the base top face with its body centred there.
	wantLid := d3.Box{Min: r3.Vec{X: -34.5, Y: -47, Z: 10}, Max: r3.Vec{X: 34.5, Y: 47, Z: 14.5}}
	assert.True(t, boxOf(e.Lid).Equals(wantLid, tol), "lid bounds %+v", boxOf(e.Lid))
}

func TestBaseFeatures(t *testing.T) {
	e := buildDefault(t)
	for _, test := range []struct {
		name   string
		p      r3.Vec
		inside bool
	}{
		{"cavity", r3.Vec{}, false},
		{"floor", r3.Vec{Z: -13.5}, true},
		{"side wall", r3.Vec{X: 33.5}, true},
		{"rounded outer edge", r3.Vec{X: 34.4, Y: 46.9}, false},
		{"post", r3.Vec{X: 30.5 + 1.6, Y: 43}, true},
		{"post hole", r3.Vec{X: 30.5, Y: 43}, false},
		{"post below rim", r3.Vec{X: -30.5 - 1.6, Y: -43, Z: 12}, true},
		{"wire port", r3.Vec{X: -23.25, Y: 46, Z: -10}, false},
		{"wall beside wire port", r3.Vec{X: -23.25 + 4, Y: 46, Z: -10}, true},
		{"wall at mirrored port", r3.Vec{X: 23.25, Y: 46, Z: -10}, true},
	} {
		assert.Equal(t, test.inside, sdf.Inside(e.Base, test.p, 0), test.name)
	}
}

func TestWirePortHeight(t *testing.T) {
	e := buildDefault(t)
	// The +Y wall face spans z in [-12.5, 12.5] so the port is placed from z=0.
	for _, test := range []struct {
		z      float64
		inside bool
	}{
		{-11.1, true},
		{-10.9, false},
		{-10, false},
		{-9.1, false},
		{-8.9, true},
	} {
		p := r3.Vec{X: -23.25, Y: 46, Z: test.z}
		assert.Equal(t, test.inside, sdf.Inside(e.Base, p, 0), "wall at z=%g", test.z)
	}
}

func TestLidFeatures(t *testing.T) {
	e := buildDefault(t)
	for _, test := range []struct {
		name   string
		p      r3.Vec
		inside bool
	}{
		{"body", r3.Vec{Z: 12.5}, true},
		{"plug", r3.Vec{Z: 10.2}, true},
		{"beside plug", r3.Vec{X: 32.45, Z: 10.2}, false},
		{"rim", r3.Vec{X: 32.45, Z: 10.7}, true},
		{"filleted corner", r3.Vec{X: 34.4, Y: 46.9, Z: 12.5}, false},
		{"post clearance", r3.Vec{X: 30.5 + 2, Y: 43, Z: 10.5}, false},
		{"counterbore", r3.Vec{X: 30.5 + 2.5, Y: 43, Z: 14}, false},
		{"below counterbore", r3.Vec{X: 30.5 + 2.5, Y: 43, Z: 11.2}, true},
		{"screw hole", r3.Vec{X: -30.5, Y: -43, Z: 11.2}, false},
		{"button hole", r3.Vec{X: 16.5, Y: 29, Z: 12.5}, false},
		{"no button at other corner", r3.Vec{X: -16.5, Y: 29, Z: 12.5}, true},
	} {
		assert.Equal(t, test.inside, sdf.Inside(e.Lid, test.p, 0), test.name)
	}
}

func TestAllButtonCorners(t *testing.T) {
	p := DefaultParams()
	p.ButtonCorners = ""
	e, err := Build(p)
	require.NoError(t, err)
	for _, c := range []r3.Vec{{X: 16.5, Y: 29}, {X: -16.5, Y: 29}, {X: 16.5, Y: -29}, {X: -16.5, Y: -29}} {
		c.Z = 12.5
		assert.False(t, sdf.Inside(e.Lid, c, 0), "button at %v", c)
	}
}

func TestAssemblySolve(t *testing.T) {
	e := buildDefault(t)
	loc, err := e.Assembly.Location(LidName)
	require.NoError(t, err)
	// The rim sits at h/2-2 in the lid's own frame and moves onto the base top.
	assert.True(t, d3.EqualWithin(loc.Translation(), r3.Vec{Z: 2}, tol), "lid offset %v", loc.Translation())
	lid, err := e.Assembly.Placed(LidName)
	require.NoError(t, err)
	bb := boxOf(lid)
	assert.InDelta(t, 12.5-0.5, bb.Min.Z, tol, "plug bottom")
	assert.InDelta(t, 16.5, bb.Max.Z, tol)
	assert.Zero(t, e.Interference)

	base, ok := e.Assembly.Part(BaseName)
	require.True(t, ok)
	assert.Equal(t, uint8(128), base.Color.R)
	lidPart, ok := e.Assembly.Part(LidName)
	require.True(t, ok)
	assert.Equal(t, uint8(0), lidPart.Color.R)
}

func TestZeroClearanceFits(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := DefaultParams()
	p.FitmentEpsilon = 0
	e, err := Build(p, WithLogger(zap.New(core)))
	require.NoError(t, err)
	// Plug and post clearances touch the base only along surfaces.
	assert.Zero(t, e.Interference)
	assert.Zero(t, logs.Len())

	e, err = Build(DefaultParams(), WithInterferenceResolution(0))
	require.NoError(t, err)
	assert.Zero(t, e.Interference)
}

func TestExportedMeshesClosed(t *testing.T) {
	if testing.Short() {
		t.Skip("fine tessellation of both parts")
	}
	e := buildDefault(t)
	models := make(map[string][]render.Triangle3)
	for _, part := range []struct {
		name   string
		s      sdf.SDF3
		inside []r3.Vec
		empty  []r3.Vec
	}{
		{
			name:   BaseName,
			s:      e.Base,
			inside: []r3.Vec{{Z: -13.5}, {X: 33.5}, {X: -23.25, Y: 46, Z: -12}},
			empty:  []r3.Vec{{}, {X: -23.25, Y: 46, Z: -10}, {X: 30.5, Y: 43}},
		},
		{
			name:   LidName,
			s:      e.Lid,
			inside: []r3.Vec{{Z: 12.5}, {Z: 10.5}},
			empty:  []r3.Vec{{X: 16.5, Y: 29, Z: 12.5}, {X: -30.5, Y: -43, Z: 11.2}},
		},
	} {
		model, err := mesh(part.s, 0.5)
		require.NoError(t, err)
		models[part.name] = model
		m := render.NewMesh(model)
		assert.NoError(t, m.CheckClosed(), part.name)
		assert.Equal(t, 1, m.Components(), part.name)
		assert.Greater(t, m.Volume(), 0.0, part.name)

		meshSDF, err := render.NewKDSDF(model)
		require.NoError(t, err)
		for _, p := range part.inside {
			assert.Less(t, meshSDF.Evaluate(p), 0.0, "%s mesh at %v", part.name, p)
		}
		for _, p := range part.empty {
			assert.Greater(t, meshSDF.Evaluate(p), 0.0, "%s mesh at %v", part.name, p)
		}
	}
	placed, err := e.placedParts(models)
	require.NoError(t, err)
	v, err := meshOverlap(placed, DefaultInterferenceResolution)
	require.NoError(t, err)
	assert.Less(t, v, 0.5, "placed meshes overlap")
}

func TestExportDefaultFiles(t *testing.T) {
	e := buildDefault(t)
	cfg := DefaultExportConfig()
	cfg.Dir = t.TempDir()
	cfg.Resolution = coarse
	written, err := e.Export(cfg)
	require.NoError(t, err)
	var names []string
	for _, w := range written {
		names = append(names, filepath.Base(w))
		assert.FileExists(t, w)
	}
	assert.Equal(t, []string{BaseSTL, LidSTL, BaseSVG, LidSVG}, names)

	// The STL files are readable by an independent decoder.
	for _, name := range []string{BaseSTL, LidSTL} {
		solid, err := stl.ReadFile(filepath.Join(cfg.Dir, name))
		require.NoError(t, err, name)
		assert.NotEmpty(t, solid.Triangles, name)
		assert.False(t, solid.IsAscii, name)
	}
	svgData, err := os.ReadFile(filepath.Join(cfg.Dir, BaseSVG))
	require.NoError(t, err)
	assert.Contains(t, string(svgData), "stroke-dasharray")
}

func TestExportAllFiles(t *testing.T) {
	e := buildDefault(t)
	cfg := DefaultExportConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "out")
	cfg.Resolution = coarse
	cfg.Assembly = true
	cfg.Preview = true
	cfg.Manifest = true
	cfg.PreviewConfig.Width, cfg.PreviewConfig.Height = 160, 90
	written, err := e.Export(cfg)
	require.NoError(t, err)
	require.Len(t, written, 9)
	assert.Equal(t, ManifestYAML, filepath.Base(written[len(written)-1]))

	data, err := os.ReadFile(filepath.Join(cfg.Dir, ManifestYAML))
	require.NoError(t, err)
	var m manifest
	require.NoError(t, yaml.Unmarshal(data, &m))
	assert.Equal(t, DefaultParams(), m.Params)
	assert.Equal(t, 69.0, m.Derived.LidWidth)
	assert.Equal(t, coarse, m.Resolution)
	assert.Len(t, m.Files, 8)
	require.NotNil(t, m.MeshInterference)
	assert.GreaterOrEqual(t, *m.MeshInterference, 0.0)

	asm, err := stl.ReadFile(filepath.Join(cfg.Dir, AssemblySTL))
	require.NoError(t, err)
	base, err := stl.ReadFile(filepath.Join(cfg.Dir, BaseSTL))
	require.NoError(t, err)
	lid, err := stl.ReadFile(filepath.Join(cfg.Dir, LidSTL))
	require.NoError(t, err)
	assert.Equal(t, len(base.Triangles)+len(lid.Triangles), len(asm.Triangles))
}

func TestExportDeterministic(t *testing.T) {
	export := func() string {
		e := buildDefault(t)
		cfg := DefaultExportConfig()
		cfg.Dir = t.TempDir()
		cfg.Resolution = coarse
		cfg.Manifest = true
		_, err := e.Export(cfg)
		require.NoError(t, err)
		return cfg.Dir
	}
	a, b := export(), export()
	for _, name := range []string{BaseSTL, LidSTL, BaseSVG, LidSVG, ManifestYAML} {
		da, err := os.ReadFile(filepath.Join(a, name))
		require.NoError(t, err)
		db, err := os.ReadFile(filepath.Join(b, name))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(da, db), "%s differs between runs", name)
	}
}

func TestExportErrors(t *testing.T) {
	e := buildDefault(t)
	cfg := DefaultExportConfig()
	cfg.Resolution = 0
	_, err := e.Export(cfg)
	assert.Error(t, err)

	// A failure part way keeps the files already written.
	cfg = DefaultExportConfig()
	cfg.Dir = t.TempDir()
	cfg.Resolution = coarse
	cfg.SVGConfig.Width = 0
	written, err := e.Export(cfg)
	require.Error(t, err)
	assert.Len(t, written, 2)
}

func TestParamsYAML(t *testing.T) {
	data, err := DefaultParams().YAML()
	require.NoError(t, err)
	var doc struct {
		Params  Params  `yaml:"params"`
		Derived Derived `yaml:"derived"`
	}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, DefaultParams(), doc.Params)
	assert.Equal(t, Vec2{X: 61, Y: 86}, doc.Derived.ScrewPostRect)
}
