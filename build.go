package workbox

import (
	"fmt"
	"image/color"

	"github.com/soypat/workbox/assembly"
	"github.com/soypat/workbox/sdf"
	"github.com/soypat/workbox/workplane"
	"go.uber.org/zap"
)

// Part names in the assembly.
const (
	BaseName = "base"
	LidName  = "lid"
)

// DefaultInterferenceResolution is the sampling step of the lid/base fit check.
const DefaultInterferenceResolution = 0.5

// Enclosure is a built base and lid.
type Enclosure struct {
	Params  Params
	Derived Derived
	// Base and Lid are in the coordinates they were built in. The lid is
	// built on the base top face and is not moved by the assembly solve.
	Base     sdf.SDF3
	Lid      sdf.SDF3
	Assembly *assembly.Assembly
	// Interference is the volume shared by the base and the placed lid.
	Interference float64
}

type buildConfig struct {
	log             *zap.Logger
	interferenceRes float64
}

// Option configures Build.
type Option func(*buildConfig)

// WithLogger sets the logger used during the build.
func WithLogger(l *zap.Logger) Option {
	return func(c *buildConfig) { c.log = l }
}

// WithInterferenceResolution sets the grid step of the fit check. Zero
// disables the check.
func WithInterferenceResolution(res float64) Option {
	return func(c *buildConfig) { c.interferenceRes = res }
}

// Build validates p and constructs the base, the lid and their assembly.
func Build(p Params, opts ...Option) (*Enclosure, error) {
	cfg := buildConfig{log: zap.NewNop(), interferenceRes: DefaultInterferenceResolution}
	for _, o := range opts {
		o(&cfg)
	}
	log := cfg.log
	if err := p.Validate(); err != nil {
		return nil, err
	}
	d := p.Derive()
	log.Debug("derived dimensions",
		zap.Float64("lid_width", d.LidWidth),
		zap.Float64("lid_length", d.LidLength),
		zap.Float64s("screw_post_rect", []float64{d.ScrewPostRect.X, d.ScrewPostRect.Y}),
	)

	base := buildBase(p, d)
	if err := base.Err(); err != nil {
		return nil, fmt.Errorf("base: %w", err)
	}
	log.Debug("base built")
	lid := buildLid(p, d, base)
	if err := lid.Err(); err != nil {
		return nil, fmt.Errorf("lid: %w", err)
	}
	log.Debug("lid built")

	asm, err := buildAssembly(base, lid)
	if err != nil {
		return nil, fmt.Errorf("assembly: %w", err)
	}
	e := &Enclosure{Params: p, Derived: d, Assembly: asm}
	e.Base, _ = base.Solid()
	e.Lid, _ = lid.Solid()
	loc, _ := asm.Location(LidName)
	off := loc.Translation()
	log.Debug("assembly solved", zap.Float64s("lid_offset", []float64{off.X, off.Y, off.Z}))

	if cfg.interferenceRes > 0 {
		e.Interference, err = asm.Interference(BaseName, LidName, cfg.interferenceRes)
		if err != nil {
			return nil, fmt.Errorf("interference: %w", err)
		}
		if e.Interference > 0 {
			log.Warn("lid interferes with base",
				zap.Float64("volume_mm3", e.Interference),
				zap.Float64("fitment_epsilon", p.FitmentEpsilon),
			)
		}
	}
	return e, nil
}

// buildBase shells a box open at the top, adds screw posts on the cavity
// floor and cuts a wire port through the +Y wall.
func buildBase(p Params, d Derived) *workplane.Workplane {
	base := workplane.New(workplane.XY).
		Box(p.Width, p.Length, p.Height, true).
		Faces("+Z").Shell(p.ShellThickness)

	// Posts for screwing the lid down.
	base = base.Faces("<Z").Workplane(-p.ShellThickness).
		ConstructionRect(d.ScrewPostRect.X, d.ScrewPostRect.Y).
		Vertices("").Circle(p.ScrewPostDiam / 2).Extrude(-p.Height).
		Circle(p.ScrewHoleSize / 2).CutBlind(-p.Height)

	// Through hole for wiring.
	return base.Faces(">Y").Workplane(0).
		ConstructionRect(d.WirePortRect.X, d.WirePortRect.Y).
		Vertices(p.WirePortCorner).
		Rect(p.WirePortWidth, p.WirePortHeight).CutBlind(-p.ShellThickness)
}

// buildLid makes the lid on the base top face with a plug that nests in the
// cavity, clearance for the post tops, counterbored screw holes and button holes.
func buildLid(p Params, d Derived, base *workplane.Workplane) *workplane.Workplane {
	lid := base.Faces(">Z").Workplane(0).
		Box(d.LidWidth, d.LidLength, p.LidThickness, false).
		Edges("|Z").Fillet(p.ShellThickness).
		Faces("<Z").Tag("rim").
		Workplane(0).Box(d.Plug.X, d.Plug.Y, d.Plug.Z, true).
		Faces("<Z").Workplane(0).
		ConstructionRect(d.ScrewPostRect.X, d.ScrewPostRect.Y).
		Vertices("").Circle(d.PostClearanceDiam/2).CutBlind(-p.ShellThickness/2).
		Faces(">Z").Workplane(0).
		ConstructionRect(d.ScrewPostRect.X, d.ScrewPostRect.Y).
		Vertices("").CboreHole(p.ScrewHoleSize, p.CboreDiam, p.CboreDepth)

	// Top detail.
	return lid.Faces(">Z").Workplane(0).
		ConstructionRect(d.ButtonRect.X, d.ButtonRect.Y).
		Vertices(p.ButtonCorners).
		Hole(p.ButtonDiam)
}

func buildAssembly(base, lid *workplane.Workplane) (*assembly.Assembly, error) {
	gray, err := assembly.NamedColor("gray")
	if err != nil {
		return nil, err
	}
	black, err := assembly.NamedColor("black")
	if err != nil {
		return nil, err
	}
	asm := assembly.New()
	for _, part := range []struct {
		name string
		wp   *workplane.Workplane
		c    color.Color
	}{
		{BaseName, base, gray},
		{LidName, lid, black},
	} {
		if err := asm.Add(part.name, part.wp, part.c); err != nil {
			return nil, err
		}
	}
	if err := asm.Constrain(LidName+"?rim", BaseName+"@faces@>Z", assembly.Plane); err != nil {
		return nil, err
	}
	if err := asm.Solve(); err != nil {
		return nil, err
	}
	return asm, nil
}
