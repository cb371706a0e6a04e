// Package workbox generates a two part electronics enclosure, a shelled base
// with screw posts and a wiring slot plus a fitted lid, and exports both
// parts as STL meshes and SVG drawings.
package workbox

import (
	"errors"
	"fmt"

	"github.com/soypat/workbox/workplane"
)

// Vec2 is a pair of offsets in millimetres.
type Vec2 struct {
	X float64 `yaml:"x" mapstructure:"x"`
	Y float64 `yaml:"y" mapstructure:"y"`
}

// Params are the enclosure parameters. Lengths are in millimetres.
type Params struct {
	Length         float64 `yaml:"length" mapstructure:"length"`
	Width          float64 `yaml:"width" mapstructure:"width"`
	Height         float64 `yaml:"height" mapstructure:"height"`
	ShellThickness float64 `yaml:"shell_thickness" mapstructure:"shell_thickness"`
	// FitmentEpsilon is the clearance left between parts that fit together.
	// Raise it for 3D printing or to make room for a gasket.
	FitmentEpsilon float64 `yaml:"fitment_epsilon" mapstructure:"fitment_epsilon"`

	ButtonDiam   float64 `yaml:"button_diam" mapstructure:"button_diam"`
	ButtonOffset float64 `yaml:"button_offset" mapstructure:"button_offset"`

	ScrewPostDiam float64 `yaml:"screw_post_diam" mapstructure:"screw_post_diam"`
	ScrewHoleSize float64 `yaml:"screw_hole_size" mapstructure:"screw_hole_size"` // M3 bolt

	WirePortOffset Vec2    `yaml:"wire_port_offset" mapstructure:"wire_port_offset"`
	WirePortWidth  float64 `yaml:"wire_port_width" mapstructure:"wire_port_width"`
	WirePortHeight float64 `yaml:"wire_port_height" mapstructure:"wire_port_height"`

	LidThickness float64 `yaml:"lid_thickness" mapstructure:"lid_thickness"`
	// Counterbore for M3 socket heads.
	CboreDiam  float64 `yaml:"cbore_diam" mapstructure:"cbore_diam"`
	CboreDepth float64 `yaml:"cbore_depth" mapstructure:"cbore_depth"`

	// ButtonCorners selects which corners of the button rectangle get a
	// hole. Empty selects all four.
	ButtonCorners string `yaml:"button_corners" mapstructure:"button_corners"`
	// WirePortCorner selects the corner of the wire port rectangle on the
	// +Y wall where the slot is cut.
	WirePortCorner string `yaml:"wire_port_corner" mapstructure:"wire_port_corner"`
}

// DefaultParams returns the stock enclosure.
func DefaultParams() Params {
	return Params{
		Length:         90,
		Width:          65,
		Height:         25,
		ShellThickness: 2,
		FitmentEpsilon: 0.1,
		ButtonDiam:     12.5,
		ButtonOffset:   18,
		ScrewPostDiam:  4,
		ScrewHoleSize:  2.5,
		WirePortOffset: Vec2{X: 16, Y: 4},
		WirePortWidth:  5,
		WirePortHeight: 2,
		LidThickness:   4,
		CboreDiam:      6.5,
		CboreDepth:     3.1,
		ButtonCorners:  ">XY",
		WirePortCorner: "<XZ",
	}
}

// ParamError describes a parameter or derived dimension that cannot produce
// valid geometry.
type ParamError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Validate checks that p describes a buildable enclosure. All violations are
// returned joined; each is a *ParamError.
func (p Params) Validate() error {
	var errs []error
	add := func(field string, value any, reason string) {
		errs = append(errs, &ParamError{Field: field, Value: value, Reason: reason})
	}
	positive := func(field string, v float64) {
		if !(v > 0) {
			add(field, v, "must be positive")
		}
	}
	positive("length", p.Length)
	positive("width", p.Width)
	positive("height", p.Height)
	positive("shell_thickness", p.ShellThickness)
	positive("button_diam", p.ButtonDiam)
	positive("screw_post_diam", p.ScrewPostDiam)
	positive("screw_hole_size", p.ScrewHoleSize)
	positive("wire_port_width", p.WirePortWidth)
	positive("wire_port_height", p.WirePortHeight)
	positive("lid_thickness", p.LidThickness)
	positive("cbore_diam", p.CboreDiam)
	positive("cbore_depth", p.CboreDepth)
	if p.FitmentEpsilon < 0 {
		add("fitment_epsilon", p.FitmentEpsilon, "must not be negative")
	}
	if p.ButtonOffset < 0 {
		add("button_offset", p.ButtonOffset, "must not be negative")
	}
	if p.ScrewHoleSize >= p.ScrewPostDiam {
		add("screw_hole_size", p.ScrewHoleSize, fmt.Sprintf("must be smaller than screw_post_diam %g", p.ScrewPostDiam))
	}
	if p.CboreDiam <= p.ScrewHoleSize {
		add("cbore_diam", p.CboreDiam, fmt.Sprintf("must be larger than screw_hole_size %g", p.ScrewHoleSize))
	}
	if p.CboreDepth >= p.LidThickness {
		add("cbore_depth", p.CboreDepth, fmt.Sprintf("must be less than lid_thickness %g", p.LidThickness))
	}
	if err := workplane.CheckVertexSelector(p.ButtonCorners); err != nil {
		add("button_corners", p.ButtonCorners, err.Error())
	}
	if err := workplane.CheckVertexSelector(p.WirePortCorner); err != nil {
		add("wire_port_corner", p.WirePortCorner, err.Error())
	}

	d := p.Derive()
	pos2 := func(field string, v Vec2) {
		if !(v.X > 0 && v.Y > 0) {
			add(field, v, "derived rectangle must have positive sides")
		}
	}
	pos2("screw_post_rect", d.ScrewPostRect)
	pos2("wire_port_rect", d.WirePortRect)
	pos2("button_rect", d.ButtonRect)
	if !(d.Plug.X > 0 && d.Plug.Y > 0 && d.Plug.Z > 0) {
		add("plug", d.Plug, "lid plug must have positive size")
	}
	return errors.Join(errs...)
}
