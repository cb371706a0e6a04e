package workbox

// Vec3 is a size in millimetres.
type Vec3 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Derived holds dimensions computed from Params.
type Derived struct {
	LidWidth  float64 `yaml:"lid_width"`
	LidLength float64 `yaml:"lid_length"`
	// ScrewPostRect is the rectangle whose corners hold the screw posts.
	ScrewPostRect Vec2 `yaml:"screw_post_rect"`
	// WirePortRect is the construction rectangle on the +Y wall whose
	// selected corner centres the wire port.
	WirePortRect Vec2 `yaml:"wire_port_rect"`
	// ButtonRect is the construction rectangle on the lid top for button holes.
	ButtonRect Vec2 `yaml:"button_rect"`
	Cavity     Vec3 `yaml:"cavity"`
	// Plug is the lid protrusion that nests inside the cavity.
	Plug              Vec3    `yaml:"plug"`
	PostClearanceDiam float64 `yaml:"post_clearance_diam"`
}

// Derive computes the dependent dimensions of p.
func (p Params) Derive() Derived {
	lidW := p.Width + p.ShellThickness*2
	lidL := p.Length + p.ShellThickness*2
	return Derived{
		LidWidth:  lidW,
		LidLength: lidL,
		ScrewPostRect: Vec2{
			X: p.Width - (p.ScrewPostDiam/2 + p.ShellThickness),
			Y: p.Length - (p.ScrewPostDiam/2 + p.ShellThickness),
		},
		WirePortRect: Vec2{
			X: p.Width - (p.WirePortOffset.X + p.WirePortWidth/2),
			Y: p.Height - (p.WirePortOffset.Y + p.WirePortHeight/2),
		},
		ButtonRect: Vec2{
			X: lidW - p.ButtonOffset*2,
			Y: lidL - p.ButtonOffset*2,
		},
		Cavity: Vec3{X: p.Width, Y: p.Length, Z: p.Height},
		Plug: Vec3{
			X: p.Width - p.FitmentEpsilon*2,
			Y: p.Length - p.FitmentEpsilon*2,
			Z: p.ShellThickness / 2,
		},
		PostClearanceDiam: p.ScrewPostDiam + p.FitmentEpsilon*2,
	}
}
