package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/soypat/workbox/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// PreviewPart is a mesh drawn in a single color.
type PreviewPart struct {
	Model []Triangle3
	Color color.Color
}

// PreviewConfig sets up the camera for shaded previews. The scene is
// scaled into a bi-unit cube centered at the origin before drawing.
type PreviewConfig struct {
	Width, Height int
	// Supersample renders at a multiple of the output size and downsamples.
	Supersample int
	Eye         r3.Vec // camera position
	LookAt      r3.Vec // view center position
	Up          r3.Vec // up direction
	Light       r3.Vec // light direction
	Near, Far   float64
	FovY        float64 // vertical field of view in degrees
	Background  color.Color
}

// DefaultPreviewConfig returns an isometric view at 768x432.
func DefaultPreviewConfig() PreviewConfig {
	return PreviewConfig{
		Width:       768,
		Height:      432,
		Supersample: 1,
		Eye:         d3.Elem(2.4),
		Up:          r3.Vec{Z: 1},
		Light:       r3.Vec{X: -0.75, Y: 1, Z: 0.25},
		Near:        1,
		Far:         10,
		FovY:        30,
		Background:  color.RGBA{R: 0xFF, G: 0xF8, B: 0xE3, A: 0xFF},
	}
}

// RenderPreview draws the parts with a Phong shader.
func RenderPreview(parts []PreviewPart, cfg PreviewConfig) (image.Image, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("preview size must be positive")
	}
	if cfg.Supersample < 1 {
		cfg.Supersample = 1
	}
	var bb d3.Box
	first := true
	for _, p := range parts {
		for _, t := range p.Model {
			for _, v := range t.V {
				if first {
					bb = d3.Box{Min: v, Max: v}
					first = false
				}
				bb = bb.Include(v)
			}
		}
	}
	if first {
		return nil, errors.New("no triangles to preview")
	}
	center := bb.Center()
	k := 2 / d3.Max(bb.Size())
	var (
		eye    = fauxglVec(cfg.Eye)
		lookat = fauxglVec(cfg.LookAt)
		up     = fauxglVec(cfg.Up)
		light  = fauxglVec(cfg.Light).Normalize()
	)
	w, h := cfg.Width*cfg.Supersample, cfg.Height*cfg.Supersample
	context := fauxgl.NewContext(w, h)
	context.ClearColorBufferWith(fauxglColor(cfg.Background))
	aspect := float64(cfg.Width) / float64(cfg.Height)
	matrix := fauxgl.LookAt(eye, lookat, up).Perspective(cfg.FovY, aspect, cfg.Near, cfg.Far)
	for _, p := range parts {
		if len(p.Model) == 0 {
			continue
		}
		tris := make([]*fauxgl.Triangle, len(p.Model))
		for i, t := range p.Model {
			var fv [3]fauxgl.Vector
			for j, v := range t.V {
				fv[j] = fauxglVec(r3.Scale(k, r3.Sub(v, center)))
			}
			tris[i] = fauxgl.NewTriangleForPoints(fv[0], fv[1], fv[2])
		}
		shader := fauxgl.NewPhongShader(matrix, light, eye)
		shader.ObjectColor = fauxglColor(p.Color)
		context.Shader = shader
		context.DrawMesh(fauxgl.NewTriangleMesh(tris))
	}
	img := context.Image()
	if cfg.Supersample > 1 {
		img = resize.Resize(uint(cfg.Width), uint(cfg.Height), img, resize.Bilinear)
	}
	return img, nil
}

// WritePNG renders a preview and encodes it as PNG.
func WritePNG(w io.Writer, parts []PreviewPart, cfg PreviewConfig) error {
	img, err := RenderPreview(parts, cfg)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// CreatePNG renders a preview into a PNG file at path.
func CreatePNG(path string, parts []PreviewPart, cfg PreviewConfig) error {
	img, err := RenderPreview(parts, cfg)
	if err != nil {
		return err
	}
	return fauxgl.SavePNG(path, img)
}

func fauxglVec(v r3.Vec) fauxgl.Vector {
	return fauxgl.V(v.X, v.Y, v.Z)
}

func fauxglColor(c color.Color) fauxgl.Color {
	if c == nil {
		c = color.Gray{Y: 0x80}
	}
	r, g, b, _ := c.RGBA()
	return fauxgl.HexColor(fmt.Sprintf("#%02X%02X%02X", r>>8, g>>8, b>>8))
}
