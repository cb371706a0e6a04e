package workbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soypat/workbox/assembly"
	"github.com/soypat/workbox/render"
	"github.com/soypat/workbox/sdf"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Output file names.
const (
	BaseSTL      = "workBox.stl"
	LidSTL       = "workBoxLid.stl"
	BaseSVG      = "workBox.svg"
	LidSVG       = "workBoxLid.svg"
	AssemblySTL  = "workBoxAssembly.stl"
	BasePNG      = "workBox.png"
	LidPNG       = "workBoxLid.png"
	AssemblyPNG  = "workBoxAssembly.png"
	ManifestYAML = "workBox.params.yaml"
)

// DefaultResolution is the default tessellation step in millimetres.
const DefaultResolution = 0.4

// ExportConfig selects the files written by Export.
type ExportConfig struct {
	// Dir is the output directory. Empty means the working directory.
	Dir string
	// Resolution is the tessellation step in millimetres.
	Resolution float64
	STL        bool
	SVG        bool
	SVGConfig  render.SVGConfig
	// Assembly writes both parts at their solved locations into one STL.
	Assembly bool
	// Preview writes shaded PNG images of each part and the assembly.
	Preview       bool
	PreviewConfig render.PreviewConfig
	// Manifest writes the parameters and derived dimensions as YAML.
	Manifest bool
	Log      *zap.Logger
}

// DefaultExportConfig writes the STL and SVG files of both parts into the
// working directory.
func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		Resolution:    DefaultResolution,
		STL:           true,
		SVG:           true,
		SVGConfig:     render.DefaultSVGConfig(),
		PreviewConfig: render.DefaultPreviewConfig(),
	}
}

// manifest is the document written to ManifestYAML. MeshInterference is
// measured on the placed meshes of AssemblySTL when it is written.
type manifest struct {
	Params           Params   `yaml:"params"`
	Derived          Derived  `yaml:"derived"`
	Resolution       float64  `yaml:"resolution"`
	Interference     float64  `yaml:"interference_mm3"`
	MeshInterference *float64 `yaml:"mesh_interference_mm3,omitempty"`
	Files            []string `yaml:"files"`
}

// Export writes the selected files in order and returns their paths.
// Existing files are overwritten. On failure the files already written are
// left in place and returned alongside the error.
func (e *Enclosure) Export(cfg ExportConfig) ([]string, error) {
	if cfg.Resolution <= 0 {
		return nil, fmt.Errorf("non-positive resolution %g", cfg.Resolution)
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, err
		}
	}
	var written []string
	path := func(name string) string { return filepath.Join(cfg.Dir, name) }
	done := func(name string) {
		written = append(written, path(name))
		log.Info("wrote file", zap.String("path", path(name)))
	}

	needMesh := cfg.STL || cfg.SVG || cfg.Assembly || cfg.Preview
	var baseModel, lidModel []render.Triangle3
	if needMesh {
		var err error
		if baseModel, err = mesh(e.Base, cfg.Resolution); err != nil {
			return nil, fmt.Errorf("tessellate base: %w", err)
		}
		log.Debug("tessellated", zap.String("part", BaseName), zap.Int("triangles", len(baseModel)))
		if lidModel, err = mesh(e.Lid, cfg.Resolution); err != nil {
			return nil, fmt.Errorf("tessellate lid: %w", err)
		}
		log.Debug("tessellated", zap.String("part", LidName), zap.Int("triangles", len(lidModel)))
	}

	if cfg.STL {
		for _, f := range []struct {
			name  string
			model []render.Triangle3
		}{{BaseSTL, baseModel}, {LidSTL, lidModel}} {
			if err := render.CreateSTL(path(f.name), render.NewSliceRenderer(f.model)); err != nil {
				return written, fmt.Errorf("write %s: %w", f.name, err)
			}
			done(f.name)
		}
	}
	if cfg.SVG {
		for _, f := range []struct {
			name  string
			s     sdf.SDF3
			model []render.Triangle3
		}{{BaseSVG, e.Base, baseModel}, {LidSVG, e.Lid, lidModel}} {
			if err := render.CreateSVG(path(f.name), f.s, f.model, cfg.SVGConfig); err != nil {
				return written, fmt.Errorf("write %s: %w", f.name, err)
			}
			done(f.name)
		}
	}

	var placed []render.PreviewPart
	if cfg.Assembly || cfg.Preview {
		var err error
		placed, err = e.placedParts(map[string][]render.Triangle3{BaseName: baseModel, LidName: lidModel})
		if err != nil {
			return written, err
		}
	}
	var meshInterference *float64
	if cfg.Assembly {
		v, err := meshOverlap(placed, DefaultInterferenceResolution)
		if err != nil {
			return written, fmt.Errorf("mesh interference: %w", err)
		}
		meshInterference = &v
		if v > 0 {
			log.Warn("exported meshes interfere", zap.Float64("volume_mm3", v), zap.Float64("resolution", cfg.Resolution))
		}
		var all []render.Triangle3
		for _, p := range placed {
			all = append(all, p.Model...)
		}
		if err := render.CreateSTL(path(AssemblySTL), render.NewSliceRenderer(all)); err != nil {
			return written, fmt.Errorf("write %s: %w", AssemblySTL, err)
		}
		done(AssemblySTL)
	}
	if cfg.Preview {
		for _, f := range []struct {
			name  string
			parts []render.PreviewPart
		}{
			{BasePNG, placed[:1]},
			{LidPNG, []render.PreviewPart{{Model: lidModel, Color: placed[1].Color}}},
			{AssemblyPNG, placed},
		} {
			if err := render.CreatePNG(path(f.name), f.parts, cfg.PreviewConfig); err != nil {
				return written, fmt.Errorf("write %s: %w", f.name, err)
			}
			done(f.name)
		}
	}
	if cfg.Manifest {
		m := manifest{
			Params:           e.Params,
			Derived:          e.Derived,
			Resolution:       cfg.Resolution,
			Interference:     e.Interference,
			MeshInterference: meshInterference,
		}
		for _, w := range written {
			m.Files = append(m.Files, filepath.Base(w))
		}
		if err := writeYAML(path(ManifestYAML), m); err != nil {
			return written, fmt.Errorf("write %s: %w", ManifestYAML, err)
		}
		done(ManifestYAML)
	}
	return written, nil
}

// meshOverlap estimates the volume shared by the placed part meshes.
func meshOverlap(placed []render.PreviewPart, resolution float64) (float64, error) {
	solids := make([]sdf.SDF3, len(placed))
	for i, p := range placed {
		s, err := render.NewKDSDF(p.Model)
		if err != nil {
			return 0, err
		}
		solids[i] = s
	}
	return assembly.Overlap(solids[0], solids[1], resolution)
}

// placedParts moves each part's mesh to its solved location.
func (e *Enclosure) placedParts(models map[string][]render.Triangle3) ([]render.PreviewPart, error) {
	var parts []render.PreviewPart
	for _, p := range e.Assembly.Parts() {
		model, ok := models[p.Name]
		if !ok {
			return nil, fmt.Errorf("no mesh for part %q", p.Name)
		}
		loc, err := e.Assembly.Location(p.Name)
		if err != nil {
			return nil, err
		}
		parts = append(parts, render.PreviewPart{
			Model: render.Transform(model, loc.MulPosition),
			Color: p.Color,
		})
	}
	if len(parts) != 2 {
		return nil, errors.New("assembly must hold the base and the lid")
	}
	return parts, nil
}

func mesh(s sdf.SDF3, resolution float64) ([]render.Triangle3, error) {
	r, err := render.NewOctreeRenderer(s, resolution)
	if err != nil {
		return nil, err
	}
	return render.RenderAll(r)
}

func writeYAML(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	err = enc.Encode(v)
	if cerr := enc.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// YAML returns the parameters and derived dimensions as a YAML document.
func (p Params) YAML() ([]byte, error) {
	return yaml.Marshal(struct {
		Params  Params  `yaml:"params"`
		Derived Derived `yaml:"derived"`
	}{p, p.Derive()})
}
