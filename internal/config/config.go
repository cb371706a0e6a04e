// Package config resolves workbox settings from flags, WORKBOX_ environment
// variables, an optional config file and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soypat/workbox"
	"github.com/soypat/workbox/internal/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables, e.g. WORKBOX_SHELL_THICKNESS.
const EnvPrefix = "WORKBOX"

// Config holds all command configuration.
type Config struct {
	Params workbox.Params `mapstructure:",squash"`
	Output Output         `mapstructure:"output"`
	Log    Log            `mapstructure:"log"`
}

// Output selects what gets written and where.
type Output struct {
	Dir        string  `mapstructure:"dir"`
	Resolution float64 `mapstructure:"resolution"`
	STL        bool    `mapstructure:"stl"`
	SVG        bool    `mapstructure:"svg"`
	Assembly   bool    `mapstructure:"assembly"`
	Preview    bool    `mapstructure:"preview"`
	Manifest   bool    `mapstructure:"manifest"`
}

// Log holds logging configuration
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Logger returns the logger configuration.
func (l Log) Logger() logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level, cfg.Format, cfg.Output = l.Level, l.Format, l.Output
	return cfg
}

// flagSpec ties a command line flag to a configuration key.
type flagSpec struct {
	name, key, usage string
	def              any
}

func flagSpecs() []flagSpec {
	p := workbox.DefaultParams()
	lc := logger.DefaultConfig()
	return []flagSpec{
		{"length", "length", "inner length of the box (mm)", p.Length},
		{"width", "width", "inner width of the box (mm)", p.Width},
		{"height", "height", "inner height of the box (mm)", p.Height},
		{"shell-thickness", "shell_thickness", "wall thickness (mm)", p.ShellThickness},
		{"fitment-epsilon", "fitment_epsilon", "clearance between parts that fit together (mm)", p.FitmentEpsilon},
		{"button-diam", "button_diam", "lid button hole diameter (mm)", p.ButtonDiam},
		{"button-offset", "button_offset", "button hole inset from the lid edges (mm)", p.ButtonOffset},
		{"screw-post-diam", "screw_post_diam", "screw post diameter (mm)", p.ScrewPostDiam},
		{"screw-hole-size", "screw_hole_size", "screw hole diameter (mm)", p.ScrewHoleSize},
		{"wire-port-offset-x", "wire_port_offset.x", "wire port inset along the wall (mm)", p.WirePortOffset.X},
		{"wire-port-offset-y", "wire_port_offset.y", "wire port inset from the rim (mm)", p.WirePortOffset.Y},
		{"wire-port-width", "wire_port_width", "wire port width (mm)", p.WirePortWidth},
		{"wire-port-height", "wire_port_height", "wire port height (mm)", p.WirePortHeight},
		{"lid-thickness", "lid_thickness", "lid thickness (mm)", p.LidThickness},
		{"cbore-diam", "cbore_diam", "lid screw counterbore diameter (mm)", p.CboreDiam},
		{"cbore-depth", "cbore_depth", "lid screw counterbore depth (mm)", p.CboreDepth},
		{"button-corners", "button_corners", `corners of the button rectangle to drill, "" for all`, p.ButtonCorners},
		{"wire-port-corner", "wire_port_corner", "corner of the wire port rectangle to cut", p.WirePortCorner},

		{"out", "output.dir", "output directory", ""},
		{"resolution", "output.resolution", "tessellation step (mm)", workbox.DefaultResolution},
		{"stl", "output.stl", "write STL files", true},
		{"svg", "output.svg", "write SVG drawings", true},
		{"assembly", "output.assembly", "write the assembled parts as one STL", false},
		{"preview", "output.preview", "write shaded PNG previews", false},
		{"manifest", "output.manifest", "write parameters and derived dimensions as YAML", false},

		{"log-level", "log.level", "log level: debug, info, warn, error", lc.Level},
		{"log-format", "log.format", "log format: console, json", lc.Format},
		{"log-output", "log.output", "log output: stdout, stderr or a file path", lc.Output},
	}
}

// RegisterFlags adds a flag for every setting to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, f := range flagSpecs() {
		switch def := f.def.(type) {
		case float64:
			fs.Float64(f.name, def, f.usage)
		case string:
			fs.String(f.name, def, f.usage)
		case bool:
			fs.Bool(f.name, def, f.usage)
		default:
			panic(fmt.Sprintf("flag %s: unsupported default %T", f.name, def))
		}
	}
}

// Load resolves the configuration. Priority (highest to lowest):
//  1. flags set on fs (fs may be nil)
//  2. environment variables with the WORKBOX_ prefix
//  3. the config file at path, or ./workbox.{yaml,toml,...} when path is empty
//  4. built-in defaults
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for _, f := range flagSpecs() {
		v.SetDefault(f.key, f.def)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("workbox")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for _, f := range flagSpecs() {
			if fl := fs.Lookup(f.name); fl != nil {
				if err := v.BindPFlag(f.key, fl); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
