package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/workbox"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves the test into an empty directory so no stray workbox.yaml is read.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, workbox.DefaultParams(), cfg.Params)
	assert.Equal(t, workbox.DefaultResolution, cfg.Output.Resolution)
	assert.True(t, cfg.Output.STL)
	assert.True(t, cfg.Output.SVG)
	assert.False(t, cfg.Output.Assembly)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "stderr", cfg.Log.Output)
}

func TestLoadFile(t *testing.T) {
	dir := chdir(t)
	writeFile(t, filepath.Join(dir, "workbox.yaml"), `
length: 120
shell_thickness: 3
wire_port_offset:
  x: 20
button_corners: ""
output:
  dir: build
  preview: true
log:
  format: json
`)
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 120.0, cfg.Params.Length)
	assert.Equal(t, 3.0, cfg.Params.ShellThickness)
	assert.Equal(t, 20.0, cfg.Params.WirePortOffset.X)
	assert.Equal(t, 4.0, cfg.Params.WirePortOffset.Y, "unset nested key keeps default")
	assert.Equal(t, "", cfg.Params.ButtonCorners)
	assert.Equal(t, 65.0, cfg.Params.Width)
	assert.Equal(t, "build", cfg.Output.Dir)
	assert.True(t, cfg.Output.Preview)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadTOMLPath(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "box.toml")
	writeFile(t, path, "height = 30\n[output]\nresolution = 0.8\n")
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.Params.Height)
	assert.Equal(t, 0.8, cfg.Output.Resolution)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := chdir(t)
	_, err := Load(filepath.Join(dir, "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdir(t)
	writeFile(t, filepath.Join(dir, "workbox.yaml"), "length: [1, 2\n")
	_, err := Load("", nil)
	assert.Error(t, err)
}

func TestPrecedence(t *testing.T) {
	dir := chdir(t)
	writeFile(t, filepath.Join(dir, "workbox.yaml"), "length: 100\nwidth: 70\nheight: 30\n")
	t.Setenv("WORKBOX_WIDTH", "75")
	t.Setenv("WORKBOX_HEIGHT", "35")
	t.Setenv("WORKBOX_WIRE_PORT_OFFSET_X", "12")
	t.Setenv("WORKBOX_OUTPUT_MANIFEST", "true")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--height=40", "--log-level=debug"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, 100.0, cfg.Params.Length, "file over default")
	assert.Equal(t, 75.0, cfg.Params.Width, "env over file")
	assert.Equal(t, 40.0, cfg.Params.Height, "flag over env")
	assert.Equal(t, 12.0, cfg.Params.WirePortOffset.X, "nested env key")
	assert.True(t, cfg.Output.Manifest)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset flags do not override lower layers.
	assert.Equal(t, 2.0, cfg.Params.ShellThickness)
}

func TestRegisterFlags(t *testing.T) {
	chdir(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	for _, name := range []string{"length", "shell-thickness", "wire-port-offset-y", "button-corners", "out", "resolution", "svg", "stl", "assembly", "preview", "manifest", "log-level", "log-format"} {
		assert.NotNil(t, fs.Lookup(name), name)
	}
	require.NoError(t, fs.Parse([]string{"--svg=false", "--button-corners=", "--resolution=1.5"}))
	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.False(t, cfg.Output.SVG)
	assert.Equal(t, "", cfg.Params.ButtonCorners)
	assert.Equal(t, 1.5, cfg.Output.Resolution)
}

func TestLogConfig(t *testing.T) {
	lc := Log{Level: "warn", Format: "json", Output: "stdout"}.Logger()
	assert.Equal(t, "warn", lc.Level)
	assert.Equal(t, "json", lc.Format)
	assert.Equal(t, "stdout", lc.Output)
	assert.NotEmpty(t, lc.TimeFormat)
}
