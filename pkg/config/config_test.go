package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/csgbox/pkg/ident"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "csgbox.yaml", `
window:
  width: 800
  height: 600
box:
  color: "#ff0000"
  rounding: 0.5
eval:
  timeout: 250ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, 600, cfg.Window.Height)
	assert.Equal(t, 0.5, cfg.Box.Rounding)
	assert.Equal(t, 250*time.Millisecond, cfg.Eval.Timeout)
	assert.Equal(t, ident.RGB{1, 0, 0}, cfg.BoxColor())
	// Untouched keys keep their defaults.
	assert.Equal(t, 200, cfg.Mesh.Cells)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "csgbox.toml", "id_base = 100\n[log]\nformat = \"json\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.EqualValues(t, 100, cfg.IDBase)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "csgbox.json", `{"log": {"level": "warn"}}`)
	t.Setenv("CSGBOX_LOG_LEVEL", "debug")
	t.Setenv("CSGBOX_MESH_CELLS", "64")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 64, cfg.Mesh.Cells)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"tiny window", func(c *Config) { c.Window.Width = 10 }},
		{"zero patch", func(c *Config) { c.Picking.Patch = 0 }},
		{"negative scale", func(c *Config) { c.Box.Scale = -1 }},
		{"bad color", func(c *Config) { c.Box.Color = "red" }},
		{"rounding above one", func(c *Config) { c.Box.Rounding = 1.5 }},
		{"id base out of range", func(c *Config) { c.IDBase = ident.Limit }},
		{"unknown level", func(c *Config) { c.Log.Level = "trace" }},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad metrics addr", func(c *Config) { c.Metrics.Addr = "not an addr" }},
		{"zero timeout", func(c *Config) { c.Eval.Timeout = 0 }},
		{"coarse mesh", func(c *Config) { c.Mesh.Cells = 2 }},
	}
	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidateAcceptsMetricsAddr(t *testing.T) {
	c := Default()
	c.Metrics.Addr = "localhost:9090"
	assert.NoError(t, c.Validate())
}
