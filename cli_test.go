package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/csgbox/pkg/compile"
	"github.com/chazu/csgbox/pkg/ident"
	"github.com/chazu/csgbox/pkg/scene"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	watchFlag, exportOut, configPath = false, "", ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.zy")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestScriptCommand(t *testing.T) {
	path := writeScript(t, twoBoxes+"(union a b)")

	out, err := execute(t, "script", path)
	require.NoError(t, err)
	assert.Contains(t, out, "union")
	assert.Contains(t, out, "#4a90d9")
	assert.Contains(t, out, "roots  [2]")
}

func TestScriptCommandReportsEvalErrors(t *testing.T) {
	path := writeScript(t, "(union 0 1)")

	_, err := execute(t, "script", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestScriptCommandMissingFile(t *testing.T) {
	_, err := execute(t, "script", filepath.Join(t.TempDir(), "nope.zy"))
	assert.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	t.Setenv("CSGBOX_MESH_CELLS", "24")
	path := writeScript(t, twoBoxes+"(subtract a b)")
	stl := filepath.Join(t.TempDir(), "out.stl")

	out, err := execute(t, "export", path, "-o", stl)
	require.NoError(t, err)
	assert.Equal(t, stl, strings.TrimSpace(out))

	info, err := os.Stat(stl)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(84))
}

func TestExportCommandDefaultsOutputPath(t *testing.T) {
	t.Setenv("CSGBOX_MESH_CELLS", "16")
	path := writeScript(t, "(box)")

	out, err := execute(t, "export", path)
	require.NoError(t, err)
	want := strings.TrimSuffix(path, ".zy") + ".stl"
	assert.Equal(t, want, strings.TrimSpace(out))
	assert.FileExists(t, want)
}

func TestExportCommandEmptyScene(t *testing.T) {
	path := writeScript(t, "")
	_, err := execute(t, "export", path)
	assert.Error(t, err)
}

func TestBadConfigFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "csgbox.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  level: loud\n"), 0o644))
	path := writeScript(t, "(box)")

	_, err := execute(t, "script", path, "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Level")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "csgbox version dev\n", out)
}

func TestPrintProgram(t *testing.T) {
	prims := []scene.Primitive{
		{ID: 4, Color: ident.RGB{1, 0, 0}},
		{ID: 9, Color: ident.RGB{0, 0, 1}},
	}
	prog := &compile.Program{
		Ops: []compile.OpRecord{
			{Kind: compile.OpPrimitive, Primitive: 0},
			{Kind: compile.OpPrimitive, Primitive: 1},
			{Kind: compile.OpSubtract, Left: 0, Right: 1, Blend: 0.25, Color: ident.RGB{1, 0, 0}},
		},
		Roots: []uint32{2},
	}
	var buf bytes.Buffer
	require.NoError(t, printProgram(&buf, prog, prims))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[1], "box 4")
	assert.Contains(t, lines[2], "#0000ff")
	assert.Contains(t, lines[3], "subtract")
	assert.Contains(t, lines[3], "0.25")
	assert.Contains(t, lines[4], "[2]")
}
