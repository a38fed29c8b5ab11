package cargo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, ManifestName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadPackageName(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "[package]\nname = \"test-package\"\nversion = \"0.1.0\"\n")
	name, ok := ReadPackageName(path)
	assert.True(t, ok)
	assert.Equal(t, "test-package", name)

	_, ok = ReadPackageName(filepath.Join(dir, "missing", ManifestName))
	assert.False(t, ok)

	noPkg := writeManifest(t, filepath.Join(dir, "ws"), "[workspace]\n")
	_, ok = ReadPackageName(noPkg)
	assert.False(t, ok)

	broken := writeManifest(t, filepath.Join(dir, "broken"), "[package\n")
	_, ok = ReadPackageName(broken)
	assert.False(t, ok)
}

func TestAddWorkspaceGuard(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "[package]\nname = \"test\"\n")
	require.NoError(t, AddWorkspaceGuard(path))
	require.NoError(t, AddWorkspaceGuard(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "[workspace]"))

	m, err := ReadManifest(path)
	require.NoError(t, err)
	name, _ := m.PackageName()
	assert.Equal(t, "test", name, "other tables survive")

	assert.NoError(t, AddWorkspaceGuard(filepath.Join(dir, "nope", ManifestName)))
}

func TestNormalizePackageName(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "2048-game.v2")
	path := writeManifest(t, projectDir, "[package]\nname = \"whatever\"\n\n[lib]\npath = \"src/lib.rs\"\n")

	require.NoError(t, NormalizePackageName(path, projectDir))
	m, err := ReadManifest(path)
	require.NoError(t, err)
	name, _ := m.PackageName()
	assert.Equal(t, "_2048-game_v2", name)
	lib, ok := m.Table("lib")
	require.True(t, ok)
	assert.Equal(t, "_2048-game_v2", lib["name"])
	assert.Equal(t, "src/lib.rs", lib["path"])

	assert.NoError(t, NormalizePackageName(filepath.Join(root, "none", ManifestName), root))
}

func TestEnsureCdylib(t *testing.T) {
	cases := map[string]struct {
		body string
		want []any
	}{
		"adds to existing array": {"[lib]\ncrate-type = [\"rlib\"]\n", []any{"rlib", "cdylib"}},
		"keeps existing cdylib":  {"[lib]\ncrate-type = [\"cdylib\"]\n", []any{"cdylib"}},
		"converts a string":      {"[lib]\ncrate-type = \"rlib\"\n", []any{"rlib", "cdylib"}},
		"creates lib table":      {"[package]\nname = \"mylib\"\n", []any{"cdylib"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), tc.body)
			require.NoError(t, EnsureCdylib(path))
			m, err := ReadManifest(path)
			require.NoError(t, err)
			lib, ok := m.Table("lib")
			require.True(t, ok)
			assert.Equal(t, tc.want, lib["crate-type"])
		})
	}

	assert.Error(t, EnsureCdylib(filepath.Join(t.TempDir(), ManifestName)), "missing manifest")
}

func TestSanitizePackageName(t *testing.T) {
	assert.Equal(t, "hello_world", SanitizePackageName("hello world"))
	assert.Equal(t, "_1abc", SanitizePackageName("1abc"))
	assert.Equal(t, "_-x", SanitizePackageName("-x"))
	assert.Equal(t, "ok-name_2", SanitizePackageName("ok-name_2"))
	assert.Equal(t, "", SanitizePackageName(""))
}
