package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestLoadAndMaterialize(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"CMakeLists.txt": "add_executable(main main.c)\n",
		"src/main.c":     "int main(void) { return 0; }\n",
		"src/util/u.h":   "#pragma once\n",
	})
	require.NoError(t, os.Mkdir(filepath.Join(src, "empty"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(src, "src/main.c"), filepath.Join(src, "link.c")))

	dir, dirs, files, err := Load(src)
	require.NoError(t, err)
	assert.Equal(t, 3, dirs, "src, src/util and empty")
	assert.Equal(t, 3, files, "symlink must be skipped")
	assert.Equal(t, []string{"CMakeLists.txt", "src/main.c", "src/util/u.h"}, dir.Paths())

	data, ok := dir.File("src/main.c")
	require.True(t, ok)
	assert.Contains(t, string(data), "int main")

	dst := filepath.Join(t.TempDir(), "out")
	require.NoError(t, dir.Materialize(dst))
	got, err := os.ReadFile(filepath.Join(dst, "src", "util", "u.h"))
	require.NoError(t, err)
	assert.Equal(t, "#pragma once\n", string(got))
	assert.DirExists(t, filepath.Join(dst, "empty"))
}

func TestLoad_NotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, _, _, err := Load(f)
	assert.ErrorContains(t, err, "is not a directory")
}

func TestPut(t *testing.T) {
	dir := NewRawDir()
	require.NoError(t, dir.Put("a/b/c.rs", []byte("fn main() {}")))
	assert.Equal(t, 1, dir.Len())

	_, ok := dir.File("./a/b/c.rs")
	assert.True(t, ok, "paths are cleaned")

	assert.Error(t, dir.Put("../escape", nil))
	assert.Error(t, dir.Put("/abs", nil))
	assert.ErrorContains(t, dir.Put("a/b", nil), "is a directory")
}

func TestIsEmptyDir(t *testing.T) {
	root := t.TempDir()

	empty, err := IsEmptyDir(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.True(t, empty)

	empty, err = IsEmptyDir(root)
	require.NoError(t, err)
	assert.True(t, empty)

	writeTree(t, root, map[string]string{"x": "y"})
	empty, err = IsEmptyDir(root)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestFindFilesByExtension(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.hcl":        "",
		"a.hcl":        "",
		"nested/c.hcl": "",
		"readme.md":    "",
	})

	files, err := FindFilesByExtension(root, ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.hcl"),
		filepath.Join(root, "b.hcl"),
		filepath.Join(root, "nested", "c.hcl"),
	}, files)

	assert.Panics(t, func() { _, _ = FindFilesByExtension(root, "") })
}
