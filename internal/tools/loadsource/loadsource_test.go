package loadsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/harvest/internal/source"
	"github.com/specialistvlad/harvest/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.c"), []byte("int main(void){return 0;}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte("add_executable(x src/main.c)\n"), 0o644))

	tl := New(dir)
	assert.Equal(t, Name, tl.Name())
	rep, err := tl.Run(context.Background(), &tool.RunContext{}, nil)
	require.NoError(t, err)

	raw, ok := rep.(source.RawSource)
	require.True(t, ok)
	assert.Equal(t, []string{"CMakeLists.txt", "src/main.c"}, raw.Dir.Paths())

	out := t.TempDir()
	require.NoError(t, raw.Materialize(out))
	assert.FileExists(t, filepath.Join(out, "src", "main.c"))
}

func TestRun_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope")).Run(context.Background(), &tool.RunContext{}, nil)
	assert.ErrorContains(t, err, "loading")
}
