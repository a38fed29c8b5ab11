package translate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/harvest/internal/config"
	"github.com/specialistvlad/harvest/internal/diagnostics"
	"github.com/specialistvlad/harvest/internal/node"
	"github.com/specialistvlad/harvest/internal/scheduler"
	"github.com/specialistvlad/harvest/internal/testutil"
	"github.com/specialistvlad/harvest/internal/tools/projectkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const translator = `#!/bin/sh
set -e
mkdir -p "$2/src"
printf '[package]\nname = "x"\nversion = "0.1.0"\n' > "$2/Cargo.toml"
printf 'fn main() {}\n' > "$2/src/main.rs"
`

func writeFile(t *testing.T, path, body string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), mode))
}

// newConfig prepares a C project, a fake translator and a fake build.
func newConfig(t *testing.T, buildCmd string) *config.Config {
	t.Helper()
	root := t.TempDir()
	input := filepath.Join(root, "project")
	writeFile(t, filepath.Join(input, "CMakeLists.txt"), "add_executable(demo main.c)\n", 0o644)
	writeFile(t, filepath.Join(input, "main.c"), "int main(void){return 0;}\n", 0o644)
	script := filepath.Join(root, "translate.sh")
	writeFile(t, script, translator, 0o755)

	cfg, err := config.LoadBytes("test.hcl", []byte(`
tool "translate_command" {
  command = ["`+script+`", source_dir, package_dir]
}
tool "try_cargo_build" {
  command = ["sh", "-c", `+buildCmd+`]
}
`))
	require.NoError(t, err)
	cfg.Input = input
	cfg.Output = filepath.Join(root, "out")
	cfg.DiagnosticsDir = filepath.Join(root, "diag")
	cfg.LogLevel = "off"
	return cfg
}

func TestTranspile(t *testing.T) {
	ctx, _ := testutil.Context(t)
	cfg := newConfig(t, `"echo '{\"reason\":\"compiler-artifact\",\"filenames\":[\"/bin/true\"],\"executable\":\"/bin/true\"}'"`)

	res, err := Transpile(ctx, cfg)
	require.NoError(t, err)

	kind, ok := res.Kind()
	require.True(t, ok)
	assert.Equal(t, projectkind.Executable, kind)

	build, ok := res.Build()
	require.True(t, ok)
	assert.True(t, build.Succeeded())
	assert.Equal(t, "/bin/true", build.Executable)

	assert.FileExists(t, filepath.Join(cfg.Output, "Cargo.toml"))
	assert.FileExists(t, filepath.Join(cfg.Output, "src", "main.rs"))
	assert.FileExists(t, filepath.Join(cfg.DiagnosticsDir, diagnostics.EventsFile))
	assert.NotEmpty(t, res.Diagnostics.Events)

	for _, o := range res.Outcomes {
		assert.Equal(t, node.Completed, o.State, o.Tool)
	}

	t.Run("refuses a non-empty output", func(t *testing.T) {
		_, err := Transpile(ctx, cfg)
		assert.ErrorIs(t, err, ErrOutputNotEmpty)

		force := *cfg
		force.Force = true
		_, err = Transpile(ctx, &force)
		assert.NoError(t, err)
	})
}

func TestTranspile_UnknownKindSkipsTheRest(t *testing.T) {
	ctx, _ := testutil.Context(t)
	cfg := newConfig(t, `"true"`)
	writeFile(t, filepath.Join(cfg.Input, "CMakeLists.txt"), "project(demo)\n", 0o644)

	res, err := Transpile(ctx, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, projectkind.ErrUnknownKind)

	var runErr *scheduler.RunError
	require.True(t, errors.As(err, &runErr))
	assert.Len(t, runErr.Failed, 1)
	assert.Len(t, runErr.Skipped, 2)

	_, ok := res.Source()
	assert.True(t, ok, "the loaded source is still available")
	_, ok = res.Package()
	assert.False(t, ok)
	assert.NoFileExists(t, filepath.Join(cfg.Output, "Cargo.toml"))
}

func TestTranspile_BuildFailureStillWritesPackage(t *testing.T) {
	ctx, _ := testutil.Context(t)
	cfg := newConfig(t, `"echo broken >&2; exit 101"`)

	res, err := Transpile(ctx, cfg)
	require.NoError(t, err)
	build, ok := res.Build()
	require.True(t, ok)
	assert.False(t, build.Succeeded())
	assert.Contains(t, build.Error, "broken")
	assert.FileExists(t, filepath.Join(cfg.Output, "Cargo.toml"))
}
