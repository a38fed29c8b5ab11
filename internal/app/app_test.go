package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/harvest/internal/benchmark"
	"github.com/specialistvlad/harvest/internal/config"
	"github.com/specialistvlad/harvest/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const translator = `#!/bin/sh
set -e
mkdir -p "$2/src"
printf '[package]\nname = "x"\nversion = "0.1.0"\n' > "$2/Cargo.toml"
printf 'fn main() {}\n' > "$2/src/main.rs"
printf '#!/bin/sh\ncat\n' > "$2/run.sh"
`

const build = `#!/bin/sh
chmod +x run.sh
printf '{"reason":"compiler-artifact","filenames":["%s/run.sh"],"executable":"%s/run.sh"}\n' "$PWD" "$PWD"
`

func writeFile(t *testing.T, path, body string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), mode))
}

// setup writes a config file wiring fake translate and build commands and
// returns its path and the root of the temporary tree.
func setup(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "translate.sh"), translator, 0o755)
	writeFile(t, filepath.Join(root, "build.sh"), build, 0o755)
	cfgPath := filepath.Join(root, "harvest.hcl")
	writeFile(t, cfgPath, fmt.Sprintf(`
log_level = "off"
workers   = 2

tool "translate_command" {
  command = [%q, source_dir, package_dir]
}
tool "try_cargo_build" {
  command = ["sh", %q]
}
`, filepath.Join(root, "translate.sh"), filepath.Join(root, "build.sh")), 0o644)
	return cfgPath, root
}

func writeProject(t *testing.T, dir string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "CMakeLists.txt"), "add_executable(echo src/main.c)\n", 0o644)
	writeFile(t, filepath.Join(dir, "src", "main.c"), "int main(void){return 0;}\n", 0o644)
}

func ptr[T any](v T) *T { return &v }

func TestNewApp_FlagsOverrideFiles(t *testing.T) {
	ctx, _ := testutil.Context(t)
	cfgPath, root := setup(t)

	opts, err := NewOptions(Options{
		ConfigPaths: []string{cfgPath},
		Overrides: config.Overrides{
			Input:   ptr(filepath.Join(root, "in")),
			Output:  ptr(filepath.Join(root, "out")),
			Workers: ptr(6),
		},
	})
	require.NoError(t, err)

	a, err := NewApp(ctx, &bytes.Buffer{}, opts)
	require.NoError(t, err)
	assert.Equal(t, 6, a.Config().Workers)
	assert.Equal(t, "off", a.Config().LogLevel)
	assert.True(t, a.Config().HasTool("translate_command"))
}

func TestNewApp_Errors(t *testing.T) {
	ctx, _ := testutil.Context(t)
	cfgPath, _ := setup(t)

	_, err := NewApp(ctx, &bytes.Buffer{}, &Options{ConfigPaths: []string{cfgPath}})
	assert.ErrorContains(t, err, "input is required")

	bad := filepath.Join(t.TempDir(), "bad.hcl")
	writeFile(t, bad, "input = \n", 0o644)
	_, err = NewApp(ctx, &bytes.Buffer{}, &Options{ConfigPaths: []string{bad}})
	assert.ErrorContains(t, err, "failed to load configuration")
}

func TestNewOptions(t *testing.T) {
	_, err := NewOptions(Options{})
	assert.Error(t, err)

	_, err = NewOptions(Options{ConfigPaths: []string{"x"}, HealthcheckPort: 70000})
	assert.ErrorContains(t, err, "healthcheck port")

	opts, err := NewOptions(Options{Overrides: config.Overrides{Input: ptr("in")}})
	require.NoError(t, err)
	assert.Equal(t, "in", *opts.Overrides.Input)
}

func TestRunTranslate(t *testing.T) {
	ctx, _ := testutil.Context(t)
	cfgPath, root := setup(t)
	writeProject(t, filepath.Join(root, "project"))

	a, err := NewApp(ctx, &bytes.Buffer{}, &Options{
		ConfigPaths: []string{cfgPath},
		Overrides: config.Overrides{
			Input:          ptr(filepath.Join(root, "project")),
			Output:         ptr(filepath.Join(root, "out")),
			DiagnosticsDir: ptr(filepath.Join(root, "diag")),
		},
	})
	require.NoError(t, err)

	require.NoError(t, a.RunTranslate(ctx))
	assert.FileExists(t, filepath.Join(root, "out", "Cargo.toml"))

	err = a.RunTranslate(ctx)
	assert.ErrorContains(t, err, "output directory is not empty")
}

func TestRunBenchmark(t *testing.T) {
	ctx, _ := testutil.Context(t)
	cfgPath, root := setup(t)
	program := filepath.Join(root, "corpus", "echo")
	writeProject(t, program)
	writeFile(t, filepath.Join(program, "test_vectors", "1.json"), `{"argv":[],"stdin":"hi","stdout":"hi","rc":0}`, 0o644)

	out := &bytes.Buffer{}
	a, err := NewApp(ctx, out, &Options{
		ConfigPaths: []string{cfgPath},
		Overrides: config.Overrides{
			Input:  ptr(filepath.Join(root, "corpus")),
			Output: ptr(filepath.Join(root, "results")),
		},
	})
	require.NoError(t, err)

	summary, err := a.RunBenchmark(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FullyPassing)
	assert.Contains(t, out.String(), "Tests: 1/1 passed (100.0%)")
}

func TestRunBenchmark_TeesLogToOutput(t *testing.T) {
	ctx, _ := testutil.Context(t)
	cfgPath, root := setup(t)
	program := filepath.Join(root, "corpus", "echo")
	writeProject(t, program)
	writeFile(t, filepath.Join(program, "test_vectors", "1.json"), `{"argv":[],"stdin":"hi","stdout":"hi","rc":0}`, 0o644)

	out := &bytes.Buffer{}
	a, err := NewApp(ctx, out, &Options{
		ConfigPaths: []string{cfgPath},
		Overrides: config.Overrides{
			Input:    ptr(filepath.Join(root, "corpus")),
			Output:   ptr(filepath.Join(root, "results")),
			LogLevel: ptr("info"),
		},
	})
	require.NoError(t, err)
	before := a.Logger()

	_, err = a.RunBenchmark(ctx)
	require.NoError(t, err)

	logged, err := os.ReadFile(filepath.Join(root, "results", benchmark.LogFile))
	require.NoError(t, err)
	assert.Contains(t, string(logged), "Starting benchmark.")
	assert.Contains(t, string(logged), "Tests: 1/1 passed (100.0%)")
	assert.Contains(t, out.String(), "Starting benchmark.", "the log still reaches the app writer")
	assert.Same(t, before, a.Logger(), "the app logger is restored")
}

func TestHealthHandler(t *testing.T) {
	ctx, _ := testutil.Context(t)
	a, err := NewApp(ctx, &bytes.Buffer{}, &Options{Overrides: config.Overrides{Input: ptr("in"), Output: ptr("out")}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, healthResponse{Status: "OK"}, body)
}

func TestHealthcheckServer(t *testing.T) {
	ctx, _ := testutil.Context(t)
	a, err := NewApp(ctx, &bytes.Buffer{}, &Options{Overrides: config.Overrides{Input: ptr("in"), Output: ptr("out")}})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	require.NoError(t, a.startHealthcheckServer(ctx, port))
	t.Cleanup(func() { _ = a.closeHealthcheckServer(context.Background()) })

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, a.closeHealthcheckServer(ctx))
	assert.Nil(t, a.httpServer)
	assert.NoError(t, a.closeHealthcheckServer(ctx), "closing twice is a no-op")
}
