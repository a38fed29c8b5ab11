package trybuild

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/specialistvlad/harvest/internal/cargo"
	"github.com/specialistvlad/harvest/internal/config"
	"github.com/specialistvlad/harvest/internal/fsutil"
	"github.com/specialistvlad/harvest/internal/ir"
	"github.com/specialistvlad/harvest/internal/source"
	"github.com/specialistvlad/harvest/internal/tool"
	"github.com/specialistvlad/harvest/internal/tools/projectkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cargoOutput = `{"reason":"compiler-message","message":{"rendered":"warning: unused variable\n"}}
   Compiling demo v0.1.0
{"reason":"compiler-artifact","filenames":["/t/release/libdemo.rlib"],"executable":null}
{"reason":"compiler-artifact","filenames":["/t/release/demo"],"executable":"/t/release/demo"}
{"reason":"build-finished","success":true}
`

func TestParseMessages(t *testing.T) {
	got, err := parseMessages([]byte(cargoOutput))
	require.NoError(t, err)
	assert.Equal(t, []string{"/t/release/libdemo.rlib", "/t/release/demo"}, got.artifacts)
	assert.Equal(t, "/t/release/demo", got.executable)
	assert.Equal(t, []string{"Compiler Message: warning: unused variable"}, got.compiler)
}

func setup(t *testing.T, hcl string, kind projectkind.ProjectKind) (*tool.RunContext, []ir.ID) {
	t.Helper()
	cfg, err := config.LoadBytes("test.hcl", []byte(hcl))
	require.NoError(t, err)
	cfg.Output = filepath.Join(t.TempDir(), "my-output")

	dir := fsutil.NewRawDir()
	require.NoError(t, dir.Put("Cargo.toml", []byte("[package]\nname = \"generated\"\nversion = \"0.1.0\"\n")))
	require.NoError(t, dir.Put("src/main.rs", []byte("fn main() {}\n")))

	store := ir.New()
	store.Insert(1, source.CargoPackage{Dir: dir})
	inputs := []ir.ID{1}
	if kind != "" {
		store.Insert(2, kind)
		inputs = append(inputs, 2)
	}
	return &tool.RunContext{IR: store.Snapshot(inputs...), Config: cfg}, inputs
}

func fakeCargo(t *testing.T, stdout string, exit int) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out.jsonl")
	require.NoError(t, os.WriteFile(out, []byte(stdout), 0o644))
	return `tool "try_cargo_build" {
  command = ["sh", "-c", "cat '` + out + `'; echo 'error: could not compile' >&2; exit ` + strconv.Itoa(exit) + `"]
}
`
}

func TestRun_Success(t *testing.T) {
	rc, inputs := setup(t, fakeCargo(t, cargoOutput, 0), "")
	rep, err := Tool{}.Run(context.Background(), rc, inputs)
	require.NoError(t, err)

	res, ok := rep.(BuildResult)
	require.True(t, ok)
	assert.True(t, res.Succeeded())
	assert.Equal(t, "/t/release/demo", res.Executable)
	assert.Len(t, res.Artifacts, 2)
	assert.Equal(t, "my-output", filepath.Base(res.Dir))

	m, err := cargo.ReadManifest(filepath.Join(res.Dir, cargo.ManifestName))
	require.NoError(t, err)
	name, _ := m.PackageName()
	assert.Equal(t, "my-output", name, "package renamed after the output directory")
	_, hasWorkspace := m.Table("workspace")
	assert.True(t, hasWorkspace)
	_, hasLib := m.Table("lib")
	assert.False(t, hasLib, "executables are not turned into libraries")
}

func TestRun_LibraryGetsCdylib(t *testing.T) {
	rc, inputs := setup(t, fakeCargo(t, "", 0), projectkind.Library)
	rep, err := Tool{}.Run(context.Background(), rc, inputs)
	require.NoError(t, err)

	m, err := cargo.ReadManifest(filepath.Join(rep.(BuildResult).Dir, cargo.ManifestName))
	require.NoError(t, err)
	lib, ok := m.Table("lib")
	require.True(t, ok)
	assert.Equal(t, []any{"cdylib"}, lib["crate-type"])
}

func TestRun_BuildFailureIsAResult(t *testing.T) {
	rc, inputs := setup(t, fakeCargo(t, `{"reason":"compiler-message","message":{"rendered":"error[E0425]: cannot find value"}}`+"\n", 1), "")
	rep, err := Tool{}.Run(context.Background(), rc, inputs)
	require.NoError(t, err, "a failed build is not a stage failure")

	res := rep.(BuildResult)
	assert.False(t, res.Succeeded())
	assert.Contains(t, res.Error, "Compiler Message: error[E0425]")
	assert.Contains(t, res.Error, "error: could not compile")
	assert.Empty(t, res.Artifacts)
}

func TestRun_CommandMissing(t *testing.T) {
	rc, inputs := setup(t, `tool "try_cargo_build" {
  command = ["/no/such/cargo"]
}
`, "")
	_, err := Tool{}.Run(context.Background(), rc, inputs)
	assert.Error(t, err)
}
