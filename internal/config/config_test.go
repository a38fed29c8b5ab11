package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const sampleConfig = `
input      = "/src/project"
output     = "/out/project"
workers    = 4
log_level  = "debug"

tool "try_cargo_build" {
  command = ["cargo", "build", "--release"]
  env     = { CARGO_TARGET_DIR = "${output}/target" }
}

benchmark {
  timeout  = "2s"
  parallel = 3

  upload {
    endpoint = "localhost:9000"
    bucket   = "harvest"
    prefix   = "runs"
  }
}
`

type buildSettings struct {
	Command []string          `hcl:"command,optional"`
	Env     map[string]string `hcl:"env,optional"`
	Retries int               `hcl:"retries,optional"`
}

func TestLoadBytes(t *testing.T) {
	cfg, err := LoadBytes("harvest.hcl", []byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "/src/project", cfg.Input)
	assert.Equal(t, "/out/project", cfg.Output)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat, "unset values keep their defaults")
	assert.Equal(t, 2*time.Second, cfg.Benchmark.Timeout)
	assert.Equal(t, 3, cfg.Benchmark.Parallel)
	require.NotNil(t, cfg.Benchmark.Upload)
	assert.Equal(t, "harvest", cfg.Benchmark.Upload.Bucket)
	assert.True(t, cfg.HasTool("try_cargo_build"))
	assert.NoError(t, cfg.Validate())
}

func TestDecodeTool(t *testing.T) {
	cfg, err := LoadBytes("harvest.hcl", []byte(sampleConfig))
	require.NoError(t, err)

	t.Run("configured tool", func(t *testing.T) {
		settings := buildSettings{Retries: 2}
		require.NoError(t, cfg.DecodeTool("try_cargo_build", &settings, nil))
		assert.Equal(t, []string{"cargo", "build", "--release"}, settings.Command)
		assert.Equal(t, "/out/project/target", settings.Env["CARGO_TARGET_DIR"])
		assert.Equal(t, 2, settings.Retries, "absent attributes keep preset defaults")
	})

	t.Run("unconfigured tool keeps defaults", func(t *testing.T) {
		settings := buildSettings{Command: []string{"make"}}
		require.NoError(t, cfg.DecodeTool("unknown", &settings, nil))
		assert.Equal(t, []string{"make"}, settings.Command)
	})

	t.Run("extra variables and env", func(t *testing.T) {
		t.Setenv("HARVEST_TEST_VALUE", "from-env")
		cfg, err := LoadBytes("x.hcl", []byte(`
tool "echo" {
  command = ["echo", kind, env.HARVEST_TEST_VALUE]
}
`))
		require.NoError(t, err)
		var settings buildSettings
		require.NoError(t, cfg.DecodeTool("echo", &settings, map[string]cty.Value{
			"kind": cty.StringVal("Executable"),
		}))
		assert.Equal(t, []string{"echo", "Executable", "from-env"}, settings.Command)
	})

	t.Run("decode errors are reported", func(t *testing.T) {
		cfg, err := LoadBytes("x.hcl", []byte(`
tool "bad" {
  unknown_attr = 1
}
`))
		require.NoError(t, err)
		var settings buildSettings
		assert.ErrorContains(t, cfg.DecodeTool("bad", &settings, nil), `decoding tool "bad" configuration`)
	})
}

func TestLoadBytes_Errors(t *testing.T) {
	_, err := LoadBytes("x.hcl", []byte(`input = `))
	assert.ErrorContains(t, err, "failed to parse HCL file")

	_, err = LoadBytes("x.hcl", []byte(`no_such_setting = true`))
	assert.ErrorContains(t, err, "failed to decode HCL file")

	_, err = LoadBytes("x.hcl", []byte("benchmark {\n  timeout = \"soon\"\n}\n"))
	assert.ErrorContains(t, err, "benchmark timeout")
}

func TestLoad_LayersFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.hcl")
	override := filepath.Join(dir, "local", "override.hcl")
	require.NoError(t, os.WriteFile(base, []byte("input = \"a\"\nworkers = 2\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(override), 0o755))
	require.NoError(t, os.WriteFile(override, []byte("workers = 8\n"), 0o644))

	cfg, err := Load(context.Background(), base, filepath.Join(dir, "local"), filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Equal(t, "a", cfg.Input)
	assert.Equal(t, 8, cfg.Workers)
}

func TestApplyAndValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "input is required")
	assert.ErrorContains(t, err, "output is required")

	in, out, workers, level := "/in", "/out", -1, "loud"
	cfg.Apply(Overrides{Input: &in, Output: &out, Workers: &workers, LogLevel: &level})
	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "workers must not be negative")
	assert.ErrorContains(t, err, `invalid log level "loud"`)

	workers, level = 0, "off"
	cfg.Apply(Overrides{Workers: &workers, LogLevel: &level})
	assert.NoError(t, cfg.Validate())
}

func TestWithIO(t *testing.T) {
	cfg, err := LoadBytes("harvest.hcl", []byte(sampleConfig))
	require.NoError(t, err)

	cp := cfg.WithIO("/other/in", "/other/out")
	assert.Equal(t, "/src/project", cfg.Input, "original untouched")
	assert.Equal(t, "/other/in", cp.Input)
	assert.True(t, cp.HasTool("try_cargo_build"))

	var settings buildSettings
	require.NoError(t, cp.DecodeTool("try_cargo_build", &settings, nil))
	assert.Equal(t, "/other/out/target", settings.Env["CARGO_TARGET_DIR"], "expressions see the new output")
}
