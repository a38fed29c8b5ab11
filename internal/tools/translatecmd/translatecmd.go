// Package translatecmd delegates the C to Rust translation to an external
// program and loads the cargo package it writes.
//
// The program is configured in HCL:
//
//	tool "translate_command" {
//	  command = ["c2rust-driver", "--kind", kind, source_dir, package_dir]
//	  env     = { RUST_LOG = "info" }
//	}
//
// Besides input, output and env, expressions can use source_dir (the
// materialized RawSource), package_dir (where the program must write the
// package) and kind (Executable or Library).
package translatecmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/specialistvlad/harvest/internal/cargo"
	"github.com/specialistvlad/harvest/internal/command"
	"github.com/specialistvlad/harvest/internal/ctxlog"
	"github.com/specialistvlad/harvest/internal/fsutil"
	"github.com/specialistvlad/harvest/internal/ir"
	"github.com/specialistvlad/harvest/internal/source"
	"github.com/specialistvlad/harvest/internal/tool"
	"github.com/specialistvlad/harvest/internal/tools/projectkind"
	"github.com/zclconf/go-cty/cty"
)

// Name is the tool name used in diagnostics and configuration.
const Name = "translate_command"

// ErrNotConfigured is returned when no command is configured.
var ErrNotConfigured = errors.New(`no translation command configured, add a tool "translate_command" block with a command`)

// Settings is the decoded tool block.
type Settings struct {
	Command []string          `hcl:"command,optional"`
	Env     map[string]string `hcl:"env,optional"`
}

// Tool takes a RawSource and a ProjectKind, in that order.
type Tool struct{}

func (Tool) Name() string { return Name }

func (Tool) Run(ctx context.Context, rc *tool.RunContext, inputs []ir.ID) (ir.Representation, error) {
	logger := rc.Logger(ctxlog.FromContext(ctx))

	raw, err := tool.Input[source.RawSource](rc, inputs, 0)
	if err != nil {
		return nil, err
	}
	kind, err := tool.Input[projectkind.ProjectKind](rc, inputs, 1)
	if err != nil {
		return nil, err
	}

	scratch, err := rc.TempDir()
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	srcDir := filepath.Join(scratch, "c_src")
	pkgDir := filepath.Join(scratch, "cargo_package")
	if err := raw.Materialize(srcDir); err != nil {
		return nil, fmt.Errorf("materializing source: %w", err)
	}
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return nil, err
	}

	var settings Settings
	if err := rc.Config.DecodeTool(Name, &settings, map[string]cty.Value{
		"source_dir":  cty.StringVal(srcDir),
		"package_dir": cty.StringVal(pkgDir),
		"kind":        cty.StringVal(kind.String()),
	}); err != nil {
		return nil, err
	}
	if len(settings.Command) == 0 {
		return nil, ErrNotConfigured
	}

	logger.Info("Running translation command.", "command", settings.Command[0], "kind", kind)
	res, err := command.Run(ctx, command.Spec{Argv: settings.Command, Dir: scratch, Env: settings.Env})
	if err != nil {
		return nil, err
	}
	if err := saveLogs(scratch, res); err != nil {
		logger.Warn("Failed to save translation command output.", "error", err)
	}
	if !res.Success() {
		return nil, fmt.Errorf("translation command exited with code %d: %s", res.ExitCode, tail(res.Stderr, 2048))
	}

	if _, err := os.Stat(filepath.Join(pkgDir, cargo.ManifestName)); err != nil {
		return nil, fmt.Errorf("translation command did not produce %s in package_dir: %w", cargo.ManifestName, err)
	}
	dir, dirs, files, err := fsutil.Load(pkgDir)
	if err != nil {
		return nil, fmt.Errorf("loading generated package: %w", err)
	}
	logger.Info("Loaded generated cargo package.", "directories", dirs, "files", files)
	return source.CargoPackage{Dir: dir}, nil
}

func saveLogs(dir string, res command.Result) error {
	if err := os.WriteFile(filepath.Join(dir, "stdout.log"), res.Stdout, 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "stderr.log"), res.Stderr, 0o644)
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
