// Package trybuild checks whether a generated cargo package builds. The
// package is written to a scratch directory, its manifest is adjusted by the
// cargo package, and the build command runs with JSON message output.
package trybuild

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/harvest/internal/cargo"
	"github.com/specialistvlad/harvest/internal/command"
	"github.com/specialistvlad/harvest/internal/ctxlog"
	"github.com/specialistvlad/harvest/internal/ir"
	"github.com/specialistvlad/harvest/internal/source"
	"github.com/specialistvlad/harvest/internal/tool"
	"github.com/specialistvlad/harvest/internal/tools/projectkind"
)

// Name is the tool name used in diagnostics and configuration.
const Name = "try_cargo_build"

// DefaultCommand is used when the tool block sets no command.
var DefaultCommand = []string{"cargo", "build", "--release", "--message-format=json"}

// Settings is the decoded tool block.
type Settings struct {
	Command []string          `hcl:"command,optional"`
	Env     map[string]string `hcl:"env,optional"`
}

// BuildResult is the outcome of a build. A package that fails to compile
// still yields a BuildResult, with Error holding the compiler messages.
type BuildResult struct {
	ir.Intermediate
	// Dir is where the package was built.
	Dir string
	// Artifacts lists every file reported by compiler-artifact messages.
	Artifacts []string
	// Executable is the binary produced by the package, if any.
	Executable string
	Error      string
}

func (BuildResult) Name() string { return "cargo_build_result" }

// Succeeded reports whether the build passed.
func (b BuildResult) Succeeded() bool { return b.Error == "" }

// Tool takes a CargoPackage and, optionally, a ProjectKind. Library
// packages are built as cdylib.
type Tool struct{}

func (Tool) Name() string { return Name }

func (Tool) Run(ctx context.Context, rc *tool.RunContext, inputs []ir.ID) (ir.Representation, error) {
	logger := rc.Logger(ctxlog.FromContext(ctx))

	pkg, err := tool.Input[source.CargoPackage](rc, inputs, 0)
	if err != nil {
		return nil, err
	}
	var kind projectkind.ProjectKind
	if len(inputs) > 1 {
		if kind, err = tool.Input[projectkind.ProjectKind](rc, inputs, 1); err != nil {
			return nil, err
		}
	}

	settings := Settings{Command: DefaultCommand}
	if err := rc.Config.DecodeTool(Name, &settings, nil); err != nil {
		return nil, err
	}

	scratch, err := rc.TempDir()
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	// The directory name becomes the package name, so artifacts are named
	// after the output.
	base := "package"
	if rc.Config.Output != "" {
		base = filepath.Base(filepath.Clean(rc.Config.Output))
	}
	projectDir := filepath.Join(scratch, base)
	if err := pkg.Materialize(projectDir); err != nil {
		return nil, fmt.Errorf("materializing package: %w", err)
	}

	manifest := filepath.Join(projectDir, cargo.ManifestName)
	if err := cargo.AddWorkspaceGuard(manifest); err != nil {
		return nil, err
	}
	if err := cargo.NormalizePackageName(manifest, projectDir); err != nil {
		return nil, err
	}
	if kind == projectkind.Library {
		if err := cargo.EnsureCdylib(manifest); err != nil {
			return nil, err
		}
	}

	logger.Info("Validating that the generated Rust project builds.", "dir", projectDir)
	res, err := command.Run(ctx, command.Spec{Argv: settings.Command, Dir: projectDir, Env: settings.Env})
	if err != nil {
		return nil, err
	}

	msgs, err := parseMessages(res.Stdout)
	if err != nil {
		return nil, err
	}
	out := BuildResult{Dir: projectDir}
	if !res.Success() {
		out.Error = strings.TrimSpace(strings.Join(msgs.compiler, "\n") + "\n" + string(res.Stderr))
		if out.Error == "" {
			out.Error = fmt.Sprintf("build exited with code %d", res.ExitCode)
		}
		logger.Warn("Project does not build.", "exit_code", res.ExitCode)
		return out, nil
	}
	out.Artifacts = msgs.artifacts
	out.Executable = msgs.executable
	logger.Info("Project builds successfully.", "artifacts", len(out.Artifacts))
	return out, nil
}

// message is the subset of cargo's JSON messages that is used.
type message struct {
	Reason     string   `json:"reason"`
	Filenames  []string `json:"filenames"`
	Executable *string  `json:"executable"`
	Message    struct {
		Rendered string `json:"rendered"`
	} `json:"message"`
}

type messages struct {
	artifacts  []string
	executable string
	compiler   []string
}

// parseMessages reads one JSON object per line. Lines that are not JSON
// objects, such as plain build script output, are ignored.
func parseMessages(stdout []byte) (messages, error) {
	var out messages
	sc := bufio.NewScanner(bytes.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var m message
		if err := json.Unmarshal(line, &m); err != nil {
			continue
		}
		switch m.Reason {
		case "compiler-artifact":
			out.artifacts = append(out.artifacts, m.Filenames...)
			if m.Executable != nil && *m.Executable != "" {
				out.executable = *m.Executable
			}
		case "compiler-message":
			if m.Message.Rendered != "" {
				out.compiler = append(out.compiler, "Compiler Message: "+strings.TrimRight(m.Message.Rendered, "\n"))
			}
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("reading build output: %w", err)
	}
	return out, nil
}
