// Package projectkind decides whether a C project builds an executable or a
// library by reading its CMakeLists.txt.
package projectkind

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/harvest/internal/ctxlog"
	"github.com/specialistvlad/harvest/internal/ir"
	"github.com/specialistvlad/harvest/internal/source"
	"github.com/specialistvlad/harvest/internal/tool"
)

// Name is the tool name used in diagnostics and configuration.
const Name = "identify_project_kind"

// ErrUnknownKind is returned when CMakeLists.txt is missing or declares
// neither an executable nor a library.
var ErrUnknownKind = errors.New("could not identify project kind from CMakeLists.txt (or could not find it)")

// ProjectKind is the kind of artifact the project builds.
type ProjectKind string

const (
	Library    ProjectKind = "Library"
	Executable ProjectKind = "Executable"
)

func (ProjectKind) Name() string { return "project_kind" }

func (ProjectKind) Materialize(string) error { return nil }

func (k ProjectKind) String() string { return string(k) }

// Tool takes a single RawSource input.
type Tool struct{}

func (Tool) Name() string { return Name }

func (Tool) Run(ctx context.Context, rc *tool.RunContext, inputs []ir.ID) (ir.Representation, error) {
	raw, err := tool.Input[source.RawSource](rc, inputs, 0)
	if err != nil {
		return nil, err
	}
	kind, err := Identify(raw)
	if err != nil {
		return nil, err
	}
	rc.Logger(ctxlog.FromContext(ctx)).Info("Identified project kind.", "kind", kind)
	return kind, nil
}

// Identify inspects the top-level CMakeLists.txt of raw. An add_executable(
// line wins over add_library(.
func Identify(raw source.RawSource) (ProjectKind, error) {
	data, ok := raw.Dir.File("CMakeLists.txt")
	if !ok {
		return "", ErrUnknownKind
	}

	var hasExecutable, hasLibrary bool
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for sc.Scan() {
		line := strings.TrimLeft(sc.Text(), " \t")
		switch {
		case strings.HasPrefix(line, "add_executable("):
			hasExecutable = true
		case strings.HasPrefix(line, "add_library("):
			hasLibrary = true
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("reading CMakeLists.txt: %w", err)
	}
	switch {
	case hasExecutable:
		return Executable, nil
	case hasLibrary:
		return Library, nil
	default:
		return "", ErrUnknownKind
	}
}
