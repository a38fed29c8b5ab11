// Package tool defines the contract every pipeline stage satisfies.
//
// A Tool is registered with the scheduler together with the ids of the
// representations it consumes. When all of those are available the scheduler
// hands the tool to a worker exactly once. The tool reads its inputs from the
// RunContext snapshot, which holds only the ids it declared, and returns a
// freshly constructed ir.Representation. Side effects outside the IR belong in
// Representation.Materialize, which drivers call explicitly.
package tool

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/specialistvlad/harvest/internal/config"
	"github.com/specialistvlad/harvest/internal/diagnostics"
	"github.com/specialistvlad/harvest/internal/ir"
)

// Tool is a single pipeline stage.
type Tool interface {
	// Name is stable and unique within a pipeline. It names diagnostics
	// directories, so it should be a plain identifier.
	Name() string
	// Run is called at most once. inputs are the dependency ids in the order
	// they were declared.
	Run(ctx context.Context, rc *RunContext, inputs []ir.ID) (ir.Representation, error)
}

// RunContext is everything a tool may use while running.
type RunContext struct {
	// IR holds the representations of the declared dependencies only.
	IR *ir.Snapshot
	// Config is shared by every tool and must not be modified.
	Config *config.Config
	// Reporter gives access to the invocation's scratch space. It is nil when
	// the runner has no diagnostics collector.
	Reporter *diagnostics.ToolReporter
}

// Logger returns the invocation logger when a reporter is attached and
// fallback otherwise.
func (rc *RunContext) Logger(fallback *slog.Logger) *slog.Logger {
	if rc == nil || rc.Reporter == nil {
		return fallback
	}
	return rc.Reporter.Logger()
}

// TempDir returns a fresh scratch directory, inside the invocation's
// diagnostics directory when a reporter is attached.
func (rc *RunContext) TempDir() (string, error) {
	if rc != nil && rc.Reporter != nil {
		return rc.Reporter.TempDir()
	}
	return os.MkdirTemp("", "harvest-tool-*")
}

// Input fetches inputs[i] from the snapshot as a T. It produces the
// descriptive error that ir.Get deliberately leaves to callers.
func Input[T ir.Representation](rc *RunContext, inputs []ir.ID, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(inputs) {
		return zero, fmt.Errorf("expected at least %d inputs, got %d", i+1, len(inputs))
	}
	v, ok := ir.Get[T](rc.IR, inputs[i])
	if !ok {
		return zero, fmt.Errorf("input %d (%s) is not a %T", i, inputs[i], zero)
	}
	return v, nil
}
