package testutil

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"

	"github.com/specialistvlad/harvest/internal/ir"
	"github.com/specialistvlad/harvest/internal/tool"
)

// MockRepresentation is produced by MockTool unless told otherwise. It records
// which tool produced it and from which inputs.
type MockRepresentation struct {
	Producer string
	Inputs   []ir.ID
}

func (MockRepresentation) Name() string { return "MockRepresentation" }

// Materialize writes the producer name to <dir>/<producer>.txt.
func (m MockRepresentation) Materialize(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, m.Producer+".txt"), []byte(m.Producer+"\n"), 0o644)
}

// RunFunc is the body of a MockTool.
type RunFunc func(ctx context.Context, rc *tool.RunContext, inputs []ir.ID) (ir.Representation, error)

// MockTool is a configurable tool.Tool. Configure it with the builder methods
// before handing it to a scheduler.
type MockTool struct {
	name  string
	run   RunFunc
	calls atomic.Int32
	seen  atomic.Pointer[[]ir.ID]
}

var _ tool.Tool = (*MockTool)(nil)

// NewMockTool returns a tool that succeeds with a MockRepresentation.
func NewMockTool(name string) *MockTool {
	m := &MockTool{name: name}
	m.run = func(_ context.Context, _ *tool.RunContext, inputs []ir.ID) (ir.Representation, error) {
		return MockRepresentation{Producer: name, Inputs: slices.Clone(inputs)}, nil
	}
	return m
}

// Returns makes the tool succeed with rep.
func (m *MockTool) Returns(rep ir.Representation) *MockTool {
	m.run = func(context.Context, *tool.RunContext, []ir.ID) (ir.Representation, error) {
		return rep, nil
	}
	return m
}

// Fails makes the tool return err.
func (m *MockTool) Fails(err error) *MockTool {
	m.run = func(context.Context, *tool.RunContext, []ir.ID) (ir.Representation, error) {
		return nil, err
	}
	return m
}

// Panics makes the tool panic with v.
func (m *MockTool) Panics(v any) *MockTool {
	m.run = func(context.Context, *tool.RunContext, []ir.ID) (ir.Representation, error) {
		panic(v)
	}
	return m
}

// Do replaces the tool body.
func (m *MockTool) Do(fn RunFunc) *MockTool {
	m.run = fn
	return m
}

func (m *MockTool) Name() string { return m.name }

// Run records the call and delegates to the configured body.
func (m *MockTool) Run(ctx context.Context, rc *tool.RunContext, inputs []ir.ID) (ir.Representation, error) {
	m.calls.Add(1)
	in := slices.Clone(inputs)
	m.seen.Store(&in)
	return m.run(ctx, rc, inputs)
}

// Calls returns how many times Run was invoked.
func (m *MockTool) Calls() int {
	return int(m.calls.Load())
}

// Inputs returns the inputs of the last call, or nil.
func (m *MockTool) Inputs() []ir.ID {
	if p := m.seen.Load(); p != nil {
		return *p
	}
	return nil
}
