// Package runner wraps the execution of a single tool: it builds the run
// context, invokes the tool, turns errors and panics into a Result, and
// forwards the outcome to the diagnostics reporter.
package runner

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/specialistvlad/harvest/internal/config"
	"github.com/specialistvlad/harvest/internal/ctxlog"
	"github.com/specialistvlad/harvest/internal/diagnostics"
	"github.com/specialistvlad/harvest/internal/ir"
	"github.com/specialistvlad/harvest/internal/tool"
)

var (
	// ErrPanicked wraps the value recovered from a panicking tool.
	ErrPanicked = errors.New("tool panicked")
	// ErrNoRepresentation is returned when a tool returns neither a
	// representation nor an error. A nil pointer, map or func counts as no
	// representation.
	ErrNoRepresentation = errors.New("tool returned no representation")
)

// Job is one dispatched node.
type Job struct {
	ID       ir.ID
	Tool     tool.Tool
	Inputs   []ir.ID
	Snapshot *ir.Snapshot
	Config   *config.Config
}

// Result is the outcome of running a Job. Exactly one of Representation and
// Err is set.
type Result struct {
	ID             ir.ID
	Tool           string
	Representation ir.Representation
	// Produced is Representation.Name(), resolved while the tool's panics
	// were still being recovered.
	Produced string
	Err      error
	Duration time.Duration
}

// Runner executes jobs. It is safe for concurrent use.
type Runner struct {
	reporter *diagnostics.Reporter
}

// New returns a Runner that reports to reporter. A nil reporter disables
// diagnostics; tools then receive a RunContext without a Reporter.
func New(reporter *diagnostics.Reporter) *Runner {
	return &Runner{reporter: reporter}
}

// Run executes job and never panics because of the tool.
func (r *Runner) Run(ctx context.Context, job Job) (res Result) {
	name := job.Tool.Name()
	logger := ctxlog.FromContext(ctx).With("nodeID", job.ID, "tool", name)
	res = Result{ID: job.ID, Tool: name}

	rc := &tool.RunContext{IR: job.Snapshot, Config: job.Config}
	var tr *diagnostics.ToolReporter
	if r.reporter != nil {
		var err error
		tr, err = r.reporter.StartToolRun(name, job.ID, job.Inputs)
		if err != nil {
			res.Err = fmt.Errorf("starting diagnostics for %s: %w", name, err)
			logger.Error("Tool run could not start.", "error", res.Err)
			return res
		}
		rc.Reporter = tr
		ctx = ctxlog.WithLogger(ctx, tr.Logger())
	}

	logger.Debug("Tool run started.", "inputs", job.Inputs)
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		if rec := recover(); rec != nil {
			res.Representation = nil
			res.Produced = ""
			res.Err = fmt.Errorf("%w: %v", ErrPanicked, rec)
			logger.Error("Tool run panicked.", "panic", rec)
			logger.Debug("Panic stack.", "stack", string(debug.Stack()))
		}
		r.finish(tr, &res)
		if res.Err != nil {
			if !errors.Is(res.Err, ErrPanicked) {
				logger.Error("Tool run failed.", "error", res.Err, "duration", res.Duration)
			}
			return
		}
		logger.Info("Tool run succeeded.", "produced", res.Produced, "duration", res.Duration)
	}()

	rep, err := job.Tool.Run(ctx, rc, job.Inputs)
	switch {
	case err != nil:
		res.Err = err
	case isNil(rep):
		res.Err = fmt.Errorf("%s: %w", name, ErrNoRepresentation)
	default:
		res.Produced = rep.Name()
		res.Representation = rep
	}
	return res
}

func isNil(rep ir.Representation) bool {
	if rep == nil {
		return true
	}
	v := reflect.ValueOf(rep)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func (r *Runner) finish(tr *diagnostics.ToolReporter, res *Result) {
	if tr == nil {
		return
	}
	tr.Finish(res.Produced, res.Err)
}

// Commit stores the representation of a successful res and reports the
// resulting IR version.
func (r *Runner) Commit(ctx context.Context, store *ir.IR, res Result) {
	store.Insert(res.ID, res.Representation)
	version, entries := store.Version(), store.Len()
	ctxlog.FromContext(ctx).Debug("IR updated.", "nodeID", res.ID, "produced", res.Produced, "version", version)
	if r.reporter != nil {
		r.reporter.ReportIRVersion(version, entries, res.ID, res.Produced)
	}
}
