// Package translate drives a single C project through the pipeline:
// load the source, identify the project kind, translate it into a cargo
// package and check that the package builds. The newest cargo package is
// then written to the configured output directory.
package translate

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/harvest/internal/config"
	"github.com/specialistvlad/harvest/internal/ctxlog"
	"github.com/specialistvlad/harvest/internal/diagnostics"
	"github.com/specialistvlad/harvest/internal/fsutil"
	"github.com/specialistvlad/harvest/internal/ir"
	"github.com/specialistvlad/harvest/internal/runner"
	"github.com/specialistvlad/harvest/internal/scheduler"
	"github.com/specialistvlad/harvest/internal/source"
	"github.com/specialistvlad/harvest/internal/tools/loadsource"
	"github.com/specialistvlad/harvest/internal/tools/projectkind"
	"github.com/specialistvlad/harvest/internal/tools/translatecmd"
	"github.com/specialistvlad/harvest/internal/tools/trybuild"
)

// ErrOutputNotEmpty is returned when the output directory already has
// content and Force is not set.
var ErrOutputNotEmpty = errors.New("output directory is not empty (use force to overwrite)")

// Stages holds the ids of the queued pipeline stages.
type Stages struct {
	Load      ir.ID
	Kind      ir.ID
	Translate ir.ID
	Build     ir.ID
}

// Queue registers the translation pipeline for the project at input.
func Queue(s *scheduler.Scheduler, input string) Stages {
	var st Stages
	st.Load = s.Queue(loadsource.New(input))
	st.Kind = s.QueueAfter(projectkind.Tool{}, st.Load)
	st.Translate = s.QueueAfter(translatecmd.Tool{}, st.Load, st.Kind)
	st.Build = s.QueueAfter(trybuild.Tool{}, st.Translate, st.Kind)
	return st
}

// Result is everything a translation run produced. IR is nil when the
// pipeline was rejected before running.
type Result struct {
	IR          *ir.IR
	Stages      Stages
	Outcomes    []scheduler.Outcome
	Diagnostics diagnostics.Diagnostics
}

// Source returns the loaded C project.
func (r *Result) Source() (source.RawSource, bool) {
	return get[source.RawSource](r, r.Stages.Load)
}

// Kind returns the identified project kind.
func (r *Result) Kind() (projectkind.ProjectKind, bool) {
	return get[projectkind.ProjectKind](r, r.Stages.Kind)
}

// Package returns the newest cargo package in the IR.
func (r *Result) Package() (source.CargoPackage, bool) {
	if r == nil || r.IR == nil {
		return source.CargoPackage{}, false
	}
	e, ok := ir.Latest[source.CargoPackage](r.IR)
	return e.Value, ok
}

// Build returns the result of the build check.
func (r *Result) Build() (trybuild.BuildResult, bool) {
	return get[trybuild.BuildResult](r, r.Stages.Build)
}

func get[T ir.Representation](r *Result, id ir.ID) (T, bool) {
	if r == nil || r.IR == nil {
		var zero T
		return zero, false
	}
	return ir.Get[T](r.IR, id)
}

// Transpile runs the pipeline over cfg.Input and materializes the produced
// cargo package into cfg.Output. The returned Result is non-nil whenever
// the pipeline ran, even if err reports failed stages.
func Transpile(ctx context.Context, cfg *config.Config) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	empty, err := fsutil.IsEmptyDir(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("checking output directory: %w", err)
	}
	if !empty && !cfg.Force {
		return nil, fmt.Errorf("%s: %w", cfg.Output, ErrOutputNotEmpty)
	}

	collector, err := diagnostics.Initialize(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := collector.Close(); cerr != nil {
			logger.Warn("Failed to close diagnostics.", "error", cerr)
		}
	}()
	logger = logger.With("run_id", collector.RunID())
	ctx = ctxlog.WithLogger(ctx, logger)

	s := scheduler.New()
	res := &Result{Stages: Queue(s, cfg.Input)}
	logger.Info("Translating project.", "input", cfg.Input, "output", cfg.Output)

	store, runErr := s.RunAll(ctx, runner.New(collector.Reporter()), cfg)
	res.IR = store
	res.Outcomes = s.Outcomes()
	res.Diagnostics = collector.Diagnostics()
	if store == nil {
		return res, runErr
	}

	if pkg, ok := res.Package(); ok {
		if err := pkg.Materialize(cfg.Output); err != nil {
			return res, errors.Join(runErr, fmt.Errorf("writing cargo package to %s: %w", cfg.Output, err))
		}
		logger.Info("Cargo package written.", "output", cfg.Output, "files", pkg.Dir.Len())
	}
	if runErr != nil {
		logger.Error("Error during transpilation.", "error", runErr)
	}
	return res, runErr
}
