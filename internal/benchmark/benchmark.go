// Package benchmark evaluates the translation pipeline against a corpus of
// C programs. Each program directory carries its sources under src/ and
// recorded runs under test_vectors/. A program is transpiled and built, and
// the resulting executable is checked against every recorded run.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/harvest/internal/config"
	"github.com/specialistvlad/harvest/internal/ctxlog"
	"github.com/specialistvlad/harvest/internal/tools/projectkind"
	"github.com/specialistvlad/harvest/internal/translate"
	"golang.org/x/sync/errgroup"
)

// Names of the per-program output subdirectories.
const (
	PackageDirName = "cargo_package"
	CSourceDirName = "c_src"
	DiagnosticsDir = "diagnostics"
)

// LibrarySuffix marks library programs in a benchmark corpus.
const LibrarySuffix = "_lib"

// ErrNoPrograms is returned when the input contains no benchmark program.
var ErrNoPrograms = errors.New("no benchmark programs found")

// errLibraryUnsupported is recorded for library programs, whose test vectors
// need a harness that calls into the built library.
var errLibraryUnsupported = errors.New("library validation is not supported")

// Options tune a benchmark run beyond what Config holds.
type Options struct {
	// NoLib skips programs whose directory name ends in LibrarySuffix.
	NoLib bool
	// Progress, when set, is updated as programs finish.
	Progress *Progress
	// Store overrides the object store built from the upload config.
	Store ObjectStore
}

// Run benchmarks every program under cfg.Input and writes per-program
// outputs, results and a summary under cfg.Output. Failures of individual
// programs are recorded in the summary; the returned error reports only
// problems with the run as a whole.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Summary, error) {
	runID := uuid.New().String()
	logger := ctxlog.FromContext(ctx).With("benchmark_run", runID)
	ctx = ctxlog.WithLogger(ctx, logger)

	programs, err := Discover(cfg.Input, opts.NoLib)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	if opts.Progress != nil {
		opts.Progress.start(len(programs))
	}

	logger.Info("🚀 Starting benchmark.", "programs", len(programs), "parallel", cfg.Benchmark.Parallel, "timeout", cfg.Benchmark.Timeout)

	results := make([]ProgramResult, len(programs))
	var g errgroup.Group
	g.SetLimit(max(cfg.Benchmark.Parallel, 1))
	for i, dir := range programs {
		g.Go(func() error {
			results[i] = benchmarkProgram(ctx, cfg, dir)
			if opts.Progress != nil {
				opts.Progress.finish(results[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(runID, results)
	if err := writeOutputs(cfg.Output, summary); err != nil {
		return summary, err
	}
	logger.Info("🏁 Benchmark finished.",
		"programs", summary.Programs,
		"translated", summary.TranslationSuccesses,
		"built", summary.BuildSuccesses,
		"fully_passing", summary.FullyPassing,
		"pass_rate", fmt.Sprintf("%.1f%%", summary.PassRate()),
	)

	if u := cfg.Benchmark.Upload; u != nil || opts.Store != nil {
		store := opts.Store
		prefix := runID
		if u != nil {
			prefix = path.Join(u.Prefix, runID)
		}
		if store == nil {
			if store, err = NewMinioStore(u); err != nil {
				return summary, err
			}
		}
		logger.Info("Uploading benchmark output.", "prefix", prefix)
		n, err := UploadTree(ctx, store, cfg.Output, prefix)
		if err != nil {
			return summary, fmt.Errorf("uploading benchmark output: %w", err)
		}
		logger.Info("Benchmark output uploaded.", "files", n)
	}
	return summary, nil
}

// Discover lists the program directories under input. When input is itself
// a program it is the only one. Hidden directories are ignored.
func Discover(input string, noLib bool) ([]string, error) {
	var programs []string
	if _, err := ParseBenchmarkDir(input); err == nil {
		programs = []string{input}
	} else {
		entries, err := os.ReadDir(input)
		if err != nil {
			return nil, fmt.Errorf("reading benchmark input: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			dir := filepath.Join(input, e.Name())
			if _, err := ParseBenchmarkDir(dir); err == nil {
				programs = append(programs, dir)
			}
		}
	}
	if noLib {
		programs = slices.DeleteFunc(programs, func(p string) bool {
			return strings.HasSuffix(filepath.Base(p), LibrarySuffix)
		})
	}
	if len(programs) == 0 {
		return nil, fmt.Errorf("%s: %w", input, ErrNoPrograms)
	}
	slices.Sort(programs)
	return programs, nil
}

func benchmarkProgram(ctx context.Context, cfg *config.Config, dir string) ProgramResult {
	name := filepath.Base(dir)
	logger := ctxlog.FromContext(ctx).With("program", name)
	ctx = ctxlog.WithLogger(ctx, logger)
	started := time.Now()
	result := ProgramResult{Program: name}

	vectorsDir, err := ParseBenchmarkDir(dir)
	if err != nil {
		result.Error = err.Error()
		return finish(logger, result, started)
	}
	cases, err := ParseTestVectors(vectorsDir)
	if err != nil {
		result.Error = err.Error()
		return finish(logger, result, started)
	}
	result.TotalTests = len(cases)

	outDir := filepath.Join(cfg.Output, name)
	pcfg := cfg.WithIO(dir, filepath.Join(outDir, PackageDirName))
	diagRoot := cfg.DiagnosticsDir
	if diagRoot == "" {
		diagRoot = filepath.Join(cfg.Output, DiagnosticsDir)
	}
	pcfg.DiagnosticsDir = filepath.Join(diagRoot, name)

	logger.Debug("Transpiling program.", "tests", len(cases))
	res, err := translate.Transpile(ctx, pcfg)
	if res != nil {
		if src, ok := res.Source(); ok {
			if merr := src.Materialize(filepath.Join(outDir, CSourceDirName)); merr != nil {
				logger.Warn("Failed to copy C sources.", "error", merr)
			}
		}
		if kind, ok := res.Kind(); ok {
			result.Kind = kind.String()
		}
		_, result.TranslationSuccess = res.Package()
	}
	if err != nil {
		result.Error = err.Error()
		return finish(logger, result, started)
	}

	build, ok := res.Build()
	result.BuildSuccess = ok && build.Succeeded()
	if !result.BuildSuccess {
		result.Error = "build failed: " + build.Error
		return finish(logger, result, started)
	}

	if result.Kind == projectkind.Library.String() || strings.HasSuffix(name, LibrarySuffix) {
		result.Error = errLibraryUnsupported.Error()
		return finish(logger, result, started)
	}

	// Other artifacts are dependency rlibs or dep-info files, never the program.
	binary := build.Executable
	if binary == "" {
		result.Error = "build produced no executable"
		return finish(logger, result, started)
	}

	for _, tc := range cases {
		tr := TestResult{Filename: tc.Filename, Passed: true}
		if err := tc.Check(ctx, binary, outDir, cfg.Benchmark.Timeout); err != nil {
			tr.Passed = false
			tr.Error = err.Error()
			logger.Debug("Test vector failed.", "vector", tc.Filename, "error", err)
		} else {
			result.PassedTests++
		}
		result.Tests = append(result.Tests, tr)
	}
	if msgs := failureMessages(result.Tests); len(msgs) > 0 {
		if err := writeErrors(filepath.Join(outDir, ErrorsFile), msgs); err != nil {
			logger.Warn("Failed to write error file.", "error", err)
		}
	}
	return finish(logger, result, started)
}

func finish(logger *slog.Logger, r ProgramResult, started time.Time) ProgramResult {
	r.Duration = time.Since(started)
	if r.Error != "" {
		logger.Warn("Program failed.", "error", r.Error, "duration", r.Duration)
		return r
	}
	logger.Info("Program evaluated.",
		"passed", r.PassedTests,
		"total", r.TotalTests,
		"rate", fmt.Sprintf("%.1f%%", r.SuccessRate()),
		"duration", r.Duration,
	)
	return r
}

func writeOutputs(dir string, s *Summary) error {
	if err := writeResults(filepath.Join(dir, ResultsFile), s.Results); err != nil {
		return err
	}
	if err := writeSummary(filepath.Join(dir, SummaryFile), s); err != nil {
		return err
	}
	return nil
}

func failureMessages(tests []TestResult) []string {
	var msgs []string
	for _, t := range tests {
		if !t.Passed {
			msgs = append(msgs, t.Filename+": "+t.Error)
		}
	}
	return msgs
}
