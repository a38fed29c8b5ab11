package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/specialistvlad/harvest/internal/benchmark"
	"github.com/specialistvlad/harvest/internal/ctxlog"
	"github.com/specialistvlad/harvest/internal/translate"
)

// RunTranslate translates the configured project.
func (a *App) RunTranslate(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.RunTranslate method started.", "input", a.config.Input, "output", a.config.Output)

	res, err := translate.Transpile(ctx, a.config)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}

	if build, ok := res.Build(); ok && !build.Succeeded() {
		a.logger.Warn("The translated project does not build.", "error", build.Error)
	}
	a.logger.Info("✅ Translation finished.", "output", a.config.Output, "diagnostics", res.Diagnostics.Dir)
	return nil
}

// RunBenchmark benchmarks every program under the configured input. The
// healthcheck server, when enabled, reports progress while it runs.
//
// Everything logged and printed during the run is also written to
// benchmark.LogFile in the output directory.
func (a *App) RunBenchmark(ctx context.Context) (*benchmark.Summary, error) {
	if err := os.MkdirAll(a.config.Output, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	logFile, err := os.Create(filepath.Join(a.config.Output, benchmark.LogFile))
	if err != nil {
		return nil, fmt.Errorf("creating benchmark log: %w", err)
	}
	defer logFile.Close()

	outW := io.MultiWriter(a.outW, logFile)
	previous := a.logger
	a.logger = ctxlog.New(a.config.LogLevel, a.config.LogFormat, outW)
	defer func() { a.logger = previous }()

	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.RunBenchmark method started.", "log_file", logFile.Name())

	if err := a.startHealthcheckServer(ctx, a.options.HealthcheckPort); err != nil {
		return nil, err
	}
	defer func() {
		if err := a.closeHealthcheckServer(ctx); err != nil {
			a.logger.Warn("Failed to close health check server.", "error", err)
		}
	}()

	summary, err := benchmark.Run(ctx, a.config, benchmark.Options{
		NoLib:    a.options.NoLib,
		Progress: a.progress,
	})
	if err != nil {
		return summary, fmt.Errorf("benchmark failed: %w", err)
	}

	fmt.Fprintf(outW, "Programs: %d, translated: %d, built: %d, fully passing: %d\nTests: %d/%d passed (%.1f%%)\n",
		summary.Programs, summary.TranslationSuccesses, summary.BuildSuccesses, summary.FullyPassing,
		summary.PassedTests, summary.TotalTests, summary.PassRate())
	return summary, nil
}
