package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/harvest/internal/benchmark"
	"github.com/specialistvlad/harvest/internal/config"
	"github.com/specialistvlad/harvest/internal/ctxlog"
)

// App encapsulates the resolved configuration, the logger and the
// lifecycle of one invocation.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *config.Config
	options  *Options
	progress *benchmark.Progress

	httpServer *http.Server
}

// NewApp loads the configuration named by opts, applies the command-line
// overrides and validates the result.
func NewApp(ctx context.Context, outW io.Writer, opts *Options) (*App, error) {
	cfg, err := config.Load(ctx, opts.ConfigPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.Apply(opts.Overrides)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := ctxlog.New(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		options:  opts,
		progress: &benchmark.Progress{},
	}, nil
}

// Config returns the resolved configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}
