package app

import (
	"errors"

	"github.com/specialistvlad/harvest/internal/config"
)

// Options is what an entrypoint resolved from the command line.
type Options struct {
	// ConfigPaths are .hcl files or directories, applied in order.
	ConfigPaths []string
	// Overrides take precedence over every config file.
	Overrides config.Overrides

	HealthcheckPort int
	NoLib           bool
}

// NewOptions checks opts and returns a copy.
func NewOptions(opts Options) (*Options, error) {
	if opts.HealthcheckPort < 0 || opts.HealthcheckPort > 65535 {
		return nil, errors.New("healthcheck port must be between 0 and 65535")
	}
	if len(opts.ConfigPaths) == 0 && opts.Overrides.Input == nil {
		return nil, errors.New("an input directory or a config file is required")
	}
	return &opts, nil
}
