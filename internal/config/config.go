package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"
)

// Config is the resolved configuration for a run.
type Config struct {
	// Input is the C project directory to translate.
	Input string
	// Output is where translated artifacts are materialized.
	Output string
	// DiagnosticsDir receives event logs and per-tool scratch directories.
	// A temporary directory is used when empty.
	DiagnosticsDir string
	// Workers bounds concurrent stage execution. 0 means one per CPU.
	Workers int
	// Force allows writing into a non-empty Output.
	Force bool

	LogLevel  string
	LogFormat string

	Benchmark Benchmark

	tools map[string]hcl.Body
	env   map[string]string
}

// Benchmark holds settings used only by the benchmarking driver.
type Benchmark struct {
	// Timeout bounds each test-vector execution.
	Timeout time.Duration
	// Parallel is the number of programs processed at once.
	Parallel int
	// Upload is nil unless results should be pushed to object storage.
	Upload *Upload
}

// Upload describes an S3-compatible destination for benchmark outputs.
type Upload struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// Overrides carries values, usually from command-line flags, that take
// precedence over file configuration. Nil fields are left untouched.
type Overrides struct {
	Input          *string
	Output         *string
	DiagnosticsDir *string
	Workers        *int
	Force          *bool
	LogLevel       *string
	LogFormat      *string
	Timeout        *time.Duration
	Parallel       *int
}

// Default returns a configuration with every optional field at its default.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Benchmark: Benchmark{
			Timeout:  10 * time.Second,
			Parallel: 1,
		},
		tools: make(map[string]hcl.Body),
		env:   environ(),
	}
}

// Mock returns a default configuration suitable for tests: logging is off
// and only one program runs at a time.
func Mock() *Config {
	cfg := Default()
	cfg.LogLevel = "off"
	return cfg
}

// Apply copies every non-nil override into c.
func (c *Config) Apply(o Overrides) {
	if o.Input != nil {
		c.Input = *o.Input
	}
	if o.Output != nil {
		c.Output = *o.Output
	}
	if o.DiagnosticsDir != nil {
		c.DiagnosticsDir = *o.DiagnosticsDir
	}
	if o.Workers != nil {
		c.Workers = *o.Workers
	}
	if o.Force != nil {
		c.Force = *o.Force
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
	if o.LogFormat != nil {
		c.LogFormat = *o.LogFormat
	}
	if o.Timeout != nil {
		c.Benchmark.Timeout = *o.Timeout
	}
	if o.Parallel != nil {
		c.Benchmark.Parallel = *o.Parallel
	}
}

// Validate checks the fields every driver relies on.
func (c *Config) Validate() error {
	var errs []error
	if c.Input == "" {
		errs = append(errs, errors.New("input is required"))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("output is required"))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.Benchmark.Parallel < 1 {
		errs = append(errs, fmt.Errorf("benchmark parallel must be at least 1, got %d", c.Benchmark.Parallel))
	}
	if c.Benchmark.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("benchmark timeout must be positive, got %s", c.Benchmark.Timeout))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "off":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// WithIO returns a shallow copy of c pointing at another input and output.
// Tool bodies are shared, which is safe because they are never mutated.
func (c *Config) WithIO(input, output string) *Config {
	cp := *c
	cp.Input = input
	cp.Output = output
	return &cp
}

// HasTool reports whether a `tool "<name>"` block was configured.
func (c *Config) HasTool(name string) bool {
	_, ok := c.tools[name]
	return ok
}

// DecodeTool decodes the body of the `tool "<name>"` block into target, a
// pointer to a struct with `hcl` tags. Fields already set on target act as
// defaults: a missing block leaves target untouched, and a missing optional
// attribute leaves its field untouched. Expressions can refer to input,
// output and env, plus any extra variables.
func (c *Config) DecodeTool(name string, target any, extra map[string]cty.Value) error {
	body, ok := c.tools[name]
	if !ok {
		return nil
	}
	if diags := gohcl.DecodeBody(body, c.EvalContext(extra), target); diags.HasErrors() {
		return fmt.Errorf("decoding tool %q configuration: %w", name, diags)
	}
	return nil
}

// EvalContext returns the HCL evaluation context used for tool bodies.
func (c *Config) EvalContext(extra map[string]cty.Value) *hcl.EvalContext {
	vars := map[string]cty.Value{
		"input":  cty.StringVal(c.Input),
		"output": cty.StringVal(c.Output),
		"env":    envValue(c.env),
	}
	for k, v := range extra {
		vars[k] = v
	}
	return &hcl.EvalContext{Variables: vars}
}

func envValue(env map[string]string) cty.Value {
	if len(env) == 0 {
		return cty.MapValEmpty(cty.String)
	}
	vals := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vals[k] = cty.StringVal(v)
	}
	return cty.MapVal(vals)
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}
