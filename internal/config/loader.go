package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/harvest/internal/ctxlog"
	"github.com/specialistvlad/harvest/internal/fsutil"
)

// fileRoot is the shape of a single configuration file. Every attribute is
// optional so that files can be layered.
type fileRoot struct {
	Input          *string         `hcl:"input,optional"`
	Output         *string         `hcl:"output,optional"`
	DiagnosticsDir *string         `hcl:"diagnostics_dir,optional"`
	Workers        *int            `hcl:"workers,optional"`
	Force          *bool           `hcl:"force,optional"`
	LogLevel       *string         `hcl:"log_level,optional"`
	LogFormat      *string         `hcl:"log_format,optional"`
	Tools          []*toolBlock    `hcl:"tool,block"`
	Benchmark      *benchmarkBlock `hcl:"benchmark,block"`
}

type toolBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type benchmarkBlock struct {
	Timeout  *string      `hcl:"timeout,optional"`
	Parallel *int         `hcl:"parallel,optional"`
	Upload   *uploadBlock `hcl:"upload,block"`
}

type uploadBlock struct {
	Endpoint  string `hcl:"endpoint"`
	Bucket    string `hcl:"bucket"`
	Prefix    string `hcl:"prefix,optional"`
	AccessKey string `hcl:"access_key,optional"`
	SecretKey string `hcl:"secret_key,optional"`
	Secure    bool   `hcl:"secure,optional"`
}

// Load reads every .hcl file found under paths, in order, on top of Default().
// Later files override earlier ones. A path that does not exist is skipped.
func Load(ctx context.Context, paths ...string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL config loader started.", "path_count", len(paths))

	cfg := Default()
	files, err := findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		if err := cfg.merge(hclFile.Body); err != nil {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, err)
		}
	}

	logger.Debug("HCL config loading complete.", "files", len(files), "tools", len(cfg.tools))
	return cfg, nil
}

// LoadBytes decodes a single in-memory configuration file on top of Default().
func LoadBytes(filename string, src []byte) (*Config, error) {
	cfg := Default()
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	if err := cfg.merge(hclFile.Body); err != nil {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, err)
	}
	return cfg, nil
}

// merge decodes one file body into c.
func (c *Config) merge(body hcl.Body) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, c.EvalContext(nil), &root); diags.HasErrors() {
		return diags
	}

	c.Apply(Overrides{
		Input:          root.Input,
		Output:         root.Output,
		DiagnosticsDir: root.DiagnosticsDir,
		Workers:        root.Workers,
		Force:          root.Force,
		LogLevel:       root.LogLevel,
		LogFormat:      root.LogFormat,
	})

	if c.tools == nil {
		c.tools = make(map[string]hcl.Body)
	}
	for _, t := range root.Tools {
		c.tools[t.Name] = t.Body
	}

	if b := root.Benchmark; b != nil {
		if b.Timeout != nil {
			d, err := time.ParseDuration(*b.Timeout)
			if err != nil {
				return fmt.Errorf("benchmark timeout: %w", err)
			}
			c.Benchmark.Timeout = d
		}
		if b.Parallel != nil {
			c.Benchmark.Parallel = *b.Parallel
		}
		if u := b.Upload; u != nil {
			c.Benchmark.Upload = &Upload{
				Endpoint:  u.Endpoint,
				Bucket:    u.Bucket,
				Prefix:    u.Prefix,
				AccessKey: u.AccessKey,
				SecretKey: u.SecretKey,
				Secure:    u.Secure,
			}
		}
	}
	return nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
func findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // It's not an error if a configured path doesn't exist.
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if _, wasSeen := seen[f]; !wasSeen {
				allFiles = append(allFiles, f)
				seen[f] = struct{}{}
			}
		}
	}
	return allFiles, nil
}
