// Package loadsource lifts a project directory into a RawSource.
package loadsource

import (
	"context"
	"fmt"

	"github.com/specialistvlad/harvest/internal/ctxlog"
	"github.com/specialistvlad/harvest/internal/fsutil"
	"github.com/specialistvlad/harvest/internal/ir"
	"github.com/specialistvlad/harvest/internal/source"
	"github.com/specialistvlad/harvest/internal/tool"
)

// Name is the tool name used in diagnostics and configuration.
const Name = "load_raw_source"

// Tool reads a directory from disk. It takes no inputs.
type Tool struct {
	dir string
}

// New returns a tool that loads dir.
func New(dir string) *Tool {
	return &Tool{dir: dir}
}

func (*Tool) Name() string { return Name }

func (t *Tool) Run(ctx context.Context, rc *tool.RunContext, _ []ir.ID) (ir.Representation, error) {
	dir, dirs, files, err := fsutil.Load(t.dir)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", t.dir, err)
	}
	rc.Logger(ctxlog.FromContext(ctx)).Info("Loaded raw source.", "dir", t.dir, "directories", dirs, "files", files)
	return source.RawSource{Dir: dir}, nil
}
