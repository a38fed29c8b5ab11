package diagnostics

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/specialistvlad/harvest/internal/ir"
)

// EventKind names the kind of a diagnostics event.
type EventKind string

const (
	ToolStarted   EventKind = "tool_started"
	ToolSucceeded EventKind = "tool_succeeded"
	ToolFailed    EventKind = "tool_failed"
	IRVersion     EventKind = "ir_version"
)

// Event is one line of the event log.
type Event struct {
	Seq        uint64        `json:"seq"`
	Time       time.Time     `json:"time"`
	RunID      string        `json:"run_id"`
	Kind       EventKind     `json:"kind"`
	Tool       string        `json:"tool,omitempty"`
	ToolRun    uint64        `json:"tool_run,omitempty"`
	NodeID     ir.ID         `json:"node_id,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
	IRVersion  uint64        `json:"ir_version,omitempty"`
	IREntries  int           `json:"ir_entries,omitempty"`
	Inputs     []ir.ID       `json:"inputs,omitempty"`
	Produced   string        `json:"produced,omitempty"`
	ScratchDir string        `json:"scratch_dir,omitempty"`
}

// Reporter is the runner-facing side of a Collector.
type Reporter struct {
	collector *Collector
}

// StartToolRun allocates a numbered scratch directory for one invocation of
// the named tool and records a ToolStarted event.
func (r *Reporter) StartToolRun(name string, id ir.ID, inputs []ir.ID) (*ToolReporter, error) {
	c := r.collector
	n := c.nextToolRun()
	dir := filepath.Join(c.dir, "tool_runs", fmt.Sprintf("%04d_%s", n, name))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating tool run directory: %w", err)
	}

	c.record(Event{
		Kind:       ToolStarted,
		Tool:       name,
		ToolRun:    n,
		NodeID:     id,
		Inputs:     inputs,
		ScratchDir: dir,
	})

	return &ToolReporter{
		collector: c,
		name:      name,
		run:       n,
		id:        id,
		dir:       dir,
		started:   time.Now(),
		logger:    c.logger.With("tool", name, "tool_run", n, "nodeID", id),
	}, nil
}

// ReportIRVersion records that the IR reached version after id was inserted.
func (r *Reporter) ReportIRVersion(version uint64, entries int, id ir.ID, produced string) {
	r.collector.record(Event{
		Kind:      IRVersion,
		NodeID:    id,
		IRVersion: version,
		IREntries: entries,
		Produced:  produced,
	})
}

// ToolReporter is handed to a single tool invocation.
type ToolReporter struct {
	collector *Collector
	name      string
	run       uint64
	id        ir.ID
	dir       string
	started   time.Time
	logger    *slog.Logger
}

// Run returns the invocation number, unique within the run.
func (t *ToolReporter) Run() uint64 {
	return t.run
}

// Dir is the invocation's private directory inside the diagnostics directory.
func (t *ToolReporter) Dir() string {
	return t.dir
}

// Logger returns a logger tagged with the tool, invocation and node.
func (t *ToolReporter) Logger() *slog.Logger {
	return t.logger
}

// TempDir creates a fresh directory under Dir.
func (t *ToolReporter) TempDir() (string, error) {
	return os.MkdirTemp(t.dir, "tmp-")
}

// Finish records the outcome of the invocation. A nil err marks success.
func (t *ToolReporter) Finish(produced string, err error) Event {
	ev := Event{
		Kind:     ToolSucceeded,
		Tool:     t.name,
		ToolRun:  t.run,
		NodeID:   t.id,
		Duration: time.Since(t.started),
		Produced: produced,
	}
	if err != nil {
		ev.Kind = ToolFailed
		ev.Error = err.Error()
		ev.Produced = ""
	}
	return t.collector.record(ev)
}
