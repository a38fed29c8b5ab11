// Package diagnostics records what happened during a run: a structured event
// per tool start and finish, a version event per IR insert, and a scratch
// directory per tool invocation. Events are appended to events.jsonl in the
// diagnostics directory and kept in memory for the caller.
package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/harvest/internal/config"
	"github.com/specialistvlad/harvest/internal/ctxlog"
)

// EventsFile is the name of the machine-readable event log.
const EventsFile = "events.jsonl"

// Collector owns the diagnostics directory of one run.
type Collector struct {
	runID   uuid.UUID
	dir     string
	ownsDir bool
	logger  *slog.Logger

	mu       sync.Mutex
	seq      uint64
	toolRuns uint64
	events   []Event
	file     *os.File
	enc      *json.Encoder
	closed   bool
}

// Diagnostics is the immutable outcome of a run's collection.
type Diagnostics struct {
	RunID  string
	Dir    string
	Events []Event
}

// Initialize prepares the diagnostics directory named by cfg, or a fresh
// temporary directory when none is configured, and opens the event log.
func Initialize(ctx context.Context, cfg *config.Config) (*Collector, error) {
	dir := cfg.DiagnosticsDir
	owns := false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "harvest-diagnostics-*")
		if err != nil {
			return nil, fmt.Errorf("creating diagnostics directory: %w", err)
		}
		dir, owns = tmp, true
	} else if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating diagnostics directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(dir, EventsFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}

	c := &Collector{
		runID:   uuid.New(),
		dir:     dir,
		ownsDir: owns,
		file:    file,
		enc:     json.NewEncoder(file),
	}
	c.logger = ctxlog.FromContext(ctx).With("run_id", c.runID.String())
	c.logger.Debug("Diagnostics collector initialized.", "dir", dir)
	return c, nil
}

// RunID returns the unique id of this run.
func (c *Collector) RunID() string {
	return c.runID.String()
}

// Dir returns the diagnostics directory.
func (c *Collector) Dir() string {
	return c.dir
}

// Reporter returns a handle through which the runner reports events.
func (c *Collector) Reporter() *Reporter {
	return &Reporter{collector: c}
}

// Diagnostics returns a copy of every event recorded so far.
func (c *Collector) Diagnostics() Diagnostics {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]Event, len(c.events))
	copy(events, c.events)
	return Diagnostics{RunID: c.runID.String(), Dir: c.dir, Events: events}
}

// Close flushes and closes the event log. A temporary diagnostics directory
// is kept so that it can still be inspected; its path is logged.
func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.ownsDir {
		c.logger.Info("Diagnostics written to temporary directory.", "dir", c.dir)
	}
	return c.file.Close()
}

// record stamps ev and appends it to the log.
func (c *Collector) record(ev Event) Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	ev.Seq = c.seq
	ev.RunID = c.runID.String()
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	c.events = append(c.events, ev)

	if !c.closed {
		if err := c.enc.Encode(ev); err != nil {
			c.logger.Warn("Failed to append diagnostics event.", "kind", ev.Kind, "error", err)
		}
	}
	return ev
}

func (c *Collector) nextToolRun() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolRuns++
	return c.toolRuns
}
