package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/harvest/internal/config"
	"github.com/specialistvlad/harvest/internal/ctxlog"
	"github.com/specialistvlad/harvest/internal/dag"
	"github.com/specialistvlad/harvest/internal/ir"
	"github.com/specialistvlad/harvest/internal/node"
	"github.com/specialistvlad/harvest/internal/runner"
	"github.com/specialistvlad/harvest/internal/tool"
)

var (
	// ErrSkipped is the reason recorded on nodes skipped because an upstream
	// node failed or was skipped.
	ErrSkipped = errors.New("skipped due to upstream failure")
	// ErrAlreadyRun is returned by a second call to RunAll.
	ErrAlreadyRun = errors.New("scheduler has already run")
)

// Scheduler collects tool registrations and runs them once.
type Scheduler struct {
	graph *dag.Graph
	ran   atomic.Bool
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{graph: dag.New()}
}

// Queue registers t without dependencies.
func (s *Scheduler) Queue(t tool.Tool) ir.ID {
	return s.QueueAfter(t)
}

// QueueAfter registers t to run once every id in deps has completed. The
// tool receives deps, in this order, as its inputs. An id may refer to a
// registration made later, as long as it exists when RunAll is called.
func (s *Scheduler) QueueAfter(t tool.Tool, deps ...ir.ID) ir.ID {
	if s.ran.Load() {
		panic("scheduler: QueueAfter called after RunAll")
	}
	return s.graph.Add(t, deps...)
}

// Outcome is the terminal state of one node.
type Outcome struct {
	ID    ir.ID
	Tool  string
	State node.State
	// Err is the tool's failure for Failed nodes and the skip reason for
	// Skipped ones.
	Err error
	// Cause is the failed node a Skipped node was waiting on, if any.
	Cause ir.ID
}

// Outcomes returns the state of every node in ascending id order.
func (s *Scheduler) Outcomes() []Outcome {
	nodes := s.graph.Nodes()
	out := make([]Outcome, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Outcome{
			ID:    n.ID(),
			Tool:  n.Name(),
			State: n.State(),
			Err:   n.Err(),
			Cause: n.Cause(),
		})
	}
	return out
}

// RunError summarises the nodes that did not complete.
type RunError struct {
	Failed  []Outcome
	Skipped []Outcome
}

func (e *RunError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, o := range e.Failed {
		names = append(names, fmt.Sprintf("%s %s: %v", o.ID, o.Tool, o.Err))
	}
	msg := fmt.Sprintf("%d failed, %d skipped", len(e.Failed), len(e.Skipped))
	if len(names) > 0 {
		msg += ": " + strings.Join(names, "; ")
	}
	return msg
}

// Unwrap exposes every root cause: each failure, plus the reason of nodes
// skipped for something other than an upstream failure, such as
// cancellation.
func (e *RunError) Unwrap() []error {
	var errs []error
	for _, o := range e.Failed {
		errs = append(errs, o.Err)
	}
	for _, o := range e.Skipped {
		if o.Cause == 0 && o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

// RunAll executes the graph. A structural problem, a cycle or an unknown
// dependency, is returned before anything runs, with a nil IR. Otherwise the
// IR holds every completed node's representation, and the error is a
// *RunError when any node failed or was skipped.
//
// Cancelling ctx stops further dispatch. Nodes already handed to a worker
// run to completion; the rest end Skipped.
func (s *Scheduler) RunAll(ctx context.Context, r *runner.Runner, cfg *config.Config) (*ir.IR, error) {
	if !s.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}
	logger := ctxlog.FromContext(ctx)

	if err := s.graph.Validate(); err != nil {
		logger.Error("Pipeline graph rejected.", "error", err)
		return nil, err
	}

	nodes := s.graph.Nodes()
	for _, n := range nodes {
		n.SetDepCount(int32(len(s.graph.Dependencies(n.ID()))))
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = max(1, min(workers, len(nodes)))

	logger.Info("🚀 Starting pipeline run.", "nodes", len(nodes), "workers", workers)

	store := ir.New()
	run := &execution{
		scheduler: s,
		runner:    r,
		cfg:       cfg,
		store:     store,
		work:      make(chan runner.Job, workers),
		results:   make(chan runner.Result, workers),
	}
	run.ready = s.graph.Roots()

	var wg sync.WaitGroup
	logger.Debug("Starting worker pool.", "workers", workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			run.worker(ctx, workerID)
		}(i)
	}

	run.coordinate(ctx, workers)
	close(run.work)
	wg.Wait()

	run.skipRemaining(ctx)

	outcomes := s.Outcomes()
	var runErr RunError
	for _, o := range outcomes {
		switch o.State {
		case node.Failed:
			runErr.Failed = append(runErr.Failed, o)
		case node.Skipped:
			runErr.Skipped = append(runErr.Skipped, o)
		}
	}

	logger.Info("🏁 Pipeline run finished.",
		"completed", len(outcomes)-len(runErr.Failed)-len(runErr.Skipped),
		"failed", len(runErr.Failed),
		"skipped", len(runErr.Skipped),
		"ir_entries", store.Len(),
	)
	if len(runErr.Failed) > 0 || len(runErr.Skipped) > 0 {
		return store, &runErr
	}
	return store, nil
}
