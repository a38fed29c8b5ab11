package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/harvest/internal/config"
	"github.com/specialistvlad/harvest/internal/ctxlog"
	"github.com/specialistvlad/harvest/internal/ir"
	"github.com/specialistvlad/harvest/internal/node"
	"github.com/specialistvlad/harvest/internal/runner"
)

// execution is the state of one RunAll call. Everything except the channels
// is owned by the coordinator goroutine.
type execution struct {
	scheduler *Scheduler
	runner    *runner.Runner
	cfg       *config.Config
	store     *ir.IR

	work    chan runner.Job
	results chan runner.Result

	ready    []*node.Node
	inFlight int
}

// coordinate dispatches ready nodes while workers are idle and processes
// results until nothing is ready or in flight.
func (e *execution) coordinate(ctx context.Context, workers int) {
	logger := ctxlog.FromContext(ctx)
	idle := workers

	for {
		for idle > 0 && len(e.ready) > 0 && ctx.Err() == nil {
			n := e.ready[0]
			e.ready = e.ready[1:]
			job, err := e.dispatch(n)
			if err != nil {
				// Only reachable if the state machine was bypassed.
				logger.Error("Node could not be dispatched.", "nodeID", n.ID(), "error", err)
				continue
			}
			e.work <- job
			idle--
			e.inFlight++
		}

		if e.inFlight == 0 {
			if ctx.Err() != nil && len(e.ready) > 0 {
				logger.Warn("Run cancelled, not dispatching remaining nodes.", "ready", len(e.ready), "error", ctx.Err())
			}
			return
		}

		res := <-e.results
		idle++
		e.inFlight--
		e.handle(ctx, res)
	}
}

// dispatch moves n to Running and builds its job with a snapshot holding
// exactly its dependencies.
func (e *execution) dispatch(n *node.Node) (runner.Job, error) {
	t, err := n.Start()
	if err != nil {
		return runner.Job{}, err
	}
	deps := n.Deps()
	return runner.Job{
		ID:       n.ID(),
		Tool:     t,
		Inputs:   deps,
		Snapshot: e.store.Snapshot(deps...),
		Config:   e.cfg,
	}, nil
}

func (e *execution) worker(ctx context.Context, workerID int) {
	logger := ctxlog.FromContext(ctx).With("workerID", workerID)
	for job := range e.work {
		logger.Debug("Worker picked up node.", "nodeID", job.ID)
		e.results <- e.runner.Run(ctx, job)
		logger.Debug("Worker finished node.", "nodeID", job.ID)
	}
}

func (e *execution) handle(ctx context.Context, res runner.Result) {
	logger := ctxlog.FromContext(ctx)
	g := e.scheduler.graph
	n, ok := g.Node(res.ID)
	if !ok {
		logger.Error("Result for unknown node.", "nodeID", res.ID)
		return
	}

	if res.Err != nil {
		if err := n.Fail(res.Err); err != nil {
			logger.Error("Node state update failed.", "nodeID", n.ID(), "error", err)
		}
		e.skipDependents(ctx, n)
		return
	}

	e.runner.Commit(ctx, e.store, res)
	if err := n.Complete(res.Representation); err != nil {
		logger.Error("Node state update failed.", "nodeID", n.ID(), "error", err)
		return
	}

	for _, depID := range g.Dependents(n.ID()) {
		dependent, ok := g.Node(depID)
		if !ok || dependent.State() != node.Pending {
			continue
		}
		if dependent.DecrementDepCount() == 0 {
			logger.Debug("Node is ready.", "nodeID", dependent.ID(), "tool", dependent.Name())
			e.ready = append(e.ready, dependent)
		}
	}
}

// skipDependents marks every transitive dependent of failed as Skipped.
func (e *execution) skipDependents(ctx context.Context, failed *node.Node) {
	logger := ctxlog.FromContext(ctx)
	g := e.scheduler.graph

	queue := g.Dependents(failed.ID())
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		dependent, ok := g.Node(id)
		if !ok || dependent.State() != node.Pending {
			continue
		}
		reason := fmt.Errorf("%w of %s (%s)", ErrSkipped, failed.ID(), failed.Name())
		if err := dependent.Skip(failed.ID(), reason); err != nil {
			continue
		}
		logger.Warn("Skipping dependent node due to upstream failure.", "nodeID", id, "tool", dependent.Name(), "dependency", failed.ID())
		queue = append(queue, g.Dependents(id)...)
	}
}

// skipRemaining marks every node that never left Pending as Skipped. This
// only happens when the run was cancelled.
func (e *execution) skipRemaining(ctx context.Context) {
	reason := ctx.Err()
	if reason == nil {
		reason = errors.New("never dispatched")
	}
	for _, n := range e.scheduler.graph.Nodes() {
		if n.State() == node.Pending {
			_ = n.Skip(0, reason)
		}
	}
}
