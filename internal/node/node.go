// Package node holds the per-stage state machine owned by the graph.
//
// A node is created Pending, moves to Running when the scheduler dispatches
// it, and ends in exactly one of Completed, Failed or Skipped. Transitions
// are checked, so a node can never be dispatched twice, and the tool it
// wraps can only be taken once.
package node

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/harvest/internal/ir"
	"github.com/specialistvlad/harvest/internal/tool"
)

// ErrInvalidTransition is returned when a state change is not allowed from
// the node's current state.
var ErrInvalidTransition = errors.New("invalid node state transition")

// State represents the execution state of a node in the graph.
type State int32

const (
	// Pending indicates the node is waiting for its dependencies to complete.
	Pending State = iota
	// Running indicates the node has been handed to a worker.
	Running
	// Completed indicates the node produced a representation.
	Completed
	// Failed indicates the node's tool returned an error or panicked.
	Failed
	// Skipped indicates the node was never dispatched because an upstream
	// node failed or was skipped, or because the run was cancelled.
	Skipped
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Skipped
}

// Node is a single vertex in the execution graph.
type Node struct {
	id   ir.ID
	name string
	deps []ir.ID

	// depCount is the number of unmet dependencies, used by the scheduler.
	depCount atomic.Int32

	mu     sync.Mutex
	state  State
	tool   tool.Tool
	result ir.Representation
	err    error
	cause  ir.ID
}

// New wraps t as the node at id. deps is copied and keeps its order.
func New(id ir.ID, t tool.Tool, deps []ir.ID) *Node {
	return &Node{
		id:   id,
		name: t.Name(),
		deps: slices.Clone(deps),
		tool: t,
	}
}

// ID returns the node's id.
func (n *Node) ID() ir.ID { return n.id }

// Name returns the wrapped tool's name.
func (n *Node) Name() string { return n.name }

// Deps returns the declared dependencies in declaration order.
func (n *Node) Deps() []ir.ID { return slices.Clone(n.deps) }

func (n *Node) SetDepCount(count int32) {
	n.depCount.Store(count)
}

// DepCount atomically returns the current number of unmet dependencies.
func (n *Node) DepCount() int32 {
	return n.depCount.Load()
}

// DecrementDepCount atomically decrements the dependency counter and returns the new value.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// State returns the current state.
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Result returns the representation of a Completed node.
func (n *Node) Result() ir.Representation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.result
}

// Err returns the failure of a Failed node or the reason a node was Skipped.
func (n *Node) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

// Cause returns the id of the failed node that caused a skip, or 0 when the
// node was not skipped because of a failure.
func (n *Node) Cause() ir.ID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cause
}

// Start moves a Pending node to Running and hands over its tool. The node
// releases its reference, so the tool cannot be obtained a second time.
func (n *Node) Start() (tool.Tool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Pending || n.tool == nil {
		return nil, fmt.Errorf("%w: %s %s cannot start while %s", ErrInvalidTransition, n.id, n.name, n.state)
	}
	t := n.tool
	n.tool = nil
	n.state = Running
	return t, nil
}

// Complete records the representation and moves a Running node to Completed.
func (n *Node) Complete(rep ir.Representation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Running {
		return fmt.Errorf("%w: %s %s cannot complete while %s", ErrInvalidTransition, n.id, n.name, n.state)
	}
	n.state = Completed
	n.result = rep
	return nil
}

// Fail records err and moves a Running node to Failed.
func (n *Node) Fail(err error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Running {
		return fmt.Errorf("%w: %s %s cannot fail while %s", ErrInvalidTransition, n.id, n.name, n.state)
	}
	n.state = Failed
	n.err = err
	return nil
}

// Skip moves a Pending node to Skipped. cause is the failed upstream node,
// or 0 when the skip has another reason.
func (n *Node) Skip(cause ir.ID, reason error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Pending {
		return fmt.Errorf("%w: %s %s cannot be skipped while %s", ErrInvalidTransition, n.id, n.name, n.state)
	}
	n.state = Skipped
	n.tool = nil
	n.cause = cause
	n.err = reason
	return nil
}
