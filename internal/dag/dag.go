package dag

import (
	"errors"
	"fmt"
	"slices"

	"github.com/specialistvlad/harvest/internal/ir"
	"github.com/specialistvlad/harvest/internal/node"
	"github.com/specialistvlad/harvest/internal/tool"
)

var (
	// ErrCycle is returned when the dependency edges form a cycle.
	ErrCycle = errors.New("dependency cycle detected")
	// ErrUnknownDependency is returned when a node depends on an id that was
	// never registered.
	ErrUnknownDependency = errors.New("dependency on unregistered id")
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		deps:       make(map[ir.ID][]ir.ID),
		dependents: make(map[ir.ID][]ir.ID),
	}
}

// Add registers t as a new node depending on deps and returns its id.
// Repeated entries in deps are kept for the tool's inputs but form a single
// edge.
func (g *Graph) Add(t tool.Tool, deps ...ir.ID) ir.ID {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	id := ir.ID(len(g.nodes) + 1)
	g.nodes = append(g.nodes, node.New(id, t, deps))

	var distinct []ir.ID
	for _, d := range deps {
		if slices.Contains(distinct, d) {
			continue
		}
		distinct = append(distinct, d)
		g.dependents[d] = append(g.dependents[d], id)
	}
	g.deps[id] = distinct
	return id
}

// Len returns the number of registered nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// Node returns the node registered at id.
func (g *Graph) Node(id ir.ID) (*node.Node, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.lookup(id)
}

// Nodes returns every node in ascending id order.
func (g *Graph) Nodes() []*node.Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return slices.Clone(g.nodes)
}

// Dependencies returns the distinct ids the node at id depends on.
func (g *Graph) Dependencies(id ir.ID) []ir.ID {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return slices.Clone(g.deps[id])
}

// Dependents returns the ids of nodes that depend on id, in ascending order.
func (g *Graph) Dependents(id ir.ID) []ir.ID {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return slices.Clone(g.dependents[id])
}

// Roots returns the nodes without dependencies, in ascending id order.
func (g *Graph) Roots() []*node.Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var roots []*node.Node
	for _, n := range g.nodes {
		if len(g.deps[n.ID()]) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// Validate checks that every dependency names a registered node and that the
// graph is acyclic.
func (g *Graph) Validate() error {
	g.mutex.RLock()
	var errs []error
	for _, n := range g.nodes {
		for _, d := range g.deps[n.ID()] {
			if _, ok := g.lookup(d); !ok {
				errs = append(errs, fmt.Errorf("%w: %s (%s) depends on %s", ErrUnknownDependency, n.ID(), n.Name(), d))
			}
		}
	}
	g.mutex.RUnlock()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return g.DetectCycles()
}

// DetectCycles checks the graph for any cycles. It returns a non-nil error
// if a cycle is found, indicating the first node involved in the detected cycle.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Use classic depth-first search with three sets of nodes:
	// permanent: nodes that have been fully visited and are not part of a cycle.
	// temporary: nodes currently in the recursion stack for the current traversal.
	// unvisited: all other nodes.
	permanent := make(map[ir.ID]bool)
	temporary := make(map[ir.ID]bool)

	var visit func(id ir.ID) error
	visit = func(id ir.ID) error {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			name := "?"
			if n, ok := g.lookup(id); ok {
				name = n.Name()
			}
			return fmt.Errorf("%w involving node %s (%s)", ErrCycle, id, name)
		}

		temporary[id] = true
		for _, dependent := range g.dependents[id] {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	for _, n := range g.nodes {
		if err := visit(n.ID()); err != nil {
			return err
		}
	}
	return nil
}

// lookup expects the mutex to be held.
func (g *Graph) lookup(id ir.ID) (*node.Node, bool) {
	if id == 0 || int(id) > len(g.nodes) {
		return nil, false
	}
	return g.nodes[id-1], true
}
