package dag

import (
	"sync"

	"github.com/specialistvlad/harvest/internal/ir"
	"github.com/specialistvlad/harvest/internal/node"
)

// Graph is a collection of nodes and their dependencies, representing a DAG.
// All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the slices and maps below.
	mutex sync.RWMutex
	// nodes holds the node for id i at index i-1.
	nodes []*node.Node
	// deps holds each node's distinct dependencies (predecessors), in
	// declaration order.
	deps map[ir.ID][]ir.ID
	// dependents holds the nodes that depend on a given id (successors),
	// recorded even before that id is registered.
	dependents map[ir.ID][]ir.ID
}
