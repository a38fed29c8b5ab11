// Package scheduler executes a graph of tools with maximal safe concurrency.
//
// # How It Works
//
// Callers register tools with Queue and QueueAfter and receive an ir.ID for
// each before anything runs. RunAll then:
//
//  1. Rejects the graph if it has a cycle or a dependency on an unregistered id.
//  2. Sets each node's unmet-dependency count.
//  3. Hands ready nodes to a bounded pool of workers over a channel.
//  4. On each result, commits the representation to the IR and decrements
//     the count of every dependent; a dependent reaching zero becomes ready.
//     A failure instead marks every transitive dependent Skipped.
//  5. Stops once nothing is ready and nothing is in flight.
//
// A single coordinator goroutine owns node state, so each node is
// dispatched at most once and the IR has a single writer. Workers only run
// tools. Sibling dispatch order is unspecified.
package scheduler
