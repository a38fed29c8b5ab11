// Package dag stores the pipeline's stage nodes and the dependency edges
// between them.
//
// The graph is an arena: nodes live in a slice addressed by their ir.ID, and
// edges are id lists in both directions. Ids are assigned at registration, in
// order, starting at 1. A dependency may name an id that has not been
// registered yet; Validate rejects any that are still missing when execution
// begins, together with any cycle.
package dag
