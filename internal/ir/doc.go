// Package ir is the representation store of a Harvest run.
//
// # What Lives Here
//
// Every pipeline stage produces exactly one Representation. The IR maps the
// ID assigned to a stage at registration time to the Representation that stage
// produced. The store is heterogeneous: any type implementing Representation
// can be inserted, and lookups are typed through the generic Get function,
// which returns the value only when the stored artifact has the requested
// concrete kind.
//
// # Guarantees
//
//   - **Append-only:** an ID is written once. A second Insert for the same ID
//     is a programming error and panics.
//   - **No partial writes:** Insert publishes a fully constructed value under a
//     lock, so a reader either sees nothing or the whole Representation.
//   - **Snapshots:** Snapshot copies the requested entries into an immutable
//     view. Stages read their inputs from a snapshot while unrelated inserts
//     continue elsewhere in the graph.
//
// A type mismatch on lookup is reported exactly like absence. Callers that
// need a descriptive error build it themselves.
package ir
