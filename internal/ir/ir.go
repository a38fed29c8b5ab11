package ir

import (
	"fmt"
	"slices"
	"strconv"
	"sync"
)

// ID identifies a stage invocation and, once it completes, the Representation
// it produced. IDs are assigned by the scheduler at registration time. The
// zero value is never assigned.
type ID uint64

// String renders the ID for logs and diagnostics.
func (id ID) String() string {
	return "#" + strconv.FormatUint(uint64(id), 10)
}

// Representation is a typed artifact produced by one stage invocation.
type Representation interface {
	// Name is a stable, snake_case name used in diagnostics.
	Name() string
	// Materialize writes the artifact under dir. It is the only sanctioned
	// way for a Representation to cause side effects outside the IR.
	Materialize(dir string) error
}

// Intermediate can be embedded by representations that have nothing to
// write to disk.
type Intermediate struct{}

// Materialize is a no-op.
func (Intermediate) Materialize(string) error { return nil }

// Reader is anything that can resolve an ID to a stored Representation.
type Reader interface {
	Lookup(id ID) (Representation, bool)
}

// IR is the append-only store of completed representations. All methods are
// safe for concurrent use.
type IR struct {
	mu      sync.RWMutex
	entries map[ID]Representation
	version uint64
}

// New returns an empty IR.
func New() *IR {
	return &IR{entries: make(map[ID]Representation)}
}

// Insert stores rep at id. It panics if id is already populated or rep is nil.
func (r *IR) Insert(id ID, rep Representation) {
	if rep == nil {
		panic(fmt.Sprintf("ir: nil representation inserted at %s", id))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[ID]Representation)
	}
	if existing, ok := r.entries[id]; ok {
		panic(fmt.Sprintf("ir: %s already holds %q, refusing to overwrite with %q", id, existing.Name(), rep.Name()))
	}
	r.entries[id] = rep
	r.version++
}

// Lookup returns the raw Representation stored at id.
func (r *IR) Lookup(id ID) (Representation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.entries[id]
	return rep, ok
}

// Contains reports whether id has been populated.
func (r *IR) Contains(id ID) bool {
	_, ok := r.Lookup(id)
	return ok
}

// Len returns the number of stored representations.
func (r *IR) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Version counts successful inserts. It starts at 0.
func (r *IR) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// IDs returns every populated ID in ascending order.
func (r *IR) IDs() []ID {
	r.mu.RLock()
	ids := make([]ID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Snapshot returns an immutable view holding the entries for ids. IDs that
// are not populated are left out of the view. With no arguments the whole IR
// is captured.
func (r *IR) Snapshot(ids ...ID) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(ids) == 0 {
		entries := make(map[ID]Representation, len(r.entries))
		for id, rep := range r.entries {
			entries[id] = rep
		}
		return &Snapshot{entries: entries}
	}

	entries := make(map[ID]Representation, len(ids))
	for _, id := range ids {
		if rep, ok := r.entries[id]; ok {
			entries[id] = rep
		}
	}
	return &Snapshot{entries: entries}
}

// Snapshot is a read-only view over part of an IR, taken at a point in time.
type Snapshot struct {
	entries map[ID]Representation
}

// Lookup returns the Representation captured at id.
func (s *Snapshot) Lookup(id ID) (Representation, bool) {
	if s == nil {
		return nil, false
	}
	rep, ok := s.entries[id]
	return rep, ok
}

// Len returns the number of captured entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Get returns the value at id if it exists and has concrete kind T.
// Absence and a kind mismatch both yield false.
func Get[T Representation](r Reader, id ID) (T, bool) {
	var zero T
	rep, ok := r.Lookup(id)
	if !ok {
		return zero, false
	}
	typed, ok := rep.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Entry pairs an ID with a typed value.
type Entry[T Representation] struct {
	ID    ID
	Value T
}

// All returns every representation of kind T held by r, in ascending ID order.
func All[T Representation](r *IR) []Entry[T] {
	var out []Entry[T]
	for _, id := range r.IDs() {
		if v, ok := Get[T](r, id); ok {
			out = append(out, Entry[T]{ID: id, Value: v})
		}
	}
	return out
}

// Latest returns the representation of kind T with the highest ID. Later IDs
// are produced by later refinement passes, so this is the most refined value.
func Latest[T Representation](r *IR) (Entry[T], bool) {
	all := All[T](r)
	if len(all) == 0 {
		return Entry[T]{}, false
	}
	return all[len(all)-1], true
}
