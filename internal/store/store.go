// internal/store/store.go
package store

import (
	"context"
	"errors"
	"strings"
)

// MaxBatchOps is the write ceiling of a single atomic batch. Commit fails
// if a batch holds more operations than this.
const MaxBatchOps = 500

// ErrNotFound is returned by Get and Update when the target document does
// not exist. Delete of a missing document is not an error.
var ErrNotFound = errors.New("document not found")

// Ref addresses a single document. Collection is the full slash-joined
// collection path (e.g. "variants/abc123/lobby"), ID the document id
// within it.
type Ref struct {
	Collection string
	ID         string
}

// Path returns the full document path, e.g. "variants/abc123/lobby/user1".
func (r Ref) Path() string {
	return r.Collection + "/" + r.ID
}

// CollectionChain strips the document-id segments out of a collection
// path: "variants/abc123/lobby" => "variants.lobby". Used as the routing
// key for document events.
func CollectionChain(collection string) string {
	segs := strings.Split(collection, "/")
	var names []string
	for i := 0; i < len(segs); i += 2 {
		names = append(names, segs[i])
	}
	return strings.Join(names, ".")
}

// Snapshot is a document read: the ref plus its raw JSON body.
type Snapshot struct {
	Ref  Ref
	Data []byte
}

// Refs extracts the refs of a query result, for handing to BatchedUpdate.
func Refs(snaps []Snapshot) []Ref {
	refs := make([]Ref, len(snaps))
	for i, s := range snaps {
		refs[i] = s.Ref
	}
	return refs
}

// EventKind discriminates document mutation events.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// Event describes one committed document mutation. Before holds the prior
// body for updates and deletes, After the new body; each is nil when the
// document did not exist on that side of the mutation.
type Event struct {
	Kind   EventKind
	Ref    Ref
	Before []byte
	After  []byte
}

// Incr is a field sentinel for Update: the field is incremented by Delta
// instead of overwritten. A missing field counts as zero.
type Incr struct {
	Delta int64
}

// Increment returns an Incr sentinel for use as an Update field value.
func Increment(delta int64) Incr {
	return Incr{Delta: delta}
}

// Store is a schema-less document store: single-document reads and writes
// are atomic, batches commit atomically up to MaxBatchOps, and there are no
// cross-batch transactions. Implementations emit an Event for every
// committed mutation.
type Store interface {
	// Get fetches one document, or ErrNotFound.
	Get(ctx context.Context, ref Ref) (Snapshot, error)
	// Set creates or fully replaces one document.
	Set(ctx context.Context, ref Ref, doc any) error
	// Update merges fields into an existing document. Incr values
	// increment numeric fields. Returns ErrNotFound if the document
	// does not exist.
	Update(ctx context.Context, ref Ref, fields map[string]any) error
	// Delete removes one document. Deleting a missing document is a no-op.
	Delete(ctx context.Context, ref Ref) error
	// Query returns every document in the collection whose named
	// top-level field equals value.
	Query(ctx context.Context, collection, field, value string) ([]Snapshot, error)
	// List returns every document in the collection.
	List(ctx context.Context, collection string) ([]Snapshot, error)
	// Batch starts an empty write batch.
	Batch() WriteBatch
}

// WriteBatch accumulates writes for one atomic commit. Commit applies all
// queued operations or none of them, failing if the batch exceeds
// MaxBatchOps.
type WriteBatch interface {
	Set(ref Ref, doc any)
	Update(ref Ref, fields map[string]any)
	Delete(ref Ref)
	// Len reports the number of queued operations.
	Len() int
	Commit(ctx context.Context) error
}
