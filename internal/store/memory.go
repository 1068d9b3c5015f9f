// internal/store/memory.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-memory Store. It mirrors the semantics of the Postgres
// implementation closely enough that every component can be tested against
// it without a live database.
type Memory struct {
	mu   sync.Mutex
	docs map[string]map[string][]byte // collection -> id -> body

	// OnEvent, if set, is invoked synchronously after every committed
	// mutation. It is called outside the store lock, so handlers may
	// re-enter the store.
	OnEvent func(Event)
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string][]byte)}
}

func (m *Memory) emit(events []Event) {
	if m.OnEvent == nil {
		return
	}
	for _, ev := range events {
		m.OnEvent(ev)
	}
}

// Get fetches one document, or ErrNotFound.
func (m *Memory) Get(ctx context.Context, ref Ref) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	body, ok := m.docs[ref.Collection][ref.ID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return Snapshot{Ref: ref, Data: cloneBytes(body)}, nil
}

// Set creates or replaces one document.
func (m *Memory) Set(ctx context.Context, ref Ref, doc any) error {
	body, err := encodeDoc(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	before := m.docs[ref.Collection][ref.ID]
	if m.docs[ref.Collection] == nil {
		m.docs[ref.Collection] = make(map[string][]byte)
	}
	m.docs[ref.Collection][ref.ID] = body
	m.mu.Unlock()

	kind := EventCreated
	if before != nil {
		kind = EventUpdated
	}
	m.emit([]Event{{Kind: kind, Ref: ref, Before: before, After: body}})
	return nil
}

// Update merges fields into an existing document, or returns ErrNotFound.
func (m *Memory) Update(ctx context.Context, ref Ref, fields map[string]any) error {
	m.mu.Lock()
	before, ok := m.docs[ref.Collection][ref.ID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	after, err := applyFields(before, fields)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.docs[ref.Collection][ref.ID] = after
	m.mu.Unlock()

	m.emit([]Event{{Kind: EventUpdated, Ref: ref, Before: before, After: after}})
	return nil
}

// Delete removes one document. Missing documents are a no-op.
func (m *Memory) Delete(ctx context.Context, ref Ref) error {
	m.mu.Lock()
	before, ok := m.docs[ref.Collection][ref.ID]
	if ok {
		delete(m.docs[ref.Collection], ref.ID)
	}
	m.mu.Unlock()

	if ok {
		m.emit([]Event{{Kind: EventDeleted, Ref: ref, Before: before}})
	}
	return nil
}

// Query returns every document in the collection whose top-level field
// equals value, ordered by id.
func (m *Memory) Query(ctx context.Context, collection, field, value string) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var snaps []Snapshot
	for id, body := range m.docs[collection] {
		var doc map[string]any
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("malformed document %s/%s: %w", collection, id, err)
		}
		if s, ok := doc[field].(string); ok && s == value {
			snaps = append(snaps, Snapshot{
				Ref:  Ref{Collection: collection, ID: id},
				Data: cloneBytes(body),
			})
		}
	}
	sortSnaps(snaps)
	return snaps, nil
}

// List returns every document in the collection, ordered by id.
func (m *Memory) List(ctx context.Context, collection string) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var snaps []Snapshot
	for id, body := range m.docs[collection] {
		snaps = append(snaps, Snapshot{
			Ref:  Ref{Collection: collection, ID: id},
			Data: cloneBytes(body),
		})
	}
	sortSnaps(snaps)
	return snaps, nil
}

// Batch starts an empty write batch.
func (m *Memory) Batch() WriteBatch {
	return &memoryBatch{store: m}
}

type batchOp struct {
	kind   EventKind
	ref    Ref
	doc    []byte
	fields map[string]any
	err    error
}

type memoryBatch struct {
	store *Memory
	ops   []batchOp
}

func (b *memoryBatch) Set(ref Ref, doc any) {
	body, err := encodeDoc(doc)
	b.ops = append(b.ops, batchOp{kind: EventCreated, ref: ref, doc: body, err: err})
}

func (b *memoryBatch) Update(ref Ref, fields map[string]any) {
	b.ops = append(b.ops, batchOp{kind: EventUpdated, ref: ref, fields: fields})
}

func (b *memoryBatch) Delete(ref Ref) {
	b.ops = append(b.ops, batchOp{kind: EventDeleted, ref: ref})
}

func (b *memoryBatch) Len() int {
	return len(b.ops)
}

// Commit applies every queued operation atomically: all of them succeed or
// none is applied.
func (b *memoryBatch) Commit(ctx context.Context) error {
	if len(b.ops) > MaxBatchOps {
		return fmt.Errorf("batch holds %d operations, limit is %d", len(b.ops), MaxBatchOps)
	}

	m := b.store
	m.mu.Lock()

	// Validate before touching anything so a failed commit changes nothing.
	staged := make([][]byte, len(b.ops))
	for i, op := range b.ops {
		if op.err != nil {
			m.mu.Unlock()
			return op.err
		}
		before := m.docs[op.ref.Collection][op.ref.ID]
		switch op.kind {
		case EventCreated:
			staged[i] = op.doc
		case EventUpdated:
			if before == nil {
				m.mu.Unlock()
				return fmt.Errorf("update %s: %w", op.ref.Path(), ErrNotFound)
			}
			after, err := applyFields(before, op.fields)
			if err != nil {
				m.mu.Unlock()
				return err
			}
			staged[i] = after
		}
	}

	var events []Event
	for i, op := range b.ops {
		before := m.docs[op.ref.Collection][op.ref.ID]
		switch op.kind {
		case EventCreated:
			if m.docs[op.ref.Collection] == nil {
				m.docs[op.ref.Collection] = make(map[string][]byte)
			}
			m.docs[op.ref.Collection][op.ref.ID] = staged[i]
			kind := EventCreated
			if before != nil {
				kind = EventUpdated
			}
			events = append(events, Event{Kind: kind, Ref: op.ref, Before: before, After: staged[i]})
		case EventUpdated:
			// Earlier ops in this batch may have replaced the document,
			// so re-apply against the current body.
			after, err := applyFields(before, op.fields)
			if err != nil {
				m.mu.Unlock()
				return err
			}
			m.docs[op.ref.Collection][op.ref.ID] = after
			events = append(events, Event{Kind: EventUpdated, Ref: op.ref, Before: before, After: after})
		case EventDeleted:
			if before != nil {
				delete(m.docs[op.ref.Collection], op.ref.ID)
				events = append(events, Event{Kind: EventDeleted, Ref: op.ref, Before: before})
			}
		}
	}
	m.mu.Unlock()

	m.emit(events)
	return nil
}

func encodeDoc(doc any) ([]byte, error) {
	switch d := doc.(type) {
	case []byte:
		return cloneBytes(d), nil
	case json.RawMessage:
		return cloneBytes(d), nil
	default:
		body, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode document: %w", err)
		}
		return body, nil
	}
}

// applyFields merges an update into a document body. Incr values add their
// delta to the current numeric value, treating a missing field as zero.
func applyFields(body []byte, fields map[string]any) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("malformed document: %w", err)
	}
	for k, v := range fields {
		if inc, ok := v.(Incr); ok {
			base, _ := doc[k].(float64)
			doc[k] = base + float64(inc.Delta)
			continue
		}
		doc[k] = v
	}
	return json.Marshal(doc)
}

func sortSnaps(snaps []Snapshot) {
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Ref.ID < snaps[j].Ref.ID })
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
