package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
)

// countingStore records how many batches are committed.
type countingStore struct {
	*Memory
	commits int
}

func (c *countingStore) Batch() WriteBatch {
	c.commits++
	return c.Memory.Batch()
}

func TestBatchedUpdateChunks(t *testing.T) {
	ctx := context.Background()
	cs := &countingStore{Memory: NewMemory()}

	const n = 1200
	refs := make([]Ref, 0, n)
	for i := 0; i < n; i++ {
		ref := Ref{Collection: "games", ID: fmt.Sprintf("g%04d", i)}
		if err := cs.Set(ctx, ref, map[string]any{"touched": 0}); err != nil {
			t.Fatalf("seed: %v", err)
		}
		refs = append(refs, ref)
	}

	err := BatchedUpdate(ctx, cs, refs, func(b WriteBatch, ref Ref) {
		b.Update(ref, map[string]any{"touched": Increment(1)})
	})
	if err != nil {
		t.Fatalf("batched update: %v", err)
	}

	if cs.commits != 3 {
		t.Fatalf("expected 3 chunks for %d refs, got %d", n, cs.commits)
	}
	for _, ref := range refs {
		snap, err := cs.Get(ctx, ref)
		if err != nil {
			t.Fatalf("get %s: %v", ref.Path(), err)
		}
		var doc map[string]float64
		json.Unmarshal(snap.Data, &doc)
		if doc["touched"] != 1 {
			t.Fatalf("doc %s mutated %v times", ref.Path(), doc["touched"])
		}
	}
}

func TestBatchedUpdateEmpty(t *testing.T) {
	cs := &countingStore{Memory: NewMemory()}
	err := BatchedUpdate(context.Background(), cs, nil, func(b WriteBatch, ref Ref) {
		b.Delete(ref)
	})
	if err != nil {
		t.Fatalf("batched update over nothing: %v", err)
	}
	if cs.commits != 0 {
		t.Fatalf("expected no commits, got %d", cs.commits)
	}
}
