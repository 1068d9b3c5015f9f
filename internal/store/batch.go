// internal/store/batch.go
package store

import (
	"context"
	"fmt"
)

// BatchedUpdate applies fn to every ref, splitting the work into chunks of
// at most MaxBatchOps so no single commit exceeds the store's batch
// ceiling. Each chunk commits atomically; chunks are independent of each
// other, so a failure mid-way leaves earlier chunks applied. Callers must
// therefore make fn idempotent: re-running the same mutation over already
// updated documents has to be harmless. The first failing chunk aborts the
// remaining ones.
func BatchedUpdate(ctx context.Context, s Store, refs []Ref, fn func(b WriteBatch, ref Ref)) error {
	for start := 0; start < len(refs); start += MaxBatchOps {
		end := start + MaxBatchOps
		if end > len(refs) {
			end = len(refs)
		}

		b := s.Batch()
		for _, ref := range refs[start:end] {
			fn(b, ref)
		}
		if err := b.Commit(ctx); err != nil {
			return fmt.Errorf("batched update chunk %d-%d: %w", start, end, err)
		}
	}
	return nil
}
