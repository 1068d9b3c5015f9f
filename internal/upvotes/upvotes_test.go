package upvotes

import (
	"context"
	"errors"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/store"
)

// brokenCounterStore fails every Update, simulating a variant doc that
// cannot take the counter write.
type brokenCounterStore struct {
	store.Store
}

func (b *brokenCounterStore) Update(ctx context.Context, ref store.Ref, fields map[string]any) error {
	return errors.New("update refused")
}

func numUpvotes(t *testing.T, st store.Store, variantID string) int {
	t.Helper()
	snap, err := st.Get(context.Background(), models.VariantRef(variantID))
	if err != nil {
		t.Fatalf("get variant: %v", err)
	}
	v, err := models.DecodeVariant(snap)
	if err != nil {
		t.Fatalf("decode variant: %v", err)
	}
	return v.NumUpvotes
}

func TestIncrementDecrement(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	logger, _ := logtest.NewNullLogger()

	m.Set(ctx, models.VariantRef("v1"), models.Variant{Name: "Atomic"})

	if err := Increment(ctx, m, logger, "v1", "u1"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if n := numUpvotes(t, m, "v1"); n != 1 {
		t.Fatalf("counter after increment: %d", n)
	}
	if up, _ := HasUpvoted(ctx, m, "v1", "u1"); !up {
		t.Fatalf("cache record missing after increment")
	}

	if err := Decrement(ctx, m, logger, "v1", "u1"); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if n := numUpvotes(t, m, "v1"); n != 0 {
		t.Fatalf("counter after decrement: %d", n)
	}
	if up, _ := HasUpvoted(ctx, m, "v1", "u1"); up {
		t.Fatalf("cache record still present after decrement")
	}
}

func TestCounterFailureStillWritesCache(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	logger, hook := logtest.NewNullLogger()

	broken := &brokenCounterStore{Store: m}

	if err := Increment(ctx, broken, logger, "v1", "u1"); err != nil {
		t.Fatalf("increment must swallow the counter failure: %v", err)
	}
	if up, _ := HasUpvoted(ctx, m, "v1", "u1"); !up {
		t.Fatalf("cache record missing despite successful call")
	}
	if hook.LastEntry() == nil {
		t.Fatalf("counter failure was not logged")
	}
}

func TestHasUpvotedWithoutRecord(t *testing.T) {
	m := store.NewMemory()
	up, err := HasUpvoted(context.Background(), m, "v1", "u1")
	if err != nil {
		t.Fatalf("has upvoted: %v", err)
	}
	if up {
		t.Fatalf("expected false for missing record")
	}
}
