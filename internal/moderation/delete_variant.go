// internal/moderation/delete_variant.go

// Package moderation orchestrates the multi-collection deletion and ban
// cascades. The store offers no cross-collection transactions, so every
// cascade is an ordered sequence of independently committing steps, each of
// which is safe to re-run.
package moderation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rechess/server/internal/index"
	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/store"
)

// DeleteVariant removes a variant, every game played on it, its moderation
// record and its index row, in that order. It is idempotent: a variant
// that is already gone (or was never there) succeeds trivially, so the
// wipe cascade can call it repeatedly without checking.
func DeleteVariant(ctx context.Context, st store.Store, logger *logrus.Logger, variantID string) error {
	games, err := st.Query(ctx, models.GamesCollection, "variantId", variantID)
	if err != nil {
		return fmt.Errorf("failed to query games of variant %s: %w", variantID, err)
	}
	err = store.BatchedUpdate(ctx, st, store.Refs(games), func(b store.WriteBatch, ref store.Ref) {
		b.Delete(ref)
	})
	if err != nil {
		return fmt.Errorf("failed to delete games of variant %s: %w", variantID, err)
	}

	if err := st.Delete(ctx, models.VariantRef(variantID)); err != nil {
		return fmt.Errorf("failed to delete variant %s: %w", variantID, err)
	}
	if err := st.Delete(ctx, models.VariantModerationRef(variantID)); err != nil {
		return fmt.Errorf("failed to delete moderation record of variant %s: %w", variantID, err)
	}

	return index.Remove(ctx, st, logger, variantID)
}
