// internal/upvotes/upvotes.go

// Package upvotes keeps the upvote counter on a variant and the voter's
// private cache in sync. The counter is a best-effort aggregate; the cache
// is the source of truth for "did I upvote this", so a counter failure is
// logged and swallowed while a cache failure is surfaced.
package upvotes

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/store"
)

// Increment counts an upvote: +1 on the variant (fire-and-forget), then
// the voter's cache record, awaited.
func Increment(ctx context.Context, st store.Store, logger *logrus.Logger, variantID, voterID string) error {
	bump(ctx, st, logger, variantID, voterID, 1)

	rec := models.UpvoteRecord{TimeUpvoted: time.Now().UnixMilli()}
	if err := st.Set(ctx, models.UpvotedVariantRef(voterID, variantID), rec); err != nil {
		return fmt.Errorf("failed to update upvote cache of %s: %w", voterID, err)
	}
	return nil
}

// Decrement undoes an upvote: -1 on the variant (fire-and-forget), then
// removal of the voter's cache record, awaited.
func Decrement(ctx context.Context, st store.Store, logger *logrus.Logger, variantID, voterID string) error {
	bump(ctx, st, logger, variantID, voterID, -1)

	if err := st.Delete(ctx, models.UpvotedVariantRef(voterID, variantID)); err != nil {
		return fmt.Errorf("failed to clear upvote cache of %s: %w", voterID, err)
	}
	return nil
}

// HasUpvoted reports whether the voter's cache holds a record for the
// variant.
func HasUpvoted(ctx context.Context, st store.Store, variantID, voterID string) (bool, error) {
	_, err := st.Get(ctx, models.UpvotedVariantRef(voterID, variantID))
	if err == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func bump(ctx context.Context, st store.Store, logger *logrus.Logger, variantID, voterID string, delta int64) {
	err := st.Update(ctx, models.VariantRef(variantID), map[string]any{
		"numUpvotes": store.Increment(delta),
	})
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"variant_id": variantID,
			"voter_id":   voterID,
		}).Error("error while updating upvote counter")
	}
}
