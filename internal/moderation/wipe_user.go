// internal/moderation/wipe_user.go
package moderation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rechess/server/internal/blob"
	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/store"
)

// WipeUser removes every trace of a user's content:
//
//  1. capture the ids of the variants they authored — the ban below nulls
//     the creator linkage, so this must happen first;
//  2. ban the user (the step most likely to fail, so it runs before any
//     content is destroyed);
//  3. delete each captured variant, including its games and index row;
//  4. discard the user's own report entries on variants and on other
//     users, leaving other reporters' entries alone;
//  5. drop the content backup and the profile-image blob. A missing blob
//     is tolerated; any other storage failure surfaces.
//
// The user's upvote records are left in place. Every step converges when
// re-run, so a partially completed wipe can simply be invoked again.
func WipeUser(ctx context.Context, st store.Store, blobs blob.Store, logger *logrus.Logger, userID string) error {
	authored, err := st.Query(ctx, models.VariantsCollection, "creatorId", userID)
	if err != nil {
		return fmt.Errorf("failed to query variants of %s: %w", userID, err)
	}
	variantIDs := make([]string, len(authored))
	for i, snap := range authored {
		variantIDs[i] = snap.Ref.ID
	}

	if err := BanUser(ctx, st, userID); err != nil {
		return err
	}

	for _, id := range variantIDs {
		if err := DeleteVariant(ctx, st, logger, id); err != nil {
			return err
		}
	}

	if err := discardOwnReports(ctx, st, userID); err != nil {
		return err
	}

	return removeUserBackup(ctx, st, blobs, userID)
}

// discardOwnReports removes the user's report entries from every variant
// and user they had reported.
func discardOwnReports(ctx context.Context, st store.Store, userID string) error {
	reportedVariants, err := st.List(ctx, models.ReportedVariantsCollection(userID))
	if err != nil {
		return fmt.Errorf("failed to list reported variants of %s: %w", userID, err)
	}
	for _, snap := range reportedVariants {
		if err := DiscardVariantReports(ctx, st, snap.Ref.ID, []string{userID}); err != nil {
			return err
		}
	}

	reportedUsers, err := st.List(ctx, models.ReportedUsersCollection(userID))
	if err != nil {
		return fmt.Errorf("failed to list reported users of %s: %w", userID, err)
	}
	for _, snap := range reportedUsers {
		if err := DiscardUserReports(ctx, st, snap.Ref.ID, []string{userID}); err != nil {
			return err
		}
	}
	return nil
}

func removeUserBackup(ctx context.Context, st store.Store, blobs blob.Store, userID string) error {
	if err := st.Delete(ctx, models.BannedUserDataRef(userID)); err != nil {
		return fmt.Errorf("failed to delete backup of %s: %w", userID, err)
	}

	err := blobs.Delete(ctx, blob.ProfileImageKey(userID))
	if err != nil && err != blob.ErrNotFound {
		return fmt.Errorf("failed to delete profile image of %s: %w", userID, err)
	}
	return nil
}
