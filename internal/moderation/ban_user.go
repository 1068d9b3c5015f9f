// internal/moderation/ban_user.go
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/rechess/server/internal/denorm"
	"github.com/rechess/server/internal/httperr"
	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/store"
)

// DeletedUserName is the display name written into denormalized copies
// when an account is removed.
const DeletedUserName = "[deleted]"

// BanUser backs the user's content up into bannedUserData, marks the
// account banned, frees the username for reuse and scrubs the public
// profile, nulling the denormalized identity references so readers can
// tell "account gone" from "renamed". Banning an already banned user
// converges to the same state. This is the cascade step most likely to
// fail validation, which is why WipeUser runs it before removing content.
func BanUser(ctx context.Context, st store.Store, userID string) error {
	snap, err := st.Get(ctx, models.UserRef(userID))
	if err == store.ErrNotFound {
		return httperr.NotFound("The user to be banned does not exist.")
	}
	if err != nil {
		return fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}
	user, err := models.DecodeUser(snap)
	if err != nil {
		return err
	}

	var priv models.UserPrivate
	if privSnap, err := st.Get(ctx, models.UserPrivateRef(userID)); err == nil {
		if decoded, err := models.DecodeUserPrivate(privSnap); err == nil {
			priv = *decoded
		}
	}

	// Only back up once. On a retried ban the profile has already been
	// scrubbed, and overwriting the backup would lose the original data.
	if _, err := st.Get(ctx, models.BannedUserDataRef(userID)); err == store.ErrNotFound {
		backup := models.BannedUserData{
			User:       *user,
			Email:      priv.Email,
			TimeBanned: time.Now().UnixMilli(),
		}
		if err := st.Set(ctx, models.BannedUserDataRef(userID), backup); err != nil {
			return fmt.Errorf("failed to back up user %s: %w", userID, err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to check backup of %s: %w", userID, err)
	}

	priv.Banned = true
	if err := st.Set(ctx, models.UserPrivateRef(userID), priv); err != nil {
		return fmt.Errorf("failed to mark user %s banned: %w", userID, err)
	}

	// Free the username so the handle is not squatted by a banned account.
	if err := st.Delete(ctx, models.UsernameRef(user.Username)); err != nil {
		return fmt.Errorf("failed to release username %s: %w", user.Username, err)
	}

	deleted := DeletedUserName
	if err := st.Update(ctx, models.UserRef(userID), map[string]any{
		"name":       deleted,
		"about":      "",
		"profileImg": nil,
	}); err != nil {
		return fmt.Errorf("failed to scrub profile of %s: %w", userID, err)
	}

	return denorm.UpdateName(ctx, st, userID, deleted, true)
}
