// internal/denorm/rename.go

// Package denorm propagates a user's display name into every denormalized
// copy across the database.
package denorm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rechess/server/internal/events"
	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/store"
)

// RenameCooldown is how long a user must wait between display-name
// changes.
const RenameCooldown = 24 * time.Hour

// HandleUserWrite is the users.updated trigger. It is a pure function of
// (before, after): when the name did not change it does nothing, which is
// what terminates the retrigger loop below — the cooldown write at the end
// fires this handler again with an unchanged name.
func HandleUserWrite(ctx context.Context, st store.Store, ev events.DocEvent) error {
	var before, after models.User
	if err := json.Unmarshal(ev.Before, &before); err != nil {
		return fmt.Errorf("malformed user document %s (before): %w", ev.ID, err)
	}
	if err := json.Unmarshal(ev.After, &after); err != nil {
		return fmt.Errorf("malformed user document %s (after): %w", ev.ID, err)
	}
	if sameName(before.Name, after.Name) {
		return nil
	}

	if err := UpdateName(ctx, st, ev.ID, after.DisplayName(), false); err != nil {
		return err
	}

	// Rate-limit further renames. This write re-fires the trigger, which
	// short-circuits on the name check above.
	allowedAt := time.Now().Add(RenameCooldown).UnixMilli()
	if err := st.Update(ctx, models.UserRef(ev.ID), map[string]any{"renameAllowedAt": allowedAt}); err != nil {
		return fmt.Errorf("failed to set rename cooldown for %s: %w", ev.ID, err)
	}
	return nil
}

// UpdateName rewrites the user's display name in every denormalized copy:
// the variants they authored and the games they played on either side.
// The three fan-outs touch disjoint collections, so their order does not
// matter, and re-running any of them writes the same values again, which
// keeps the whole operation safe under redelivery. With removeID the
// identity reference is nulled as well, marking the account as gone rather
// than renamed.
func UpdateName(ctx context.Context, st store.Store, userID, newName string, removeID bool) error {
	var idValue any = userID
	if removeID {
		idValue = nil
	}

	variants, err := st.Query(ctx, models.VariantsCollection, "creatorId", userID)
	if err != nil {
		return fmt.Errorf("failed to query variants of %s: %w", userID, err)
	}
	err = store.BatchedUpdate(ctx, st, store.Refs(variants), func(b store.WriteBatch, ref store.Ref) {
		b.Update(ref, map[string]any{
			"creatorDisplayName": newName,
			"creatorId":          idValue,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to update variants of %s: %w", userID, err)
	}

	gamesWhite, err := st.Query(ctx, models.GamesCollection, "whiteId", userID)
	if err != nil {
		return fmt.Errorf("failed to query white games of %s: %w", userID, err)
	}
	err = store.BatchedUpdate(ctx, st, store.Refs(gamesWhite), func(b store.WriteBatch, ref store.Ref) {
		b.Update(ref, map[string]any{
			"whiteDisplayName": newName,
			"whiteId":          idValue,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to update white games of %s: %w", userID, err)
	}

	gamesBlack, err := st.Query(ctx, models.GamesCollection, "blackId", userID)
	if err != nil {
		return fmt.Errorf("failed to query black games of %s: %w", userID, err)
	}
	err = store.BatchedUpdate(ctx, st, store.Refs(gamesBlack), func(b store.WriteBatch, ref store.Ref) {
		b.Update(ref, map[string]any{
			"blackDisplayName": newName,
			"blackId":          idValue,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to update black games of %s: %w", userID, err)
	}
	return nil
}

func sameName(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
