// internal/game/cancel.go
package game

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rechess/server/internal/httperr"
	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/review"
	"github.com/rechess/server/internal/store"
)

// CancelParams identifies the game to cancel and who is asking.
type CancelParams struct {
	CallerID string
	GameID   string
	Reason   string
}

// Cancel moves a running game into the cancelledGames holding area for
// moderator review and deletes it from the live collection. Only a player
// of the game may cancel it. The review-queue push is best-effort: the
// holding-area copy is the durable record, the queue is just a nudge for
// the moderation tooling.
func Cancel(ctx context.Context, st store.Store, queue review.Queue, logger *logrus.Logger, p CancelParams) error {
	gameRef := models.GameRef(p.GameID)
	snap, err := st.Get(ctx, gameRef)
	if err == store.ErrNotFound {
		return httperr.NotFound("The game does not exist.")
	}
	if err != nil {
		return fmt.Errorf("failed to fetch game %s: %w", p.GameID, err)
	}
	g, err := models.DecodeGame(snap)
	if err != nil {
		return err
	}

	if !g.HasPlayer(p.CallerID) {
		return httperr.PermissionDenied("The function must be called by either the white or black player.")
	}

	cancelled := models.CancelledGame{
		Game:              *g,
		CancelledByUserID: p.CallerID,
		CancelReason:      p.Reason,
		CancelTime:        time.Now().UnixMilli(),
	}
	if err := st.Set(ctx, models.CancelledGameRef(p.GameID), cancelled); err != nil {
		return fmt.Errorf("failed to archive cancelled game %s: %w", p.GameID, err)
	}

	if queue != nil {
		rec := review.Record{
			GameID:            p.GameID,
			VariantID:         g.VariantID,
			CancelledByUserID: p.CallerID,
			Reason:            p.Reason,
			Timestamp:         cancelled.CancelTime,
		}
		if err := queue.Push(ctx, rec); err != nil {
			logger.WithError(err).WithField("game_id", p.GameID).Error("failed to queue cancelled game for review")
		}
	}

	if err := st.Delete(ctx, gameRef); err != nil {
		return fmt.Errorf("failed to delete cancelled game %s: %w", p.GameID, err)
	}
	return nil
}
