// internal/triggers/triggers.go

// Package triggers wires the reactive handlers onto the document event
// bus. Every handler here must tolerate redelivery: the bus is
// at-least-once and a nacked message comes back.
package triggers

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rechess/server/internal/denorm"
	"github.com/rechess/server/internal/events"
	"github.com/rechess/server/internal/index"
	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/store"
)

// LobbyPopularityWeight is how many popularity points one open lobby slot
// is worth: added when a slot appears, taken back when it goes away.
const LobbyPopularityWeight = 3

// Register subscribes every trigger handler.
func Register(ctx context.Context, bus *events.Bus, st store.Store, logger *logrus.Logger) error {
	subs := map[string]events.Handler{
		"users.updated": func(ctx context.Context, ev events.DocEvent) error {
			return denorm.HandleUserWrite(ctx, st, ev)
		},
		"variants.created": func(ctx context.Context, ev events.DocEvent) error {
			return handleVariantCreated(ctx, st, ev)
		},
		"variants.lobby.created": func(ctx context.Context, ev events.DocEvent) error {
			return handleLobbySlotChange(ctx, st, logger, ev, LobbyPopularityWeight)
		},
		"variants.lobby.deleted": func(ctx context.Context, ev events.DocEvent) error {
			return handleLobbySlotChange(ctx, st, logger, ev, -LobbyPopularityWeight)
		},
	}
	for topic, h := range subs {
		if err := bus.Subscribe(ctx, topic, h); err != nil {
			return err
		}
	}
	return nil
}

// handleVariantCreated appends the new variant to the index. index.Add
// replaces an existing row for the same id, so redelivery converges.
func handleVariantCreated(ctx context.Context, st store.Store, ev events.DocEvent) error {
	v, err := models.DecodeVariant(store.Snapshot{Ref: ev.Ref(), Data: ev.After})
	if err != nil {
		return err
	}
	return index.Add(ctx, st, ev.ID, v.Name, v.Description)
}

// handleLobbySlotChange adjusts the parent variant's popularity. This is a
// best-effort counter: if the variant is gone (deleted under the slot) the
// failure is logged and the event is still acked.
func handleLobbySlotChange(ctx context.Context, st store.Store, logger *logrus.Logger, ev events.DocEvent, delta int64) error {
	variantID, err := lobbyParentVariant(ev.Collection)
	if err != nil {
		logger.WithError(err).Error("cannot resolve lobby slot parent")
		return nil
	}

	err = st.Update(ctx, models.VariantRef(variantID), map[string]any{
		"popularity": store.Increment(delta),
	})
	if err != nil {
		logger.WithError(err).WithField("variant_id", variantID).Error("cannot update variant popularity")
	}
	return nil
}

// lobbyParentVariant extracts the variant id from a lobby collection path
// like "variants/abc123/lobby".
func lobbyParentVariant(collection string) (string, error) {
	segs := strings.Split(collection, "/")
	if len(segs) != 3 || segs[0] != models.VariantsCollection || segs[2] != "lobby" {
		return "", fmt.Errorf("unexpected lobby collection path %q", collection)
	}
	return segs[1], nil
}
