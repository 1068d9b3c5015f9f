// internal/game/create.go

// Package game turns lobby challenges into persisted games and handles
// game cancellation. Move generation and rules live in an external engine;
// this package only snapshots its opaque state blobs.
package game

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/rechess/server/internal/httperr"
	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/store"
)

// CreateParams identifies the lobby slot to convert and who is asking.
type CreateParams struct {
	CallerID           string
	VariantID          string
	LobbySlotCreatorID string
}

// Create converts a filled lobby slot into a game document and returns the
// new game id.
//
// Sides are assigned from the slot's requested color, with a coin flip for
// "random". The game snapshot of the variant is immutable from here on:
// later edits or deletion of the variant do not touch it. The slot is not
// deleted — the game id is written back onto it, so a client still holding
// the slot can resolve it to the game it became.
func Create(ctx context.Context, st store.Store, p CreateParams) (string, error) {
	vSnap, err := st.Get(ctx, models.VariantRef(p.VariantID))
	if err == store.ErrNotFound {
		return "", httperr.NotFound("The variant does not exist.")
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch variant %s: %w", p.VariantID, err)
	}
	variant, err := models.DecodeVariant(vSnap)
	if err != nil {
		return "", err
	}

	// A stored configuration that does not parse is our data gone bad,
	// not the caller's mistake.
	state, err := models.ParseInitialState(variant.InitialState)
	if err != nil {
		return "", httperr.Internal("The variant has an invalid initial state.")
	}

	slotRef := models.LobbySlotRef(p.VariantID, p.LobbySlotCreatorID)
	slotSnap, err := st.Get(ctx, slotRef)
	if err == store.ErrNotFound {
		return "", httperr.NotFound("The lobby slot does not exist.")
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch lobby slot %s: %w", slotRef.Path(), err)
	}
	slot, err := models.DecodeLobbySlot(slotSnap)
	if err != nil {
		return "", err
	}

	if slot.GameDocID != nil {
		return "", httperr.InvalidArgument("The lobby slot already has a game.")
	}
	if slot.ChallengerID == nil {
		return "", httperr.InvalidArgument("The lobby slot does not have a challenger yet.")
	}
	if p.CallerID != p.LobbySlotCreatorID && p.CallerID != *slot.ChallengerID {
		return "", httperr.PermissionDenied("The function must be called by either the creator or the challenger of the lobby slot.")
	}

	creatorPlaysWhite := false
	switch slot.RequestedColor {
	case models.ColorWhite:
		creatorPlaysWhite = true
	case models.ColorBlack:
		creatorPlaysWhite = false
	case models.ColorRandom:
		creatorPlaysWhite = rand.Intn(2) == 0
	}

	creatorID := p.LobbySlotCreatorID
	challengerID := *slot.ChallengerID
	challengerName := ""
	if slot.ChallengerDisplayName != nil {
		challengerName = *slot.ChallengerDisplayName
	}

	g := models.Game{
		MoveHistory:    "",
		PlayerToMove:   state.FirstToMove(),
		Winner:         nil,
		VariantID:      p.VariantID,
		VariantName:    variant.Name,
		InitialState:   variant.InitialState,
		Players:        []string{creatorID, challengerID},
		TimeCreated:    time.Now().UnixMilli(),
		RequestedColor: slot.RequestedColor,
	}
	if creatorPlaysWhite {
		g.WhiteID = &creatorID
		g.WhiteDisplayName = slot.CreatorDisplayName
		g.BlackID = &challengerID
		g.BlackDisplayName = challengerName
	} else {
		g.WhiteID = &challengerID
		g.WhiteDisplayName = challengerName
		g.BlackID = &creatorID
		g.BlackDisplayName = slot.CreatorDisplayName
	}

	gameID := uuid.NewString()
	if err := st.Set(ctx, models.GameRef(gameID), g); err != nil {
		return "", fmt.Errorf("failed to create game: %w", err)
	}

	// Mark the slot terminal rather than deleting it.
	if err := st.Update(ctx, slotRef, map[string]any{"gameDocId": gameID}); err != nil {
		return "", fmt.Errorf("failed to link lobby slot to game %s: %w", gameID, err)
	}
	return gameID, nil
}
