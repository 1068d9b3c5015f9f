// internal/models/game.go
package models

import (
	"encoding/json"
	"fmt"

	"github.com/rechess/server/internal/store"
)

// Game is the document at games/{gameId}. The variant fields are an
// immutable snapshot taken at creation time, not a live reference: deleting
// or editing the variant later does not touch finished games. The player
// display-name fields are only ever rewritten by rename propagation.
type Game struct {
	MoveHistory  string  `json:"moveHistory"`
	PlayerToMove string  `json:"playerToMove"` // "white" or "black"
	Winner       *string `json:"winner"`       // "white", "black" or "draw"; nil while running

	VariantID    string `json:"variantId"`
	VariantName  string `json:"variantName"`
	InitialState string `json:"initialState"`

	WhiteID          *string `json:"whiteId"`
	WhiteDisplayName string  `json:"whiteDisplayName"`
	BlackID          *string `json:"blackId"`
	BlackDisplayName string  `json:"blackDisplayName"`

	Players          []string       `json:"players"`
	TimeCreated      int64          `json:"timeCreated"` // unix ms
	RequestedColor   RequestedColor `json:"requestedColor"`
	CalledFinishGame bool           `json:"calledFinishGame"`
}

// HasPlayer reports whether the user plays either side of the game.
func (g *Game) HasPlayer(userID string) bool {
	return (g.WhiteID != nil && *g.WhiteID == userID) ||
		(g.BlackID != nil && *g.BlackID == userID)
}

// CancelledGame is a game moved to the cancelledGames holding area for
// moderator review.
type CancelledGame struct {
	Game
	CancelledByUserID string `json:"cancelledByUserId"`
	CancelReason      string `json:"cancelReason"`
	CancelTime        int64  `json:"cancelTime"` // unix ms
}

const (
	GamesCollection          = "games"
	CancelledGamesCollection = "cancelledGames"
)

func GameRef(gameID string) store.Ref {
	return store.Ref{Collection: GamesCollection, ID: gameID}
}

func CancelledGameRef(gameID string) store.Ref {
	return store.Ref{Collection: CancelledGamesCollection, ID: gameID}
}

// DecodeGame parses a game snapshot.
func DecodeGame(snap store.Snapshot) (*Game, error) {
	var g Game
	if err := json.Unmarshal(snap.Data, &g); err != nil {
		return nil, fmt.Errorf("malformed game document %s: %w", snap.Ref.Path(), err)
	}
	if g.VariantID == "" {
		return nil, fmt.Errorf("game document %s has no variant snapshot", snap.Ref.Path())
	}
	return &g, nil
}
