// internal/models/lobby.go
package models

import (
	"encoding/json"
	"fmt"

	"github.com/rechess/server/internal/store"
)

// RequestedColor is the side the slot creator asked to play.
type RequestedColor string

const (
	ColorWhite  RequestedColor = "white"
	ColorBlack  RequestedColor = "black"
	ColorRandom RequestedColor = "random"
)

// Valid reports whether the value is one of the three allowed colors.
func (c RequestedColor) Valid() bool {
	return c == ColorWhite || c == ColorBlack || c == ColorRandom
}

// LobbySlot is a pending challenge at variants/{variantId}/lobby/{creatorId}.
// The document id is the creator's user id, which enforces at most one slot
// per (variant, creator). ChallengerID stays nil until someone accepts; once
// GameDocID is set the slot is terminal and only resolves to its game.
type LobbySlot struct {
	CreatorDisplayName    string         `json:"creatorDisplayName"`
	RequestedColor        RequestedColor `json:"requestedColor"`
	TimeCreated           int64          `json:"timeCreated"` // unix ms
	ChallengerID          *string        `json:"challengerId"`
	ChallengerDisplayName *string        `json:"challengerDisplayName"`
	GameDocID             *string        `json:"gameDocId"`
}

// LobbyCollection is the lobby subcollection path of one variant.
func LobbyCollection(variantID string) string {
	return VariantsCollection + "/" + variantID + "/lobby"
}

func LobbySlotRef(variantID, creatorID string) store.Ref {
	return store.Ref{Collection: LobbyCollection(variantID), ID: creatorID}
}

// DecodeLobbySlot parses a lobby slot snapshot.
func DecodeLobbySlot(snap store.Snapshot) (*LobbySlot, error) {
	var s LobbySlot
	if err := json.Unmarshal(snap.Data, &s); err != nil {
		return nil, fmt.Errorf("malformed lobby slot document %s: %w", snap.Ref.Path(), err)
	}
	if !s.RequestedColor.Valid() {
		return nil, fmt.Errorf("lobby slot document %s has invalid requested color %q", snap.Ref.Path(), s.RequestedColor)
	}
	return &s, nil
}
