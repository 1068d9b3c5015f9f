// internal/models/variant.go
package models

import (
	"encoding/json"
	"fmt"

	"github.com/rechess/server/internal/store"
)

// Variant is the document at variants/{variantId}. CreatorID and
// CreatorDisplayName are denormalized copies of the author's identity; a
// nil CreatorID means the account is gone (as opposed to merely renamed).
type Variant struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	CreationTime       int64    `json:"creationTime"` // unix ms
	CreatorDisplayName string   `json:"creatorDisplayName"`
	CreatorID          *string  `json:"creatorId"`
	NumUpvotes         int      `json:"numUpvotes"`
	Popularity         int      `json:"popularity"`
	Tags               []string `json:"tags"`

	// InitialState is an opaque JSON blob produced by the rules engine.
	// It can be large, so it is stored as a string and only validated at
	// the point of read (see ParseInitialState).
	InitialState string `json:"initialState"`
}

// InitialState is the subset of the rules-engine state blob that the
// backend needs: which side moves first.
type InitialState struct {
	PlayerToMove *int `json:"playerToMove"` // 0 = white, 1 = black
}

// FirstToMove returns "white" or "black".
func (s *InitialState) FirstToMove() string {
	if *s.PlayerToMove == 1 {
		return "black"
	}
	return "white"
}

// ParseInitialState validates a variant's stored configuration blob. A
// blob that does not decode to a playable starting position means the
// stored variant is corrupt, which is a server-side problem rather than a
// caller error.
func ParseInitialState(raw string) (*InitialState, error) {
	var s InitialState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("initial state is not valid JSON: %w", err)
	}
	if s.PlayerToMove == nil {
		return nil, fmt.Errorf("initial state has no playerToMove")
	}
	if *s.PlayerToMove != 0 && *s.PlayerToMove != 1 {
		return nil, fmt.Errorf("initial state has invalid playerToMove %d", *s.PlayerToMove)
	}
	return &s, nil
}

// ModerationReport is one reporter's entry in a moderation document.
type ModerationReport struct {
	ReporterID string `json:"reporterId"`
	Reason     string `json:"reason"`
	Time       int64  `json:"time"` // unix ms
}

// ModerationDoc aggregates all reports against one variant or user, at
// variantModeration/{variantId} or userModeration/{userId}.
type ModerationDoc struct {
	Reports []ModerationReport `json:"reports"`
}

// BannedUserData is the content backup taken when a user is banned, at
// bannedUserData/{userId}.
type BannedUserData struct {
	User       User   `json:"user"`
	Email      string `json:"email"`
	TimeBanned int64  `json:"timeBanned"` // unix ms
}

const VariantsCollection = "variants"

func VariantRef(variantID string) store.Ref {
	return store.Ref{Collection: VariantsCollection, ID: variantID}
}

func VariantModerationRef(variantID string) store.Ref {
	return store.Ref{Collection: "variantModeration", ID: variantID}
}

func UserModerationRef(userID string) store.Ref {
	return store.Ref{Collection: "userModeration", ID: userID}
}

func BannedUserDataRef(userID string) store.Ref {
	return store.Ref{Collection: "bannedUserData", ID: userID}
}

// DecodeVariant parses a variant snapshot.
func DecodeVariant(snap store.Snapshot) (*Variant, error) {
	var v Variant
	if err := json.Unmarshal(snap.Data, &v); err != nil {
		return nil, fmt.Errorf("malformed variant document %s: %w", snap.Ref.Path(), err)
	}
	if v.Name == "" {
		return nil, fmt.Errorf("variant document %s has no name", snap.Ref.Path())
	}
	return &v, nil
}

// DecodeModeration parses a moderation snapshot.
func DecodeModeration(snap store.Snapshot) (*ModerationDoc, error) {
	var m ModerationDoc
	if err := json.Unmarshal(snap.Data, &m); err != nil {
		return nil, fmt.Errorf("malformed moderation document %s: %w", snap.Ref.Path(), err)
	}
	return &m, nil
}
