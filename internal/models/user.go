package models

import (
	"encoding/json"
	"fmt"

	"github.com/rechess/server/internal/store"
)

// User is the public profile document at users/{userId}. Name is the
// mutable display name; a nil name renders as "@username". Username never
// changes after signup.
type User struct {
	Name            *string `json:"name"`
	About           string  `json:"about"`
	ProfileImg      *string `json:"profileImg"`
	Username        string  `json:"username"`
	NumWins         int     `json:"numWins"`
	RenameAllowedAt *int64  `json:"renameAllowedAt"` // unix ms, nil = may rename now
}

// DisplayName resolves the name shown to other players.
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return "@" + u.Username
}

// UserPrivate is the private document at users/{userId}/private/doc.
type UserPrivate struct {
	Email     string `json:"email"`
	Hash      string `json:"hash,omitempty"`
	Banned    bool   `json:"banned"`
	Moderator bool   `json:"moderator,omitempty"`
}

// Username reserves a username at usernames/{username}; its presence makes
// the name unavailable to new signups.
type Username struct {
	UserID string `json:"userId"`
}

// UpvoteRecord lives at users/{userId}/upvotedVariants/{variantId}. It is
// the source of truth for "did I upvote this"; the counter on the variant
// is only a best-effort aggregate.
type UpvoteRecord struct {
	TimeUpvoted int64 `json:"timeUpvoted"` // unix ms
}

// ReportRecord lives at users/{userId}/reportedVariants/{variantId} or
// users/{userId}/reportedUsers/{reportedId}, tracking what this user has
// reported.
type ReportRecord struct {
	Reason string `json:"reason"`
	Time   int64  `json:"time"` // unix ms
}

func UserRef(userID string) store.Ref {
	return store.Ref{Collection: "users", ID: userID}
}

func UserPrivateRef(userID string) store.Ref {
	return store.Ref{Collection: "users/" + userID + "/private", ID: "doc"}
}

func UsernameRef(username string) store.Ref {
	return store.Ref{Collection: "usernames", ID: username}
}

// UpvotedVariantsCollection is the per-user upvote cache collection.
func UpvotedVariantsCollection(userID string) string {
	return "users/" + userID + "/upvotedVariants"
}

func UpvotedVariantRef(userID, variantID string) store.Ref {
	return store.Ref{Collection: UpvotedVariantsCollection(userID), ID: variantID}
}

func ReportedVariantsCollection(userID string) string {
	return "users/" + userID + "/reportedVariants"
}

func ReportedVariantRef(userID, variantID string) store.Ref {
	return store.Ref{Collection: ReportedVariantsCollection(userID), ID: variantID}
}

func ReportedUsersCollection(userID string) string {
	return "users/" + userID + "/reportedUsers"
}

func ReportedUserRef(userID, reportedID string) store.Ref {
	return store.Ref{Collection: ReportedUsersCollection(userID), ID: reportedID}
}

// DecodeUserPrivate parses a private user snapshot.
func DecodeUserPrivate(snap store.Snapshot) (*UserPrivate, error) {
	var p UserPrivate
	if err := json.Unmarshal(snap.Data, &p); err != nil {
		return nil, fmt.Errorf("malformed private user document %s: %w", snap.Ref.Path(), err)
	}
	return &p, nil
}

// DecodeUser parses a user snapshot, rejecting documents that fail the
// schema-on-read checks.
func DecodeUser(snap store.Snapshot) (*User, error) {
	var u User
	if err := json.Unmarshal(snap.Data, &u); err != nil {
		return nil, fmt.Errorf("malformed user document %s: %w", snap.Ref.Path(), err)
	}
	if u.Username == "" {
		return nil, fmt.Errorf("user document %s has no username", snap.Ref.Path())
	}
	return &u, nil
}
