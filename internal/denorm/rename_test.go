package denorm

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rechess/server/internal/events"
	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/store"
)

func seedUser(t *testing.T, st store.Store, userID, username string, name *string) {
	t.Helper()
	err := st.Set(context.Background(), models.UserRef(userID), models.User{Username: username, Name: name})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func seedVariant(t *testing.T, st store.Store, variantID, creatorID, creatorName string) {
	t.Helper()
	err := st.Set(context.Background(), models.VariantRef(variantID), models.Variant{
		Name:               "v-" + variantID,
		CreatorID:          &creatorID,
		CreatorDisplayName: creatorName,
	})
	if err != nil {
		t.Fatalf("seed variant: %v", err)
	}
}

func seedGame(t *testing.T, st store.Store, gameID, whiteID, blackID string) {
	t.Helper()
	err := st.Set(context.Background(), models.GameRef(gameID), models.Game{
		VariantID:        "v1",
		VariantName:      "Horde",
		WhiteID:          &whiteID,
		WhiteDisplayName: "old-white",
		BlackID:          &blackID,
		BlackDisplayName: "old-black",
		Players:          []string{whiteID, blackID},
	})
	if err != nil {
		t.Fatalf("seed game: %v", err)
	}
}

func getVariant(t *testing.T, st store.Store, variantID string) *models.Variant {
	t.Helper()
	snap, err := st.Get(context.Background(), models.VariantRef(variantID))
	if err != nil {
		t.Fatalf("get variant: %v", err)
	}
	v, err := models.DecodeVariant(snap)
	if err != nil {
		t.Fatalf("decode variant: %v", err)
	}
	return v
}

func getGame(t *testing.T, st store.Store, gameID string) *models.Game {
	t.Helper()
	snap, err := st.Get(context.Background(), models.GameRef(gameID))
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	g, err := models.DecodeGame(snap)
	if err != nil {
		t.Fatalf("decode game: %v", err)
	}
	return g
}

func TestUpdateNamePropagates(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	seedVariant(t, m, "v1", "u1", "old")
	seedVariant(t, m, "v2", "u1", "old")
	seedVariant(t, m, "other", "u2", "someone else")
	seedGame(t, m, "g1", "u1", "u2")
	seedGame(t, m, "g2", "u2", "u1")

	if err := UpdateName(ctx, m, "u1", "Anna", false); err != nil {
		t.Fatalf("update name: %v", err)
	}

	if v := getVariant(t, m, "v1"); v.CreatorDisplayName != "Anna" || v.CreatorID == nil {
		t.Fatalf("v1 not updated: %+v", v)
	}
	if v := getVariant(t, m, "other"); v.CreatorDisplayName != "someone else" {
		t.Fatalf("unrelated variant touched: %+v", v)
	}
	if g := getGame(t, m, "g1"); g.WhiteDisplayName != "Anna" || g.BlackDisplayName != "old-black" {
		t.Fatalf("g1 white side not updated: %+v", g)
	}
	if g := getGame(t, m, "g2"); g.BlackDisplayName != "Anna" || g.WhiteDisplayName != "old-white" {
		t.Fatalf("g2 black side not updated: %+v", g)
	}
}

func TestUpdateNameRemoveID(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	seedVariant(t, m, "v1", "u1", "old")
	seedGame(t, m, "g1", "u1", "u2")

	if err := UpdateName(ctx, m, "u1", "[deleted]", true); err != nil {
		t.Fatalf("update name: %v", err)
	}

	if v := getVariant(t, m, "v1"); v.CreatorID != nil || v.CreatorDisplayName != "[deleted]" {
		t.Fatalf("creator id not removed: %+v", v)
	}
	if g := getGame(t, m, "g1"); g.WhiteID != nil || g.WhiteDisplayName != "[deleted]" {
		t.Fatalf("white id not removed: %+v", g)
	}
}

func TestUpdateNameIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	seedVariant(t, m, "v1", "u1", "old")
	seedGame(t, m, "g1", "u1", "u2")

	if err := UpdateName(ctx, m, "u1", "Anna", false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := UpdateName(ctx, m, "u1", "Anna", false); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if v := getVariant(t, m, "v1"); v.CreatorDisplayName != "Anna" {
		t.Fatalf("unexpected end state: %+v", v)
	}
}

func userEvent(t *testing.T, userID string, before, after models.User) events.DocEvent {
	t.Helper()
	b, err := json.Marshal(before)
	if err != nil {
		t.Fatalf("marshal before: %v", err)
	}
	a, err := json.Marshal(after)
	if err != nil {
		t.Fatalf("marshal after: %v", err)
	}
	return events.DocEvent{
		Kind:       string(store.EventUpdated),
		Collection: "users",
		ID:         userID,
		Before:     b,
		After:      a,
	}
}

func strPtr(s string) *string { return &s }

func TestHandleUserWriteRenames(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	seedUser(t, m, "u1", "magnus", strPtr("Anna"))
	seedVariant(t, m, "v1", "u1", "old")

	ev := userEvent(t, "u1",
		models.User{Username: "magnus", Name: strPtr("old")},
		models.User{Username: "magnus", Name: strPtr("Anna")},
	)
	if err := HandleUserWrite(ctx, m, ev); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if v := getVariant(t, m, "v1"); v.CreatorDisplayName != "Anna" {
		t.Fatalf("rename not propagated: %+v", v)
	}

	// cooldown stamped on the profile
	snap, _ := m.Get(ctx, models.UserRef("u1"))
	u, err := models.DecodeUser(snap)
	if err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if u.RenameAllowedAt == nil {
		t.Fatalf("cooldown not written")
	}
	if *u.RenameAllowedAt <= time.Now().UnixMilli() {
		t.Fatalf("cooldown is not in the future: %d", *u.RenameAllowedAt)
	}
}

func TestHandleUserWriteSameNameIsNoop(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	var writes int
	m.OnEvent = func(store.Event) { writes++ }

	ev := userEvent(t, "u1",
		models.User{Username: "magnus", Name: strPtr("Anna")},
		models.User{Username: "magnus", Name: strPtr("Anna"), RenameAllowedAt: strInt64(99)},
	)
	if err := HandleUserWrite(ctx, m, ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if writes != 0 {
		t.Fatalf("no-op rename performed %d writes", writes)
	}
}

func TestHandleUserWriteNilNames(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	seedUser(t, m, "u1", "magnus", nil)
	seedVariant(t, m, "v1", "u1", "old")

	// clearing the name falls back to the @username form
	ev := userEvent(t, "u1",
		models.User{Username: "magnus", Name: strPtr("Anna")},
		models.User{Username: "magnus"},
	)
	if err := HandleUserWrite(ctx, m, ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if v := getVariant(t, m, "v1"); v.CreatorDisplayName != "@magnus" {
		t.Fatalf("fallback name not propagated: %+v", v)
	}

	// nil on both sides is the same name
	ev = userEvent(t, "u1", models.User{Username: "magnus"}, models.User{Username: "magnus"})
	if err := HandleUserWrite(ctx, m, ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
}

func strInt64(v int64) *int64 { return &v }
