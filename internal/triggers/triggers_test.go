package triggers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/rechess/server/internal/events"
	"github.com/rechess/server/internal/index"
	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/store"
)

const waitFor = 3 * time.Second
const tick = 10 * time.Millisecond

func newWiredStore(t *testing.T) *store.Memory {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	bus := events.NewBus(logger)
	t.Cleanup(func() { bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m := store.NewMemory()
	m.OnEvent = bus.OnEvent
	require.NoError(t, Register(ctx, bus, m, logger))
	return m
}

func variantOf(t *testing.T, m *store.Memory, variantID string) *models.Variant {
	t.Helper()
	snap, err := m.Get(context.Background(), models.VariantRef(variantID))
	require.NoError(t, err)
	v, err := models.DecodeVariant(snap)
	require.NoError(t, err)
	return v
}

func TestVariantCreationIndexesIt(t *testing.T) {
	ctx := context.Background()
	m := newWiredStore(t)

	creator := "u1"
	require.NoError(t, m.Set(ctx, models.VariantRef("v1"), models.Variant{
		Name:        "Atomic",
		Description: "boom",
		CreatorID:   &creator,
	}))

	require.Eventually(t, func() bool {
		snap, err := m.Get(ctx, store.Ref{Collection: index.Collection, ID: "0"})
		if err != nil {
			return false
		}
		var doc index.Doc
		if err := json.Unmarshal(snap.Data, &doc); err != nil {
			return false
		}
		return doc.Index == index.Row("v1", "Atomic", "boom")
	}, waitFor, tick, "variant never appeared in the index")
}

func TestRenamePropagatesAndSettles(t *testing.T) {
	ctx := context.Background()
	m := newWiredStore(t)

	old := "old"
	require.NoError(t, m.Set(ctx, models.UserRef("u1"), models.User{Username: "magnus", Name: &old}))
	creator := "u1"
	require.NoError(t, m.Set(ctx, models.VariantRef("v1"), models.Variant{
		Name:               "Atomic",
		CreatorID:          &creator,
		CreatorDisplayName: "old",
	}))

	require.NoError(t, m.Update(ctx, models.UserRef("u1"), map[string]any{"name": "Anna"}))

	// the denormalized copy picks up the new name and the cooldown lands
	// on the profile, after which the system goes quiet
	require.Eventually(t, func() bool {
		if variantOf(t, m, "v1").CreatorDisplayName != "Anna" {
			return false
		}
		snap, err := m.Get(ctx, models.UserRef("u1"))
		if err != nil {
			return false
		}
		u, err := models.DecodeUser(snap)
		if err != nil {
			return false
		}
		return u.RenameAllowedAt != nil
	}, waitFor, tick, "rename never propagated")
}

func TestLobbySlotPopularity(t *testing.T) {
	ctx := context.Background()
	m := newWiredStore(t)

	require.NoError(t, m.Set(ctx, models.VariantRef("v1"), models.Variant{Name: "Atomic"}))

	slotRef := models.LobbySlotRef("v1", "u1")
	require.NoError(t, m.Set(ctx, slotRef, models.LobbySlot{CreatorDisplayName: "Creator", RequestedColor: models.ColorRandom}))

	require.Eventually(t, func() bool {
		return variantOf(t, m, "v1").Popularity == LobbyPopularityWeight
	}, waitFor, tick, "popularity never incremented")

	require.NoError(t, m.Delete(ctx, slotRef))

	require.Eventually(t, func() bool {
		return variantOf(t, m, "v1").Popularity == 0
	}, waitFor, tick, "popularity never restored")
}

func TestLobbySlotOnMissingVariantIsAcked(t *testing.T) {
	ctx := context.Background()
	m := newWiredStore(t)

	// slot under a variant that is already gone: the popularity update
	// fails, which is logged and swallowed rather than retried forever
	slotRef := models.LobbySlotRef("ghost", "u1")
	require.NoError(t, m.Set(ctx, slotRef, models.LobbySlot{CreatorDisplayName: "Creator", RequestedColor: models.ColorWhite}))

	// the slot write itself still stands
	time.Sleep(50 * time.Millisecond)
	_, err := m.Get(ctx, slotRef)
	require.NoError(t, err)
}
