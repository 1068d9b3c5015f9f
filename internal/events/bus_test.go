package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rechess/server/internal/store"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "users.updated", Topic("users", store.EventUpdated))
	assert.Equal(t, "variants.lobby.deleted", Topic("variants/abc/lobby", store.EventDeleted))
	assert.Equal(t, "users.private.created", Topic("users/u1/private", store.EventCreated))
}

func TestBusDeliversStoreEvents(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	bus := NewBus(logger)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan DocEvent, 1)
	err := bus.Subscribe(ctx, "users.created", func(ctx context.Context, ev DocEvent) error {
		got <- ev
		return nil
	})
	require.NoError(t, err)

	m := store.NewMemory()
	m.OnEvent = bus.OnEvent
	require.NoError(t, m.Set(ctx, store.Ref{Collection: "users", ID: "u1"}, map[string]any{"username": "magnus"}))

	select {
	case ev := <-got:
		assert.Equal(t, "created", ev.Kind)
		assert.Equal(t, "users", ev.Collection)
		assert.Equal(t, "u1", ev.ID)
		assert.Nil(t, ev.Before)
		assert.JSONEq(t, `{"username":"magnus"}`, string(ev.After))
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestBusRedeliversOnError(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	bus := NewBus(logger)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	done := make(chan struct{})
	err := bus.Subscribe(ctx, "games.deleted", func(ctx context.Context, ev DocEvent) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return assert.AnError
		}
		close(done)
		return nil
	})
	require.NoError(t, err)

	bus.OnEvent(store.Event{
		Kind:   store.EventDeleted,
		Ref:    store.Ref{Collection: "games", ID: "g1"},
		Before: []byte(`{}`),
	})

	select {
	case <-done:
		assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	case <-time.After(2 * time.Second):
		t.Fatal("nacked event was not redelivered")
	}
}

func TestBusHandlerMayWriteBack(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	bus := NewBus(logger)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := store.NewMemory()
	m.OnEvent = bus.OnEvent

	// A handler that writes to the store republishes from inside its own
	// delivery. This must not deadlock.
	done := make(chan struct{})
	err := bus.Subscribe(ctx, "users.created", func(ctx context.Context, ev DocEvent) error {
		defer close(done)
		return m.Set(ctx, store.Ref{Collection: "audit", ID: ev.ID}, map[string]any{"seen": true})
	})
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, store.Ref{Collection: "users", ID: "u1"}, map[string]any{}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write-back handler never completed")
	}
}
