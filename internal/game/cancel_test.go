package game

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/rechess/server/internal/httperr"
	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/review"
	"github.com/rechess/server/internal/store"
)

type fakeQueue struct {
	records []review.Record
	err     error
}

func (q *fakeQueue) Push(ctx context.Context, rec review.Record) error {
	if q.err != nil {
		return q.err
	}
	q.records = append(q.records, rec)
	return nil
}

func seedGame(t *testing.T, st store.Store, gameID, whiteID, blackID string) {
	t.Helper()
	err := st.Set(context.Background(), models.GameRef(gameID), models.Game{
		VariantID:        "v1",
		WhiteID:          &whiteID,
		WhiteDisplayName: "White",
		BlackID:          &blackID,
		BlackDisplayName: "Black",
		Players:          []string{whiteID, blackID},
	})
	if err != nil {
		t.Fatalf("seed game: %v", err)
	}
}

func TestCancelMovesGame(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	logger, _ := logtest.NewNullLogger()
	queue := &fakeQueue{}

	seedGame(t, m, "g1", "u1", "u2")

	err := Cancel(ctx, m, queue, logger, CancelParams{CallerID: "u2", GameID: "g1", Reason: "opponent left"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := m.Get(ctx, models.GameRef("g1")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("live game still present: %v", err)
	}

	snap, err := m.Get(ctx, models.CancelledGameRef("g1"))
	if err != nil {
		t.Fatalf("cancelled copy missing: %v", err)
	}
	var c models.CancelledGame
	if err := json.Unmarshal(snap.Data, &c); err != nil {
		t.Fatalf("decode cancelled game: %v", err)
	}
	if c.CancelledByUserID != "u2" || c.CancelReason != "opponent left" {
		t.Fatalf("unexpected cancelled record: %+v", c)
	}
	if c.WhiteDisplayName != "White" {
		t.Fatalf("game fields not carried over: %+v", c)
	}

	if len(queue.records) != 1 || queue.records[0].GameID != "g1" || queue.records[0].VariantID != "v1" {
		t.Fatalf("unexpected queue records: %+v", queue.records)
	}
}

func TestCancelQueueFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	logger, hook := logtest.NewNullLogger()
	queue := &fakeQueue{err: errors.New("redis down")}

	seedGame(t, m, "g1", "u1", "u2")

	if err := Cancel(ctx, m, queue, logger, CancelParams{CallerID: "u1", GameID: "g1", Reason: "x"}); err != nil {
		t.Fatalf("cancel must tolerate a queue failure: %v", err)
	}
	if _, err := m.Get(ctx, models.CancelledGameRef("g1")); err != nil {
		t.Fatalf("cancelled copy missing: %v", err)
	}
	if hook.LastEntry() == nil {
		t.Fatalf("queue failure was not logged")
	}
}

func TestCancelPreconditions(t *testing.T) {
	ctx := context.Background()
	logger, _ := logtest.NewNullLogger()

	t.Run("game missing", func(t *testing.T) {
		m := store.NewMemory()
		err := Cancel(ctx, m, nil, logger, CancelParams{CallerID: "u1", GameID: "nope"})
		expectFailure(t, err, httperr.CodeNotFound, "The game does not exist.")
	})

	t.Run("non-player caller", func(t *testing.T) {
		m := store.NewMemory()
		seedGame(t, m, "g1", "u1", "u2")
		err := Cancel(ctx, m, nil, logger, CancelParams{CallerID: "intruder", GameID: "g1"})
		expectFailure(t, err, httperr.CodePermissionDenied, "The function must be called by either the white or black player.")
		if _, gerr := m.Get(ctx, models.GameRef("g1")); gerr != nil {
			t.Fatalf("denied cancel must not touch the game: %v", gerr)
		}
	})
}
