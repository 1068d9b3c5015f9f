// internal/handlers/watch.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/rechess/server/internal/events"
	"github.com/rechess/server/internal/middleware"
	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/store"
)

// BadSubprotocolError tells a websocket client it connected with an
// unsupported subprotocol.
const BadSubprotocolError = 3000

const watchWriteTimeout = 10 * time.Second

// lobbyWatchFrame is one live update pushed to a watching client.
type lobbyWatchFrame struct {
	Kind      string          `json:"kind"`
	CreatorID string          `json:"creatorId"`
	Slot      json.RawMessage `json:"slot,omitempty"`
}

// LobbyWatchHandler streams lobby slot changes for one variant over a
// websocket. The client sees every create, challenger join and withdrawal
// as it happens, without polling.
func LobbyWatchHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID := strings.TrimPrefix(r.URL.Path, "/lobby/watch/")
		if variantID == "" || strings.Contains(variantID, "/") {
			http.Error(w, "missing variant id", http.StatusBadRequest)
			return
		}
		if _, err := s.Store.Get(r.Context(), models.VariantRef(variantID)); err != nil {
			http.Error(w, "variant not found", http.StatusNotFound)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"lobby-watch"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			s.Logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "lobby-watch" {
			c.Close(BadSubprotocolError, "client must speak the lobby-watch subprotocol")
			return
		}
		middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		lobbyCollection := models.LobbyCollection(variantID)
		forward := func(hctx context.Context, ev events.DocEvent) error {
			if ev.Collection != lobbyCollection {
				return nil
			}
			frame := lobbyWatchFrame{
				Kind:      ev.Kind,
				CreatorID: ev.ID,
				Slot:      ev.After,
			}
			payload, err := json.Marshal(frame)
			if err != nil {
				return err
			}
			wctx, wcancel := context.WithTimeout(hctx, watchWriteTimeout)
			defer wcancel()
			if err := c.Write(wctx, websocket.MessageText, payload); err != nil {
				// The client went away; stop this subscription rather
				// than redelivering into a dead socket.
				cancel()
			}
			return nil
		}

		for _, kind := range []store.EventKind{store.EventCreated, store.EventUpdated, store.EventDeleted} {
			if err := s.Bus.Subscribe(ctx, events.Topic(lobbyCollection, kind), forward); err != nil {
				s.Logger.WithError(err).Error("lobby watch subscribe failed")
				c.Close(websocket.StatusInternalError, "subscription failed")
				return
			}
		}

		// Snapshot the current slots so the client does not start blind.
		snaps, err := s.Store.List(ctx, lobbyCollection)
		if err == nil {
			for _, snap := range snaps {
				frame := lobbyWatchFrame{Kind: "existing", CreatorID: snap.Ref.ID, Slot: snap.Data}
				payload, merr := json.Marshal(frame)
				if merr != nil {
					continue
				}
				if werr := c.Write(ctx, websocket.MessageText, payload); werr != nil {
					return
				}
			}
		}

		// Hold the connection open, discarding anything the client sends.
		for {
			if _, _, err := c.Read(ctx); err != nil {
				c.Close(websocket.StatusNormalClosure, "bye")
				return
			}
		}
	}
}
