package handlers

import (
	"net/http"

	"github.com/rechess/server/internal/game"
	"github.com/rechess/server/internal/httperr"
)

// CreateGameHandler turns a lobby slot with a challenger into a live game.
// The precondition checks themselves live in the game package; this handler
// only validates the arguments and the caller's session.
func CreateGameHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := authenticateVerified(r)
		if err != nil {
			httperr.Write(w, err)
			return
		}

		var req struct {
			VariantID          string `json:"variantId"`
			LobbySlotCreatorID string `json:"lobbySlotCreatorId"`
		}
		if err := decodeBody(r, &req); err != nil {
			httperr.Write(w, err)
			return
		}
		if req.VariantID == "" || req.LobbySlotCreatorID == "" {
			httperr.Write(w, httperr.InvalidArgument("The function must be called with a variantId and lobbySlotCreatorId."))
			return
		}

		gameID, err := game.Create(r.Context(), s.Store, game.CreateParams{
			CallerID:           claims.UserID,
			VariantID:          req.VariantID,
			LobbySlotCreatorID: req.LobbySlotCreatorID,
		})
		if err != nil {
			httperr.Write(w, err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]string{"gameId": gameID})
	}
}

// CancelGameHandler moves a live game into the cancelled holding area for
// moderator review.
func CancelGameHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := authenticateVerified(r)
		if err != nil {
			httperr.Write(w, err)
			return
		}

		var req struct {
			GameID string `json:"gameId"`
			Reason string `json:"reason"`
		}
		if err := decodeBody(r, &req); err != nil {
			httperr.Write(w, err)
			return
		}
		if req.GameID == "" {
			httperr.Write(w, httperr.InvalidArgument("The function must be called with a gameId."))
			return
		}
		if len([]rune(req.Reason)) > 500 {
			httperr.Write(w, httperr.InvalidArgument("The reason must be at most 500 characters."))
			return
		}

		err = game.Cancel(r.Context(), s.Store, s.Review, s.Logger, game.CancelParams{
			CallerID: claims.UserID,
			GameID:   req.GameID,
			Reason:   req.Reason,
		})
		if err != nil {
			httperr.Write(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
