package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/rechess/server/internal/httperr"
	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/store"
)

// CreateLobbySlotHandler opens a challenge on a variant. The slot document
// id is the caller's user id, so one user can hold at most one open slot per
// variant.
func CreateLobbySlotHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := authenticateVerified(r)
		if err != nil {
			httperr.Write(w, err)
			return
		}

		var req struct {
			VariantID      string                `json:"variantId"`
			RequestedColor models.RequestedColor `json:"requestedColor"`
		}
		if err := decodeBody(r, &req); err != nil {
			httperr.Write(w, err)
			return
		}
		if req.VariantID == "" {
			httperr.Write(w, httperr.InvalidArgument("The function must be called with a variantId."))
			return
		}
		if !req.RequestedColor.Valid() {
			httperr.Write(w, httperr.InvalidArgument("The requested color must be white, black or random."))
			return
		}

		ctx := r.Context()
		if _, err := s.Store.Get(ctx, models.VariantRef(req.VariantID)); err != nil {
			httperr.Write(w, httperr.NotFound("The variant does not exist."))
			return
		}

		slotRef := models.LobbySlotRef(req.VariantID, claims.UserID)
		if _, err := s.Store.Get(ctx, slotRef); err == nil {
			httperr.Write(w, httperr.InvalidArgument("The lobby slot already exists."))
			return
		} else if !errors.Is(err, store.ErrNotFound) {
			s.Logger.WithError(err).Error("lobby slot lookup failed")
			httperr.Write(w, err)
			return
		}

		userSnap, err := s.Store.Get(ctx, models.UserRef(claims.UserID))
		if err != nil {
			httperr.Write(w, httperr.NotFound("The user does not exist."))
			return
		}
		creator, err := models.DecodeUser(userSnap)
		if err != nil {
			httperr.Write(w, err)
			return
		}

		slot := models.LobbySlot{
			CreatorDisplayName: creator.DisplayName(),
			RequestedColor:     req.RequestedColor,
			TimeCreated:        time.Now().UnixMilli(),
		}
		if err := s.Store.Set(ctx, slotRef, slot); err != nil {
			s.Logger.WithError(err).Error("lobby slot creation failed")
			httperr.Write(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

// JoinLobbySlotHandler claims the challenger seat on an open slot.
func JoinLobbySlotHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := authenticateVerified(r)
		if err != nil {
			httperr.Write(w, err)
			return
		}

		var req struct {
			VariantID string `json:"variantId"`
			CreatorID string `json:"creatorId"`
		}
		if err := decodeBody(r, &req); err != nil {
			httperr.Write(w, err)
			return
		}
		if req.VariantID == "" || req.CreatorID == "" {
			httperr.Write(w, httperr.InvalidArgument("The function must be called with a variantId and creatorId."))
			return
		}
		if req.CreatorID == claims.UserID {
			httperr.Write(w, httperr.InvalidArgument("The creator cannot join their own lobby slot."))
			return
		}

		ctx := r.Context()
		slotRef := models.LobbySlotRef(req.VariantID, req.CreatorID)
		snap, err := s.Store.Get(ctx, slotRef)
		if err != nil {
			httperr.Write(w, httperr.NotFound("The lobby slot does not exist."))
			return
		}
		slot, err := models.DecodeLobbySlot(snap)
		if err != nil {
			httperr.Write(w, err)
			return
		}
		if slot.GameDocID != nil {
			httperr.Write(w, httperr.InvalidArgument("The lobby slot already has a game."))
			return
		}
		if slot.ChallengerID != nil {
			httperr.Write(w, httperr.InvalidArgument("The lobby slot already has a challenger."))
			return
		}

		userSnap, err := s.Store.Get(ctx, models.UserRef(claims.UserID))
		if err != nil {
			httperr.Write(w, httperr.NotFound("The user does not exist."))
			return
		}
		challenger, err := models.DecodeUser(userSnap)
		if err != nil {
			httperr.Write(w, err)
			return
		}

		err = s.Store.Update(ctx, slotRef, map[string]any{
			"challengerId":          claims.UserID,
			"challengerDisplayName": challenger.DisplayName(),
		})
		if err != nil {
			s.Logger.WithError(err).Error("lobby join failed")
			httperr.Write(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// LeaveLobbySlotHandler withdraws the caller's own open slot. Slots that
// already resolved to a game are terminal and stay put.
func LeaveLobbySlotHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := authenticateVerified(r)
		if err != nil {
			httperr.Write(w, err)
			return
		}

		var req struct {
			VariantID string `json:"variantId"`
		}
		if err := decodeBody(r, &req); err != nil {
			httperr.Write(w, err)
			return
		}
		if req.VariantID == "" {
			httperr.Write(w, httperr.InvalidArgument("The function must be called with a variantId."))
			return
		}

		ctx := r.Context()
		slotRef := models.LobbySlotRef(req.VariantID, claims.UserID)
		snap, err := s.Store.Get(ctx, slotRef)
		if err != nil {
			httperr.Write(w, httperr.NotFound("The lobby slot does not exist."))
			return
		}
		slot, err := models.DecodeLobbySlot(snap)
		if err != nil {
			httperr.Write(w, err)
			return
		}
		if slot.GameDocID != nil {
			httperr.Write(w, httperr.InvalidArgument("The lobby slot already has a game."))
			return
		}

		if err := s.Store.Delete(ctx, slotRef); err != nil {
			s.Logger.WithError(err).Error("lobby leave failed")
			httperr.Write(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
