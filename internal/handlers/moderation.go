package handlers

import (
	"net/http"

	"github.com/rechess/server/internal/auth"
	"github.com/rechess/server/internal/httperr"
	"github.com/rechess/server/internal/moderation"
)

func authenticateModerator(r *http.Request) (*auth.Claims, error) {
	claims, err := authenticateVerified(r)
	if err != nil {
		return nil, err
	}
	if !claims.Moderator {
		return nil, httperr.PermissionDenied("The function must be called by a moderator.")
	}
	return claims, nil
}

// DeleteVariantHandler removes a variant, its games, its moderation record
// and its search index entry. Safe to call again if a previous attempt died
// partway through.
func DeleteVariantHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authenticateModerator(r); err != nil {
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

		if err := moderation.DeleteVariant(r.Context(), s.Store, s.Logger, req.VariantID); err != nil {
			s.Logger.WithError(err).Error("variant deletion failed")
			httperr.Write(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// WipeUserHandler bans a user and erases everything they created.
func WipeUserHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authenticateModerator(r); err != nil {
			httperr.Write(w, err)
			return
		}

		var req struct {
			UserID string `json:"userId"`
		}
		if err := decodeBody(r, &req); err != nil {
			httperr.Write(w, err)
			return
		}
		if req.UserID == "" {
			httperr.Write(w, httperr.InvalidArgument("The function must be called with a userId."))
			return
		}

		if err := moderation.WipeUser(r.Context(), s.Store, s.Blobs, s.Logger, req.UserID); err != nil {
			httperr.Write(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
