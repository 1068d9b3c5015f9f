package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rechess/server/internal/httperr"
	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/moderation"
	"github.com/rechess/server/internal/upvotes"
)

const (
	maxVariantNameLength        = 50
	maxVariantDescriptionLength = 1000
)

// CreateVariantHandler publishes a new variant. The stored initial state is
// validated up front so games can always be created from it later; the
// search index entry is added by the variants.created trigger.
func CreateVariantHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := authenticateVerified(r)
		if err != nil {
			httperr.Write(w, err)
			return
		}

		var req struct {
			Name         string   `json:"name"`
			Description  string   `json:"description"`
			Tags         []string `json:"tags"`
			InitialState string   `json:"initialState"`
		}
		if err := decodeBody(r, &req); err != nil {
			httperr.Write(w, err)
			return
		}
		if req.Name == "" || len([]rune(req.Name)) > maxVariantNameLength {
			httperr.Write(w, httperr.InvalidArgument("The name must be between 1 and 50 characters."))
			return
		}
		if len([]rune(req.Description)) > maxVariantDescriptionLength {
			httperr.Write(w, httperr.InvalidArgument("The description must be at most 1000 characters."))
			return
		}
		if _, err := models.ParseInitialState(req.InitialState); err != nil {
			httperr.Write(w, httperr.InvalidArgument("The initial state is not a valid starting position."))
			return
		}

		ctx := r.Context()
		snap, err := s.Store.Get(ctx, models.UserRef(claims.UserID))
		if err != nil {
			httperr.Write(w, httperr.NotFound("The user does not exist."))
			return
		}
		creator, err := models.DecodeUser(snap)
		if err != nil {
			httperr.Write(w, err)
			return
		}

		variantID := uuid.NewString()
		creatorID := claims.UserID
		variant := models.Variant{
			Name:               req.Name,
			Description:        req.Description,
			CreationTime:       time.Now().UnixMilli(),
			CreatorDisplayName: creator.DisplayName(),
			CreatorID:          &creatorID,
			Tags:               req.Tags,
			InitialState:       req.InitialState,
		}
		if err := s.Store.Set(ctx, models.VariantRef(variantID), variant); err != nil {
			s.Logger.WithError(err).Error("variant creation failed")
			httperr.Write(w, err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]string{"variantId": variantID})
	}
}

// UpvoteVariantHandler toggles the caller's upvote. The response reports the
// state after the toggle.
func UpvoteVariantHandler(s *Server) http.HandlerFunc {
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
		if _, err := s.Store.Get(ctx, models.VariantRef(req.VariantID)); err != nil {
			httperr.Write(w, httperr.NotFound("The variant does not exist."))
			return
		}

		upvoted, err := upvotes.HasUpvoted(ctx, s.Store, req.VariantID, claims.UserID)
		if err != nil {
			s.Logger.WithError(err).Error("upvote lookup failed")
			httperr.Write(w, err)
			return
		}
		if upvoted {
			err = upvotes.Decrement(ctx, s.Store, s.Logger, req.VariantID, claims.UserID)
		} else {
			err = upvotes.Increment(ctx, s.Store, s.Logger, req.VariantID, claims.UserID)
		}
		if err != nil {
			s.Logger.WithError(err).Error("upvote toggle failed")
			httperr.Write(w, err)
			return
		}
		writeJSON(w, map[string]bool{"upvoted": !upvoted})
	}
}

// ReportVariantHandler files a report against a variant.
func ReportVariantHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := authenticateVerified(r)
		if err != nil {
			httperr.Write(w, err)
			return
		}

		var req struct {
			VariantID string `json:"variantId"`
			Reason    string `json:"reason"`
		}
		if err := decodeBody(r, &req); err != nil {
			httperr.Write(w, err)
			return
		}
		if req.VariantID == "" {
			httperr.Write(w, httperr.InvalidArgument("The function must be called with a variantId."))
			return
		}
		if len([]rune(req.Reason)) > 500 {
			httperr.Write(w, httperr.InvalidArgument("The reason must be at most 500 characters."))
			return
		}

		ctx := r.Context()
		if _, err := s.Store.Get(ctx, models.VariantRef(req.VariantID)); err != nil {
			httperr.Write(w, httperr.NotFound("The variant does not exist."))
			return
		}
		if err := moderation.FileVariantReport(ctx, s.Store, req.VariantID, claims.UserID, req.Reason); err != nil {
			s.Logger.WithError(err).Error("variant report failed")
			httperr.Write(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
