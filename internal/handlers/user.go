package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rechess/server/internal/auth"
	"github.com/rechess/server/internal/httperr"
	"github.com/rechess/server/internal/models"
	"github.com/rechess/server/internal/moderation"
	"github.com/rechess/server/internal/store"
)

// CreateUserHandler registers a new account. The username reservation, the
// public profile and the private doc are committed in one batch so a failed
// signup never leaves a half-created account behind.
func CreateUserHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Username string `json:"username"`
		}
		if err := decodeBody(r, &req); err != nil {
			httperr.Write(w, err)
			return
		}
		if req.Email == "" || req.Password == "" || req.Username == "" {
			httperr.Write(w, httperr.InvalidArgument("The function must be called with an email, password and username."))
			return
		}

		ctx := r.Context()
		if _, err := s.Store.Get(ctx, models.UsernameRef(req.Username)); err == nil {
			httperr.Write(w, httperr.InvalidArgument("The username is already taken."))
			return
		} else if !errors.Is(err, store.ErrNotFound) {
			s.Logger.WithError(err).Error("username lookup failed")
			httperr.Write(w, err)
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			s.Logger.WithError(err).Error("password hashing failed")
			httperr.Write(w, err)
			return
		}

		userID := uuid.NewString()
		b := s.Store.Batch()
		b.Set(models.UserRef(userID), models.User{Username: req.Username})
		b.Set(models.UserPrivateRef(userID), models.UserPrivate{Email: req.Email, Hash: hash})
		b.Set(models.UsernameRef(req.Username), models.Username{UserID: userID})
		if err := b.Commit(ctx); err != nil {
			s.Logger.WithError(err).Error("signup batch failed")
			httperr.Write(w, err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]string{"userId": userID})
	}
}

// LoginHandler authenticates by username and password and issues the session
// token, both in the response body and as the auth_token cookie.
func LoginHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &req); err != nil {
			httperr.Write(w, err)
			return
		}

		ctx := r.Context()
		nameSnap, err := s.Store.Get(ctx, models.UsernameRef(req.Username))
		if err != nil {
			httperr.Write(w, httperr.Unauthenticated("Wrong username or password."))
			return
		}
		var reservation models.Username
		if err := decodeInto(nameSnap.Data, &reservation); err != nil {
			httperr.Write(w, err)
			return
		}

		privSnap, err := s.Store.Get(ctx, models.UserPrivateRef(reservation.UserID))
		if err != nil {
			httperr.Write(w, httperr.Unauthenticated("Wrong username or password."))
			return
		}
		priv, err := models.DecodeUserPrivate(privSnap)
		if err != nil {
			httperr.Write(w, err)
			return
		}

		ok, err := auth.VerifyPassword(req.Password, priv.Hash)
		if err != nil || !ok {
			httperr.Write(w, httperr.Unauthenticated("Wrong username or password."))
			return
		}
		if priv.Banned {
			httperr.Write(w, httperr.PermissionDenied("The user is banned."))
			return
		}

		token, err := auth.CreateJWT(auth.Claims{
			UserID:        reservation.UserID,
			EmailVerified: true,
			AppVerified:   r.Header.Get("X-App-Check") != "",
			Moderator:     priv.Moderator,
		})
		if err != nil {
			s.Logger.WithError(err).Error("jwt creation failed")
			httperr.Write(w, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     "auth_token",
			Value:    token,
			HttpOnly: true,
			Path:     "/",
			MaxAge:   auth.TOKEN_EXPIRE_TIME_SEC,
		})
		writeJSON(w, map[string]string{"token": token})
	}
}

// RenameUserHandler changes the caller's display name. The write refires the
// rename trigger, which fans the new name out to every variant and game that
// embeds it and then stamps the next allowed rename time onto the profile.
func RenameUserHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := authenticateVerified(r)
		if err != nil {
			httperr.Write(w, err)
			return
		}

		var req struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &req); err != nil {
			httperr.Write(w, err)
			return
		}
		if req.Name == "" {
			httperr.Write(w, httperr.InvalidArgument("The function must be called with a name."))
			return
		}

		ctx := r.Context()
		snap, err := s.Store.Get(ctx, models.UserRef(claims.UserID))
		if err != nil {
			httperr.Write(w, httperr.NotFound("The user does not exist."))
			return
		}
		user, err := models.DecodeUser(snap)
		if err != nil {
			httperr.Write(w, err)
			return
		}
		if user.RenameAllowedAt != nil && time.Now().UnixMilli() < *user.RenameAllowedAt {
			httperr.Write(w, httperr.PermissionDenied("The name can only be changed once every 24 hours."))
			return
		}

		if err := s.Store.Update(ctx, models.UserRef(claims.UserID), map[string]any{"name": req.Name}); err != nil {
			s.Logger.WithError(err).Error("rename failed")
			httperr.Write(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// ReportUserHandler files a report against another user.
func ReportUserHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := authenticateVerified(r)
		if err != nil {
			httperr.Write(w, err)
			return
		}

		var req struct {
			UserID string `json:"userId"`
			Reason string `json:"reason"`
		}
		if err := decodeBody(r, &req); err != nil {
			httperr.Write(w, err)
			return
		}
		if req.UserID == "" {
			httperr.Write(w, httperr.InvalidArgument("The function must be called with a userId."))
			return
		}
		if len([]rune(req.Reason)) > 500 {
			httperr.Write(w, httperr.InvalidArgument("The reason must be at most 500 characters."))
			return
		}

		ctx := r.Context()
		if _, err := s.Store.Get(ctx, models.UserRef(req.UserID)); err != nil {
			httperr.Write(w, httperr.NotFound("The user to be reported does not exist."))
			return
		}
		if err := moderation.FileUserReport(ctx, s.Store, req.UserID, claims.UserID, req.Reason); err != nil {
			s.Logger.WithError(err).Error("user report failed")
			httperr.Write(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
