package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rechess/server/internal/auth"
	"github.com/rechess/server/internal/httperr"
)

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// authenticate pulls the auth_token cookie off the request and verifies it.
func authenticate(r *http.Request) (*auth.Claims, error) {
	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	if token == "" {
		return nil, httperr.Unauthenticated("The function must be called while authenticated.")
	}
	claims, err := auth.AuthenticateJWT(token)
	if err != nil {
		return nil, httperr.Unauthenticated("The function must be called while authenticated.")
	}
	return claims, nil
}

// authenticateVerified is the precondition ladder shared by the mutating
// operations: a valid session, then app attestation, then email. Each
// rung fails with its own message so clients can tell them apart.
func authenticateVerified(r *http.Request) (*auth.Claims, error) {
	claims, err := authenticate(r)
	if err != nil {
		return nil, err
	}
	if !claims.AppVerified {
		return nil, httperr.Unauthenticated("The function must be called from a verified app.")
	}
	if !claims.EmailVerified {
		return nil, httperr.Unauthenticated("The email is not verified.")
	}
	return claims, nil
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return httperr.InvalidArgument("The request body is not valid JSON.")
	}
	return nil
}

// decodeInto parses a stored document; a decode failure here means the
// document is corrupt, which is the server's fault.
func decodeInto(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return httperr.Internal("internal error")
	}
	return nil
}

// writeJSON writes a JSON response body with a 200 status.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
