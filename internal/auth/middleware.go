package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
// A package-private key type means only this package can read or write the
// userID value in the context — no collisions with other packages.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth is a middleware that enforces authentication on protected
// routes.
//
// The token is accepted from either an "Authorization: Bearer <jwt>" header
// (how the SPA sends it) or a "token" cookie. If it's missing or invalid
// the chain stops with a 401; otherwise the userID lands in the request
// context for handlers to read.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				// Written by hand rather than via http.Error, which would
				// reset the Content-Type to text/plain.
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext retrieves the authenticated user's ID from the request
// context.
//
// Returns ("", false) if the request is anonymous (no valid token present).
// Returns (id, true) if the user is authenticated.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// extractUserID finds and validates the token, preferring the header over
// the cookie.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	tokenStr := ""

	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		tokenStr = strings.TrimPrefix(h, "Bearer ")
	} else if cookie, err := r.Cookie("token"); err == nil {
		tokenStr = cookie.Value
	}

	if tokenStr == "" {
		return "", http.ErrNoCookie
	}

	userID, _, err := tokens.Validate(tokenStr)
	return userID, err
}
