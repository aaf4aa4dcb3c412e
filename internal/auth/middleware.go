package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/Ross11547/Automatizacion/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of type contextKey, so only this package
// can read or write the values stored under it.
type contextKey string

const (
	userIDKey contextKey = "userID"
	tokenKey  contextKey = "token"
)

// UserFinder resolves a user id to a stored user. Satisfied by the sqlite
// user store.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// TOKEN SOURCES, in order:
//  1. Authorization: Bearer <token>   (API calls from the front end)
//  2. ?t=<token>                      (browser redirects, which cannot carry headers)
//
// The token must verify AND name a user that still exists. On success the
// user id and the raw token are stored in the request context.
func RequireAuth(tokens *TokenService, users UserFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, raw := range candidateTokens(r) {
				userID, err := tokens.Verify(raw)
				if err != nil {
					continue
				}
				if _, err := users.GetByID(r.Context(), userID); err != nil {
					continue
				}

				ctx := context.WithValue(r.Context(), userIDKey, userID)
				ctx = context.WithValue(ctx, tokenKey, raw)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"ok":false,"error":"unauthenticated","message":"not authenticated"}`))
		})
	}
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
// Returns ("", false) if RequireAuth did not run or rejected the request.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// TokenFromContext returns the session token the request authenticated with.
// The OAuth start handler embeds it into the link state.
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey).(string)
	return t, ok && t != ""
}

// WithUserID returns a copy of ctx carrying userID. Intended for tests of
// handlers mounted behind RequireAuth.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// WithToken returns a copy of ctx carrying the raw session token, as
// RequireAuth stores it. Intended for tests.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

func candidateTokens(r *http.Request) []string {
	var out []string
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			out = append(out, strings.TrimSpace(h[7:]))
		}
	}
	if t := r.URL.Query().Get("t"); t != "" {
		out = append(out, t)
	}
	return out
}
