// Package middleware holds the HTTP middleware chain: the session boundary
// check plus request-ID and request-logging plumbing.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"authflow/internal/auth"
	"authflow/internal/models"
	"authflow/internal/utils"
)

// SessionCookie is the name of the HTTP-only cookie carrying the session token.
const SessionCookie = "token"

type ctxKey int

const (
	userKey ctxKey = iota
	requestIDKey
)

// Authenticator resolves a session token to a verified user.
type Authenticator interface {
	Authenticate(ctx context.Context, sessionToken string) (*models.User, error)
}

// UserFrom returns the authenticated user attached by Session, if any.
func UserFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok
}

// Session is the session boundary: it reads the session cookie, validates
// the token, resolves the subject, and attaches the user to the request
// context. Missing or invalid tokens are rejected with 401, unverified
// accounts with 403. The check is stateless; there is no revocation list.
func Session(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				utils.Error(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			u, err := authn.Authenticate(r.Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, auth.ErrNotVerified) {
					utils.Error(w, http.StatusForbidden, "Please verify your email first")
					return
				}
				utils.Error(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
		})
	}
}
