package utils

import (
	"context"
	"net/http"

	"folios/internal/models"
)

type contextKey string

const sessionKey contextKey = "session"

// AuthCookieName is the cookie carrying the session JWT after OAuth sign-in.
const AuthCookieName = "jwt"

func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the authenticated session, or nil.
func SessionFromContext(ctx context.Context) *models.Session {
	s, _ := ctx.Value(sessionKey).(*models.Session)
	return s
}

// GetSessionFromContext extracts the session and replies 401 when it is missing.
func GetSessionFromContext(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	s := SessionFromContext(r.Context())
	if s == nil {
		SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return s, true
}
