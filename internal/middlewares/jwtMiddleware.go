package middlewares

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"folios/internal/services"
	"folios/internal/utils"
)

// AuthMiddleware resolves the bearer token, or the jwt cookie set by the
// OAuth callback, to a session and stores it in the request context.
func AuthMiddleware(auth services.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFromRequest(r)
			if tokenString == "" {
				log.Debug().Str("path", r.URL.Path).Msg("Missing token")
				utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			session, err := auth.Authenticate(r.Context(), tokenString)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("Invalid token")
				utils.SendJSONError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.WithSession(r.Context(), session)))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return ""
		}
		return strings.TrimSpace(header[len("Bearer "):])
	}
	if cookie, err := r.Cookie(utils.AuthCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
