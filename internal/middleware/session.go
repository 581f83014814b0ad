package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/craftbooks/portal-server/internal/model"
	"github.com/craftbooks/portal-server/internal/service"
)

type contextKey string

const SessionContextKey contextKey = "portalSession"

// GetSession returns the validated portal session from the request context.
func GetSession(ctx context.Context) *model.PortalSession {
	if session, ok := ctx.Value(SessionContextKey).(*model.PortalSession); ok {
		return session
	}
	return nil
}

// SessionMiddleware validates the bearer token on every portal request.
// No distinction between missing, revoked, expired or out-of-scope tokens
// reaches the caller; all of them are a plain 401.
type SessionMiddleware struct {
	sessions *service.SessionService
}

func NewSessionMiddleware(sessions *service.SessionService) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		session, err := m.sessions.Validate(r.Context(), token)
		if err != nil {
			log.Error().Err(err).Msg("session middleware: validation error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if session == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
