package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/craftbooks/portal-server/internal/util"
)

// StaffMiddleware guards the internal operator endpoints (portal
// enable/disable, invite issuance, audit review) with a bcrypt-hashed
// shared key.
type StaffMiddleware struct {
	keyHash string
}

func NewStaffMiddleware(keyHash string) *StaffMiddleware {
	return &StaffMiddleware{keyHash: keyHash}
}

func (m *StaffMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.keyHash == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "Staff access not configured",
			})
			return
		}

		key := extractStaffKey(r)
		if key == "" || !util.CheckPasswordHash(key, m.keyHash) {
			log.Warn().Str("path", r.URL.Path).Msg("staff middleware: invalid key attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractStaffKey(r *http.Request) string {
	if key := r.Header.Get("X-Staff-Key"); key != "" {
		return key
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
