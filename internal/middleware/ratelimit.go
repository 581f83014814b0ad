package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/craftbooks/portal-server/internal/service"
)

// ExchangeRateLimitMiddleware throttles the unauthenticated invite-exchange
// endpoint per client IP. Codes are short enough that unthrottled guessing
// would matter.
type ExchangeRateLimitMiddleware struct {
	limiter *service.RateLimiter
}

func NewExchangeRateLimitMiddleware(limiter *service.RateLimiter) *ExchangeRateLimitMiddleware {
	return &ExchangeRateLimitMiddleware{limiter: limiter}
}

func (m *ExchangeRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		allowed, resetAt := m.limiter.CheckExchangeLimit(r.Context(), ip)
		if !allowed {
			log.Warn().Str("ip", ip).Msg("invite exchange rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())+1))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return r.RemoteAddr
}
