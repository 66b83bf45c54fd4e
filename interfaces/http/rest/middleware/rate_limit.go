package middleware

import (
	"net/http"

	"anima-backend/pkg/auth"
	"anima-backend/pkg/common"
)

// RateLimit rejects requests from IPs over their per-minute budget. Vote
// uniqueness is enforced at the storage layer; this only tames floods.
func RateLimit(limiter *auth.IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), auth.ClientIP(r))
			if err == nil && !allowed {
				common.RespondError(w, http.StatusTooManyRequests,
					"RATE_LIMIT_EXCEEDED", "Too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
