package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/mhartsell/gatehouse/pkg/http"
)

// RateLimitConfig holds HTTP-surface rate limiting configuration. This
// is the outer per-IP ceiling on raw requests; the login gate applies
// its own durable counters on top of it.
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultLoginRateLimit caps raw submissions to the login endpoints.
func DefaultLoginRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 30}
}

// DefaultAdminRateLimit caps the admin API surface.
func DefaultAdminRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 120}
}

// RateLimitByIP creates a middleware that rate limits requests by
// client IP, answering over-limit requests in the standard envelope.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "rate_limited", "Too many requests. Please slow down.")
		}),
	)
}
