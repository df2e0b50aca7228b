package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/dhartley/toolshed/internal/auth"
	pkghttp "github.com/dhartley/toolshed/pkg/http"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultLoginRateLimit returns the default limit for the login endpoint.
// It sits above the per-account failure thresholds so a legitimate caller
// hits the account cooldown, with its Retry-After guidance, before the
// blunter IP limit.
func DefaultLoginRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
	}
}

// DefaultAPIRateLimit returns the default limit for authenticated endpoints
func DefaultAPIRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 100,
	}
}

func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests")
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

// RateLimitByAccount creates a middleware that rate limits by authenticated
// account, falling back to client IP when no account is on the context. Must
// run after the session middleware to see the account.
func RateLimitByAccount(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if user := auth.UserFromContext(r.Context()); user != nil {
				return "account:" + user.ID, nil
			}
			return httprate.KeyByRealIP(r)
		}),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}
