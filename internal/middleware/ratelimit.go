// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// DefaultAPIRateLimitRPM is the per-IP request budget applied when the
// configuration does not set one.
const DefaultAPIRateLimitRPM = 600

// RateLimitConfig holds configuration for the rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests allowed in the window.
	RequestLimit int
	// WindowSize is the time window for rate limiting.
	WindowSize time.Duration
	// KeyFunc extracts the rate limit key from the request. Defaults to
	// the client IP.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit creates a rate limiting middleware backed by httprate's sliding
// window counter. Rejected requests get a 429 JSON body with a Retry-After
// header.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(cfg.WindowSize.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
		}),
	)
}

// APIRateLimit returns a rate limiter for the general API surface, allowing
// rpm requests per minute per client IP.
func APIRateLimit(rpm int) func(http.Handler) http.Handler {
	if rpm <= 0 {
		rpm = DefaultAPIRateLimitRPM
	}
	return RateLimit(RateLimitConfig{
		RequestLimit: rpm,
		WindowSize:   time.Minute,
	})
}
