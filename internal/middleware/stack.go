// SPDX-License-Identifier: MIT

// Package middleware provides the canonical HTTP ingress stack for the
// daemon's API server: panic recovery, request correlation, metrics,
// tracing, access logging and rate limiting, applied in a fixed order.
package middleware

import (
	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/log"
)

// StackConfig configures the canonical middleware stack.
type StackConfig struct {
	// Observability
	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	// Rate limiting
	RateLimitEnabled bool
	RateLimitRPM     int // requests per minute per client IP
}

// NewRouter constructs a chi router with the canonical middleware stack
// applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the canonical middleware stack to r.
func ApplyStack(r chi.Router, cfg StackConfig) {
	// 1. Recoverer (outermost safety net)
	r.Use(Recoverer)
	// 2. RequestID (correlation early)
	r.Use(RequestID)
	// 3. Metrics (track all requests)
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	// 4. Tracing
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	// 5. Logging (wraps handlers, captures full latency)
	if cfg.EnableLogging {
		r.Use(log.Middleware())
	}
	// 6. Rate limit
	if cfg.RateLimitEnabled {
		r.Use(APIRateLimit(cfg.RateLimitRPM))
	}
}
