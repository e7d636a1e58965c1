// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// Tracing wraps the handler with OpenTelemetry HTTP instrumentation. It
// opens one server span per request and continues a W3C trace context
// when the caller sends one.
func Tracing(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(
			next,
			service,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			otelhttp.WithFilter(shouldTrace),
			otelhttp.WithSpanNameFormatter(spanName),
		)
	}
}

// shouldTrace skips probe and scrape endpoints to keep traces about
// actual work.
func shouldTrace(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics":
		return false
	}
	return true
}

// spanName keeps query values out of span names.
func spanName(operation string, r *http.Request) string {
	name := r.Method + " " + r.URL.Path
	if operation != "" {
		name = operation + ": " + name
	}
	return name
}
