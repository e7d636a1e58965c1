// SPDX-License-Identifier: MIT

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_http_requests_total",
		Help: "API requests by method, route pattern and status",
	}, []string{"method", "path", "status"})

	httpRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipforge_http_request_duration_seconds",
		Help:    "API request latency by method and route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// ObserveHTTPRequest records one API request. Path must be the route
// pattern (e.g. /v1/jobs/{jobID}), never the raw URL, to keep cardinality
// bounded.
func ObserveHTTPRequest(method, path string, status int, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, path).Observe(seconds)
}
