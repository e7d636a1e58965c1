// SPDX-License-Identifier: MIT

// Package metrics exposes the daemon's Prometheus metrics. All collectors
// register through promauto at package init; callers use the exported
// helpers instead of touching collectors directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Composition job metrics
	jobSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_job_submissions_total",
		Help: "Composition job submissions by outcome",
	}, []string{"outcome"}) // outcome=accepted|already_running|quota_exceeded|validation_error|engine_error

	jobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clipforge_jobs_active",
		Help: "Number of non-terminal composition jobs",
	})

	jobStageTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_job_stage_transitions_total",
		Help: "Observed job stage transitions",
	}, []string{"from", "to"})

	jobDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipforge_job_duration_seconds",
		Help:    "Time from submission to terminal status",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"status"}) // status=complete|failed

	// Progress event metrics
	progressEventsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipforge_progress_events_applied_total",
		Help: "Progress events applied to a job",
	})

	progressEventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_progress_events_dropped_total",
		Help: "Progress events dropped by reason",
	}, []string{"reason"}) // reason=unknown_job|terminal|stale|invalid

	// Quota metrics
	quotaDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_quota_denials_total",
		Help: "Quota denials by which check rejected",
	}, []string{"check"}) // check=advisory|authoritative

	// Engine client metrics
	engineRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_engine_requests_total",
		Help: "Requests to the composition engine by operation and outcome",
	}, []string{"op", "outcome"}) // outcome=success|error

	engineRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipforge_engine_request_duration_seconds",
		Help:    "Latency of composition engine requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	engineRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_engine_retries_total",
		Help: "Retried composition engine requests",
	}, []string{"op"})

	// Hosting client metrics
	hostingRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_hosting_requests_total",
		Help: "Requests to the video hosting service by operation and outcome",
	}, []string{"op", "outcome"})

	hostingRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipforge_hosting_request_duration_seconds",
		Help:    "Latency of video hosting requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	hostingRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_hosting_retries_total",
		Help: "Retried video hosting requests",
	}, []string{"op"})

	// Upload metrics
	uploadOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_upload_outcomes_total",
		Help: "Terminal upload outcomes",
	}, []string{"status"}) // status=completed|failed

	uploadsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clipforge_uploads_active",
		Help: "Number of non-terminal uploads",
	})

	uploadPollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipforge_upload_poll_errors_total",
		Help: "Transient errors while polling upload progress",
	})

	uploadedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipforge_uploaded_bytes_total",
		Help: "Bytes reported uploaded to the hosting service",
	})

	// Library metrics
	libraryClips = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clipforge_library_clips",
		Help: "Number of clips in the catalog after the last scan",
	})

	libraryScanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clipforge_library_scan_duration_seconds",
		Help:    "Time spent scanning the recordings directory",
		Buckets: prometheus.DefBuckets,
	})
)

func IncJobSubmission(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	jobSubmissionsTotal.WithLabelValues(outcome).Inc()
}

func IncActiveJobs() { jobsActive.Inc() }
func DecActiveJobs() { jobsActive.Dec() }

func IncStageTransition(from, to string) {
	jobStageTransitionsTotal.WithLabelValues(from, to).Inc()
}

func ObserveJobDuration(status string, seconds float64) {
	jobDurationSeconds.WithLabelValues(status).Observe(seconds)
}

func IncProgressApplied() { progressEventsAppliedTotal.Inc() }

func IncProgressDropped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	progressEventsDroppedTotal.WithLabelValues(reason).Inc()
}

func IncQuotaDenial(check string) {
	quotaDenialsTotal.WithLabelValues(check).Inc()
}

// ObserveEngineRequest records one engine call with its latency.
func ObserveEngineRequest(op, outcome string, seconds float64) {
	engineRequestsTotal.WithLabelValues(op, outcome).Inc()
	engineRequestDurationSeconds.WithLabelValues(op).Observe(seconds)
}

func IncEngineRetry(op string) { engineRetriesTotal.WithLabelValues(op).Inc() }

// ObserveHostingRequest records one hosting call with its latency.
func ObserveHostingRequest(op, outcome string, seconds float64) {
	hostingRequestsTotal.WithLabelValues(op, outcome).Inc()
	hostingRequestDurationSeconds.WithLabelValues(op).Observe(seconds)
}

func IncHostingRetry(op string) { hostingRetriesTotal.WithLabelValues(op).Inc() }

func IncUploadOutcome(status string) {
	uploadOutcomesTotal.WithLabelValues(status).Inc()
}

func IncActiveUploads() { uploadsActive.Inc() }
func DecActiveUploads() { uploadsActive.Dec() }

func IncUploadPollError() { uploadPollErrorsTotal.Inc() }

func AddUploadedBytes(n int64) {
	if n > 0 {
		uploadedBytesTotal.Add(float64(n))
	}
}

func SetLibraryClips(n int) { libraryClips.Set(float64(n)) }

func ObserveLibraryScanDuration(seconds float64) {
	libraryScanDurationSeconds.Observe(seconds)
}
