// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the daemon.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Composition job attributes
	JobIDKey       = "job.id"
	JobStatusKey   = "job.status"
	JobStageKey    = "job.stage"
	JobProgressKey = "job.progress"
	JobClipsKey    = "job.clips"

	// Engine client attributes
	EngineOpKey      = "engine.op"
	EngineAttemptKey = "engine.attempt"

	// Hosting client attributes
	HostingOpKey      = "hosting.op"
	HostingAttemptKey = "hosting.attempt"

	// Upload attributes
	UploadVideoIDKey = "upload.video_id"
	UploadStatusKey  = "upload.status"
	UploadBytesKey   = "upload.uploaded_bytes"
	UploadTotalKey   = "upload.total_bytes"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// JobAttributes creates composition-job span attributes.
func JobAttributes(jobID, status, stage string, progress int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if jobID != "" {
		attrs = append(attrs, attribute.String(JobIDKey, jobID))
	}
	if status != "" {
		attrs = append(attrs, attribute.String(JobStatusKey, status))
	}
	if stage != "" {
		attrs = append(attrs, attribute.String(JobStageKey, stage))
	}
	attrs = append(attrs, attribute.Int(JobProgressKey, progress))
	return attrs
}

// EngineAttributes creates engine-call span attributes.
func EngineAttributes(op string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(EngineOpKey, op),
		attribute.Int(EngineAttemptKey, attempt),
	}
}

// HostingAttributes creates hosting-call span attributes.
func HostingAttributes(op string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HostingOpKey, op),
		attribute.Int(HostingAttemptKey, attempt),
	}
}

// UploadAttributes creates upload span attributes.
func UploadAttributes(videoID, status string, uploaded, total int64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if videoID != "" {
		attrs = append(attrs, attribute.String(UploadVideoIDKey, videoID))
	}
	if status != "" {
		attrs = append(attrs, attribute.String(UploadStatusKey, status))
	}
	attrs = append(attrs,
		attribute.Int64(UploadBytesKey, uploaded),
		attribute.Int64(UploadTotalKey, total),
	)
	return attrs
}

// ErrorAttributes creates error span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
