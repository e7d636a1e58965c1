// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextWithRequestID(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		requestID string
		want      string
	}{
		{
			name:      "nil context",
			ctx:       nil,
			requestID: "test-id-123",
			want:      "test-id-123",
		},
		{
			name:      "background context",
			ctx:       context.Background(),
			requestID: "req-456",
			want:      "req-456",
		},
		{
			name:      "empty request ID",
			ctx:       context.Background(),
			requestID: "",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRequestID(tt.ctx, tt.requestID)
			got := RequestIDFromContext(ctx)
			if got != tt.want {
				t.Errorf("RequestIDFromContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContextCarriers_Independent(t *testing.T) {
	ctx := context.Background()
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithSessionID(ctx, "sess-1")
	ctx = ContextWithJobID(ctx, "job-1")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("RequestIDFromContext() = %v, want req-1", got)
	}
	if got := SessionIDFromContext(ctx); got != "sess-1" {
		t.Errorf("SessionIDFromContext() = %v, want sess-1", got)
	}
	if got := JobIDFromContext(ctx); got != "job-1" {
		t.Errorf("JobIDFromContext() = %v, want job-1", got)
	}
}

func TestFromContext_MissingValues(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("expected empty request ID, got %q", got)
	}
	if got := SessionIDFromContext(ctx); got != "" {
		t.Errorf("expected empty session ID, got %q", got)
	}
	if got := JobIDFromContext(ctx); got != "" {
		t.Errorf("expected empty job ID, got %q", got)
	}
}

func TestWithContext_EnrichesLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := ContextWithJobID(ContextWithSessionID(context.Background(), "sess-9"), "job-9")
	enriched := WithContext(ctx, logger)
	enriched.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log line: %v", err)
	}
	if entry["session_id"] != "sess-9" {
		t.Errorf("session_id = %v, want sess-9", entry["session_id"])
	}
	if entry["job_id"] != "job-9" {
		t.Errorf("job_id = %v, want job-9", entry["job_id"])
	}
}

func TestWithContext_NoFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	enriched := WithContext(context.Background(), logger)
	enriched.Info().Msg("plain")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log line: %v", err)
	}
	if _, ok := entry["request_id"]; ok {
		t.Error("request_id should not be present on an unenriched logger")
	}
}
