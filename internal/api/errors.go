// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/engine"
	"github.com/clipforge/clipforge/internal/exports"
	"github.com/clipforge/clipforge/internal/hosting"
	"github.com/clipforge/clipforge/internal/log"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/session"
	"github.com/clipforge/clipforge/internal/timeline"
	"github.com/clipforge/clipforge/internal/upload"
)

// maxBodyBytes caps request bodies. The API carries editing commands and
// metadata, never media payloads.
const maxBodyBytes = 1 << 20

// errorBody is the stable JSON error shape.
type errorBody struct {
	Error string           `json:"error"`
	Quota *media.QuotaInfo `json:"quota,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to its HTTP status and a stable JSON body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)

	if code >= http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "request.failed").
			Str("method", r.Method).
			Str(log.FieldPath, r.URL.Path).
			Int("status", code).
			Msg("request failed")
	}

	body := errorBody{Error: err.Error()}
	if q := quotaOf(err); q != nil {
		body.Quota = q
	}
	writeJSON(w, code, body)
}

// statusFor picks the HTTP status for a domain error. Unknown errors are
// internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, media.ErrValidation):
		return http.StatusUnprocessableEntity

	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, compose.ErrJobNotFound),
		errors.Is(err, upload.ErrUploadNotFound),
		errors.Is(err, exports.ErrNotFound),
		errors.Is(err, timeline.ErrClipNotFound),
		errors.Is(err, engine.ErrNotFound),
		errors.Is(err, hosting.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, compose.ErrAlreadyRunning),
		errors.Is(err, upload.ErrUploadActive),
		errors.Is(err, compose.ErrJobTerminal),
		errors.Is(err, upload.ErrUploadTerminal):
		return http.StatusConflict

	case errors.Is(err, compose.ErrQuotaExceeded),
		errors.Is(err, upload.ErrQuotaExceeded),
		errors.Is(err, engine.ErrQuotaExhausted),
		errors.Is(err, hosting.ErrQuotaExhausted):
		return http.StatusPaymentRequired

	case errors.Is(err, hosting.ErrNotAuthenticated):
		return http.StatusUnauthorized

	case errors.Is(err, engine.ErrEngineUnavailable),
		errors.Is(err, hosting.ErrHostingUnavailable),
		errors.Is(err, engine.ErrEngineRejected),
		errors.Is(err, hosting.ErrHostingRejected),
		errors.Is(err, engine.ErrBadResponse),
		errors.Is(err, hosting.ErrBadResponse):
		return http.StatusBadGateway

	case errors.Is(err, compose.ErrClosed),
		errors.Is(err, upload.ErrClosed),
		errors.Is(err, session.ErrManagerClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// quotaOf surfaces the quota snapshot a denial was based on, so the UI can
// render the allowance without a second request.
func quotaOf(err error) *media.QuotaInfo {
	var cq *compose.QuotaError
	if errors.As(err, &cq) {
		q := cq.Quota
		return &q
	}
	var uq *upload.QuotaError
	if errors.As(err, &uq) {
		q := uq.Quota
		return &q
	}
	return nil
}

// decodeJSON reads one JSON value from the request body, rejecting unknown
// fields and trailing garbage.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}

// writeBadRequest reports a malformed request (undecodable body, bad query
// parameter).
func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
}
