// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/log"
)

// HeaderRequestID carries the request correlation id on both requests and
// responses.
const HeaderRequestID = "X-Request-ID"

// RequestID adds a unique id to every request. A caller-supplied id is
// preserved so the UI can correlate its own retries.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)
		ctx := log.ContextWithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
