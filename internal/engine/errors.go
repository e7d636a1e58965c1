// SPDX-License-Identifier: MIT

package engine

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrEngineUnavailable = errors.New("engine: unreachable or transport failure")
	ErrEngineRejected    = errors.New("engine: request rejected")
	ErrQuotaExhausted    = errors.New("engine: composition quota exhausted")
	ErrNotFound          = errors.New("engine: resource not found")
	ErrBadResponse       = errors.New("engine: invalid response format or malformed data")
)

// EngineError is a rich error type that wraps the sentinel errors with
// request context.
type EngineError struct {
	Sentinel error
	Op       string
	Status   int
	Body     string
	Err      error // Nested lower-level error (e.g. net.Error)
}

func (e *EngineError) Error() string {
	msg := fmt.Sprintf("engine: %s: %v", e.Op, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *EngineError) Unwrap() error {
	return e.Sentinel
}
