// SPDX-License-Identifier: MIT

package hosting

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotAuthenticated   = errors.New("hosting: not authenticated")
	ErrHostingUnavailable = errors.New("hosting: unreachable or transport failure")
	ErrHostingRejected    = errors.New("hosting: request rejected")
	ErrQuotaExhausted     = errors.New("hosting: upload quota exhausted")
	ErrNotFound           = errors.New("hosting: resource not found")
	ErrBadResponse        = errors.New("hosting: invalid response format or malformed data")
)

// HostingError is a rich error type that wraps the sentinel errors with
// request context.
type HostingError struct {
	Sentinel error
	Op       string
	Status   int
	Body     string
	Err      error // Nested lower-level error (e.g. net.Error)
}

func (e *HostingError) Error() string {
	msg := fmt.Sprintf("hosting: %s: %v", e.Op, e.Sentinel)
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

func (e *HostingError) Unwrap() error {
	return e.Sentinel
}
