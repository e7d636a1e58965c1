// SPDX-License-Identifier: MIT

package compose

import (
	"errors"
	"fmt"
	"time"

	"github.com/clipforge/clipforge/internal/media"
)

var (
	// ErrAlreadyRunning is returned by Submit while another job for the
	// session is still non-terminal. The existing job is left untouched.
	ErrAlreadyRunning = errors.New("compose: another composition is already running")

	// ErrQuotaExceeded is returned when the authoritative quota check at
	// submit time denies the request.
	ErrQuotaExceeded = errors.New("compose: quota exceeded")

	// ErrJobNotFound is returned for operations on an unknown job id.
	ErrJobNotFound = errors.New("compose: job not found")

	// ErrJobTerminal is returned when cancelling a job that already
	// reached a terminal status.
	ErrJobTerminal = errors.New("compose: job already terminal")

	// ErrClosed is returned once the controller has been shut down.
	ErrClosed = errors.New("compose: controller closed")
)

// QuotaError carries the quota snapshot a denial was based on, so callers
// can render the allowance and its reset time.
type QuotaError struct {
	Quota media.QuotaInfo
}

func (e *QuotaError) Error() string {
	if e.Quota.Limit == 0 && e.Quota.ResetAt.IsZero() {
		return ErrQuotaExceeded.Error()
	}
	return fmt.Sprintf("compose: quota exceeded (%d of %d used, resets %s)",
		e.Quota.Used, e.Quota.Limit, e.Quota.ResetAt.Format(time.RFC3339))
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}
