// SPDX-License-Identifier: MIT

package upload

import (
	"errors"
	"fmt"
	"time"

	"github.com/clipforge/clipforge/internal/media"
)

var (
	// ErrUploadActive is returned by Start while another upload for the
	// session is still non-terminal. The existing upload is left untouched.
	ErrUploadActive = errors.New("upload: another upload is already running")

	// ErrQuotaExceeded is returned when the authoritative quota check at
	// start time denies the request.
	ErrQuotaExceeded = errors.New("upload: quota exceeded")

	// ErrUploadNotFound is returned for operations on an unknown upload id.
	ErrUploadNotFound = errors.New("upload: upload not found")

	// ErrUploadTerminal is returned when stopping an upload that already
	// reached a terminal status.
	ErrUploadTerminal = errors.New("upload: upload already terminal")

	// ErrClosed is returned once the coordinator has been shut down.
	ErrClosed = errors.New("upload: coordinator closed")
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
	return fmt.Sprintf("upload: quota exceeded (%d of %d used, resets %s)",
		e.Quota.Used, e.Quota.Limit, e.Quota.ResetAt.Format(time.RFC3339))
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}
