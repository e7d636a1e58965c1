// SPDX-License-Identifier: MIT

package media

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel all local validation failures wrap, for
// errors.Is checks at API boundaries.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a single offending field and why it was
// rejected. Validation happens locally, before any boundary call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
