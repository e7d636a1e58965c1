// SPDX-License-Identifier: MIT

package types

import (
	"encoding/json"
	"fmt"
)

// UploadStatus represents the current state of a video upload to the
// hosting service. It mirrors JobStatus structurally but tracks the
// upload pipeline: pending → uploading → processing → {completed | failed}.
type UploadStatus string

// Upload status constants.
const (
	// UploadStatusPending indicates the upload has been accepted but no
	// bytes have been transferred yet.
	UploadStatusPending UploadStatus = "pending"

	// UploadStatusUploading indicates bytes are being transferred.
	UploadStatusUploading UploadStatus = "uploading"

	// UploadStatusProcessing indicates the hosting service is processing
	// the fully transferred file.
	UploadStatusProcessing UploadStatus = "processing"

	// UploadStatusCompleted indicates the video is live on the hosting service.
	UploadStatusCompleted UploadStatus = "completed"

	// UploadStatusFailed indicates the upload terminated with an error.
	UploadStatusFailed UploadStatus = "failed"
)

// String implements fmt.Stringer.
func (s UploadStatus) String() string {
	return string(s)
}

// IsValid checks whether the upload status is one of the defined constants.
func (s UploadStatus) IsValid() bool {
	switch s {
	case UploadStatusPending, UploadStatusUploading, UploadStatusProcessing,
		UploadStatusCompleted, UploadStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal checks whether the upload status represents a final state.
// Once terminal, the upload record is immutable and polling stops.
func (s UploadStatus) IsTerminal() bool {
	switch s {
	case UploadStatusCompleted, UploadStatusFailed:
		return true
	default:
		return false
	}
}

// StageIndex returns the position of the status in the upload pipeline
// order. Completed and failed share the highest index. Invalid statuses
// return -1.
func (s UploadStatus) StageIndex() int {
	switch s {
	case UploadStatusPending:
		return 0
	case UploadStatusUploading:
		return 1
	case UploadStatusProcessing:
		return 2
	case UploadStatusCompleted, UploadStatusFailed:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo checks whether this status can transition to the target.
// Transitions are forward-only; failed is reachable from every
// non-terminal status.
func (s UploadStatus) CanTransitionTo(target UploadStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if !s.IsValid() || !target.IsValid() {
		return false
	}
	if target == UploadStatusFailed {
		return true
	}
	return target.StageIndex() > s.StageIndex()
}

// MarshalJSON implements json.Marshaler for UploadStatus.
func (s UploadStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler for UploadStatus.
func (s *UploadStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status := UploadStatus(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid upload status: %q", str)
	}

	*s = status
	return nil
}

// ParseUploadStatus parses a string into an UploadStatus, returning an
// error if invalid.
func ParseUploadStatus(s string) (UploadStatus, error) {
	status := UploadStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid upload status: %q (valid: pending, uploading, processing, completed, failed)", s)
	}
	return status, nil
}
