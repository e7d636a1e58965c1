// SPDX-License-Identifier: MIT

// Package types provides type-safe enumerations and constants for clipforge.
//
// This package centralizes all typed constants, enums, and state types
// to prevent string-based bugs and improve code maintainability.
package types

import (
	"encoding/json"
	"fmt"
)

// JobStatus represents the current state of a composition job.
//
// JobStatus provides type safety for job state management, preventing
// string-based typos and enabling exhaustive switch statements. The
// non-terminal statuses form a fixed pipeline order (see StageIndex);
// the canvas and audio stages are optional and may be skipped.
type JobStatus string

// Job status constants define all possible states of a composition job.
const (
	// JobStatusIdle indicates no job has been submitted yet.
	JobStatusIdle JobStatus = "idle"

	// JobStatusSelectingClips indicates the engine is choosing source clips.
	JobStatusSelectingClips JobStatus = "selecting_clips"

	// JobStatusPreparingClips indicates clips are being trimmed and normalized.
	JobStatusPreparingClips JobStatus = "preparing_clips"

	// JobStatusConcatenating indicates clips are being joined into one video.
	JobStatusConcatenating JobStatus = "concatenating"

	// JobStatusApplyingCanvas indicates the overlay template is being rendered.
	// Skipped when the job has no canvas template.
	JobStatusApplyingCanvas JobStatus = "applying_canvas"

	// JobStatusMixingAudio indicates background music is being mixed in.
	// Skipped when the job has no background music.
	JobStatusMixingAudio JobStatus = "mixing_audio"

	// JobStatusComplete indicates the job finished successfully.
	JobStatusComplete JobStatus = "complete"

	// JobStatusFailed indicates the job encountered an error and terminated.
	JobStatusFailed JobStatus = "failed"
)

// String returns the string representation of the job status.
// Implements the fmt.Stringer interface for better logging and debugging.
func (s JobStatus) String() string {
	return string(s)
}

// IsValid checks whether the job status is one of the defined constants.
//
// Returns true if the status is valid, false otherwise.
//
// Example:
//
//	status := JobStatus("concatenating")
//	if status.IsValid() {
//	    // Safe to use
//	}
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusIdle, JobStatusSelectingClips, JobStatusPreparingClips,
		JobStatusConcatenating, JobStatusApplyingCanvas, JobStatusMixingAudio,
		JobStatusComplete, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal checks whether the job status represents a final state.
//
// Terminal states include: Complete, Failed.
// A job in a terminal state will not transition to another state; any
// further progress events for it must be dropped.
//
// Example:
//
//	if status.IsTerminal() {
//	    // Job is done, a new submit is required for further work
//	}
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusComplete, JobStatusFailed:
		return true
	default:
		return false
	}
}

// StageIndex returns the position of the status in the fixed pipeline order.
//
// The order is: idle(0) → selecting_clips(1) → preparing_clips(2) →
// concatenating(3) → applying_canvas(4) → mixing_audio(5) → complete(6).
// Failed shares the highest index since it is reachable from every
// non-terminal stage. Invalid statuses return -1.
func (s JobStatus) StageIndex() int {
	switch s {
	case JobStatusIdle:
		return 0
	case JobStatusSelectingClips:
		return 1
	case JobStatusPreparingClips:
		return 2
	case JobStatusConcatenating:
		return 3
	case JobStatusApplyingCanvas:
		return 4
	case JobStatusMixingAudio:
		return 5
	case JobStatusComplete, JobStatusFailed:
		return 6
	default:
		return -1
	}
}

// CanTransitionTo checks whether this status can transition to the target status.
//
// Transitions are forward-only along the pipeline order. Skipping the
// optional applying_canvas and mixing_audio stages is allowed (a job
// without a template or music jumps straight over them). Failed is
// reachable from every non-terminal status; terminal statuses cannot
// transition at all.
//
// Example:
//
//	current := JobStatusConcatenating
//	if current.CanTransitionTo(JobStatusMixingAudio) {
//	    // Canvas stage skipped, still a legal forward move
//	}
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	// Terminal states cannot transition
	if s.IsTerminal() {
		return false
	}
	if !s.IsValid() || !target.IsValid() {
		return false
	}
	if target == JobStatusFailed {
		return true
	}
	if target == JobStatusIdle {
		return false
	}
	return target.StageIndex() > s.StageIndex()
}

// MarshalJSON implements json.Marshaler for JobStatus.
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler for JobStatus.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status := JobStatus(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid job status: %q", str)
	}

	*s = status
	return nil
}

// ParseJobStatus parses a string into a JobStatus, returning an error if invalid.
//
// Example:
//
//	status, err := ParseJobStatus("mixing_audio")
//	if err != nil {
//	    // Handle invalid status
//	}
func ParseJobStatus(s string) (JobStatus, error) {
	status := JobStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid job status: %q (valid: idle, selecting_clips, preparing_clips, concatenating, applying_canvas, mixing_audio, complete, failed)", s)
	}
	return status, nil
}

// AllJobStatuses returns all defined job statuses in pipeline order.
//
// Useful for validation, documentation, and UI enumeration.
func AllJobStatuses() []JobStatus {
	return []JobStatus{
		JobStatusIdle,
		JobStatusSelectingClips,
		JobStatusPreparingClips,
		JobStatusConcatenating,
		JobStatusApplyingCanvas,
		JobStatusMixingAudio,
		JobStatusComplete,
		JobStatusFailed,
	}
}
