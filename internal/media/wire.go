// SPDX-License-Identifier: MIT

package media

import (
	"time"

	"github.com/clipforge/clipforge/internal/types"
)

// TargetDuration is the requested length of the composed video, drawn from
// a fixed enumerated set.
type TargetDuration int

// The three supported target durations, in seconds.
const (
	TargetDuration60  TargetDuration = 60
	TargetDuration120 TargetDuration = 120
	TargetDuration180 TargetDuration = 180
)

// IsValid checks whether the duration is one of the enumerated values.
func (d TargetDuration) IsValid() bool {
	switch d {
	case TargetDuration60, TargetDuration120, TargetDuration180:
		return true
	default:
		return false
	}
}

// Seconds returns the duration as a plain int.
func (d TargetDuration) Seconds() int {
	return int(d)
}

// AllTargetDurations returns the enumerated set in ascending order.
func AllTargetDurations() []TargetDuration {
	return []TargetDuration{TargetDuration60, TargetDuration120, TargetDuration180}
}

// AutoEditConfig is the composition job request sent to the engine.
// Optional sections are pointers marked omitempty so an unset section is
// absent from the wire payload entirely, never null.
type AutoEditConfig struct {
	GameIDs         []string         `json:"game_ids"`
	TargetDuration  TargetDuration   `json:"target_duration"`
	CanvasTemplate  *CanvasTemplate  `json:"canvas_template,omitempty"`
	BackgroundMusic *BackgroundMusic `json:"background_music,omitempty"`
	AudioLevels     *AudioLevels     `json:"audio_levels,omitempty"`
}

// Validate rejects configs the engine would refuse: no games selected, a
// target duration outside the enumerated set, or invalid optional sections.
// Music and levels travel together: levels without a track are meaningless.
func (c AutoEditConfig) Validate() error {
	if len(c.GameIDs) == 0 {
		return &ValidationError{Field: "game_ids", Reason: "at least one game must be selected"}
	}
	if !c.TargetDuration.IsValid() {
		return &ValidationError{Field: "target_duration", Reason: "must be one of 60, 120, 180"}
	}
	if c.BackgroundMusic != nil {
		if err := c.BackgroundMusic.Validate(); err != nil {
			return err
		}
	}
	if c.AudioLevels != nil {
		if c.BackgroundMusic == nil {
			return &ValidationError{Field: "audio_levels", Reason: "set without background_music"}
		}
		if err := c.AudioLevels.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CanvasTemplate is the wire shape of an overlay template: one background
// and an ordered list of elements. Variants are tagged by a "type" field;
// the canvas package owns the validated closed-sum-type model and converts
// to and from this shape.
type CanvasTemplate struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Background BackgroundSpec   `json:"background"`
	Elements   []CanvasElemSpec `json:"elements"`
}

// Background variant tags.
const (
	BackgroundTypeColor    = "color"
	BackgroundTypeGradient = "gradient"
	BackgroundTypeImage    = "image"
)

// Element variant tags.
const (
	ElementTypeText  = "text"
	ElementTypeImage = "image"
)

// BackgroundSpec is the tagged background variant on the wire. Exactly the
// fields of the tagged variant are populated.
type BackgroundSpec struct {
	Type string `json:"type"`

	// color
	Color string `json:"color,omitempty"`

	// gradient
	StartColor string `json:"start_color,omitempty"`
	EndColor   string `json:"end_color,omitempty"`

	// image
	Path string `json:"path,omitempty"`
}

// CanvasElemSpec is the tagged element variant on the wire.
type CanvasElemSpec struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`

	// text
	Content  string `json:"content,omitempty"`
	Font     string `json:"font,omitempty"`
	FontSize int    `json:"font_size,omitempty"`
	Color    string `json:"color,omitempty"`
	Outline  string `json:"outline,omitempty"`

	// image
	Path   string  `json:"path,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// ProgressEvent is one notification from the engine's progress stream.
// Events are delivered at-least-once and may arrive out of order around
// retries; consumers must treat them idempotently.
type ProgressEvent struct {
	JobID                      string          `json:"job_id"`
	Status                     types.JobStatus `json:"status"`
	ProgressPercentage         int             `json:"progress_percentage"`
	CurrentStage               string          `json:"current_stage"`
	ClipsSelected              int             `json:"clips_selected"`
	TotalClips                 int             `json:"total_clips"`
	EstimatedCompletionSeconds *int            `json:"estimated_completion_seconds,omitempty"`
	ErrorMessage               string          `json:"error_message,omitempty"`
}

// ExportResult describes one finished composition. Created exactly once,
// on the job's transition into Complete.
type ExportResult struct {
	JobID      string    `json:"job_id"`
	OutputPath string    `json:"output_path"`
	Duration   float64   `json:"duration"`
	ClipCount  int       `json:"clip_count"`
	FileSize   int64     `json:"file_size"`
	CreatedAt  time.Time `json:"created_at"`
}

// QuotaInfo is a snapshot of a periodic usage allowance.
type QuotaInfo struct {
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Normalize recomputes Remaining from Limit and Used, clamped at zero, so
// a skewed upstream snapshot can never report a negative allowance.
func (q QuotaInfo) Normalize() QuotaInfo {
	remaining := q.Limit - q.Used
	if remaining < 0 {
		remaining = 0
	}
	q.Remaining = remaining
	return q
}

// UploadProgress is a snapshot of the current upload's byte-level state,
// as reported by the hosting service poll endpoint.
type UploadProgress struct {
	VideoID       string             `json:"video_id,omitempty"`
	Status        types.UploadStatus `json:"status"`
	UploadedBytes int64              `json:"uploaded_bytes"`
	TotalBytes    int64              `json:"total_bytes"`
	ErrorMessage  string             `json:"error_message,omitempty"`
}

// Video is the hosting service's record of a published video.
type Video struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}

// VideoMetadata accompanies an upload.
type VideoMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Privacy     string   `json:"privacy,omitempty"`
}

// UploadHistoryEntry is one completed upload in the local history.
type UploadHistoryEntry struct {
	VideoID    string    `json:"video_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	FileSize   int64     `json:"file_size"`
	UploadedAt time.Time `json:"uploaded_at"`
}
