// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldClipID    = "clip_id"
	FieldGameID    = "game_id"
	FieldVideoID   = "video_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldReason    = "reason"

	// State fields
	FieldOldStatus = "old_status"
	FieldNewStatus = "new_status"
	FieldProgress  = "progress"

	// Media fields
	FieldDuration   = "duration_s"
	FieldClipCount  = "clip_count"
	FieldOutputPath = "output_path"
	FieldFileSize   = "file_size"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"

	// Upload fields
	FieldUploadedBytes = "uploaded_bytes"
	FieldTotalBytes    = "total_bytes"
)
