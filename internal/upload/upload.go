// SPDX-License-Identifier: MIT

package upload

import (
	"time"

	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/types"
)

// Upload is one push of a finished composition to the hosting service. It
// is created by Start and becomes immutable once it reaches a terminal
// status; exactly one of Video and Error is populated on a terminal upload,
// never both.
type Upload struct {
	ID        string             `json:"id"`
	SessionID string             `json:"session_id"`
	JobID     string             `json:"job_id,omitempty"`
	Status    types.UploadStatus `json:"status"`

	FilePath      string              `json:"file_path"`
	ThumbnailPath string              `json:"thumbnail_path,omitempty"`
	Metadata      media.VideoMetadata `json:"metadata"`

	UploadedBytes int64 `json:"uploaded_bytes"`
	TotalBytes    int64 `json:"total_bytes"`

	Video *media.Video `json:"video,omitempty"`
	Error string       `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the upload reached Completed or Failed.
func (u *Upload) Terminal() bool {
	return u.Status.IsTerminal()
}

// Clone returns a deep copy, so tracked records and handed-out snapshots
// never alias each other.
func (u *Upload) Clone() *Upload {
	if u == nil {
		return nil
	}
	out := *u
	out.Metadata.Tags = append([]string(nil), u.Metadata.Tags...)
	if u.Video != nil {
		v := *u.Video
		out.Video = &v
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
