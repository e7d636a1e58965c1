// SPDX-License-Identifier: MIT

package compose

import (
	"time"

	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/types"
)

// Job is one run of the composition pipeline. It is created on submission
// and becomes immutable once it reaches a terminal status; exactly one of
// Result and Error is populated on a terminal job, never both.
type Job struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Status    types.JobStatus `json:"status"`

	ProgressPercentage         int    `json:"progress_percentage"`
	CurrentStage               string `json:"current_stage"`
	ClipsSelected              int    `json:"clips_selected"`
	TotalClips                 int    `json:"total_clips"`
	EstimatedCompletionSeconds *int   `json:"estimated_completion_seconds,omitempty"`

	// CancelRequested is an internal flag, not a status: the externally
	// visible status stays whatever the engine last reported until a
	// terminal event arrives or the cancellation timeout fires.
	CancelRequested bool `json:"cancel_requested"`

	Result *media.ExportResult `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`

	Config media.AutoEditConfig `json:"config"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the job reached Complete or Failed.
func (j *Job) Terminal() bool {
	return j.Status.IsTerminal()
}

// Clone returns a deep copy, so stored records and handed-out snapshots
// never alias each other.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.EstimatedCompletionSeconds != nil {
		v := *j.EstimatedCompletionSeconds
		out.EstimatedCompletionSeconds = &v
	}
	if j.Result != nil {
		res := *j.Result
		out.Result = &res
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	out.Config = cloneConfig(j.Config)
	return &out
}

func cloneConfig(cfg media.AutoEditConfig) media.AutoEditConfig {
	out := cfg
	out.GameIDs = append([]string(nil), cfg.GameIDs...)
	if cfg.CanvasTemplate != nil {
		tpl := *cfg.CanvasTemplate
		tpl.Elements = append([]media.CanvasElemSpec(nil), cfg.CanvasTemplate.Elements...)
		out.CanvasTemplate = &tpl
	}
	if cfg.BackgroundMusic != nil {
		bm := *cfg.BackgroundMusic
		out.BackgroundMusic = &bm
	}
	if cfg.AudioLevels != nil {
		al := *cfg.AudioLevels
		out.AudioLevels = &al
	}
	return out
}
