// SPDX-License-Identifier: MIT

// Package media defines the domain model and wire contracts shared between
// the timeline/composition layer, the external composition engine and the
// video hosting service.
package media

// Clip is one recorded gameplay clip as reported by the recording
// subsystem. Clips are read-only inputs here; the recorder owns them.
type Clip struct {
	ID            string  `json:"id"`
	GameID        string  `json:"game_id"`
	EventID       string  `json:"event_id"`
	Path          string  `json:"path"`
	ThumbnailPath string  `json:"thumbnail_path,omitempty"`
	StartTime     float64 `json:"start_time"`
	EndTime       float64 `json:"end_time"`
	Duration      float64 `json:"duration"`
}

// TimelineClip is a clip placed on the timeline: the source clip plus its
// position and optional trim bounds overriding the original ones.
type TimelineClip struct {
	Clip      Clip     `json:"clip"`
	Order     int      `json:"order"`
	TrimStart *float64 `json:"trim_start,omitempty"`
	TrimEnd   *float64 `json:"trim_end,omitempty"`
}

// EffectiveStart returns the trim start if set, the clip's original start
// otherwise.
func (tc TimelineClip) EffectiveStart() float64 {
	if tc.TrimStart != nil {
		return *tc.TrimStart
	}
	return tc.Clip.StartTime
}

// EffectiveEnd returns the trim end if set, the clip's original end
// otherwise.
func (tc TimelineClip) EffectiveEnd() float64 {
	if tc.TrimEnd != nil {
		return *tc.TrimEnd
	}
	return tc.Clip.EndTime
}

// EffectiveDuration returns the duration of the clip after trimming.
func (tc TimelineClip) EffectiveDuration() float64 {
	return tc.EffectiveEnd() - tc.EffectiveStart()
}

// AudioLevels holds the relative gain of the game audio track and the
// background music track, both in percent.
type AudioLevels struct {
	GameVolume  int `json:"game_volume"`
	MusicVolume int `json:"music_volume"`
}

// DefaultAudioLevels returns the documented defaults: game audio dominant,
// music underneath.
func DefaultAudioLevels() AudioLevels {
	return AudioLevels{GameVolume: 70, MusicVolume: 30}
}

// Validate checks both levels are within [0,100].
func (a AudioLevels) Validate() error {
	if a.GameVolume < 0 || a.GameVolume > 100 {
		return &ValidationError{Field: "game_volume", Reason: "must be between 0 and 100"}
	}
	if a.MusicVolume < 0 || a.MusicVolume > 100 {
		return &ValidationError{Field: "music_volume", Reason: "must be between 0 and 100"}
	}
	return nil
}

// BackgroundMusic names an audio file to mix underneath the game audio,
// optionally looped to cover the whole video.
type BackgroundMusic struct {
	FilePath string `json:"file_path"`
	Loop     bool   `json:"loop"`
}

// Validate checks the file reference is present. Whether the file exists
// is the filesystem collaborator's concern, not the model's.
func (b BackgroundMusic) Validate() error {
	if b.FilePath == "" {
		return &ValidationError{Field: "file_path", Reason: "must not be empty"}
	}
	return nil
}
