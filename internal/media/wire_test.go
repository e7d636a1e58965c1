// SPDX-License-Identifier: MIT

package media

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoEditConfig_MinimalWireShape(t *testing.T) {
	cfg := AutoEditConfig{
		GameIDs:        []string{"g1", "g2"},
		TargetDuration: TargetDuration120,
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	// Optional sections must be absent, not null.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "game_ids")
	assert.Contains(t, raw, "target_duration")
	assert.NotContains(t, raw, "canvas_template")
	assert.NotContains(t, raw, "background_music")
	assert.NotContains(t, raw, "audio_levels")

	assert.JSONEq(t, `{"game_ids":["g1","g2"],"target_duration":120}`, string(data))
}

func TestAutoEditConfig_Validate(t *testing.T) {
	valid := AutoEditConfig{
		GameIDs:        []string{"g1"},
		TargetDuration: TargetDuration60,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		cfg   AutoEditConfig
		field string
	}{
		{
			name:  "no games",
			cfg:   AutoEditConfig{TargetDuration: TargetDuration60},
			field: "game_ids",
		},
		{
			name:  "bad duration",
			cfg:   AutoEditConfig{GameIDs: []string{"g1"}, TargetDuration: 90},
			field: "target_duration",
		},
		{
			name: "music without path",
			cfg: AutoEditConfig{
				GameIDs:         []string{"g1"},
				TargetDuration:  TargetDuration60,
				BackgroundMusic: &BackgroundMusic{Loop: true},
			},
			field: "file_path",
		},
		{
			name: "levels without music",
			cfg: AutoEditConfig{
				GameIDs:        []string{"g1"},
				TargetDuration: TargetDuration60,
				AudioLevels:    &AudioLevels{GameVolume: 70, MusicVolume: 30},
			},
			field: "audio_levels",
		},
		{
			name: "levels out of range",
			cfg: AutoEditConfig{
				GameIDs:         []string{"g1"},
				TargetDuration:  TargetDuration60,
				BackgroundMusic: &BackgroundMusic{FilePath: "/music/track.mp3"},
				AudioLevels:     &AudioLevels{GameVolume: 101, MusicVolume: 30},
			},
			field: "game_volume",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrValidation), "should wrap ErrValidation")

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestTargetDuration_IsValid(t *testing.T) {
	tests := []struct {
		d    TargetDuration
		want bool
	}{
		{TargetDuration60, true},
		{TargetDuration120, true},
		{TargetDuration180, true},
		{TargetDuration(0), false},
		{TargetDuration(90), false},
		{TargetDuration(-60), false},
	}
	for _, tt := range tests {
		if got := tt.d.IsValid(); got != tt.want {
			t.Errorf("TargetDuration(%d).IsValid() = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestQuotaInfo_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   QuotaInfo
		want int
	}{
		{"usual", QuotaInfo{Limit: 5, Used: 2}, 3},
		{"exhausted", QuotaInfo{Limit: 5, Used: 5}, 0},
		{"overdrawn clamps to zero", QuotaInfo{Limit: 5, Used: 7}, 0},
		{"ignores stale remaining", QuotaInfo{Limit: 10, Used: 4, Remaining: 99}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.want, got.Remaining)
			assert.GreaterOrEqual(t, got.Remaining, 0)
		})
	}
}

func TestTimelineClip_EffectiveBounds(t *testing.T) {
	clip := Clip{ID: "c1", StartTime: 10, EndTime: 40, Duration: 30}

	untrimmed := TimelineClip{Clip: clip, Order: 0}
	assert.Equal(t, 10.0, untrimmed.EffectiveStart())
	assert.Equal(t, 40.0, untrimmed.EffectiveEnd())
	assert.Equal(t, 30.0, untrimmed.EffectiveDuration())

	start, end := 15.0, 25.0
	trimmed := TimelineClip{Clip: clip, Order: 0, TrimStart: &start, TrimEnd: &end}
	assert.Equal(t, 15.0, trimmed.EffectiveStart())
	assert.Equal(t, 25.0, trimmed.EffectiveEnd())
	assert.Equal(t, 10.0, trimmed.EffectiveDuration())
}

func TestAudioLevels_Defaults(t *testing.T) {
	levels := DefaultAudioLevels()
	assert.Equal(t, 70, levels.GameVolume)
	assert.Equal(t, 30, levels.MusicVolume)
	assert.NoError(t, levels.Validate())
}

func TestAudioLevels_Validate(t *testing.T) {
	tests := []struct {
		name   string
		levels AudioLevels
		ok     bool
	}{
		{"zeroes allowed", AudioLevels{0, 0}, true},
		{"maximum allowed", AudioLevels{100, 100}, true},
		{"game too high", AudioLevels{101, 50}, false},
		{"music negative", AudioLevels{50, -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.levels.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestProgressEvent_OptionalETA(t *testing.T) {
	raw := `{"job_id":"j1","status":"concatenating","progress_percentage":45,"current_stage":"joining clips","clips_selected":3,"total_clips":8}`
	var ev ProgressEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	assert.Nil(t, ev.EstimatedCompletionSeconds)

	eta := 30
	ev.EstimatedCompletionSeconds = &eta
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"estimated_completion_seconds":30`)
}

func TestExportResult_Fields(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := ExportResult{
		JobID:      "j1",
		OutputPath: "/videos/highlights.mp4",
		Duration:   118.5,
		ClipCount:  7,
		FileSize:   52_428_800,
		CreatedAt:  created,
	}
	data, err := json.Marshal(res)
	require.NoError(t, err)

	var back ExportResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, res, back)
}
