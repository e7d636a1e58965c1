// SPDX-License-Identifier: MIT

// Package audio holds the validated audio mix settings for a composition:
// relative game/music gain plus an optional looped background track.
package audio

import (
	"sync"

	"github.com/clipforge/clipforge/internal/media"
)

// MixConfig is a session-scoped, mutex-guarded audio configuration.
// Levels default to 70 (game) / 30 (music).
type MixConfig struct {
	mu     sync.Mutex
	levels media.AudioLevels
	music  *media.BackgroundMusic
}

// NewMixConfig returns a config with the default levels and no music.
func NewMixConfig() *MixConfig {
	return &MixConfig{levels: media.DefaultAudioLevels()}
}

// SetLevels replaces both gain levels. Levels outside [0,100] are rejected
// and the previous values are kept.
func (m *MixConfig) SetLevels(game, music int) error {
	levels := media.AudioLevels{GameVolume: game, MusicVolume: music}
	if err := levels.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.levels = levels
	m.mu.Unlock()
	return nil
}

// SetMusic configures the background track.
func (m *MixConfig) SetMusic(path string, loop bool) error {
	music := media.BackgroundMusic{FilePath: path, Loop: loop}
	if err := music.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.music = &music
	m.mu.Unlock()
	return nil
}

// ClearMusic removes the background track. Levels are kept; they apply
// again when a new track is chosen.
func (m *MixConfig) ClearMusic() {
	m.mu.Lock()
	m.music = nil
	m.mu.Unlock()
}

// Levels returns the current gain levels.
func (m *MixConfig) Levels() media.AudioLevels {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels
}

// Music returns a copy of the configured background track, or nil when
// none is set.
func (m *MixConfig) Music() *media.BackgroundMusic {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.music == nil {
		return nil
	}
	music := *m.music
	return &music
}
