// SPDX-License-Identifier: MIT

package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMixConfig_Defaults(t *testing.T) {
	mix := NewMixConfig()
	levels := mix.Levels()
	assert.Equal(t, 70, levels.GameVolume)
	assert.Equal(t, 30, levels.MusicVolume)
	assert.Nil(t, mix.Music())
}

func TestMixConfig_SetLevels(t *testing.T) {
	mix := NewMixConfig()
	require.NoError(t, mix.SetLevels(55, 45))
	levels := mix.Levels()
	assert.Equal(t, 55, levels.GameVolume)
	assert.Equal(t, 45, levels.MusicVolume)
}

func TestMixConfig_SetLevels_RejectsOutOfRange(t *testing.T) {
	mix := NewMixConfig()
	require.Error(t, mix.SetLevels(120, 30))
	require.Error(t, mix.SetLevels(70, -5))

	// Previous (default) values survive the rejected update.
	levels := mix.Levels()
	assert.Equal(t, 70, levels.GameVolume)
	assert.Equal(t, 30, levels.MusicVolume)
}

func TestMixConfig_Music(t *testing.T) {
	mix := NewMixConfig()
	require.NoError(t, mix.SetMusic("/music/synthwave.mp3", true))

	music := mix.Music()
	require.NotNil(t, music)
	assert.Equal(t, "/music/synthwave.mp3", music.FilePath)
	assert.True(t, music.Loop)

	// Returned copy must not alias internal state.
	music.FilePath = "/elsewhere.mp3"
	assert.Equal(t, "/music/synthwave.mp3", mix.Music().FilePath)

	mix.ClearMusic()
	assert.Nil(t, mix.Music())
}

func TestMixConfig_SetMusic_RejectsEmptyPath(t *testing.T) {
	mix := NewMixConfig()
	require.Error(t, mix.SetMusic("", false))
	assert.Nil(t, mix.Music())
}
