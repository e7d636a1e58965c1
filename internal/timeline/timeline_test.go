// SPDX-License-Identifier: MIT

package timeline

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/media"
)

func mkClip(id string, start, end float64) media.Clip {
	return media.Clip{
		ID:        id,
		GameID:    "game-1",
		EventID:   "event-" + id,
		Path:      "/clips/" + id + ".mp4",
		StartTime: start,
		EndTime:   end,
		Duration:  end - start,
	}
}

func seeded(t *testing.T, ids ...string) *Model {
	t.Helper()
	m := NewModel()
	for _, id := range ids {
		_, err := m.Add(mkClip(id, 0, 10))
		require.NoError(t, err)
	}
	return m
}

func ids(clips []media.TimelineClip) []string {
	out := make([]string, len(clips))
	for i, c := range clips {
		out[i] = c.Clip.ID
	}
	return out
}

func assertContiguous(t *testing.T, clips []media.TimelineClip) {
	t.Helper()
	for i, c := range clips {
		if c.Order != i {
			t.Fatalf("order at position %d = %d, want %d", i, c.Order, i)
		}
	}
}

func TestModel_AddAssignsSequentialOrder(t *testing.T) {
	m := NewModel()

	for i, id := range []string{"a", "b", "c"} {
		entry, err := m.Add(mkClip(id, 0, 10))
		require.NoError(t, err)
		assert.Equal(t, i, entry.Order)
	}

	assert.Equal(t, 3, m.Len())
	assertContiguous(t, m.Clips())
}

func TestModel_Add_Rejections(t *testing.T) {
	m := seeded(t, "a")

	_, err := m.Add(mkClip("a", 0, 10))
	require.ErrorIs(t, err, media.ErrValidation)

	_, err = m.Add(mkClip("", 0, 10))
	require.ErrorIs(t, err, media.ErrValidation)

	assert.Equal(t, 1, m.Len())
}

func TestModel_Remove_Renumbers(t *testing.T) {
	m := seeded(t, "a", "b", "c", "d")

	require.NoError(t, m.Remove("b"))

	if diff := cmp.Diff([]string{"a", "c", "d"}, ids(m.Clips())); diff != "" {
		t.Errorf("clip order mismatch (-want +got):\n%s", diff)
	}
	assertContiguous(t, m.Clips())

	require.ErrorIs(t, m.Remove("b"), ErrClipNotFound)
}

func TestModel_Reorder(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		newIndex int
		want     []string
	}{
		{"forward", "a", 2, []string{"b", "c", "a", "d"}},
		{"backward", "d", 0, []string{"d", "a", "b", "c"}},
		{"same position", "b", 1, []string{"a", "b", "c", "d"}},
		{"to end", "a", 3, []string{"b", "c", "d", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := seeded(t, "a", "b", "c", "d")
			require.NoError(t, m.Reorder(tt.id, tt.newIndex))

			if diff := cmp.Diff(tt.want, ids(m.Clips())); diff != "" {
				t.Errorf("clip order mismatch (-want +got):\n%s", diff)
			}
			assertContiguous(t, m.Clips())
		})
	}
}

func TestModel_Reorder_Errors(t *testing.T) {
	m := seeded(t, "a", "b")

	require.ErrorIs(t, m.Reorder("missing", 0), ErrClipNotFound)
	require.ErrorIs(t, m.Reorder("a", -1), media.ErrValidation)
	require.ErrorIs(t, m.Reorder("a", 2), media.ErrValidation)

	if diff := cmp.Diff([]string{"a", "b"}, ids(m.Clips())); diff != "" {
		t.Errorf("failed reorder must not mutate (-want +got):\n%s", diff)
	}
}

// Any interleaving of add/remove/reorder must leave order values a contiguous
// permutation of 0..N-1.
func TestModel_OrderInvariantUnderMutation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := NewModel()
	next := 0

	for step := 0; step < 500; step++ {
		switch op := rng.Intn(3); {
		case op == 0 || m.Len() == 0:
			id := fmt.Sprintf("clip-%d", next)
			next++
			_, err := m.Add(mkClip(id, 0, 10))
			require.NoError(t, err)
		case op == 1:
			clips := m.Clips()
			victim := clips[rng.Intn(len(clips))]
			require.NoError(t, m.Remove(victim.Clip.ID))
		default:
			clips := m.Clips()
			subject := clips[rng.Intn(len(clips))]
			require.NoError(t, m.Reorder(subject.Clip.ID, rng.Intn(len(clips))))
		}

		assertContiguous(t, m.Clips())
	}
}

func TestModel_Trim(t *testing.T) {
	tests := []struct {
		name      string
		start     float64
		end       float64
		wantField string
	}{
		{"within bounds", 12, 18, ""},
		{"exact original bounds", 10, 20, ""},
		{"minimum length window", 12, 13, ""},
		{"window too short", 12, 12.5, "trim"},
		{"inverted window", 18, 12, "trim"},
		{"start before clip", 9.5, 15, "trim_start"},
		{"end past clip", 15, 20.5, "trim_end"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel()
			_, err := m.Add(mkClip("a", 10, 20))
			require.NoError(t, err)

			err = m.Trim("a", tt.start, tt.end)
			got, ok := m.Clip("a")
			require.True(t, ok)

			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.start, got.EffectiveStart())
				assert.Equal(t, tt.end, got.EffectiveEnd())
				return
			}

			var verr *media.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
			require.ErrorIs(t, err, media.ErrValidation)

			// A rejected trim leaves the entry untouched.
			assert.Nil(t, got.TrimStart)
			assert.Nil(t, got.TrimEnd)
		})
	}
}

func TestModel_Trim_MutatesOnlyTargetEntry(t *testing.T) {
	m := NewModel()
	_, err := m.Add(mkClip("a", 0, 10))
	require.NoError(t, err)
	_, err = m.Add(mkClip("b", 0, 10))
	require.NoError(t, err)

	require.NoError(t, m.Trim("a", 2, 8))

	a, _ := m.Clip("a")
	b, _ := m.Clip("b")
	assert.NotNil(t, a.TrimStart)
	assert.Nil(t, b.TrimStart)
	assert.Nil(t, b.TrimEnd)
}

func TestModel_Trim_UnknownClip(t *testing.T) {
	m := NewModel()
	require.ErrorIs(t, m.Trim("missing", 0, 5), ErrClipNotFound)
}

func TestModel_ClearTrim(t *testing.T) {
	m := NewModel()
	_, err := m.Add(mkClip("a", 10, 20))
	require.NoError(t, err)

	require.NoError(t, m.Trim("a", 12, 18))
	require.NoError(t, m.ClearTrim("a"))

	got, _ := m.Clip("a")
	assert.Equal(t, 10.0, got.EffectiveStart())
	assert.Equal(t, 20.0, got.EffectiveEnd())
}

func TestModel_WithMinClipLength(t *testing.T) {
	m := NewModel(WithMinClipLength(2.0))
	_, err := m.Add(mkClip("a", 0, 10))
	require.NoError(t, err)

	require.ErrorIs(t, m.Trim("a", 0, 1.5), media.ErrValidation)
	require.NoError(t, m.Trim("a", 0, 2))
}

func TestModel_TotalDuration(t *testing.T) {
	m := NewModel()
	_, err := m.Add(mkClip("a", 0, 10))
	require.NoError(t, err)
	_, err = m.Add(mkClip("b", 5, 20))
	require.NoError(t, err)

	assert.InDelta(t, 25.0, m.TotalDuration(), 1e-9)

	require.NoError(t, m.Trim("b", 5, 12))
	assert.InDelta(t, 17.0, m.TotalDuration(), 1e-9)
}

func TestModel_Reset(t *testing.T) {
	m := seeded(t, "a", "b")
	m.Reset()
	assert.Equal(t, 0, m.Len())
	assert.InDelta(t, 0.0, m.TotalDuration(), 1e-9)
}
