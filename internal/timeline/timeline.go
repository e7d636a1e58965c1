// SPDX-License-Identifier: MIT

// Package timeline maintains the ordered sequence of trimmed clip
// references that defines a composition's clip order and boundaries.
package timeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/clipforge/clipforge/internal/media"
)

// DefaultMinClipLength is the shortest effective clip duration, in seconds,
// a trim may produce.
const DefaultMinClipLength = 1.0

// ErrClipNotFound is returned when an operation names a clip id that is not
// on the timeline.
var ErrClipNotFound = errors.New("timeline: clip not found")

// Option configuration pattern
type Option func(*Model)

// WithMinClipLength overrides the minimum effective clip duration in seconds.
func WithMinClipLength(seconds float64) Option {
	return func(m *Model) {
		if seconds > 0 {
			m.minLen = seconds
		}
	}
}

// Model is an ordered, mutable sequence of timeline clips. Order values are
// kept as a contiguous permutation of 0..N-1 across every mutation. Each
// session owns its own Model; there is no shared global instance. All
// methods are safe for concurrent use.
type Model struct {
	mu     sync.Mutex
	minLen float64
	clips  []media.TimelineClip
}

// NewModel returns an empty timeline.
func NewModel(opts ...Option) *Model {
	m := &Model{minLen: DefaultMinClipLength}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add appends the clip to the end of the timeline. The new entry's order is
// the previous length of the sequence.
func (m *Model) Add(clip media.Clip) (media.TimelineClip, error) {
	if clip.ID == "" {
		return media.TimelineClip{}, &media.ValidationError{Field: "clip.id", Reason: "must not be empty"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(clip.ID) >= 0 {
		return media.TimelineClip{}, &media.ValidationError{Field: "clip.id", Reason: fmt.Sprintf("clip %q is already on the timeline", clip.ID)}
	}

	entry := media.TimelineClip{Clip: clip, Order: len(m.clips)}
	m.clips = append(m.clips, entry)
	return entry, nil
}

// Remove deletes the identified entry and renumbers all following entries to
// close the gap.
func (m *Model) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return ErrClipNotFound
	}

	m.clips = append(m.clips[:i], m.clips[i+1:]...)
	m.renumber()
	return nil
}

// Reorder moves the identified entry to newIndex by removing it and
// reinserting it at the target position, then renumbering the whole
// sequence. Entries displaced by the insertion keep their relative order.
func (m *Model) Reorder(id string, newIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return ErrClipNotFound
	}
	if newIndex < 0 || newIndex >= len(m.clips) {
		return &media.ValidationError{Field: "new_index", Reason: fmt.Sprintf("must be between 0 and %d", len(m.clips)-1)}
	}

	entry := m.clips[i]
	rest := append(m.clips[:i], m.clips[i+1:]...)

	out := make([]media.TimelineClip, 0, len(rest)+1)
	out = append(out, rest[:newIndex]...)
	out = append(out, entry)
	out = append(out, rest[newIndex:]...)

	m.clips = out
	m.renumber()
	return nil
}

// Trim sets the effective bounds of the identified entry. The request is
// rejected, leaving the timeline untouched, when the window is shorter than
// the minimum clip length or falls outside the clip's original bounds. Only
// the addressed entry is mutated.
func (m *Model) Trim(id string, start, end float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return ErrClipNotFound
	}

	if end-start < m.minLen {
		return &media.ValidationError{Field: "trim", Reason: fmt.Sprintf("window is %.2fs, minimum clip length is %.2fs", end-start, m.minLen)}
	}

	entry := &m.clips[i]
	if start < entry.Clip.StartTime {
		return &media.ValidationError{Field: "trim_start", Reason: fmt.Sprintf("%.2f is before the clip start %.2f", start, entry.Clip.StartTime)}
	}
	if end > entry.Clip.EndTime {
		return &media.ValidationError{Field: "trim_end", Reason: fmt.Sprintf("%.2f is past the clip end %.2f", end, entry.Clip.EndTime)}
	}

	s, e := start, end
	entry.TrimStart = &s
	entry.TrimEnd = &e
	return nil
}

// ClearTrim restores the identified entry to its original clip bounds.
func (m *Model) ClearTrim(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return ErrClipNotFound
	}

	m.clips[i].TrimStart = nil
	m.clips[i].TrimEnd = nil
	return nil
}

// Reset removes every entry from the timeline.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clips = nil
}

// Clip returns the timeline entry for the given clip id.
func (m *Model) Clip(id string) (media.TimelineClip, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return media.TimelineClip{}, false
	}
	return m.clips[i], true
}

// Clips returns a snapshot of the timeline in order.
func (m *Model) Clips() []media.TimelineClip {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]media.TimelineClip, len(m.clips))
	copy(out, m.clips)
	return out
}

// Len returns the number of entries on the timeline.
func (m *Model) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clips)
}

// TotalDuration returns the sum of effective per-clip durations in seconds.
// The model reports the value but does not enforce a match against any
// target duration; a mismatch is the caller's warning to surface.
func (m *Model) TotalDuration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total float64
	for i := range m.clips {
		total += m.clips[i].EffectiveDuration()
	}
	return total
}

// indexOf returns the position of the clip id, or -1. Callers hold m.mu.
func (m *Model) indexOf(id string) int {
	for i := range m.clips {
		if m.clips[i].Clip.ID == id {
			return i
		}
	}
	return -1
}

// renumber rewrites order values to match slice positions. Callers hold m.mu.
func (m *Model) renumber() {
	for i := range m.clips {
		m.clips[i].Order = i
	}
}
