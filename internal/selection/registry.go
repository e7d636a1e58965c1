// SPDX-License-Identifier: MIT

// Package selection tracks which games, and optionally which individual
// clips, are included in the next composition. Selection order is preserved
// so the submitted configuration is deterministic.
package selection

import (
	"sync"

	"github.com/clipforge/clipforge/internal/media"
)

// orderedSet is a string set that remembers insertion order.
type orderedSet struct {
	order []string
	set   map[string]struct{}
}

func newOrderedSet() orderedSet {
	return orderedSet{set: make(map[string]struct{})}
}

// toggle flips membership and reports the resulting state. A re-added id
// moves to the end of the order.
func (s *orderedSet) toggle(id string) bool {
	if _, ok := s.set[id]; ok {
		delete(s.set, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return false
	}
	s.set[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

func (s *orderedSet) has(id string) bool {
	_, ok := s.set[id]
	return ok
}

func (s *orderedSet) snapshot() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *orderedSet) clear() {
	s.order = nil
	s.set = make(map[string]struct{})
}

// Registry is the session-scoped record of what the user has selected for
// inclusion. Games drive the engine's own clip picking; clip pins mark
// hand-picked clips for the timeline. All methods are safe for concurrent
// use.
type Registry struct {
	mu    sync.Mutex
	games orderedSet
	clips orderedSet
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{games: newOrderedSet(), clips: newOrderedSet()}
}

// ToggleGame flips the inclusion of a game and reports whether it is now
// selected.
func (r *Registry) ToggleGame(gameID string) (bool, error) {
	if gameID == "" {
		return false, &media.ValidationError{Field: "game_id", Reason: "must not be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.games.toggle(gameID), nil
}

// ToggleClip flips the pin state of an individual clip and reports whether
// it is now pinned.
func (r *Registry) ToggleClip(clipID string) (bool, error) {
	if clipID == "" {
		return false, &media.ValidationError{Field: "clip_id", Reason: "must not be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clips.toggle(clipID), nil
}

// IsGameSelected reports whether the game is currently included.
func (r *Registry) IsGameSelected(gameID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.games.has(gameID)
}

// IsClipPinned reports whether the clip is currently pinned.
func (r *Registry) IsClipPinned(clipID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clips.has(clipID)
}

// SelectedGames returns the selected game ids in selection order.
func (r *Registry) SelectedGames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.games.snapshot()
}

// PinnedClips returns the pinned clip ids in selection order.
func (r *Registry) PinnedClips() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clips.snapshot()
}

// Counts returns the number of selected games and pinned clips.
func (r *Registry) Counts() (games, clips int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.games.order), len(r.clips.order)
}

// Reset clears every selection.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games.clear()
	r.clips.clear()
}
