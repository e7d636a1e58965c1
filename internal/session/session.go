// SPDX-License-Identifier: MIT

// Package session ties one user's editing state together: clip selection,
// timeline, canvas template and audio mix feed the composition config, a
// controller drives jobs, a coordinator drives uploads, and every change
// lands in a subscribable state snapshot. Sessions are explicit values, not
// globals; independent sessions never share state.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipforge/clipforge/internal/audio"
	"github.com/clipforge/clipforge/internal/canvas"
	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/quota"
	"github.com/clipforge/clipforge/internal/selection"
	"github.com/clipforge/clipforge/internal/timeline"
	"github.com/clipforge/clipforge/internal/types"
	"github.com/clipforge/clipforge/internal/upload"
)

// DefaultTargetDuration is the target applied to a fresh session until the
// user picks one.
const DefaultTargetDuration = media.TargetDuration120

// Session is one user's editing context. All members are safe for
// concurrent use; the session itself only guards the template and target
// duration slots.
type Session struct {
	id        string
	tier      types.Tier
	createdAt time.Time
	logger    zerolog.Logger

	selection *selection.Registry
	timeline  *timeline.Model
	audio     *audio.MixConfig

	controller  *compose.Controller
	coordinator *upload.Coordinator

	engineGate  *quota.Gate
	hostingGate *quota.Gate

	state *stateStore

	mu       sync.Mutex
	template *canvas.Template
	target   media.TargetDuration
	closed   bool
}

// Summary is the listing row for a session.
type Summary struct {
	ID            string     `json:"id"`
	Tier          types.Tier `json:"tier"`
	SelectedGames int        `json:"selected_games"`
	TimelineClips int        `json:"timeline_clips"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Tier returns the account tier the session runs under.
func (s *Session) Tier() types.Tier { return s.tier }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Selection is the session's clip selection registry.
func (s *Session) Selection() *selection.Registry { return s.selection }

// Timeline is the session's timeline model.
func (s *Session) Timeline() *timeline.Model { return s.timeline }

// Audio is the session's audio mix configuration.
func (s *Session) Audio() *audio.MixConfig { return s.audio }

// Compose is the session's composition job controller.
func (s *Session) Compose() *compose.Controller { return s.controller }

// Uploads is the session's upload coordinator.
func (s *Session) Uploads() *upload.Coordinator { return s.coordinator }

// Summary returns the listing row for this session.
func (s *Session) Summary() Summary {
	games, _ := s.selection.Counts()
	return Summary{
		ID:            s.id,
		Tier:          s.tier,
		SelectedGames: games,
		TimelineClips: s.timeline.Len(),
		CreatedAt:     s.createdAt,
	}
}

// SetTargetDuration picks the requested output length from the enumerated
// set.
func (s *Session) SetTargetDuration(seconds int) error {
	d := media.TargetDuration(seconds)
	if !d.IsValid() {
		return &media.ValidationError{Field: "target_duration", Reason: "must be one of 60, 120, 180"}
	}
	s.mu.Lock()
	s.target = d
	s.mu.Unlock()
	return nil
}

// TargetDuration returns the currently requested output length.
func (s *Session) TargetDuration() media.TargetDuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// SetCanvasTemplate validates and installs an overlay template. A template
// that fails construction-time validation is rejected whole; the previous
// template stays in place.
func (s *Session) SetCanvasTemplate(spec media.CanvasTemplate) error {
	tpl, err := canvas.FromWire(spec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.template = tpl
	s.mu.Unlock()
	return nil
}

// ClearCanvasTemplate removes the overlay template.
func (s *Session) ClearCanvasTemplate() {
	s.mu.Lock()
	s.template = nil
	s.mu.Unlock()
}

// CanvasTemplate returns the installed template, or nil when none is set.
func (s *Session) CanvasTemplate() *canvas.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.template
}

// BuildConfig assembles the composition request from the session's current
// state. Unset optional sections are left nil so they are absent from the
// wire payload; audio levels travel only alongside a background track.
func (s *Session) BuildConfig() media.AutoEditConfig {
	cfg := media.AutoEditConfig{
		GameIDs:        s.selection.SelectedGames(),
		TargetDuration: s.TargetDuration(),
	}

	s.mu.Lock()
	if s.template != nil {
		w := s.template.Wire()
		cfg.CanvasTemplate = &w
	}
	s.mu.Unlock()

	if music := s.audio.Music(); music != nil {
		cfg.BackgroundMusic = music
		levels := s.audio.Levels()
		cfg.AudioLevels = &levels
	}
	return cfg
}

// Submit builds the current configuration and starts a composition job.
func (s *Session) Submit(ctx context.Context) (string, error) {
	return s.controller.Submit(ctx, s.BuildConfig())
}

// ComposeEligibility answers the advisory quota question for starting a
// composition. The controller re-verifies authoritatively at submit time.
func (s *Session) ComposeEligibility(ctx context.Context) (quota.Eligibility, error) {
	return s.engineGate.Check(ctx, s.tier)
}

// UploadEligibility answers the advisory quota question for starting an
// upload.
func (s *Session) UploadEligibility(ctx context.Context) (quota.Eligibility, error) {
	return s.hostingGate.Check(ctx, s.tier)
}

// State returns the latest observable snapshot.
func (s *Session) State() State {
	return s.state.current()
}

// Subscribe registers for state snapshots. The caller must Close the
// subscription on every exit path.
func (s *Session) Subscribe() *Subscription {
	return s.state.subscribe()
}

// WaitChange blocks until the state sequence exceeds since, then returns
// that state. It returns immediately when the current state is already
// newer, and reports the context error when the wait is cut short. A closed
// session answers with its final state.
func (s *Session) WaitChange(ctx context.Context, since uint64) (State, error) {
	sub := s.Subscribe()
	defer sub.Close()

	if st := s.state.current(); st.Seq > since {
		return st, nil
	}
	for {
		select {
		case <-ctx.Done():
			return State{}, ctx.Err()
		case st, ok := <-sub.C():
			if !ok {
				return s.state.current(), nil
			}
			if st.Seq > since {
				return st, nil
			}
		}
	}
}

// Close shuts down the controller, the coordinator and every state
// subscription. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.controller.Close()
	s.coordinator.Close()
	s.state.close()
	s.logger.Info().Msg("session.closed")
}

// Reset clears the editing state: selection, timeline, canvas template and
// audio mix return to their defaults. Running jobs and uploads are not
// touched.
func (s *Session) Reset() {
	s.selection.Reset()
	s.timeline.Reset()
	s.ClearCanvasTemplate()
	s.audio.ClearMusic()

	s.mu.Lock()
	s.target = DefaultTargetDuration
	s.mu.Unlock()
	s.logger.Info().Msg("session.reset")
}
