// SPDX-License-Identifier: MIT

package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clipforge/clipforge/internal/audio"
	"github.com/clipforge/clipforge/internal/cache"
	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/log"
	"github.com/clipforge/clipforge/internal/quota"
	"github.com/clipforge/clipforge/internal/selection"
	"github.com/clipforge/clipforge/internal/timeline"
	"github.com/clipforge/clipforge/internal/types"
	"github.com/clipforge/clipforge/internal/upload"
)

var (
	// ErrSessionNotFound is returned for operations on an unknown session id.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrManagerClosed is returned once the manager has been shut down.
	ErrManagerClosed = errors.New("session: manager closed")
)

// HostingQuotaCacheKey separates the cached hosting quota snapshot from the
// engine one.
const HostingQuotaCacheKey = "quota:hosting"

// Deps are the shared collaborators every session is built over. Jobs,
// results and history stores are shared across sessions; the per-session
// invariants are scoped by session id.
type Deps struct {
	Engine  compose.Engine
	Hosting upload.Hosting
	Jobs    compose.JobStore
	Results compose.ResultSink // optional
	History upload.HistorySink // optional
	Cache   cache.Cache        // optional, backs the advisory quota gates
}

// Config carries the per-session tuning applied to every created session.
type Config struct {
	Tier              types.Tier
	CancelTimeout     time.Duration
	ReconnectDelay    time.Duration
	MaxStreamFailures int
	PollInterval      time.Duration
	PollFailureBudget time.Duration
}

// Manager owns the live sessions. Each session is fully independent: its
// own selection, timeline, template, mix, controller and coordinator. The
// one-active-job and one-active-upload invariants hold per session.
type Manager struct {
	deps   Deps
	cfg    Config
	logger zerolog.Logger

	engineGate  *quota.Gate
	hostingGate *quota.Gate

	mu       sync.Mutex
	closed   bool
	sessions map[string]*Session
}

// NewManager creates a session manager over the shared collaborators.
func NewManager(deps Deps, cfg Config) *Manager {
	if cfg.Tier == "" {
		cfg.Tier = types.TierFree
	}
	logger := log.WithComponent("session")
	return &Manager{
		deps:        deps,
		cfg:         cfg,
		logger:      logger,
		engineGate:  quota.NewGate(deps.Engine, deps.Cache, logger),
		hostingGate: quota.NewGate(deps.Hosting, deps.Cache, logger, quota.WithCacheKey(HostingQuotaCacheKey)),
		sessions:    make(map[string]*Session),
	}
}

// Create starts a fresh, empty session.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}

	id := uuid.NewString()
	s := &Session{
		id:          id,
		tier:        m.cfg.Tier,
		createdAt:   time.Now().UTC(),
		logger:      m.logger.With().Str("session_id", id).Logger(),
		selection:   selection.NewRegistry(),
		timeline:    timeline.NewModel(),
		audio:       audio.NewMixConfig(),
		engineGate:  m.engineGate,
		hostingGate: m.hostingGate,
		state:       newStateStore(id),
		target:      DefaultTargetDuration,
	}
	s.controller = compose.NewController(m.deps.Engine, m.deps.Jobs, compose.Options{
		SessionID:         id,
		Tier:              m.cfg.Tier,
		CancelTimeout:     m.cfg.CancelTimeout,
		ReconnectDelay:    m.cfg.ReconnectDelay,
		MaxStreamFailures: m.cfg.MaxStreamFailures,
		ResultSink:        m.deps.Results,
		Notify:            s.state.setJob,
	})
	s.coordinator = upload.NewCoordinator(m.deps.Hosting, upload.Options{
		SessionID:         id,
		Tier:              m.cfg.Tier,
		PollInterval:      m.cfg.PollInterval,
		PollFailureBudget: m.cfg.PollFailureBudget,
		History:           m.deps.History,
		Notify:            s.state.setUpload,
	})

	m.sessions[id] = s
	m.logger.Info().Str("session_id", id).Str("tier", string(m.cfg.Tier)).Msg("session.created")
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns a summary of every live session, oldest first.
func (m *Manager) List() []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Summary, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete closes the session and removes it from the manager.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.Close()
	return nil
}

// EngineGate exposes the shared advisory gate for the composition quota.
func (m *Manager) EngineGate() *quota.Gate { return m.engineGate }

// HostingGate exposes the shared advisory gate for the upload quota.
func (m *Manager) HostingGate() *quota.Gate { return m.hostingGate }

// Close shuts down every session. Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
