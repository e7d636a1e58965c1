// SPDX-License-Identifier: MIT

// Package api exposes the daemon's localhost HTTP surface to the game
// client UI: session and timeline editing, composition jobs with long-poll
// progress, uploads, hosting auth, the clip library and stored results.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/clipforge/clipforge/internal/exports"
	"github.com/clipforge/clipforge/internal/hosting"
	"github.com/clipforge/clipforge/internal/library"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/session"
)

const (
	// DefaultWatchTimeout bounds how long a watch request may hold its
	// connection before the client is asked to re-poll.
	DefaultWatchTimeout = 25 * time.Second

	// readyProbeTimeout bounds each dependency probe during a readiness
	// check.
	readyProbeTimeout = 2 * time.Second
)

// EngineAPI is the slice of the engine client the HTTP layer itself
// touches. Job submission and progress go through the session layer.
type EngineAPI interface {
	Ping(ctx context.Context) error
	DeleteResult(ctx context.Context, jobID string, deleteFile bool) error
}

// HostingAPI is the slice of the hosting client the HTTP layer itself
// touches. Uploads go through the session layer.
type HostingAPI interface {
	Authenticated() bool
	StartAuth(ctx context.Context) (hosting.AuthStart, error)
	CompleteAuth(ctx context.Context, code, state string) error
	Logout(ctx context.Context) error
	UploadHistory(ctx context.Context) ([]media.UploadHistoryEntry, error)
	CheckQuota(ctx context.Context) (media.QuotaInfo, error)
}

// Config carries the server's tunables.
type Config struct {
	Version string

	RateLimitEnabled bool
	RateLimitRPM     int
	TracingService   string // empty disables tracing

	// WatchTimeout is how long a state watch request blocks before
	// returning 204. Zero means DefaultWatchTimeout.
	WatchTimeout time.Duration
}

// Deps are the collaborators the server routes requests into.
type Deps struct {
	Sessions *session.Manager
	Library  *library.Store
	Exports  *exports.Store
	Engine   EngineAPI
	Hosting  HostingAPI
}

// Server is the HTTP API server.
type Server struct {
	cfg       Config
	sessions  *session.Manager
	library   *library.Store
	exports   *exports.Store
	engine    EngineAPI
	hosting   HostingAPI
	startTime time.Time
	handler   http.Handler
}

// New creates the API server. All dependencies are required.
func New(cfg Config, deps Deps) *Server {
	if cfg.WatchTimeout <= 0 {
		cfg.WatchTimeout = DefaultWatchTimeout
	}
	s := &Server{
		cfg:       cfg,
		sessions:  deps.Sessions,
		library:   deps.Library,
		exports:   deps.Exports,
		engine:    deps.Engine,
		hosting:   deps.Hosting,
		startTime: time.Now(),
	}
	s.handler = s.routes()
	return s
}

var _ http.Handler = (*Server)(nil)

// Handler returns the router with all routes and middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
