// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.cfg.Version,
	})
}

type readyResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// handleReady reports whether the daemon can do useful work: the engine
// must answer a ping and both local stores must be open.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
	defer cancel()

	components := map[string]string{
		"engine":  "ok",
		"library": "ok",
		"exports": "ok",
	}
	ready := true

	if err := s.engine.Ping(ctx); err != nil {
		components["engine"] = err.Error()
		ready = false
	}
	if err := s.library.Ping(ctx); err != nil {
		components["library"] = err.Error()
		ready = false
	}
	if err := s.exports.Ping(ctx); err != nil {
		components["exports"] = err.Error()
		ready = false
	}

	resp := readyResponse{Status: "ready", Components: components}
	code := http.StatusOK
	if !ready {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

type statusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Sessions      int    `json:"sessions"`
	Authenticated bool   `json:"authenticated"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:        "ok",
		Version:       s.cfg.Version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Sessions:      len(s.sessions.List()),
		Authenticated: s.hosting.Authenticated(),
	})
}
