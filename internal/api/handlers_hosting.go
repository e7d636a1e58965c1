// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/clipforge/clipforge/internal/media"
)

func (s *Server) handleHostingStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": s.hosting.Authenticated()})
}

func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	start, err := s.hosting.StartAuth(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, start)
}

type authCompleteRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

func (s *Server) handleAuthComplete(w http.ResponseWriter, r *http.Request) {
	var req authCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.hosting.CompleteAuth(r.Context(), req.Code, req.State); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.hosting.Logout(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHostingHistory returns the hosting service's own view of past
// uploads; /history/uploads returns the local record.
func (s *Server) handleHostingHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.hosting.UploadHistory(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []media.UploadHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHostingQuota(w http.ResponseWriter, r *http.Request) {
	q, err := s.hosting.CheckQuota(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleLocalUploadHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.exports.ListUploads(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []media.UploadHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
