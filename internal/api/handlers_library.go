// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/library"
)

func (s *Server) handleLibraryGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.library.ListGames(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if games == nil {
		games = []library.GameSummary{}
	}
	writeJSON(w, http.StatusOK, games)
}

type libraryClipsResponse struct {
	Clips []library.Entry `json:"clips"`
	Total int             `json:"total"`
}

// handleLibraryClips lists catalog entries, optionally filtered by
// ?game_id, paginated with ?limit and ?offset.
func (s *Server) handleLibraryClips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q.Get("limit"), 100)
	if err != nil {
		writeBadRequest(w, errors.New("invalid limit parameter"))
		return
	}
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil {
		writeBadRequest(w, errors.New("invalid offset parameter"))
		return
	}

	clips, total, err := s.library.ListClips(r.Context(), q.Get("game_id"), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if clips == nil {
		clips = []library.Entry{}
	}
	writeJSON(w, http.StatusOK, libraryClipsResponse{Clips: clips, Total: total})
}

func (s *Server) handleLibraryClip(w http.ResponseWriter, r *http.Request) {
	entry, err := s.library.GetClip(r.Context(), chi.URLParam(r, "clipID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entry == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "clip not found in library"})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleLibraryScanState(w http.ResponseWriter, r *http.Request) {
	state, err := s.library.ScanState(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func queryInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("not a non-negative integer")
	}
	return v, nil
}
