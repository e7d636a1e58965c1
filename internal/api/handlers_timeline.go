// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/media"
)

type timelineResponse struct {
	Clips         []media.TimelineClip `json:"clips"`
	TotalDuration float64              `json:"total_duration"`
}

func (s *Server) handleTimelineGet(w http.ResponseWriter, r *http.Request) {
	tl := sessionFrom(r).Timeline()
	writeJSON(w, http.StatusOK, timelineResponse{
		Clips:         tl.Clips(),
		TotalDuration: tl.TotalDuration(),
	})
}

type timelineAddRequest struct {
	ClipID string `json:"clip_id"`
}

// handleTimelineAdd resolves a catalog clip and appends it to the session
// timeline.
func (s *Server) handleTimelineAdd(w http.ResponseWriter, r *http.Request) {
	var req timelineAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if req.ClipID == "" {
		writeError(w, r, &media.ValidationError{Field: "clip_id", Reason: "required"})
		return
	}

	entry, err := s.library.GetClip(r.Context(), req.ClipID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entry == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "clip not found in library"})
		return
	}

	tc, err := sessionFrom(r).Timeline().Add(entry.Clip)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tc)
}

func (s *Server) handleTimelineRemove(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r).Timeline().Remove(chi.URLParam(r, "clipID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	NewIndex int `json:"new_index"`
}

func (s *Server) handleTimelineReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	tl := sessionFrom(r).Timeline()
	if err := tl.Reorder(chi.URLParam(r, "clipID"), req.NewIndex); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, timelineResponse{
		Clips:         tl.Clips(),
		TotalDuration: tl.TotalDuration(),
	})
}

type trimRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s *Server) handleTimelineTrim(w http.ResponseWriter, r *http.Request) {
	var req trimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	tl := sessionFrom(r).Timeline()
	id := chi.URLParam(r, "clipID")
	if err := tl.Trim(id, req.Start, req.End); err != nil {
		writeError(w, r, err)
		return
	}
	tc, _ := tl.Clip(id)
	writeJSON(w, http.StatusOK, tc)
}

func (s *Server) handleTimelineClearTrim(w http.ResponseWriter, r *http.Request) {
	tl := sessionFrom(r).Timeline()
	id := chi.URLParam(r, "clipID")
	if err := tl.ClearTrim(id); err != nil {
		writeError(w, r, err)
		return
	}
	tc, _ := tl.Clip(id)
	writeJSON(w, http.StatusOK, tc)
}
