// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/upload"
)

type uploadStartRequest struct {
	// JobID selects a stored export result as the upload source. Either
	// JobID or FilePath must be set; FilePath wins when both are.
	JobID         string   `json:"job_id,omitempty"`
	FilePath      string   `json:"file_path,omitempty"`
	ThumbnailPath string   `json:"thumbnail_path,omitempty"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Privacy       string   `json:"privacy,omitempty"`
}

func (s *Server) handleUploadStart(w http.ResponseWriter, r *http.Request) {
	var req uploadStartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	filePath := req.FilePath
	if filePath == "" && req.JobID != "" {
		res, err := s.exports.GetResult(r.Context(), req.JobID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		filePath = res.OutputPath
	}
	if filePath == "" {
		writeError(w, r, &media.ValidationError{Field: "file_path", Reason: "file_path or job_id required"})
		return
	}

	sess := sessionFrom(r)
	id, err := sess.Uploads().Start(r.Context(), upload.Request{
		JobID:         req.JobID,
		FilePath:      filePath,
		ThumbnailPath: req.ThumbnailPath,
		Metadata: media.VideoMetadata{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			Privacy:     req.Privacy,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	up, err := sess.Uploads().Upload(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, up)
}

func (s *Server) handleUploadList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Uploads().Uploads())
}

func (s *Server) handleUploadGet(w http.ResponseWriter, r *http.Request) {
	up, err := sessionFrom(r).Uploads().Upload(chi.URLParam(r, "uploadID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

// handleUploadStop fails the upload locally. The transfer context is
// cancelled but the hosting service is not asked to roll anything back.
func (s *Server) handleUploadStop(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	id := chi.URLParam(r, "uploadID")

	if err := sess.Uploads().Stop(id); err != nil {
		writeError(w, r, err)
		return
	}

	up, err := sess.Uploads().Upload(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, up)
}
