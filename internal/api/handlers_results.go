// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/engine"
	"github.com/clipforge/clipforge/internal/log"
	"github.com/clipforge/clipforge/internal/media"
)

func (s *Server) handleResultList(w http.ResponseWriter, r *http.Request) {
	results, err := s.exports.ListResults(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if results == nil {
		results = []media.ExportResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleResultGet(w http.ResponseWriter, r *http.Request) {
	res, err := s.exports.GetResult(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleResultDelete removes a result from the engine and then from the
// local store. ?delete_file=true also removes the output file. The engine
// not knowing the result is fine; the engine being unreachable aborts the
// delete so a retry still sees a consistent pair.
func (s *Server) handleResultDelete(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	deleteFile := r.URL.Query().Get("delete_file") == "true"

	if err := s.engine.DeleteResult(r.Context(), jobID, deleteFile); err != nil {
		if !errors.Is(err, engine.ErrNotFound) {
			writeError(w, r, err)
			return
		}
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Debug().
			Str(log.FieldJobID, jobID).
			Str(log.FieldEvent, "result.engine_already_gone").
			Msg("engine has no such result, deleting locally")
	}

	if err := s.exports.DeleteResult(r.Context(), jobID, deleteFile); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
