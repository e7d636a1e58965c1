// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleJobSubmit builds the session's current configuration and submits
// it. The engine quota is re-checked authoritatively inside the controller,
// so an advisory eligibility check passing earlier does not guarantee
// acceptance here.
func (s *Server) handleJobSubmit(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	jobID, err := sess.Submit(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	job, err := sess.Compose().Job(r.Context(), jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	jobs, err := sessionFrom(r).Compose().Jobs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleJobGet(w http.ResponseWriter, r *http.Request) {
	job, err := sessionFrom(r).Compose().Job(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleJobCancel requests cancellation. The job stays non-terminal until
// the engine confirms or the cancel timeout fails it locally; the response
// carries the snapshot with cancel_requested set.
func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	jobID := chi.URLParam(r, "jobID")

	if err := sess.Compose().Cancel(r.Context(), jobID); err != nil {
		writeError(w, r, err)
		return
	}

	job, err := sess.Compose().Job(r.Context(), jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}
