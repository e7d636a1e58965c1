// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/session"
)

type ctxKey int

const sessionKey ctxKey = iota

// sessionCtx resolves the {sessionID} route parameter and stores the
// session on the request context.
func (s *Server) sessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the session placed by sessionCtx. Routes under
// /sessions/{sessionID} always run behind that middleware.
func sessionFrom(r *http.Request) *session.Session {
	return r.Context().Value(sessionKey).(*session.Session)
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Summary())
}

func (s *Server) handleSessionList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List())
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Summary())
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(sessionFrom(r).ID()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Reset()
	writeJSON(w, http.StatusOK, sess.Summary())
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).State())
}

// handleSessionWatch long-polls the session state: it blocks until the
// state sequence number passes ?since, then returns the snapshot. A quiet
// session answers 204 after the watch timeout and the client re-polls.
func (s *Server) handleSessionWatch(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeBadRequest(w, errors.New("invalid since parameter"))
			return
		}
		since = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.WatchTimeout)
	defer cancel()

	st, err := sess.WaitChange(ctx, since)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, st)
	case errors.Is(err, context.DeadlineExceeded):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing to write.
	default:
		writeError(w, r, err)
	}
}

// handleConfigPreview returns the job request the session would submit
// right now, in its wire form.
func (s *Server) handleConfigPreview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).BuildConfig())
}

type targetDurationRequest struct {
	Seconds int `json:"seconds"`
}

func (s *Server) handleSetTargetDuration(w http.ResponseWriter, r *http.Request) {
	var req targetDurationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	sess := sessionFrom(r)
	if err := sess.SetTargetDuration(req.Seconds); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"target_duration": int(sess.TargetDuration())})
}

func (s *Server) handleSetCanvas(w http.ResponseWriter, r *http.Request) {
	var spec media.CanvasTemplate
	if err := decodeJSON(r, &spec); err != nil {
		writeBadRequest(w, err)
		return
	}
	sess := sessionFrom(r)
	if err := sess.SetCanvasTemplate(spec); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.CanvasTemplate().Wire())
}

func (s *Server) handleClearCanvas(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r).ClearCanvasTemplate()
	w.WriteHeader(http.StatusNoContent)
}

type audioLevelsRequest struct {
	GameVolume  int `json:"game_volume"`
	MusicVolume int `json:"music_volume"`
}

func (s *Server) handleSetAudioLevels(w http.ResponseWriter, r *http.Request) {
	var req audioLevelsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	sess := sessionFrom(r)
	if err := sess.Audio().SetLevels(req.GameVolume, req.MusicVolume); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Audio().Levels())
}

type musicRequest struct {
	FilePath string `json:"file_path"`
	Loop     bool   `json:"loop"`
}

func (s *Server) handleSetMusic(w http.ResponseWriter, r *http.Request) {
	var req musicRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	sess := sessionFrom(r)
	if err := sess.Audio().SetMusic(req.FilePath, req.Loop); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Audio().Music())
}

func (s *Server) handleClearMusic(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r).Audio().ClearMusic()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleComposeEligibility(w http.ResponseWriter, r *http.Request) {
	elig, err := sessionFrom(r).ComposeEligibility(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, elig)
}

func (s *Server) handleUploadEligibility(w http.ResponseWriter, r *http.Request) {
	elig, err := sessionFrom(r).UploadEligibility(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, elig)
}

type selectionResponse struct {
	Games []string `json:"games"`
	Clips []string `json:"clips"`
}

func (s *Server) handleSelectionGet(w http.ResponseWriter, r *http.Request) {
	sel := sessionFrom(r).Selection()
	writeJSON(w, http.StatusOK, selectionResponse{
		Games: sel.SelectedGames(),
		Clips: sel.PinnedClips(),
	})
}

func (s *Server) handleToggleGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	selected, err := sessionFrom(r).Selection().ToggleGame(gameID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game_id": gameID, "selected": selected})
}

func (s *Server) handleToggleClip(w http.ResponseWriter, r *http.Request) {
	clipID := chi.URLParam(r, "clipID")
	pinned, err := sessionFrom(r).Selection().ToggleClip(clipID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clip_id": clipID, "pinned": pinned})
}
