// SPDX-License-Identifier: MIT
package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/quota"
	"github.com/clipforge/clipforge/internal/session"
)

func TestSessionLifecycle(t *testing.T) {
	fx := newFixture(t)

	id := fx.createSession()

	rr := fx.do(http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var summary session.Summary
	decodeBody(t, rr, &summary)
	assert.Equal(t, id, summary.ID)
	assert.Equal(t, "free", string(summary.Tier))

	rr = fx.do(http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []session.Summary
	decodeBody(t, rr, &list)
	require.Len(t, list, 1)

	rr = fx.do(http.MethodDelete, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = fx.do(http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSessionGetUnknown(t *testing.T) {
	fx := newFixture(t)

	rr := fx.do(http.MethodGet, "/api/v1/sessions/nope", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	var body errorBody
	decodeBody(t, rr, &body)
	assert.Contains(t, body.Error, "not found")
}

func TestSelectionToggleRoundTrip(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	rr := fx.do(http.MethodPost, "/api/v1/sessions/"+id+"/selection/games/g1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var toggle map[string]any
	decodeBody(t, rr, &toggle)
	assert.Equal(t, true, toggle["selected"])

	rr = fx.do(http.MethodPost, "/api/v1/sessions/"+id+"/selection/clips/c9", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = fx.do(http.MethodGet, "/api/v1/sessions/"+id+"/selection", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var sel selectionResponse
	decodeBody(t, rr, &sel)
	assert.Equal(t, []string{"g1"}, sel.Games)
	assert.Equal(t, []string{"c9"}, sel.Clips)

	// Toggling again removes.
	rr = fx.do(http.MethodPost, "/api/v1/sessions/"+id+"/selection/games/g1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeBody(t, rr, &toggle)
	assert.Equal(t, false, toggle["selected"])
}

func TestSetTargetDuration(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	rr := fx.do(http.MethodPut, "/api/v1/sessions/"+id+"/target-duration", targetDurationRequest{Seconds: 180})
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]int
	decodeBody(t, rr, &body)
	assert.Equal(t, 180, body["target_duration"])

	rr = fx.do(http.MethodPut, "/api/v1/sessions/"+id+"/target-duration", targetDurationRequest{Seconds: 90})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var errBody errorBody
	decodeBody(t, rr, &errBody)
	assert.Contains(t, errBody.Error, "target_duration")
}

func TestSetCanvasTemplate(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	spec := media.CanvasTemplate{
		ID:   "tpl-1",
		Name: "Scoreboard",
		Background: media.BackgroundSpec{
			Type:  "color",
			Color: "#102030",
		},
		Elements: []media.CanvasElemSpec{{
			Type: "text", Content: "GG", Font: "Inter", FontSize: 24,
			Color: "#ffffff", X: 50, Y: 10,
		}},
	}

	rr := fx.do(http.MethodPut, "/api/v1/sessions/"+id+"/canvas", spec)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got media.CanvasTemplate
	decodeBody(t, rr, &got)
	assert.Equal(t, "tpl-1", got.ID)
	assert.Equal(t, "Scoreboard", got.Name)

	rr = fx.do(http.MethodDelete, "/api/v1/sessions/"+id+"/canvas", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestSetCanvasTemplateInvalid(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	spec := media.CanvasTemplate{
		ID:   "tpl-bad",
		Name: "Off canvas",
		Background: media.BackgroundSpec{
			Type:  "color",
			Color: "#102030",
		},
		Elements: []media.CanvasElemSpec{{
			Type: "text", Content: "GG", Font: "Inter", FontSize: 24,
			Color: "#ffffff", X: 150, Y: 10,
		}},
	}

	rr := fx.do(http.MethodPut, "/api/v1/sessions/"+id+"/canvas", spec)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestAudioEndpoints(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	rr := fx.do(http.MethodPut, "/api/v1/sessions/"+id+"/audio/levels", audioLevelsRequest{GameVolume: 80, MusicVolume: 20})
	require.Equal(t, http.StatusOK, rr.Code)
	var levels media.AudioLevels
	decodeBody(t, rr, &levels)
	assert.Equal(t, 80, levels.GameVolume)
	assert.Equal(t, 20, levels.MusicVolume)

	rr = fx.do(http.MethodPut, "/api/v1/sessions/"+id+"/audio/levels", audioLevelsRequest{GameVolume: 101, MusicVolume: 20})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = fx.do(http.MethodPut, "/api/v1/sessions/"+id+"/audio/music", musicRequest{FilePath: "/music/track.mp3", Loop: true})
	require.Equal(t, http.StatusOK, rr.Code)
	var music media.BackgroundMusic
	decodeBody(t, rr, &music)
	assert.Equal(t, "/music/track.mp3", music.FilePath)
	assert.True(t, music.Loop)

	rr = fx.do(http.MethodDelete, "/api/v1/sessions/"+id+"/audio/music", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestConfigPreviewMinimalForm(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	rr := fx.do(http.MethodPost, "/api/v1/sessions/"+id+"/selection/games/g1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = fx.do(http.MethodGet, "/api/v1/sessions/"+id+"/config", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"game_ids":["g1"],"target_duration":120}`, rr.Body.String())
}

func TestSessionReset(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	rr := fx.do(http.MethodPost, "/api/v1/sessions/"+id+"/selection/games/g1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = fx.do(http.MethodPost, "/api/v1/sessions/"+id+"/reset", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var summary session.Summary
	decodeBody(t, rr, &summary)
	assert.Zero(t, summary.SelectedGames)
}

func TestComposeEligibility(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	rr := fx.do(http.MethodGet, "/api/v1/sessions/"+id+"/eligibility/compose", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var elig quota.Eligibility
	decodeBody(t, rr, &elig)
	assert.True(t, elig.Eligible)
	assert.Equal(t, 10, elig.Quota.Remaining)
}

func TestUploadEligibilityExhausted(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	fx.host.mu.Lock()
	fx.host.quota = media.QuotaInfo{Limit: 5, Used: 5}
	fx.host.mu.Unlock()

	rr := fx.do(http.MethodGet, "/api/v1/sessions/"+id+"/eligibility/upload", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var elig quota.Eligibility
	decodeBody(t, rr, &elig)
	assert.False(t, elig.Eligible)
	assert.NotEmpty(t, elig.Reason)
}

func TestSessionStateEndpoint(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	rr := fx.do(http.MethodGet, "/api/v1/sessions/"+id+"/state", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var st session.State
	decodeBody(t, rr, &st)
	assert.Equal(t, id, st.SessionID)
	assert.Zero(t, st.Seq)
	assert.Nil(t, st.Job)
	assert.Nil(t, st.Upload)
}

func TestWatchTimesOutQuiet(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	start := time.Now()
	rr := fx.do(http.MethodGet, "/api/v1/sessions/"+id+"/watch?since=0", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestWatchWakesOnChange(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	sess, err := fx.mgr.Get(id)
	require.NoError(t, err)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- fx.do(http.MethodGet, "/api/v1/sessions/"+id+"/watch?since=0", nil)
	}()

	// Give the watcher a moment to block, then make a change.
	time.Sleep(20 * time.Millisecond)
	_, err = sess.Selection().ToggleGame("g1")
	require.NoError(t, err)
	_, err = sess.Submit(context.Background())
	require.NoError(t, err)

	rr := <-done
	require.Equal(t, http.StatusOK, rr.Code)
	var st session.State
	decodeBody(t, rr, &st)
	assert.GreaterOrEqual(t, st.Seq, uint64(1))
	require.NotNil(t, st.Job)
}

func TestWatchBadSince(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	rr := fx.do(http.MethodGet, "/api/v1/sessions/"+id+"/watch?since=banana", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBodyWithUnknownFieldRejected(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	rr := fx.do(http.MethodPut, "/api/v1/sessions/"+id+"/target-duration",
		map[string]any{"seconds": 120, "bogus": 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
