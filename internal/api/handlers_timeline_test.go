// SPDX-License-Identifier: MIT
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/media"
)

// addTimelineClip seeds the library with a clip and puts it on the session
// timeline through the API.
func (fx *fixture) addTimelineClip(sessionID, clipID, gameID string, start, end float64) media.TimelineClip {
	fx.t.Helper()
	fx.seedClip(clipID, gameID, start, end)

	rr := fx.do(http.MethodPost, "/api/v1/sessions/"+sessionID+"/timeline/clips", map[string]any{
		"clip_id": clipID,
	})
	require.Equal(fx.t, http.StatusCreated, rr.Code, rr.Body.String())

	var tc media.TimelineClip
	decodeBody(fx.t, rr, &tc)
	return tc
}

func TestTimelineAddFromLibrary(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	first := fx.addTimelineClip(id, "c1", "g1", 10, 40)
	assert.Equal(t, "c1", first.Clip.ID)
	assert.Equal(t, 0, first.Order)
	assert.Nil(t, first.TrimStart)

	second := fx.addTimelineClip(id, "c2", "g1", 0, 15)
	assert.Equal(t, 1, second.Order)
}

func TestTimelineAddUnknownClip(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	rr := fx.do(http.MethodPost, "/api/v1/sessions/"+id+"/timeline/clips", map[string]any{
		"clip_id": "ghost",
	})
	require.Equal(t, http.StatusNotFound, rr.Code)

	var body errorBody
	decodeBody(t, rr, &body)
	assert.Contains(t, body.Error, "not found in library")
}

func TestTimelineAddMissingClipID(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	rr := fx.do(http.MethodPost, "/api/v1/sessions/"+id+"/timeline/clips", map[string]any{})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var body errorBody
	decodeBody(t, rr, &body)
	assert.Contains(t, body.Error, "clip_id")
}

func TestTimelineAddDuplicateRejected(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()
	fx.addTimelineClip(id, "c1", "g1", 10, 40)

	rr := fx.do(http.MethodPost, "/api/v1/sessions/"+id+"/timeline/clips", map[string]any{
		"clip_id": "c1",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var body errorBody
	decodeBody(t, rr, &body)
	assert.Contains(t, body.Error, "already on the timeline")
}

func TestTimelineGetTotals(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()
	fx.addTimelineClip(id, "c1", "g1", 10, 40)
	fx.addTimelineClip(id, "c2", "g1", 0, 15)

	rr := fx.do(http.MethodGet, "/api/v1/sessions/"+id+"/timeline", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp timelineResponse
	decodeBody(t, rr, &resp)
	require.Len(t, resp.Clips, 2)
	assert.Equal(t, "c1", resp.Clips[0].Clip.ID)
	assert.Equal(t, "c2", resp.Clips[1].Clip.ID)
	assert.InDelta(t, 45.0, resp.TotalDuration, 1e-9)
}

func TestTimelineRemoveRenumbers(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()
	fx.addTimelineClip(id, "c1", "g1", 10, 40)
	fx.addTimelineClip(id, "c2", "g1", 0, 15)

	rr := fx.do(http.MethodDelete, "/api/v1/sessions/"+id+"/timeline/clips/c1", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = fx.do(http.MethodGet, "/api/v1/sessions/"+id+"/timeline", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp timelineResponse
	decodeBody(t, rr, &resp)
	require.Len(t, resp.Clips, 1)
	assert.Equal(t, "c2", resp.Clips[0].Clip.ID)
	assert.Equal(t, 0, resp.Clips[0].Order)
}

func TestTimelineRemoveUnknown(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()

	rr := fx.do(http.MethodDelete, "/api/v1/sessions/"+id+"/timeline/clips/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTimelineReorder(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()
	fx.addTimelineClip(id, "c1", "g1", 0, 10)
	fx.addTimelineClip(id, "c2", "g1", 10, 20)
	fx.addTimelineClip(id, "c3", "g1", 20, 30)

	rr := fx.do(http.MethodPost, "/api/v1/sessions/"+id+"/timeline/clips/c3/reorder", map[string]any{
		"new_index": 0,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp timelineResponse
	decodeBody(t, rr, &resp)
	require.Len(t, resp.Clips, 3)
	assert.Equal(t, "c3", resp.Clips[0].Clip.ID)
	assert.Equal(t, "c1", resp.Clips[1].Clip.ID)
	assert.Equal(t, "c2", resp.Clips[2].Clip.ID)
	for i, tc := range resp.Clips {
		assert.Equal(t, i, tc.Order)
	}
}

func TestTimelineReorderOutOfRange(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()
	fx.addTimelineClip(id, "c1", "g1", 0, 10)

	rr := fx.do(http.MethodPost, "/api/v1/sessions/"+id+"/timeline/clips/c1/reorder", map[string]any{
		"new_index": 5,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestTimelineTrim(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()
	fx.addTimelineClip(id, "c1", "g1", 10, 40)

	rr := fx.do(http.MethodPost, "/api/v1/sessions/"+id+"/timeline/clips/c1/trim", map[string]any{
		"start": 12.0,
		"end":   20.0,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var tc media.TimelineClip
	decodeBody(t, rr, &tc)
	require.NotNil(t, tc.TrimStart)
	require.NotNil(t, tc.TrimEnd)
	assert.InDelta(t, 12.0, *tc.TrimStart, 1e-9)
	assert.InDelta(t, 20.0, *tc.TrimEnd, 1e-9)
}

func TestTimelineTrimRejected(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()
	fx.addTimelineClip(id, "c1", "g1", 10, 40)

	tests := []struct {
		name       string
		start, end float64
		wantIn     string
	}{
		{"window too short", 12, 12.5, "minimum clip length"},
		{"before clip start", 5, 20, "before the clip start"},
		{"past clip end", 12, 50, "past the clip end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := fx.do(http.MethodPost, "/api/v1/sessions/"+id+"/timeline/clips/c1/trim", map[string]any{
				"start": tt.start,
				"end":   tt.end,
			})
			require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

			var body errorBody
			decodeBody(t, rr, &body)
			assert.Contains(t, body.Error, tt.wantIn)
		})
	}
}

func TestTimelineClearTrim(t *testing.T) {
	fx := newFixture(t)
	id := fx.createSession()
	fx.addTimelineClip(id, "c1", "g1", 10, 40)

	rr := fx.do(http.MethodPost, "/api/v1/sessions/"+id+"/timeline/clips/c1/trim", map[string]any{
		"start": 12.0,
		"end":   20.0,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = fx.do(http.MethodDelete, "/api/v1/sessions/"+id+"/timeline/clips/c1/trim", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var tc media.TimelineClip
	decodeBody(t, rr, &tc)
	assert.Nil(t, tc.TrimStart)
	assert.Nil(t, tc.TrimEnd)
}
