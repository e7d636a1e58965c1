// SPDX-License-Identifier: MIT
package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/hosting"
	"github.com/clipforge/clipforge/internal/media"
)

func TestHostingStatus(t *testing.T) {
	fx := newFixture(t)

	rr := fx.do(http.MethodGet, "/api/v1/hosting/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"authenticated":true}`, rr.Body.String())

	fx.host.setAuthed(false)
	rr = fx.do(http.MethodGet, "/api/v1/hosting/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rr.Body.String())
}

func TestHostingAuthStart(t *testing.T) {
	fx := newFixture(t)

	rr := fx.do(http.MethodPost, "/api/v1/hosting/auth/start", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var start hosting.AuthStart
	decodeBody(t, rr, &start)
	assert.Contains(t, start.AuthURL, "https://hosting.example/authorize")
	assert.Equal(t, "s-1", start.State)
}

func TestHostingAuthComplete(t *testing.T) {
	fx := newFixture(t)
	fx.host.setAuthed(false)

	rr := fx.do(http.MethodPost, "/api/v1/hosting/auth/complete", map[string]any{
		"code":  "authcode",
		"state": "s-1",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"authenticated":true}`, rr.Body.String())

	fx.host.mu.Lock()
	completions := append([]string(nil), fx.host.completions...)
	fx.host.mu.Unlock()
	require.Len(t, completions, 1)
	assert.Equal(t, "authcode/s-1", completions[0])
}

func TestHostingAuthCompleteMissingCode(t *testing.T) {
	fx := newFixture(t)

	rr := fx.do(http.MethodPost, "/api/v1/hosting/auth/complete", map[string]any{
		"state": "s-1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHostingLogout(t *testing.T) {
	fx := newFixture(t)

	rr := fx.do(http.MethodPost, "/api/v1/hosting/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = fx.do(http.MethodGet, "/api/v1/hosting/status", nil)
	assert.JSONEq(t, `{"authenticated":false}`, rr.Body.String())
}

func TestHostingHistory(t *testing.T) {
	fx := newFixture(t)
	fx.host.mu.Lock()
	fx.host.history = []media.UploadHistoryEntry{
		{VideoID: "vid-7", Title: "Older Run", URL: "https://videos.example/vid-7", FileSize: 4096, UploadedAt: time.Now().UTC()},
	}
	fx.host.mu.Unlock()

	rr := fx.do(http.MethodGet, "/api/v1/hosting/history", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var entries []media.UploadHistoryEntry
	decodeBody(t, rr, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "vid-7", entries[0].VideoID)
}

func TestHostingHistoryEmpty(t *testing.T) {
	fx := newFixture(t)

	rr := fx.do(http.MethodGet, "/api/v1/hosting/history", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestHostingHistoryUnavailable(t *testing.T) {
	fx := newFixture(t)
	fx.host.mu.Lock()
	fx.host.historyErr = hosting.ErrHostingUnavailable
	fx.host.mu.Unlock()

	rr := fx.do(http.MethodGet, "/api/v1/hosting/history", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestHostingQuota(t *testing.T) {
	fx := newFixture(t)
	fx.host.setQuota(media.QuotaInfo{Limit: 5, Used: 2, Remaining: 3})

	rr := fx.do(http.MethodGet, "/api/v1/hosting/quota", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var q media.QuotaInfo
	decodeBody(t, rr, &q)
	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, 2, q.Used)
	assert.Equal(t, 3, q.Remaining)
}

func TestLocalUploadHistoryEmpty(t *testing.T) {
	fx := newFixture(t)

	rr := fx.do(http.MethodGet, "/api/v1/history/uploads", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}
