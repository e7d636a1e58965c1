// SPDX-License-Identifier: MIT
package hosting

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/clipforge/clipforge/internal/media"
)

// MockHosting provides a configurable hosting-service mock server for
// testing. Handlers mirror the real hosting API surface, including bearer
// auth on the /v1 endpoints.
type MockHosting struct {
	*httptest.Server
	mu           sync.Mutex
	stateSeq     int
	tokenSeq     int
	videoSeq     int
	issued       map[string]bool // valid bearer tokens
	quota        media.QuotaInfo
	progress     []media.UploadProgress
	history      []media.UploadHistoryEntry
	uploads      []UploadRecord
	completions  []AuthCompletion
	revoked      int
	failures     map[string]int // remaining 500s per path key
	hits         map[string]int
	rejectUpload int // non-zero: next upload answered with this status
}

// UploadRecord captures one multipart upload the mock received.
type UploadRecord struct {
	Metadata      media.VideoMetadata
	FileName      string
	FileSize      int64
	ThumbnailName string
}

// AuthCompletion captures one device-flow completion call.
type AuthCompletion struct {
	Code  string
	State string
}

// Path keys for failure injection and hit counting.
const (
	PathAuthStart    = "/oauth/device/start"
	PathAuthComplete = "/oauth/device/complete"
	PathRevoke       = "/oauth/revoke"
	PathUpload       = "/v1/videos"
	PathCurrent      = "/v1/uploads/current"
	PathHistory      = "/v1/uploads/history"
	PathQuota        = "/v1/uploads/quota"
)

// NewMockHosting creates a mock hosting service with a fresh upload quota.
func NewMockHosting() *MockHosting {
	mock := &MockHosting{
		issued:   make(map[string]bool),
		quota:    media.QuotaInfo{Limit: 10, Used: 0, Remaining: 10, ResetAt: time.Now().Add(24 * time.Hour).UTC()},
		failures: make(map[string]int),
		hits:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PathAuthStart, mock.handleAuthStart)
	mux.HandleFunc("POST "+PathAuthComplete, mock.handleAuthComplete)
	mux.HandleFunc("POST "+PathRevoke, mock.handleRevoke)
	mux.HandleFunc("POST "+PathUpload, mock.handleUpload)
	mux.HandleFunc("GET "+PathCurrent, mock.handleCurrent)
	mux.HandleFunc("GET "+PathHistory, mock.handleHistory)
	mux.HandleFunc("GET "+PathQuota, mock.handleQuota)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// SetQuota replaces the quota snapshot served by /v1/uploads/quota.
func (m *MockHosting) SetQuota(q media.QuotaInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quota = q
}

// QueueProgress scripts the answers of /v1/uploads/current; each poll
// consumes one snapshot, and an empty queue answers 204.
func (m *MockHosting) QueueProgress(snaps ...media.UploadProgress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = append(m.progress, snaps...)
}

// AddHistory seeds the upload history, newest entry first.
func (m *MockHosting) AddHistory(entries ...media.UploadHistoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, entries...)
}

// FailNext makes the next count requests against the path key answer 500.
func (m *MockHosting) FailNext(pathKey string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[pathKey] = count
}

// RejectUpload makes the next upload answer with the given status code.
func (m *MockHosting) RejectUpload(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectUpload = status
}

// Uploads returns the multipart uploads received so far.
func (m *MockHosting) Uploads() []UploadRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]UploadRecord(nil), m.uploads...)
}

// Completions returns the device-flow completion calls received so far.
func (m *MockHosting) Completions() []AuthCompletion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuthCompletion(nil), m.completions...)
}

// Revoked returns how many revoke calls the mock has served.
func (m *MockHosting) Revoked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked
}

// Hits returns how many requests the path key has served.
func (m *MockHosting) Hits(pathKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[pathKey]
}

// observe counts the hit and consumes one injected failure.
func (m *MockHosting) observe(pathKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[pathKey]++
	if m.failures[pathKey] > 0 {
		m.failures[pathKey]--
		return false
	}
	return true
}

// authorized validates the bearer token against the issued set.
func (m *MockHosting) authorized(r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issued[token]
}

func (m *MockHosting) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	if !m.observe(PathAuthStart) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	m.mu.Lock()
	m.stateSeq++
	state := fmt.Sprintf("state-%d", m.stateSeq)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"auth_url": m.URL + "/authorize?state=" + state,
		"state":    state,
	})
}

func (m *MockHosting) handleAuthComplete(w http.ResponseWriter, r *http.Request) {
	if !m.observe(PathAuthComplete) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var in struct {
		Code  string `json:"code"`
		State string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Code == "" || in.State == "" {
		http.Error(w, "invalid completion request", http.StatusUnprocessableEntity)
		return
	}

	m.mu.Lock()
	m.completions = append(m.completions, AuthCompletion{Code: in.Code, State: in.State})
	m.tokenSeq++
	token := fmt.Sprintf("tok-%d", m.tokenSeq)
	m.issued[token] = true
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"scope":        "upload",
		"expires_in":   3600,
	})
}

func (m *MockHosting) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if !m.observe(PathRevoke) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !m.authorized(r) {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	m.mu.Lock()
	delete(m.issued, token)
	m.revoked++
	m.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (m *MockHosting) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !m.observe(PathUpload) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !m.authorized(r) {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	m.mu.Lock()
	reject := m.rejectUpload
	m.rejectUpload = 0
	m.mu.Unlock()
	if reject != 0 {
		http.Error(w, "upload rejected", reject)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expected multipart body", http.StatusUnprocessableEntity)
		return
	}

	var rec UploadRecord
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, "malformed multipart body", http.StatusUnprocessableEntity)
			return
		}
		switch part.FormName() {
		case "metadata":
			if err := json.NewDecoder(part).Decode(&rec.Metadata); err != nil {
				http.Error(w, "malformed metadata", http.StatusUnprocessableEntity)
				return
			}
		case "file":
			rec.FileName = part.FileName()
			rec.FileSize, _ = io.Copy(io.Discard, part)
		case "thumbnail":
			rec.ThumbnailName = part.FileName()
			_, _ = io.Copy(io.Discard, part)
		default:
			_, _ = io.Copy(io.Discard, part)
		}
	}
	if rec.FileName == "" {
		http.Error(w, "missing file part", http.StatusUnprocessableEntity)
		return
	}

	m.mu.Lock()
	m.videoSeq++
	videoID := fmt.Sprintf("vid-%d", m.videoSeq)
	m.uploads = append(m.uploads, rec)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(media.Video{
		ID:          videoID,
		URL:         m.URL + "/v/" + videoID,
		Title:       rec.Metadata.Title,
		PublishedAt: time.Now().UTC(),
	})
}

func (m *MockHosting) handleCurrent(w http.ResponseWriter, r *http.Request) {
	if !m.observe(PathCurrent) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !m.authorized(r) {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	m.mu.Lock()
	var snap *media.UploadProgress
	if len(m.progress) > 0 {
		s := m.progress[0]
		m.progress = m.progress[1:]
		snap = &s
	}
	m.mu.Unlock()

	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (m *MockHosting) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !m.observe(PathHistory) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !m.authorized(r) {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	m.mu.Lock()
	out := append([]media.UploadHistoryEntry(nil), m.history...)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"uploads": out})
}

func (m *MockHosting) handleQuota(w http.ResponseWriter, r *http.Request) {
	if !m.observe(PathQuota) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !m.authorized(r) {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	m.mu.Lock()
	q := m.quota
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(q)
}
