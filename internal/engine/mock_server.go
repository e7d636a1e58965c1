// SPDX-License-Identifier: MIT
package engine

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/clipforge/clipforge/internal/media"
)

// MockEngine provides a configurable composition-engine mock server for
// testing. Handlers mirror the real engine API surface.
type MockEngine struct {
	*httptest.Server
	mu           sync.Mutex
	jobSeq       int
	quota        media.QuotaInfo
	results      map[string]media.ExportResult
	resultOrder  []string
	events       map[string][]media.ProgressEvent
	hold         map[string]chan struct{}
	failures     map[string]int // remaining 500s per path key
	hits         map[string]int
	submitted    []media.AutoEditConfig
	cancelled    []string
	rejectSubmit int // non-zero: next submit answered with this status
}

// Path keys for failure injection and hit counting.
const (
	PathSubmit  = "/v1/compositions"
	PathCancel  = "/v1/compositions/{id}"
	PathEvents  = "/v1/compositions/{id}/events"
	PathResults = "/v1/results"
	PathResult  = "/v1/results/{id}"
	PathQuota   = "/v1/quota"
)

// NewMockEngine creates a mock engine with a fresh free-tier quota.
func NewMockEngine() *MockEngine {
	mock := &MockEngine{
		quota:    media.QuotaInfo{Limit: 5, Used: 0, Remaining: 5, ResetAt: time.Now().Add(24 * time.Hour).UTC()},
		results:  make(map[string]media.ExportResult),
		events:   make(map[string][]media.ProgressEvent),
		hold:     make(map[string]chan struct{}),
		failures: make(map[string]int),
		hits:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PathSubmit, mock.handleSubmit)
	mux.HandleFunc("DELETE "+PathCancel, mock.handleCancel)
	mux.HandleFunc("GET "+PathEvents, mock.handleEvents)
	mux.HandleFunc("GET "+PathResults, mock.handleListResults)
	mux.HandleFunc("GET "+PathResult, mock.handleGetResult)
	mux.HandleFunc("DELETE "+PathResult, mock.handleDeleteResult)
	mux.HandleFunc("GET "+PathQuota, mock.handleQuota)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// SetQuota replaces the quota snapshot served by /v1/quota.
func (m *MockEngine) SetQuota(q media.QuotaInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quota = q
}

// QueueEvents scripts the event stream for a job id.
func (m *MockEngine) QueueEvents(jobID string, evs ...media.ProgressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[jobID] = append(m.events[jobID], evs...)
}

// HoldStream keeps the job's event stream open after the scripted events
// are exhausted, until ReleaseStream is called or the subscriber leaves.
func (m *MockEngine) HoldStream(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hold[jobID]; !ok {
		m.hold[jobID] = make(chan struct{})
	}
}

// ReleaseStream closes a held event stream.
func (m *MockEngine) ReleaseStream(jobID string) {
	m.mu.Lock()
	ch, ok := m.hold[jobID]
	if ok {
		delete(m.hold, jobID)
	}
	m.mu.Unlock()
	if ok {
		close(ch)
	}
}

// FailNext makes the next count requests against the path key answer 500.
func (m *MockEngine) FailNext(pathKey string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[pathKey] = count
}

// RejectSubmit makes the next submission answer with the given status code.
func (m *MockEngine) RejectSubmit(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectSubmit = status
}

// AddResult registers an export result served by the results endpoints.
func (m *MockEngine) AddResult(res media.ExportResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[res.JobID]; !ok {
		m.resultOrder = append(m.resultOrder, res.JobID)
	}
	m.results[res.JobID] = res
}

// Submitted returns every accepted composition config in submission order.
func (m *MockEngine) Submitted() []media.AutoEditConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]media.AutoEditConfig(nil), m.submitted...)
}

// Cancelled returns the job ids cancellation was requested for.
func (m *MockEngine) Cancelled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancelled...)
}

// Hits returns how many requests reached the handler for a path key.
func (m *MockEngine) Hits(pathKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[pathKey]
}

// URL returns the mock server's base URL.
func (m *MockEngine) URL() string {
	return m.Server.URL
}

func (m *MockEngine) observe(pathKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[pathKey]++
	if m.failures[pathKey] > 0 {
		m.failures[pathKey]--
		return true
	}
	return false
}

func (m *MockEngine) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if m.observe(PathSubmit) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var cfg media.AutoEditConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid body", http.StatusUnprocessableEntity)
		return
	}

	m.mu.Lock()
	if m.rejectSubmit != 0 {
		status := m.rejectSubmit
		m.rejectSubmit = 0
		m.mu.Unlock()
		http.Error(w, "composition rejected", status)
		return
	}
	m.jobSeq++
	jobID := fmt.Sprintf("job-%d", m.jobSeq)
	m.submitted = append(m.submitted, cfg)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"job_id": jobID})
}

func (m *MockEngine) handleCancel(w http.ResponseWriter, r *http.Request) {
	if m.observe(PathCancel) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	m.mu.Lock()
	m.cancelled = append(m.cancelled, r.PathValue("id"))
	m.mu.Unlock()

	w.WriteHeader(http.StatusAccepted)
}

func (m *MockEngine) handleEvents(w http.ResponseWriter, r *http.Request) {
	if m.observe(PathEvents) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	jobID := r.PathValue("id")
	m.mu.Lock()
	evs := append([]media.ProgressEvent(nil), m.events[jobID]...)
	hold := m.hold[jobID]
	m.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for _, ev := range evs {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	if hold != nil {
		select {
		case <-r.Context().Done():
		case <-hold:
		}
	}
}

func (m *MockEngine) handleListResults(w http.ResponseWriter, _ *http.Request) {
	if m.observe(PathResults) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	m.mu.Lock()
	out := make([]media.ExportResult, 0, len(m.resultOrder))
	for i := len(m.resultOrder) - 1; i >= 0; i-- {
		out = append(out, m.results[m.resultOrder[i]])
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"results": out})
}

func (m *MockEngine) handleGetResult(w http.ResponseWriter, r *http.Request) {
	if m.observe(PathResult) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	m.mu.Lock()
	res, ok := m.results[r.PathValue("id")]
	m.mu.Unlock()
	if !ok {
		http.Error(w, "result not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

func (m *MockEngine) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	if m.observe(PathResult) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	m.mu.Lock()
	id := r.PathValue("id")
	_, ok := m.results[id]
	if ok {
		delete(m.results, id)
		for i, existing := range m.resultOrder {
			if existing == id {
				m.resultOrder = append(m.resultOrder[:i], m.resultOrder[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		http.Error(w, "result not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (m *MockEngine) handleQuota(w http.ResponseWriter, _ *http.Request) {
	if m.observe(PathQuota) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	m.mu.Lock()
	q := m.quota
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(q)
}
