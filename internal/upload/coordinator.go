// SPDX-License-Identifier: MIT

// Package upload pushes finished compositions to the hosting service:
// start behind an authoritative quota check, at-most-one-active-upload
// discipline per session, a coordinator-owned fixed-interval progress
// poller with monotonic byte counters, and exactly-once local history.
package upload

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clipforge/clipforge/internal/hosting"
	"github.com/clipforge/clipforge/internal/log"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/metrics"
	"github.com/clipforge/clipforge/internal/quota"
	"github.com/clipforge/clipforge/internal/types"
)

// Hosting is the boundary the coordinator drives. *hosting.Client
// satisfies it.
type Hosting interface {
	Authenticated() bool
	UploadVideo(ctx context.Context, path string, meta media.VideoMetadata, thumbnailPath string) (media.Video, error)
	PollUploadProgress(ctx context.Context) (*media.UploadProgress, error)
	CheckQuota(ctx context.Context) (media.QuotaInfo, error)
}

// HistorySink records each completed upload locally. *exports.Store
// satisfies it.
type HistorySink interface {
	AppendUpload(ctx context.Context, e media.UploadHistoryEntry) error
}

const (
	// DefaultPollInterval is the fixed delay between progress polls.
	DefaultPollInterval = time.Second
	// DefaultPollFailureBudget bounds how long consecutive poll failures
	// are tolerated before the upload is failed locally.
	DefaultPollFailureBudget = 30 * time.Second
)

// Options configures a Coordinator.
type Options struct {
	SessionID         string
	Tier              types.Tier
	PollInterval      time.Duration
	PollFailureBudget time.Duration
	History           HistorySink // optional
	// Notify observes every upload snapshot after a state change, in apply
	// order. Called with the coordinator lock held: it must return quickly
	// and must not call back into the coordinator.
	Notify func(Upload)
}

// Request describes one upload to start.
type Request struct {
	// JobID is the composition that produced the file, recorded on the
	// upload for traceability. Optional.
	JobID         string
	FilePath      string
	ThumbnailPath string
	Metadata      media.VideoMetadata
}

// Coordinator is the session's upload state machine. Progress is
// client-driven: every active upload owns one poll loop whose timer dies
// with the upload or the coordinator, never with an ambient goroutine.
type Coordinator struct {
	sessionID string
	tier      types.Tier
	hosting   Hosting
	history   HistorySink
	notify    func(Upload)
	logger    zerolog.Logger

	pollInterval      time.Duration
	pollFailureBudget time.Duration

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	starting bool
	activeID string
	uploads  map[string]*Upload
	order    []string
	cancels  map[string]context.CancelFunc
}

// NewCoordinator creates a coordinator for one session.
func NewCoordinator(h Hosting, opts Options) *Coordinator {
	ctx, stop := context.WithCancel(context.Background())
	c := &Coordinator{
		sessionID:         opts.SessionID,
		tier:              opts.Tier,
		hosting:           h,
		history:           opts.History,
		notify:            opts.Notify,
		logger:            log.WithComponent("upload").With().Str("session_id", opts.SessionID).Logger(),
		pollInterval:      opts.PollInterval,
		pollFailureBudget: opts.PollFailureBudget,
		ctx:               ctx,
		stop:              stop,
		uploads:           make(map[string]*Upload),
		cancels:           make(map[string]context.CancelFunc),
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.pollFailureBudget <= 0 {
		c.pollFailureBudget = DefaultPollFailureBudget
	}
	return c
}

// Start begins uploading a finished video. The quota is re-verified against
// the hosting service at start time regardless of any earlier advisory
// check; PRO tier is exempt. Returns ErrUploadActive while a non-terminal
// upload exists for the session, leaving that upload unmodified.
func (c *Coordinator) Start(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Metadata.Title) == "" {
		return "", &media.ValidationError{Field: "title", Reason: "required"}
	}
	info, err := os.Stat(req.FilePath)
	if err != nil {
		return "", fmt.Errorf("reading video file: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if c.starting || c.activeID != "" {
		c.mu.Unlock()
		return "", ErrUploadActive
	}
	c.starting = true
	c.mu.Unlock()

	id, err := c.begin(ctx, req, info.Size())
	if err != nil {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
		return "", err
	}
	return id, nil
}

func (c *Coordinator) begin(ctx context.Context, req Request, size int64) (string, error) {
	if !c.hosting.Authenticated() {
		return "", hosting.ErrNotAuthenticated
	}

	if !c.tier.Unlimited() {
		q, err := c.hosting.CheckQuota(ctx)
		if err != nil {
			return "", fmt.Errorf("verifying upload quota: %w", err)
		}
		if elig := quota.Evaluate(c.tier, q); !elig.Eligible {
			metrics.IncQuotaDenial("upload")
			return "", &QuotaError{Quota: elig.Quota}
		}
	}

	now := time.Now().UTC()
	up := &Upload{
		ID:            uuid.NewString(),
		SessionID:     c.sessionID,
		JobID:         req.JobID,
		Status:        types.UploadStatusPending,
		FilePath:      req.FilePath,
		ThumbnailPath: req.ThumbnailPath,
		Metadata:      req.Metadata,
		TotalBytes:    size,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	c.starting = false
	c.activeID = up.ID
	c.uploads[up.ID] = up
	c.order = append(c.order, up.ID)
	rctx, cancel := context.WithCancel(c.ctx)
	c.cancels[up.ID] = cancel
	c.wg.Add(1)
	go c.run(rctx, up.ID)
	c.emitLocked(up)
	c.mu.Unlock()

	metrics.IncActiveUploads()
	c.logger.Info().Str("upload_id", up.ID).Str("file", req.FilePath).
		Int64("total_bytes", size).Msg("upload.started")
	return up.ID, nil
}

// run owns one upload end to end: the blocking transfer plus the poll loop
// that tracks the hosting service's view of it.
func (c *Coordinator) run(ctx context.Context, id string) {
	defer c.wg.Done()

	c.transition(id, types.UploadStatusUploading)

	// The poller runs alongside the transfer: the hosting service reports
	// byte progress for the in-flight POST and drives the record to
	// terminal once server-side processing ends.
	pollDone := make(chan struct{})
	pctx, stopPoll := context.WithCancel(ctx)
	defer stopPoll()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(pollDone)
		c.poll(pctx, id)
	}()

	up := c.get(id)
	if up == nil {
		stopPoll()
		<-pollDone
		return
	}

	video, err := c.hosting.UploadVideo(ctx, up.FilePath, up.Metadata, up.ThumbnailPath)
	if err != nil {
		stopPoll()
		<-pollDone
		if c.ctx.Err() != nil {
			// Coordinator closed: the record keeps its last state.
			return
		}
		if ctx.Err() != nil {
			c.fail(id, "upload stopped")
			return
		}
		c.fail(id, "uploading video: "+err.Error())
		return
	}

	c.recordVideo(id, video)
	// The transfer is done; the poller drives processing to terminal. When
	// the hosting service has already discarded the in-flight record (small
	// files finish before the first poll), its nil answer completes it.
	<-pollDone
}

// poll fetches upload progress at a fixed interval until the upload is
// terminal or the context ends. Transient poll errors are tolerated until
// no successful poll has landed for the failure budget.
func (c *Coordinator) poll(ctx context.Context, id string) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	lastOK := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap, err := c.hosting.PollUploadProgress(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.IncUploadPollError()
			c.logger.Warn().Err(err).Str("upload_id", id).Msg("upload.poll_failed")
			if time.Since(lastOK) >= c.pollFailureBudget {
				c.fail(id, "progress polling lost: "+err.Error())
				return
			}
			continue
		}
		lastOK = time.Now()

		if snap == nil {
			// Nothing in flight on the server. Before the transfer has
			// registered that is normal; after it returned a video record
			// it means processing finished.
			if up := c.get(id); up != nil && up.Video != nil {
				c.complete(id)
				return
			}
			continue
		}

		if c.applySnapshot(id, *snap) {
			return
		}
	}
}

// applySnapshot folds one polled progress report into the record. Byte
// counters are clamped non-decreasing and the status only moves forward,
// so stale snapshots are safe to replay. Returns true once the upload is
// terminal.
func (c *Coordinator) applySnapshot(id string, snap media.UploadProgress) bool {
	c.mu.Lock()
	up, ok := c.uploads[id]
	if !ok || up.Terminal() {
		c.mu.Unlock()
		return true
	}

	prevBytes := up.UploadedBytes
	if snap.Status.IsValid() && !snap.Status.IsTerminal() &&
		up.Status.CanTransitionTo(snap.Status) {
		up.Status = snap.Status
	}
	if snap.UploadedBytes > up.UploadedBytes {
		up.UploadedBytes = snap.UploadedBytes
	}
	if snap.TotalBytes > up.TotalBytes {
		up.TotalBytes = snap.TotalBytes
	}
	up.UpdatedAt = time.Now().UTC()
	delta := up.UploadedBytes - prevBytes
	videoPresent := up.Video != nil
	c.emitLocked(up)
	c.mu.Unlock()

	if delta > 0 {
		metrics.AddUploadedBytes(delta)
	}

	switch snap.Status {
	case types.UploadStatusFailed:
		msg := snap.ErrorMessage
		if msg == "" {
			msg = "upload failed"
		}
		c.fail(id, msg)
		return true
	case types.UploadStatusCompleted:
		// Completed can be reported before the transfer response carrying
		// the video record arrives: hold the record non-terminal until the
		// video is in hand, the next poll finishes the job.
		if videoPresent {
			c.complete(id)
			return true
		}
		return false
	default:
		return false
	}
}

// Stop abandons an upload: the transfer is interrupted and polling stops.
// Unless the upload already reached a terminal status it is failed locally.
// The hosting service may still finish processing bytes it already holds;
// stopping is advisory for the server side.
func (c *Coordinator) Stop(id string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	up, ok := c.uploads[id]
	if !ok {
		c.mu.Unlock()
		return ErrUploadNotFound
	}
	if up.Terminal() {
		c.mu.Unlock()
		return ErrUploadTerminal
	}
	c.mu.Unlock()

	c.logger.Info().Str("upload_id", id).Msg("upload.stop_requested")
	c.fail(id, "upload stopped")
	return nil
}

func (c *Coordinator) complete(id string) {
	c.finalize(id, func(up *Upload) {
		up.Status = types.UploadStatusCompleted
		if up.TotalBytes > up.UploadedBytes {
			up.UploadedBytes = up.TotalBytes
		}
		up.Error = ""
	})
}

func (c *Coordinator) fail(id, message string) {
	if message == "" {
		message = "upload failed"
	}
	c.finalize(id, func(up *Upload) {
		up.Status = types.UploadStatusFailed
		up.Video = nil
		up.Error = message
	})
}

// finalize moves an upload into a terminal status exactly once: it stops
// the transfer and poller, frees the active slot, and appends a completed
// upload to the local history.
func (c *Coordinator) finalize(id string, mutate func(*Upload)) {
	c.mu.Lock()
	up, ok := c.uploads[id]
	if !ok || up.Terminal() {
		c.mu.Unlock()
		return
	}

	prevBytes := up.UploadedBytes
	mutate(up)
	now := time.Now().UTC()
	up.UpdatedAt = now
	up.CompletedAt = &now

	if cancel, ok := c.cancels[id]; ok {
		cancel()
		delete(c.cancels, id)
	}
	if c.activeID == id {
		c.activeID = ""
	}
	delta := up.UploadedBytes - prevBytes
	snapshot := up.Clone()
	c.emitLocked(up)
	c.mu.Unlock()

	if delta > 0 {
		metrics.AddUploadedBytes(delta)
	}
	metrics.DecActiveUploads()
	metrics.IncUploadOutcome(string(snapshot.Status))

	if snapshot.Status == types.UploadStatusCompleted && c.history != nil && snapshot.Video != nil {
		uploadedAt := snapshot.Video.PublishedAt
		if uploadedAt.IsZero() {
			uploadedAt = now
		}
		entry := media.UploadHistoryEntry{
			VideoID:    snapshot.Video.ID,
			Title:      snapshot.Video.Title,
			URL:        snapshot.Video.URL,
			FileSize:   snapshot.TotalBytes,
			UploadedAt: uploadedAt,
		}
		if err := c.history.AppendUpload(c.ctx, entry); err != nil {
			c.logger.Error().Err(err).Str("upload_id", id).Msg("upload.history_append_failed")
		}
	}

	evt := c.logger.Info().Str("upload_id", id).Str("status", string(snapshot.Status))
	if snapshot.Error != "" {
		evt = evt.Str("error", snapshot.Error)
	}
	evt.Msg("upload.finished")
}

// Upload returns a snapshot of the upload record.
func (c *Coordinator) Upload(id string) (*Upload, error) {
	up := c.get(id)
	if up == nil {
		return nil, ErrUploadNotFound
	}
	return up, nil
}

// Active returns the session's current non-terminal upload, if any.
func (c *Coordinator) Active() (*Upload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID == "" {
		return nil, false
	}
	up, ok := c.uploads[c.activeID]
	if !ok {
		return nil, false
	}
	return up.Clone(), true
}

// Uploads lists every upload tracked by this coordinator, newest first.
func (c *Coordinator) Uploads() []*Upload {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Upload, 0, len(c.order))
	for i := len(c.order) - 1; i >= 0; i-- {
		out = append(out, c.uploads[c.order[i]].Clone())
	}
	return out
}

// Close stops the transfer and poll goroutines and waits for them to
// drain. An in-flight upload keeps its last recorded state.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
}

// transition applies a forward, non-terminal status change.
func (c *Coordinator) transition(id string, status types.UploadStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	up, ok := c.uploads[id]
	if !ok || up.Terminal() || !up.Status.CanTransitionTo(status) {
		return
	}
	up.Status = status
	up.UpdatedAt = time.Now().UTC()
	c.emitLocked(up)
}

// recordVideo notes the transfer's response: every byte is on the server
// and processing remains.
func (c *Coordinator) recordVideo(id string, v media.Video) {
	c.mu.Lock()
	up, ok := c.uploads[id]
	if !ok || up.Terminal() {
		c.mu.Unlock()
		return
	}
	vv := v
	up.Video = &vv
	if up.Status.CanTransitionTo(types.UploadStatusProcessing) {
		up.Status = types.UploadStatusProcessing
	}
	var delta int64
	if up.TotalBytes > up.UploadedBytes {
		delta = up.TotalBytes - up.UploadedBytes
		up.UploadedBytes = up.TotalBytes
	}
	up.UpdatedAt = time.Now().UTC()
	c.emitLocked(up)
	c.mu.Unlock()

	if delta > 0 {
		metrics.AddUploadedBytes(delta)
	}
	c.logger.Info().Str("upload_id", id).Str("video_id", v.ID).Msg("upload.transfer_done")
}

func (c *Coordinator) get(id string) *Upload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploads[id].Clone()
}

// emitLocked notifies the subscriber in apply order. Caller holds c.mu.
func (c *Coordinator) emitLocked(up *Upload) {
	if c.notify != nil {
		c.notify(*up.Clone())
	}
}
