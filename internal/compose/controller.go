// SPDX-License-Identifier: MIT

// Package compose drives composition jobs through the external engine:
// submission behind an authoritative quota check, at-most-one-active-job
// discipline per session, monotonic idempotent progress application from
// an at-least-once event stream, advisory cancellation with a bounded
// local fallback, and terminal result/error bookkeeping.
package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipforge/clipforge/internal/engine"
	"github.com/clipforge/clipforge/internal/log"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/metrics"
	"github.com/clipforge/clipforge/internal/quota"
	"github.com/clipforge/clipforge/internal/types"
)

// Engine is the boundary the controller drives. *engine.Client satisfies it.
type Engine interface {
	SubmitComposition(ctx context.Context, cfg media.AutoEditConfig) (string, error)
	CancelComposition(ctx context.Context, jobID string) error
	SubscribeProgress(ctx context.Context, jobID string, handle func(media.ProgressEvent)) error
	FetchResult(ctx context.Context, jobID string) (*media.ExportResult, error)
	CheckQuota(ctx context.Context) (media.QuotaInfo, error)
}

// ResultSink receives the export result of every job that completes.
type ResultSink interface {
	SaveResult(ctx context.Context, res media.ExportResult) error
}

const (
	// DefaultCancelTimeout bounds how long a cancellation waits for a
	// terminal event before the job is failed locally.
	DefaultCancelTimeout = 30 * time.Second
	// DefaultReconnectDelay is the pause between progress stream
	// reconnection attempts.
	DefaultReconnectDelay = time.Second
	// DefaultMaxStreamFailures is how many consecutive stream losses are
	// tolerated before the job is failed locally.
	DefaultMaxStreamFailures = 5
)

// Options configures a Controller.
type Options struct {
	SessionID         string
	Tier              types.Tier
	CancelTimeout     time.Duration
	ReconnectDelay    time.Duration
	MaxStreamFailures int
	ResultSink        ResultSink // optional
	// Notify observes every job snapshot after a state change, in apply
	// order. Called with the controller lock held: it must return quickly
	// and must not call back into the controller.
	Notify func(Job)
}

// Controller is the session's composition state machine.
type Controller struct {
	sessionID string
	tier      types.Tier
	engine    Engine
	store     JobStore
	sink      ResultSink
	notify    func(Job)
	logger    zerolog.Logger

	cancelTimeout     time.Duration
	reconnectDelay    time.Duration
	maxStreamFailures int
	streamStartBudget time.Duration
	streamStallBudget time.Duration

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu           sync.Mutex
	closed       bool
	submitting   bool
	activeID     string
	consumers    map[string]context.CancelFunc
	cancelTimers map[string]*time.Timer
}

// NewController creates a controller for one session. If the store already
// holds a non-terminal job for the session (a previous controller instance
// over the same store), it is adopted and its progress stream resumed.
func NewController(eng Engine, store JobStore, opts Options) *Controller {
	ctx, stop := context.WithCancel(context.Background())
	c := &Controller{
		sessionID:         opts.SessionID,
		tier:              opts.Tier,
		engine:            eng,
		store:             store,
		sink:              opts.ResultSink,
		notify:            opts.Notify,
		logger:            log.WithComponent("compose").With().Str("session_id", opts.SessionID).Logger(),
		cancelTimeout:     opts.CancelTimeout,
		reconnectDelay:    opts.ReconnectDelay,
		maxStreamFailures: opts.MaxStreamFailures,
		streamStartBudget: defaultStreamStartBudget,
		streamStallBudget: defaultStreamStallBudget,
		ctx:               ctx,
		stop:              stop,
		consumers:         make(map[string]context.CancelFunc),
		cancelTimers:      make(map[string]*time.Timer),
	}
	if c.cancelTimeout <= 0 {
		c.cancelTimeout = DefaultCancelTimeout
	}
	if c.reconnectDelay <= 0 {
		c.reconnectDelay = DefaultReconnectDelay
	}
	if c.maxStreamFailures <= 0 {
		c.maxStreamFailures = DefaultMaxStreamFailures
	}

	if job, err := store.ActiveForSession(ctx, opts.SessionID); err == nil && job != nil {
		c.mu.Lock()
		c.activeID = job.ID
		c.startConsumerLocked(job.ID)
		c.mu.Unlock()
		metrics.IncActiveJobs()
		c.logger.Info().Str("job_id", job.ID).Msg("compose.job.adopted")
	}
	return c
}

// Submit starts a new composition job. The quota is re-verified against the
// engine at submit time regardless of any earlier advisory check; PRO tier
// is exempt. Returns ErrAlreadyRunning while a non-terminal job exists for
// the session, leaving that job unmodified.
func (c *Controller) Submit(ctx context.Context, cfg media.AutoEditConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		metrics.IncJobSubmission("invalid")
		return "", err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if c.submitting || c.activeID != "" {
		c.mu.Unlock()
		metrics.IncJobSubmission("already_running")
		return "", ErrAlreadyRunning
	}
	c.submitting = true
	c.mu.Unlock()

	jobID, err := c.startJob(ctx, cfg)
	if err != nil {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
		return "", err
	}
	return jobID, nil
}

func (c *Controller) startJob(ctx context.Context, cfg media.AutoEditConfig) (string, error) {
	if !c.tier.Unlimited() {
		q, err := c.engine.CheckQuota(ctx)
		if err != nil {
			metrics.IncJobSubmission("quota_check_failed")
			return "", fmt.Errorf("verifying quota: %w", err)
		}
		if elig := quota.Evaluate(c.tier, q); !elig.Eligible {
			metrics.IncQuotaDenial("authoritative")
			metrics.IncJobSubmission("quota_exceeded")
			return "", &QuotaError{Quota: elig.Quota}
		}
	}

	jobID, err := c.engine.SubmitComposition(ctx, cfg)
	if err != nil {
		if errors.Is(err, engine.ErrQuotaExhausted) {
			metrics.IncQuotaDenial("submit")
			metrics.IncJobSubmission("quota_exceeded")
			return "", &QuotaError{}
		}
		metrics.IncJobSubmission("engine_error")
		return "", fmt.Errorf("starting composition: %w", err)
	}

	now := time.Now().UTC()
	job := &Job{
		ID:           jobID,
		SessionID:    c.sessionID,
		Status:       types.JobStatusSelectingClips,
		CurrentStage: humanStage(types.JobStatusSelectingClips),
		Config:       cfg,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.store.Put(ctx, job); err != nil {
		// The engine accepted a job we cannot track; withdraw it.
		cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.engine.CancelComposition(cancelCtx, jobID)
		metrics.IncJobSubmission("store_error")
		return "", fmt.Errorf("recording job: %w", err)
	}

	c.mu.Lock()
	c.submitting = false
	c.activeID = jobID
	c.startConsumerLocked(jobID)
	c.emitLocked(job)
	c.mu.Unlock()

	metrics.IncJobSubmission("accepted")
	metrics.IncActiveJobs()
	metrics.IncStageTransition(string(types.JobStatusIdle), string(types.JobStatusSelectingClips))
	c.logger.Info().Str("job_id", jobID).Int("games", len(cfg.GameIDs)).
		Int("target_duration", cfg.TargetDuration.Seconds()).Msg("compose.job.submitted")
	return jobID, nil
}

// Cancel requests cancellation of a running job. The request is advisory:
// the job keeps its externally visible status until the engine reports a
// terminal event, and a later Complete still wins over the request. If no
// terminal event arrives within the cancel timeout, the job is failed
// locally so the session can never hold a permanently stuck active job.
func (c *Controller) Cancel(ctx context.Context, jobID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	job, err := c.store.Get(ctx, jobID)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("loading job: %w", err)
	}
	if job == nil {
		c.mu.Unlock()
		return ErrJobNotFound
	}
	if job.Terminal() {
		c.mu.Unlock()
		return ErrJobTerminal
	}

	updated, err := c.store.Update(ctx, jobID, func(j *Job) error {
		j.CancelRequested = true
		j.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("marking cancellation: %w", err)
	}
	if _, armed := c.cancelTimers[jobID]; !armed {
		c.cancelTimers[jobID] = time.AfterFunc(c.cancelTimeout, func() {
			c.OnError(jobID, "cancellation timed out")
		})
	}
	c.emitLocked(updated)
	c.mu.Unlock()

	c.logger.Info().Str("job_id", jobID).Msg("compose.job.cancel_requested")
	if err := c.engine.CancelComposition(ctx, jobID); err != nil {
		// Advisory: the timer guarantees termination even when the engine
		// never hears the request.
		c.logger.Warn().Err(err).Str("job_id", jobID).Msg("compose.job.cancel_request_failed")
	}
	return nil
}

// OnProgressEvent applies one engine notification to the matching job.
// Events for unknown or terminal jobs are silently dropped, percentage is
// clamped non-decreasing and stages only move forward, so at-least-once
// out-of-order delivery is safe to replay. An event reporting Complete
// fetches the export result before finalizing.
func (c *Controller) OnProgressEvent(ev media.ProgressEvent) {
	if ev.JobID == "" || !ev.Status.IsValid() {
		metrics.IncProgressDropped("invalid")
		return
	}
	switch ev.Status {
	case types.JobStatusComplete:
		c.completeFromEvent(ev)
	case types.JobStatusFailed:
		c.OnError(ev.JobID, failureMessage(ev))
	default:
		c.applyProgress(ev)
	}
}

func (c *Controller) applyProgress(ev media.ProgressEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, err := c.store.Get(c.ctx, ev.JobID)
	if err != nil || prev == nil {
		metrics.IncProgressDropped("unknown_job")
		return
	}
	if prev.Terminal() {
		metrics.IncProgressDropped("terminal")
		return
	}
	same := ev.Status == prev.Status
	if !same && !prev.Status.CanTransitionTo(ev.Status) {
		metrics.IncProgressDropped("stale_stage")
		return
	}

	updated, err := c.store.Update(c.ctx, ev.JobID, func(job *Job) error {
		job.Status = ev.Status
		if p := clampPercent(ev.ProgressPercentage); p > job.ProgressPercentage {
			job.ProgressPercentage = p
		}
		switch {
		case ev.CurrentStage != "":
			job.CurrentStage = ev.CurrentStage
		case !same:
			job.CurrentStage = humanStage(ev.Status)
		}
		job.ClipsSelected = ev.ClipsSelected
		job.TotalClips = ev.TotalClips
		if ev.EstimatedCompletionSeconds != nil {
			v := *ev.EstimatedCompletionSeconds
			job.EstimatedCompletionSeconds = &v
		}
		job.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		c.logger.Error().Err(err).Str("job_id", ev.JobID).Msg("compose.job.progress_update_failed")
		return
	}

	metrics.IncProgressApplied()
	if !same {
		metrics.IncStageTransition(string(prev.Status), string(ev.Status))
	}
	c.emitLocked(updated)
}

func (c *Controller) completeFromEvent(ev media.ProgressEvent) {
	c.mu.Lock()
	job, err := c.store.Get(c.ctx, ev.JobID)
	if err != nil || job == nil {
		c.mu.Unlock()
		metrics.IncProgressDropped("unknown_job")
		return
	}
	if job.Terminal() {
		c.mu.Unlock()
		metrics.IncProgressDropped("terminal")
		return
	}
	c.mu.Unlock()

	res, err := c.engine.FetchResult(c.ctx, ev.JobID)
	if err != nil {
		c.logger.Error().Err(err).Str("job_id", ev.JobID).Msg("compose.job.result_fetch_failed")
		c.OnError(ev.JobID, "fetching result: "+err.Error())
		return
	}
	c.OnComplete(ev.JobID, *res)
}

// OnComplete stores the export result and finalizes the job as Complete
// with percentage 100. Duplicate terminal notifications are no-ops.
func (c *Controller) OnComplete(jobID string, result media.ExportResult) {
	if result.JobID == "" {
		result.JobID = jobID
	}
	c.finalize(jobID, func(job *Job) {
		job.Status = types.JobStatusComplete
		job.ProgressPercentage = 100
		job.CurrentStage = humanStage(types.JobStatusComplete)
		job.Result = &result
		job.Error = ""
	})
}

// OnError finalizes the job as Failed with the message attached. Because a
// terminal job never changes, a synthesized local failure and a late
// engine event cannot double-apply.
func (c *Controller) OnError(jobID, message string) {
	if message == "" {
		message = "composition failed"
	}
	c.finalize(jobID, func(job *Job) {
		job.Status = types.JobStatusFailed
		job.CurrentStage = humanStage(types.JobStatusFailed)
		job.Result = nil
		job.Error = message
	})
}

// finalize moves a job into a terminal status exactly once: it stops the
// consumer and the cancellation timer, frees the active slot, and hands a
// completed result to the sink.
func (c *Controller) finalize(jobID string, mutate func(*Job)) {
	c.mu.Lock()
	prev, err := c.store.Get(c.ctx, jobID)
	if err != nil || prev == nil {
		c.mu.Unlock()
		metrics.IncProgressDropped("unknown_job")
		return
	}
	if prev.Terminal() {
		c.mu.Unlock()
		metrics.IncProgressDropped("terminal")
		return
	}

	updated, err := c.store.Update(c.ctx, jobID, func(job *Job) error {
		mutate(job)
		now := time.Now().UTC()
		job.UpdatedAt = now
		job.CompletedAt = &now
		return nil
	})
	if err != nil {
		c.mu.Unlock()
		c.logger.Error().Err(err).Str("job_id", jobID).Msg("compose.job.finalize_failed")
		return
	}
	c.clearJobLocked(jobID)
	metrics.IncProgressApplied()
	metrics.IncStageTransition(string(prev.Status), string(updated.Status))
	c.emitLocked(updated)
	c.mu.Unlock()

	metrics.DecActiveJobs()
	if updated.CompletedAt != nil {
		metrics.ObserveJobDuration(string(updated.Status), updated.CompletedAt.Sub(updated.CreatedAt).Seconds())
	}

	if updated.Status == types.JobStatusComplete && c.sink != nil && updated.Result != nil {
		if err := c.sink.SaveResult(c.ctx, *updated.Result); err != nil {
			c.logger.Error().Err(err).Str("job_id", jobID).Msg("compose.job.result_store_failed")
		}
	}

	evt := c.logger.Info().Str("job_id", jobID).Str("status", string(updated.Status))
	if updated.Error != "" {
		evt = evt.Str("error", updated.Error)
	}
	evt.Msg("compose.job.finished")
}

// Job returns a snapshot of the job record.
func (c *Controller) Job(ctx context.Context, jobID string) (*Job, error) {
	job, err := c.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ActiveJob returns the session's current non-terminal job, if any.
func (c *Controller) ActiveJob(ctx context.Context) (*Job, bool) {
	c.mu.Lock()
	id := c.activeID
	c.mu.Unlock()
	if id == "" {
		return nil, false
	}
	job, err := c.store.Get(ctx, id)
	if err != nil || job == nil {
		return nil, false
	}
	return job, true
}

// Jobs lists every job recorded for this session, newest first.
func (c *Controller) Jobs(ctx context.Context) ([]*Job, error) {
	all, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Job, 0, len(all))
	for _, job := range all {
		if job.SessionID == c.sessionID {
			out = append(out, job)
		}
	}
	return out, nil
}

// Close stops all consumers and timers and waits for them to drain.
// In-flight jobs keep their last recorded state; the startup sweep of the
// next process decides their fate.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, t := range c.cancelTimers {
		t.Stop()
		delete(c.cancelTimers, id)
	}
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
}

func (c *Controller) startConsumerLocked(jobID string) {
	cctx, cancel := context.WithCancel(c.ctx)
	c.consumers[jobID] = cancel
	c.wg.Add(1)
	go c.consume(cctx, jobID)
}

// consume owns the progress stream for one job, reconnecting on transient
// loss. A watchdog aborts attempts whose events stop flowing, so an open
// connection to a hung engine counts as a loss too. After too many
// consecutive losses the job is failed locally rather than left active
// forever against a dead engine.
func (c *Controller) consume(ctx context.Context, jobID string) {
	defer c.wg.Done()
	failures := 0
	for {
		attempt, abort := context.WithCancel(ctx)
		wd := newStreamWatchdog(c.streamStartBudget, c.streamStallBudget)
		go wd.watch(attempt, abort)
		err := c.engine.SubscribeProgress(attempt, jobID, func(ev media.ProgressEvent) {
			wd.beat()
			failures = 0
			c.OnProgressEvent(ev)
		})
		abort()
		if ctx.Err() != nil {
			return
		}
		if job, gerr := c.store.Get(ctx, jobID); gerr == nil && (job == nil || job.Terminal()) {
			return
		}

		failures++
		switch {
		case wd.stalled():
			err = errors.New("no progress events within the stall budget")
		case err == nil:
			err = errors.New("stream closed before terminal event")
		}
		c.logger.Warn().Err(err).Str("job_id", jobID).Int("consecutive_failures", failures).
			Msg("compose.job.stream_interrupted")
		if failures >= c.maxStreamFailures {
			c.OnError(jobID, "progress stream lost: "+err.Error())
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

// clearJobLocked releases everything tied to a job id. Caller holds c.mu.
func (c *Controller) clearJobLocked(jobID string) {
	if cancel, ok := c.consumers[jobID]; ok {
		cancel()
		delete(c.consumers, jobID)
	}
	if t, ok := c.cancelTimers[jobID]; ok {
		t.Stop()
		delete(c.cancelTimers, jobID)
	}
	if c.activeID == jobID {
		c.activeID = ""
	}
}

// emitLocked notifies the subscriber in apply order. Caller holds c.mu.
func (c *Controller) emitLocked(job *Job) {
	if c.notify != nil {
		c.notify(*job.Clone())
	}
}

func failureMessage(ev media.ProgressEvent) string {
	if ev.ErrorMessage != "" {
		return ev.ErrorMessage
	}
	return "composition failed"
}

func humanStage(s types.JobStatus) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
