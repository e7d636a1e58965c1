// SPDX-License-Identifier: MIT

// Package engine is the HTTP client for the composition engine: job
// submission and cancellation, the per-job progress event stream, export
// results and the authoritative composition quota. Requests are rate
// limited; idempotent calls retry transport failures and 5xx responses
// with exponential backoff and jitter. Submission is never retried.
package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/clipforge/clipforge/internal/log"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/metrics"
	"github.com/clipforge/clipforge/internal/telemetry"
)

// Client talks to the composition engine API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient carries no overall timeout: event streams live as long
	// as the job runs and are bounded by the caller's context instead.
	streamClient *http.Client
	limiter      *rate.Limiter
	maxRetries   int
	backoff      time.Duration
	maxBackoff   time.Duration
	userAgent    string
	logger       zerolog.Logger
	rnd          *rand.Rand
	mu           sync.Mutex
}

// Options configures the engine client behavior.
type Options struct {
	Timeout               time.Duration
	ResponseHeaderTimeout time.Duration
	MaxRetries            int
	Backoff               time.Duration
	MaxBackoff            time.Duration
	UserAgent             string
	RateLimit             rate.Limit
	RateLimitBurst        int
}

const (
	defaultTimeout        = 10 * time.Second
	defaultRetries        = 2
	defaultBackoff        = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	defaultRateLimit      = 10
	defaultRateLimitBurst = 20
)

// New creates an engine client with default options.
func New(baseURL string) *Client {
	return NewWithOptions(baseURL, Options{})
}

// NewWithOptions creates an engine client with explicit options.
func NewWithOptions(baseURL string, opts Options) *Client {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	nopts := normalizeOptions(opts)
	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: nopts.ResponseHeaderTimeout,
		TLSHandshakeTimeout:   5 * time.Second,
	}

	return &Client{
		baseURL: trimmed,
		httpClient: &http.Client{
			Timeout:   nopts.Timeout,
			Transport: transport,
		},
		streamClient: &http.Client{Transport: transport},
		limiter:      rate.NewLimiter(nopts.RateLimit, nopts.RateLimitBurst),
		maxRetries:   nopts.MaxRetries,
		backoff:      nopts.Backoff,
		maxBackoff:   nopts.MaxBackoff,
		userAgent:    nopts.UserAgent,
		logger:       log.WithComponent("engine"),
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
	}
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ResponseHeaderTimeout <= 0 {
		opts.ResponseHeaderTimeout = opts.Timeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "clipforge"
	}
	return opts
}

// BaseURL returns the configured engine base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitComposition asks the engine to start a composition job and returns
// the engine-assigned job id. Submission consumes quota and is not
// idempotent, so it is never retried; callers decide whether to resubmit.
func (c *Client) SubmitComposition(ctx context.Context, cfg media.AutoEditConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	var out struct {
		JobID string `json:"job_id"`
	}
	if err := c.call(ctx, callSpec{
		op:     "submit",
		method: http.MethodPost,
		path:   "/v1/compositions",
		body:   cfg,
		out:    &out,
	}); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", &EngineError{Sentinel: ErrBadResponse, Op: "submit", Body: "missing job_id"}
	}
	return out.JobID, nil
}

// CancelComposition sends an advisory cancellation for the given job. The
// engine acknowledges the request; the job still finishes through its
// event stream and may end in any terminal state.
func (c *Client) CancelComposition(ctx context.Context, jobID string) error {
	return c.call(ctx, callSpec{
		op:     "cancel",
		method: http.MethodDelete,
		path:   "/v1/compositions/" + url.PathEscape(jobID),
		retry:  true,
	})
}

// FetchResult returns the export result for a completed job.
func (c *Client) FetchResult(ctx context.Context, jobID string) (*media.ExportResult, error) {
	var out media.ExportResult
	if err := c.call(ctx, callSpec{
		op:     "fetch_result",
		method: http.MethodGet,
		path:   "/v1/results/" + url.PathEscape(jobID),
		out:    &out,
		retry:  true,
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListResults returns every export result the engine still holds, newest
// first.
func (c *Client) ListResults(ctx context.Context) ([]media.ExportResult, error) {
	var out struct {
		Results []media.ExportResult `json:"results"`
	}
	if err := c.call(ctx, callSpec{
		op:     "list_results",
		method: http.MethodGet,
		path:   "/v1/results",
		out:    &out,
		retry:  true,
	}); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// DeleteResult removes a result record from the engine, optionally deleting
// the rendered file as well.
func (c *Client) DeleteResult(ctx context.Context, jobID string, deleteFile bool) error {
	q := url.Values{}
	q.Set("delete_file", strconv.FormatBool(deleteFile))
	return c.call(ctx, callSpec{
		op:     "delete_result",
		method: http.MethodDelete,
		path:   "/v1/results/" + url.PathEscape(jobID),
		query:  q,
		retry:  true,
	})
}

// CheckQuota fetches the authoritative composition quota. Implements
// quota.Source.
func (c *Client) CheckQuota(ctx context.Context) (media.QuotaInfo, error) {
	var out media.QuotaInfo
	if err := c.call(ctx, callSpec{
		op:     "check_quota",
		method: http.MethodGet,
		path:   "/v1/quota",
		out:    &out,
		retry:  true,
	}); err != nil {
		return media.QuotaInfo{}, err
	}
	return out.Normalize(), nil
}

// Ping probes engine reachability for readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.CheckQuota(ctx)
	return err
}

// SubscribeProgress opens the job's server-sent event stream and invokes
// handle for every decoded progress event until the engine closes the
// stream or ctx is cancelled. A nil return means the engine ended the
// stream normally; a caller that still holds a non-terminal job treats
// that as a transport fault and reconnects.
func (c *Client) SubscribeProgress(ctx context.Context, jobID string, handle func(media.ProgressEvent)) error {
	rawURL, err := c.buildURL("/v1/compositions/"+url.PathEscape(jobID)+"/events", nil)
	if err != nil {
		return &EngineError{Sentinel: ErrEngineUnavailable, Op: "events", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &EngineError{Sentinel: ErrEngineUnavailable, Op: "events", Err: err}
	}
	c.applyHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &EngineError{Sentinel: ErrEngineUnavailable, Op: "events", Err: err}
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return c.statusError("events", resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data []string
	dispatch := func() {
		if len(data) == 0 {
			return
		}
		payload := strings.Join(data, "\n")
		data = data[:0]
		var ev media.ProgressEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			metrics.IncProgressDropped("malformed")
			c.logger.Warn().Err(err).Str("job_id", jobID).Msg("dropping malformed progress event")
			return
		}
		handle(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// event/id/retry fields carry nothing here; the payload is
			// always in data lines.
		}
	}
	dispatch()

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &EngineError{Sentinel: ErrEngineUnavailable, Op: "events", Err: err}
	}
	return nil
}

// callSpec describes one request/response exchange.
type callSpec struct {
	op     string // short operation label for spans and metrics
	method string
	path   string
	query  url.Values
	body   any  // JSON-encoded when non-nil
	out    any  // JSON-decoded from the response body when non-nil
	retry  bool // idempotent calls only
}

func (c *Client) call(ctx context.Context, spec callSpec) error {
	resp, err := c.do(ctx, spec)
	if err != nil {
		return err
	}
	defer drainClose(resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return c.statusError(spec.op, resp)
	}
	if spec.out != nil {
		if err := json.NewDecoder(resp.Body).Decode(spec.out); err != nil {
			return &EngineError{Sentinel: ErrBadResponse, Op: spec.op, Err: err}
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, spec callSpec) (*http.Response, error) {
	tracer := telemetry.Tracer("clipforge.engine")
	ctx, span := tracer.Start(ctx, "engine."+spec.op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.method", spec.method),
		attribute.String("http.route", spec.path),
	)
	defer span.End()

	rawURL, err := c.buildURL(spec.path, spec.query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &EngineError{Sentinel: ErrEngineUnavailable, Op: spec.op, Err: err}
	}

	var payload []byte
	if spec.body != nil {
		payload, err = json.Marshal(spec.body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, &EngineError{Sentinel: ErrBadResponse, Op: spec.op, Err: err}
		}
	}

	maxAttempts := 1
	if spec.retry {
		maxAttempts = c.maxRetries + 1
	}

	var lastErr error
	var lastStatus int
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, attemptSpan := tracer.Start(ctx, "engine."+spec.op+".attempt", trace.WithSpanKind(trace.SpanKindClient))
		attemptSpan.SetAttributes(telemetry.EngineAttributes(spec.op, attempt)...)

		if c.limiter != nil {
			if err := c.limiter.Wait(attemptCtx); err != nil {
				attemptSpan.RecordError(err)
				attemptSpan.SetStatus(codes.Error, err.Error())
				attemptSpan.End()
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(attemptCtx, spec.method, rawURL, body)
		if err != nil {
			attemptSpan.RecordError(err)
			attemptSpan.SetStatus(codes.Error, err.Error())
			attemptSpan.End()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, &EngineError{Sentinel: ErrEngineUnavailable, Op: spec.op, Err: err}
		}
		c.applyHeaders(req)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		otel.GetTextMapPropagator().Inject(attemptCtx, propagation.HeaderCarrier(req.Header))

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}

		retry := (err != nil || status >= http.StatusInternalServerError) && attempt < maxAttempts
		metrics.ObserveEngineRequest(spec.op, requestOutcome(status, err), duration.Seconds())

		attemptSpan.SetAttributes(telemetry.HTTPAttributes(spec.method, spec.path, spec.path, status)...)
		if err != nil {
			attemptSpan.RecordError(err)
		}
		if err != nil || status >= http.StatusBadRequest {
			statusText := http.StatusText(status)
			if statusText == "" {
				statusText = "request failed"
			}
			attemptSpan.SetStatus(codes.Error, statusText)
		} else {
			attemptSpan.SetStatus(codes.Ok, "")
		}
		attemptSpan.End()

		if err == nil && status < http.StatusInternalServerError {
			// 2xx through 4xx are answers; the caller classifies 4xx.
			span.SetAttributes(telemetry.HTTPAttributes(spec.method, spec.path, spec.path, status)...)
			if status >= http.StatusBadRequest {
				span.SetStatus(codes.Error, http.StatusText(status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return resp, nil
		}

		if resp != nil {
			drainClose(resp.Body)
		}
		lastErr = err
		lastStatus = status

		if !retry {
			break
		}
		metrics.IncEngineRetry(spec.op)

		wait := c.backoffFor(attempt - 1)
		if err := sleepWithContext(ctx, wait); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	if lastStatus > 0 {
		span.SetAttributes(telemetry.HTTPAttributes(spec.method, spec.path, spec.path, lastStatus)...)
		span.SetStatus(codes.Error, http.StatusText(lastStatus))
		return nil, &EngineError{Sentinel: ErrEngineUnavailable, Op: spec.op, Status: lastStatus}
	}
	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Error())
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &EngineError{Sentinel: ErrEngineUnavailable, Op: spec.op, Err: lastErr}
	}
	return nil, &EngineError{Sentinel: ErrEngineUnavailable, Op: spec.op}
}

func (c *Client) statusError(op string, resp *http.Response) error {
	body := readBodySnippet(resp.Body)
	sentinel := ErrEngineRejected
	switch {
	case resp.StatusCode == http.StatusNotFound:
		sentinel = ErrNotFound
	case resp.StatusCode == http.StatusPaymentRequired:
		sentinel = ErrQuotaExhausted
	case resp.StatusCode >= http.StatusInternalServerError:
		sentinel = ErrEngineUnavailable
	}
	return &EngineError{Sentinel: sentinel, Op: op, Status: resp.StatusCode, Body: body}
}

func (c *Client) buildURL(p string, q url.Values) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = p
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) applyHeaders(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) backoffFor(attempt int) time.Duration {
	wait := c.backoff * time.Duration(1<<attempt)
	if wait > c.maxBackoff {
		wait = c.maxBackoff
	}
	jitter := time.Duration(c.randInt63n(int64(wait/5 + 1)))
	return wait + jitter
}

func (c *Client) randInt63n(n int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rnd.Int63n(n)
}

func requestOutcome(status int, err error) string {
	switch {
	case err != nil:
		return "transport_error"
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status >= http.StatusBadRequest:
		return "rejected"
	default:
		return "success"
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

func readBodySnippet(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
