// SPDX-License-Identifier: MIT

// Package hosting is the HTTP client for the video hosting service: the
// OAuth device flow, multipart video upload, upload progress polling,
// history and the upload quota. The OAuth token is cached on disk so the
// account stays connected across daemon restarts. Only idempotent reads
// are retried; the auth flow and the upload itself get a single attempt.
package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
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

// Client talks to the video hosting service API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// uploadClient carries no overall timeout: a large video transfer is
	// bounded by the caller's context, not a fixed request deadline.
	uploadClient *http.Client
	limiter      *rate.Limiter
	maxRetries   int
	backoff      time.Duration
	maxBackoff   time.Duration
	userAgent    string
	logger       zerolog.Logger
	tokens       *TokenCache
	rnd          *rand.Rand
	mu           sync.Mutex
}

// Options configures the hosting client behavior.
type Options struct {
	Timeout               time.Duration
	ResponseHeaderTimeout time.Duration
	MaxRetries            int
	Backoff               time.Duration
	MaxBackoff            time.Duration
	UserAgent             string
	RateLimit             rate.Limit
	RateLimitBurst        int
	// TokenCachePath is where the OAuth token is persisted. Empty keeps
	// the token in memory only.
	TokenCachePath string
}

const (
	defaultTimeout        = 15 * time.Second
	defaultRetries        = 2
	defaultBackoff        = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	defaultRateLimit      = 5
	defaultRateLimitBurst = 10
)

// New creates a hosting client with default options and an in-memory
// token cache.
func New(baseURL string) (*Client, error) {
	return NewWithOptions(baseURL, Options{})
}

// NewWithOptions creates a hosting client with explicit options.
func NewWithOptions(baseURL string, opts Options) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	nopts := normalizeOptions(opts)

	tokens, err := NewTokenCache(nopts.TokenCachePath)
	if err != nil {
		return nil, err
	}

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
		uploadClient: &http.Client{Transport: transport},
		limiter:      rate.NewLimiter(nopts.RateLimit, nopts.RateLimitBurst),
		maxRetries:   nopts.MaxRetries,
		backoff:      nopts.Backoff,
		maxBackoff:   nopts.MaxBackoff,
		userAgent:    nopts.UserAgent,
		logger:       log.WithComponent("hosting"),
		tokens:       tokens,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
	}, nil
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

// BaseURL returns the configured hosting base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authenticated reports whether a usable token is cached.
func (c *Client) Authenticated() bool {
	return c.tokens.Token().Valid()
}

// AuthStart is the hosting service's answer to a device flow start: the
// URL the user opens in a browser and the state that ties the later
// completion call to this flow.
type AuthStart struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// StartAuth begins the OAuth device flow.
func (c *Client) StartAuth(ctx context.Context) (AuthStart, error) {
	var out AuthStart
	if err := c.call(ctx, callSpec{
		op:     "auth_start",
		method: http.MethodPost,
		path:   "/oauth/device/start",
		out:    &out,
	}); err != nil {
		return AuthStart{}, err
	}
	if out.AuthURL == "" || out.State == "" {
		return AuthStart{}, &HostingError{Sentinel: ErrBadResponse, Op: "auth_start", Body: "missing auth_url or state"}
	}
	return out, nil
}

// CompleteAuth exchanges the user's authorization code for a token and
// caches it.
func (c *Client) CompleteAuth(ctx context.Context, code, state string) error {
	if code == "" {
		return &media.ValidationError{Field: "code", Reason: "required"}
	}
	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		Scope       string `json:"scope"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := c.call(ctx, callSpec{
		op:     "auth_complete",
		method: http.MethodPost,
		path:   "/oauth/device/complete",
		body:   map[string]string{"code": code, "state": state},
		out:    &out,
	}); err != nil {
		return err
	}
	if out.AccessToken == "" {
		return &HostingError{Sentinel: ErrBadResponse, Op: "auth_complete", Body: "missing access_token"}
	}

	tok := Token{
		AccessToken: out.AccessToken,
		TokenType:   out.TokenType,
		Scope:       out.Scope,
	}
	if out.ExpiresIn > 0 {
		tok.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	if err := c.tokens.Store(tok); err != nil {
		return fmt.Errorf("caching token: %w", err)
	}

	c.logger.Info().Str("event", "hosting.auth.completed").Msg("hosting account connected")
	return nil
}

// Logout revokes the grant and forgets the cached token. The local token
// is cleared even when the revoke call fails; the server-side grant then
// expires on its own.
func (c *Client) Logout(ctx context.Context) error {
	tok := c.tokens.Token()
	if !tok.Valid() {
		return c.tokens.Clear()
	}

	revokeErr := c.call(ctx, callSpec{
		op:     "auth_revoke",
		method: http.MethodPost,
		path:   "/oauth/revoke",
		auth:   true,
	})
	if err := c.tokens.Clear(); err != nil {
		return err
	}
	if revokeErr != nil {
		return revokeErr
	}

	c.logger.Info().Str("event", "hosting.auth.logged_out").Msg("hosting account disconnected")
	return nil
}

// UploadVideo publishes a rendered composition. The file streams through
// a multipart body, so memory stays flat regardless of video size. The
// upload consumes quota and is not idempotent, so it is never retried.
func (c *Client) UploadVideo(ctx context.Context, path string, meta media.VideoMetadata, thumbnailPath string) (media.Video, error) {
	if strings.TrimSpace(meta.Title) == "" {
		return media.Video{}, &media.ValidationError{Field: "title", Reason: "required"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return media.Video{}, fmt.Errorf("opening video: %w", err)
	}
	tok := c.tokens.Token()
	if !tok.Valid() {
		return media.Video{}, &HostingError{Sentinel: ErrNotAuthenticated, Op: "upload"}
	}

	tracer := telemetry.Tracer("clipforge.hosting")
	ctx, span := tracer.Start(ctx, "hosting.upload", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.method", http.MethodPost),
		attribute.String("http.route", "/v1/videos"),
		attribute.Int64("upload.file_size", info.Size()),
	)
	defer span.End()

	rawURL, err := c.buildURL("/v1/videos", nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return media.Video{}, &HostingError{Sentinel: ErrHostingUnavailable, Op: "upload", Err: err}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeVideoParts(mw, meta, path, thumbnailPath))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, pr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return media.Video{}, &HostingError{Sentinel: ErrHostingUnavailable, Op: "upload", Err: err}
	}
	c.applyHeaders(req)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return media.Video{}, err
		}
	}

	c.logger.Info().
		Str("event", "hosting.upload.started").
		Str("title", meta.Title).
		Int64("file_size", info.Size()).
		Msg("uploading video")

	start := time.Now()
	resp, err := c.uploadClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveHostingRequest("upload", requestOutcome(0, err), duration.Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			return media.Video{}, ctx.Err()
		}
		return media.Video{}, &HostingError{Sentinel: ErrHostingUnavailable, Op: "upload", Err: err}
	}
	defer drainClose(resp.Body)

	metrics.ObserveHostingRequest("upload", requestOutcome(resp.StatusCode, nil), duration.Seconds())
	span.SetAttributes(telemetry.HTTPAttributes(http.MethodPost, "/v1/videos", "/v1/videos", resp.StatusCode)...)

	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return media.Video{}, c.statusError("upload", resp)
	}
	span.SetStatus(codes.Ok, "")

	var video media.Video
	if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
		return media.Video{}, &HostingError{Sentinel: ErrBadResponse, Op: "upload", Err: err}
	}
	if video.ID == "" {
		return media.Video{}, &HostingError{Sentinel: ErrBadResponse, Op: "upload", Body: "missing video id"}
	}

	c.logger.Info().
		Str("event", "hosting.upload.accepted").
		Str("video_id", video.ID).
		Msg("upload accepted")
	return video, nil
}

func writeVideoParts(mw *multipart.Writer, meta media.VideoMetadata, path, thumbnailPath string) error {
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="metadata"`)
	header.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(part).Encode(meta); err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	if err := copyFilePart(mw, "file", path); err != nil {
		return err
	}
	if thumbnailPath != "" {
		if err := copyFilePart(mw, "thumbnail", thumbnailPath); err != nil {
			return err
		}
	}
	return mw.Close()
}

func copyFilePart(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", field, err)
	}
	defer func() { _ = f.Close() }()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("streaming %s: %w", field, err)
	}
	return nil
}

// PollUploadProgress fetches the current upload's progress snapshot.
// Returns nil when no upload is in flight.
func (c *Client) PollUploadProgress(ctx context.Context) (*media.UploadProgress, error) {
	var out media.UploadProgress
	found, err := c.callMaybe(ctx, callSpec{
		op:     "poll_progress",
		method: http.MethodGet,
		path:   "/v1/uploads/current",
		out:    &out,
		auth:   true,
		retry:  true,
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &out, nil
}

// UploadHistory returns the hosting service's record of completed
// uploads, newest first.
func (c *Client) UploadHistory(ctx context.Context) ([]media.UploadHistoryEntry, error) {
	var out struct {
		Uploads []media.UploadHistoryEntry `json:"uploads"`
	}
	if err := c.call(ctx, callSpec{
		op:     "history",
		method: http.MethodGet,
		path:   "/v1/uploads/history",
		out:    &out,
		auth:   true,
		retry:  true,
	}); err != nil {
		return nil, err
	}
	return out.Uploads, nil
}

// CheckQuota fetches the authoritative upload quota. Implements
// quota.Source.
func (c *Client) CheckQuota(ctx context.Context) (media.QuotaInfo, error) {
	var out media.QuotaInfo
	if err := c.call(ctx, callSpec{
		op:     "check_quota",
		method: http.MethodGet,
		path:   "/v1/uploads/quota",
		out:    &out,
		auth:   true,
		retry:  true,
	}); err != nil {
		return media.QuotaInfo{}, err
	}
	return out.Normalize(), nil
}

// callSpec describes one request/response exchange.
type callSpec struct {
	op     string // short operation label for spans and metrics
	method string
	path   string
	query  url.Values
	body   any  // JSON-encoded when non-nil
	out    any  // JSON-decoded from the response body when non-nil
	auth   bool // attach the cached bearer token
	retry  bool // idempotent calls only
}

func (c *Client) call(ctx context.Context, spec callSpec) error {
	_, err := c.callMaybe(ctx, spec)
	return err
}

// callMaybe performs the exchange and reports whether a body was present:
// a 204 answer yields (false, nil) with spec.out untouched.
func (c *Client) callMaybe(ctx context.Context, spec callSpec) (bool, error) {
	resp, err := c.do(ctx, spec)
	if err != nil {
		return false, err
	}
	defer drainClose(resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return false, c.statusError(spec.op, resp)
	}
	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if spec.out != nil {
		if err := json.NewDecoder(resp.Body).Decode(spec.out); err != nil {
			return false, &HostingError{Sentinel: ErrBadResponse, Op: spec.op, Err: err}
		}
	}
	return true, nil
}

func (c *Client) do(ctx context.Context, spec callSpec) (*http.Response, error) {
	var bearer string
	if spec.auth {
		tok := c.tokens.Token()
		if !tok.Valid() {
			return nil, &HostingError{Sentinel: ErrNotAuthenticated, Op: spec.op}
		}
		bearer = tok.AccessToken
	}

	tracer := telemetry.Tracer("clipforge.hosting")
	ctx, span := tracer.Start(ctx, "hosting."+spec.op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.method", spec.method),
		attribute.String("http.route", spec.path),
	)
	defer span.End()

	rawURL, err := c.buildURL(spec.path, spec.query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &HostingError{Sentinel: ErrHostingUnavailable, Op: spec.op, Err: err}
	}

	var payload []byte
	if spec.body != nil {
		payload, err = json.Marshal(spec.body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, &HostingError{Sentinel: ErrBadResponse, Op: spec.op, Err: err}
		}
	}

	maxAttempts := 1
	if spec.retry {
		maxAttempts = c.maxRetries + 1
	}

	var lastErr error
	var lastStatus int
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, attemptSpan := tracer.Start(ctx, "hosting."+spec.op+".attempt", trace.WithSpanKind(trace.SpanKindClient))
		attemptSpan.SetAttributes(telemetry.HostingAttributes(spec.op, attempt)...)

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
			return nil, &HostingError{Sentinel: ErrHostingUnavailable, Op: spec.op, Err: err}
		}
		c.applyHeaders(req)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
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
		metrics.ObserveHostingRequest(spec.op, requestOutcome(status, err), duration.Seconds())

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
		metrics.IncHostingRetry(spec.op)

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
		return nil, &HostingError{Sentinel: ErrHostingUnavailable, Op: spec.op, Status: lastStatus}
	}
	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Error())
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &HostingError{Sentinel: ErrHostingUnavailable, Op: spec.op, Err: lastErr}
	}
	return nil, &HostingError{Sentinel: ErrHostingUnavailable, Op: spec.op}
}

func (c *Client) statusError(op string, resp *http.Response) error {
	body := readBodySnippet(resp.Body)
	sentinel := ErrHostingRejected
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		sentinel = ErrNotAuthenticated
	case resp.StatusCode == http.StatusNotFound:
		sentinel = ErrNotFound
	case resp.StatusCode == http.StatusPaymentRequired:
		sentinel = ErrQuotaExhausted
	case resp.StatusCode >= http.StatusInternalServerError:
		sentinel = ErrHostingUnavailable
	}
	return &HostingError{Sentinel: sentinel, Op: op, Status: resp.StatusCode, Body: body}
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
