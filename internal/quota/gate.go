// SPDX-License-Identifier: MIT

// Package quota decides whether a user may start a composition or upload.
// The gate's answer is advisory: quota state can change between the check
// and the actual submission, so the submitting caller re-verifies against
// the boundary service before consuming quota.
package quota

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipforge/clipforge/internal/cache"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/types"
)

const (
	// DefaultTTL is how long a fetched quota snapshot is served from cache.
	DefaultTTL = 30 * time.Second
	// DefaultCacheKey is the cache key for the engine quota snapshot.
	DefaultCacheKey = "quota:engine"
)

// Eligibility is the outcome of an advisory quota check. Ineligibility is
// ordinary state the caller surfaces as an upgrade prompt, not an error.
type Eligibility struct {
	Eligible bool            `json:"eligible"`
	Reason   string          `json:"reason,omitempty"` // empty when eligible
	Quota    media.QuotaInfo `json:"quota"`            // normalized snapshot the decision was based on
}

// Evaluate applies the tier rules to a quota snapshot: a PRO user is always
// eligible regardless of remaining quota; a free user is eligible only while
// remaining > 0.
func Evaluate(tier types.Tier, q media.QuotaInfo) Eligibility {
	q = q.Normalize()
	if tier.Unlimited() {
		return Eligibility{Eligible: true, Quota: q}
	}
	if q.Remaining > 0 {
		return Eligibility{Eligible: true, Quota: q}
	}
	return Eligibility{Eligible: false, Reason: "monthly quota exhausted", Quota: q}
}

// Source fetches the authoritative quota from a boundary service.
type Source interface {
	CheckQuota(ctx context.Context) (media.QuotaInfo, error)
}

// Option configuration pattern
type Option func(*Gate)

// WithTTL overrides how long a fetched snapshot stays fresh.
func WithTTL(ttl time.Duration) Option {
	return func(g *Gate) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithCacheKey overrides the cache key, so one gate instance can serve the
// engine quota and another the hosting quota.
func WithCacheKey(key string) Option {
	return func(g *Gate) {
		if key != "" {
			g.key = key
		}
	}
}

// Gate answers advisory eligibility questions backed by a cached last-known
// quota snapshot, refetching from the source when the snapshot has expired.
type Gate struct {
	source Source
	cache  cache.Cache
	ttl    time.Duration
	key    string
	logger zerolog.Logger
}

// NewGate creates a gate over the given source. A nil cache disables
// snapshot reuse.
func NewGate(source Source, c cache.Cache, logger zerolog.Logger, opts ...Option) *Gate {
	if c == nil {
		c = cache.NewNoOpCache()
	}

	g := &Gate{
		source: source,
		cache:  c,
		ttl:    DefaultTTL,
		key:    DefaultCacheKey,
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check returns the advisory eligibility for the tier using the last-known
// quota snapshot, fetching a fresh one when needed. A fetch failure still
// yields an eligible answer for PRO users, whose eligibility does not depend
// on quota state.
func (g *Gate) Check(ctx context.Context, tier types.Tier) (Eligibility, error) {
	q, err := g.snapshot(ctx)
	if err != nil {
		if tier.Unlimited() {
			g.logger.Warn().Err(err).Msg("quota fetch failed, pro tier remains eligible")
			return Eligibility{Eligible: true}, nil
		}
		return Eligibility{}, err
	}
	return Evaluate(tier, q), nil
}

// Refresh bypasses the cache, fetches the quota from the source and stores
// the normalized snapshot.
func (g *Gate) Refresh(ctx context.Context) (media.QuotaInfo, error) {
	q, err := g.source.CheckQuota(ctx)
	if err != nil {
		return media.QuotaInfo{}, err
	}
	q = q.Normalize()

	if data, err := json.Marshal(q); err == nil {
		g.cache.Set(ctx, g.key, data, g.ttl)
	}
	return q, nil
}

// snapshot returns the cached quota when fresh, refreshing otherwise.
func (g *Gate) snapshot(ctx context.Context) (media.QuotaInfo, error) {
	if data, ok := g.cache.Get(ctx, g.key); ok {
		var q media.QuotaInfo
		if err := json.Unmarshal(data, &q); err == nil {
			return q, nil
		}
		g.cache.Delete(ctx, g.key)
	}
	return g.Refresh(ctx)
}
