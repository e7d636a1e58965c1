// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/types"
	"github.com/clipforge/clipforge/internal/validate"
)

// Validate checks the resolved configuration and fails fast on anything
// that would otherwise only surface at request time.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("logLevel", "must be one of: debug, info, warn, error", cfg.LogLevel)
	}

	validateListenAddr(v, cfg.ListenAddr)

	// Job store, clip index and export staging all live under the data
	// dir, so probe writability before anything starts.
	v.WritableDirectory("dataDir", cfg.DataDir, false)

	v.URL("engine.baseUrl", cfg.Engine.BaseURL, []string{"http", "https"})
	validateClientTuning(v, "engine",
		cfg.Engine.Timeout, cfg.Engine.ResponseHeaderTimeout, cfg.Engine.Retries,
		cfg.Engine.Backoff, cfg.Engine.MaxBackoff, cfg.Engine.RateLimit, cfg.Engine.RateBurst)

	v.URL("hosting.baseUrl", cfg.Hosting.BaseURL, []string{"http", "https"})
	validateClientTuning(v, "hosting",
		cfg.Hosting.Timeout, cfg.Hosting.ResponseHeaderTimeout, cfg.Hosting.Retries,
		cfg.Hosting.Backoff, cfg.Hosting.MaxBackoff, cfg.Hosting.RateLimit, cfg.Hosting.RateBurst)

	// An empty recordings dir is setup mode: the daemon runs without
	// library scanning until one is configured.
	if strings.TrimSpace(cfg.Library.RecordingsDir) != "" {
		v.Directory("library.recordingsDir", cfg.Library.RecordingsDir, true)
	}
	v.NonNegative("library.maxDepth", cfg.Library.MaxDepth)
	if cfg.Library.MinSizeBytes < 0 {
		v.AddError("library.minSizeBytes",
			fmt.Sprintf("value cannot be negative, got %d", cfg.Library.MinSizeBytes),
			cfg.Library.MinSizeBytes)
	}
	nonNegativeDuration(v, "library.stableWindow", cfg.Library.StableWindow)
	nonNegativeDuration(v, "library.watchDebounce", cfg.Library.WatchDebounce)
	nonNegativeDuration(v, "library.rescanInterval", cfg.Library.RescanInterval)

	v.OneOf("session.tier", cfg.Session.Tier, []string{string(types.TierFree), string(types.TierPro)})
	positiveDuration(v, "session.cancelTimeout", cfg.Session.CancelTimeout)
	positiveDuration(v, "session.reconnectDelay", cfg.Session.ReconnectDelay)
	v.Positive("session.maxStreamFailures", cfg.Session.MaxStreamFailures)
	positiveDuration(v, "session.pollInterval", cfg.Session.PollInterval)
	positiveDuration(v, "session.pollFailureBudget", cfg.Session.PollFailureBudget)

	if cfg.RateLimitEnabled {
		v.Positive("api.rateLimit.rpm", cfg.RateLimitRPM)
	}
	positiveDuration(v, "api.watchTimeout", cfg.WatchTimeout)

	v.NonNegative("cache.redisDb", cfg.Cache.RedisDB)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporterType", cfg.Telemetry.ExporterType, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("telemetry.samplingRate", "must be between 0.0 and 1.0", cfg.Telemetry.SamplingRate)
		}
	}

	return v.Err()
}

func validateListenAddr(v *validate.Validator, addr string) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		v.AddError("listenAddr", fmt.Sprintf("must be host:port: %v", err), addr)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		v.AddError("listenAddr", "port must be numeric", addr)
		return
	}
	v.Port("listenAddr", port)
}

func validateClientTuning(v *validate.Validator, section string,
	timeout, headerTimeout time.Duration, retries int,
	backoff, maxBackoff time.Duration, rateLimit float64, burst int) {
	positiveDuration(v, section+".timeout", timeout)
	nonNegativeDuration(v, section+".responseHeaderTimeout", headerTimeout)
	v.Range(section+".retries", retries, 0, 10)
	nonNegativeDuration(v, section+".backoff", backoff)
	nonNegativeDuration(v, section+".maxBackoff", maxBackoff)
	if backoff > 0 && maxBackoff > 0 && backoff > maxBackoff {
		v.AddError(section+".maxBackoff", "must be at least the initial backoff", maxBackoff.String())
	}
	if rateLimit < 0 {
		v.AddError(section+".rateLimit", "cannot be negative", rateLimit)
	}
	v.NonNegative(section+".rateBurst", burst)
}

func positiveDuration(v *validate.Validator, field string, d time.Duration) {
	if d <= 0 {
		v.AddError(field, "duration must be positive", d.String())
	}
}

func nonNegativeDuration(v *validate.Validator, field string, d time.Duration) {
	if d < 0 {
		v.AddError(field, "duration cannot be negative", d.String())
	}
}
