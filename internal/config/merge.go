// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults work out of the box against a local engine sidecar. The API
// binds to loopback because request bodies carry local filesystem paths.
const (
	DefaultListenAddr = "127.0.0.1:8080"
	DefaultEngineURL  = "http://127.0.0.1:8750"
	DefaultHostingURL = "https://hosting.clipforge.dev"
	DefaultDataDir    = "./data"

	DefaultRateLimitRPM   = 240
	DefaultWatchTimeout   = 25 * time.Second
	DefaultRescanInterval = time.Hour
)

// setDefaults sets default values for configuration.
func (l *Loader) setDefaults(cfg *AppConfig) {
	cfg.DataDir = DefaultDataDir
	cfg.LogLevel = "info"
	cfg.ListenAddr = DefaultListenAddr

	cfg.RateLimitEnabled = true
	cfg.RateLimitRPM = DefaultRateLimitRPM
	cfg.WatchTimeout = DefaultWatchTimeout

	// Client defaults mirror the engine/hosting package constants so the
	// resolved config is self-describing.
	cfg.Engine = EngineSettings{
		BaseURL:    DefaultEngineURL,
		Timeout:    10 * time.Second,
		Retries:    2,
		Backoff:    200 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
		RateLimit:  10,
		RateBurst:  20,
	}
	cfg.Hosting = HostingSettings{
		BaseURL:    DefaultHostingURL,
		Timeout:    15 * time.Second,
		Retries:    2,
		Backoff:    200 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
		RateLimit:  5,
		RateBurst:  10,
	}

	// Library scan tuning defers to the library package defaults, only
	// the rescan cadence is owned here.
	cfg.Library = LibrarySettings{
		RescanInterval: DefaultRescanInterval,
	}

	cfg.Session = SessionSettings{
		Tier:              "free",
		CancelTimeout:     30 * time.Second,
		ReconnectDelay:    time.Second,
		MaxStreamFailures: 5,
		PollInterval:      time.Second,
		PollFailureBudget: 30 * time.Second,
	}

	cfg.Telemetry = TelemetrySettings{
		Enabled:      false,
		ExporterType: "grpc",
		Endpoint:     "localhost:4317",
		Environment:  "production",
		SamplingRate: 1.0,
	}
}

// mergeFileConfig merges file configuration into the resolved config.
func (l *Loader) mergeFileConfig(dst *AppConfig, src *FileConfig) error {
	l.mergeFileCore(dst, src)
	if err := l.mergeFileAPI(dst, src); err != nil {
		return err
	}
	if err := l.mergeFileEngine(dst, src); err != nil {
		return err
	}
	if err := l.mergeFileHosting(dst, src); err != nil {
		return err
	}
	if err := l.mergeFileLibrary(dst, src); err != nil {
		return err
	}
	if err := l.mergeFileSession(dst, src); err != nil {
		return err
	}
	l.mergeFileCache(dst, src)
	l.mergeFileTelemetry(dst, src)
	return nil
}

func (l *Loader) mergeFileCore(dst *AppConfig, src *FileConfig) {
	if src.DataDir != "" {
		dst.DataDir = expandEnv(src.DataDir)
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.ListenAddr != "" {
		dst.ListenAddr = src.ListenAddr
	}
}

func (l *Loader) mergeFileAPI(dst *AppConfig, src *FileConfig) error {
	// Rate limit - pointer types allow explicit false/0 from YAML
	if src.API.RateLimit.Enabled != nil {
		dst.RateLimitEnabled = *src.API.RateLimit.Enabled
	}
	if src.API.RateLimit.RPM != nil {
		dst.RateLimitRPM = *src.API.RateLimit.RPM
	}
	return setFileDuration(&dst.WatchTimeout, "api.watchTimeout", src.API.WatchTimeout)
}

func (l *Loader) mergeFileEngine(dst *AppConfig, src *FileConfig) error {
	if src.Engine.BaseURL != "" {
		dst.Engine.BaseURL = src.Engine.BaseURL
	}
	if err := setFileDuration(&dst.Engine.Timeout, "engine.timeout", src.Engine.Timeout); err != nil {
		return err
	}
	if err := setFileDuration(&dst.Engine.ResponseHeaderTimeout, "engine.responseHeaderTimeout", src.Engine.ResponseHeaderTimeout); err != nil {
		return err
	}
	if src.Engine.Retries != nil {
		dst.Engine.Retries = *src.Engine.Retries
	}
	if err := setFileDuration(&dst.Engine.Backoff, "engine.backoff", src.Engine.Backoff); err != nil {
		return err
	}
	if err := setFileDuration(&dst.Engine.MaxBackoff, "engine.maxBackoff", src.Engine.MaxBackoff); err != nil {
		return err
	}
	if src.Engine.RateLimit != nil {
		dst.Engine.RateLimit = *src.Engine.RateLimit
	}
	if src.Engine.RateBurst != nil {
		dst.Engine.RateBurst = *src.Engine.RateBurst
	}
	return nil
}

func (l *Loader) mergeFileHosting(dst *AppConfig, src *FileConfig) error {
	if src.Hosting.BaseURL != "" {
		dst.Hosting.BaseURL = src.Hosting.BaseURL
	}
	if err := setFileDuration(&dst.Hosting.Timeout, "hosting.timeout", src.Hosting.Timeout); err != nil {
		return err
	}
	if err := setFileDuration(&dst.Hosting.ResponseHeaderTimeout, "hosting.responseHeaderTimeout", src.Hosting.ResponseHeaderTimeout); err != nil {
		return err
	}
	if src.Hosting.Retries != nil {
		dst.Hosting.Retries = *src.Hosting.Retries
	}
	if err := setFileDuration(&dst.Hosting.Backoff, "hosting.backoff", src.Hosting.Backoff); err != nil {
		return err
	}
	if err := setFileDuration(&dst.Hosting.MaxBackoff, "hosting.maxBackoff", src.Hosting.MaxBackoff); err != nil {
		return err
	}
	if src.Hosting.RateLimit != nil {
		dst.Hosting.RateLimit = *src.Hosting.RateLimit
	}
	if src.Hosting.RateBurst != nil {
		dst.Hosting.RateBurst = *src.Hosting.RateBurst
	}
	if src.Hosting.TokenCachePath != "" {
		dst.Hosting.TokenCachePath = expandEnv(src.Hosting.TokenCachePath)
	}
	return nil
}

func (l *Loader) mergeFileLibrary(dst *AppConfig, src *FileConfig) error {
	if src.Library.RecordingsDir != "" {
		dst.Library.RecordingsDir = expandEnv(src.Library.RecordingsDir)
	}
	if src.Library.MaxDepth != nil {
		dst.Library.MaxDepth = *src.Library.MaxDepth
	}
	if len(src.Library.IncludeExt) > 0 {
		dst.Library.IncludeExt = src.Library.IncludeExt
	}
	if err := setFileDuration(&dst.Library.StableWindow, "library.stableWindow", src.Library.StableWindow); err != nil {
		return err
	}
	if src.Library.MinSizeBytes != nil {
		dst.Library.MinSizeBytes = *src.Library.MinSizeBytes
	}
	if err := setFileDuration(&dst.Library.WatchDebounce, "library.watchDebounce", src.Library.WatchDebounce); err != nil {
		return err
	}
	return setFileDuration(&dst.Library.RescanInterval, "library.rescanInterval", src.Library.RescanInterval)
}

func (l *Loader) mergeFileSession(dst *AppConfig, src *FileConfig) error {
	if src.Session.Tier != "" {
		dst.Session.Tier = src.Session.Tier
	}
	if err := setFileDuration(&dst.Session.CancelTimeout, "session.cancelTimeout", src.Session.CancelTimeout); err != nil {
		return err
	}
	if err := setFileDuration(&dst.Session.ReconnectDelay, "session.reconnectDelay", src.Session.ReconnectDelay); err != nil {
		return err
	}
	if src.Session.MaxStreamFailures != nil {
		dst.Session.MaxStreamFailures = *src.Session.MaxStreamFailures
	}
	if err := setFileDuration(&dst.Session.PollInterval, "session.pollInterval", src.Session.PollInterval); err != nil {
		return err
	}
	return setFileDuration(&dst.Session.PollFailureBudget, "session.pollFailureBudget", src.Session.PollFailureBudget)
}

func (l *Loader) mergeFileCache(dst *AppConfig, src *FileConfig) {
	if src.Cache.RedisAddr != "" {
		dst.Cache.RedisAddr = src.Cache.RedisAddr
	}
	if src.Cache.RedisPassword != "" {
		dst.Cache.RedisPassword = expandEnv(src.Cache.RedisPassword)
	}
	if src.Cache.RedisDB != nil {
		dst.Cache.RedisDB = *src.Cache.RedisDB
	}
}

func (l *Loader) mergeFileTelemetry(dst *AppConfig, src *FileConfig) {
	if src.Telemetry.Enabled != nil {
		dst.Telemetry.Enabled = *src.Telemetry.Enabled
	}
	if src.Telemetry.ExporterType != "" {
		dst.Telemetry.ExporterType = src.Telemetry.ExporterType
	}
	if src.Telemetry.Endpoint != "" {
		dst.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
	if src.Telemetry.Environment != "" {
		dst.Telemetry.Environment = src.Telemetry.Environment
	}
	if src.Telemetry.SamplingRate != nil {
		dst.Telemetry.SamplingRate = *src.Telemetry.SamplingRate
	}
}

// mergeEnvConfig merges environment variables into the resolved config.
// ENV variables have the highest precedence.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	l.mergeEnvCore(cfg)
	l.mergeEnvAPI(cfg)
	l.mergeEnvEngine(cfg)
	l.mergeEnvHosting(cfg)
	l.mergeEnvLibrary(cfg)
	l.mergeEnvSession(cfg)
	l.mergeEnvCache(cfg)
	l.mergeEnvTelemetry(cfg)
}

func (l *Loader) mergeEnvCore(cfg *AppConfig) {
	cfg.DataDir = ParseString("CLIPFORGE_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = ParseString("CLIPFORGE_LOG_LEVEL", cfg.LogLevel)
	cfg.ListenAddr = ParseString("CLIPFORGE_LISTEN", cfg.ListenAddr)
}

func (l *Loader) mergeEnvAPI(cfg *AppConfig) {
	cfg.RateLimitEnabled = ParseBool("CLIPFORGE_RATE_LIMIT_ENABLED", cfg.RateLimitEnabled)
	cfg.RateLimitRPM = ParseInt("CLIPFORGE_RATE_LIMIT_RPM", cfg.RateLimitRPM)
	cfg.WatchTimeout = ParseDuration("CLIPFORGE_WATCH_TIMEOUT", cfg.WatchTimeout)
}

func (l *Loader) mergeEnvEngine(cfg *AppConfig) {
	cfg.Engine.BaseURL = ParseString("CLIPFORGE_ENGINE_URL", cfg.Engine.BaseURL)
	cfg.Engine.Timeout = ParseDuration("CLIPFORGE_ENGINE_TIMEOUT", cfg.Engine.Timeout)
	cfg.Engine.ResponseHeaderTimeout = ParseDuration("CLIPFORGE_ENGINE_RESPONSE_HEADER_TIMEOUT", cfg.Engine.ResponseHeaderTimeout)
	cfg.Engine.Retries = ParseInt("CLIPFORGE_ENGINE_RETRIES", cfg.Engine.Retries)
	cfg.Engine.Backoff = ParseDuration("CLIPFORGE_ENGINE_BACKOFF", cfg.Engine.Backoff)
	cfg.Engine.MaxBackoff = ParseDuration("CLIPFORGE_ENGINE_MAX_BACKOFF", cfg.Engine.MaxBackoff)
	cfg.Engine.RateLimit = ParseFloat("CLIPFORGE_ENGINE_RATE_LIMIT", cfg.Engine.RateLimit)
	cfg.Engine.RateBurst = ParseInt("CLIPFORGE_ENGINE_RATE_BURST", cfg.Engine.RateBurst)
}

func (l *Loader) mergeEnvHosting(cfg *AppConfig) {
	cfg.Hosting.BaseURL = ParseString("CLIPFORGE_HOSTING_URL", cfg.Hosting.BaseURL)
	cfg.Hosting.Timeout = ParseDuration("CLIPFORGE_HOSTING_TIMEOUT", cfg.Hosting.Timeout)
	cfg.Hosting.ResponseHeaderTimeout = ParseDuration("CLIPFORGE_HOSTING_RESPONSE_HEADER_TIMEOUT", cfg.Hosting.ResponseHeaderTimeout)
	cfg.Hosting.Retries = ParseInt("CLIPFORGE_HOSTING_RETRIES", cfg.Hosting.Retries)
	cfg.Hosting.Backoff = ParseDuration("CLIPFORGE_HOSTING_BACKOFF", cfg.Hosting.Backoff)
	cfg.Hosting.MaxBackoff = ParseDuration("CLIPFORGE_HOSTING_MAX_BACKOFF", cfg.Hosting.MaxBackoff)
	cfg.Hosting.RateLimit = ParseFloat("CLIPFORGE_HOSTING_RATE_LIMIT", cfg.Hosting.RateLimit)
	cfg.Hosting.RateBurst = ParseInt("CLIPFORGE_HOSTING_RATE_BURST", cfg.Hosting.RateBurst)
	cfg.Hosting.TokenCachePath = ParseString("CLIPFORGE_HOSTING_TOKEN_CACHE", cfg.Hosting.TokenCachePath)
}

func (l *Loader) mergeEnvLibrary(cfg *AppConfig) {
	cfg.Library.RecordingsDir = ParseString("CLIPFORGE_RECORDINGS_DIR", cfg.Library.RecordingsDir)
	cfg.Library.MaxDepth = ParseInt("CLIPFORGE_LIBRARY_MAX_DEPTH", cfg.Library.MaxDepth)
	cfg.Library.IncludeExt = parseCommaSeparated(ParseString("CLIPFORGE_LIBRARY_INCLUDE_EXT", ""), cfg.Library.IncludeExt)
	cfg.Library.StableWindow = ParseDuration("CLIPFORGE_LIBRARY_STABLE_WINDOW", cfg.Library.StableWindow)
	cfg.Library.MinSizeBytes = int64(ParseInt("CLIPFORGE_LIBRARY_MIN_SIZE_BYTES", int(cfg.Library.MinSizeBytes)))
	cfg.Library.WatchDebounce = ParseDuration("CLIPFORGE_LIBRARY_WATCH_DEBOUNCE", cfg.Library.WatchDebounce)
	cfg.Library.RescanInterval = ParseDuration("CLIPFORGE_LIBRARY_RESCAN_INTERVAL", cfg.Library.RescanInterval)
}

func (l *Loader) mergeEnvSession(cfg *AppConfig) {
	cfg.Session.Tier = ParseString("CLIPFORGE_TIER", cfg.Session.Tier)
	cfg.Session.CancelTimeout = ParseDuration("CLIPFORGE_CANCEL_TIMEOUT", cfg.Session.CancelTimeout)
	cfg.Session.ReconnectDelay = ParseDuration("CLIPFORGE_RECONNECT_DELAY", cfg.Session.ReconnectDelay)
	cfg.Session.MaxStreamFailures = ParseInt("CLIPFORGE_MAX_STREAM_FAILURES", cfg.Session.MaxStreamFailures)
	cfg.Session.PollInterval = ParseDuration("CLIPFORGE_UPLOAD_POLL_INTERVAL", cfg.Session.PollInterval)
	cfg.Session.PollFailureBudget = ParseDuration("CLIPFORGE_UPLOAD_POLL_FAILURE_BUDGET", cfg.Session.PollFailureBudget)
}

func (l *Loader) mergeEnvCache(cfg *AppConfig) {
	cfg.Cache.RedisAddr = ParseString("CLIPFORGE_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = ParseString("CLIPFORGE_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = ParseInt("CLIPFORGE_REDIS_DB", cfg.Cache.RedisDB)
}

func (l *Loader) mergeEnvTelemetry(cfg *AppConfig) {
	cfg.Telemetry.Enabled = ParseBool("CLIPFORGE_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = ParseString("CLIPFORGE_OTEL_EXPORTER", cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = ParseString("CLIPFORGE_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Environment = ParseString("CLIPFORGE_OTEL_ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.SamplingRate = ParseFloat("CLIPFORGE_OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

// setFileDuration parses a duration string from the config file into dst.
// Empty strings keep the current value.
func setFileDuration(dst *time.Duration, field, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	*dst = d
	return nil
}

// parseCommaSeparated splits a comma separated list, trimming whitespace.
// Empty input keeps the defaults.
func parseCommaSeparated(raw string, defaults []string) []string {
	if strings.TrimSpace(raw) == "" {
		return defaults
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return defaults
	}
	return out
}
