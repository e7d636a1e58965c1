// SPDX-License-Identifier: MIT

package config

import "time"

// AppConfig holds the resolved runtime configuration for the daemon.
type AppConfig struct {
	Version  string
	DataDir  string
	LogLevel string

	// ListenAddr is the HTTP API listen address. The API carries local
	// file paths, so the default binds to loopback only.
	ListenAddr string

	// API behaviour
	RateLimitEnabled bool
	RateLimitRPM     int
	WatchTimeout     time.Duration

	Engine    EngineSettings
	Hosting   HostingSettings
	Library   LibrarySettings
	Session   SessionSettings
	Cache     CacheSettings
	Telemetry TelemetrySettings
}

// EngineSettings configures the composition engine client.
type EngineSettings struct {
	BaseURL               string
	Timeout               time.Duration
	ResponseHeaderTimeout time.Duration
	Retries               int
	Backoff               time.Duration
	MaxBackoff            time.Duration
	RateLimit             float64 // requests per second, 0 = client default
	RateBurst             int
}

// HostingSettings configures the video hosting client.
type HostingSettings struct {
	BaseURL               string
	Timeout               time.Duration
	ResponseHeaderTimeout time.Duration
	Retries               int
	Backoff               time.Duration
	MaxBackoff            time.Duration
	RateLimit             float64
	RateBurst             int

	// TokenCachePath is where the OAuth token is persisted. Defaults to
	// a file under DataDir once DataDir is resolved.
	TokenCachePath string
}

// LibrarySettings configures the clip library scan. Zero values defer to
// the library package defaults.
type LibrarySettings struct {
	// RecordingsDir is the root the recorder writes clips into. Empty
	// disables library scanning (setup mode).
	RecordingsDir  string
	MaxDepth       int
	IncludeExt     []string
	StableWindow   time.Duration
	MinSizeBytes   int64
	WatchDebounce  time.Duration
	RescanInterval time.Duration // periodic full rescan, 0 disables
}

// SessionSettings configures per-session composition and upload behaviour.
type SessionSettings struct {
	Tier              string // "free" or "pro"
	CancelTimeout     time.Duration
	ReconnectDelay    time.Duration
	MaxStreamFailures int
	PollInterval      time.Duration
	PollFailureBudget time.Duration
}

// CacheSettings selects the quota snapshot cache backend. An empty
// RedisAddr keeps the in-memory cache.
type CacheSettings struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// TelemetrySettings configures OpenTelemetry tracing.
type TelemetrySettings struct {
	Enabled      bool
	ExporterType string // "grpc" or "http"
	Endpoint     string
	Environment  string
	SamplingRate float64
}

// FileConfig mirrors the YAML config file. Pointer fields distinguish
// "not set" from explicit zero values; durations are Go duration strings
// such as "10s".
type FileConfig struct {
	DataDir    string `yaml:"dataDir,omitempty"`
	LogLevel   string `yaml:"logLevel,omitempty"`
	ListenAddr string `yaml:"listenAddr,omitempty"`

	API       APIFileConfig       `yaml:"api,omitempty"`
	Engine    EngineFileConfig    `yaml:"engine,omitempty"`
	Hosting   HostingFileConfig   `yaml:"hosting,omitempty"`
	Library   LibraryFileConfig   `yaml:"library,omitempty"`
	Session   SessionFileConfig   `yaml:"session,omitempty"`
	Cache     CacheFileConfig     `yaml:"cache,omitempty"`
	Telemetry TelemetryFileConfig `yaml:"telemetry,omitempty"`
}

// APIFileConfig holds HTTP API tuning.
type APIFileConfig struct {
	RateLimit    RateLimitFileConfig `yaml:"rateLimit,omitempty"`
	WatchTimeout string              `yaml:"watchTimeout,omitempty"`
}

// RateLimitFileConfig holds rate limiting configuration.
// Uses a pointer for Enabled to distinguish "not set" from "explicitly disabled".
type RateLimitFileConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
	RPM     *int  `yaml:"rpm,omitempty"`
}

// EngineFileConfig holds composition engine client configuration.
type EngineFileConfig struct {
	BaseURL               string   `yaml:"baseUrl,omitempty"`
	Timeout               string   `yaml:"timeout,omitempty"`
	ResponseHeaderTimeout string   `yaml:"responseHeaderTimeout,omitempty"`
	Retries               *int     `yaml:"retries,omitempty"`
	Backoff               string   `yaml:"backoff,omitempty"`
	MaxBackoff            string   `yaml:"maxBackoff,omitempty"`
	RateLimit             *float64 `yaml:"rateLimit,omitempty"`
	RateBurst             *int     `yaml:"rateBurst,omitempty"`
}

// HostingFileConfig holds hosting client configuration.
type HostingFileConfig struct {
	BaseURL               string   `yaml:"baseUrl,omitempty"`
	Timeout               string   `yaml:"timeout,omitempty"`
	ResponseHeaderTimeout string   `yaml:"responseHeaderTimeout,omitempty"`
	Retries               *int     `yaml:"retries,omitempty"`
	Backoff               string   `yaml:"backoff,omitempty"`
	MaxBackoff            string   `yaml:"maxBackoff,omitempty"`
	RateLimit             *float64 `yaml:"rateLimit,omitempty"`
	RateBurst             *int     `yaml:"rateBurst,omitempty"`
	TokenCachePath        string   `yaml:"tokenCachePath,omitempty"`
}

// LibraryFileConfig holds clip library configuration.
type LibraryFileConfig struct {
	RecordingsDir  string   `yaml:"recordingsDir,omitempty"`
	MaxDepth       *int     `yaml:"maxDepth,omitempty"`
	IncludeExt     []string `yaml:"includeExt,omitempty"`
	StableWindow   string   `yaml:"stableWindow,omitempty"`
	MinSizeBytes   *int64   `yaml:"minSizeBytes,omitempty"`
	WatchDebounce  string   `yaml:"watchDebounce,omitempty"`
	RescanInterval string   `yaml:"rescanInterval,omitempty"`
}

// SessionFileConfig holds session behaviour configuration.
type SessionFileConfig struct {
	Tier              string `yaml:"tier,omitempty"`
	CancelTimeout     string `yaml:"cancelTimeout,omitempty"`
	ReconnectDelay    string `yaml:"reconnectDelay,omitempty"`
	MaxStreamFailures *int   `yaml:"maxStreamFailures,omitempty"`
	PollInterval      string `yaml:"pollInterval,omitempty"`
	PollFailureBudget string `yaml:"pollFailureBudget,omitempty"`
}

// CacheFileConfig holds quota cache configuration.
type CacheFileConfig struct {
	RedisAddr     string `yaml:"redisAddr,omitempty"`
	RedisPassword string `yaml:"redisPassword,omitempty"`
	RedisDB       *int   `yaml:"redisDb,omitempty"`
}

// TelemetryFileConfig holds tracing configuration.
type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	ExporterType string   `yaml:"exporterType,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}
