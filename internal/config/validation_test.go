// SPDX-License-Identifier: MIT

package config

import (
	"strings"
	"testing"
	"time"
)

// validConfig returns a fully resolved configuration that passes Validate.
func validConfig(t *testing.T) AppConfig {
	t.Helper()
	l := NewLoader("", "test")
	var cfg AppConfig
	l.setDefaults(&cfg)
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestValidateDefaults(t *testing.T) {
	cfg := validConfig(t)
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"bad log level", func(c *AppConfig) { c.LogLevel = "verbose" }, "logLevel"},
		{"listen addr without port", func(c *AppConfig) { c.ListenAddr = "localhost" }, "listenAddr"},
		{"listen port out of range", func(c *AppConfig) { c.ListenAddr = "127.0.0.1:70000" }, "listenAddr"},
		{"listen port not numeric", func(c *AppConfig) { c.ListenAddr = "127.0.0.1:http" }, "listenAddr"},
		{"bad engine scheme", func(c *AppConfig) { c.Engine.BaseURL = "ftp://127.0.0.1" }, "engine.baseUrl"},
		{"empty engine url", func(c *AppConfig) { c.Engine.BaseURL = "" }, "engine.baseUrl"},
		{"engine retries out of range", func(c *AppConfig) { c.Engine.Retries = 20 }, "engine.retries"},
		{"engine backoff above max", func(c *AppConfig) {
			c.Engine.Backoff = 5 * time.Second
			c.Engine.MaxBackoff = time.Second
		}, "engine.maxBackoff"},
		{"negative engine rate limit", func(c *AppConfig) { c.Engine.RateLimit = -1 }, "engine.rateLimit"},
		{"empty hosting url", func(c *AppConfig) { c.Hosting.BaseURL = "" }, "hosting.baseUrl"},
		{"zero hosting timeout", func(c *AppConfig) { c.Hosting.Timeout = 0 }, "hosting.timeout"},
		{"missing recordings dir", func(c *AppConfig) { c.Library.RecordingsDir = "/nonexistent/recordings" }, "library.recordingsDir"},
		{"negative max depth", func(c *AppConfig) { c.Library.MaxDepth = -1 }, "library.maxDepth"},
		{"negative min size", func(c *AppConfig) { c.Library.MinSizeBytes = -1 }, "library.minSizeBytes"},
		{"negative stable window", func(c *AppConfig) { c.Library.StableWindow = -time.Second }, "library.stableWindow"},
		{"bad tier", func(c *AppConfig) { c.Session.Tier = "platinum" }, "session.tier"},
		{"zero cancel timeout", func(c *AppConfig) { c.Session.CancelTimeout = 0 }, "session.cancelTimeout"},
		{"negative reconnect delay", func(c *AppConfig) { c.Session.ReconnectDelay = -time.Second }, "session.reconnectDelay"},
		{"zero stream failure limit", func(c *AppConfig) { c.Session.MaxStreamFailures = 0 }, "session.maxStreamFailures"},
		{"zero poll interval", func(c *AppConfig) { c.Session.PollInterval = 0 }, "session.pollInterval"},
		{"zero poll failure budget", func(c *AppConfig) { c.Session.PollFailureBudget = 0 }, "session.pollFailureBudget"},
		{"zero rpm while enabled", func(c *AppConfig) { c.RateLimitRPM = 0 }, "api.rateLimit.rpm"},
		{"zero watch timeout", func(c *AppConfig) { c.WatchTimeout = 0 }, "api.watchTimeout"},
		{"negative redis db", func(c *AppConfig) { c.Cache.RedisDB = -1 }, "cache.redisDb"},
		{"bad exporter type", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.ExporterType = "stdout"
		}, "telemetry.exporterType"},
		{"empty telemetry endpoint", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = ""
		}, "telemetry.endpoint"},
		{"sampling rate above one", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.SamplingRate = 1.5
		}, "telemetry.samplingRate"},
		{"negative sampling rate", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.SamplingRate = -0.1
		}, "telemetry.samplingRate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention field %q", err.Error(), tt.field)
			}
		})
	}
}

func TestValidateSetupMode(t *testing.T) {
	// An empty recordings dir is allowed: the daemon starts without
	// library scanning.
	cfg := validConfig(t)
	cfg.Library.RecordingsDir = ""
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRecordingsDir(t *testing.T) {
	cfg := validConfig(t)
	cfg.Library.RecordingsDir = t.TempDir()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateSkipsTelemetryWhenDisabled(t *testing.T) {
	cfg := validConfig(t)
	cfg.Telemetry.Enabled = false
	cfg.Telemetry.ExporterType = "stdout"
	cfg.Telemetry.Endpoint = ""
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateSkipsRPMWhenRateLimitDisabled(t *testing.T) {
	cfg := validConfig(t)
	cfg.RateLimitEnabled = false
	cfg.RateLimitRPM = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.LogLevel = "verbose"
	cfg.Session.Tier = "platinum"
	cfg.Engine.BaseURL = "ftp://127.0.0.1"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, field := range []string{"logLevel", "session.tier", "engine.baseUrl"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention field %q", err.Error(), field)
		}
	}
}
