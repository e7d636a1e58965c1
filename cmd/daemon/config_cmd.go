// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/version"
)

func runConfigCLI(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage()
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:])
	case "dump":
		return runConfigDump(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage()
		return 2
	}
}

func printConfigUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  clipforge config validate [--file|-f config.yaml]")
	fmt.Fprintln(os.Stderr, "  clipforge config dump --effective [--file|-f config.yaml] [--format=yaml|json]")
}

func resolveDefaultConfigPath() string {
	dataDir := strings.TrimSpace(os.Getenv("CLIPFORGE_DATA_DIR"))
	if dataDir == "" {
		dataDir = config.DefaultDataDir
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

func runConfigValidate(args []string) int {
	fs := flag.NewFlagSet("clipforge config validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := strings.TrimSpace(file)
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}
	if configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required (no default config.yaml found in $CLIPFORGE_DATA_DIR)")
		return 2
	}

	if _, err := config.Load(configPath, version.Version); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error in %s:\n  %v\n", configPath, err)
		return 1
	}

	fmt.Printf("%s is valid\n", configPath)
	return 0
}

func runConfigDump(args []string) int {
	fs := flag.NewFlagSet("clipforge config dump", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var file string
	var format string
	var effective bool

	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	fs.BoolVar(&effective, "effective", false, "dump effective configuration (defaults + file + env)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !effective {
		fmt.Fprintln(os.Stderr, "Error: --effective is required")
		return 2
	}

	// The effective dump works without a file: defaults + env alone are a
	// valid configuration.
	configPath := strings.TrimSpace(file)
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}

	cfg, err := config.Load(configPath, version.Version)
	if err != nil {
		if configPath == "" {
			fmt.Fprintf(os.Stderr, "Configuration error:\n  %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Configuration error in %s:\n  %v\n", configPath, err)
		}
		return 1
	}

	fileCfg := fileConfigFromAppConfig(cfg)
	redactFileConfigSecrets(&fileCfg)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(fileCfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_ = enc.Close()
		return 0
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(fileCfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unsupported format: %s (use yaml or json)\n", format)
		return 2
	}
}

// fileConfigFromAppConfig maps the resolved configuration back into the
// file schema so dumps round-trip through `--config`.
func fileConfigFromAppConfig(cfg config.AppConfig) config.FileConfig {
	rateLimitEnabled := cfg.RateLimitEnabled
	rateLimitRPM := cfg.RateLimitRPM

	engineRetries := cfg.Engine.Retries
	engineRateLimit := cfg.Engine.RateLimit
	engineRateBurst := cfg.Engine.RateBurst

	hostingRetries := cfg.Hosting.Retries
	hostingRateLimit := cfg.Hosting.RateLimit
	hostingRateBurst := cfg.Hosting.RateBurst

	maxDepth := cfg.Library.MaxDepth
	minSizeBytes := cfg.Library.MinSizeBytes

	maxStreamFailures := cfg.Session.MaxStreamFailures

	redisDB := cfg.Cache.RedisDB

	telemetryEnabled := cfg.Telemetry.Enabled
	samplingRate := cfg.Telemetry.SamplingRate

	return config.FileConfig{
		DataDir:    cfg.DataDir,
		LogLevel:   cfg.LogLevel,
		ListenAddr: cfg.ListenAddr,
		API: config.APIFileConfig{
			RateLimit: config.RateLimitFileConfig{
				Enabled: &rateLimitEnabled,
				RPM:     &rateLimitRPM,
			},
			WatchTimeout: cfg.WatchTimeout.String(),
		},
		Engine: config.EngineFileConfig{
			BaseURL:               cfg.Engine.BaseURL,
			Timeout:               cfg.Engine.Timeout.String(),
			ResponseHeaderTimeout: cfg.Engine.ResponseHeaderTimeout.String(),
			Retries:               &engineRetries,
			Backoff:               cfg.Engine.Backoff.String(),
			MaxBackoff:            cfg.Engine.MaxBackoff.String(),
			RateLimit:             &engineRateLimit,
			RateBurst:             &engineRateBurst,
		},
		Hosting: config.HostingFileConfig{
			BaseURL:               cfg.Hosting.BaseURL,
			Timeout:               cfg.Hosting.Timeout.String(),
			ResponseHeaderTimeout: cfg.Hosting.ResponseHeaderTimeout.String(),
			Retries:               &hostingRetries,
			Backoff:               cfg.Hosting.Backoff.String(),
			MaxBackoff:            cfg.Hosting.MaxBackoff.String(),
			RateLimit:             &hostingRateLimit,
			RateBurst:             &hostingRateBurst,
			TokenCachePath:        cfg.Hosting.TokenCachePath,
		},
		Library: config.LibraryFileConfig{
			RecordingsDir:  cfg.Library.RecordingsDir,
			MaxDepth:       &maxDepth,
			IncludeExt:     cfg.Library.IncludeExt,
			StableWindow:   cfg.Library.StableWindow.String(),
			MinSizeBytes:   &minSizeBytes,
			WatchDebounce:  cfg.Library.WatchDebounce.String(),
			RescanInterval: cfg.Library.RescanInterval.String(),
		},
		Session: config.SessionFileConfig{
			Tier:              cfg.Session.Tier,
			CancelTimeout:     cfg.Session.CancelTimeout.String(),
			ReconnectDelay:    cfg.Session.ReconnectDelay.String(),
			MaxStreamFailures: &maxStreamFailures,
			PollInterval:      cfg.Session.PollInterval.String(),
			PollFailureBudget: cfg.Session.PollFailureBudget.String(),
		},
		Cache: config.CacheFileConfig{
			RedisAddr:     cfg.Cache.RedisAddr,
			RedisPassword: cfg.Cache.RedisPassword,
			RedisDB:       &redisDB,
		},
		Telemetry: config.TelemetryFileConfig{
			Enabled:      &telemetryEnabled,
			ExporterType: cfg.Telemetry.ExporterType,
			Endpoint:     cfg.Telemetry.Endpoint,
			Environment:  cfg.Telemetry.Environment,
			SamplingRate: &samplingRate,
		},
	}
}

func redactFileConfigSecrets(fc *config.FileConfig) {
	if fc == nil {
		return
	}
	if fc.Cache.RedisPassword != "" {
		fc.Cache.RedisPassword = "***"
	}
}
