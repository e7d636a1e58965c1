// SPDX-License-Identifier: MIT

// Command daemon runs the clipforge composition daemon: the localhost API
// for the game client UI, the clip library catalog, and the bridges to the
// composition engine and the hosting service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/clipforge/clipforge/internal/api"
	"github.com/clipforge/clipforge/internal/cache"
	composestore "github.com/clipforge/clipforge/internal/compose/store"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/engine"
	"github.com/clipforge/clipforge/internal/exports"
	"github.com/clipforge/clipforge/internal/hosting"
	"github.com/clipforge/clipforge/internal/library"
	"github.com/clipforge/clipforge/internal/log"
	"github.com/clipforge/clipforge/internal/session"
	"github.com/clipforge/clipforge/internal/telemetry"
	"github.com/clipforge/clipforge/internal/types"
	"github.com/clipforge/clipforge/internal/version"
)

const shutdownGrace = 10 * time.Second

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Safe defaults until the real configuration is loaded.
	log.Configure(log.Config{
		Level:   "info",
		Service: "clipforge",
		Version: version.Version,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path resolution: explicit --config wins, otherwise a
	// config.yaml inside the data dir is picked up so UI-saved settings
	// persist across restarts.
	explicitPath := strings.TrimSpace(*configPath)
	effectivePath := explicitPath
	if effectivePath == "" {
		dataDir := strings.TrimSpace(config.ParseString("CLIPFORGE_DATA_DIR", config.DefaultDataDir))
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectivePath = autoPath
		}
	}

	cfg, err := config.Load(effectivePath, version.Version)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectivePath).
			Msg("failed to load configuration")
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "clipforge",
		Version: cfg.Version,
	})

	switch {
	case explicitPath != "":
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", explicitPath).
			Msg("loaded configuration from file")
	case effectivePath != "":
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file(auto)").
			Str("path", effectivePath).
			Msg("loaded configuration from file")
	default:
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := runDaemon(ctx, cfg, logger); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon failed")
	}
	logger.Info().Msg("daemon stopped")
}

// runDaemon owns every long-lived resource so shutdown runs through defers
// even on failure paths.
func runDaemon(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) error {
	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "clipforge",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := tel.Shutdown(shutCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	jobs, err := composestore.Open(filepath.Join(cfg.DataDir, "jobs"))
	if err != nil {
		return fmt.Errorf("opening job store: %w", err)
	}
	defer func() {
		if err := jobs.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing job store failed")
		}
	}()

	libStore, err := library.NewStore(filepath.Join(cfg.DataDir, "library.db"))
	if err != nil {
		return fmt.Errorf("opening library store: %w", err)
	}
	defer func() {
		if err := libStore.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing library store failed")
		}
	}()

	expStore, err := exports.NewStore(filepath.Join(cfg.DataDir, "exports.db"))
	if err != nil {
		return fmt.Errorf("opening exports store: %w", err)
	}
	defer func() {
		if err := expStore.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing exports store failed")
		}
	}()

	// A crash mid-composition must not leave a stuck active job behind.
	swept, err := jobs.SweepNonTerminal(ctx, "daemon restarted during composition")
	if err != nil {
		return fmt.Errorf("sweeping stale jobs: %w", err)
	}
	if swept > 0 {
		logger.Warn().Int("count", swept).Msg("failed non-terminal jobs from a previous run")
	}

	engineClient := engine.NewWithOptions(cfg.Engine.BaseURL, engine.Options{
		Timeout:               cfg.Engine.Timeout,
		ResponseHeaderTimeout: cfg.Engine.ResponseHeaderTimeout,
		MaxRetries:            cfg.Engine.Retries,
		Backoff:               cfg.Engine.Backoff,
		MaxBackoff:            cfg.Engine.MaxBackoff,
		UserAgent:             "clipforge/" + cfg.Version,
		RateLimit:             rate.Limit(cfg.Engine.RateLimit),
		RateLimitBurst:        cfg.Engine.RateBurst,
	})

	hostingClient, err := hosting.NewWithOptions(cfg.Hosting.BaseURL, hosting.Options{
		Timeout:               cfg.Hosting.Timeout,
		ResponseHeaderTimeout: cfg.Hosting.ResponseHeaderTimeout,
		MaxRetries:            cfg.Hosting.Retries,
		Backoff:               cfg.Hosting.Backoff,
		MaxBackoff:            cfg.Hosting.MaxBackoff,
		UserAgent:             "clipforge/" + cfg.Version,
		RateLimit:             rate.Limit(cfg.Hosting.RateLimit),
		RateLimitBurst:        cfg.Hosting.RateBurst,
		TokenCachePath:        cfg.Hosting.TokenCachePath,
	})
	if err != nil {
		return fmt.Errorf("hosting client: %w", err)
	}

	var quotaCache cache.Cache
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, log.WithComponent("cache"))
		if err != nil {
			return fmt.Errorf("redis cache: %w", err)
		}
		defer func() {
			if err := rc.Close(); err != nil {
				logger.Warn().Err(err).Msg("closing redis cache failed")
			}
		}()
		quotaCache = rc
		logger.Info().Str("addr", cfg.Cache.RedisAddr).Msg("quota cache backed by redis")
	} else {
		quotaCache = cache.NewMemoryCache(5 * time.Minute)
	}

	sessions := session.NewManager(session.Deps{
		Engine:  engineClient,
		Hosting: hostingClient,
		Jobs:    jobs,
		Results: expStore,
		History: expStore,
		Cache:   quotaCache,
	}, session.Config{
		Tier:              types.Tier(cfg.Session.Tier),
		CancelTimeout:     cfg.Session.CancelTimeout,
		ReconnectDelay:    cfg.Session.ReconnectDelay,
		MaxStreamFailures: cfg.Session.MaxStreamFailures,
		PollInterval:      cfg.Session.PollInterval,
		PollFailureBudget: cfg.Session.PollFailureBudget,
	})
	defer sessions.Close()

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = "clipforge"
	}
	server := api.New(api.Config{
		Version:          cfg.Version,
		RateLimitEnabled: cfg.RateLimitEnabled,
		RateLimitRPM:     cfg.RateLimitRPM,
		TracingService:   tracingService,
		WatchTimeout:     cfg.WatchTimeout,
	}, api.Deps{
		Sessions: sessions,
		Library:  libStore,
		Exports:  expStore,
		Engine:   engineClient,
		Hosting:  hostingClient,
	})

	var scanner *library.Scanner
	if cfg.Library.RecordingsDir != "" {
		scanner = library.NewScanner(libStore, library.RootConfig{
			Path:         cfg.Library.RecordingsDir,
			MaxDepth:     cfg.Library.MaxDepth,
			IncludeExt:   cfg.Library.IncludeExt,
			StableWindow: cfg.Library.StableWindow,
			MinSizeBytes: cfg.Library.MinSizeBytes,
		})
		if res, err := scanner.ScanRoot(ctx); err != nil {
			logger.Error().Err(err).Msg("initial library scan failed")
		} else {
			logger.Info().
				Int("clips", res.TotalScanned).
				Int("skipped", res.ItemsSkipped).
				Int("pruned", res.ItemsPruned).
				Msg("initial library scan complete")
		}
	} else {
		logger.Warn().Msg("no recordings directory configured; library scanning disabled")
	}

	// Watch requests long-poll and uploads stream large bodies, so the
	// server carries no global read/write deadlines.
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("event", "startup").
			Str("version", cfg.Version).
			Str("addr", cfg.ListenAddr).
			Str("engine", cfg.Engine.BaseURL).
			Str("data_dir", cfg.DataDir).
			Msg("starting clipforge daemon")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	if scanner != nil {
		watcher := library.NewWatcher(scanner, log.WithComponent("watcher"), cfg.Library.WatchDebounce)
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil {
				return fmt.Errorf("library watcher: %w", err)
			}
			return nil
		})
		if cfg.Library.RescanInterval > 0 {
			g.Go(func() error {
				rescanLoop(gctx, scanner, cfg.Library.RescanInterval, logger)
				return nil
			})
		}
	}
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// rescanLoop runs full catalog rescans at a fixed cadence, catching files
// the watcher missed (network shares, moves outside fsnotify's view).
func rescanLoop(ctx context.Context, sc *library.Scanner, interval time.Duration, logger zerolog.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := sc.ScanRoot(ctx); err != nil {
				logger.Warn().Err(err).Msg("periodic library rescan failed")
			}
		}
	}
}
