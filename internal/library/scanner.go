// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/log"
	"github.com/clipforge/clipforge/internal/metrics"
)

// DefaultStableWindow is how long a file must be unmodified before it is
// treated as a finished recording rather than one still being written.
const DefaultStableWindow = 10 * time.Second

// DefaultMinSizeBytes filters out placeholder and truncated files.
const DefaultMinSizeBytes = 64 * 1024

// Scanner walks the recordings directory and indexes clips into the catalog.
// The directory layout is one subdirectory per game, clip files inside it,
// each optionally accompanied by a "<file>.json" sidecar the recorder writes
// with event metadata.
type Scanner struct {
	store *Store
	cfg   RootConfig
}

// NewScanner creates a filesystem scanner over the configured root.
func NewScanner(store *Store, cfg RootConfig) *Scanner {
	if len(cfg.IncludeExt) == 0 {
		cfg.IncludeExt = DefaultIncludeExt
	}
	if cfg.StableWindow <= 0 {
		cfg.StableWindow = DefaultStableWindow
	}
	if cfg.MinSizeBytes <= 0 {
		cfg.MinSizeBytes = DefaultMinSizeBytes
	}
	return &Scanner{store: store, cfg: cfg}
}

// sidecar is the optional metadata file the recorder writes next to a clip.
type sidecar struct {
	EventID   string  `json:"event_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Thumbnail string  `json:"thumbnail"`
}

// ScanRoot performs a full scan. All upserts and the prune of vanished files
// happen in one transaction, so a failed scan leaves the previous catalog
// intact. Symlinks are resolved and confined to the root.
func (sc *Scanner) ScanRoot(ctx context.Context) (*ScanResult, error) {
	result := &ScanResult{
		Started:     time.Now(),
		FinalStatus: ScanStatusOK,
	}

	rootResolved, err := filepath.EvalSymlinks(sc.cfg.Path)
	if err != nil {
		result.Finished = time.Now()
		result.FinalStatus = ScanStatusFailed
		result.LastError = fmt.Sprintf("root path unresolvable: %v", err)
		_ = sc.store.UpdateScanState(ctx, ScanStatusFailed, result.Finished, 0)
		return result, fmt.Errorf("resolve root path: %w", err)
	}
	rootResolved = filepath.Clean(rootResolved)

	if err := sc.store.UpdateScanState(ctx, ScanStatusRunning, result.Started, 0); err != nil {
		result.Finished = time.Now()
		result.FinalStatus = ScanStatusFailed
		result.LastError = err.Error()
		return result, fmt.Errorf("mark scan running: %w", err)
	}

	tx, err := sc.store.BeginTx(ctx)
	if err != nil {
		result.Finished = time.Now()
		result.FinalStatus = ScanStatusFailed
		result.LastError = fmt.Sprintf("begin transaction: %v", err)
		_ = sc.store.UpdateScanState(ctx, ScanStatusFailed, result.Finished, 0)
		return result, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	scanTime := time.Now()
	err = filepath.WalkDir(sc.cfg.Path, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			result.FinalStatus = ScanStatusFailed
			result.LastError = "scan cancelled"
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			result.ErrorCount++
			logScanError("walk", walkErr, path)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			rel, err := filepath.Rel(sc.cfg.Path, path)
			if err != nil {
				result.ErrorCount++
				return nil
			}
			depth := strings.Count(rel, string(os.PathSeparator))
			if sc.cfg.MaxDepth > 0 && depth >= sc.cfg.MaxDepth {
				return fs.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if !isAllowedExtension(ext, sc.cfg.IncludeExt) {
			result.ItemsSkipped++
			return nil
		}

		// Resolve and confine: a symlinked clip must still land inside the
		// root after resolution.
		fileResolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			result.ItemsSkipped++
			logScanError("symlink", err, path)
			return nil
		}
		rel, err := filepath.Rel(rootResolved, fileResolved)
		if err != nil || strings.HasPrefix(rel, "..") {
			result.ErrorCount++
			logScanError("confinement", fmt.Errorf("path escape: %s", rel), path)
			return nil
		}

		// Clips live in per-game subdirectories; stray files at the root
		// have no game attribution and are skipped.
		segments := strings.Split(rel, string(os.PathSeparator))
		if len(segments) < 2 {
			result.ItemsSkipped++
			return nil
		}
		gameID := segments[0]

		info, err := os.Stat(fileResolved)
		if err != nil {
			result.ErrorCount++
			logScanError("stat", err, path)
			return nil
		}

		// A file still being written gets picked up on the next pass.
		if time.Since(info.ModTime()) < sc.cfg.StableWindow {
			result.ItemsSkipped++
			return nil
		}
		if info.Size() < sc.cfg.MinSizeBytes {
			result.ItemsSkipped++
			return nil
		}

		entry := sc.buildEntry(gameID, rel, fileResolved, d.Name(), info, scanTime)
		if err := sc.store.UpsertClip(ctx, tx, entry); err != nil {
			result.ErrorCount++
			logScanError("db", err, path)
			return nil
		}

		result.TotalScanned++
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		result.FinalStatus = ScanStatusFailed
		result.LastError = err.Error()
		result.Finished = time.Now()
		_ = sc.store.UpdateScanState(ctx, ScanStatusFailed, result.Finished, 0)
		return result, err
	}
	if errors.Is(err, context.Canceled) {
		result.Finished = time.Now()
		return result, err
	}

	pruned, err := sc.store.PruneBefore(ctx, tx, scanTime)
	if err != nil {
		result.FinalStatus = ScanStatusFailed
		result.LastError = fmt.Sprintf("prune failed: %v", err)
		result.Finished = time.Now()
		_ = sc.store.UpdateScanState(ctx, ScanStatusFailed, result.Finished, 0)
		return result, fmt.Errorf("prune vanished clips: %w", err)
	}
	result.ItemsPruned = int(pruned)

	if result.ErrorCount > 0 {
		result.FinalStatus = ScanStatusDegraded
	}

	if err := tx.Commit(); err != nil {
		result.FinalStatus = ScanStatusFailed
		result.LastError = fmt.Sprintf("commit failed: %v", err)
		result.Finished = time.Now()
		_ = sc.store.UpdateScanState(ctx, ScanStatusFailed, result.Finished, 0)
		return result, fmt.Errorf("commit tx: %w", err)
	}
	committed = true

	result.Finished = time.Now()
	if err := sc.store.UpdateScanState(ctx, result.FinalStatus, result.Finished, result.TotalScanned); err != nil {
		return result, fmt.Errorf("record scan state: %w", err)
	}
	metrics.SetLibraryClips(result.TotalScanned)
	metrics.ObserveLibraryScanDuration(result.Finished.Sub(result.Started).Seconds())

	logger := log.WithComponent("library")
	logger.Info().
		Str("event", "library.scan.completed").
		Int("scanned", result.TotalScanned).
		Int("skipped", result.ItemsSkipped).
		Int("pruned", result.ItemsPruned).
		Int("errors", result.ErrorCount).
		Str("status", result.FinalStatus.String()).
		Msg("catalog scan completed")

	return result, nil
}

// buildEntry assembles a catalog entry, enriched from the sidecar when the
// recorder left one.
func (sc *Scanner) buildEntry(gameID, rel, path, filename string, info os.FileInfo, scanTime time.Time) Entry {
	e := Entry{
		RelPath:   rel,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
		ScanTime:  scanTime,
	}
	e.ID = clipID(rel)
	e.GameID = gameID
	e.Path = path
	e.EventID = strings.TrimSuffix(filename, filepath.Ext(filename))

	if meta, ok := readSidecar(path + ".json"); ok {
		if meta.EventID != "" {
			e.EventID = meta.EventID
		}
		if meta.EndTime > meta.StartTime {
			e.StartTime = meta.StartTime
			e.EndTime = meta.EndTime
			e.Duration = meta.EndTime - meta.StartTime
		}
		if meta.Thumbnail != "" {
			e.ThumbnailPath = filepath.Join(filepath.Dir(path), meta.Thumbnail)
		}
	}

	return e
}

// clipID derives a stable catalog id from the clip's relative path, so
// rescans keep ids and timeline references intact.
func clipID(rel string) string {
	sum := sha256.Sum256([]byte(rel))
	return fmt.Sprintf("%x", sum[:8])
}

// readSidecar loads the recorder's metadata file next to a clip.
func readSidecar(path string) (*sidecar, bool) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, false
	}
	var meta sidecar
	if err := json.Unmarshal(data, &meta); err != nil {
		logger := log.WithComponent("library")
		logger.Warn().
			Err(err).
			Str("event", "library.sidecar.invalid").
			Msg("sidecar metadata unreadable")
		return nil, false
	}
	return &meta, true
}

// isAllowedExtension checks if a file extension is in the allowed list.
func isAllowedExtension(ext string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(ext, a) {
			return true
		}
	}
	return false
}

// logScanError logs scan errors with hashed paths so logs never leak the
// user's directory names.
func logScanError(event string, err error, path string) {
	hash := sha256.Sum256([]byte(path))

	logger := log.WithComponent("library")
	logger.Warn().
		Str("event", "library.scan.error").
		Str("op", event).
		Str("path_hash", fmt.Sprintf("%x", hash[:5])).
		Err(err).
		Msg("catalog scan error")
}
