// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce batches bursts of filesystem events (a recorder finishing a
// clip touches the file several times) into one rescan.
const DefaultDebounce = 2 * time.Second

// Watcher triggers catalog rescans when the recordings directory changes.
// fsnotify does not watch recursively, so new per-game subdirectories are
// added to the watch set as they appear.
type Watcher struct {
	scanner  *Scanner
	root     string
	debounce time.Duration
	logger   zerolog.Logger
}

// NewWatcher creates a watcher over the scanner's root.
func NewWatcher(scanner *Scanner, logger zerolog.Logger, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		scanner:  scanner,
		root:     scanner.cfg.Path,
		debounce: debounce,
		logger:   logger,
	}
}

// Run watches until the context is cancelled. A burst of events schedules a
// single rescan after the debounce window. Returns nil on context
// cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.root); err != nil {
		return err
	}

	// Watch the per-game directories that already exist.
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := fw.Add(filepath.Join(w.root, e.Name())); err != nil {
				w.logger.Warn().Err(err).Str("dir", e.Name()).Msg("watch game directory failed")
			}
		}
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}

			// A new directory is a new game: watch it and rescan.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.Add(event.Name); err != nil {
						w.logger.Warn().Err(err).Msg("watch new game directory failed")
					}
					timer.Reset(w.debounce)
					continue
				}
			}

			if w.relevant(event) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			w.logger.Warn().Err(err).Msg("fsnotify watcher error")

		case <-timer.C:
			if _, err := w.scanner.ScanRoot(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Warn().Err(err).Str("event", "library.rescan.failed").Msg("rescan after change failed")
			}
		}
	}
}

// relevant reports whether an event concerns a clip file or its sidecar.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	name := event.Name
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".json" {
		ext = strings.ToLower(filepath.Ext(strings.TrimSuffix(name, ".json")))
	}
	return isAllowedExtension(ext, w.scanner.cfg.IncludeExt)
}
