// SPDX-License-Identifier: MIT

// Package library indexes the recordings directory into a SQLite catalog of
// gameplay clips. The catalog feeds clip selection and the timeline; the
// recorder that produces the files is a separate process and never consulted.
package library

import (
	"fmt"
	"time"

	"github.com/clipforge/clipforge/internal/media"
)

// ScanStatus represents the runtime state of the catalog scan.
type ScanStatus string

const (
	ScanStatusNever    ScanStatus = "never"    // Not yet scanned
	ScanStatusRunning  ScanStatus = "running"  // Scan in progress
	ScanStatusOK       ScanStatus = "ok"       // Last scan successful
	ScanStatusDegraded ScanStatus = "degraded" // Last scan had partial errors
	ScanStatusFailed   ScanStatus = "failed"   // Last scan failed completely
)

// String returns the string representation of ScanStatus.
func (s ScanStatus) String() string {
	return string(s)
}

// RootConfig configures the recordings directory scan.
type RootConfig struct {
	Path         string        // Absolute path of the recordings directory
	MaxDepth     int           // Maximum directory depth below the root
	IncludeExt   []string      // File extensions to index (defaults apply when empty)
	StableWindow time.Duration // Files modified more recently than this are considered still being written
	MinSizeBytes int64         // Files smaller than this are skipped
}

// DefaultIncludeExt lists the container formats the recorder produces.
var DefaultIncludeExt = []string{".mp4", ".mkv", ".webm", ".mov"}

// Entry is one cataloged clip: the domain clip plus filesystem bookkeeping.
type Entry struct {
	media.Clip
	RelPath   string    `json:"rel_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
	ScanTime  time.Time `json:"scan_time"`
}

// GameSummary aggregates the catalog per game for the selection UI.
type GameSummary struct {
	GameID    string `json:"game_id"`
	ClipCount int    `json:"clip_count"`
}

// ScanState is the persisted outcome of the most recent scan.
type ScanState struct {
	LastScanTime   *time.Time `json:"last_scan_time,omitempty"`
	LastScanStatus ScanStatus `json:"last_scan_status"`
	TotalClips     int        `json:"total_clips"`
}

// ScanResult represents the outcome of a catalog scan.
type ScanResult struct {
	Started      time.Time
	Finished     time.Time
	TotalScanned int // Files indexed
	ItemsSkipped int // Files skipped (wrong ext, unstable, too small, depth)
	ItemsPruned  int // Catalog rows removed for vanished files
	ErrorCount   int // Errors encountered (permission denied, etc.)
	FinalStatus  ScanStatus
	LastError    string
}

// Error returns a human-readable summary if the scan had issues.
func (s *ScanResult) Error() string {
	if s.ErrorCount == 0 && s.FinalStatus == ScanStatusOK {
		return ""
	}
	return fmt.Sprintf("scan completed with %d errors, status=%s", s.ErrorCount, s.FinalStatus)
}
