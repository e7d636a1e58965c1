// SPDX-License-Identifier: MIT

// Package exports keeps the local record of finished compositions and
// completed uploads. The composition controller hands every successful
// result to this store; the upload coordinator appends one history entry
// per completed upload. Both tables are the daemon's system of record for
// files that live on the local disk.
package exports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/persistence/sqlite"
)

// ErrNotFound is returned when the referenced result does not exist.
var ErrNotFound = errors.New("exports: result not found")

// The store is the controller's result sink.
var _ compose.ResultSink = (*Store)(nil)

// timeLayout keeps a fixed-width fraction so lexicographic order of the
// TEXT columns matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store provides SQLite persistence for export results and upload history.
type Store struct {
	db *sql.DB
}

// NewStore opens the exports database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("open exports database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS export_results (
		job_id TEXT PRIMARY KEY,
		output_path TEXT NOT NULL,
		duration REAL NOT NULL,
		clip_count INTEGER NOT NULL,
		file_size INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_export_results_created ON export_results(created_at);

	CREATE TABLE IF NOT EXISTS upload_history (
		video_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		uploaded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_upload_history_uploaded ON upload_history(uploaded_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveResult records a finished composition. Saving the same job id again
// overwrites the row, so a replayed completion cannot duplicate history.
func (s *Store) SaveResult(ctx context.Context, res media.ExportResult) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO export_results (job_id, output_path, duration, clip_count, file_size, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(job_id) DO UPDATE SET
		output_path = excluded.output_path,
		duration = excluded.duration,
		clip_count = excluded.clip_count,
		file_size = excluded.file_size,
		created_at = excluded.created_at
	`,
		res.JobID,
		res.OutputPath,
		res.Duration,
		res.ClipCount,
		res.FileSize,
		res.CreatedAt.UTC().Format(timeLayout),
	)
	return err
}

// GetResult retrieves one result. Returns ErrNotFound when absent.
func (s *Store) GetResult(ctx context.Context, jobID string) (*media.ExportResult, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT job_id, output_path, duration, clip_count, file_size, created_at
	FROM export_results WHERE job_id = ?
	`, jobID)

	res, err := scanResult(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListResults retrieves all stored results, newest first.
func (s *Store) ListResults(ctx context.Context) ([]media.ExportResult, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT job_id, output_path, duration, clip_count, file_size, created_at
	FROM export_results
	ORDER BY created_at DESC, job_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []media.ExportResult
	for rows.Next() {
		res, err := scanResult(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}

	return out, rows.Err()
}

// DeleteResult removes a stored result. With deleteFile set, the output
// file is removed from disk first, so a failed removal leaves the record
// in place for a retry. A file already gone is not an error.
func (s *Store) DeleteResult(ctx context.Context, jobID string, deleteFile bool) error {
	res, err := s.GetResult(ctx, jobID)
	if err != nil {
		return err
	}

	if deleteFile {
		if err := os.Remove(res.OutputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing output file: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM export_results WHERE job_id = ?`, jobID)
	return err
}

// AppendUpload records one completed upload. The video id is the identity:
// appending the same upload twice leaves a single history entry.
func (s *Store) AppendUpload(ctx context.Context, e media.UploadHistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT OR IGNORE INTO upload_history (video_id, title, url, file_size, uploaded_at)
	VALUES (?, ?, ?, ?, ?)
	`,
		e.VideoID,
		e.Title,
		e.URL,
		e.FileSize,
		e.UploadedAt.UTC().Format(timeLayout),
	)
	return err
}

// ListUploads retrieves the upload history, newest first.
func (s *Store) ListUploads(ctx context.Context) ([]media.UploadHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT video_id, title, url, file_size, uploaded_at
	FROM upload_history
	ORDER BY uploaded_at DESC, video_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []media.UploadHistoryEntry
	for rows.Next() {
		var (
			e          media.UploadHistoryEntry
			uploadedAt string
		)
		if err := rows.Scan(&e.VideoID, &e.Title, &e.URL, &e.FileSize, &uploadedAt); err != nil {
			return nil, err
		}
		e.UploadedAt, _ = time.Parse(timeLayout, uploadedAt)
		out = append(out, e)
	}

	return out, rows.Err()
}

// scanResult reads one result row via the given Scan function.
func scanResult(scan func(...any) error) (*media.ExportResult, error) {
	var (
		res       media.ExportResult
		createdAt string
	)

	if err := scan(
		&res.JobID,
		&res.OutputPath,
		&res.Duration,
		&res.ClipCount,
		&res.FileSize,
		&createdAt,
	); err != nil {
		return nil, err
	}

	res.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &res, nil
}
