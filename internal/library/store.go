// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clipforge/clipforge/internal/persistence/sqlite"
)

// Store provides SQLite persistence for the clip catalog.
type Store struct {
	db *sql.DB
}

// NewStore opens the catalog database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
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
	CREATE TABLE IF NOT EXISTS clips (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		rel_path TEXT NOT NULL UNIQUE,
		path TEXT NOT NULL,
		thumbnail_path TEXT,
		start_time REAL NOT NULL DEFAULT 0,
		end_time REAL NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		size_bytes INTEGER NOT NULL,
		mod_time TEXT NOT NULL,
		scan_time TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clips_game ON clips(game_id);
	CREATE INDEX IF NOT EXISTS idx_clips_scan_time ON clips(scan_time);

	CREATE TABLE IF NOT EXISTS scan_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_scan_time TEXT,
		last_scan_status TEXT NOT NULL DEFAULT 'never'
			CHECK(last_scan_status IN ('never', 'running', 'ok', 'degraded', 'failed')),
		total_clips INTEGER NOT NULL DEFAULT 0
	);
	INSERT OR IGNORE INTO scan_state (id, last_scan_status) VALUES (1, 'never');
	`

	_, err := s.db.Exec(schema)
	return err
}

// BeginTx starts a transaction. The scanner uses one transaction per scan so
// a failed scan never leaves a half-updated catalog.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// UpsertClip inserts or updates a catalog entry within the scan transaction.
func (s *Store) UpsertClip(ctx context.Context, tx *sql.Tx, e Entry) error {
	query := `
	INSERT INTO clips (id, game_id, event_id, rel_path, path, thumbnail_path,
		start_time, end_time, duration, size_bytes, mod_time, scan_time)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		game_id = excluded.game_id,
		event_id = excluded.event_id,
		rel_path = excluded.rel_path,
		path = excluded.path,
		thumbnail_path = excluded.thumbnail_path,
		start_time = excluded.start_time,
		end_time = excluded.end_time,
		duration = excluded.duration,
		size_bytes = excluded.size_bytes,
		mod_time = excluded.mod_time,
		scan_time = excluded.scan_time
	`

	var thumb any
	if e.ThumbnailPath != "" {
		thumb = e.ThumbnailPath
	}

	_, err := tx.ExecContext(ctx, query,
		e.ID,
		e.GameID,
		e.EventID,
		e.RelPath,
		e.Path,
		thumb,
		e.StartTime,
		e.EndTime,
		e.Duration,
		e.SizeBytes,
		e.ModTime.Format(time.RFC3339),
		e.ScanTime.Format(time.RFC3339),
	)
	return err
}

// PruneBefore removes entries whose scan_time predates the given scan,
// i.e. files that vanished since the previous pass. Returns the number of
// removed rows.
func (s *Store) PruneBefore(ctx context.Context, tx *sql.Tx, scanTime time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM clips WHERE scan_time < ?`,
		scanTime.Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const clipColumns = `id, game_id, event_id, rel_path, path, thumbnail_path,
	start_time, end_time, duration, size_bytes, mod_time, scan_time`

// GetClip retrieves a single catalog entry. Returns nil when absent.
func (s *Store) GetClip(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)

	e, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListClips retrieves paginated catalog entries, optionally filtered by
// game. Returns the page and the total matching count.
func (s *Store) ListClips(ctx context.Context, gameID string, limit, offset int) ([]Entry, int, error) {
	if limit <= 0 {
		limit = 100
	}

	where, args := "", []any{}
	if gameID != "" {
		where = "WHERE game_id = ?"
		args = append(args, gameID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clips `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clipColumns+` FROM clips `+where+` ORDER BY mod_time DESC, id LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}

	return entries, total, rows.Err()
}

// ListGames aggregates the catalog per game.
func (s *Store) ListGames(ctx context.Context) ([]GameSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT game_id, COUNT(*)
	FROM clips
	GROUP BY game_id
	ORDER BY game_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var games []GameSummary
	for rows.Next() {
		var g GameSummary
		if err := rows.Scan(&g.GameID, &g.ClipCount); err != nil {
			return nil, err
		}
		games = append(games, g)
	}

	return games, rows.Err()
}

// ScanState retrieves the persisted outcome of the most recent scan.
func (s *Store) ScanState(ctx context.Context) (ScanState, error) {
	var (
		state   ScanState
		lastStr sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
	SELECT last_scan_time, last_scan_status, total_clips
	FROM scan_state WHERE id = 1
	`).Scan(&lastStr, &state.LastScanStatus, &state.TotalClips)
	if err != nil {
		return ScanState{}, err
	}

	if lastStr.Valid {
		if t, err := time.Parse(time.RFC3339, lastStr.String); err == nil {
			state.LastScanTime = &t
		}
	}

	return state, nil
}

// UpdateScanState records the scan outcome.
func (s *Store) UpdateScanState(ctx context.Context, status ScanStatus, scanTime time.Time, totalClips int) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE scan_state
	SET last_scan_status = ?,
	    last_scan_time = ?,
	    total_clips = ?
	WHERE id = 1
	`, status.String(), scanTime.Format(time.RFC3339), totalClips)
	return err
}

// scanEntry reads one clip row via the given Scan function.
func scanEntry(scan func(...any) error) (*Entry, error) {
	var (
		e          Entry
		thumb      sql.NullString
		modTimeStr string
		scanStr    string
	)

	if err := scan(
		&e.ID,
		&e.GameID,
		&e.EventID,
		&e.RelPath,
		&e.Path,
		&thumb,
		&e.StartTime,
		&e.EndTime,
		&e.Duration,
		&e.SizeBytes,
		&modTimeStr,
		&scanStr,
	); err != nil {
		return nil, err
	}

	if thumb.Valid {
		e.ThumbnailPath = thumb.String
	}
	e.ModTime, _ = time.Parse(time.RFC3339, modTimeStr)
	e.ScanTime, _ = time.Parse(time.RFC3339, scanStr)

	return &e, nil
}
