// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "catalog.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mkEntry(id, gameID, rel string, modTime time.Time) Entry {
	e := Entry{
		RelPath:   rel,
		SizeBytes: 1 << 20,
		ModTime:   modTime,
		ScanTime:  modTime,
	}
	e.ID = id
	e.GameID = gameID
	e.EventID = "event-" + id
	e.Path = "/recordings/" + rel
	e.StartTime = 0
	e.EndTime = 12.5
	e.Duration = 12.5
	return e
}

func insertEntries(t *testing.T, store *Store, entries ...Entry) {
	t.Helper()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, store.UpsertClip(ctx, tx, e))
	}
	require.NoError(t, tx.Commit())
}

func TestStore_UpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	modTime := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	e := mkEntry("c1", "valorant", "valorant/ace.mp4", modTime)
	e.ThumbnailPath = "/recordings/valorant/ace.png"
	insertEntries(t, store, e)

	got, err := store.GetClip(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, "valorant", got.GameID)
	assert.Equal(t, "event-c1", got.EventID)
	assert.Equal(t, "/recordings/valorant/ace.mp4", got.Path)
	assert.Equal(t, "/recordings/valorant/ace.png", got.ThumbnailPath)
	assert.Equal(t, 12.5, got.Duration)
	assert.True(t, got.ModTime.Equal(modTime))
}

func TestStore_GetClip_Missing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetClip(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Upsert_UpdatesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	modTime := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	insertEntries(t, store, mkEntry("c1", "valorant", "valorant/ace.mp4", modTime))

	updated := mkEntry("c1", "valorant", "valorant/ace.mp4", modTime.Add(time.Hour))
	updated.SizeBytes = 42
	insertEntries(t, store, updated)

	got, err := store.GetClip(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.SizeBytes)

	_, total, err := store.ListClips(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestStore_ListClips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	insertEntries(t, store,
		mkEntry("c1", "valorant", "valorant/a.mp4", base.Add(1*time.Minute)),
		mkEntry("c2", "valorant", "valorant/b.mp4", base.Add(2*time.Minute)),
		mkEntry("c3", "rocketleague", "rocketleague/c.mp4", base.Add(3*time.Minute)),
	)

	all, total, err := store.ListClips(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "c3", all[0].ID)
	assert.Equal(t, "c2", all[1].ID)

	valorant, total, err := store.ListClips(ctx, "valorant", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, valorant, 2)

	page, total, err := store.ListClips(ctx, "", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "c1", page[0].ID)
}

func TestStore_ListGames(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	insertEntries(t, store,
		mkEntry("c1", "valorant", "valorant/a.mp4", base),
		mkEntry("c2", "valorant", "valorant/b.mp4", base),
		mkEntry("c3", "rocketleague", "rocketleague/c.mp4", base),
	)

	games, err := store.ListGames(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 2)

	assert.Equal(t, GameSummary{GameID: "rocketleague", ClipCount: 1}, games[0])
	assert.Equal(t, GameSummary{GameID: "valorant", ClipCount: 2}, games[1])
}

func TestStore_PruneBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	fresh := old.Add(time.Hour)
	insertEntries(t, store,
		mkEntry("stale", "valorant", "valorant/old.mp4", old),
		mkEntry("kept", "valorant", "valorant/new.mp4", fresh),
	)

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	pruned, err := store.PruneBefore(ctx, tx, fresh)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, int64(1), pruned)

	got, err := store.GetClip(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetClip(ctx, "kept")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestStore_ScanState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state, err := store.ScanState(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScanStatusNever, state.LastScanStatus)
	assert.Nil(t, state.LastScanTime)
	assert.Equal(t, 0, state.TotalClips)

	scanTime := time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.UpdateScanState(ctx, ScanStatusOK, scanTime, 17))

	state, err = store.ScanState(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScanStatusOK, state.LastScanStatus)
	require.NotNil(t, state.LastScanTime)
	assert.True(t, state.LastScanTime.Equal(scanTime))
	assert.Equal(t, 17, state.TotalClips)
}
