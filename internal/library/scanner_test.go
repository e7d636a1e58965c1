// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeClip drops a clip file with a backdated mtime so the stability window
// does not filter it out.
func writeClip(t *testing.T, root string, rel string) string {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("fake video payload"), 0o600))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	return path
}

func writeSidecar(t *testing.T, clipPath string, meta sidecar) {
	t.Helper()

	data, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(clipPath+".json", data, 0o600))
}

func newTestScanner(t *testing.T, root string) (*Scanner, *Store) {
	t.Helper()

	store := newTestStore(t)
	sc := NewScanner(store, RootConfig{
		Path:         root,
		MinSizeBytes: 1,
	})
	return sc, store
}

func TestScanner_IndexesGameDirectories(t *testing.T) {
	root := t.TempDir()
	writeClip(t, root, "valorant/ace_round.mp4")
	writeClip(t, root, "rocketleague/aerial.mkv")

	sc, store := newTestScanner(t, root)

	result, err := sc.ScanRoot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalScanned)
	assert.Equal(t, ScanStatusOK, result.FinalStatus)

	clips, total, err := store.ListClips(context.Background(), "valorant", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, clips, 1)

	got := clips[0]
	assert.Equal(t, "valorant", got.GameID)
	assert.Equal(t, "ace_round", got.EventID)
	assert.Equal(t, clipID(filepath.Join("valorant", "ace_round.mp4")), got.ID)
	assert.NotEmpty(t, got.Path)

	state, err := store.ScanState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ScanStatusOK, state.LastScanStatus)
	assert.Equal(t, 2, state.TotalClips)
}

func TestScanner_SidecarEnrichment(t *testing.T) {
	root := t.TempDir()
	path := writeClip(t, root, "valorant/clutch.mp4")
	writeSidecar(t, path, sidecar{
		EventID:   "evt-42",
		StartTime: 3.5,
		EndTime:   21.0,
		Thumbnail: "clutch.png",
	})

	sc, store := newTestScanner(t, root)
	_, err := sc.ScanRoot(context.Background())
	require.NoError(t, err)

	got, err := store.GetClip(context.Background(), clipID(filepath.Join("valorant", "clutch.mp4")))
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "evt-42", got.EventID)
	assert.Equal(t, 3.5, got.StartTime)
	assert.Equal(t, 21.0, got.EndTime)
	assert.InDelta(t, 17.5, got.Duration, 1e-9)
	assert.Equal(t, filepath.Join(filepath.Dir(got.Path), "clutch.png"), got.ThumbnailPath)
}

func TestScanner_SkipsRootLevelAndForeignFiles(t *testing.T) {
	root := t.TempDir()

	// No game attribution: directly in the root.
	strayPath := filepath.Join(root, "stray.mp4")
	require.NoError(t, os.WriteFile(strayPath, []byte("x"), 0o600))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(strayPath, old, old))

	// Wrong extension.
	writeClip(t, root, "valorant/notes.txt")
	writeClip(t, root, "valorant/real.mp4")

	sc, store := newTestScanner(t, root)
	result, err := sc.ScanRoot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalScanned)
	assert.GreaterOrEqual(t, result.ItemsSkipped, 2)

	_, total, err := store.ListClips(context.Background(), "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestScanner_SkipsUnstableFiles(t *testing.T) {
	root := t.TempDir()

	// Freshly modified: still being written by the recorder.
	path := filepath.Join(root, "valorant", "inflight.mp4")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("partial"), 0o600))

	store := newTestStore(t)
	sc := NewScanner(store, RootConfig{
		Path:         root,
		MinSizeBytes: 1,
		StableWindow: time.Hour,
	})

	result, err := sc.ScanRoot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalScanned)
	assert.Equal(t, 1, result.ItemsSkipped)
}

func TestScanner_PrunesVanishedClips(t *testing.T) {
	root := t.TempDir()
	keep := writeClip(t, root, "valorant/keep.mp4")
	gone := writeClip(t, root, "valorant/gone.mp4")
	_ = keep

	sc, store := newTestScanner(t, root)
	_, err := sc.ScanRoot(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(gone))

	result, err := sc.ScanRoot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsPruned)

	got, err := store.GetClip(context.Background(), clipID(filepath.Join("valorant", "gone.mp4")))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetClip(context.Background(), clipID(filepath.Join("valorant", "keep.mp4")))
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestScanner_StableIDsAcrossRescans(t *testing.T) {
	root := t.TempDir()
	writeClip(t, root, "valorant/ace.mp4")

	sc, store := newTestScanner(t, root)

	_, err := sc.ScanRoot(context.Background())
	require.NoError(t, err)
	first, _, err := store.ListClips(context.Background(), "", 10, 0)
	require.NoError(t, err)

	_, err = sc.ScanRoot(context.Background())
	require.NoError(t, err)
	second, _, err := store.ListClips(context.Background(), "", 10, 0)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestClipID_Deterministic(t *testing.T) {
	a := clipID("valorant/a.mp4")
	b := clipID("valorant/a.mp4")
	c := clipID("valorant/b.mp4")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
