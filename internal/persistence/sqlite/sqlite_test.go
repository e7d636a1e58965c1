// SPDX-License-Identifier: MIT

package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")

	db, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys;").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestVerifyIntegrity_HealthyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")

	db, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO t (v) VALUES ('a'), ('b')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	problems, err := VerifyIntegrity(path, "quick")
	require.NoError(t, err)
	assert.Nil(t, problems)

	problems, err = VerifyIntegrity(path, "full")
	require.NoError(t, err)
	assert.Nil(t, problems)
}
