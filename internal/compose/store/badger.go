// SPDX-License-Identifier: MIT

// Package store persists composition job records in a Badger database so
// job history and the at-most-one-active invariant survive restarts.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/types"
)

const jobPrefix = "job:"

// BadgerStore is a compose.JobStore backed by Badger.
// Keys: "job:<id>" (JSON-encoded compose.Job).
type BadgerStore struct {
	db *badger.DB
}

// Open opens (or creates) the job database at path.
func Open(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Put stores a record, overwriting any previous one with the id.
func (s *BadgerStore) Put(_ context.Context, job *compose.Job) error {
	key := []byte(jobPrefix + job.ID)
	buf, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf)
	})
}

// Get returns the record, or nil without error when absent.
func (s *BadgerStore) Get(_ context.Context, id string) (*compose.Job, error) {
	key := []byte(jobPrefix + id)
	var out compose.Job
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

// Update applies fn to the stored record atomically.
func (s *BadgerStore) Update(_ context.Context, id string, fn func(*compose.Job) error) (*compose.Job, error) {
	key := []byte(jobPrefix + id)
	var out compose.Job
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		}); err != nil {
			return err
		}
		if err := fn(&out); err != nil {
			return err
		}
		buf, err := json.Marshal(out)
		if err != nil {
			return err
		}
		return txn.Set(key, buf)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, compose.ErrJobNotFound
		}
		return nil, err
	}
	return &out, nil
}

// List returns all records, newest first.
func (s *BadgerStore) List(ctx context.Context) ([]*compose.Job, error) {
	var list []*compose.Job
	err := s.scan(ctx, func(job *compose.Job) error {
		list = append(list, job)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortJobs(list)
	return list, nil
}

// ActiveForSession returns the session's non-terminal job, if any.
func (s *BadgerStore) ActiveForSession(ctx context.Context, sessionID string) (*compose.Job, error) {
	var found *compose.Job
	err := s.scan(ctx, func(job *compose.Job) error {
		if found == nil && job.SessionID == sessionID && !job.Terminal() {
			found = job
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// SweepNonTerminal fails every non-terminal record with the given reason.
// Run once on startup, before any controller is constructed.
func (s *BadgerStore) SweepNonTerminal(ctx context.Context, reason string) (int, error) {
	var stale []string
	err := s.scan(ctx, func(job *compose.Job) error {
		if !job.Terminal() {
			stale = append(stale, job.ID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range stale {
		_, err := s.Update(ctx, id, func(job *compose.Job) error {
			if job.Terminal() {
				return nil
			}
			now := time.Now().UTC()
			job.Status = types.JobStatusFailed
			job.Error = reason
			job.Result = nil
			job.UpdatedAt = now
			job.CompletedAt = &now
			return nil
		})
		if err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

func (s *BadgerStore) scan(ctx context.Context, fn func(*compose.Job) error) error {
	prefix := []byte(jobPrefix)
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			item := it.Item()
			var job compose.Job
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			}); err != nil {
				continue
			}
			if err := fn(&job); err != nil {
				return err
			}
		}
		return nil
	})
}

func sortJobs(list []*compose.Job) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

// Ensure interface compliance at compile time.
var _ compose.JobStore = (*BadgerStore)(nil)
