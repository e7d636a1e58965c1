// SPDX-License-Identifier: MIT

package session

import (
	"sync"
	"time"

	"github.com/clipforge/clipforge/internal/compose"
	"github.com/clipforge/clipforge/internal/upload"
)

// State is one observable snapshot of a session's composition and upload
// activity. Seq increases by one per recorded change, so a poller can ask
// for anything newer than what it already saw.
type State struct {
	SessionID string         `json:"session_id"`
	Seq       uint64         `json:"seq"`
	Job       *compose.Job   `json:"job,omitempty"`
	Upload    *upload.Upload `json:"upload,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Subscription delivers state snapshots to one consumer. The channel holds
// only the latest snapshot: a slow consumer sees the newest state, not every
// intermediate one. The channel is closed when the subscription or its
// session ends.
type Subscription struct {
	store *stateStore
	id    uint64
	ch    chan State
	once  sync.Once
}

// C is the snapshot channel.
func (s *Subscription) C() <-chan State {
	return s.ch
}

// Close unsubscribes. Safe to call on every exit path and more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.store.unsubscribe(s.id)
	})
}

// stateStore holds the session's latest job and upload snapshots and fans
// state changes out to subscribers. It never calls back into the components
// that feed it, so their notify hooks can run under their own locks.
type stateStore struct {
	sessionID string

	mu        sync.Mutex
	closed    bool
	seq       uint64
	updatedAt time.Time
	job       *compose.Job
	upload    *upload.Upload
	subs      map[uint64]chan State
	nextSub   uint64
}

func newStateStore(sessionID string) *stateStore {
	return &stateStore{
		sessionID: sessionID,
		updatedAt: time.Now().UTC(),
		subs:      make(map[uint64]chan State),
	}
}

func (st *stateStore) setJob(j compose.Job) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	st.job = &j
	st.bumpLocked()
}

func (st *stateStore) setUpload(u upload.Upload) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	st.upload = &u
	st.bumpLocked()
}

func (st *stateStore) current() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshotLocked()
}

func (st *stateStore) subscribe() *Subscription {
	st.mu.Lock()
	defer st.mu.Unlock()

	ch := make(chan State, 1)
	if st.closed {
		close(ch)
		return &Subscription{store: st, ch: ch}
	}
	st.nextSub++
	id := st.nextSub
	st.subs[id] = ch
	return &Subscription{store: st, id: id, ch: ch}
}

func (st *stateStore) unsubscribe(id uint64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if ch, ok := st.subs[id]; ok {
		delete(st.subs, id)
		close(ch)
	}
}

// close ends every subscription. Further setters are dropped.
func (st *stateStore) close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	st.closed = true
	for id, ch := range st.subs {
		delete(st.subs, id)
		close(ch)
	}
}

func (st *stateStore) bumpLocked() {
	st.seq++
	st.updatedAt = time.Now().UTC()
	snap := st.snapshotLocked()
	for _, ch := range st.subs {
		select {
		case ch <- snap:
		default:
			// Replace the undelivered older snapshot. Only this store
			// sends on the channel, under st.mu, so the slot is free.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (st *stateStore) snapshotLocked() State {
	return State{
		SessionID: st.sessionID,
		Seq:       st.seq,
		Job:       st.job.Clone(),
		Upload:    st.upload.Clone(),
		UpdatedAt: st.updatedAt,
	}
}
