// SPDX-License-Identifier: MIT

package compose

import (
	"context"
	"sync"
	"time"
)

const (
	// defaultStreamStartBudget bounds the wait for the first event of a
	// stream attempt. A busy engine may queue the job before the first
	// stage begins.
	defaultStreamStartBudget = 90 * time.Second
	// defaultStreamStallBudget bounds the silence between consecutive
	// events once a stream has produced any.
	defaultStreamStallBudget = 60 * time.Second
)

// streamWatchdog aborts a progress stream attempt whose events stop
// flowing. A connection can stay open while the engine behind it hangs;
// without a stall budget such a job would never reconnect or fail.
type streamWatchdog struct {
	mu       sync.Mutex
	start    time.Duration
	gap      time.Duration
	lastBeat time.Time
	fed      bool
	fired    bool
}

func newStreamWatchdog(start, gap time.Duration) *streamWatchdog {
	return &streamWatchdog{
		start:    start,
		gap:      gap,
		lastBeat: time.Now(),
	}
}

// beat records one delivered event.
func (w *streamWatchdog) beat() {
	w.mu.Lock()
	w.lastBeat = time.Now()
	w.fed = true
	w.mu.Unlock()
}

// stalled reports whether the watchdog aborted the attempt.
func (w *streamWatchdog) stalled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}

// expired checks the active budget: the start budget until the first
// event, the gap budget afterwards.
func (w *streamWatchdog) expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	budget := w.start
	if w.fed {
		budget = w.gap
	}
	if time.Since(w.lastBeat) <= budget {
		return false
	}
	w.fired = true
	return true
}

// watch polls until the active budget expires, then aborts the attempt.
// It returns when ctx is done.
func (w *streamWatchdog) watch(ctx context.Context, abort context.CancelFunc) {
	t := time.NewTicker(w.interval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if w.expired() {
				abort()
				return
			}
		}
	}
}

// interval derives the poll cadence from the tighter budget.
func (w *streamWatchdog) interval() time.Duration {
	iv := w.start
	if w.gap < iv {
		iv = w.gap
	}
	iv /= 4
	if iv < 10*time.Millisecond {
		iv = 10 * time.Millisecond
	}
	if iv > time.Second {
		iv = time.Second
	}
	return iv
}
