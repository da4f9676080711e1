package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionLocks serializes booking-engine critical sections per session.
// Acquire is bounded: a caller that cannot take the lock within the wait
// window gets ErrBusy instead of queueing indefinitely.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[uuid.UUID]*sessionLock)}
}

// Acquire takes the lock for the given session, waiting at most wait.
// Returns ErrBusy on timeout and the context error if ctx is done first.
func (l *sessionLocks) Acquire(ctx context.Context, id uuid.UUID, wait time.Duration) error {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case entry.ch <- struct{}{}:
		return nil
	case <-timer.C:
		l.release(id, false)
		return ErrBusy
	case <-ctx.Done():
		l.release(id, false)
		return ctx.Err()
	}
}

// Release frees the lock taken by a successful Acquire.
func (l *sessionLocks) Release(id uuid.UUID) {
	l.release(id, true)
}

func (l *sessionLocks) release(id uuid.UUID, held bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[id]
	if !ok {
		return
	}
	if held {
		<-entry.ch
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, id)
	}
}
