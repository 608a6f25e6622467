package testutil

import (
	"context"
	"sync"
)

// SweepLock is an in-memory stand-in for the Postgres sweep advisory lock.
// Set Held to simulate another process holding it.
type SweepLock struct {
	mu       sync.Mutex
	Held     bool
	Err      error
	acquired int
}

// TryAcquire implements scheduler.SweepLock.
func (l *SweepLock) TryAcquire(_ context.Context) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Err != nil {
		return nil, false, l.Err
	}
	if l.Held {
		return nil, false, nil
	}
	l.Held = true
	l.acquired++
	return func() {
		l.mu.Lock()
		l.Held = false
		l.mu.Unlock()
	}, true, nil
}

// Acquired returns how many times the lock was taken.
func (l *SweepLock) Acquired() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired
}

// IsHeld reports whether the lock is currently taken.
func (l *SweepLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Held
}
