// Package lock provides per-user mutual exclusion for game actions.
package lock

import "sync"

// entry is a mutex shared by every holder and waiter of one user.
type entry struct {
	mu   sync.Mutex
	refs int
}

// UserLock serializes actions per user. Entries are dropped once nobody holds
// or waits on them, so the map only grows with concurrently active users.
type UserLock struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{entries: make(map[int64]*entry)}
}

func (ul *UserLock) acquire(userID int64) *entry {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	e, ok := ul.entries[userID]
	if !ok {
		e = &entry{}
		ul.entries[userID] = e
	}
	e.refs++
	return e
}

func (ul *UserLock) release(userID int64, e *entry) {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(ul.entries, userID)
	}
}

// Lock acquires the lock for a user.
func (ul *UserLock) Lock(userID int64) {
	e := ul.acquire(userID)
	e.mu.Lock()
}

// Unlock releases the lock for a user. It must follow a successful Lock or TryLock.
func (ul *UserLock) Unlock(userID int64) {
	ul.mu.Lock()
	e, ok := ul.entries[userID]
	ul.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Unlock()
	ul.release(userID, e)
}

// TryLock attempts to acquire the lock without blocking.
func (ul *UserLock) TryLock(userID int64) bool {
	e := ul.acquire(userID)
	if e.mu.TryLock() {
		return true
	}
	ul.release(userID, e)
	return false
}

// WithLock executes fn while holding the user's lock.
func (ul *UserLock) WithLock(userID int64, fn func() error) error {
	ul.Lock(userID)
	defer ul.Unlock(userID)
	return fn()
}

// TryWithLock executes fn only if the user's lock is free. It returns
// ErrBusy without calling fn otherwise.
func (ul *UserLock) TryWithLock(userID int64, fn func() error) error {
	if !ul.TryLock(userID) {
		return ErrBusy
	}
	defer ul.Unlock(userID)
	return fn()
}

// Size returns the number of users with a live entry.
func (ul *UserLock) Size() int {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return len(ul.entries)
}
