// Package lock provides a binary mutex built on a single 32-bit memory cell.
//
// The cell can be handed to any number of goroutines running on their own OS
// threads. Acquisition is a compare-and-swap loop; a contended caller parks on
// the cell (a futex on Linux) until the holder releases it, then retries.
// There is no re-entrancy and no fairness beyond "some waiter is woken".
package lock

import (
	"errors"
	"sync/atomic"
)

const (
	unlocked int32 = 0
	locked   int32 = 1
)

// ErrNotHeld is the panic value raised when Unlock is called on a lock that is
// not held. Releasing a lock you do not own is a programming error.
var ErrNotHeld = errors.New("lock: unlock of unlocked lock")

// Lock is a binary mutual-exclusion primitive over one memory cell.
// A Lock must be created with New and must not be copied after first use.
type Lock struct {
	state   int32
	waiters atomic.Int32
	p       parker
}

// New returns an unlocked Lock.
func New() *Lock {
	return &Lock{p: newParker()}
}

// Lock acquires the lock, blocking until it is available.
func (l *Lock) Lock() {
	for {
		if atomic.CompareAndSwapInt32(&l.state, unlocked, locked) {
			return
		}

		l.waiters.Add(1)
		l.p.wait(&l.state, locked)
		l.waiters.Add(-1)
	}
}

// TryLock acquires the lock if it is free and reports whether it did.
func (l *Lock) TryLock() bool {
	return atomic.CompareAndSwapInt32(&l.state, unlocked, locked)
}

// Unlock releases the lock and wakes one blocked waiter, if any.
// It panics with ErrNotHeld if the lock is not held.
func (l *Lock) Unlock() {
	if !atomic.CompareAndSwapInt32(&l.state, locked, unlocked) {
		panic(ErrNotHeld)
	}

	if l.waiters.Load() > 0 {
		l.p.wake(&l.state)
	}
}

// Locked reports whether the cell is currently in the LOCKED state.
func (l *Lock) Locked() bool {
	return atomic.LoadInt32(&l.state) == locked
}

// Do runs fn while holding the lock. The lock is released even if fn panics.
func (l *Lock) Do(fn func()) {
	l.Lock()
	defer l.Unlock()
	fn()
}
