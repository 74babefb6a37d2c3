package core

import (
	"math"

	"github.com/kolkov/threadport/internal/thread/goid"
)

// RWLock is a read-write lock allowing recursive read acquisition.
//
// A thread already holding the lock for reading may call RLock again;
// each acquisition must be balanced by a release, and a waiting writer
// proceeds only once every read hold is gone. There is no upgrade path
// from read to write, and no fairness promise: when a writer releases,
// pending readers and writers compete and the scheduler decides.
//
// The writer records its thread identity, which is what lets UnlockAny
// infer the held mode. Acquisition blocks on an internal condition
// variable and is therefore a cancellation point.
type RWLock struct {
	guard   Mutex
	wait    Cond
	readers uint
	writer  int64
}

// Init prepares the lock for use.
func (l *RWLock) Init() {
	l.guard.Init()
	l.wait.Init()
	l.readers = 0
	l.writer = 0
}

// Destroy releases the lock. It must not be held, and no thread may be
// waiting on it.
func (l *RWLock) Destroy() {
	l.wait.Destroy()
	l.guard.Destroy()
}

// RLock acquires the lock for reading, blocking while a writer holds it.
// A thread already holding a read lock may acquire another.
func (l *RWLock) RLock() {
	l.guard.Lock()
	for l.writer != 0 {
		if l.readers != 0 {
			panic("threadport: rwlock writer active with readers present")
		}
		l.wait.Wait(&l.guard)
	}
	if l.readers == math.MaxUint {
		panic("threadport: rwlock reader count overflow")
	}
	l.readers++
	l.guard.Unlock()
}

// RUnlock releases one read hold. The last reader out wakes a waiting
// writer.
func (l *RWLock) RUnlock() {
	l.guard.Lock()
	if l.readers == 0 {
		l.guard.Unlock()
		panic("threadport: rwlock read-unlock without read hold")
	}
	l.readers--
	if l.readers == 0 {
		l.wait.Signal()
	}
	l.guard.Unlock()
}

// Lock acquires the lock for writing, blocking while any reader or
// another writer holds it.
func (l *RWLock) Lock() {
	l.guard.Lock()
	for l.readers > 0 || l.writer != 0 {
		l.wait.Wait(&l.guard)
	}
	l.writer = goid.ID()
	l.guard.Unlock()
}

// Unlock releases a write hold. Releasing a lock held by another thread,
// or not held for writing at all, panics.
func (l *RWLock) Unlock() {
	l.guard.Lock()
	if l.writer != goid.ID() {
		l.guard.Unlock()
		panic("threadport: rwlock write-unlock by non-owner")
	}
	if l.readers != 0 {
		l.guard.Unlock()
		panic("threadport: rwlock readers present at write-unlock")
	}
	l.writer = 0
	// Pending readers and writers compete; the scheduler picks.
	l.wait.Broadcast()
	l.guard.Unlock()
}

// UnlockAny releases the lock in whichever mode the calling thread holds
// it.
func (l *RWLock) UnlockAny() {
	// A read holder observed writer == 0 under the guard, and no writer
	// can store its identity while readers > 0. A write holder is the
	// only thread that stored the current nonzero value. Either way the
	// unguarded read is stable.
	if l.writer != 0 {
		l.Unlock()
	} else {
		l.RUnlock()
	}
}
