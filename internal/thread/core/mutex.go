package core

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/threadport/internal/thread/goid"
)

// Mutex is an exclusive lock with two variants.
//
// The zero value is the static variant: usable immediately, with no Init
// call, from package-level variables declared anywhere. Static mutexes
// keep no lock state of their own; the process-wide super pair arbitrates
// them, so they trade throughput for zero-initialization.
//
// Init or InitRecursive switches a mutex to the dynamic variant, backed
// by its own sync.Mutex. Dynamic is the variant for every lock created at
// runtime. Locking a fast (non-recursive) dynamic mutex twice from one
// thread has no defined behavior; callers that need recursion must use
// InitRecursive.
//
// Misuse (unlocking an unheld mutex, destroying a held or static mutex)
// is a fatal error, not a recoverable one.
type Mutex struct {
	// dyn is nil for the static variant.
	dyn *dynMutex

	// locked and contention belong to the static variant and are only
	// ever touched under superMutex.
	locked     bool
	contention uint
}

// dynMutex backs the dynamic variant. The recursive flavor tracks its
// owner and depth; the fast flavor is a bare sync.Mutex.
type dynMutex struct {
	inner     sync.Mutex
	recursive bool

	// owner is the goroutine ID holding a recursive mutex, 0 when free.
	// Written by the owner while holding inner; read by anyone.
	owner atomic.Int64

	// depth is the recursion count. Only the owner touches it, and only
	// while inner is held, so it needs no atomics.
	depth uint
}

// Init makes m a dynamic mutex with fast (non-recursive) locking.
// Recursive locking of a fast mutex is undefined; it deadlocks here.
func (m *Mutex) Init() {
	m.dyn = &dynMutex{}
}

// InitRecursive makes m a dynamic mutex that the holding thread may lock
// again; each Lock must be balanced by an Unlock.
func (m *Mutex) InitRecursive() {
	m.dyn = &dynMutex{recursive: true}
}

// Destroy releases a dynamic mutex. Destroying a held mutex or a static
// mutex panics.
func (m *Mutex) Destroy() {
	d := m.dyn
	if d == nil {
		panic("threadport: destroy of static mutex")
	}
	if d.recursive {
		if d.owner.Load() != 0 {
			panic("threadport: destroy of locked mutex")
		}
	} else {
		if !d.inner.TryLock() {
			panic("threadport: destroy of locked mutex")
		}
		d.inner.Unlock()
	}
	m.dyn = nil
}

// Lock acquires m, blocking until it is available.
//
// The static variant parks on the super condition variable with the
// caller's cancellability suspended for the duration: a cancellation
// exit while arbitrating under the super pair would strand every other
// static mutex and the key registry.
func (m *Mutex) Lock() {
	if d := m.dyn; d != nil {
		d.lock()
		return
	}
	m.lockStatic()
}

// TryLock acquires m if it is free and reports whether it did.
func (m *Mutex) TryLock() bool {
	if d := m.dyn; d != nil {
		return d.tryLock()
	}
	return m.tryLockStatic()
}

// Unlock releases m. Unlocking a mutex the caller does not hold is a
// fatal error.
func (m *Mutex) Unlock() {
	if d := m.dyn; d != nil {
		d.unlock()
		return
	}
	m.unlockStatic()
}

func (m *Mutex) lockStatic() {
	state := SaveCancel()
	superMutex.Lock()
	for m.locked {
		m.contention++
		superCond.Wait(&superMutex)
		m.contention--
	}
	m.locked = true
	superMutex.Unlock()
	RestoreCancel(state)
}

func (m *Mutex) tryLockStatic() bool {
	// Never parks on superCond, so no cancellation state to suspend.
	superMutex.Lock()
	acquired := !m.locked
	if acquired {
		m.locked = true
	}
	superMutex.Unlock()
	return acquired
}

func (m *Mutex) unlockStatic() {
	superMutex.Lock()
	if !m.locked {
		superMutex.Unlock()
		panic("threadport: unlock of unlocked static mutex")
	}
	m.locked = false
	// Wake-all: woken lockers re-check locked and re-park if they lose
	// the race. No ordering among them is promised.
	if m.contention > 0 {
		superCond.Broadcast()
	}
	superMutex.Unlock()
}

func (d *dynMutex) lock() {
	if d.recursive {
		self := goid.ID()
		if d.owner.Load() == self {
			d.depth++
			return
		}
		d.inner.Lock()
		d.owner.Store(self)
		d.depth = 1
		return
	}
	d.inner.Lock()
}

func (d *dynMutex) tryLock() bool {
	if d.recursive {
		self := goid.ID()
		if d.owner.Load() == self {
			d.depth++
			return true
		}
		if d.inner.TryLock() {
			d.owner.Store(self)
			d.depth = 1
			return true
		}
		return false
	}
	return d.inner.TryLock()
}

func (d *dynMutex) unlock() {
	if d.recursive {
		if d.owner.Load() != goid.ID() {
			panic("threadport: unlock of recursive mutex by non-owner")
		}
		d.depth--
		if d.depth == 0 {
			d.owner.Store(0)
			d.inner.Unlock()
		}
		return
	}
	// sync.Mutex reports unlock-of-unlocked itself, fatally.
	d.inner.Unlock()
}
