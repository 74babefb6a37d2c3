package core

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kolkov/threadport/internal/thread/goid"
)

// Priority is a scheduling hint carried on the thread record.
//
// The host scheduler exposes no per-goroutine priorities, so the value
// has no scheduling effect here: Spawn stores it, Priority reports it,
// and ports to hosts that can honor it may. PriorityLow is the zero
// value and the default.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityHighest
	PriorityRealtime
)

// maxThreads caps live managed threads. A variable so tests can lower
// it; the default is far beyond any reasonable workload.
var maxThreads = 1 << 16

var (
	// running maps goroutine id to the thread record, for the goroutines
	// created through Spawn. Everything cancellation-related starts with
	// a lookup here.
	running sync.Map

	// liveThreads counts records between Spawn and teardown.
	liveThreads atomic.Int64
)

// Thread is the per-thread record behind every managed goroutine.
//
// The record is fully initialized before the goroutine starts, so entry
// code can rely on cancellation state, the interrupt channel, and the
// stored priority from its first instruction.
type Thread struct {
	entry func(any) any
	data  any

	// result holds entry's return value. A cancelled thread never
	// stores one, so joiners of a cancelled thread read nil. Written
	// before done closes; read only after.
	result any

	// gid is set by the trampoline before entry runs.
	gid int64

	detached atomic.Bool
	joined   atomic.Bool
	priority atomic.Int32

	// killable gates cancellation delivery. Confined to the owning
	// goroutine; Spawn leaves it false so a request arriving before the
	// trampoline runs stays pending rather than killing a half-started
	// thread.
	killable bool

	// unwinding marks that the cancellation path has run the cleanup
	// stack; registered guards and pops become inert.
	unwinding bool

	// killed is the cancellation request flag, set by any thread.
	killed atomic.Bool

	// cleaners is the LIFO cleanup-handler stack, confined to the
	// owning goroutine.
	cleaners *cleanupEntry

	// wake holds at most one pending interrupt token. Cancel posts it;
	// interruptible waits consume it and re-test the request flag.
	wake chan struct{}

	// done closes after teardown: result stored, thread-locals drained,
	// record withdrawn.
	done chan struct{}
}

// Spawn starts entry(data) on a new managed thread.
//
// The returned record must be passed to Join exactly once, unless the
// thread is detached, in which case it tears itself down at exit and
// joining it panics. Spawn fails with ErrTooManyThreads at the live
// thread cap.
func Spawn(entry func(any) any, data any, detached bool, prio Priority) (*Thread, error) {
	if entry == nil {
		panic("threadport: spawn with nil entry")
	}
	if liveThreads.Add(1) > int64(maxThreads) {
		liveThreads.Add(-1)
		return nil, fmt.Errorf("spawn: %w", ErrTooManyThreads)
	}
	th := &Thread{
		entry: entry,
		data:  data,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	th.priority.Store(int32(prio))
	if detached {
		th.detached.Store(true)
	}
	go th.run()
	return th, nil
}

// run is the trampoline every managed thread starts in. It publishes
// the record under the goroutine id, enables cancellation, and runs
// entry; the deferred teardown runs whether entry returns, is cancelled,
// or panics.
func (th *Thread) run() {
	gid := goid.ID()
	th.gid = gid
	running.Store(gid, th)
	defer th.finish(gid)
	th.killable = true
	th.result = th.entry(th.data)
}

// finish tears the thread down: thread-local destructor drain, record
// withdrawal, completion signal, in that order. It runs after entry's
// own deferred functions.
func (th *Thread) finish(gid int64) {
	// Teardown is not cancellable; a destructor blocking in a
	// cancellation point must not restart the exit.
	th.killable = false
	drainLocals(gid)
	running.Delete(gid)
	liveThreads.Add(-1)
	close(th.done)
}

// Join blocks until t terminates and returns entry's result, nil if t
// was cancelled. Each thread may be joined once; joining a detached
// thread, the calling thread itself, or nil panics.
//
// Join is a cancellation point: a cancelled joiner exits without having
// joined, leaving t joinable by someone else.
func Join(t *Thread) any {
	if t == nil {
		panic("threadport: join of nil thread")
	}
	if t.detached.Load() {
		panic("threadport: join of detached thread")
	}
	self := currentThread()
	if self == t {
		panic("threadport: thread joining itself")
	}
	wake := self.wakeChan()
	for {
		self.testCancelSelf()
		select {
		case <-t.done:
			if t.joined.Swap(true) {
				panic("threadport: thread joined twice")
			}
			return t.result
		case <-wake:
		}
	}
}

// Detach marks t as detached: its record tears itself down at exit and
// no one may join it. Detaching twice panics. Detaching a thread that
// already terminated just releases the record.
func Detach(t *Thread) {
	if t == nil {
		panic("threadport: detach of nil thread")
	}
	if t.detached.Swap(true) {
		panic("threadport: thread detached twice")
	}
}

// Cancel requests that t terminate at its next cancellation point. The
// request is asynchronous: Cancel returns immediately, and a wait t is
// currently blocked in is woken to observe the request. Cancelling nil
// is a no-op, matching the rest of the protocol on unmanaged
// goroutines.
func Cancel(t *Thread) {
	if t == nil {
		return
	}
	t.killed.Store(true)
	t.poke()
}

// poke posts the one-shot interrupt token. A token already pending is
// enough; waits re-test the request flag on every wake.
func (t *Thread) poke() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// SetPriority updates the stored scheduling hint. Like the priority
// passed to Spawn it has no scheduling effect on this host.
func SetPriority(t *Thread, prio Priority) {
	t.priority.Store(int32(prio))
}

// Priority reports the thread's stored scheduling hint.
func (t *Thread) Priority() Priority {
	return Priority(t.priority.Load())
}

// LiveThreads reports the number of managed threads currently between
// Spawn and teardown.
func LiveThreads() int {
	return int(liveThreads.Load())
}
