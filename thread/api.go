// Package thread provides the public API for the threadport
// concurrency-primitives layer.
//
// See doc.go for detailed documentation and examples.
package thread

import (
	"time"

	"github.com/kolkov/threadport/internal/thread/core"
	"github.com/kolkov/threadport/internal/thread/cpu"
	"github.com/kolkov/threadport/internal/thread/mtime"
	"github.com/kolkov/threadport/internal/thread/timer"
)

// The primitive types are aliases of their implementations, so the zero
// values documented there (static Mutex, uninitialized Cond) work
// through this package unchanged.
type (
	// Mutex is an exclusive lock. The zero value is the static variant,
	// usable with no initialization; Init and InitRecursive switch it to
	// the dynamic variant.
	Mutex = core.Mutex

	// Cond is a condition variable with broadcast-only wakeup: Signal
	// and Broadcast both wake every current waiter.
	Cond = core.Cond

	// ClockBasis selects the time source of a Cond's TimedWait
	// deadlines.
	ClockBasis = core.ClockBasis

	// RWLock is a read-write lock with recursive read acquisition.
	RWLock = core.RWLock

	// Semaphore is a counting semaphore with a cancellable Wait.
	Semaphore = core.Semaphore

	// Key is a handle to one thread-local variable; see CreateKey.
	Key = core.Key

	// Thread is the record of a thread started by Spawn.
	Thread = core.Thread

	// Priority is the scheduling hint accepted by Spawn and
	// SetPriority. It is stored and reported but has no scheduling
	// effect on this host.
	Priority = core.Priority

	// CleanupGuard is a scoped cancellation cleanup handler; see
	// NewCleanupGuard.
	CleanupGuard = core.CleanupGuard

	// Timer fires a callback once or periodically; see TimerCreate.
	Timer = timer.Timer

	// Tick is a timestamp or duration on the monotonic clock, in
	// microsecond ticks.
	Tick = mtime.Time
)

// ClockFreq is the tick rate of the monotonic clock: ticks per second.
const ClockFreq = mtime.ClockFreq

const (
	// ClockMonotonic measures TimedWait deadlines on the tick clock.
	ClockMonotonic = core.ClockMonotonic

	// ClockWall measures TimedWait deadlines on the wall clock, in
	// whole-second ticks since the Unix epoch.
	ClockWall = core.ClockWall
)

const (
	PriorityLow      = core.PriorityLow
	PriorityNormal   = core.PriorityNormal
	PriorityHigh     = core.PriorityHigh
	PriorityHighest  = core.PriorityHighest
	PriorityRealtime = core.PriorityRealtime
)

var (
	// ErrTooManyKeys is returned by CreateKey when the thread-local key
	// arena is exhausted.
	ErrTooManyKeys = core.ErrTooManyKeys

	// ErrTooManyThreads is returned by Spawn at the live-thread cap.
	ErrTooManyThreads = core.ErrTooManyThreads
)

// Spawn starts entry(data) on a new managed thread and returns its
// record.
//
// The record must be passed to Join exactly once, unless detached is
// true, in which case the thread releases itself at exit and must never
// be joined. prio is stored as a scheduling hint; it has no scheduling
// effect on this host.
//
// Only threads started by Spawn participate in cancellation: Cancel,
// cleanup handlers, and thread-local destructor drain all hang off the
// record Spawn creates. The record is fully initialized before entry
// runs, so entry may rely on it from its first statement.
//
//	th, err := thread.Spawn(worker, job, false, thread.PriorityNormal)
//	if err != nil {
//		return err
//	}
//	result := thread.Join(th)
func Spawn(entry func(any) any, data any, detached bool, prio Priority) (*Thread, error) {
	return core.Spawn(entry, data, detached, prio)
}

// Join blocks until t terminates and returns the value its entry
// returned, or nil if t was cancelled.
//
// Each thread may be joined exactly once. Join is a cancellation point:
// a joiner that is itself cancelled exits without having joined, and t
// stays joinable. Joining nil, a detached thread, the calling thread
// itself, or an already-joined thread panics.
func Join(t *Thread) any {
	return core.Join(t)
}

// Detach marks t as detached: its record is released when it exits, and
// joining it becomes misuse. Detaching twice panics.
func Detach(t *Thread) {
	core.Detach(t)
}

// Cancel requests that t terminate at its next cancellation point.
//
// Cancel returns immediately. If t is blocked in a cancellation point
// (a condition wait, semaphore wait, sleep, or join), the wait is woken
// to observe the request; delivery then runs t's cleanup handlers in
// reverse push order and terminates t without resuming it. Cancelling
// nil is a no-op.
func Cancel(t *Thread) {
	core.Cancel(t)
}

// TestCancel is the explicit cancellation point: it terminates the
// calling thread if a cancellation request is pending and delivery is
// enabled, and otherwise returns. A no-op on goroutines not started by
// Spawn.
func TestCancel() {
	core.TestCancel()
}

// SaveCancel disables cancellation delivery for the calling thread and
// returns the previous state for RestoreCancel. Requests arriving while
// delivery is disabled stay pending; they are delivered at the first
// cancellation point after the state is restored.
func SaveCancel() bool {
	return core.SaveCancel()
}

// RestoreCancel reinstates the delivery state returned by the matching
// SaveCancel. The pair must nest strictly; restoring with delivery
// still enabled panics.
func RestoreCancel(state bool) {
	core.RestoreCancel(state)
}

// PushCleanup registers proc to run with data if the calling thread is
// cancelled. Handlers run newest-first on the cancellation path only; a
// thread that returns normally discards them unrun. Every push must be
// balanced by a PopCleanup on the normal path.
//
// NewCleanupGuard is the preferred form; it releases correctly on every
// exit path with a single deferred call.
func PushCleanup(proc func(any), data any) {
	core.PushCleanup(proc, data)
}

// PopCleanup unregisters the newest cleanup handler without running it.
func PopCleanup() {
	core.PopCleanup()
}

// NewCleanupGuard registers proc as a cancellation cleanup handler and
// returns a guard that unregisters it on any exit path:
//
//	res := acquire()
//	g := thread.NewCleanupGuard(release, res)
//	defer g.Pop(true)
//
// runs release(res) exactly once whether the scope returns, panics, or
// is cancelled mid-wait. Pop(false) unregisters without running, for
// scopes that hand the resource off.
func NewCleanupGuard(proc func(any), data any) *CleanupGuard {
	return core.NewCleanupGuard(proc, data)
}

// SetPriority updates t's stored scheduling hint.
func SetPriority(t *Thread, prio Priority) {
	core.SetPriority(t, prio)
}

// LiveThreads reports the number of managed threads currently running.
func LiveThreads() int {
	return core.LiveThreads()
}

// CreateKey allocates a thread-local variable. Every managed thread
// sees its own value for the key, initially nil.
//
// If destroy is non-nil, it runs at thread exit for each thread that
// leaves a non-nil value in the key, with that value as argument and
// the stored value already cleared. Destructors run newest-key-first
// and exactly once per value.
//
// CreateKey fails with ErrTooManyKeys when the key arena is exhausted;
// DeleteKey frees a slot for reuse.
func CreateKey(destroy func(any)) (Key, error) {
	return core.CreateKey(destroy)
}

// DeleteKey retires a key. Stored values are abandoned without running
// the destructor; using the key afterwards panics.
func DeleteKey(k Key) {
	core.DeleteKey(k)
}

// SetLocal stores value in the calling goroutine's slot for k. Storing
// nil clears the slot, so the key's destructor will not run for this
// thread.
func SetLocal(k Key, value any) error {
	return core.SetLocal(k, value)
}

// GetLocal returns the calling goroutine's value for k, nil if none was
// stored.
func GetLocal(k Key) any {
	return core.GetLocal(k)
}

// ReapStaleLocals drops thread-local values left behind by goroutines
// that exited without the managed teardown (SetLocal from a plain
// goroutine, never drained). It returns the number of goroutines whose
// values were dropped. Destructors do not run; the owning goroutine is
// gone.
//
// Long-running processes that touch thread-locals from unmanaged
// goroutines should call this periodically.
func ReapStaleLocals() int {
	return core.ReapStaleLocals()
}

// Mdate returns the current timestamp on the monotonic clock.
func Mdate() Tick {
	return core.Mdate()
}

// Msleep blocks for delay ticks. It is a cancellation point and never
// returns early: cancellation interrupts that are not delivered resume
// the sleep until the full delay has elapsed.
func Msleep(delay Tick) {
	core.Msleep(delay)
}

// Mwait blocks until the monotonic clock reaches deadline. Like Msleep
// it is a cancellation point.
func Mwait(deadline Tick) {
	core.Mwait(deadline)
}

// FromMs converts milliseconds to ticks.
func FromMs(ms int64) Tick {
	return mtime.FromMs(ms)
}

// FromSec converts seconds to ticks.
func FromSec(sec int64) Tick {
	return mtime.FromSec(sec)
}

// FromDuration converts a standard-library duration to ticks, rounding
// toward zero.
func FromDuration(d time.Duration) Tick {
	return mtime.FromDuration(d)
}

// NumCPU returns the number of CPUs the process may run on: the
// scheduler affinity mask where the platform exposes one, the runtime
// count otherwise. Always at least 1.
func NumCPU() int {
	return cpu.Count()
}

// TimerCreate creates a disarmed timer that invokes fn(data) when it
// fires. The callback runs on its own service goroutine, outside any
// managed thread.
//
// Use Schedule to arm it and Destroy to release it:
//
//	t, _ := thread.TimerCreate(onTick, conn)
//	defer t.Destroy()
//	t.Schedule(false, thread.FromMs(100), thread.FromMs(100))
//
// The error result is reserved for hosts where timer creation can
// fail; it is always nil here.
func TimerCreate(fn func(any), data any) (*Timer, error) {
	return timer.New(fn, data), nil
}
