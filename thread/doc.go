// Package thread provides portable concurrency primitives with
// pthread-like semantics on plain goroutines.
//
// The package is a port of a media player's threading layer: mutexes
// that work from their zero value, condition variables with a selectable
// clock basis, read-write locks with recursive read acquisition,
// thread-local storage with exit destructors, one-shot and periodic
// timers, and a cooperative cancellation protocol. None of these need
// CGO or OS threads; everything is built from goroutines, channels, and
// the sync package.
//
// # Quick Start
//
//	package main
//
//	import (
//		"fmt"
//
//		"github.com/kolkov/threadport/thread"
//	)
//
//	var mu thread.Mutex // static: no initialization needed
//
//	func main() {
//		th, err := thread.Spawn(func(data any) any {
//			mu.Lock()
//			defer mu.Unlock()
//			return fmt.Sprintf("hello from %v", data)
//		}, "worker", false, thread.PriorityNormal)
//		if err != nil {
//			panic(err)
//		}
//		fmt.Println(thread.Join(th))
//	}
//
// # API Overview
//
// The package provides:
//   - Thread lifecycle: [Spawn], [Join], [Detach], [SetPriority]
//   - Cancellation: [Cancel], [TestCancel], [SaveCancel],
//     [RestoreCancel], [PushCleanup], [PopCleanup], [NewCleanupGuard]
//   - Locks: [Mutex] (static and dynamic), [RWLock], [Semaphore]
//   - Condition variables: [Cond] with [ClockMonotonic] or [ClockWall]
//     deadlines
//   - Thread-local storage: [CreateKey], [DeleteKey], [SetLocal],
//     [GetLocal]
//   - Clock and timers: [Mdate], [Msleep], [Mwait], [TimerCreate]
//   - Host queries: [NumCPU], [GetInfo]
//
// # Cancellation
//
// Cancellation is cooperative. Cancel files a request; the target
// terminates at its next cancellation point: a condition wait, a
// semaphore wait, Msleep, Mwait, Join, or an explicit TestCancel. At
// delivery the thread's cleanup handlers run in reverse push order and
// the thread unwinds without resuming, so code after the blocking call
// never executes. Handlers registered through [NewCleanupGuard] compose
// with defer and run exactly once on every exit path:
//
//	res := acquire()
//	g := thread.NewCleanupGuard(release, res)
//	defer g.Pop(true)
//	thread.Msleep(thread.FromSec(10)) // cancellable; release still runs
//
// Only threads started by [Spawn] are cancellable. On other goroutines
// the whole protocol is inert: TestCancel returns, handlers are plain
// scope cleanup, waits are never interrupted.
//
// # Static Primitives
//
// A zero-value Mutex is immediately usable from package-level
// variables, with no init function and no constructor ordering
// concerns. Static mutexes are arbitrated by one process-wide lock
// pair, so they trade throughput for zero initialization; create
// dynamic mutexes with Init for anything contended. A zero-value Cond
// degrades to a coarse timed poll and never loses a deadline, so
// static condition variables remain correct, just slow.
//
// # Time
//
// All waiting is expressed in ticks of the monotonic clock, one
// microsecond per tick ([ClockFreq] per second). The clock never goes
// backwards and is unaffected by wall-clock steps. Deadline waits
// recompute their remaining delay from the clock after every wake, so
// interrupts never stretch a timeout.
//
// # Compatibility
//
//   - Go version: 1.24 or later
//   - CGO requirement: none
//   - Operating systems: Linux, macOS, Windows (CPU affinity queries
//     are Linux-only; other platforms use the runtime CPU count)
//
// # Links
//
// Project repository:
// https://github.com/kolkov/threadport
//
// Documentation:
// https://pkg.go.dev/github.com/kolkov/threadport/thread
package thread
