// Package core implements the threading primitives behind the public
// thread package: mutexes, condition variables, semaphores, read-write
// locks, thread-local storage, thread lifecycle, and the cooperative
// cancellation protocol that ties them together.
//
// # Architecture
//
// The primitives are built from three lower-level capabilities:
//
//   - goroutine identity (internal/thread/goid), which keys every
//     per-thread structure,
//   - a manual-reset wake flag (internal/thread/event), the wake-all
//     primitive behind condition variables and semaphores,
//   - the tick clock (internal/thread/mtime), the time base for every
//     deadline and delay.
//
// Everything lives in one package because the pieces are mutually
// recursive: statically usable mutexes wait on the process-wide super
// condition variable, the thread-local registry's key list is guarded by
// the super mutex, thread teardown drains the registry, and every
// blocking wait consults the current thread record to observe
// cancellation.
//
// # The super pair
//
// One process-wide mutex/condvar pair (the super pair) arbitrates all
// static mutexes and the thread-local key list. It is created in this
// package's init, so it exists before any other package-level state can
// reach a primitive. The super mutex is never held across a user-level
// blocking call other than its own condition wait.
//
// # Cancellation
//
// Cancellation is a request flag plus a one-slot wake channel per thread
// record. Cancel sets the flag and posts the channel; every interruptible
// wait selects on the channel and re-tests the flag when woken. The flag
// is acted on only at cancellation points (condition waits, semaphore
// waits, sleeps, join, TestCancel): the thread runs its cleanup handlers
// in reverse push order and terminates via runtime.Goexit, so deferred
// functions in the entry's call tree still run, followed by the
// trampoline's own teardown (thread-local destructor drain, record
// release).
//
// Goroutines not created through Spawn have no thread record; every
// cancellation operation on them is a no-op.
package core
