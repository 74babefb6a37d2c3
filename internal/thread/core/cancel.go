package core

import (
	"runtime"

	"github.com/kolkov/threadport/internal/thread/goid"
)

// cleanupEntry is one frame of a thread's LIFO cleanup-handler stack.
type cleanupEntry struct {
	proc func(any)
	data any
	next *cleanupEntry
}

// currentThread returns the calling goroutine's thread record, nil when
// the goroutine was not created through Spawn.
func currentThread() *Thread {
	v, ok := running.Load(goid.ID())
	if !ok {
		return nil
	}
	return v.(*Thread)
}

// wakeChan returns the thread's interrupt channel. For unmanaged
// goroutines it is nil, which never selects: they have no interrupts to
// observe.
func (t *Thread) wakeChan() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.wake
}

// testCancelSelf delivers a pending cancellation request if delivery is
// currently enabled. Safe on a nil receiver.
func (t *Thread) testCancelSelf() {
	if t == nil {
		return
	}
	if t.killable && t.killed.Load() {
		t.cancelExit()
	}
}

// cancelExit terminates the calling thread at a cancellation point: the
// cleanup stack runs newest-first, then the goroutine unwinds. Deferred
// functions in the entry's call tree still run, followed by the
// trampoline's teardown. A cancelled thread never stores a result.
func (t *Thread) cancelExit() {
	// Delivery stays disabled from here on; a handler or deferred
	// function blocking in a cancellation point must not restart the
	// exit.
	t.killable = false
	for p := t.cleaners; p != nil; p = p.next {
		p.proc(p.data)
	}
	t.cleaners = nil
	t.unwinding = true
	runtime.Goexit()
}

// TestCancel is the explicit cancellation point: it terminates the
// calling thread if a request is pending and delivery enabled, and
// otherwise returns. A no-op on unmanaged goroutines.
func TestCancel() {
	currentThread().testCancelSelf()
}

// SaveCancel disables cancellation delivery for the calling thread and
// returns the previous state for RestoreCancel. Requests arriving while
// delivery is disabled stay pending. On unmanaged goroutines it returns
// false.
func SaveCancel() bool {
	th := currentThread()
	if th == nil {
		return false
	}
	state := th.killable
	th.killable = false
	return state
}

// RestoreCancel reinstates the delivery state returned by the matching
// SaveCancel; the pair must nest strictly, and calling it with delivery
// still enabled panics. A request that arrived while disabled is
// delivered at the next cancellation point, never inside RestoreCancel
// itself.
func RestoreCancel(state bool) {
	th := currentThread()
	if th == nil {
		return
	}
	if th.killable {
		panic("threadport: RestoreCancel without SaveCancel")
	}
	th.killable = state
}

// PushCleanup registers proc to run with data if the calling thread is
// cancelled. Handlers run newest-first on the cancellation path only; a
// thread that returns normally discards them unrun. No-op on unmanaged
// goroutines.
func PushCleanup(proc func(any), data any) {
	th := currentThread()
	if th == nil {
		return
	}
	th.cleaners = &cleanupEntry{proc: proc, data: data, next: th.cleaners}
}

// PopCleanup unregisters the newest cleanup handler without running it.
// Popping with nothing pushed panics. No-op on unmanaged goroutines and
// on a thread whose stack already ran on the cancellation path.
func PopCleanup() {
	th := currentThread()
	if th == nil || th.unwinding {
		return
	}
	if th.cleaners == nil {
		panic("threadport: cleanup pop without matching push")
	}
	th.cleaners = th.cleaners.next
}

// CleanupGuard ties a cleanup handler to a scope. NewCleanupGuard
// registers the handler like PushCleanup; Pop unregisters it on any
// exit path and optionally runs it. The usual shape is
//
//	g := core.NewCleanupGuard(release, res)
//	defer g.Pop(true)
//
// which releases on return, on panic, and on cancellation alike, and
// never twice.
type CleanupGuard struct {
	th    *Thread
	entry *cleanupEntry
	proc  func(any)
	data  any
	done  bool
}

// NewCleanupGuard registers proc as a cleanup handler for the calling
// thread. On unmanaged goroutines nothing is registered, but Pop(true)
// still runs proc, so the guard works as plain scope cleanup there too.
func NewCleanupGuard(proc func(any), data any) *CleanupGuard {
	g := &CleanupGuard{proc: proc, data: data}
	if th := currentThread(); th != nil && !th.unwinding {
		th.cleaners = &cleanupEntry{proc: proc, data: data, next: th.cleaners}
		g.th = th
		g.entry = th.cleaners
	}
	return g
}

// Pop releases the guard, running the handler when run is true. Only
// the first Pop acts. A guard whose handler already ran on the
// cancellation path is inert, which is what makes "defer g.Pop(true)"
// safe on cancelled threads. Guards must be released newest-first.
func (g *CleanupGuard) Pop(run bool) {
	if g.done {
		return
	}
	g.done = true
	if g.th != nil {
		if g.th.unwinding {
			return
		}
		if g.th.cleaners != g.entry {
			panic("threadport: cleanup guard released out of order")
		}
		g.th.cleaners = g.entry.next
	}
	if run {
		g.proc(g.data)
	}
}
