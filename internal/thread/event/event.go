// Package event implements a manual-reset wake flag.
//
// An Event is the select-friendly analog of a manual-reset kernel event:
// Set wakes every goroutine currently blocked on the event and leaves the
// event signaled, so later waiters pass through immediately until someone
// calls Reset. This is the wake-all primitive behind the condition
// variable, where signal and broadcast are deliberately the same
// operation.
//
// Waiters do not call a blocking method on the event. They capture the
// wait channel with Done and select on it alongside whatever else can end
// their wait (a deadline, a cancellation interrupt). Set closes the
// current channel; Reset installs a fresh one. A waiter that captured a
// channel before Set always observes the wake even if another waiter
// resets the event first, which is exactly the wake-all contract.
package event

import "sync"

// Event is a manual-reset wake flag. The zero value is not usable; call
// New.
type Event struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{} // closed while set, replaced by Reset
}

// New returns a new event in the unsignaled state.
func New() *Event {
	return &Event{ch: make(chan struct{})}
}

// Set signals the event, waking all current waiters. The event stays
// signaled until Reset.
func (e *Event) Set() {
	e.mu.Lock()
	if !e.set {
		e.set = true
		close(e.ch)
	}
	e.mu.Unlock()
}

// Reset returns the event to the unsignaled state. Waiters that captured
// the wait channel before the preceding Set still wake; waiters that
// capture it after Reset block until the next Set.
func (e *Event) Reset() {
	e.mu.Lock()
	if e.set {
		e.set = false
		e.ch = make(chan struct{})
	}
	e.mu.Unlock()
}

// Done returns the current wait channel. The channel is closed when the
// event is (or becomes) signaled. Capture the channel before releasing
// any lock that orders you against the signaler, then select on it.
func (e *Event) Done() <-chan struct{} {
	e.mu.Lock()
	ch := e.ch
	e.mu.Unlock()
	return ch
}

// IsSet reports whether the event is currently signaled.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	s := e.set
	e.mu.Unlock()
	return s
}
