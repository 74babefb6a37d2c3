package core

import (
	"time"

	"github.com/kolkov/threadport/internal/thread/event"
	"github.com/kolkov/threadport/internal/thread/mtime"
)

// ClockBasis selects the time source a condition variable's deadlines are
// measured against.
type ClockBasis uint8

const (
	// ClockMonotonic measures deadlines on the tick clock. This is the
	// basis for every internal wait and the default for Init.
	ClockMonotonic ClockBasis = iota

	// ClockWall measures deadlines on the wall clock in whole-second
	// ticks since the Unix epoch.
	ClockWall
)

// condPollInterval paces the degraded wait on a zero-value condition
// variable: 50ms per probe.
const condPollInterval = mtime.ClockFreq / 20

// Cond is a condition variable built on a manual-reset wake flag.
//
// Signal and Broadcast are the same operation: both set the flag and wake
// every thread currently waiting. There is no single-waiter wakeup; this
// is a documented, deliberately weaker contract than a textbook condition
// variable, kept for compatibility with callers tuned to its wake
// pattern. The standard discipline of re-checking the predicate after
// every wake already absorbs it.
//
// A Cond is not tied to one mutex. Each wait call names the mutex to
// release and reacquire, and concurrent waiters of one Cond must all pass
// the same mutex.
//
// The zero value is the uninitialized condition variable: Signal and
// Broadcast on it are no-ops and waits degrade to a coarse timed poll.
// Call Init or InitDaytime for real wake-up behavior.
type Cond struct {
	ev    *event.Event
	clock ClockBasis
}

// Init makes c a condition variable with monotonic deadlines.
func (c *Cond) Init() {
	c.ev = event.New()
	c.clock = ClockMonotonic
}

// InitDaytime makes c a condition variable whose TimedWait deadlines are
// wall-clock times (whole-second resolution) instead of monotonic ticks.
func (c *Cond) InitDaytime() {
	c.ev = event.New()
	c.clock = ClockWall
}

// Destroy releases c. No thread may be waiting on it.
func (c *Cond) Destroy() {
	c.ev = nil
}

// Signal wakes every thread currently waiting on c.
//
// Despite the name, this is identical to Broadcast; see the type comment.
func (c *Cond) Signal() {
	c.wakeAll()
}

// Broadcast wakes every thread currently waiting on c.
func (c *Cond) Broadcast() {
	c.wakeAll()
}

func (c *Cond) wakeAll() {
	if c.ev == nil {
		// Uninitialized: pollers notice state changes on their own.
		return
	}
	c.ev.Set()
}

// Wait atomically releases m and blocks until c is signaled, then
// reacquires m before returning.
//
// Wait is a cancellation point. The cancellation test runs with m held,
// both on entry and after an interrupt wake, so cleanup handlers observe
// the same lock state as on a classic condition wait. An asynchronous
// cancellation interrupt during the block wakes the wait to re-test the
// request; it is never surfaced as a signal.
func (c *Cond) Wait(m *Mutex) {
	if c.ev == nil {
		m.Unlock()
		Msleep(condPollInterval)
		m.Lock()
		return
	}

	th := currentThread()
	wake := th.wakeChan()
	for {
		th.testCancelSelf()

		// Capture the wait channel before releasing m so a signal
		// sent between the release and the block is not lost.
		ch := c.ev.Done()
		m.Unlock()

		select {
		case <-ch:
			m.Lock()
			c.ev.Reset()
			return
		case <-wake:
			// Cancellation interrupt: reacquire and re-test.
			m.Lock()
		}
	}
}

// TimedWait is Wait with a deadline on c's clock basis. It reports
// whether the deadline passed before a signal arrived; a true result is
// an ordinary outcome, not an error.
//
// The remaining delay is recomputed from the clock on every retry, so
// interrupt wakes never stretch or shorten the effective deadline. A
// deadline already in the past reports timeout without blocking.
func (c *Cond) TimedWait(m *Mutex, deadline mtime.Time) bool {
	if c.ev == nil {
		m.Unlock()
		remaining := deadline - c.clockNow()
		if remaining > condPollInterval {
			remaining = condPollInterval
		}
		if remaining > 0 {
			Msleep(remaining)
		}
		m.Lock()
		return c.clockNow() >= deadline
	}

	th := currentThread()
	wake := th.wakeChan()
	for {
		th.testCancelSelf()

		delay := deadline - c.clockNow()
		if delay < 0 {
			delay = 0
		}

		ch := c.ev.Done()
		m.Unlock()

		t := time.NewTimer(delay.Duration())
		select {
		case <-ch:
			t.Stop()
			m.Lock()
			c.ev.Reset()
			return false
		case <-t.C:
			m.Lock()
			c.ev.Reset()
			return true
		case <-wake:
			t.Stop()
			m.Lock()
		}
	}
}

func (c *Cond) clockNow() mtime.Time {
	if c.clock == ClockWall {
		return mtime.Wall()
	}
	return mtime.Now()
}
