// Package timer provides one-shot and periodic callback timers on the
// monotonic tick clock.
//
// Each armed timer is served by its own goroutine, mirroring the
// original back-end's timer-queue threads: the callback runs outside
// any managed thread, so the cancellation protocol is inert inside it.
package timer

import (
	"sync"
	"time"

	"github.com/kolkov/threadport/internal/thread/mtime"
)

// Timer invokes a fixed callback on a schedule. A Timer is either
// disarmed, armed one-shot, or armed periodic; Schedule moves it
// between these states and always retires the previous arming first.
//
// The callback may re-Schedule its own timer. It must not Destroy it:
// Destroy waits for a running callback, so destroying from inside one
// deadlocks.
type Timer struct {
	fn   func(any)
	data any

	mu sync.Mutex

	// stop retires the armed runner when closed. Nil while disarmed.
	stop chan struct{}

	// inflight counts armed runners, including one currently inside the
	// callback. Destroy waits on it.
	inflight  sync.WaitGroup
	destroyed bool
}

// New creates a disarmed timer that will invoke fn(data) when armed.
func New(fn func(any), data any) *Timer {
	if fn == nil {
		panic("threadport: timer with nil callback")
	}
	return &Timer{fn: fn, data: data}
}

// Destroy disarms t and waits for a callback already in flight to
// return. The timer is unusable afterwards; destroying twice panics.
func (t *Timer) Destroy() {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		panic("threadport: timer destroyed twice")
	}
	t.destroyed = true
	t.disarm()
	t.mu.Unlock()
	t.inflight.Wait()
}

// Schedule arms t. The previous arming, if any, is cancelled first, so
// at most one schedule is ever active.
//
// value is the first firing time: a tick deadline when absolute is
// true, a delay in ticks otherwise. An absolute deadline already in
// the past fires immediately. value == 0 disarms the timer and returns.
//
// interval == 0 arms a one-shot; a nonzero interval fires every
// interval ticks after the first firing. Periodic firings stay on the
// original grid: when the callback overruns its slot, missed slots are
// skipped rather than bunched.
func (t *Timer) Schedule(absolute bool, value, interval mtime.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		panic("threadport: schedule on destroyed timer")
	}
	t.disarm()
	if value == 0 {
		return
	}
	if absolute {
		value -= mtime.Now()
		if value < 0 {
			value = 0
		}
	}
	t.stop = make(chan struct{})
	t.inflight.Add(1)
	go t.runner(t.stop, value, interval)
}

// Overrun reports the number of periodic firings missed since the last
// call. Overrun accounting is not implemented; it always reports 0.
func (t *Timer) Overrun() int {
	return 0
}

// disarm retires the armed runner. Caller holds t.mu.
func (t *Timer) disarm() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// runner serves one arming: it sleeps to each deadline and invokes the
// callback until retired. The tick-to-duration conversion is exact
// (one tick is one microsecond), so a firing never lands before its
// deadline.
func (t *Timer) runner(stop chan struct{}, delay, interval mtime.Time) {
	defer t.inflight.Done()
	deadline := mtime.Now() + delay
	for {
		if wait := deadline - mtime.Now(); wait > 0 {
			tm := time.NewTimer(wait.Duration())
			select {
			case <-tm.C:
			case <-stop:
				tm.Stop()
				return
			}
		}

		// Retired while expiring: skip the callback.
		select {
		case <-stop:
			return
		default:
		}

		t.fn(t.data)

		if interval == 0 {
			return
		}
		deadline += interval
		if now := mtime.Now(); deadline <= now {
			missed := (now - deadline) / interval
			deadline += (missed + 1) * interval
		}
	}
}
