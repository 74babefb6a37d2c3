package core

import (
	"time"

	"github.com/kolkov/threadport/internal/thread/mtime"
)

// Mdate returns the current monotonic timestamp in ticks.
func Mdate() mtime.Time {
	return mtime.Now()
}

// Mwait blocks until the tick clock reaches deadline.
//
// Mwait is a cancellation point: the request is tested before the first
// block and again after every wake, including the final one, so a cancel
// delivered while the deadline expires still terminates the thread. A
// deadline already in the past tests for cancellation and returns.
func Mwait(deadline mtime.Time) {
	th := currentThread()
	wake := th.wakeChan()
	for {
		th.testCancelSelf()

		delay := deadline - mtime.Now()
		if delay <= 0 {
			return
		}

		t := time.NewTimer(delay.Duration())
		select {
		case <-t.C:
		case <-wake:
			t.Stop()
		}
	}
}

// Msleep blocks for delay ticks. Like Mwait, it is a cancellation point.
//
// The deadline is fixed on entry, so interrupt wakes never stretch the
// total sleep.
func Msleep(delay mtime.Time) {
	Mwait(mtime.Now() + delay)
}
