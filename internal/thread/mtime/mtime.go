// Package mtime implements the tick clock used by all blocking primitives.
//
// Time measures both timestamps and durations in ticks, where one tick is
// one microsecond (ClockFreq ticks per second). Timestamps are read from a
// monotonic source anchored at process start, so they are comparable across
// goroutines and never jump backwards with wall-clock adjustments.
//
// Conversions from ticks to coarser units always round up (MsCeil, SecCeil):
// a wait derived from a tick value may fire late but never early.
package mtime

import (
	"math"
	"time"
)

// Time is a timestamp or duration in ticks (microseconds).
//
// Timestamps are ticks since an arbitrary per-process origin; durations are
// plain tick counts. The two are mixed freely by arithmetic, as in
// Now()+FromMs(50).
type Time int64

const (
	// ClockFreq is the number of ticks per second.
	ClockFreq Time = 1000000

	// TickFromMs is the number of ticks per millisecond.
	TickFromMs Time = ClockFreq / 1000

	// maxDuration is the largest tick count representable as a
	// time.Duration without overflow (time.Duration is nanoseconds).
	maxDuration Time = math.MaxInt64 / 1000
)

// origin anchors the monotonic timestamp scale. time.Since uses the
// monotonic reading embedded in origin, never the wall clock.
var origin = time.Now()

// Now returns the current monotonic timestamp in ticks.
func Now() Time {
	return Time(time.Since(origin) / time.Microsecond)
}

// Wall returns the current wall-clock time in ticks since the Unix epoch.
//
// Resolution is one second. This matches the coarse realtime basis used by
// wall-clock condition variable deadlines, where sub-second precision is
// not promised.
func Wall() Time {
	return Time(time.Now().Unix()) * ClockFreq
}

// FromDuration converts a time.Duration to ticks, truncating sub-tick
// precision.
func FromDuration(d time.Duration) Time {
	return Time(d / time.Microsecond)
}

// FromMs converts a millisecond count to ticks.
func FromMs(ms int64) Time {
	return Time(ms) * TickFromMs
}

// FromSec converts a second count to ticks.
func FromSec(sec int64) Time {
	return Time(sec) * ClockFreq
}

// Duration converts a tick count to a time.Duration.
//
// Values too large to represent in nanoseconds are clamped to the maximum
// duration rather than wrapping; a clamped delay of ~292 years is
// indistinguishable from infinite for every caller in this module.
// Negative values clamp to zero.
func (t Time) Duration() time.Duration {
	if t <= 0 {
		return 0
	}
	if t > maxDuration {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(t) * time.Microsecond
}

// MsCeil converts ticks to milliseconds, rounding up.
//
// Rounding up guarantees that a wait expressed in milliseconds covers at
// least the requested tick count. Negative values clamp to zero.
func (t Time) MsCeil() int64 {
	if t <= 0 {
		return 0
	}
	return int64((t + TickFromMs - 1) / TickFromMs)
}

// SecCeil converts ticks to seconds, rounding up. Negative values clamp
// to zero.
func (t Time) SecCeil() int64 {
	if t <= 0 {
		return 0
	}
	return int64((t + ClockFreq - 1) / ClockFreq)
}
