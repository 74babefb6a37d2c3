//go:build linux

// Package cpu reports how many CPUs the process may actually run on.
//
// On linux the count comes from the scheduler affinity mask rather than
// the machine topology, so a process pinned to a subset of cores reports
// that subset. Other platforms fall back to runtime.NumCPU, which already
// folds in the process CPU quota where the runtime supports it.
package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Count returns the number of CPUs usable by the calling process.
//
// The affinity mask is queried for the whole process (pid 0). If the
// query fails or reports an empty mask, the runtime's CPU count is used
// instead; the answer is always at least 1.
func Count() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return fallbackCount()
	}
	if n := set.Count(); n > 0 {
		return n
	}
	return fallbackCount()
}

func fallbackCount() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}
