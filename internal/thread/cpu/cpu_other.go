//go:build !linux

// Package cpu reports how many CPUs the process may actually run on.
//
// On linux the count comes from the scheduler affinity mask rather than
// the machine topology, so a process pinned to a subset of cores reports
// that subset. Other platforms fall back to runtime.NumCPU, which already
// folds in the process CPU quota where the runtime supports it.
package cpu

import "runtime"

// Count returns the number of CPUs usable by the calling process.
// Without an affinity query this is the runtime's count, and always at
// least 1.
func Count() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}
