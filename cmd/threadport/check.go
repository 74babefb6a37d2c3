// check.go implements the 'threadport check' command.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/semver"

	"github.com/kolkov/threadport/thread"
)

// minGoVersion is the oldest Go release the primitives layer is
// supported on. The go directive of an enclosing module, when one is
// found, takes precedence.
const minGoVersion = "1.24"

// checkCommand implements the 'threadport check' command.
//
// It validates the host environment the primitives layer depends on:
// the Go runtime version, the usable CPU count, a monotonic clock that
// actually advances, and a timer subsystem that fires. Exit status 0
// means the host is usable.
func checkCommand(args []string) {
	if len(args) > 0 {
		fmt.Fprintf(os.Stderr, "Unknown check flag: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err := runCheck(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
		os.Exit(1)
	}
}

// runCheck probes the environment, reporting to w.
func runCheck(w io.Writer) error {
	info := thread.GetInfo()
	fmt.Fprintf(w, "threadport %s (%s backend)\n", info.Version, info.Backend)
	fmt.Fprintf(w, "  go runtime    %s\n", runtime.Version())
	fmt.Fprintf(w, "  usable CPUs   %d (GOMAXPROCS %d)\n", info.CPUs, runtime.GOMAXPROCS(0))

	required := minGoVersion
	if modPath := findGoMod("."); modPath != "" {
		if v := moduleGoVersion(modPath); v != "" {
			required = v
		}
	}
	if !goVersionAtLeast(runtime.Version(), required) {
		return fmt.Errorf("go runtime %s is older than required go%s", runtime.Version(), required)
	}
	fmt.Fprintf(w, "  toolchain     ok (>= go%s)\n", required)

	// The tick clock must advance by at least the slept time.
	before := thread.Mdate()
	time.Sleep(10 * time.Millisecond)
	if delta := thread.Mdate() - before; delta < thread.FromMs(10) {
		return fmt.Errorf("monotonic clock advanced only %d ticks across a 10ms sleep", delta)
	}
	fmt.Fprintf(w, "  clock         ok (%d ticks/s)\n", thread.ClockFreq)

	fired := make(chan struct{})
	tm, err := thread.TimerCreate(func(any) { close(fired) }, nil)
	if err != nil {
		return fmt.Errorf("timer create: %w", err)
	}
	tm.Schedule(false, thread.FromMs(20), 0)
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		tm.Destroy()
		return fmt.Errorf("20ms one-shot timer did not fire within 5s")
	}
	tm.Destroy()
	fmt.Fprintf(w, "  timers        ok\n")

	fmt.Fprintln(w, "environment ok")
	return nil
}

// findGoMod walks up from dir looking for a go.mod file, returning its
// path or "" when the filesystem root is reached without finding one.
func findGoMod(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		modPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(modPath); err == nil {
			return modPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// moduleGoVersion reads the go directive from a go.mod file, "" when
// the file does not parse or carries no directive.
func moduleGoVersion(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	f, err := modfile.Parse(path, data, nil)
	if err != nil || f.Go == nil {
		return ""
	}
	return f.Go.Version
}

// goVersionAtLeast reports whether a runtime version string like
// "go1.24.3" satisfies a minimum like "1.24". Development builds that
// do not parse as a release are accepted.
func goVersionAtLeast(runtimeVersion, required string) bool {
	v := "v" + strings.TrimPrefix(runtimeVersion, "go")
	if !semver.IsValid(v) {
		return true
	}
	min := "v" + required
	if !semver.IsValid(min) {
		return true
	}
	return semver.Compare(v, min) >= 0
}
