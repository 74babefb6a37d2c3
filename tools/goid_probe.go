//go:build ignore

// goid_probe validates the stack-header parse that internal/thread/goid
// relies on against the running Go toolchain.
//
// The thread layer keys every per-goroutine structure by the ID parsed
// from runtime.Stack's header line ("goroutine 123 [running]:"). That
// format is stable in practice but not covered by the Go 1 compatibility
// promise, so run this probe when qualifying a new Go release:
//
//	go run tools/goid_probe.go
//
// It prints the raw header bytes, the parsed ID, a uniqueness check over
// a batch of spawned goroutines, and the cost of a single parse.
package main

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/kolkov/threadport/internal/thread/goid"
)

func main() {
	fmt.Printf("go version:  %s\n", runtime.Version())
	fmt.Printf("GOOS/GOARCH: %s/%s\n\n", runtime.GOOS, runtime.GOARCH)

	// Raw header line, so a format change is visible even if the parse
	// happens to survive it.
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := buf[:n]
	for i, b := range header {
		if b == '\n' {
			header = header[:i]
			break
		}
	}
	fmt.Printf("stack header: %q\n", header)

	self := goid.ID()
	fmt.Printf("parsed ID:    %d\n", self)
	if self == 0 {
		fmt.Println("\nFAIL: header did not parse; the runtime's stack format changed")
		os.Exit(1)
	}

	// Every goroutine must see a distinct, nonzero ID, and All must
	// report each of them while they are still alive.
	const workers = 64
	ids := make([]int64, workers)
	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	var once sync.Once
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			ids[slot] = goid.ID()
			once.Do(func() { close(started) })
			<-release
		}(i)
	}
	<-started
	// Give the remaining workers a moment to record their IDs before
	// the dump is taken.
	time.Sleep(50 * time.Millisecond)

	live := make(map[int64]bool)
	for _, id := range goid.All() {
		live[id] = true
	}
	close(release)
	wg.Wait()

	seen := make(map[int64]bool)
	dupes, zeros, missing := 0, 0, 0
	for _, id := range ids {
		switch {
		case id == 0:
			zeros++
		case seen[id]:
			dupes++
		default:
			seen[id] = true
		}
		if id != 0 && !live[id] {
			missing++
		}
	}
	fmt.Printf("workers:      %d spawned, %d zero IDs, %d duplicates, %d absent from All\n",
		workers, zeros, dupes, missing)

	const samples = 10000
	start := time.Now()
	for i := 0; i < samples; i++ {
		goid.ID()
	}
	perCall := time.Since(start) / samples
	fmt.Printf("parse cost:   %v per call\n", perCall)

	if zeros > 0 || dupes > 0 || missing > 0 {
		fmt.Println("\nFAIL: goroutine identity is not reliable on this toolchain")
		os.Exit(1)
	}
	fmt.Println("\nOK: stack-header parse is valid on this toolchain")
}
