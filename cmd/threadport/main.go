// Package main implements the threadport CLI tool.
//
// The threadport tool exercises and validates the concurrency-primitives
// layer on the host it runs on. It provides:
//
//  1. Stress scenarios driving every primitive from many threads
//  2. An environment check (toolchain version, CPUs, clock, timers)
//  3. Version reporting
//
// Usage:
//
//	threadport stress                    # Run the built-in stress scenario
//	threadport stress -s scenario.yaml   # Run a scenario from a YAML file
//	threadport check                     # Validate the host environment
//
// Stress scenarios are the primary acceptance gate before deploying the
// library on a new host or Go release.
package main

import (
	"fmt"
	"os"

	"github.com/kolkov/threadport/thread"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "stress":
		stressCommand(os.Args[2:])
	case "check":
		checkCommand(os.Args[2:])
	case "version", "--version", "-v":
		info := thread.GetInfo()
		fmt.Printf("threadport version %s (%s backend, %d CPUs)\n",
			info.Version, info.Backend, info.CPUs)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`threadport - concurrency primitives exerciser

USAGE:
    threadport <command> [arguments]

COMMANDS:
    stress     Run a stress scenario over all primitives
    check      Validate the host environment for the primitives layer
    version    Show version information
    help       Show this help message

EXAMPLES:
    # Run the built-in default scenario
    threadport stress

    # Run a custom scenario
    threadport stress --scenario nightly.yaml

    # Check toolchain, CPUs, clock and timer health
    threadport check

SCENARIO FILES:
    Scenarios are YAML files selecting thread counts, iteration counts
    and the workloads to run:

        name: nightly
        threads: 16
        iterations: 50000
        workloads: [mutex, rwlock, cond, sem, tls, cancel, timer]

    Omitted fields fall back to defaults sized for the current host.

ABOUT:
    threadport ports a media player's threading layer (mutexes usable
    from their zero value, condition variables, rwlocks with recursive
    reads, thread-local storage with destructors, cooperative
    cancellation, timers) onto plain goroutines, with no CGO and no OS
    thread pinning. The stress command drives every primitive hard and
    fails loudly on any broken invariant, which makes it the acceptance
    gate for new hosts and new Go releases.

FOR MORE INFORMATION:
    Repository: https://github.com/kolkov/threadport
    Documentation: https://pkg.go.dev/github.com/kolkov/threadport/thread

`)
}
