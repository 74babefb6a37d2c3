// stress.go implements the 'threadport stress' command.
package main

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/kolkov/threadport/thread"
)

// stressCommand implements the 'threadport stress' command.
//
// It runs the selected workloads against the primitives layer and
// fails the process on the first broken invariant. With no flags the
// built-in default scenario runs; --scenario loads a YAML file.
//
// Example:
//
//	threadport stress
//	threadport stress --scenario nightly.yaml
func stressCommand(args []string) {
	scenarioPath := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--scenario", "-s":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --scenario requires a file path")
				os.Exit(1)
			}
			i++
			scenarioPath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "Unknown stress flag: %s\n\n", args[i])
			printUsage()
			os.Exit(1)
		}
	}

	scenario := defaultScenario()
	if scenarioPath != "" {
		var err error
		scenario, err = loadScenario(scenarioPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if err := runStress(scenario, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Stress failed: %v\n", err)
		os.Exit(1)
	}
}

// runStress runs each workload of the scenario in order, reporting to w.
func runStress(s Scenario, w io.Writer) error {
	fmt.Fprintf(w, "scenario %q: %d threads, %d iterations, %d usable CPUs\n",
		s.Name, s.Threads, s.Iterations, thread.NumCPU())

	for _, name := range s.Workloads {
		start := time.Now()
		if err := runWorkload(name, s); err != nil {
			return fmt.Errorf("workload %s: %w", name, err)
		}
		fmt.Fprintf(w, "  %-8s ok (%s)\n", name, time.Since(start).Round(time.Millisecond))
	}

	if reaped := thread.ReapStaleLocals(); reaped > 0 {
		fmt.Fprintf(w, "reaped %d stale thread-local maps\n", reaped)
	}
	fmt.Fprintf(w, "all %d workloads passed; %d threads live\n",
		len(s.Workloads), thread.LiveThreads())
	return nil
}

func runWorkload(name string, s Scenario) error {
	switch name {
	case "mutex":
		return stressMutex(s)
	case "rwlock":
		return stressRWLock(s)
	case "cond":
		return stressCond(s)
	case "sem":
		return stressSem(s)
	case "tls":
		return stressTLS(s)
	case "cancel":
		return stressCancel(s)
	case "timer":
		return stressTimer(s)
	default:
		return fmt.Errorf("unknown workload %q", name)
	}
}

// spawnWorkers starts n copies of entry. On a spawn failure the already
// started workers are cancelled and joined before the error returns.
func spawnWorkers(n int, entry func(any) any) ([]*thread.Thread, error) {
	workers := make([]*thread.Thread, 0, n)
	for i := 0; i < n; i++ {
		th, err := thread.Spawn(entry, nil, false, thread.PriorityNormal)
		if err != nil {
			for _, w := range workers {
				thread.Cancel(w)
				thread.Join(w)
			}
			return nil, err
		}
		workers = append(workers, th)
	}
	return workers, nil
}

func joinAll(workers []*thread.Thread) {
	for _, w := range workers {
		thread.Join(w)
	}
}

// stressMutex hammers one dynamic and one static mutex and verifies no
// increment is lost on either.
func stressMutex(s Scenario) error {
	var static thread.Mutex
	var dynamic thread.Mutex
	dynamic.Init()
	defer dynamic.Destroy()

	var staticCount, dynamicCount int

	workers, err := spawnWorkers(s.Threads, func(any) any {
		for n := 0; n < s.Iterations; n++ {
			dynamic.Lock()
			dynamicCount++
			dynamic.Unlock()
			static.Lock()
			staticCount++
			static.Unlock()
		}
		return nil
	})
	if err != nil {
		return err
	}
	joinAll(workers)

	want := s.Threads * s.Iterations
	if dynamicCount != want {
		return fmt.Errorf("dynamic mutex count = %d, want %d", dynamicCount, want)
	}
	if staticCount != want {
		return fmt.Errorf("static mutex count = %d, want %d", staticCount, want)
	}
	return nil
}

// stressRWLock runs writers keeping two counters in lockstep against
// readers that verify the pair through recursive read holds.
func stressRWLock(s Scenario) error {
	var rw thread.RWLock
	rw.Init()
	defer rw.Destroy()

	var a, b int
	var torn atomic.Int64

	writers := s.Threads / 4
	if writers < 1 {
		writers = 1
	}
	readers := s.Threads - writers
	if readers < 1 {
		readers = 1
	}

	writerPool, err := spawnWorkers(writers, func(any) any {
		for n := 0; n < s.Iterations; n++ {
			rw.Lock()
			a++
			b++
			rw.Unlock()
		}
		return nil
	})
	if err != nil {
		return err
	}
	readerPool, err := spawnWorkers(readers, func(any) any {
		for n := 0; n < s.Iterations; n++ {
			rw.RLock()
			rw.RLock() // recursive read hold
			if a != b {
				torn.Add(1)
			}
			rw.RUnlock()
			rw.RUnlock()
		}
		return nil
	})
	if err != nil {
		joinAll(writerPool)
		return err
	}
	joinAll(writerPool)
	joinAll(readerPool)

	if n := torn.Load(); n != 0 {
		return fmt.Errorf("%d torn reads (counters diverged under read lock)", n)
	}
	if want := writers * s.Iterations; a != want || b != want {
		return fmt.Errorf("writer counters = %d/%d, want %d", a, b, want)
	}
	return nil
}

// stressCond drives a bounded queue between producer and consumer
// threads and verifies nothing is lost or duplicated.
func stressCond(s Scenario) error {
	const capacity = 64

	var mu thread.Mutex
	mu.Init()
	defer mu.Destroy()
	var notEmpty, notFull thread.Cond
	notEmpty.Init()
	notFull.Init()
	defer notEmpty.Destroy()
	defer notFull.Destroy()

	pairs := s.Threads / 2
	if pairs < 1 {
		pairs = 1
	}

	queue := make([]int, 0, capacity)
	done := false
	var produced, consumed int64 // value sums, guarded by mu

	producers, err := spawnWorkers(pairs, func(any) any {
		for n := 0; n < s.Iterations; n++ {
			mu.Lock()
			for len(queue) == capacity && !done {
				notFull.Wait(&mu)
			}
			if done {
				mu.Unlock()
				return nil
			}
			queue = append(queue, n)
			produced += int64(n)
			notEmpty.Signal()
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return err
	}
	consumers, err := spawnWorkers(pairs, func(any) any {
		for {
			mu.Lock()
			for len(queue) == 0 && !done {
				notEmpty.Wait(&mu)
			}
			if len(queue) == 0 {
				mu.Unlock()
				return nil
			}
			v := queue[0]
			queue = queue[1:]
			consumed += int64(v)
			notFull.Signal()
			mu.Unlock()
		}
	})
	if err != nil {
		// Let the producers drain out through the done flag.
		mu.Lock()
		done = true
		notFull.Broadcast()
		mu.Unlock()
		joinAll(producers)
		return err
	}

	joinAll(producers)
	mu.Lock()
	done = true
	notEmpty.Broadcast()
	mu.Unlock()
	joinAll(consumers)

	if consumed != produced {
		return fmt.Errorf("consumed sum %d != produced sum %d", consumed, produced)
	}
	return nil
}

// stressSem runs ping-pong pairs over counting semaphores; the
// alternation count proves no permit is lost or duplicated.
func stressSem(s Scenario) error {
	pairs := s.Threads / 2
	if pairs < 1 {
		pairs = 1
	}

	var total atomic.Int64
	sems := make([]*thread.Semaphore, 0, 2*pairs)
	workers := make([]*thread.Thread, 0, 2*pairs)

	for p := 0; p < pairs; p++ {
		ping := new(thread.Semaphore)
		pong := new(thread.Semaphore)
		ping.Init(1)
		pong.Init(0)
		sems = append(sems, ping, pong)

		a, err := thread.Spawn(func(any) any {
			for n := 0; n < s.Iterations; n++ {
				ping.Wait()
				total.Add(1)
				pong.Post()
			}
			return nil
		}, nil, false, thread.PriorityNormal)
		if err != nil {
			return err
		}
		workers = append(workers, a)

		b, err := thread.Spawn(func(any) any {
			for n := 0; n < s.Iterations; n++ {
				pong.Wait()
				total.Add(1)
				ping.Post()
			}
			return nil
		}, nil, false, thread.PriorityNormal)
		if err != nil {
			thread.Cancel(a)
			thread.Join(a)
			return err
		}
		workers = append(workers, b)
	}

	joinAll(workers)
	for _, sem := range sems {
		sem.Destroy()
	}

	if want := int64(2 * pairs * s.Iterations); total.Load() != want {
		return fmt.Errorf("ping-pong total = %d, want %d", total.Load(), want)
	}
	return nil
}

// stressTLS verifies per-thread isolation of a shared key and the
// destructor count at exit: odd workers clear their value, so only the
// even ones are drained.
func stressTLS(s Scenario) error {
	var destroyed atomic.Int64
	key, err := thread.CreateKey(func(any) { destroyed.Add(1) })
	if err != nil {
		return err
	}
	defer thread.DeleteKey(key)

	var mismatches atomic.Int64
	workers := make([]*thread.Thread, 0, s.Threads)
	for i := 0; i < s.Threads; i++ {
		th, err := thread.Spawn(func(data any) any {
			id := data.(int)
			for n := 0; n < s.Iterations; n++ {
				want := fmt.Sprintf("worker-%d-%d", id, n)
				thread.SetLocal(key, want)
				if got := thread.GetLocal(key); got != want {
					mismatches.Add(1)
				}
			}
			if id%2 == 1 {
				thread.SetLocal(key, nil)
			}
			return nil
		}, i, false, thread.PriorityNormal)
		if err != nil {
			joinAll(workers)
			return err
		}
		workers = append(workers, th)
	}
	joinAll(workers)

	if n := mismatches.Load(); n != 0 {
		return fmt.Errorf("%d thread-local reads saw another thread's value", n)
	}
	wantDrained := int64((s.Threads + 1) / 2)
	if got := destroyed.Load(); got != wantDrained {
		return fmt.Errorf("destructor ran %d times, want %d", got, wantDrained)
	}
	return nil
}

// stressCancel cancels a full set of sleeping threads and verifies
// every cleanup guard ran and no thread resumed past its sleep.
func stressCancel(s Scenario) error {
	var released, resumed atomic.Int64
	ready := make(chan struct{}, s.Threads)

	workers, err := spawnWorkers(s.Threads, func(any) any {
		g := thread.NewCleanupGuard(func(any) { released.Add(1) }, nil)
		defer g.Pop(true)
		ready <- struct{}{}
		thread.Msleep(thread.FromSec(600))
		resumed.Add(1)
		return nil
	})
	if err != nil {
		return err
	}

	for range workers {
		<-ready
	}
	for _, w := range workers {
		thread.Cancel(w)
	}
	for _, w := range workers {
		if result := thread.Join(w); result != nil {
			return fmt.Errorf("cancelled thread returned %v, want nil", result)
		}
	}

	if got := released.Load(); got != int64(s.Threads) {
		return fmt.Errorf("cleanup guards ran %d times, want %d", got, s.Threads)
	}
	if got := resumed.Load(); got != 0 {
		return fmt.Errorf("%d threads resumed past a cancelled sleep", got)
	}
	return nil
}

// stressTimer fires a batch of one-shot timers plus one periodic timer
// and verifies single firing and a sane periodic rate.
func stressTimer(s Scenario) error {
	count := s.Threads
	if count > 8 {
		count = 8
	}

	fired := make(chan int, count)
	timers := make([]*thread.Timer, 0, count)
	for i := 0; i < count; i++ {
		id := i
		tm, err := thread.TimerCreate(func(any) { fired <- id }, nil)
		if err != nil {
			return err
		}
		timers = append(timers, tm)
		tm.Schedule(false, thread.FromMs(int64(10+5*i)), 0)
	}

	deadline := time.After(10 * time.Second)
	seen := make(map[int]bool, count)
	for len(seen) < count {
		select {
		case id := <-fired:
			if seen[id] {
				return fmt.Errorf("one-shot timer %d fired twice", id)
			}
			seen[id] = true
		case <-deadline:
			return fmt.Errorf("only %d of %d one-shot timers fired within 10s", len(seen), count)
		}
	}
	for _, tm := range timers {
		tm.Destroy()
	}

	var ticks atomic.Int64
	periodic, err := thread.TimerCreate(func(any) { ticks.Add(1) }, nil)
	if err != nil {
		return err
	}
	periodic.Schedule(false, thread.FromMs(5), thread.FromMs(5))
	time.Sleep(100 * time.Millisecond)
	periodic.Destroy()

	if got := ticks.Load(); got < 3 {
		return fmt.Errorf("periodic timer fired %d times in 100ms at a 5ms interval, want >= 3", got)
	}
	return nil
}
