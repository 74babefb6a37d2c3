package core

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kolkov/threadport/internal/thread/mtime"
)

// spawn starts entry as a joinable normal-priority thread, failing the
// test on spawn errors.
func spawn(t *testing.T, entry func(any) any) *Thread {
	t.Helper()
	th, err := Spawn(entry, nil, false, PriorityNormal)
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	return th
}

// handlerLog records cleanup-handler invocations.
type handlerLog struct {
	mu    sync.Mutex
	order []string
}

func (l *handlerLog) record(name string) func(any) {
	return func(any) {
		l.mu.Lock()
		l.order = append(l.order, name)
		l.mu.Unlock()
	}
}

func (l *handlerLog) got() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestCancel_DuringSleep verifies the core cancellation contract on a
// sleeping thread: pushed handlers run in reverse push order, the thread
// never resumes past the sleep, its result is nil, and delivery is
// prompt rather than waiting out the sleep.
func TestCancel_DuringSleep(t *testing.T) {
	log := &handlerLog{}
	var resumed atomic.Bool
	ready := make(chan struct{})

	th := spawn(t, func(any) any {
		PushCleanup(log.record("first"), nil)
		PushCleanup(log.record("second"), nil)
		PushCleanup(log.record("third"), nil)
		close(ready)
		Msleep(mtime.FromSec(60))
		resumed.Store(true)
		return "unreachable"
	})

	<-ready
	time.Sleep(50 * time.Millisecond)
	start := time.Now()
	Cancel(th)
	result := Join(th)
	elapsed := time.Since(start)

	if result != nil {
		t.Errorf("Join() of cancelled thread = %v, want nil", result)
	}
	if resumed.Load() {
		t.Error("thread resumed past the cancelled sleep")
	}
	if want := []string{"third", "second", "first"}; !sameStrings(log.got(), want) {
		t.Errorf("handler order = %v, want %v", log.got(), want)
	}
	if elapsed > 10*time.Second {
		t.Errorf("cancelled 60s sleep took %v to terminate; delivery must be prompt", elapsed)
	}
}

// TestCancel_DuringCondWait verifies cancellation of a thread blocked in
// a condition wait. The handler observes the mutex still held, the
// pthread-style idiom of unlocking it from a handler works, and the
// mutex is usable afterwards.
func TestCancel_DuringCondWait(t *testing.T) {
	var m Mutex
	m.Init()
	var c Cond
	c.Init()

	var heldInHandler atomic.Bool
	ready := make(chan struct{})

	th := spawn(t, func(any) any {
		m.Lock()
		PushCleanup(func(any) {
			heldInHandler.Store(!m.TryLock())
			m.Unlock()
		}, nil)
		close(ready)
		for {
			c.Wait(&m)
		}
	})

	<-ready
	time.Sleep(50 * time.Millisecond)
	Cancel(th)
	if got := Join(th); got != nil {
		t.Errorf("Join() of cancelled thread = %v, want nil", got)
	}
	if !heldInHandler.Load() {
		t.Error("cleanup handler found the condvar mutex unlocked; waits must reacquire before delivery")
	}

	// The handler released the mutex, so it must be free now.
	if !m.TryLock() {
		t.Fatal("mutex still held after the cleanup handler released it")
	}
	m.Unlock()
	m.Destroy()
}

// TestCancel_DuringSemWait verifies cancellation of a thread blocked on
// a semaphore, and that the cancelled waiter consumed no count.
func TestCancel_DuringSemWait(t *testing.T) {
	var s Semaphore
	s.Init(0)
	defer s.Destroy()

	var resumed atomic.Bool
	ran := 0
	ready := make(chan struct{})

	th := spawn(t, func(any) any {
		PushCleanup(func(any) { ran++ }, nil)
		close(ready)
		s.Wait()
		resumed.Store(true)
		return nil
	})

	<-ready
	time.Sleep(50 * time.Millisecond)
	Cancel(th)
	Join(th)

	if resumed.Load() {
		t.Error("thread resumed past the cancelled semaphore wait")
	}
	if ran != 1 {
		t.Errorf("cleanup handler ran %d times, want 1", ran)
	}

	s.Post()
	if !s.TryWait() {
		t.Error("count posted after the cancelled wait is gone; the waiter must not consume")
	}
}

// TestCancel_DuringJoin verifies that a joiner is itself cancellable and
// that the target stays joinable by someone else afterwards.
func TestCancel_DuringJoin(t *testing.T) {
	gate := make(chan struct{})
	target := spawn(t, func(any) any {
		<-gate
		return "target result"
	})

	var resumed atomic.Bool
	ready := make(chan struct{})
	joiner := spawn(t, func(any) any {
		close(ready)
		Join(target)
		resumed.Store(true)
		return nil
	})

	<-ready
	time.Sleep(50 * time.Millisecond)
	Cancel(joiner)
	Join(joiner)

	if resumed.Load() {
		t.Error("joiner resumed past the cancelled join")
	}

	close(gate)
	if got := Join(target); got != "target result" {
		t.Errorf("Join(target) after cancelled joiner = %v, want %q", got, "target result")
	}
}

// TestCancel_DrainsLocals verifies that a cancelled thread still gets
// its thread-local destructor drain.
func TestCancel_DrainsLocals(t *testing.T) {
	drained := make(chan any, 1)
	k, err := CreateKey(func(v any) { drained <- v })
	if err != nil {
		t.Fatalf("CreateKey() error = %v", err)
	}
	defer DeleteKey(k)

	ready := make(chan struct{})
	th := spawn(t, func(any) any {
		SetLocal(k, "held resource")
		close(ready)
		Msleep(mtime.FromSec(60))
		return nil
	})

	<-ready
	time.Sleep(50 * time.Millisecond)
	Cancel(th)
	Join(th)

	select {
	case v := <-drained:
		if v != "held resource" {
			t.Errorf("destructor value = %v, want %q", v, "held resource")
		}
	default:
		t.Error("destructor never ran for a cancelled thread")
	}
}

// TestCancel_BeforeEntry verifies that a request filed before the entry
// makes progress is delivered at the first cancellation point.
func TestCancel_BeforeEntry(t *testing.T) {
	gate := make(chan struct{})
	var resumed atomic.Bool
	th := spawn(t, func(any) any {
		<-gate
		TestCancel()
		resumed.Store(true)
		return nil
	})

	Cancel(th)
	close(gate)
	if got := Join(th); got != nil {
		t.Errorf("Join() = %v, want nil", got)
	}
	if resumed.Load() {
		t.Error("thread resumed past TestCancel with a request already pending")
	}
}

// TestCancel_StaticMutexDeferred verifies that waiting for a static
// mutex suppresses delivery: a thread cancelled while parked still
// acquires the mutex and runs on to its next real cancellation point.
func TestCancel_StaticMutexDeferred(t *testing.T) {
	var m Mutex // static
	var acquired, resumed atomic.Bool
	ready := make(chan struct{})

	m.Lock()
	th := spawn(t, func(any) any {
		close(ready)
		m.Lock()
		m.Unlock()
		acquired.Store(true)
		Msleep(mtime.FromSec(60))
		resumed.Store(true)
		return nil
	})

	<-ready
	time.Sleep(50 * time.Millisecond)
	Cancel(th)
	// Give delivery a chance to fire wrongly inside the parked lock.
	time.Sleep(50 * time.Millisecond)
	m.Unlock()
	Join(th)

	if !acquired.Load() {
		t.Error("thread never acquired the static mutex; cancellation fired during arbitration")
	}
	if resumed.Load() {
		t.Error("thread resumed past the sleep after the deferred request")
	}
}

// TestSaveRestore_DefersDelivery verifies that a request arriving while
// delivery is disabled stays pending: the current wait completes in full
// and the request fires at the first point after RestoreCancel.
func TestSaveRestore_DefersDelivery(t *testing.T) {
	var sleptFully, resumed atomic.Bool
	ready := make(chan struct{})

	th := spawn(t, func(any) any {
		state := SaveCancel()
		close(ready)
		deadline := mtime.Now() + mtime.FromMs(150)
		Msleep(mtime.FromMs(150))
		if mtime.Now() >= deadline {
			sleptFully.Store(true)
		}
		RestoreCancel(state)
		Msleep(mtime.FromSec(60))
		resumed.Store(true)
		return nil
	})

	<-ready
	Cancel(th)
	Join(th)

	if !sleptFully.Load() {
		t.Error("sleep with delivery disabled ended early; the request must stay pending")
	}
	if resumed.Load() {
		t.Error("thread resumed past the first point after RestoreCancel")
	}
}

// TestSaveRestore_NoopPair verifies that SaveCancel immediately followed
// by RestoreCancel changes nothing about later delivery.
func TestSaveRestore_NoopPair(t *testing.T) {
	ran := 0
	var resumed atomic.Bool
	ready := make(chan struct{})

	th := spawn(t, func(any) any {
		RestoreCancel(SaveCancel())
		PushCleanup(func(any) { ran++ }, nil)
		close(ready)
		Msleep(mtime.FromSec(60))
		resumed.Store(true)
		return nil
	})

	<-ready
	time.Sleep(50 * time.Millisecond)
	Cancel(th)
	Join(th)

	if ran != 1 {
		t.Errorf("cleanup handler ran %d times, want 1", ran)
	}
	if resumed.Load() {
		t.Error("thread resumed past the sleep; save/restore pair must not disable delivery")
	}
}

// TestSaveRestore_UnbalancedPanics verifies that restoring with delivery
// still enabled is misuse.
func TestSaveRestore_UnbalancedPanics(t *testing.T) {
	got := make(chan string, 1)
	th := spawn(t, func(any) any {
		defer func() {
			s, _ := recover().(string)
			got <- s
		}()
		RestoreCancel(true)
		return nil
	})
	if g, want := <-got, "threadport: RestoreCancel without SaveCancel"; g != want {
		t.Errorf("panic = %q, want %q", g, want)
	}
	Join(th)
}

// TestTestCancel_ExplicitPoint verifies that TestCancel alone delivers a
// pending request in otherwise point-free code.
func TestTestCancel_ExplicitPoint(t *testing.T) {
	ready := make(chan struct{})
	var spins atomic.Int64
	th := spawn(t, func(any) any {
		close(ready)
		for {
			TestCancel()
			spins.Add(1)
			time.Sleep(time.Millisecond)
		}
	})

	<-ready
	Cancel(th)
	if got := Join(th); got != nil {
		t.Errorf("Join() = %v, want nil", got)
	}
}

// TestCleanup_DiscardedOnReturn verifies that handlers of a thread that
// returns normally never run, and that a popped handler never runs even
// on cancellation.
func TestCleanup_DiscardedOnReturn(t *testing.T) {
	t.Run("normal return", func(t *testing.T) {
		ran := 0
		th := spawn(t, func(any) any {
			PushCleanup(func(any) { ran++ }, nil)
			return "done"
		})
		if got := Join(th); got != "done" {
			t.Errorf("Join() = %v, want %q", got, "done")
		}
		if ran != 0 {
			t.Errorf("handler ran %d times on normal return, want 0", ran)
		}
	})

	t.Run("popped before cancel", func(t *testing.T) {
		log := &handlerLog{}
		ready := make(chan struct{})
		th := spawn(t, func(any) any {
			PushCleanup(log.record("popped"), nil)
			PopCleanup()
			PushCleanup(log.record("kept"), nil)
			close(ready)
			Msleep(mtime.FromSec(60))
			return nil
		})
		<-ready
		time.Sleep(50 * time.Millisecond)
		Cancel(th)
		Join(th)
		if want := []string{"kept"}; !sameStrings(log.got(), want) {
			t.Errorf("handlers run = %v, want %v", log.got(), want)
		}
	})
}

// TestPopCleanup_EmptyPanics verifies the misuse panic for an unmatched
// pop on a managed thread.
func TestPopCleanup_EmptyPanics(t *testing.T) {
	got := make(chan string, 1)
	th := spawn(t, func(any) any {
		defer func() {
			s, _ := recover().(string)
			got <- s
		}()
		PopCleanup()
		return nil
	})
	if g, want := <-got, "threadport: cleanup pop without matching push"; g != want {
		t.Errorf("panic = %q, want %q", g, want)
	}
	Join(th)
}

// TestCleanupGuard covers the scoped guard on normal paths: run on
// request, skipped on request, and never twice.
func TestCleanupGuard(t *testing.T) {
	t.Run("pop run", func(t *testing.T) {
		ran := 0
		g := NewCleanupGuard(func(any) { ran++ }, nil)
		g.Pop(true)
		if ran != 1 {
			t.Errorf("handler ran %d times, want 1", ran)
		}
	})

	t.Run("pop without run", func(t *testing.T) {
		ran := 0
		g := NewCleanupGuard(func(any) { ran++ }, nil)
		g.Pop(false)
		if ran != 0 {
			t.Errorf("handler ran %d times, want 0", ran)
		}
	})

	t.Run("second pop inert", func(t *testing.T) {
		ran := 0
		g := NewCleanupGuard(func(any) { ran++ }, nil)
		g.Pop(true)
		g.Pop(true)
		if ran != 1 {
			t.Errorf("handler ran %d times after double pop, want 1", ran)
		}
	})

	t.Run("data argument", func(t *testing.T) {
		var got any
		g := NewCleanupGuard(func(v any) { got = v }, "payload")
		g.Pop(true)
		if got != "payload" {
			t.Errorf("handler data = %v, want %q", got, "payload")
		}
	})
}

// TestCleanupGuard_CancelledInert verifies that after cancellation ran
// the stack, the deferred Pop(true) does not run the handler again.
func TestCleanupGuard_CancelledInert(t *testing.T) {
	var ran atomic.Int32
	ready := make(chan struct{})
	th := spawn(t, func(any) any {
		g := NewCleanupGuard(func(any) { ran.Add(1) }, nil)
		defer g.Pop(true)
		close(ready)
		Msleep(mtime.FromSec(60))
		return nil
	})

	<-ready
	time.Sleep(50 * time.Millisecond)
	Cancel(th)
	Join(th)

	if got := ran.Load(); got != 1 {
		t.Errorf("guard handler ran %d times on the cancel path, want exactly 1", got)
	}
}

// TestCleanupGuard_OutOfOrderPanics verifies the release-order check on
// managed threads.
func TestCleanupGuard_OutOfOrderPanics(t *testing.T) {
	got := make(chan string, 1)
	th := spawn(t, func(any) any {
		outer := NewCleanupGuard(func(any) {}, nil)
		inner := NewCleanupGuard(func(any) {}, nil)
		func() {
			defer func() {
				s, _ := recover().(string)
				got <- s
			}()
			outer.Pop(false)
		}()
		inner.Pop(false)
		return nil
	})
	if g, want := <-got, "threadport: cleanup guard released out of order"; g != want {
		t.Errorf("panic = %q, want %q", g, want)
	}
	Join(th)
}

// TestUnmanaged_NoOps verifies that the whole cancellation protocol is
// inert on goroutines not created through Spawn.
func TestUnmanaged_NoOps(t *testing.T) {
	TestCancel()
	if got := SaveCancel(); got {
		t.Error("SaveCancel() = true on an unmanaged goroutine, want false")
	}
	RestoreCancel(false)
	PushCleanup(func(any) { t.Error("unmanaged cleanup handler ran") }, nil)
	PopCleanup()
	Cancel(nil)

	ran := 0
	g := NewCleanupGuard(func(any) { ran++ }, nil)
	g.Pop(true)
	if ran != 1 {
		t.Errorf("guard handler ran %d times on unmanaged goroutine, want 1", ran)
	}
}

// TestCancel_Idempotent verifies that repeated requests behave like one.
func TestCancel_Idempotent(t *testing.T) {
	ran := 0
	ready := make(chan struct{})
	th := spawn(t, func(any) any {
		PushCleanup(func(any) { ran++ }, nil)
		close(ready)
		Msleep(mtime.FromSec(60))
		return nil
	})

	<-ready
	Cancel(th)
	Cancel(th)
	Cancel(th)
	Join(th)

	if ran != 1 {
		t.Errorf("cleanup handler ran %d times after 3 Cancels, want 1", ran)
	}
}
