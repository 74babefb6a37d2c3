package core

import (
	"sync"
	"testing"
	"time"
)

// staticIncrementMu guards the counter in the static-variant increment
// test. It is deliberately a package-level zero value: the point of the
// test is locking with no initialization call at all.
var staticIncrementMu Mutex

// wantPanic runs fn and checks that it panics with exactly the given
// message.
func wantPanic(t *testing.T, want string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Errorf("no panic, want %q", want)
			return
		}
		got, ok := r.(string)
		if !ok || got != want {
			t.Errorf("panic = %v, want %q", r, want)
		}
	}()
	fn()
}

// TestMutex_Exclusion verifies mutual exclusion on a dynamic mutex:
// 4 threads each perform 10000 locked increments and no update is lost.
func TestMutex_Exclusion(t *testing.T) {
	var m Mutex
	m.Init()
	defer m.Destroy()

	const threads = 4
	const perThread = 10000

	counter := 0
	ths := make([]*Thread, 0, threads)
	for i := 0; i < threads; i++ {
		th, err := Spawn(func(any) any {
			for j := 0; j < perThread; j++ {
				m.Lock()
				counter++
				m.Unlock()
			}
			return nil
		}, nil, false, PriorityNormal)
		if err != nil {
			t.Fatalf("Spawn() error = %v", err)
		}
		ths = append(ths, th)
	}
	for _, th := range ths {
		Join(th)
	}

	if counter != threads*perThread {
		t.Errorf("counter = %d, want %d", counter, threads*perThread)
	}
}

// TestMutex_StaticZeroValue verifies that a never-initialized mutex is
// immediately lockable and still excludes concurrent holders.
func TestMutex_StaticZeroValue(t *testing.T) {
	const threads = 4
	const perThread = 10000

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perThread; j++ {
				staticIncrementMu.Lock()
				counter++
				staticIncrementMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if counter != threads*perThread {
		t.Errorf("counter = %d, want %d", counter, threads*perThread)
	}
}

// TestMutex_StaticContention verifies that a blocked locker of a static
// mutex is woken when the holder unlocks.
func TestMutex_StaticContention(t *testing.T) {
	var m Mutex

	m.Lock()
	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
		m.Unlock()
	}()

	// Give the second locker time to park on the super pair.
	time.Sleep(50 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("second locker acquired a held static mutex")
	default:
	}

	m.Unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second locker not woken after unlock")
	}
}

// TestMutex_TryLock exercises TryLock on all three variants.
func TestMutex_TryLock(t *testing.T) {
	t.Run("static", func(t *testing.T) {
		var m Mutex
		if !m.TryLock() {
			t.Fatal("TryLock() = false on a free static mutex")
		}
		if m.TryLock() {
			t.Error("TryLock() = true on a held static mutex")
		}
		m.Unlock()
		if !m.TryLock() {
			t.Error("TryLock() = false after unlock")
		}
		m.Unlock()
	})

	t.Run("fast", func(t *testing.T) {
		var m Mutex
		m.Init()
		defer m.Destroy()
		if !m.TryLock() {
			t.Fatal("TryLock() = false on a free fast mutex")
		}
		held := make(chan bool, 1)
		go func() { held <- m.TryLock() }()
		if got := <-held; got {
			t.Error("TryLock() = true from another thread while held")
		}
		m.Unlock()
	})

	t.Run("recursive owner", func(t *testing.T) {
		var m Mutex
		m.InitRecursive()
		defer m.Destroy()
		m.Lock()
		if !m.TryLock() {
			t.Error("owner TryLock() = false on a recursive mutex")
		}
		m.Unlock()
		m.Unlock()
	})
}

// TestMutex_Recursive verifies that a recursive mutex supports nested
// locking by the owner and stays held until the matching unlock count.
func TestMutex_Recursive(t *testing.T) {
	var m Mutex
	m.InitRecursive()
	defer m.Destroy()

	m.Lock()
	m.Lock()
	m.Lock()

	free := make(chan bool, 1)
	go func() { free <- m.TryLock() }()
	if got := <-free; got {
		t.Fatal("recursive mutex free after 3 nested locks")
	}

	m.Unlock()
	m.Unlock()
	go func() { free <- m.TryLock() }()
	if got := <-free; got {
		t.Fatal("recursive mutex free after unwinding only 2 of 3 locks")
	}

	m.Unlock()
	acquired := make(chan struct{})
	go func() {
		m.Lock()
		m.Unlock()
		close(acquired)
	}()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("recursive mutex still held after balanced unlocks")
	}
}

// TestMutex_Misuse verifies the fatal-misuse contract: each abuse panics
// with a stable message.
func TestMutex_Misuse(t *testing.T) {
	t.Run("unlock of unlocked static", func(t *testing.T) {
		var m Mutex
		wantPanic(t, "threadport: unlock of unlocked static mutex", func() {
			m.Unlock()
		})
	})

	t.Run("destroy of static", func(t *testing.T) {
		var m Mutex
		wantPanic(t, "threadport: destroy of static mutex", func() {
			m.Destroy()
		})
	})

	t.Run("destroy of locked fast", func(t *testing.T) {
		var m Mutex
		m.Init()
		m.Lock()
		wantPanic(t, "threadport: destroy of locked mutex", func() {
			m.Destroy()
		})
		m.Unlock()
		m.Destroy()
	})

	t.Run("destroy of locked recursive", func(t *testing.T) {
		var m Mutex
		m.InitRecursive()
		m.Lock()
		wantPanic(t, "threadport: destroy of locked mutex", func() {
			m.Destroy()
		})
		m.Unlock()
		m.Destroy()
	})

	t.Run("recursive unlock by non-owner", func(t *testing.T) {
		var m Mutex
		m.InitRecursive()
		m.Lock()
		got := make(chan string, 1)
		go func() {
			defer func() {
				s, _ := recover().(string)
				got <- s
			}()
			m.Unlock()
		}()
		if g, want := <-got, "threadport: unlock of recursive mutex by non-owner"; g != want {
			t.Errorf("panic = %q, want %q", g, want)
		}
		m.Unlock()
		m.Destroy()
	})
}

func BenchmarkMutex_Fast(b *testing.B) {
	var m Mutex
	m.Init()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Lock()
		m.Unlock()
	}
}

func BenchmarkMutex_Recursive(b *testing.B) {
	var m Mutex
	m.InitRecursive()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Lock()
		m.Unlock()
	}
}

func BenchmarkMutex_Static(b *testing.B) {
	var m Mutex
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Lock()
		m.Unlock()
	}
}
