package core

import (
	"testing"
	"time"
)

// TestSemaphore_InitialCount verifies that Init's count is consumable
// without any Post.
func TestSemaphore_InitialCount(t *testing.T) {
	var s Semaphore
	s.Init(2)
	defer s.Destroy()

	if !s.TryWait() {
		t.Fatal("TryWait() = false with count 2")
	}
	if !s.TryWait() {
		t.Fatal("TryWait() = false with count 1")
	}
	if s.TryWait() {
		t.Fatal("TryWait() = true with count 0")
	}
	s.Post()
	if !s.TryWait() {
		t.Error("TryWait() = false after Post")
	}
}

// TestSemaphore_WaitBlocks verifies that Wait blocks at zero and a Post
// releases exactly one waiter's worth of count.
func TestSemaphore_WaitBlocks(t *testing.T) {
	var s Semaphore
	s.Init(0)
	defer s.Destroy()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Wait() returned with count 0")
	default:
	}

	s.Post()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() still blocked after Post")
	}
	if s.TryWait() {
		t.Error("count nonzero after one Post consumed by one Wait")
	}
}

// TestSemaphore_PingPong runs two threads in strict alternation over a
// semaphore pair; any lost wakeup deadlocks the test.
func TestSemaphore_PingPong(t *testing.T) {
	var ping, pong Semaphore
	ping.Init(1)
	pong.Init(0)
	defer ping.Destroy()
	defer pong.Destroy()

	const rounds = 1000
	var sequence []int

	a, err := Spawn(func(any) any {
		for i := 0; i < rounds; i++ {
			ping.Wait()
			sequence = append(sequence, 0)
			pong.Post()
		}
		return nil
	}, nil, false, PriorityNormal)
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	b, err := Spawn(func(any) any {
		for i := 0; i < rounds; i++ {
			pong.Wait()
			sequence = append(sequence, 1)
			ping.Post()
		}
		return nil
	}, nil, false, PriorityNormal)
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	Join(a)
	Join(b)

	if len(sequence) != 2*rounds {
		t.Fatalf("len(sequence) = %d, want %d", len(sequence), 2*rounds)
	}
	for i, who := range sequence {
		if who != i%2 {
			t.Fatalf("sequence[%d] = %d, want %d: alternation broken", i, who, i%2)
		}
	}
}

// TestSemaphore_Misuse verifies the fatal paths: overflow past the
// maximum count and use without Init.
func TestSemaphore_Misuse(t *testing.T) {
	t.Run("overflow", func(t *testing.T) {
		var s Semaphore
		s.Init(semMax)
		defer s.Destroy()
		wantPanic(t, "threadport: semaphore overflow", func() {
			s.Post()
		})
	})

	t.Run("count out of range", func(t *testing.T) {
		var s Semaphore
		wantPanic(t, "threadport: semaphore count out of range", func() {
			s.Init(semMax + 1)
		})
	})

	t.Run("post uninitialized", func(t *testing.T) {
		var s Semaphore
		wantPanic(t, "threadport: use of uninitialized semaphore", func() {
			s.Post()
		})
	})

	t.Run("trywait uninitialized", func(t *testing.T) {
		var s Semaphore
		wantPanic(t, "threadport: use of uninitialized semaphore", func() {
			s.TryWait()
		})
	})
}

func BenchmarkSemaphore_PostWait(b *testing.B) {
	var s Semaphore
	s.Init(0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Post()
		s.Wait()
	}
}
