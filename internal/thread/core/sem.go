package core

import (
	"sync"

	"github.com/kolkov/threadport/internal/thread/event"
)

// semMax is the highest count a semaphore can hold. Post past it is a
// fatal error, not saturation.
const semMax = 0x7fffffff

// Semaphore is a counting semaphore whose Wait is a cancellation point.
//
// Unlike Mutex there is no static variant: a Semaphore must be
// initialized with Init before use. The internal lock is private to the
// semaphore and is never held across a block or a cancellation test, so
// cancelling a waiter cannot wedge other users.
type Semaphore struct {
	mu    sync.Mutex
	value uint
	ev    *event.Event
}

// Init sets the semaphore's count. The caller must ensure no concurrent
// use during initialization.
func (s *Semaphore) Init(value uint) {
	if value > semMax {
		panic("threadport: semaphore count out of range")
	}
	s.value = value
	s.ev = event.New()
	if value > 0 {
		s.ev.Set()
	}
}

// Destroy releases the semaphore. No thread may be waiting on it.
func (s *Semaphore) Destroy() {
	s.mu.Lock()
	s.ev = nil
	s.mu.Unlock()
}

// Post increments the count, waking waiters when it was zero.
// Incrementing past the maximum count panics.
func (s *Semaphore) Post() {
	s.mu.Lock()
	if s.ev == nil {
		s.mu.Unlock()
		panic("threadport: use of uninitialized semaphore")
	}
	if s.value >= semMax {
		s.mu.Unlock()
		panic("threadport: semaphore overflow")
	}
	s.value++
	if s.value == 1 {
		// 0 -> 1: the wake flag mirrors value > 0.
		s.ev.Set()
	}
	s.mu.Unlock()
}

// Wait decrements the count, blocking while it is zero.
//
// Wait is a cancellation point. The request is tested before each block
// with no semaphore state held, so a cancelled waiter exits without
// having consumed a count.
func (s *Semaphore) Wait() {
	th := currentThread()
	wake := th.wakeChan()
	for {
		th.testCancelSelf()

		s.mu.Lock()
		if s.ev == nil {
			s.mu.Unlock()
			panic("threadport: use of uninitialized semaphore")
		}
		if s.value > 0 {
			s.value--
			if s.value == 0 {
				s.ev.Reset()
			}
			s.mu.Unlock()
			return
		}
		// Capture the wake channel while the count is known to be
		// zero; a Post after the release closes exactly this channel.
		ch := s.ev.Done()
		s.mu.Unlock()

		select {
		case <-ch:
		case <-wake:
		}
	}
}

// TryWait decrements the count if it is positive and reports whether it
// did. It never blocks and is not a cancellation point.
func (s *Semaphore) TryWait() bool {
	s.mu.Lock()
	if s.ev == nil {
		s.mu.Unlock()
		panic("threadport: use of uninitialized semaphore")
	}
	ok := s.value > 0
	if ok {
		s.value--
		if s.value == 0 {
			s.ev.Reset()
		}
	}
	s.mu.Unlock()
	return ok
}
