package core

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/threadport/internal/thread/goid"
)

// maxKeys is the size of the thread-local key arena.
const maxKeys = 256

// Key identifies a thread-local variable. Keys are handed out by
// CreateKey; the zero Key is never valid.
//
// A Key pairs an arena slot with the generation at which the slot was
// allocated, so a stale Key kept across DeleteKey can never alias a key
// created later in the same slot.
type Key struct {
	slot uint32
	gen  uint32
}

// keyRecord is one arena slot.
type keyRecord struct {
	// state packs generation<<1 | live, so Set and Get can validate a
	// key without taking the super lock.
	state atomic.Uint64

	// destroy is written at create time and read during exit drains,
	// both under the super lock.
	destroy func(any)
}

func (r *keyRecord) matches(k Key) bool {
	s := r.state.Load()
	return s&1 == 1 && uint32(s>>1) == k.gen
}

var (
	// keyArena holds every key slot. Slot allocation and the live-key
	// order are guarded by the super mutex; per-slot state is atomic so
	// the Set/Get fast path stays lock-free.
	keyArena [maxKeys]keyRecord

	// keyOrder lists live keys in creation order. Exit drains walk it
	// from the tail so the newest key's destructor runs first.
	keyOrder []Key

	// locals maps goroutine id to that goroutine's value map. Each map
	// is touched only by its owner; the reaper deletes entries whose
	// owner is gone without ever reading into them.
	locals sync.Map
)

// CreateKey allocates a thread-local key. Every thread reads the new
// key's value as nil until it stores one.
//
// If destroy is non-nil it runs at managed-thread exit for each thread
// whose value is still non-nil, after the value has been cleared.
// CreateKey fails with ErrTooManyKeys when the arena is full.
func CreateKey(destroy func(any)) (Key, error) {
	superMutex.Lock()
	for i := range keyArena {
		rec := &keyArena[i]
		s := rec.state.Load()
		if s&1 == 1 {
			continue
		}
		gen := uint32(s>>1) + 1
		rec.state.Store(uint64(gen)<<1 | 1)
		rec.destroy = destroy
		k := Key{slot: uint32(i), gen: gen}
		keyOrder = append(keyOrder, k)
		superMutex.Unlock()
		return k, nil
	}
	superMutex.Unlock()
	return Key{}, ErrTooManyKeys
}

// DeleteKey retires a key. Values other threads stored under it are
// abandoned without running the destructor; using the key afterwards
// panics.
func DeleteKey(k Key) {
	superMutex.Lock()
	if k.slot >= maxKeys || !keyArena[k.slot].matches(k) {
		superMutex.Unlock()
		panic("threadport: use of invalid thread-local key")
	}
	rec := &keyArena[k.slot]
	rec.state.Store(uint64(k.gen) << 1)
	rec.destroy = nil
	for i, live := range keyOrder {
		if live == k {
			keyOrder = append(keyOrder[:i], keyOrder[i+1:]...)
			break
		}
	}
	superMutex.Unlock()
}

// SetLocal stores value under k for the calling thread only. Storing nil
// clears the slot as far as exit drains are concerned.
func SetLocal(k Key, value any) error {
	mustKey(k)
	gid := goid.ID()
	m := localMap(gid)
	if m == nil {
		m = make(map[Key]any, 4)
		locals.Store(gid, m)
	}
	m[k] = value
	return nil
}

// GetLocal returns the calling thread's value under k, nil if it never
// stored one.
func GetLocal(k Key) any {
	mustKey(k)
	m := localMap(goid.ID())
	if m == nil {
		return nil
	}
	return m[k]
}

func localMap(gid int64) map[Key]any {
	v, ok := locals.Load(gid)
	if !ok {
		return nil
	}
	return v.(map[Key]any)
}

func mustKey(k Key) {
	if k.slot >= maxKeys || !keyArena[k.slot].matches(k) {
		panic("threadport: use of invalid thread-local key")
	}
}

// drainLocals runs the destructors of every live key the exiting thread
// still holds a non-nil value for, newest key first, then drops the
// thread's value map.
//
// The value is cleared before its destructor runs, so a destructor that
// stores again looks like fresh state; the scan restarts from the newest
// key after every call because a destructor may create keys, delete
// keys, or store values of its own. A destructor that always re-stores
// keeps the drain looping; there is no iteration cap.
func drainLocals(gid int64) {
	m := localMap(gid)
	if m == nil {
		return
	}
	for drainOne(m) {
	}
	locals.Delete(gid)
}

// drainOne runs the newest pending destructor and reports whether it
// found one.
func drainOne(m map[Key]any) bool {
	superMutex.Lock()
	for i := len(keyOrder) - 1; i >= 0; i-- {
		k := keyOrder[i]
		value := m[k]
		if value == nil {
			continue
		}
		destroy := keyArena[k.slot].destroy
		if destroy == nil {
			continue
		}
		superMutex.Unlock()
		delete(m, k)
		destroy(value)
		return true
	}
	superMutex.Unlock()
	return false
}

// ReapStaleLocals drops the value maps of goroutines that no longer
// exist and reports how many it removed.
//
// Managed threads drain and drop their own map at exit; the reaper
// covers plain goroutines that stored thread-local values and then
// returned. Their destructors do not run: an unmanaged goroutine has no
// exit hook, and by the time it is observed dead its work is already
// abandoned.
func ReapStaleLocals() int {
	// Candidates are collected before the live snapshot. Goroutine ids
	// are never reused, so a candidate absent from the later snapshot
	// is dead for good; the reverse order could sweep a map whose owner
	// started between the two phases.
	var candidates []int64
	locals.Range(func(key, _ any) bool {
		candidates = append(candidates, key.(int64))
		return true
	})
	alive := make(map[int64]bool)
	for _, gid := range goid.All() {
		alive[gid] = true
	}
	reaped := 0
	for _, gid := range candidates {
		if !alive[gid] {
			locals.Delete(gid)
			reaped++
		}
	}
	return reaped
}
