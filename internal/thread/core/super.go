package core

// The super pair arbitrates every static mutex and the thread-local key
// list. A static mutex has no storage of its own beyond two fields, so
// all state transitions on it happen under superMutex, and contended
// lockers park on superCond.
//
// Package init plays the role of image-load time: the pair exists before
// any user code can touch a primitive, which is what makes the zero-value
// mutex "always constructed".
var (
	superMutex Mutex
	superCond  Cond
)

func init() {
	superMutex.Init()
	superCond.Init()
}
