package core

import "errors"

// Errors returned for resource exhaustion. Misuse of a primitive is a
// programming error and panics instead; these cover conditions a correct
// program can meet at runtime and is expected to handle.
var (
	// ErrTooManyKeys is returned by CreateKey when every slot in the
	// thread-local key arena is in use.
	ErrTooManyKeys = errors.New("threadport: thread-local key arena exhausted")

	// ErrTooManyThreads is returned by Spawn when the number of live
	// managed threads has reached the cap.
	ErrTooManyThreads = errors.New("threadport: thread limit reached")
)
