package state

import "errors"

// Sentinel errors for dispatch operations.
var (
	// ErrUnknownAction indicates the reducer received an action kind outside
	// the closed variant set. This is a programming error and is never
	// silently ignored.
	ErrUnknownAction = errors.New("unknown action kind")

	// ErrInvalidAction indicates an action carried a malformed payload.
	ErrInvalidAction = errors.New("invalid action")

	// ErrActionVetoed indicates a middleware halted the dispatch. The
	// current state is returned unchanged alongside this error.
	ErrActionVetoed = errors.New("action vetoed by middleware")
)
