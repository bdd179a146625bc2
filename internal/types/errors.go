package types

import "errors"

// Sentinel errors surfaced across the engine. Tool failures are NOT
// represented here: a failing tool becomes part of its visible result
// string and never aborts a turn.
var (
	// ErrInvalidInput rejects an empty or malformed turn before any
	// state mutation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrToolLoopExceeded signals that the orchestrator hit its round
	// limit; the turn still completes with the best text produced.
	ErrToolLoopExceeded = errors.New("tool loop exceeded")

	// ErrNotFound is returned by stores for unknown keys. Read paths
	// treat it as "no history", not a failure.
	ErrNotFound = errors.New("not found")
)
