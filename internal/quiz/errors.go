package quiz

import "errors"

var (
	// ErrNotFound is returned for an unknown quiz id.
	ErrNotFound = errors.New("quiz not found")
	// ErrInvalidState is returned when an operation is illegal for the quiz's
	// current state, e.g. publishing an already-published quiz.
	ErrInvalidState = errors.New("invalid quiz state")
	// ErrValidation is returned when a quiz or question violates the content
	// invariants (see Validate).
	ErrValidation = errors.New("quiz validation failed")
)
