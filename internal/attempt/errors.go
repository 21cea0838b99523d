package attempt

import "errors"

var (
	// ErrNotFound is returned for an unknown attempt id.
	ErrNotFound = errors.New("attempt not found")
	// ErrInvalidState is returned when an operation is illegal for the
	// attempt's current state (e.g. recording a response after expiry).
	ErrInvalidState = errors.New("invalid attempt state")
	// ErrAlreadySubmitted is returned by submit when the attempt was already
	// finalized; the stored score is never recomputed.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrAttemptInProgress is returned by start under the reject policy when
	// an in-progress attempt already exists for the (student, quiz) pair.
	ErrAttemptInProgress = errors.New("attempt already in progress")
	// ErrUnknownQuestion is returned when a response references a question
	// that is not part of the attempt's frozen snapshot.
	ErrUnknownQuestion = errors.New("question not in attempt snapshot")
	// ErrActiveExists is the store-level signal that an in-progress attempt
	// already exists for the (student, quiz) pair.
	ErrActiveExists = errors.New("active attempt exists")
	// ErrStorageUnavailable is surfaced after bounded internal retries of a
	// transient storage failure. The attempt is guaranteed not to straddle
	// two states when this is returned.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// domainErr reports whether err is a caller-facing state/validation error
// (never retried) rather than a transient storage failure.
func domainErr(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrAttemptInProgress) ||
		errors.Is(err, ErrUnknownQuestion) ||
		errors.Is(err, ErrActiveExists)
}
