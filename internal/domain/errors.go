package domain

import "errors"

var (
	// ErrNotFound is returned when a call id does not exist.
	ErrNotFound = errors.New("call not found")
	// ErrCapacity is returned when an owner already holds the maximum
	// number of scheduled calls.
	ErrCapacity = errors.New("scheduled call limit reached")
	// ErrPersist wraps failures to flush durable state.
	ErrPersist = errors.New("persistence failure")
)

// ValidationError reports rejected input. It is surfaced to the caller
// as-is and never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid input: " + e.Reason }

func invalid(reason string) error { return &ValidationError{Reason: reason} }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
