package jobs

import "errors"

// ErrNotFound is returned when no request has the given id.
var ErrNotFound = errors.New("request not found")

// ValidationError reports input rejected before anything was persisted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}
