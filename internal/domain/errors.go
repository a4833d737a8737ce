package domain

import "errors"

var (
	// ErrValidation marks caller input errors; handlers map it to 400.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks missing entities; handlers map it to 404.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks illegal state transitions; handlers map it to 409.
	ErrConflict = errors.New("conflict")
)
