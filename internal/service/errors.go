package service

import "errors"

var (
	// ErrValidation covers malformed or out-of-window input. Nothing has
	// changed; the caller can retry with corrected input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is a state machine violation, e.g. completing
	// a visit that was never started. No side effects.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInsufficientStock means completing the visit would drive branch
	// stock negative. The visit stays in progress.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrAccessDenied is a cross-tenant/branch or wrong-role attempt.
	ErrAccessDenied = errors.New("access denied")

	// ErrConflict means concurrent writers raced; retry the operation.
	ErrConflict = errors.New("concurrent modification")

	ErrNotFound = errors.New("not found")
)
