package tasks

import "errors"

var (
	// ErrNotFound covers both "no such task" and "owned by someone else".
	ErrNotFound = errors.New("task not found or access denied")

	// ErrInvalidInput is returned for field or query values out of range.
	ErrInvalidInput = errors.New("invalid input")
)
