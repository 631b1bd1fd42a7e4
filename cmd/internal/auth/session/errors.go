package session

import "errors"

// Error kinds. Each maps to exactly one HTTP status at the API boundary.
var (
	// ErrConflict is returned by Register when the email is already taken.
	ErrConflict = errors.New("user already exists")

	// ErrNotFound is returned by Login for an unknown email AND for a wrong
	// password. The two cases are indistinguishable by design of the API.
	ErrNotFound = errors.New("invalid credentials")

	// ErrUnauthorized covers a missing, malformed, expired or wrong-kind token,
	// and a token whose subject no longer exists.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput is returned when registration input fails policy.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
