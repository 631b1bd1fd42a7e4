package token

import "errors"

// Public, stable errors for callers.
var (
	ErrSecretMissing = errors.New("token signing secret missing")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrTokenExpired  = errors.New("token expired")
)
