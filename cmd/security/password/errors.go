package password

import (
	"errors"
	"fmt"
)

// ErrPolicy is wrapped by every password policy rejection.
var ErrPolicy = errors.New("password rejected by policy")

var (
	ErrPasswordTooShort = fmt.Errorf("%w: too short", ErrPolicy)
	ErrPasswordTooLong  = fmt.Errorf("%w: too long", ErrPolicy)
	ErrWeakPassword     = fmt.Errorf("%w: too weak", ErrPolicy)
)

// ErrInvalidHash covers malformed PHC strings and parameters above the
// configured limits.
var ErrInvalidHash = errors.New("invalid password hash")
