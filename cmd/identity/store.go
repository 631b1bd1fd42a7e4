package identity

import (
	"context"
	"time"
)

// User is the account principal. PasswordHash is a PHC string and must never
// leave the server.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateUserInput describes a new account. PasswordHash is already encoded.
type CreateUserInput struct {
	Email        string
	Name         string
	PasswordHash string
	Now          time.Time
}

// Store is the account persistence boundary consumed by the session core.
//
// Lookups that miss return an error matching ErrNotFound. Create returns an
// error matching ErrConflict when the email is taken.
type Store interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	Create(ctx context.Context, in CreateUserInput) (User, error)
}

func (in CreateUserInput) validate(op string) (CreateUserInput, error) {
	in.Email = NormalizeEmail(in.Email)
	in.Name = NormalizeName(in.Name)

	switch {
	case in.Email == "":
		return in, invalid(op, "email is required")
	case in.Name == "":
		return in, invalid(op, "name is required")
	case in.PasswordHash == "":
		return in, invalid(op, "password hash is required")
	}

	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	in.Now = in.Now.UTC()
	return in, nil
}
