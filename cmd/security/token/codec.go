package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Kind discriminates access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) valid() bool { return k == KindAccess || k == KindRefresh }

// Payload is what a token asserts.
type Payload struct {
	Subject string
	Kind    Kind
}

type claims struct {
	Kind Kind `json:"kind"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a single symmetric key.
// It is immutable after construction and safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for signing and verification.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec returns a codec keyed by secret.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrSecretMissing
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

// Sign issues a token for p that expires ttl after now.
// It returns the token and its expiry as encoded in the token.
func (c *Codec) Sign(p Payload, ttl time.Duration) (string, time.Time, error) {
	if p.Subject == "" || !p.Kind.valid() {
		return "", time.Time{}, fmt.Errorf("token.Sign: %w", ErrTokenInvalid)
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("token.Sign: non-positive ttl %s", ttl)
	}

	iat := c.now().UTC().Truncate(time.Second)
	cl := claims{
		Kind: p.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token.Sign: %w", err)
	}
	return signed, cl.ExpiresAt.Time, nil
}

// Verify checks signature and expiry and returns the payload.
// Only the token bytes, the secret and the clock are consulted.
func (c *Codec) Verify(raw string) (Payload, error) {
	if raw == "" {
		return Payload{}, ErrTokenInvalid
	}

	var cl claims
	_, err := c.parser.ParseWithClaims(raw, &cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Payload{}, ErrTokenExpired
	default:
		return Payload{}, ErrTokenInvalid
	}

	if cl.Subject == "" || !cl.Kind.valid() {
		return Payload{}, ErrTokenInvalid
	}
	return Payload{Subject: cl.Subject, Kind: cl.Kind}, nil
}
