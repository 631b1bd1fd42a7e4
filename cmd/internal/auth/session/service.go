package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tasker/cmd/identity"
	"tasker/cmd/security/password"
	"tasker/cmd/security/token"
)

// PasswordHasher is satisfied by *password.Hasher.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, encoded, plaintext string) (bool, error)
}

// TokenCodec is satisfied by *token.Codec.
type TokenCodec interface {
	Sign(p token.Payload, ttl time.Duration) (string, time.Time, error)
	Verify(raw string) (token.Payload, error)
}

// Service implements registration, login, refresh rotation and access-token
// authentication. It holds no per-user state and is safe for concurrent use.
type Service struct {
	cfg    Config
	users  identity.Store
	hasher PasswordHasher
	tokens TokenCodec
	log    *slog.Logger

	// dummyHash is verified for unknown emails so both login failures cost
	// one Argon2id computation.
	dummyHash string
}

// Issued is the result of Register, Login and Refresh.
type Issued struct {
	User         identity.User
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// RegisterInput carries a new account's credentials.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// NewService wires the session core. It hashes one throwaway password to
// prepare the unknown-email path.
func NewService(cfg Config, users identity.Store, hasher PasswordHasher, tokens TokenCodec, log *slog.Logger) (*Service, error) {
	if users == nil || hasher == nil || tokens == nil {
		return nil, fmt.Errorf("%w: session dependencies missing", ErrConfig)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%w: non-positive ttl", ErrConfig)
	}
	if log == nil {
		log = slog.Default()
	}

	dummy, err := hasher.Hash(context.Background(), "tasker-login-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("session: prepare dummy hash: %w", err)
	}

	return &Service{
		cfg:       cfg,
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		log:       log,
		dummyHash: dummy,
	}, nil
}

// Register creates an account and issues a pair for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Issued, error) {
	email := identity.NormalizeEmail(in.Email)

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return Issued{}, ErrConflict
	case !identity.IsNotFound(err):
		return Issued{}, fmt.Errorf("session.Register: lookup: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		if isPolicyError(err) {
			return Issued{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return Issued{}, fmt.Errorf("session.Register: hash: %w", err)
	}

	u, err := s.users.Create(ctx, identity.CreateUserInput{
		Email:        email,
		Name:         in.Name,
		PasswordHash: hash,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			// Lost a race with a concurrent registration.
			return Issued{}, ErrConflict
		case identity.IsInvalidInput(err):
			return Issued{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return Issued{}, fmt.Errorf("session.Register: create: %w", err)
	}

	s.log.Info("auth.register.ok", "user_id", u.ID)
	return s.issuePair(u)
}

// Login verifies credentials. An unknown email and a wrong password both
// return ErrNotFound.
func (s *Service) Login(ctx context.Context, email, plaintext string) (Issued, error) {
	u, err := s.users.FindByEmail(ctx, identity.NormalizeEmail(email))
	if err != nil {
		if !identity.IsNotFound(err) {
			return Issued{}, fmt.Errorf("session.Login: lookup: %w", err)
		}
		if _, verr := s.hasher.Verify(ctx, s.dummyHash, plaintext); verr != nil && ctx.Err() != nil {
			return Issued{}, ctx.Err()
		}
		s.log.Debug("auth.login.fail", "reason", "unknown_email")
		return Issued{}, ErrNotFound
	}

	ok, err := s.hasher.Verify(ctx, u.PasswordHash, plaintext)
	if err != nil {
		if errors.Is(err, password.ErrInvalidHash) {
			s.log.Error("auth.login.fail", "reason", "stored_hash_invalid", "user_id", u.ID)
			return Issued{}, ErrNotFound
		}
		return Issued{}, fmt.Errorf("session.Login: verify: %w", err)
	}
	if !ok {
		s.log.Debug("auth.login.fail", "reason", "bad_password", "user_id", u.ID)
		return Issued{}, ErrNotFound
	}

	return s.issuePair(u)
}

// Refresh rotates a refresh token into a new pair. The presented token is not
// revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Issued, error) {
	u, err := s.resolve(ctx, refreshToken, token.KindRefresh)
	if err != nil {
		return Issued{}, err
	}
	return s.issuePair(u)
}

// Authenticate resolves an access token to the user it was issued for.
// The user is looked up on every call.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (identity.User, error) {
	return s.resolve(ctx, accessToken, token.KindAccess)
}

func (s *Service) resolve(ctx context.Context, raw string, want token.Kind) (identity.User, error) {
	if raw == "" {
		return identity.User{}, ErrUnauthorized
	}

	p, err := s.tokens.Verify(raw)
	if err != nil {
		s.log.Debug("auth.token.reject", "kind", want, "reason", tokenRejectReason(err))
		return identity.User{}, ErrUnauthorized
	}
	if p.Kind != want {
		s.log.Debug("auth.token.reject", "kind", want, "reason", "wrong_kind")
		return identity.User{}, ErrUnauthorized
	}

	u, err := s.users.FindByID(ctx, p.Subject)
	if err != nil {
		if identity.IsNotFound(err) {
			s.log.Debug("auth.token.reject", "kind", want, "reason", "subject_gone")
			return identity.User{}, ErrUnauthorized
		}
		return identity.User{}, fmt.Errorf("session: lookup subject: %w", err)
	}
	return u, nil
}

// issuePair signs the access and refresh tokens independently.
func (s *Service) issuePair(u identity.User) (Issued, error) {
	access, accessExp, err := s.tokens.Sign(token.Payload{Subject: u.ID, Kind: token.KindAccess}, s.cfg.AccessTTL)
	if err != nil {
		return Issued{}, fmt.Errorf("session: sign access: %w", err)
	}
	refresh, refreshExp, err := s.tokens.Sign(token.Payload{Subject: u.ID, Kind: token.KindRefresh}, s.cfg.RefreshTTL)
	if err != nil {
		return Issued{}, fmt.Errorf("session: sign refresh: %w", err)
	}

	return Issued{
		User:         u,
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshExp:   refreshExp,
	}, nil
}

func isPolicyError(err error) bool {
	return errors.Is(err, password.ErrPolicy)
}

func tokenRejectReason(err error) string {
	if errors.Is(err, token.ErrTokenExpired) {
		return "expired"
	}
	return "invalid"
}
