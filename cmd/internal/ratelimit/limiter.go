package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrLimited is matched by every *LimitedError.
var ErrLimited = errors.New("rate limited")

// LimitedError reports how long the caller should wait.
type LimitedError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("%s: %s: retry after %s", ErrLimited, e.Scope, e.RetryAfter)
}

func (e *LimitedError) Unwrap() error { return ErrLimited }

// Config bounds login failures per window. A zero Max disables that scope.
type Config struct {
	IPMax       int
	IPWindow    time.Duration
	EmailMax    int
	EmailWindow time.Duration

	// Prefix namespaces keys (default "tasker:login").
	Prefix string
}

// DefaultConfig mirrors common login-throttle settings.
func DefaultConfig() Config {
	return Config{
		IPMax:       20,
		IPWindow:    5 * time.Minute,
		EmailMax:    5,
		EmailWindow: 15 * time.Minute,
		Prefix:      "tasker:login",
	}
}

// Limiter tracks login failures.
type Limiter struct {
	counter Counter
	cfg     Config
}

// New returns a Limiter over counter.
func New(counter Counter, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "tasker:login"
	}
	return &Limiter{counter: counter, cfg: cfg}
}

// Check returns a *LimitedError when either scope has reached its limit.
// It does not count the attempt.
func (l *Limiter) Check(ctx context.Context, ip, email string) error {
	for _, s := range l.scopes(ip, email) {
		n, ttl, err := l.counter.Get(ctx, s.key)
		if err != nil {
			return err
		}
		if n >= int64(s.max) {
			return &LimitedError{Scope: s.name, RetryAfter: retryAfter(ttl, s.window)}
		}
	}
	return nil
}

// Fail records a failed attempt in both scopes.
func (l *Limiter) Fail(ctx context.Context, ip, email string) error {
	for _, s := range l.scopes(ip, email) {
		if _, _, err := l.counter.Incr(ctx, s.key, s.window); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the email scope after a successful login. The IP scope is
// left alone so one valid account cannot launder a spraying client.
func (l *Limiter) Reset(ctx context.Context, email string) error {
	if email == "" || l.cfg.EmailMax <= 0 {
		return nil
	}
	return l.counter.Reset(ctx, l.emailKey(email))
}

type scope struct {
	name   string
	key    string
	max    int
	window time.Duration
}

func (l *Limiter) scopes(ip, email string) []scope {
	out := make([]scope, 0, 2)
	if ip != "" && l.cfg.IPMax > 0 {
		out = append(out, scope{"ip", l.cfg.Prefix + ":ip:" + ip, l.cfg.IPMax, l.cfg.IPWindow})
	}
	if email != "" && l.cfg.EmailMax > 0 {
		out = append(out, scope{"email", l.emailKey(email), l.cfg.EmailMax, l.cfg.EmailWindow})
	}
	return out
}

func (l *Limiter) emailKey(email string) string {
	return l.cfg.Prefix + ":email:" + email
}

func retryAfter(ttl, window time.Duration) time.Duration {
	if ttl <= 0 {
		return window
	}
	// Whole seconds, rounded up, for the Retry-After header.
	return ((ttl + time.Second - 1) / time.Second) * time.Second
}
