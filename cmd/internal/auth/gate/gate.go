// Package gate resolves the caller of a protected route.
//
// Per request: extract an access token (Authorization: Bearer first, then the
// access cookie), verify it, look the subject up, and hand the user to the
// wrapped handler as an explicit argument. Any failure is 401 before the
// handler runs.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tasker/cmd/identity"
	"tasker/cmd/internal/auth/session"
	"tasker/cmd/internal/httpx"
	"tasker/cmd/internal/metrics"
)

// DefaultAccessCookie is the cookie the session layer writes the access token to.
const DefaultAccessCookie = "accessToken"

// Authenticator is satisfied by *session.Service.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (identity.User, error)
}

// HandlerFunc is a handler that runs only for an authenticated user.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, user identity.User)

// Gate wraps handlers with authentication.
type Gate struct {
	auth    Authenticator
	cookie  string
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Gate.
type Option func(*Gate)

// WithCookieName overrides the access cookie name.
func WithCookieName(name string) Option {
	return func(g *Gate) {
		if name = strings.TrimSpace(name); name != "" {
			g.cookie = name
		}
	}
}

// WithLogger sets the logger used for unexpected failures.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

// WithMetrics records gate rejections.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// New returns a Gate backed by auth.
func New(auth Authenticator, opts ...Option) *Gate {
	g := &Gate{
		auth:   auth,
		cookie: DefaultAccessCookie,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Resolve runs the gate without writing a response.
// It returns session.ErrUnauthorized when no usable token is present.
func (g *Gate) Resolve(r *http.Request) (identity.User, error) {
	raw := ExtractToken(r, g.cookie)
	if raw == "" {
		return identity.User{}, session.ErrUnauthorized
	}
	return g.auth.Authenticate(r.Context(), raw)
}

// Protect returns an http.HandlerFunc that calls next with the resolved user.
func (g *Gate) Protect(next HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := g.Resolve(r)
		if err != nil {
			if errors.Is(err, session.ErrUnauthorized) {
				g.metrics.AuthEvent("gate", "unauthorized")
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}
			g.log.Error("auth.gate.fail", "err", err, "path", r.URL.Path)
			httpx.WriteInternal(w)
			return
		}
		next(w, r, user)
	}
}

// ExtractToken returns the bearer token, or the named cookie's value when the
// request carries no usable Bearer credential.
func ExtractToken(r *http.Request, cookieName string) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, tok, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "Bearer") {
		if tok = strings.TrimSpace(tok); tok != "" {
			return tok
		}
	}

	if cookieName == "" {
		cookieName = DefaultAccessCookie
	}
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
