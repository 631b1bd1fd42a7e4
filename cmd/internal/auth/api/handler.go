package authapi

import (
	"errors"
	"log/slog"
	"net/http"

	"tasker/cmd/identity"
	"tasker/cmd/internal/auth/gate"
	"tasker/cmd/internal/auth/session"
	"tasker/cmd/internal/httpx"
	"tasker/cmd/internal/metrics"
	"tasker/cmd/internal/ratelimit"
)

// Handler wires HTTP auth endpoints to the session service.
type Handler struct {
	log *slog.Logger
	cfg Config

	sessions *session.Service
	gate     *gate.Gate
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithLimiter enables login throttling.
func WithLimiter(l *ratelimit.Limiter) HandlerOption {
	return func(h *Handler) { h.limiter = l }
}

// WithMetrics records auth outcomes.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service, g *gate.Gate, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil || g == nil {
		return nil, errors.New("authapi: nil session service or gate")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		gate:     g,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/refresh-token", h.handleRefresh)
	mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
	mux.Handle("GET /api/auth/@me", h.gate.Protect(h.handleMe))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	req.Email = identity.NormalizeEmail(req.Email)
	req.Name = identity.NormalizeName(req.Name)
	if err := httpx.Validate(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	issued, err := h.sessions.Register(r.Context(), session.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrConflict):
			h.metrics.AuthEvent("register", "conflict")
			httpx.WriteError(w, http.StatusConflict, "user_exists", "user already exists")
		case errors.Is(err, session.ErrInvalidInput):
			h.metrics.AuthEvent("register", "invalid")
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "password does not meet policy")
		default:
			h.log.Error("auth.register.fail", "err", err)
			httpx.WriteInternal(w)
		}
		return
	}

	h.metrics.AuthEvent("register", "ok")
	h.setSessionCookies(w, issued)
	httpx.WriteJSON(w, http.StatusCreated, tokenResponse{AccessToken: issued.AccessToken})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	req.Email = identity.NormalizeEmail(req.Email)
	if err := httpx.Validate(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)

	// Throttle before credential lookup.
	if h.limiter != nil {
		if err := h.limiter.Check(ctx, ip, req.Email); err != nil {
			var limited *ratelimit.LimitedError
			if errors.As(err, &limited) {
				h.metrics.AuthEvent("login", "rate_limited")
				h.log.Warn("auth.login.throttled", "scope", limited.Scope, "ip", ip)
				httpx.WriteRateLimited(w, limited.RetryAfter)
				return
			}
			h.log.Error("auth.login.throttle.fail", "err", err)
			httpx.WriteError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
			return
		}
	}

	issued, err := h.sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			h.metrics.AuthEvent("login", "invalid_credentials")
			h.log.Info("auth.login.fail", "ip", ip)
			if h.limiter != nil {
				if ferr := h.limiter.Fail(ctx, ip, req.Email); ferr != nil {
					h.log.Error("auth.login.throttle.fail", "err", ferr)
				}
			}
			httpx.WriteError(w, http.StatusNotFound, "invalid_credentials", "invalid credentials")
			return
		}
		h.log.Error("auth.login.fail", "err", err)
		httpx.WriteInternal(w)
		return
	}

	if h.limiter != nil {
		if err := h.limiter.Reset(ctx, req.Email); err != nil {
			h.log.Warn("auth.login.throttle.reset_fail", "err", err)
		}
	}

	h.metrics.AuthEvent("login", "ok")
	h.setSessionCookies(w, issued)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: issued.AccessToken})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := h.refreshTokenFromCookie(r)
	if raw == "" {
		h.metrics.AuthEvent("refresh", "unauthorized")
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	issued, err := h.sessions.Refresh(r.Context(), raw)
	if err != nil {
		if errors.Is(err, session.ErrUnauthorized) {
			h.metrics.AuthEvent("refresh", "unauthorized")
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		h.log.Error("auth.refresh.fail", "err", err)
		httpx.WriteInternal(w)
		return
	}

	h.metrics.AuthEvent("refresh", "ok")
	h.setSessionCookies(w, issued)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: issued.AccessToken})
}

// handleLogout is stateless: tokens stay valid until expiry, only the
// cookies are dropped.
func (h *Handler) handleLogout(w http.ResponseWriter, _ *http.Request) {
	h.clearSessionCookies(w)
	h.metrics.AuthEvent("logout", "ok")
	httpx.WriteJSON(w, http.StatusOK, true)
}

func (h *Handler) handleMe(w http.ResponseWriter, _ *http.Request, user identity.User) {
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}
