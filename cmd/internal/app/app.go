// Package app wires the tasker server runtime: config, logging, stores, HTTP
// routes and the realtime task feed.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"tasker/cmd/identity"
	authapi "tasker/cmd/internal/auth/api"
	"tasker/cmd/internal/auth/gate"
	"tasker/cmd/internal/auth/session"
	"tasker/cmd/internal/metrics"
	"tasker/cmd/internal/migrations"
	"tasker/cmd/internal/ratelimit"
	"tasker/cmd/internal/realtime"
	"tasker/cmd/internal/tasks"
	"tasker/cmd/security/password"
	"tasker/cmd/security/token"
)

// Store is a small app-level lifecycle abstraction for pooled resources.
type Store interface {
	Close(ctx context.Context) error
}

// resources owns the external connections opened at startup.
type resources struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

func (r resources) Close(_ context.Context) error {
	var errs []error
	if r.redis != nil {
		errs = append(errs, r.redis.Close())
	}
	if r.pool != nil {
		r.pool.Close()
	}
	return errors.Join(errs...)
}

// App is the tasker server runtime.
type App struct {
	cfg     Config
	log     Logger
	metrics *metrics.Metrics

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	handler http.Handler
}

// New constructs a fully wired App. Session, cookie and password settings
// are read from the environment; invalid values are fatal.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	authCfg, err := authapi.LoadConfigFromEnv(cfg.Production())
	if err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg, sessCfg.Secret, authCfg.Cookies.Domain); err != nil {
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	users, taskStore, pool, err := newStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	res := resources{pool: pool}

	limiter, rdb, err := newLimiter(ctx, cfg, authCfg, log)
	if err != nil {
		_ = res.Close(ctx)
		return nil, err
	}
	res.redis = rdb

	handler, err := buildHandler(cfg, log, m, wiring{
		sessCfg:   sessCfg,
		authCfg:   authCfg,
		hasher:    password.NewHasher(pwCfg),
		users:     users,
		tasks:     taskStore,
		limiter:   limiter,
		feedCfg:   realtime.LoadGatewayConfigFromEnv(),
		dbPool:    pool,
		dbEnabled: pool != nil,
	})
	if err != nil {
		_ = res.Close(ctx)
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		metrics:   m,
		store:     res,
		dbPool:    pool,
		dbEnabled: pool != nil,
		handler:   handler,
	}, nil
}

// wiring carries the already-built dependencies of the HTTP layer.
type wiring struct {
	sessCfg session.Config
	authCfg authapi.Config
	hasher  session.PasswordHasher
	users   identity.Store
	tasks   tasks.Store
	limiter *ratelimit.Limiter
	feedCfg realtime.GatewayConfig

	dbPool    *pgxpool.Pool
	dbEnabled bool
}

// buildHandler assembles the auth core, the task API and the feed behind the
// middleware chain: recover, request ID, CORS, security headers, request
// logging, metrics.
func buildHandler(cfg Config, log Logger, m *metrics.Metrics, deps wiring) (http.Handler, error) {
	codec, err := token.NewCodec(deps.sessCfg.Secret)
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewService(deps.sessCfg, deps.users, deps.hasher, codec, log)
	if err != nil {
		return nil, err
	}

	g := gate.New(sessions,
		gate.WithCookieName(deps.authCfg.Cookies.AccessName),
		gate.WithLogger(log),
		gate.WithMetrics(m),
	)

	authHandler, err := authapi.NewHandler(log, deps.authCfg, sessions, g,
		authapi.WithLimiter(deps.limiter),
		authapi.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	hub := realtime.NewHub(log, m)
	taskSvc, err := tasks.NewService(deps.tasks,
		tasks.WithPublisher(hub),
		tasks.WithLogger(log),
		tasks.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	taskHandler, err := tasks.NewHandler(log, taskSvc, g)
	if err != nil {
		return nil, err
	}

	feed, err := realtime.NewGateway(log, hub, g, deps.feedCfg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, &serviceRoutes{
		log:       log,
		cfg:       cfg,
		started:   time.Now().UTC(),
		now:       func() time.Time { return time.Now().UTC() },
		dbPool:    deps.dbPool,
		dbEnabled: deps.dbEnabled,
		metrics:   m,
	}, feed, authHandler, taskHandler)

	var h http.Handler = mux
	h = WithMetrics(h, m)
	h = WithRequestLogging(h, log)
	h = WithSecurityHeaders(h)
	h = WithCORS(h, cfg, log)
	h = WithRequestID(h)
	h = WithRecover(h, log)
	return h, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until ctx is done or the server fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
		// Hijacked feed connections outlive Shutdown; tie them to ctx.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"env", a.cfg.Env,
		"db_enabled", a.dbEnabled,
		"api", base+"/api",
		"feed", wsBaseURL(base)+"/api/tasks/events",
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.store.Close(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

// newStores picks Postgres when a database URL is configured and the
// in-memory stores otherwise.
func newStores(ctx context.Context, cfg Config, log Logger) (identity.Store, tasks.Store, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return identity.NewMemoryStore(), tasks.NewMemoryStore(), nil, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db: %w", err)
	}

	if cfg.DBMigrate {
		if err := migrations.Up(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		log.Info("db.migrated")
	}

	users, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	taskStore, err := tasks.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	log.Info("db.enabled.postgres_store")
	return users, taskStore, pool, nil
}

// newLimiter backs login throttling with Redis when configured, else memory.
func newLimiter(ctx context.Context, cfg Config, authCfg authapi.Config, log Logger) (*ratelimit.Limiter, *redis.Client, error) {
	rlCfg := ratelimit.Config{
		IPMax:       authCfg.LoginIPMax,
		IPWindow:    authCfg.LoginIPWindow,
		EmailMax:    authCfg.LoginEmailMax,
		EmailWindow: authCfg.LoginEmailWindow,
	}

	if cfg.RedisURL == "" {
		log.Info("ratelimit.memory")
		return ratelimit.New(ratelimit.NewMemoryCounter(nil), rlCfg), nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis: %w", err)
	}

	log.Info("ratelimit.redis", "addr", opts.Addr)
	return ratelimit.New(ratelimit.NewRedisCounter(rdb), rlCfg), rdb, nil
}

// runtimeBaseURL turns a listen address into a URL a local client can reach.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
