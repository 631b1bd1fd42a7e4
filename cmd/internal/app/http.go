package app

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tasker/cmd/internal/httpx"
	"tasker/cmd/internal/metrics"
)

// welcomeMessage is the greeting of GET /api.
const welcomeMessage = "Welcome to Task Manager API"

// routeRegistrar is implemented by every API handler.
type routeRegistrar interface {
	Register(mux *http.ServeMux)
}

// serviceRoutes serves the unauthenticated service endpoints.
type serviceRoutes struct {
	log       Logger
	cfg       Config
	started   time.Time
	now       func() time.Time
	dbPool    *pgxpool.Pool
	dbEnabled bool
	metrics   *metrics.Metrics
}

type welcomeResponse struct {
	Message       string            `json:"message"`
	Version       string            `json:"version"`
	Documentation string            `json:"documentation"`
	Endpoints     map[string]string `json:"endpoints"`
	Timestamp     time.Time         `json:"timestamp"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    int64     `json:"uptime"`
}

type infoResponse struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Environment string    `json:"environment"`
	Timestamp   time.Time `json:"timestamp"`
}

func registerHTTP(mux *http.ServeMux, svc *serviceRoutes, feed http.Handler, apis ...routeRegistrar) {
	mux.HandleFunc("GET /api", svc.handleWelcome)
	mux.HandleFunc("GET /api/health", svc.handleHealth)
	mux.HandleFunc("GET /api/info", svc.handleInfo)
	mux.HandleFunc("GET /healthz", svc.handleLiveness)
	mux.HandleFunc("GET /readyz", svc.handleReadiness)
	if svc.metrics != nil {
		mux.Handle("GET /metrics", svc.metrics.Handler())
	}

	for _, api := range apis {
		if api != nil {
			api.Register(mux)
		}
	}

	if feed != nil {
		mux.Handle("GET /api/tasks/events", feed)
	}
}

func (s *serviceRoutes) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, welcomeResponse{
		Message:       welcomeMessage,
		Version:       s.cfg.Version,
		Documentation: "/api/docs",
		Endpoints: map[string]string{
			"auth":   "/api/auth",
			"tasks":  "/api/tasks",
			"events": "/api/tasks/events",
			"health": "/api/health",
			"info":   "/api/info",
		},
		Timestamp: s.now(),
	})
}

func (s *serviceRoutes) handleHealth(w http.ResponseWriter, _ *http.Request) {
	now := s.now()
	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: now,
		Uptime:    int64(now.Sub(s.started) / time.Second),
	})
}

func (s *serviceRoutes) handleInfo(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, infoResponse{
		Name:        s.cfg.Name,
		Version:     s.cfg.Version,
		Environment: s.cfg.Env,
		Timestamp:   s.now(),
	})
}

func (s *serviceRoutes) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *serviceRoutes) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ReadinessRequireDB && !s.dbEnabled {
		http.Error(w, "db not configured", http.StatusServiceUnavailable)
		return
	}

	if s.dbEnabled && s.dbPool != nil {
		if err := PingDB(r.Context(), s.dbPool, 2*time.Second); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			s.log.Info("readyz.db.not_ready", "err", err)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}
