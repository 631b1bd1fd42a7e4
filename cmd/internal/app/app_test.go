package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tasker/cmd/identity"
	authapi "tasker/cmd/internal/auth/api"
	"tasker/cmd/internal/auth/session"
	"tasker/cmd/internal/metrics"
	"tasker/cmd/internal/ratelimit"
	"tasker/cmd/internal/realtime"
	"tasker/cmd/internal/tasks"
	"tasker/cmd/security/password"
)

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v4", in: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
		{name: "port only", in: ":3000", want: "http://127.0.0.1:3000"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
		{in: "https://tasks.example.com", want: "wss://tasks.example.com"},
		{in: "127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
	}

	for _, tc := range cases {
		got := wsBaseURL(tc.in)
		if got != tc.want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	pw := password.DefaultConfig()
	pw.Params.MemoryKiB = 8 * 1024
	pw.Params.Iterations = 1
	pw.Params.Parallelism = 1

	cfg := Config{
		Env:                  EnvDevelopment,
		Name:                 "tasker",
		Version:              "1.0.0-test",
		CORSAllowedOrigins:   []string{"http://localhost:*"},
		CORSAllowCredentials: true,
	}

	h, err := buildHandler(cfg, log, metrics.New(), wiring{
		sessCfg: session.Config{
			Secret:     []byte("app-test-secret-0123456789abcdef"),
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		authCfg: authapi.Config{
			Cookies:          authapi.CookiePolicyFor(false, "localhost"),
			LoginIPMax:       20,
			LoginIPWindow:    5 * time.Minute,
			LoginEmailMax:    5,
			LoginEmailWindow: 15 * time.Minute,
		},
		hasher:  password.NewHasher(pw),
		users:   identity.NewMemoryStore(),
		tasks:   tasks.NewMemoryStore(),
		limiter: ratelimit.New(ratelimit.NewMemoryCounter(nil), ratelimit.DefaultConfig()),
		feedCfg: realtime.DefaultGatewayConfig(),
	})
	if err != nil {
		t.Fatalf("buildHandler: %v", err)
	}
	return h
}

func serve(t *testing.T, h http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandler_ServiceEndpoints(t *testing.T) {
	h := newTestHandler(t)

	rr := serve(t, h, http.MethodGet, "/api/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("health status=%d", rr.Code)
	}
	var health healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.Uptime < 0 {
		t.Fatalf("health=%+v", health)
	}

	rr = serve(t, h, http.MethodGet, "/api", "", "")
	var welcome welcomeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &welcome); err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	if welcome.Message != welcomeMessage || welcome.Endpoints["tasks"] != "/api/tasks" {
		t.Fatalf("welcome=%+v", welcome)
	}

	rr = serve(t, h, http.MethodGet, "/api/info", "", "")
	var info infoResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Environment != EnvDevelopment || info.Version != "1.0.0-test" {
		t.Fatalf("info=%+v", info)
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := serve(t, h, http.MethodGet, path, "", ""); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestHandler_RegisterCreateListFlow(t *testing.T) {
	h := newTestHandler(t)

	rr := serve(t, h, http.MethodPost, "/api/auth/register",
		`{"name":"Ada","email":"ada@example.com","password":"s3cret-pass"}`, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("missing request id")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers")
	}
	var tok struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &tok); err != nil || tok.AccessToken == "" {
		t.Fatalf("decode token: %v (%s)", err, rr.Body.String())
	}

	if rr := serve(t, h, http.MethodGet, "/api/tasks", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list status=%d", rr.Code)
	}

	rr = serve(t, h, http.MethodPost, "/api/tasks", `{"title":"Write report"}`, tok.AccessToken)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = serve(t, h, http.MethodGet, "/api/tasks", "", tok.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var list []tasks.Task
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Write report" || list[0].Priority != tasks.PriorityLow {
		t.Fatalf("list=%+v", list)
	}

	rr = serve(t, h, http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`route="POST /api/tasks"`,
		`tasker_tasks_mutations_total{op="create"} 1`,
		`tasker_auth_events_total{event="register",result="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %s", want)
		}
	}
}

func TestHandler_FeedRequiresAuth(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/events", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("feed status=%d body=%s", rr.Code, rr.Body.String())
	}

	// Browsers always send Origin; a missing one is refused by default.
	if rr := serve(t, h, http.MethodGet, "/api/tasks/events", "", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("feed without origin status=%d", rr.Code)
	}
}
