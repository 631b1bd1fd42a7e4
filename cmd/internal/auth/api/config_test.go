package authapi

import (
	"net/http"
	"testing"
	"time"

	"tasker/cmd/internal/ratelimit"
)

func TestCookiePolicyFor(t *testing.T) {
	dev := CookiePolicyFor(false, "localhost")
	if dev.Secure || dev.SameSite != http.SameSiteLaxMode {
		t.Fatalf("development cookies must be non-secure Lax, got %+v", dev)
	}

	prod := CookiePolicyFor(true, "tasks.example.com")
	if !prod.Secure || prod.SameSite != http.SameSiteNoneMode {
		t.Fatalf("production cookies must be Secure SameSite=None, got %+v", prod)
	}
	if prod.Domain != "tasks.example.com" || prod.Path != "/" {
		t.Fatalf("unexpected scope: %+v", prod)
	}
	if prod.AccessName != "accessToken" || prod.RefreshName != "refreshToken" {
		t.Fatalf("unexpected cookie names: %+v", prod)
	}
}

func TestLoadConfigFromEnv_ProductionRequiresDomain(t *testing.T) {
	t.Setenv("COOKIE_DOMAIN", "")

	if _, err := LoadConfigFromEnv(true); err == nil {
		t.Fatalf("expected error without COOKIE_DOMAIN in production")
	}

	cfg, err := LoadConfigFromEnv(false)
	if err != nil {
		t.Fatalf("development: %v", err)
	}
	if cfg.Cookies.Domain != "localhost" {
		t.Fatalf("expected localhost default, got %q", cfg.Cookies.Domain)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("COOKIE_DOMAIN", "example.com")
	t.Setenv("TASKER_AUTH_TRUST_PROXY", "true")
	t.Setenv("TASKER_AUTH_LOGIN_EMAIL_MAX", "3")
	t.Setenv("TASKER_AUTH_LOGIN_EMAIL_WINDOW", "1m")
	t.Setenv("TASKER_AUTH_LOGIN_IP_MAX", "garbage")

	cfg, err := LoadConfigFromEnv(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.TrustProxy || cfg.LoginEmailMax != 3 || cfg.LoginEmailWindow != time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.LoginIPMax != ratelimit.DefaultConfig().IPMax {
		t.Fatalf("garbage must fall back to default, got %d", cfg.LoginIPMax)
	}
}

func TestLoadConfigFromEnv_ThrottleDefaults(t *testing.T) {
	for _, k := range []string{
		"TASKER_AUTH_LOGIN_IP_MAX", "TASKER_AUTH_LOGIN_IP_WINDOW",
		"TASKER_AUTH_LOGIN_EMAIL_MAX", "TASKER_AUTH_LOGIN_EMAIL_WINDOW",
	} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfigFromEnv(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def := ratelimit.DefaultConfig()
	if cfg.LoginIPMax != def.IPMax || cfg.LoginIPWindow != def.IPWindow ||
		cfg.LoginEmailMax != def.EmailMax || cfg.LoginEmailWindow != def.EmailWindow {
		t.Fatalf("throttle defaults diverge from ratelimit.DefaultConfig: %+v", cfg)
	}
}
