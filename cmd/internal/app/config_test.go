package app

import (
	"slices"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "PORT", "TASKER_HTTP_ADDR", "TASKER_DATABASE_URL", "TASKER_REDIS_URL", "TASKER_CORS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()

	if cfg.Env != EnvDevelopment || cfg.Production() {
		t.Fatalf("Env=%q", cfg.Env)
	}
	if cfg.HTTPAddr != "0.0.0.0:3000" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.DatabaseURL != "" || cfg.RedisURL != "" {
		t.Fatalf("unexpected backends: db=%q redis=%q", cfg.DatabaseURL, cfg.RedisURL)
	}
	if !cfg.DBMigrate {
		t.Fatalf("migrations should run by default")
	}
	if cfg.ReadHeaderTimeout != 5*time.Second {
		t.Fatalf("ReadHeaderTimeout=%s", cfg.ReadHeaderTimeout)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("PORT", "9000")
	t.Setenv("TASKER_HTTP_ADDR", "")
	t.Setenv("TASKER_DB_MIGRATE", "false")
	t.Setenv("TASKER_CORS_ALLOWED_ORIGINS", "https://app.example.com, ,https://admin.example.com")

	cfg := LoadConfig()

	if !cfg.Production() {
		t.Fatalf("Env=%q", cfg.Env)
	}
	if cfg.HTTPAddr != "0.0.0.0:9000" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.DBMigrate {
		t.Fatalf("TASKER_DB_MIGRATE ignored")
	}
	if !slices.Equal(cfg.CORSAllowedOrigins, []string{"https://app.example.com", "https://admin.example.com"}) {
		t.Fatalf("CORSAllowedOrigins=%v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfig_UnknownEnvIsDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	if cfg := LoadConfig(); cfg.Env != EnvDevelopment {
		t.Fatalf("Env=%q", cfg.Env)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "nope")
	t.Setenv("X_INT", "-4")
	t.Setenv("X_INT32", "12")
	t.Setenv("X_DUR", "90s")
	t.Setenv("X_CSV", " , ")

	if got := EnvBool("X_BOOL", true); !got {
		t.Fatalf("EnvBool fallback")
	}
	if got := EnvInt("X_INT", 7); got != 7 {
		t.Fatalf("EnvInt=%d", got)
	}
	if got := EnvInt32("X_INT32", 1); got != 12 {
		t.Fatalf("EnvInt32=%d", got)
	}
	if got := EnvDuration("X_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("EnvDuration=%s", got)
	}
	if got := EnvCSV("X_CSV", []string{"d"}); !slices.Equal(got, []string{"d"}) {
		t.Fatalf("EnvCSV=%v", got)
	}
}
