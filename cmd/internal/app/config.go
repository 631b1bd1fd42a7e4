package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environments accepted by APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	Env      string
	Name     string
	Version  string
	HTTPAddr string

	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	DBMigrate   bool

	// Empty selects the in-process login throttle.
	RedisURL string

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// Production reports whether APP_ENV selects production behavior.
func (c Config) Production() bool { return c.Env == EnvProduction }

// LoadConfig loads .env (if any) and then Config from the environment.
func LoadConfig() Config {
	loadDotEnv()

	env := strings.ToLower(EnvString("APP_ENV", EnvDevelopment))
	if env != EnvProduction {
		env = EnvDevelopment
	}

	addr := EnvString("TASKER_HTTP_ADDR", "")
	if addr == "" {
		addr = "0.0.0.0:" + EnvString("PORT", "3000")
	}

	return Config{
		Env:      env,
		Name:     EnvString("TASKER_NAME", "tasker"),
		Version:  EnvString("TASKER_VERSION", "1.0.0"),
		HTTPAddr: addr,

		LogLevel:  EnvString("TASKER_LOG_LEVEL", "info"),
		LogFormat: EnvString("TASKER_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("TASKER_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("TASKER_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("TASKER_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("TASKER_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("TASKER_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("TASKER_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("TASKER_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("TASKER_DB_MIN_CONNS", 0),
		DBMigrate:   EnvBool("TASKER_DB_MIGRATE", true),

		RedisURL: EnvString("TASKER_REDIS_URL", ""),

		ReadinessRequireDB: EnvBool("TASKER_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins:   EnvCSV("TASKER_CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "http://127.0.0.1:*"}),
		CORSAllowCredentials: EnvBool("TASKER_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("TASKER_CORS_MAX_AGE", 600),
	}
}

// loadDotEnv reads .env from the working directory, falling back to its
// parent. Variables already set in the process win.
func loadDotEnv() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}
	_ = godotenv.Load(filepath.Join(parent, ".env"))
}
