package authapi

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"tasker/cmd/internal/ratelimit"
)

// CookiePolicy controls how session cookies are written.
type CookiePolicy struct {
	AccessName  string
	RefreshName string
	Path        string
	Domain      string
	Secure      bool
	SameSite    http.SameSite
}

// Config controls auth API behavior.
type Config struct {
	Cookies CookiePolicy

	// TrustProxy makes clientIP honor X-Forwarded-For / X-Real-IP.
	TrustProxy   bool
	MaxBodyBytes int64

	LoginIPMax       int
	LoginIPWindow    time.Duration
	LoginEmailMax    int
	LoginEmailWindow time.Duration
}

// CookiePolicyFor derives the cookie attributes from the deployment
// environment: development gets non-secure Lax cookies, production gets
// Secure cookies with SameSite=None for cross-site frontends.
func CookiePolicyFor(production bool, domain string) CookiePolicy {
	p := CookiePolicy{
		AccessName:  "accessToken",
		RefreshName: "refreshToken",
		Path:        "/",
		Domain:      strings.TrimSpace(domain),
		Secure:      false,
		SameSite:    http.SameSiteLaxMode,
	}
	if production {
		p.Secure = true
		p.SameSite = http.SameSiteNoneMode
	}
	return p
}

// LoadConfigFromEnv loads auth config. COOKIE_DOMAIN is required in
// production and defaults to "localhost" otherwise.
//
// Optional:
//   - TASKER_AUTH_TRUST_PROXY
//   - TASKER_AUTH_MAX_BODY_BYTES
//   - TASKER_AUTH_LOGIN_IP_MAX, TASKER_AUTH_LOGIN_IP_WINDOW
//   - TASKER_AUTH_LOGIN_EMAIL_MAX, TASKER_AUTH_LOGIN_EMAIL_WINDOW
func LoadConfigFromEnv(production bool) (Config, error) {
	domain := strings.TrimSpace(os.Getenv("COOKIE_DOMAIN"))
	if domain == "" {
		if production {
			return Config{}, fmt.Errorf("COOKIE_DOMAIN is required in production")
		}
		domain = "localhost"
	}

	throttle := ratelimit.DefaultConfig()
	cfg := Config{
		Cookies:          CookiePolicyFor(production, domain),
		TrustProxy:       envBool("TASKER_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:     envInt64("TASKER_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		LoginIPMax:       envInt("TASKER_AUTH_LOGIN_IP_MAX", throttle.IPMax),
		LoginIPWindow:    envDuration("TASKER_AUTH_LOGIN_IP_WINDOW", throttle.IPWindow),
		LoginEmailMax:    envInt("TASKER_AUTH_LOGIN_EMAIL_MAX", throttle.EmailMax),
		LoginEmailWindow: envDuration("TASKER_AUTH_LOGIN_EMAIL_WINDOW", throttle.EmailWindow),
	}
	return cfg, nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
