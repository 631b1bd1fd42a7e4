package session

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config is the immutable session configuration, built once at startup.
type Config struct {
	// Secret keys the HS256 signature of every token.
	Secret []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// DefaultConfig returns the TTL defaults. Secret is left empty.
func DefaultConfig() Config {
	return Config{
		AccessTTL:  DefaultAccessTTL,
		RefreshTTL: DefaultRefreshTTL,
	}
}

var ttlRe = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseTTL parses "<integer><unit>" with unit one of s, m, h, d.
// "15m" is 15 minutes, "7d" is seven 24h days. Anything else is ErrConfig.
func ParseTTL(raw string) (time.Duration, error) {
	m := ttlRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if m == nil {
		return 0, fmt.Errorf("%w: ttl %q must look like 15m or 7d", ErrConfig, raw)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: ttl %q must be positive", ErrConfig, raw)
	}

	unit := map[string]time.Duration{
		"s": time.Second,
		"m": time.Minute,
		"h": time.Hour,
		"d": 24 * time.Hour,
	}[m[2]]

	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("%w: ttl %q overflows a duration", ErrConfig, raw)
	}
	return time.Duration(n) * unit, nil
}

// LoadConfigFromEnv reads:
//   - JWT_SECRET (required)
//   - JWT_ACCESS_TOKEN_TTL (default 15m)
//   - JWT_REFRESH_TOKEN_TTL (default 7d)
//
// Any invalid value is returned as an error wrapping ErrConfig; callers treat
// it as fatal.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return Config{}, fmt.Errorf("%w: JWT_SECRET is required", ErrConfig)
	}
	cfg.Secret = []byte(secret)

	for _, k := range []struct {
		key string
		dst *time.Duration
	}{
		{"JWT_ACCESS_TOKEN_TTL", &cfg.AccessTTL},
		{"JWT_REFRESH_TOKEN_TTL", &cfg.RefreshTTL},
	} {
		v, ok := os.LookupEnv(k.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		d, err := ParseTTL(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", k.key, err)
		}
		*k.dst = d
	}

	if cfg.RefreshTTL < cfg.AccessTTL {
		return Config{}, fmt.Errorf("%w: refresh ttl (%s) shorter than access ttl (%s)",
			ErrConfig, cfg.RefreshTTL, cfg.AccessTTL)
	}
	return cfg, nil
}
