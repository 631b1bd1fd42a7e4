package app

import (
	"errors"
	"fmt"
	"slices"
)

// minProductionSecretBytes is the HS256 key floor enforced in production.
const minProductionSecretBytes = 32

// ValidateSecurityConfig enforces the startup security policy. It measures
// the secret in bytes because the key is used as raw bytes.
//
// Development only needs a non-empty secret; production also needs a long
// secret, a cookie domain and no wildcard CORS origin with credentials.
func ValidateSecurityConfig(cfg Config, jwtSecret []byte, cookieDomain string) error {
	if len(jwtSecret) == 0 {
		return errors.New("security policy: JWT_SECRET is missing")
	}
	if !cfg.Production() {
		return nil
	}

	if len(jwtSecret) < minProductionSecretBytes {
		return fmt.Errorf("security policy: JWT_SECRET is too short for production (min %d bytes)", minProductionSecretBytes)
	}
	if cookieDomain == "" {
		return errors.New("security policy: COOKIE_DOMAIN is required in production")
	}
	if cfg.CORSAllowCredentials && slices.Contains(cfg.CORSAllowedOrigins, "*") {
		return errors.New("security policy: wildcard CORS origin cannot be combined with credentials")
	}
	return nil
}
