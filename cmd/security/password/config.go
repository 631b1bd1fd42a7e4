package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds accepted plaintext passwords.
type Policy struct {
	MinLength      int
	MaxLength      int
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy

	// MaxConcurrent caps simultaneous hash/verify computations per Hasher.
	MaxConcurrent int
}

// DefaultConfig returns the baseline used when no env overrides are present.
func DefaultConfig() Config {
	threads := clampCPU(runtime.NumCPU(), 1, 4)

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 6,
			MaxLength: 128,
		},
		MaxConcurrent: clampCPU(runtime.NumCPU()*2, 2, 16),
	}
}

// FromEnv loads config from environment variables on top of DefaultConfig.
//
// Env surface:
//   - TASKER_PASSWORD_MIN_LEN
//   - TASKER_PASSWORD_MAX_LEN
//   - TASKER_PASSWORD_REJECT_VERY_WEAK
//   - TASKER_ARGON2_MEMORY_KIB
//   - TASKER_ARGON2_ITERATIONS
//   - TASKER_ARGON2_PARALLELISM
//   - TASKER_ARGON2_SALT_LEN
//   - TASKER_ARGON2_KEY_LEN
//   - TASKER_ARGON2_MAX_CONCURRENT
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	type intKnob struct {
		key      string
		min, max int
		dst      *int
	}
	for _, k := range []intKnob{
		{"TASKER_PASSWORD_MIN_LEN", 1, 1024, &cfg.Policy.MinLength},
		{"TASKER_PASSWORD_MAX_LEN", 1, 4096, &cfg.Policy.MaxLength},
		{"TASKER_ARGON2_MAX_CONCURRENT", 1, 256, &cfg.MaxConcurrent},
	} {
		v, ok := os.LookupEnv(k.key)
		if !ok {
			continue
		}
		n, err := atoiRange(v, k.min, k.max)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", k.key, err)
		}
		*k.dst = n
	}

	if v, ok := os.LookupEnv("TASKER_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("TASKER_PASSWORD_REJECT_VERY_WEAK: invalid boolean")
		}
		cfg.Policy.RejectVeryWeak = b
	}

	type u32Knob struct {
		key      string
		min, max uint32
		dst      *uint32
	}
	for _, k := range []u32Knob{
		{"TASKER_ARGON2_MEMORY_KIB", 8 * 1024, 1024 * 1024, &cfg.Params.MemoryKiB},
		{"TASKER_ARGON2_ITERATIONS", 1, 20, &cfg.Params.Iterations},
		{"TASKER_ARGON2_SALT_LEN", 8, 64, &cfg.Params.SaltLength},
		{"TASKER_ARGON2_KEY_LEN", 16, 64, &cfg.Params.KeyLength},
	} {
		v, ok := os.LookupEnv(k.key)
		if !ok {
			continue
		}
		u, err := atou32Range(v, k.min, k.max)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", k.key, err)
		}
		*k.dst = u
	}

	if v, ok := os.LookupEnv("TASKER_ARGON2_PARALLELISM"); ok {
		u, err := atou32Range(v, 1, math.MaxUint8)
		if err != nil {
			return Config{}, fmt.Errorf("TASKER_ARGON2_PARALLELISM: %w", err)
		}
		cfg.Params.Parallelism = uint8(u) // #nosec G115 -- bounded above.
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func clampCPU(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func atoiRange(s string, minVal, maxVal int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	if n < minVal || n > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return n, nil
}

func atou32Range(s string, minVal, maxVal uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}
	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}
