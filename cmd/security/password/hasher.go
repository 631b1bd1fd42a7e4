package password

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Hasher runs Config.Hash and Config.Verify under a weighted semaphore so
// concurrent logins cannot exhaust memory (each Argon2id call allocates
// Params.MemoryKiB).
type Hasher struct {
	cfg Config
	sem *semaphore.Weighted
}

// NewHasher constructs a Hasher. MaxConcurrent <= 0 means one at a time.
func NewHasher(cfg Config) *Hasher {
	n := int64(cfg.MaxConcurrent)
	if n <= 0 {
		n = 1
	}
	return &Hasher{cfg: cfg, sem: semaphore.NewWeighted(n)}
}

// Hash waits for a slot (or ctx) and hashes password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	return h.cfg.Hash(password)
}

// Verify waits for a slot (or ctx) and verifies password against encoded.
func (h *Hasher) Verify(ctx context.Context, encoded, password string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	return h.cfg.Verify(encoded, password)
}
