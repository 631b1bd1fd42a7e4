package password

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// cheapConfig keeps Argon2id fast enough for unit tests.
func cheapConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify_OK(t *testing.T) {
	cfg := cheapConfig()

	h, err := cfg.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(h, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %q", h)
	}

	ok, err := cfg.Verify(h, "correct horse battery")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestHash_SaltsDiffer(t *testing.T) {
	cfg := cheapConfig()

	a, err := cfg.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := cfg.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatalf("two hashes of the same password must differ")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	cfg := cheapConfig()

	h, err := cfg.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "secret124")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestValidate_DefaultBounds(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate("12345"); err != ErrPasswordTooShort {
		t.Fatalf("5 chars: expected ErrPasswordTooShort, got %v", err)
	}
	if err := cfg.Validate("123456"); err != nil {
		t.Fatalf("6 chars: expected ok, got %v", err)
	}
	if err := cfg.Validate(strings.Repeat("a", 128)); err != nil {
		t.Fatalf("128 chars: expected ok, got %v", err)
	}
	if err := cfg.Validate(strings.Repeat("a", 129)); err != ErrPasswordTooLong {
		t.Fatalf("129 chars: expected ErrPasswordTooLong, got %v", err)
	}
	// Runes, not bytes.
	if err := cfg.Validate("пароль"); err != nil {
		t.Fatalf("6 runes: expected ok, got %v", err)
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := cheapConfig()

	for _, in := range []string{
		"not-a-hash",
		"",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5a2V5a2V5a2V5a2V5a2V5",
	} {
		ok, err := cfg.Verify(in, "whatever")
		if !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("%q: expected ErrInvalidHash, got %v", in, err)
		}
		if ok {
			t.Fatalf("%q: expected false", in)
		}
	}
}

func TestVerify_RejectsExcessiveCost(t *testing.T) {
	cfg := cheapConfig()
	h := "$argon2id$v=19$m=1048576,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5"

	if _, err := cfg.Verify(h, "whatever"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true

	for _, weak := range []string{"password", "11111111", "aaaaaaa", "1234567"} {
		if err := cfg.Validate(weak); err != ErrWeakPassword {
			t.Fatalf("%q: expected ErrWeakPassword, got %v", weak, err)
		}
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestHasher_BoundsConcurrency(t *testing.T) {
	cfg := cheapConfig()
	cfg.MaxConcurrent = 2
	h := NewHasher(cfg)

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.sem.Acquire(context.Background(), 1); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			h.sem.Release(1)
		}()
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestHasher_HonorsContext(t *testing.T) {
	cfg := cheapConfig()
	cfg.MaxConcurrent = 1
	h := NewHasher(cfg)

	// Occupy the only slot.
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer h.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := h.Hash(ctx, "secret123"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Hash: expected deadline exceeded, got %v", err)
	}
	if _, err := h.Verify(ctx, "x", "secret123"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Verify: expected deadline exceeded, got %v", err)
	}
}

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(cheapConfig())
	ctx := context.Background()

	enc, err := h.Hash(ctx, "secret123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	ok, err := h.Verify(ctx, enc, "secret123")
	if err != nil || !ok {
		t.Fatalf("Verify: ok=%v err=%v", ok, err)
	}
}

func BenchmarkHash_DefaultConfig(b *testing.B) {
	cfg := DefaultConfig()
	for b.Loop() {
		if _, err := cfg.Hash("this is a strong password 123!"); err != nil {
			b.Fatalf("Hash error: %v", err)
		}
	}
}
