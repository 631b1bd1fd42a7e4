package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps backend failures.
var ErrUnavailable = errors.New("rate limit backend unavailable")

// Counter is a fixed-window counter store. A window starts on the first Incr
// of a key and the key disappears when it ends.
type Counter interface {
	// Get returns the current count and the time left in the window.
	Get(ctx context.Context, key string) (int64, time.Duration, error)
	// Incr adds one, starting a window of length window if none is open.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	// Reset deletes keys.
	Reset(ctx context.Context, keys ...string) error
}

// RedisCounter implements Counter with INCR + PEXPIRE.
type RedisCounter struct {
	rdb redis.UniversalClient
}

// NewRedisCounter returns a Counter backed by rdb.
func NewRedisCounter(rdb redis.UniversalClient) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func (c *RedisCounter) Get(ctx context.Context, key string) (int64, time.Duration, error) {
	pipe := c.rdb.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	n, err := getCmd.Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, positive(ttlCmd.Val()), nil
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n == 1 {
		if err := c.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return n, window, nil
	}

	ttl, err := c.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl < 0 {
		// A previous PEXPIRE was lost; close the window now.
		if err := c.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		ttl = window
	}
	return n, ttl, nil
}

func (c *RedisCounter) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// MemoryCounter implements Counter in process memory.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

type memEntry struct {
	count   int64
	expires time.Time
}

// NewMemoryCounter returns an empty MemoryCounter. now may be nil.
func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{entries: make(map[string]memEntry), now: now}
}

func (c *MemoryCounter) Get(_ context.Context, key string) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.live(key)
	if !ok {
		return 0, 0, nil
	}
	return e.count, e.expires.Sub(c.now()), nil
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.live(key)
	if !ok {
		e = memEntry{expires: now.Add(window)}
	}
	e.count++
	c.entries[key] = e

	c.sweep(now)
	return e.count, e.expires.Sub(now), nil
}

func (c *MemoryCounter) Reset(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

// live returns the entry for key if its window is still open. Caller holds mu.
func (c *MemoryCounter) live(key string) (memEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return memEntry{}, false
	}
	return e, true
}

// sweep drops expired entries once the map grows. Caller holds mu.
func (c *MemoryCounter) sweep(now time.Time) {
	if len(c.entries) < 4096 {
		return
	}
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
