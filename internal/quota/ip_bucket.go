package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/superagent/debatecore/internal/models"
)

// IPBucket rate-limits requests per (ip, window): allowed iff the
// window's running count stays at or under maxCalls.
type IPBucket interface {
	// Allow increments the count for ip's current window and reports
	// whether the call is allowed. On rejection it returns a
	// RateLimitError with retry_after_seconds set to the remaining
	// window.
	Allow(ctx context.Context, ip string, window time.Duration, maxCalls int) error
}

// MemoryIPBucket is the single-process realization: an in-memory map
// guarded by a mutex, one entry per (ip, window) key.
type MemoryIPBucket struct {
	mu      sync.Mutex
	buckets map[string]*bucketEntry
	now     func() time.Time
}

type bucketEntry struct {
	count       int
	windowStart time.Time
}

// NewMemoryIPBucket creates a memory-backed IP bucket.
func NewMemoryIPBucket() *MemoryIPBucket {
	return &MemoryIPBucket{buckets: make(map[string]*bucketEntry), now: time.Now}
}

// Allow implements IPBucket.
func (b *MemoryIPBucket) Allow(ctx context.Context, ip string, window time.Duration, maxCalls int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	key := ip
	entry, ok := b.buckets[key]
	if !ok || now.Sub(entry.windowStart) >= window {
		entry = &bucketEntry{count: 0, windowStart: now}
		b.buckets[key] = entry
	}

	entry.count++
	if entry.count > maxCalls {
		return &models.RateLimitError{
			Reason:            "rate_limit.exceeded",
			RetryAfterSeconds: int(window - now.Sub(entry.windowStart)),
			ResetAt:           entry.windowStart.Add(window),
		}
	}
	return nil
}

// RedisIPBucket is the distributed realization: one INCR per (ip,
// window) key with an EXPIRE set only on first increment, so every
// server process sharing the same Redis sees the same count.
type RedisIPBucket struct {
	client *redis.Client
	prefix string
}

// NewRedisIPBucket wraps an existing go-redis client.
func NewRedisIPBucket(client *redis.Client) *RedisIPBucket {
	return &RedisIPBucket{client: client, prefix: "ratelimit:ip:"}
}

// Allow implements IPBucket.
func (b *RedisIPBucket) Allow(ctx context.Context, ip string, window time.Duration, maxCalls int) error {
	key := fmt.Sprintf("%s%s:%d", b.prefix, ip, window/time.Second)
	count, err := b.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("increment ip bucket: %w", err)
	}
	if count == 1 {
		if err := b.client.Expire(ctx, key, window).Err(); err != nil {
			return fmt.Errorf("set ip bucket ttl: %w", err)
		}
	}
	if count > int64(maxCalls) {
		ttl, err := b.client.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = window
		}
		return &models.RateLimitError{
			Reason:            "rate_limit.exceeded",
			RetryAfterSeconds: int(ttl.Seconds()),
			ResetAt:           time.Now().Add(ttl),
		}
	}
	return nil
}
