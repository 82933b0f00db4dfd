package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"mercado/internal/constants"
)

// AttemptTracker counts failed processing attempts per idempotency key so
// the redelivery cap holds across worker restarts.
type AttemptTracker interface {
	Incr(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}

type RedisAttemptTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAttemptTracker(client *redis.Client, ttl time.Duration) *RedisAttemptTracker {
	if ttl <= 0 {
		ttl = constants.DefaultAttemptsTTL
	}
	return &RedisAttemptTracker{client: client, ttl: ttl}
}

func (t *RedisAttemptTracker) Incr(ctx context.Context, key string) (int, error) {
	redisKey := constants.CacheKeyPrefixAttempts + key

	var incr *redis.IntCmd
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, t.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count attempt: %w", err)
	}
	return int(incr.Val()), nil
}

func (t *RedisAttemptTracker) Reset(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, constants.CacheKeyPrefixAttempts+key).Err(); err != nil {
		return fmt.Errorf("failed to reset attempts: %w", err)
	}
	return nil
}

// MemoryAttemptTracker is used when no Redis is configured. Counts are lost
// on restart, in which case the x-delivery-count header still applies.
type MemoryAttemptTracker struct {
	mu       sync.Mutex
	attempts map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

type memoryEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryAttemptTracker(ttl time.Duration) *MemoryAttemptTracker {
	if ttl <= 0 {
		ttl = constants.DefaultAttemptsTTL
	}
	return &MemoryAttemptTracker{
		attempts: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (t *MemoryAttemptTracker) Incr(ctx context.Context, key string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	entry := t.attempts[key]
	if now.After(entry.expiresAt) {
		entry.count = 0
	}
	entry.count++
	entry.expiresAt = now.Add(t.ttl)
	t.attempts[key] = entry
	return entry.count, nil
}

func (t *MemoryAttemptTracker) Reset(ctx context.Context, key string) error {
	t.mu.Lock()
	delete(t.attempts, key)
	t.mu.Unlock()
	return nil
}
