package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tracker remembers which issues have already been claimed for posting
type Tracker interface {
	// Claim marks id as claimed. It returns false if id was already claimed.
	Claim(ctx context.Context, id string) (bool, error)
}

// MemoryTracker claims issues within a single process
type MemoryTracker struct {
	mu      sync.RWMutex
	claimed map[string]bool
}

// NewMemoryTracker creates an empty in-process tracker
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{claimed: make(map[string]bool)}
}

// Claim implements Tracker
func (t *MemoryTracker) Claim(_ context.Context, id string) (bool, error) {
	if t.isClaimed(id) {
		return false, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.claimed[id] {
		return false, nil
	}
	t.claimed[id] = true
	return true, nil
}

func (t *MemoryTracker) isClaimed(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.claimed[id]
}

const (
	// DefaultClaimTTL bounds how long a claim is remembered in Redis
	DefaultClaimTTL = 30 * 24 * time.Hour

	claimKeyPrefix = "ourstreet:social:posted:"
)

// RedisTracker claims issues across every instance sharing a Redis
type RedisTracker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisTracker creates a tracker from a redis:// URL
func NewRedisTracker(url string, ttl time.Duration) (*RedisTracker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewRedisTrackerFromClient(redis.NewClient(opts), ttl), nil
}

// NewRedisTrackerFromClient wraps an existing client
func NewRedisTrackerFromClient(rdb *redis.Client, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &RedisTracker{rdb: rdb, ttl: ttl}
}

// Claim implements Tracker
func (t *RedisTracker) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := t.rdb.SetNX(ctx, claimKeyPrefix+id, time.Now().UTC().Format(time.RFC3339), t.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim issue %s: %w", id, err)
	}
	return ok, nil
}

// Close closes the Redis client
func (t *RedisTracker) Close() error {
	return t.rdb.Close()
}
