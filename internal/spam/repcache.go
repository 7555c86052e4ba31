package spam

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReputationCache shares reputation scores across instances. Cache
// errors are treated as misses; the score is simply recomputed.
type RedisReputationCache struct {
	client *redis.Client
}

func NewRedisReputationCache(client *redis.Client) *RedisReputationCache {
	return &RedisReputationCache{client: client}
}

func (c *RedisReputationCache) Get(ctx context.Context, ip string) (int, bool) {
	v, err := c.client.Get(ctx, "iprep:"+ip).Result()
	if err != nil {
		return 0, false
	}
	score, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return score, true
}

func (c *RedisReputationCache) Set(ctx context.Context, ip string, score int, ttl time.Duration) {
	_ = c.client.Set(ctx, "iprep:"+ip, strconv.Itoa(score), ttl).Err()
}

// MemoryReputationCache is the in-process fallback when Redis is not
// configured, and the substitute used in tests.
type MemoryReputationCache struct {
	mu      sync.Mutex
	entries map[string]repEntry

	// now is injectable for tests.
	now func() time.Time
}

type repEntry struct {
	score     int
	expiresAt time.Time
}

func NewMemoryReputationCache() *MemoryReputationCache {
	return &MemoryReputationCache{
		entries: make(map[string]repEntry),
		now:     time.Now,
	}
}

func (c *MemoryReputationCache) Get(_ context.Context, ip string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ip]
	if !ok || c.now().After(e.expiresAt) {
		delete(c.entries, ip)
		return 0, false
	}
	return e.score, true
}

func (c *MemoryReputationCache) Set(_ context.Context, ip string, score int, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ip] = repEntry{score: score, expiresAt: c.now().Add(ttl)}
}
