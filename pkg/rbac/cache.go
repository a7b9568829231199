package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache modes
const (
	CacheModeNone   = "none"
	CacheModeMemory = "memory"
	CacheModeRedis  = "redis"
)

// PermissionCache stores effective sets under a generation counter.
// Invalidate bumps the generation, so entries written under an older
// generation are never read again. Readers capture the generation before
// reading storage and write back under that captured value.
type PermissionCache interface {
	Generation(ctx context.Context) (uint64, error)
	Get(ctx context.Context, generation uint64, userID int64) (PermissionSet, bool, error)
	Set(ctx context.Context, generation uint64, userID int64, set PermissionSet) error
	Invalidate(ctx context.Context) error
}

// CacheConfig selects and sizes the effective-set cache
type CacheConfig struct {
	Mode   string
	TTL    time.Duration
	Size   int
	Redis  *redis.Client
	Prefix string
}

// DefaultCacheConfig returns the default in-memory cache settings
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Mode:   CacheModeMemory,
		TTL:    30 * time.Second,
		Size:   10000,
		Prefix: "glossa:rbac",
	}
}

// NewPermissionCache builds the cache selected by cfg.Mode
func NewPermissionCache(cfg CacheConfig) (PermissionCache, error) {
	switch cfg.Mode {
	case "", CacheModeNone:
		return NoopCache{}, nil
	case CacheModeMemory:
		return NewMemoryCache(cfg.Size, cfg.TTL), nil
	case CacheModeRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis cache mode requires a redis client")
		}
		return NewRedisCache(cfg.Redis, cfg.Prefix, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache mode %q", cfg.Mode)
	}
}

// NoopCache never stores anything
type NoopCache struct{}

func (NoopCache) Generation(context.Context) (uint64, error) { return 0, nil }

func (NoopCache) Get(context.Context, uint64, int64) (PermissionSet, bool, error) {
	return nil, false, nil
}

func (NoopCache) Set(context.Context, uint64, int64, PermissionSet) error { return nil }

func (NoopCache) Invalidate(context.Context) error { return nil }

// MemoryCache is a per-process LRU with TTL expiry
type MemoryCache struct {
	cache      *lru.LRU[string, PermissionSet]
	generation atomic.Uint64
}

// NewMemoryCache creates an in-memory cache holding up to size users
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 10000
	}
	return &MemoryCache{
		cache: lru.NewLRU[string, PermissionSet](size, nil, ttl),
	}
}

func memoryKey(generation uint64, userID int64) string {
	return strconv.FormatUint(generation, 10) + ":" + strconv.FormatInt(userID, 10)
}

// Generation returns the current generation
func (c *MemoryCache) Generation(ctx context.Context) (uint64, error) {
	return c.generation.Load(), nil
}

// Get returns the cached set for a user at a generation
func (c *MemoryCache) Get(ctx context.Context, generation uint64, userID int64) (PermissionSet, bool, error) {
	set, ok := c.cache.Get(memoryKey(generation, userID))
	return set, ok, nil
}

// Set stores a set. Writes for a stale generation are dropped.
func (c *MemoryCache) Set(ctx context.Context, generation uint64, userID int64, set PermissionSet) error {
	if generation != c.generation.Load() {
		return nil
	}
	c.cache.Add(memoryKey(generation, userID), set)
	return nil
}

// Invalidate moves to a new generation and drops every entry
func (c *MemoryCache) Invalidate(ctx context.Context) error {
	c.generation.Add(1)
	c.cache.Purge()
	return nil
}

// Len returns the number of cached entries
func (c *MemoryCache) Len() int {
	return c.cache.Len()
}

// RedisCache shares effective sets through Redis
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache. Keys are
// {prefix}:perms:{generation}:{userID}; the generation lives at
// {prefix}:generation.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "glossa:rbac"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) generationKey() string {
	return c.prefix + ":generation"
}

func (c *RedisCache) permsKey(generation uint64, userID int64) string {
	return fmt.Sprintf("%s:perms:%d:%d", c.prefix, generation, userID)
}

// Generation reads the shared generation counter
func (c *RedisCache) Generation(ctx context.Context) (uint64, error) {
	value, err := c.client.Get(ctx, c.generationKey()).Uint64()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

// Get returns the cached set for a user at a generation
func (c *RedisCache) Get(ctx context.Context, generation uint64, userID int64) (PermissionSet, bool, error) {
	key := c.permsKey(generation, userID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil // Cache miss
	} else if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		// If unmarshal fails, delete corrupt data
		c.client.Del(ctx, key)
		return nil, false, fmt.Errorf("failed to unmarshal permission set: %w", err)
	}
	return NewPermissionSet(codes...), true, nil
}

// Set stores a set under the given generation
func (c *RedisCache) Set(ctx context.Context, generation uint64, userID int64, set PermissionSet) error {
	data, err := json.Marshal(set.Codes())
	if err != nil {
		return fmt.Errorf("failed to marshal permission set: %w", err)
	}
	return c.client.Set(ctx, c.permsKey(generation, userID), data, c.ttl).Err()
}

// Invalidate increments the shared generation; old keys age out by TTL
func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}
	return nil
}
