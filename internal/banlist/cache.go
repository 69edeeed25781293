package banlist

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/tcglibrary/catalog/internal/metrics"
)

// Cache namespaces
const (
	NamespaceBanlist  = "banlist"
	NamespaceRotation = "rotation"
)

const (
	redisKeyPrefix        = "tcg:cache:"
	redisGenerationPrefix = "tcg:cachegen:"
)

// Cache stores resolved views keyed by namespace and format. Entries have no
// expiry; Invalidate is the only way they go stale.
//
// Invalidate also advances the namespace generation. Readers put the
// generation they saw before reading the store into the key they fill, so a
// fill computed before an invalidation is written under a key no later
// reader asks for.
type Cache interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Invalidate(ctx context.Context, namespace string) error
	Generation(ctx context.Context, namespace string) (int64, error)
}

// MemoryCache is a process-local Cache
type MemoryCache struct {
	mu          sync.RWMutex
	entries     map[string]map[string][]byte
	generations map[string]int64
}

// NewMemoryCache creates an empty MemoryCache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries:     make(map[string]map[string][]byte),
		generations: make(map[string]int64),
	}
}

// Get returns the cached value, if any
func (c *MemoryCache) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.entries[namespace][key]
	recordLookup(namespace, ok)
	return value, ok, nil
}

// Set stores value under namespace/key
func (c *MemoryCache) Set(ctx context.Context, namespace, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ns, ok := c.entries[namespace]
	if !ok {
		ns = make(map[string][]byte)
		c.entries[namespace] = ns
	}
	ns[key] = value
	return nil
}

// Invalidate drops every entry in namespace and advances its generation
func (c *MemoryCache) Invalidate(ctx context.Context, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, namespace)
	c.generations[namespace]++
	metrics.CacheRequestsTotal.WithLabelValues(namespace, "invalidate").Inc()
	return nil
}

// Generation returns how many times namespace has been invalidated
func (c *MemoryCache) Generation(ctx context.Context, namespace string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[namespace], nil
}

// RedisCache shares resolved views between server instances
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis-backed Cache
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func redisKey(namespace, key string) string {
	return redisKeyPrefix + namespace + ":" + key
}

// Get returns the cached value, if any
func (c *RedisCache) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, redisKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		recordLookup(namespace, false)
		return nil, false, nil
	}
	if err != nil {
		metrics.CacheRequestsTotal.WithLabelValues(namespace, "error").Inc()
		return nil, false, err
	}
	recordLookup(namespace, true)
	return value, true, nil
}

// Set stores value without expiry
func (c *RedisCache) Set(ctx context.Context, namespace, key string, value []byte) error {
	return c.client.Set(ctx, redisKey(namespace, key), value, 0).Err()
}

// Generation reads the namespace counter; a missing counter is generation 0
func (c *RedisCache) Generation(ctx context.Context, namespace string) (int64, error) {
	gen, err := c.client.Get(ctx, redisGenerationPrefix+namespace).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Invalidate advances the generation, then deletes every key of namespace.
// The counter lives outside the namespace key pattern.
func (c *RedisCache) Invalidate(ctx context.Context, namespace string) error {
	if err := c.client.Incr(ctx, redisGenerationPrefix+namespace).Err(); err != nil {
		metrics.CacheRequestsTotal.WithLabelValues(namespace, "error").Inc()
		return err
	}

	iter := c.client.Scan(ctx, 0, redisKey(namespace, "*"), 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		metrics.CacheRequestsTotal.WithLabelValues(namespace, "error").Inc()
		return err
	}

	metrics.CacheRequestsTotal.WithLabelValues(namespace, "invalidate").Inc()
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func recordLookup(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.CacheRequestsTotal.WithLabelValues(namespace, result).Inc()
}
