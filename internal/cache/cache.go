// Package cache provides a small keyed cache with an in-memory and a Redis
// backend. Values are msgpack encoded in both backends.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/TwiN/gocache/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Key prefixes
const (
	KeyReputation = "reputation"
)

// Key joins the passed parts to a cache key
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Cache stores msgpack encodable values under string keys
type Cache interface {
	// Get decodes the value for key into target and reports whether it was set
	Get(ctx context.Context, key string, target any) (bool, error)
	// Set stores value for key; a ttl <= 0 means no expiration
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Delete removes key
	Delete(ctx context.Context, key string) error
	// Clear removes all keys starting with prefix
	Clear(ctx context.Context, prefix string) error
}

// MemoryCache is a Cache kept in process memory
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache returns a MemoryCache holding at most maxSize entries
func NewMemoryCache(maxSize int) *MemoryCache {
	c := gocache.NewCache().WithEvictionPolicy(gocache.LeastRecentlyUsed)
	if maxSize > 0 {
		c = c.WithMaxSize(maxSize)
	}
	_ = c.StartJanitor()
	return &MemoryCache{c: c}
}

// Close stops the background expiry of the cache
func (m *MemoryCache) Close() {
	m.c.StopJanitor()
}

// Get implements the Cache interface
func (m *MemoryCache) Get(_ context.Context, key string, target any) (bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return false, nil
	}
	data, ok := v.([]byte)
	if !ok {
		return false, errors.Errorf("unexpected cache entry type %T", v)
	}
	return true, errors.Wrap(msgpack.Unmarshal(data, target), "failed to decode cache entry")
}

// Set implements the Cache interface
func (m *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to encode cache entry")
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.SetWithTTL(key, data, ttl)
	return nil
}

// Delete implements the Cache interface
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// Clear implements the Cache interface
func (m *MemoryCache) Clear(_ context.Context, prefix string) error {
	m.c.DeleteKeysByPattern(prefix + "*")
	return nil
}

// RedisCache is a Cache backed by Redis
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// DefaultRedisPrefix namespaces all cache keys in Redis
const DefaultRedisPrefix = "credtrust:cache:"

// NewRedisCache returns a RedisCache and checks the connection
func NewRedisCache(ctx context.Context, client redis.UniversalClient) (*RedisCache, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to redis")
	}
	return &RedisCache{
		client: client,
		prefix: DefaultRedisPrefix,
	}, nil
}

// Get implements the Cache interface
func (r *RedisCache) Get(ctx context.Context, key string, target any) (bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to read cache entry")
	}
	return true, errors.Wrap(msgpack.Unmarshal(data, target), "failed to decode cache entry")
}

// Set implements the Cache interface
func (r *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to encode cache entry")
	}
	if ttl < 0 {
		ttl = 0
	}
	return errors.Wrap(r.client.Set(ctx, r.prefix+key, data, ttl).Err(), "failed to write cache entry")
}

// Delete implements the Cache interface
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return errors.Wrap(r.client.Del(ctx, r.prefix+key).Err(), "failed to delete cache entry")
}

// Clear implements the Cache interface
func (r *RedisCache) Clear(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, r.prefix+prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "failed to scan cache keys")
	}
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(r.client.Del(ctx, keys...).Err(), "failed to clear cache entries")
}

// Nop is a Cache that never stores anything
type Nop struct{}

// Get implements the Cache interface
func (Nop) Get(context.Context, string, any) (bool, error) {
	return false, nil
}

// Set implements the Cache interface
func (Nop) Set(context.Context, string, any, time.Duration) error {
	return nil
}

// Delete implements the Cache interface
func (Nop) Delete(context.Context, string) error {
	return nil
}

// Clear implements the Cache interface
func (Nop) Clear(context.Context, string) error {
	return nil
}
