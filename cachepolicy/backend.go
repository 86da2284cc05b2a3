package cachepolicy

import (
	"context"
	"sync"
	"time"

	"github.com/flowcraft/reactorpipe/core"
	"github.com/go-redis/redis/v8"
)

// RedisBackend implements core.CacheBackend on top of core.RedisClient,
// using the framework's reserved cache DB (core.RedisDBCache) and the
// configured key prefix for namespace isolation.
type RedisBackend struct {
	client *core.RedisClient
}

// NewRedisBackend wraps an already-constructed core.RedisClient. Callers
// typically build that client with core.NewRedisClient(core.RedisClientOptions{
// DB: core.RedisDBCache, Namespace: cfg.Cache.Prefix}).
func NewRedisBackend(client *core.RedisClient) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.client.Get(ctx, key)
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(val), true, nil
}

func (b *RedisBackend) Put(ctx context.Context, key string, value []byte, ttlSeconds int64) error {
	var ttl time.Duration
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return b.client.Set(ctx, key, value, ttl)
}

func (b *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := b.Get(ctx, key)
	return found, err
}

func (b *RedisBackend) Invalidate(ctx context.Context, key string) (bool, error) {
	if err := b.client.Del(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// InvalidateByPrefix enumerates keys under prefix via SCAN and deletes them.
// Redis has no native prefix-delete primitive, so this is a scan-then-delete
// pair rather than a single round trip (§4.4 "invalidate all of type").
func (b *RedisBackend) InvalidateByPrefix(ctx context.Context, prefix string) (int64, error) {
	keys, err := b.client.ScanKeys(ctx, prefix)
	if err != nil {
		return 0, core.NewFrameworkError("RedisBackend.InvalidateByPrefix", "cache", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := b.client.Del(ctx, keys...); err != nil {
		return 0, core.NewFrameworkError("RedisBackend.InvalidateByPrefix", "cache", err)
	}
	return int64(len(keys)), nil
}

// InMemoryBackend is a process-local cache backend for tests and
// core.DevelopmentConfig.MockCache, avoiding a Redis dependency in unit tests.
type InMemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]inMemoryEntry
}

type inMemoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryBackend builds an empty in-memory cache backend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{entries: make(map[string]inMemoryEntry)}
}

func (b *InMemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (b *InMemoryBackend) Put(ctx context.Context, key string, value []byte, ttlSeconds int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var expires time.Time
	if ttlSeconds > 0 {
		expires = time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	}
	b.entries[key] = inMemoryEntry{value: value, expiresAt: expires}
	return nil
}

func (b *InMemoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := b.Get(ctx, key)
	return found, err
}

func (b *InMemoryBackend) Invalidate(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, existed := b.entries[key]
	delete(b.entries, key)
	return existed, nil
}

func (b *InMemoryBackend) InvalidateByPrefix(ctx context.Context, prefix string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var count int64
	for k := range b.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(b.entries, k)
			count++
		}
	}
	return count, nil
}
