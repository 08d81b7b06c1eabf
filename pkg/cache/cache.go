package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"smmpanel/pkg/logger"
	"smmpanel/pkg/metrics"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache interface - caching operations
type Cache interface {
	// Basic operations
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Batch and pattern operations
	DeleteMultiple(ctx context.Context, keys []string) error
	InvalidatePrefix(ctx context.Context, prefix string) error

	// Health check
	Ping(ctx context.Context) error
}

// RedisCache implements Cache interface
type RedisCache struct {
	client *redis.Client
	logger logger.Logger
	prefix string
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(client *redis.Client, logger logger.Logger, prefix string) Cache {
	return &RedisCache{
		client: client,
		logger: logger,
		prefix: prefix,
	}
}

func (r *RedisCache) makeKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

// Set stores a value in cache
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Error("Cache set marshal error", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return err
	}

	fullKey := r.makeKey(key)
	if err := r.client.Set(ctx, fullKey, data, expiration).Err(); err != nil {
		r.logger.Error("Cache set error", map[string]interface{}{
			"key":   fullKey,
			"error": err.Error(),
		})
		return err
	}

	r.logger.Debug("Cache set", map[string]interface{}{
		"key":        fullKey,
		"expiration": expiration,
	})
	return nil
}

// Get retrieves a value from cache
func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	fullKey := r.makeKey(key)
	data, err := r.client.Get(ctx, fullKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheMiss()
			r.logger.Debug("Cache miss", map[string]interface{}{"key": fullKey})
			return ErrCacheMiss
		}
		r.logger.Error("Cache get error", map[string]interface{}{
			"key":   fullKey,
			"error": err.Error(),
		})
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		r.logger.Error("Cache get unmarshal error", map[string]interface{}{
			"key":   fullKey,
			"error": err.Error(),
		})
		return err
	}

	metrics.RecordCacheHit()
	r.logger.Debug("Cache hit", map[string]interface{}{"key": fullKey})
	return nil
}

// Delete removes a key from cache
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	fullKey := r.makeKey(key)
	if err := r.client.Del(ctx, fullKey).Err(); err != nil {
		r.logger.Error("Cache delete error", map[string]interface{}{
			"key":   fullKey,
			"error": err.Error(),
		})
		return err
	}
	return nil
}

// Exists checks if a key exists in cache
func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Exists(ctx, r.makeKey(key)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteMultiple deletes multiple keys
func (r *RedisCache) DeleteMultiple(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = r.makeKey(key)
	}

	if err := r.client.Del(ctx, fullKeys...).Err(); err != nil {
		r.logger.Error("Cache delete multiple error", map[string]interface{}{
			"keys":  len(keys),
			"error": err.Error(),
		})
		return err
	}
	return nil
}

// InvalidatePrefix deletes every key under prefix. SCAN is used so a large
// keyspace does not block redis.
func (r *RedisCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	pattern := r.makeKey(prefix + "*")
	iter := r.client.Scan(ctx, 0, pattern, 200).Iterator()

	var batch []string
	deleted := 0
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 200 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			deleted += len(batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		r.logger.Error("Cache scan error", map[string]interface{}{
			"pattern": pattern,
			"error":   err.Error(),
		})
		return err
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return err
		}
		deleted += len(batch)
	}

	r.logger.Info("Cache prefix invalidated", map[string]interface{}{
		"pattern":      pattern,
		"deleted_keys": deleted,
	})
	return nil
}

// Ping checks Redis connection
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
