package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// minBlobTTL keeps an already-expired blob around long enough for the
// pre-flight purge to observe and remove it.
const minBlobTTL = time.Second

// RedisStorage stores blobs as Redis strings under prefix:key.
type RedisStorage struct {
	redis  redis.UniversalClient
	prefix string
	// Retain extends the key TTL past the blob's own expiry so a refresh token
	// inside the blob stays usable.
	Retain time.Duration
}

// NewRedisStorage returns a [RedisStorage]. An empty prefix defaults to "sfs".
func NewRedisStorage(client redis.UniversalClient, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = "sfs"
	}
	return &RedisStorage{redis: client, prefix: prefix}
}

func (r *RedisStorage) key(key string) string {
	return r.prefix + ":blob:" + key
}

func (r *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.redis.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return data, nil
}

// Set stores value. When the blob carries a parseable expiry the key expires
// Retain after it; otherwise the key does not expire.
func (r *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	var ttl time.Duration
	if exp, err := ExpiresAt(value); err == nil {
		ttl = time.Until(exp) + r.Retain
		if ttl < minBlobTTL {
			ttl = minBlobTTL
		}
	}
	if err := r.redis.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (r *RedisStorage) Remove(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}
