package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quillhq/quill/internal/log"
)

// Tag sets live longer than any value TTL so invalidation still sees
// keys whose values expired on their own. Stale members in a tag set
// only cost a no-op DEL.
const tagSetTTL = 2 * time.Hour

const (
	valueKeyPrefix = "quill:cache:"
	tagKeyPrefix   = "quill:tag:"
)

// Redis is a Cache backed by a Redis server, for deployments with more
// than one API instance. Load failures pass through; Redis failures on
// the read path degrade to calling load directly rather than failing
// the request.
type Redis struct {
	client *redis.Client
	logger log.Logger
}

// NewRedis creates a Redis-backed cache and verifies connectivity.
func NewRedis(ctx context.Context, addr string, db int, logger log.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return &Redis{client: client, logger: logger}, nil
}

// GetOrLoad implements Cache.
func (r *Redis) GetOrLoad(ctx context.Context, key string, ttl time.Duration, tags []string, load LoadFunc) ([]byte, error) {
	valueKey := valueKeyPrefix + key

	value, err := r.client.Get(ctx, valueKey).Bytes()
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, redis.Nil) {
		r.logger.Warn("cache read failed, loading directly", "key", key, "error", err)
	}

	value, err = load(ctx)
	if err != nil {
		return nil, err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, valueKey, value, ttl)
	for _, tag := range tags {
		tagKey := tagKeyPrefix + tag
		pipe.SAdd(ctx, tagKey, valueKey)
		pipe.Expire(ctx, tagKey, tagSetTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		// The value was loaded; failing to cache it is not fatal.
		r.logger.Warn("cache store failed", "key", key, "error", err)
	}
	return value, nil
}

// Invalidate implements Cache.
func (r *Redis) Invalidate(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		tagKey := tagKeyPrefix + tag
		keys, err := r.client.SMembers(ctx, tagKey).Result()
		if err != nil {
			return fmt.Errorf("reading tag set %s: %w", tag, err)
		}
		keys = append(keys, tagKey)
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("invalidating tag %s: %w", tag, err)
		}
	}
	return nil
}

// Close releases the underlying Redis connection.
func (r *Redis) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("closing redis client: %w", err)
	}
	return nil
}
