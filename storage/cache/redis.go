package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// Entries expire after 72 hours; a live profile re-renders its reports far
// more often than that.
const entryTTL = 72 * time.Hour

// RedisCache is a Redis-backed implementation of CacheInterface.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache instance. It does not connect; call
// Connect on the returned instance.
func NewRedisCache() *RedisCache {
	return &RedisCache{}
}

// Connect establishes a connection to the Redis backend.
func (r *RedisCache) Connect(redisURL string) error {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}
	r.client = redis.NewClient(opt)

	_, err = r.client.Ping(context.Background()).Result()
	return err
}

// Disconnect closes the connection to the Redis server.
func (r *RedisCache) Disconnect() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Set stores a key-value pair, JSON-marshaling the value. Overwriting an
// existing key replaces the previous value; superseded report exports are
// dropped this way.
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	marshaled, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, marshaled, entryTTL).Err()
}

// Get retrieves and unmarshals the value of a key. A missing key yields
// ErrKeyNotFound.
func (r *RedisCache) Get(ctx context.Context, key string) (interface{}, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrKeyNotFound
	} else if err != nil {
		return nil, err
	}

	var result interface{}
	if err := json.Unmarshal([]byte(value), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Clear removes all keys from the currently selected Redis database.
func (r *RedisCache) Clear(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}
