package cache

import (
	"context"
	"fmt"
)

// CacheInterface defines the methods a cache backend needs to implement.
// The reporter keeps rendered report exports here, and the notification
// consumers use it to deduplicate tier messages.
type CacheInterface interface {
	Connect(url string) error
	Disconnect() error
	Set(ctx context.Context, key string, value interface{}) error
	Get(ctx context.Context, key string) (interface{}, error)
	Clear(ctx context.Context) error
}

// ErrKeyNotFound is returned by Get for a key that has no value.
var ErrKeyNotFound = fmt.Errorf("key does not exist")

// NewCache creates a CacheInterface with a Redis backend, connected to the
// provided address.
func NewCache(url string) (CacheInterface, error) {
	c := NewRedisCache()
	if err := c.Connect(url); err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return c, nil
}
