// Package cache provides the Redis access layer used for login throttling.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps the Redis client behind the login throttle.
type Cache struct {
	client *redis.Client
}

// clientOptions parses redisURL and sizes the pool for a short-lived CLI
// process that issues one throttle check per command.
func clientOptions(redisURL string) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.PoolSize = 4
	opt.MinIdleConns = 0
	opt.PoolTimeout = 2 * time.Second
	if opt.DialTimeout == 0 || opt.DialTimeout > 2*time.Second {
		opt.DialTimeout = 2 * time.Second
	}
	return opt, nil
}

// New connects to redisURL and pings it. The client is closed when the
// ping fails.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := clientOptions(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", opt.Addr, err)
	}

	return &Cache{client: client}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping checks Redis connectivity. It satisfies health.Checker.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
