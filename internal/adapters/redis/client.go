package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"hermes/internal/adapters/config"
	"hermes/pkg/errors"
)

// Client wraps the Redis connection used for distributed rate limiting.
type Client struct {
	rdb *redis.Client
}

// NewClient connects and verifies the connection.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	return &Client{rdb: rdb}, nil
}

// Client returns the underlying Redis client.
func (c *Client) Client() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks Redis connectivity.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
