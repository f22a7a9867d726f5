// Package redis connects the shared Redis used for the calendar booking lock.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dunning/internal/platform/config"
)

type Client struct {
	*redis.Client
}

// New dials Redis and pings it. An empty URL returns a nil client, which
// callers treat as "use the in-process lock".
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	applyPool(opts, cfg)

	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return &Client{Client: c}, nil
}

func applyPool(opts *redis.Options, cfg config.RedisConfig) {
	setInt(&opts.PoolSize, cfg.PoolSize)
	opts.MinIdleConns = cfg.MinIdleConns
	setDur(&opts.DialTimeout, cfg.DialTimeout)
	setDur(&opts.ReadTimeout, cfg.ReadTimeout)
	setDur(&opts.WriteTimeout, cfg.WriteTimeout)
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDur(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
