// Package redis connects the optional comparables cache.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"propnest/internal/platform/config"
)

// healthTimeout bounds /healthz pings so a hung cache cannot stall probes.
const healthTimeout = 2 * time.Second

// Client is the cache connection. The embedded client is handed to
// comparables.NewRedisCache.
type Client struct {
	*redis.Client
	addr string
}

// New connects to the comparables cache. It returns nil, nil when no URL is
// configured so callers can treat the cache as optional.
func New(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	applyPoolConfig(opts, cfg)

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	logger.InfoContext(ctx, "connected to redis", "addr", opts.Addr, "db", opts.DB, "pool_size", opts.PoolSize)
	return &Client{Client: client, addr: opts.Addr}, nil
}

// applyPoolConfig overrides URL-derived settings only where config sets them.
func applyPoolConfig(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
}

func (c *Client) Addr() string {
	return c.addr
}

// Health pings the cache for the /healthz endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", c.addr, err)
	}
	return nil
}
