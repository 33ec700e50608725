package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"presence/internal/platform/config"
)

// Client wraps the go-redis client with health checking and pool metrics.
type Client struct {
	*redis.Client
}

// New connects to Redis. It returns nil, nil when no URL is configured.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health pings Redis; registered as a readiness check.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RegisterPoolMetrics exposes connection pool statistics, read at scrape time.
func (c *Client) RegisterPoolMetrics(reg prometheus.Registerer) error {
	stat := func(name, help string, read func(*redis.PoolStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return read(c.PoolStats())
		})
	}
	collectors := []prometheus.Collector{
		stat("presence_redis_pool_hits", "Times a free connection was found in the pool",
			func(s *redis.PoolStats) float64 { return float64(s.Hits) }),
		stat("presence_redis_pool_misses", "Times a free connection was not found in the pool",
			func(s *redis.PoolStats) float64 { return float64(s.Misses) }),
		stat("presence_redis_pool_timeouts", "Times a wait for a connection timed out",
			func(s *redis.PoolStats) float64 { return float64(s.Timeouts) }),
		stat("presence_redis_pool_total_conns", "Connections currently in the pool",
			func(s *redis.PoolStats) float64 { return float64(s.TotalConns) }),
		stat("presence_redis_pool_idle_conns", "Idle connections in the pool",
			func(s *redis.PoolStats) float64 { return float64(s.IdleConns) }),
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return fmt.Errorf("register redis pool metric: %w", err)
		}
	}
	return nil
}
