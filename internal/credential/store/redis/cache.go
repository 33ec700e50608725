// Package redis caches revoked credential ids in front of the credential
// store. Only positive entries are cached: revocation is permanent, so a
// cached hit never goes stale, while a miss always consults the store.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"presence/internal/credential/models"
	"presence/pkg/platform/circuit"
)

const keyPrefix = "presence:revoked:"

// Client is the subset of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Source is the authoritative revocation set.
type Source interface {
	IsRevoked(ctx context.Context, id models.CredentialID) (bool, error)
}

type RevocationCache struct {
	client  Client
	source  Source
	ttl     time.Duration
	logger  *slog.Logger
	breaker *circuit.Breaker
}

type Option func(*RevocationCache)

// WithBreaker replaces the default breaker guarding Redis calls.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *RevocationCache) {
		if b != nil {
			c.breaker = b
		}
	}
}

func NewRevocationCache(client Client, source Source, ttl time.Duration, logger *slog.Logger, opts ...Option) *RevocationCache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &RevocationCache{
		client:  client,
		source:  source,
		ttl:     ttl,
		logger:  logger,
		breaker: circuit.New("revocation-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func key(id models.CredentialID) string {
	return keyPrefix + id.String()
}

// IsRevoked answers from Redis when it can. Redis failures degrade to the
// source rather than failing verification, and while the breaker is open
// Redis is not contacted at all.
func (c *RevocationCache) IsRevoked(ctx context.Context, id models.CredentialID) (bool, error) {
	if c.breaker.Allow() {
		err := c.client.Get(ctx, key(id)).Err()
		switch {
		case err == nil:
			c.recordSuccess(ctx)
			return true, nil
		case errors.Is(err, redis.Nil):
			c.recordSuccess(ctx)
		default:
			c.recordFailure(ctx, "read", id, err)
		}
	}

	revoked, err := c.source.IsRevoked(ctx, id)
	if err != nil {
		return false, err
	}
	if revoked {
		c.Add(ctx, id)
	}
	return revoked, nil
}

// Add records a revocation. Failures are logged only; the source stays
// authoritative.
func (c *RevocationCache) Add(ctx context.Context, id models.CredentialID) {
	if !c.breaker.Allow() {
		return
	}
	if err := c.client.Set(ctx, key(id), 1, c.ttl).Err(); err != nil {
		c.recordFailure(ctx, "write", id, err)
		return
	}
	c.recordSuccess(ctx)
}

func (c *RevocationCache) recordSuccess(ctx context.Context) {
	if change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "revocation cache recovered", "breaker", c.breaker.Name())
	}
}

func (c *RevocationCache) recordFailure(ctx context.Context, op string, id models.CredentialID, err error) {
	c.logger.WarnContext(ctx, "revocation cache "+op+" failed", "credential_id", id, "error", err)
	if change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "revocation cache disabled", "breaker", c.breaker.Name())
	}
}
