// Package redis provides a shared domain.StreamCache backed by Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stream-resolver/internal/domain"
)

// Cache implements domain.StreamCache using Redis.
// Entries are JSON encoded {key, payload, expiresAt} records stored under a
// namespaced key with a matching Redis TTL.
type Cache struct {
	client    redis.UniversalClient
	logger    *zap.Logger
	keyPrefix string
	now       func() time.Time
}

// NewCache creates a new Redis cache instance.
// keyPrefix is used to namespace all keys and prevent collisions with other applications.
func NewCache(client redis.UniversalClient, logger *zap.Logger, keyPrefix string) *Cache {
	return &Cache{
		client:    client,
		logger:    logger,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// WithClock overrides the time source used for freshness checks.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now

	return c
}

// Get returns the entry for key. Missing and stale entries yield nil.
func (c *Cache) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	data, err := c.client.Get(ctx, c.buildKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		c.logger.Error("cache get failed",
			zap.String("key", key),
			zap.Error(err),
		)

		return nil, err
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding cache entry %q: %w", key, err)
	}
	if !entry.Fresh(c.now()) {
		c.logger.Debug("cache entry stale", zap.String("key", key))

		return nil, nil
	}

	c.logger.Debug("cache hit",
		zap.String("key", key),
		zap.Int("streams", len(entry.Payload)),
	)

	return &entry, nil
}

// Put stores streams under key with the given TTL.
func (c *Cache) Put(ctx context.Context, key string, streams []domain.ResolvedStream, ttl time.Duration) error {
	data, err := json.Marshal(domain.NewCacheEntry(key, streams, c.now(), ttl))
	if err != nil {
		return fmt.Errorf("encoding cache entry %q: %w", key, err)
	}

	if err := c.client.Set(ctx, c.buildKey(key), data, ttl).Err(); err != nil {
		c.logger.Error("cache set failed",
			zap.String("key", key),
			zap.Int("bytes", len(data)),
			zap.Duration("ttl", ttl),
			zap.Error(err),
		)

		return err
	}

	c.logger.Debug("cache set",
		zap.String("key", key),
		zap.Int("streams", len(streams)),
		zap.Duration("ttl", ttl),
	)

	return nil
}

// Ping reports whether Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// buildKey creates a fully-qualified key by prefixing with the configured keyPrefix.
func (c *Cache) buildKey(key string) string {
	return c.keyPrefix + ":stream:" + key
}
