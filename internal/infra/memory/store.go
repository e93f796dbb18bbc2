// Package memory provides an in-process domain.StreamCache backed by freecache.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
	"go.uber.org/zap"

	"stream-resolver/internal/domain"
)

// Store implements domain.StreamCache in memory.
type Store struct {
	cache  *freecache.Cache
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store holding at most size bytes.
func NewStore(size int, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		cache:  freecache.NewCache(size),
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Get returns the entry for key, or nil when absent or stale.
func (s *Store) Get(_ context.Context, key string) (*domain.CacheEntry, error) {
	data, err := s.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory cache get: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}
	if !entry.Fresh(s.now()) {
		return nil, nil
	}

	return &entry, nil
}

// Put stores streams under key until ttl elapses.
func (s *Store) Put(_ context.Context, key string, streams []domain.ResolvedStream, ttl time.Duration) error {
	entry := domain.NewCacheEntry(key, streams, s.now(), ttl)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	// freecache evicts a second after the entry goes stale.
	if err := s.cache.Set([]byte(key), data, int(ttl/time.Second)+1); err != nil {
		s.logger.Warn("memory cache set failed",
			zap.String("key", key),
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)

		return fmt.Errorf("memory cache set: %w", err)
	}

	return nil
}
