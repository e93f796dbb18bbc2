package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stream-resolver/internal/domain"
)

// Store implements domain.StreamCache using PostgreSQL.
type Store struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewStore creates a new PostgreSQL cache store.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, now: time.Now, logger: logger}
}

// WithClock overrides the time source used for freshness checks.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now

	return s
}

// Get returns the entry for key. Missing and stale rows yield nil; stale
// rows are left in place until the next Put overwrites them.
func (s *Store) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	var model StreamCacheModel
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting cache entry: %w", err)
	}

	entry, err := model.ToDomain()
	if err != nil {
		return nil, err
	}
	if !entry.Fresh(s.now()) {
		return nil, nil
	}

	return entry, nil
}

// Put upserts streams under key.
func (s *Store) Put(ctx context.Context, key string, streams []domain.ResolvedStream, ttl time.Duration) error {
	model, err := FromDomain(domain.NewCacheEntry(key, streams, s.now(), ttl))
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"providers", "payload", "expires_at", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		s.logger.Error("cache upsert failed", zap.String("key", key), zap.Error(err))

		return fmt.Errorf("upserting cache entry: %w", err)
	}

	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}
