package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"stream-resolver/internal/domain"
)

// StreamCacheModel is the GORM model for the stream_cache table.
type StreamCacheModel struct {
	Key       string         `gorm:"type:varchar(512);primaryKey"`
	Providers pq.StringArray `gorm:"type:text[]"`
	Payload   string         `gorm:"type:jsonb;not null"`
	ExpiresAt int64          `gorm:"not null;index"` // epoch milliseconds

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for StreamCacheModel.
func (StreamCacheModel) TableName() string {
	return "stream_cache"
}

// ToDomain converts StreamCacheModel to domain.CacheEntry.
func (m *StreamCacheModel) ToDomain() (*domain.CacheEntry, error) {
	var payload []domain.ResolvedStream
	if err := json.Unmarshal([]byte(m.Payload), &payload); err != nil {
		return nil, fmt.Errorf("decoding payload of %q: %w", m.Key, err)
	}

	return &domain.CacheEntry{
		Key:       m.Key,
		Payload:   payload,
		ExpiresAt: m.ExpiresAt,
	}, nil
}

// FromDomain creates a StreamCacheModel from domain.CacheEntry.
// Providers lists the contributing provider names in first-seen order.
func FromDomain(e *domain.CacheEntry) (*StreamCacheModel, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload of %q: %w", e.Key, err)
	}

	seen := make(map[string]struct{})
	providers := pq.StringArray{}
	for _, s := range e.Payload {
		if _, ok := seen[s.ProviderName]; ok {
			continue
		}
		seen[s.ProviderName] = struct{}{}
		providers = append(providers, s.ProviderName)
	}

	return &StreamCacheModel{
		Key:       e.Key,
		Providers: providers,
		Payload:   string(payload),
		ExpiresAt: e.ExpiresAt,
	}, nil
}
