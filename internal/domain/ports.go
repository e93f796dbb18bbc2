package domain

import (
	"context"
	"time"
)

// Provider resolves a content request into streams from one source.
// Implementations: internal/infra/provider/vidsrc/, internal/infra/provider/hdhub/
type Provider interface {
	// Name returns the unique identifier for this provider.
	Name() string

	// Resolve returns zero or more streams. Hop-level failures are absorbed
	// and only reduce the result; an empty slice is a valid outcome.
	Resolve(ctx context.Context, req ContentRequest) ([]ResolvedStream, error)
}

// StreamCache stores resolution results with an expiry instant.
// Implementations: internal/infra/memory, internal/infra/redis, internal/infra/postgres
type StreamCache interface {
	// Get returns the entry for key, or nil if absent or no longer fresh.
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Put stores streams under key for ttl, overwriting any previous entry.
	Put(ctx context.Context, key string, streams []ResolvedStream, ttl time.Duration) error
}

// MetadataLookup resolves an id into catalogue metadata.
// Implementations: internal/infra/metadata/tmdb
type MetadataLookup interface {
	// Lookup returns nil, nil when the id is unknown to the catalogue.
	Lookup(ctx context.Context, req ContentRequest) (*Metadata, error)
}

// ManifestAnalyzer extracts quality information from a stream manifest.
// Implementations: internal/infra/manifest
type ManifestAnalyzer interface {
	// Analyze returns nil when the manifest cannot be fetched or parsed.
	Analyze(ctx context.Context, streamURL, referer string) *ManifestInfo
}
