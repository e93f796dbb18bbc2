package domain

import "time"

// QualityVariant is one rendition listed by an HLS master playlist.
type QualityVariant struct {
	URL       string `json:"url"`
	Label     string `json:"label"` // e.g. "1080p"
	Bandwidth int    `json:"bandwidth,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// ManifestInfo is the quality metadata extracted from a stream manifest.
type ManifestInfo struct {
	Variants []QualityVariant `json:"variants"`
	Highest  *QualityVariant  `json:"highest,omitempty"`
}

// ResolvedStream is the pipeline's output unit. Treat it as immutable once built.
type ResolvedStream struct {
	ProviderName string        `json:"provider_name"`
	DisplayTitle string        `json:"display_title"`
	StreamURL    string        `json:"stream_url"`
	RefererURL   string        `json:"referer_url"`
	QualityInfo  *ManifestInfo `json:"quality_info,omitempty"`
	ContentID    string        `json:"content_id"`
}

// ServerDescriptor references one upstream streaming backend discovered on an
// embed page. It only lives for the duration of one resolution run.
type ServerDescriptor struct {
	Label        string
	OpaqueHandle string
}

// SearchCandidate is a single free-text search result.
type SearchCandidate struct {
	Title string
	URL   string
	Year  int // 0 when unknown
}

// MatchCandidate is a scored SearchCandidate. Score is only comparable
// within one matching run.
type MatchCandidate struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Year  int     `json:"year,omitempty"`
	Score float64 `json:"score"`
}

// Metadata describes content as known by an external catalogue.
type Metadata struct {
	Title         string
	OriginalTitle string
	Year          int // 0 when unknown
}

// CacheEntry is a cached resolution result.
type CacheEntry struct {
	Key       string           `json:"key"`
	Payload   []ResolvedStream `json:"payload"`
	ExpiresAt int64            `json:"expiresAt"` // epoch milliseconds
}

// NewCacheEntry creates an entry expiring ttl after now.
func NewCacheEntry(key string, payload []ResolvedStream, now time.Time, ttl time.Duration) *CacheEntry {
	return &CacheEntry{
		Key:       key,
		Payload:   payload,
		ExpiresAt: now.Add(ttl).UnixMilli(),
	}
}

// Fresh reports whether the entry may still be served at now.
func (e *CacheEntry) Fresh(now time.Time) bool {
	return e != nil && now.UnixMilli() < e.ExpiresAt
}
