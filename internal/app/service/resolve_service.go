// Package service contains the stream resolution orchestrator.
package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"stream-resolver/internal/domain"
)

// ResolveConfig holds orchestrator settings.
type ResolveConfig struct {
	CacheTTL        time.Duration
	ProviderTimeout time.Duration // per provider; 0 means no extra deadline
}

// ResolveService runs all providers for a request and caches the merged result.
type ResolveService struct {
	providers []domain.Provider
	cache     domain.StreamCache // nil disables caching
	cfg       ResolveConfig
	namespace string
	group     singleflight.Group
	logger    *zap.Logger
}

// NewResolveService creates a new ResolveService. cache may be nil.
func NewResolveService(
	providers []domain.Provider,
	cache domain.StreamCache,
	cfg ResolveConfig,
	logger *zap.Logger,
) *ResolveService {
	s := &ResolveService{
		providers: providers,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
	}
	s.namespace = strings.Join(s.ProviderNames(), "+")

	return s
}

// ProviderResult is the outcome of one provider within a run.
type ProviderResult struct {
	Provider string
	Count    int
	Duration time.Duration
	Error    error
}

// Resolve returns the streams for req: a fresh cache entry if one exists,
// otherwise the merged output of every provider. It never fails; an empty
// slice means nothing was found.
func (s *ResolveService) Resolve(ctx context.Context, req domain.ContentRequest) (streams []domain.ResolvedStream) {
	key := s.CacheKey(req)
	defer s.recoverEmpty(key, &streams)

	if s.cache != nil {
		entry, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("cache read failed, resolving upstream",
				zap.String("key", key),
				zap.Error(err),
			)
		}
		if entry != nil {
			s.logger.Debug("cache hit",
				zap.String("key", key),
				zap.Int("streams", len(entry.Payload)),
			)

			return entry.Payload
		}
	}

	return s.resolveShared(ctx, req, key)
}

// Refresh resolves req upstream without reading the cache and stores a
// non-empty result. Unlike Resolve it runs on the caller's context, so the
// caller's deadline and cancellation stop the providers.
func (s *ResolveService) Refresh(ctx context.Context, req domain.ContentRequest) (streams []domain.ResolvedStream) {
	key := s.CacheKey(req)
	defer s.recoverEmpty(key, &streams)

	return s.resolveAndStore(ctx, req, key)
}

// ProviderNames returns the configured provider names in declaration order.
func (s *ResolveService) ProviderNames() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}

	return names
}

// CacheKey namespaces the request key with the provider set, so different
// provider configurations never share entries.
func (s *ResolveService) CacheKey(req domain.ContentRequest) string {
	return s.namespace + "|" + req.CacheKey()
}

// resolveShared coalesces concurrent misses for the same key.
func (s *ResolveService) resolveShared(ctx context.Context, req domain.ContentRequest, key string) []domain.ResolvedStream {
	// Detached so one caller going away does not cut the run short for others.
	runCtx := context.WithoutCancel(ctx)

	v, _, shared := s.group.Do(key, func() (any, error) {
		return s.resolveAndStore(runCtx, req, key), nil
	})
	if shared {
		s.logger.Debug("joined in-flight resolution", zap.String("key", key))
	}

	return slices.Clone(v.([]domain.ResolvedStream))
}

// resolveAndStore runs every provider and caches a non-empty result.
func (s *ResolveService) resolveAndStore(ctx context.Context, req domain.ContentRequest, key string) []domain.ResolvedStream {
	streams, _ := s.ResolveAll(ctx, req)
	if len(streams) > 0 && s.cache != nil {
		if err := s.cache.Put(ctx, key, streams, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return streams
}

// ResolveAll runs every provider concurrently and waits for all of them.
// A failing or panicking provider contributes nothing; the others are
// unaffected. Streams are ordered by provider declaration order.
func (s *ResolveService) ResolveAll(ctx context.Context, req domain.ContentRequest) ([]domain.ResolvedStream, []ProviderResult) {
	outputs := make([][]domain.ResolvedStream, len(s.providers))
	results := make([]ProviderResult, len(s.providers))
	var wg sync.WaitGroup

	for i, p := range s.providers {
		wg.Add(1)
		go func(idx int, p domain.Provider) {
			defer wg.Done()
			outputs[idx], results[idx] = s.runProvider(ctx, p, req)
		}(i, p)
	}

	wg.Wait()

	total := 0
	failed := 0
	for i := range results {
		total += len(outputs[i])
		if results[i].Error != nil {
			failed++
		}
	}

	merged := make([]domain.ResolvedStream, 0, total)
	for _, out := range outputs {
		merged = append(merged, out...)
	}

	s.logger.Info("resolution completed",
		zap.String("content_id", req.ContentID),
		zap.String("kind", string(req.Kind)),
		zap.Int("streams", len(merged)),
		zap.Int("providers_failed", failed),
	)

	return merged, results
}

func (s *ResolveService) runProvider(
	ctx context.Context,
	p domain.Provider,
	req domain.ContentRequest,
) (streams []domain.ResolvedStream, result ProviderResult) {
	start := time.Now()
	result.Provider = p.Name()

	defer func() {
		if r := recover(); r != nil {
			streams = nil
			result.Error = fmt.Errorf("provider panicked: %v", r)
			s.logger.Error("provider panicked",
				zap.String("provider", p.Name()),
				zap.Any("panic", r),
			)
		}
		result.Count = len(streams)
		result.Duration = time.Since(start)
	}()

	if s.cfg.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ProviderTimeout)
		defer cancel()
	}

	streams, err := p.Resolve(ctx, req)
	if err != nil {
		s.logger.Warn("provider failed",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
		result.Error = err

		return nil, result
	}

	s.logger.Debug("provider completed",
		zap.String("provider", p.Name()),
		zap.Int("streams", len(streams)),
		zap.Duration("duration", time.Since(start)),
	)

	return streams, result
}

// recoverEmpty turns an unexpected panic at this layer into an empty result.
func (s *ResolveService) recoverEmpty(key string, streams *[]domain.ResolvedStream) {
	if r := recover(); r != nil {
		s.logger.Error("resolution panicked",
			zap.String("key", key),
			zap.Any("panic", r),
		)
		*streams = []domain.ResolvedStream{}
	}
}
