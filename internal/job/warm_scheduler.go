// Package job provides background job schedulers.
package job

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"stream-resolver/internal/domain"
	"stream-resolver/pkg/locker"
)

const warmLockKey = "warm:scheduler"

// Refresher re-resolves a request and rewrites its cache entry.
type Refresher interface {
	Refresh(ctx context.Context, req domain.ContentRequest) []domain.ResolvedStream
}

// WarmConfig holds warm scheduler configuration.
type WarmConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	Items    []domain.ContentRequest
}

// WarmScheduler periodically refreshes a fixed list of cache entries. A
// distributed lease makes sure one instance warms per interval.
type WarmScheduler struct {
	refresher Refresher
	cfg       WarmConfig
	locker    locker.Locker
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWarmScheduler creates a new WarmScheduler.
func NewWarmScheduler(refresher Refresher, cfg WarmConfig, l locker.Locker, logger *zap.Logger) *WarmScheduler {
	return &WarmScheduler{
		refresher: refresher,
		cfg:       cfg,
		locker:    l,
		logger:    logger.Named("warm"),
	}
}

// ParseItems parses "<kind>:<contentId>" entries, e.g. "series:tt0903747:1:1".
func ParseItems(items []string) ([]domain.ContentRequest, error) {
	out := make([]domain.ContentRequest, 0, len(items))
	for _, item := range items {
		rawKind, id, ok := strings.Cut(strings.TrimSpace(item), ":")
		if !ok {
			return nil, fmt.Errorf("warm item %q: want <kind>:<contentId>", item)
		}
		kind, err := domain.ParseKind(rawKind)
		if err != nil {
			return nil, fmt.Errorf("warm item %q: %w", item, err)
		}
		req, err := domain.ParseContentRequest(kind, id)
		if err != nil {
			return nil, fmt.Errorf("warm item %q: %w", item, err)
		}
		out = append(out, req)
	}

	return out, nil
}

// Start begins the background warm loop.
func (s *WarmScheduler) Start(runOnStartup bool) {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.logger.Info("starting warm scheduler",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("items", len(s.cfg.Items)),
		zap.Bool("run_on_startup", runOnStartup),
	)

	s.wg.Add(1)
	go s.run(runOnStartup)
}

// Stop gracefully stops the scheduler.
func (s *WarmScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info("warm scheduler stopped")
}

func (s *WarmScheduler) run(runOnStartup bool) {
	defer s.wg.Done()

	if runOnStartup {
		s.Warm(s.ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Warm(s.ctx)
		}
	}
}

// Warm refreshes every item once if this instance wins the lease.
//
// The lease lives for the whole interval so other instances skip this
// round. When nothing could be resolved the lease is released right away
// and another instance may retry.
func (s *WarmScheduler) Warm(ctx context.Context) {
	if len(s.cfg.Items) == 0 {
		return
	}

	lease, err := s.locker.TryAcquire(ctx, warmLockKey, s.cfg.Interval)
	if err != nil {
		s.logger.Error("failed to acquire warm lease", zap.Error(err))

		return
	}
	if lease == nil {
		s.logger.Debug("another instance is warming, skipping")

		return
	}

	runCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	warmed := 0
	for _, req := range s.cfg.Items {
		if runCtx.Err() != nil {
			break
		}
		if n := len(s.refresher.Refresh(runCtx, req)); n > 0 {
			warmed++
		} else {
			s.logger.Warn("warm item resolved empty", zap.String("key", req.CacheKey()))
		}
	}

	if warmed == 0 {
		if err := lease.Release(ctx); err != nil {
			s.logger.Error("failed to release warm lease", zap.Error(err))
		}
		s.logger.Info("warm produced nothing, lease released for retry")

		return
	}

	s.logger.Info("warm completed, lease held for cooldown",
		zap.Int("warmed", warmed),
		zap.Int("items", len(s.cfg.Items)),
		zap.Duration("cooldown", s.cfg.Interval),
	)
}
