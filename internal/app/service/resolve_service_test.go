package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stream-resolver/internal/domain"
)

type stubProvider struct {
	name    string
	streams []domain.ResolvedStream
	err     error
	panics  bool
	delay   time.Duration
	release chan struct{}
	calls   atomic.Int32
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Resolve(ctx context.Context, _ domain.ContentRequest) ([]domain.ResolvedStream, error) {
	p.calls.Add(1)
	if p.release != nil {
		<-p.release
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.panics {
		panic("unexpected state")
	}

	return p.streams, p.err
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry
	getErr  error
	puts    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]*domain.CacheEntry)}
}

func (c *mapCache) Get(_ context.Context, key string) (*domain.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	e := c.entries[key]
	if !e.Fresh(time.Now()) {
		return nil, nil
	}

	return e, nil
}

func (c *mapCache) Put(_ context.Context, key string, streams []domain.ResolvedStream, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.entries[key] = domain.NewCacheEntry(key, streams, time.Now(), ttl)

	return nil
}

func makeStreams(provider string, n int) []domain.ResolvedStream {
	out := make([]domain.ResolvedStream, n)
	for i := range out {
		out[i] = domain.ResolvedStream{
			ProviderName: provider,
			StreamURL:    fmt.Sprintf("https://%s.example/%d.m3u8", provider, i),
			ContentID:    "tt0111161",
		}
	}

	return out
}

func movie(t *testing.T) domain.ContentRequest {
	t.Helper()
	req, err := domain.ParseContentRequest(domain.KindMovie, "tt0111161")
	require.NoError(t, err)

	return req
}

func newService(cache domain.StreamCache, providers ...domain.Provider) *ResolveService {
	return NewResolveService(providers, cache, ResolveConfig{CacheTTL: time.Hour}, zap.NewNop())
}

func TestResolve_PartialFailure(t *testing.T) {
	tests := []struct {
		name string
		b    *stubProvider
	}{
		{name: "provider B errors", b: &stubProvider{name: "b", err: errors.New("boom")}},
		{name: "provider B panics", b: &stubProvider{name: "b", panics: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubProvider{name: "a", streams: makeStreams("a", 3)}
			svc := newService(nil, a, tt.b)

			var got []domain.ResolvedStream
			require.NotPanics(t, func() {
				got = svc.Resolve(context.Background(), movie(t))
			})
			assert.Equal(t, makeStreams("a", 3), got)
		})
	}
}

func TestResolve_DeclarationOrder(t *testing.T) {
	slow := &stubProvider{name: "slow", streams: makeStreams("slow", 1), delay: 20 * time.Millisecond}
	fast := &stubProvider{name: "fast", streams: makeStreams("fast", 2)}
	svc := newService(nil, slow, fast)

	got := svc.Resolve(context.Background(), movie(t))

	require.Len(t, got, 3)
	assert.Equal(t, "slow", got[0].ProviderName)
	assert.Equal(t, "fast", got[1].ProviderName)
}

func TestResolve_CacheHitSkipsProviders(t *testing.T) {
	cache := newMapCache()
	a := &stubProvider{name: "a", streams: makeStreams("a", 2)}
	svc := newService(cache, a)
	req := movie(t)

	first := svc.Resolve(context.Background(), req)
	second := svc.Resolve(context.Background(), req)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, 1, cache.puts)
	assert.Contains(t, cache.entries, "a|movie:tt0111161")
}

func TestResolve_EmptyIsNotCached(t *testing.T) {
	cache := newMapCache()
	a := &stubProvider{name: "a"}
	b := &stubProvider{name: "b", err: errors.New("down")}
	svc := newService(cache, a, b)

	got := svc.Resolve(context.Background(), movie(t))

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, cache.puts)
}

func TestResolve_CacheReadErrorFallsThrough(t *testing.T) {
	cache := newMapCache()
	cache.getErr = errors.New("redis down")
	a := &stubProvider{name: "a", streams: makeStreams("a", 1)}
	svc := newService(cache, a)

	got := svc.Resolve(context.Background(), movie(t))

	assert.Len(t, got, 1)
}

func TestRefresh_BypassesCacheRead(t *testing.T) {
	cache := newMapCache()
	a := &stubProvider{name: "a", streams: makeStreams("a", 1)}
	svc := newService(cache, a)
	req := movie(t)

	svc.Resolve(context.Background(), req)
	a.streams = makeStreams("a", 2)
	got := svc.Refresh(context.Background(), req)

	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), a.calls.Load())
	assert.Len(t, svc.Resolve(context.Background(), req), 2)
}

func TestRefresh_HonoursCallerDeadline(t *testing.T) {
	svc := NewResolveService(
		[]domain.Provider{providerFunc(func(ctx context.Context) ([]domain.ResolvedStream, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
				return makeStreams("slow", 1), nil
			}
		})},
		newMapCache(),
		ResolveConfig{CacheTTL: time.Hour, ProviderTimeout: time.Minute},
		zap.NewNop(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	got := svc.Refresh(ctx, movie(t))

	assert.Empty(t, got)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolve_CoalescesConcurrentMisses(t *testing.T) {
	cache := newMapCache()
	a := &stubProvider{name: "a", streams: makeStreams("a", 1), release: make(chan struct{})}
	svc := newService(cache, a)
	req := movie(t)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, svc.Resolve(context.Background(), req), 1)
		}()
	}

	require.Eventually(t, func() bool { return a.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(a.release)
	wg.Wait()

	assert.Equal(t, int32(1), a.calls.Load())
}

func TestResolve_ProviderTimeout(t *testing.T) {
	blocked := &stubProvider{name: "blocked"}
	svc := NewResolveService(
		[]domain.Provider{providerFunc(func(ctx context.Context) ([]domain.ResolvedStream, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), blocked},
		nil,
		ResolveConfig{ProviderTimeout: 10 * time.Millisecond},
		zap.NewNop(),
	)

	streams, results := svc.ResolveAll(context.Background(), movie(t))

	assert.Empty(t, streams)
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Error, context.DeadlineExceeded)
	assert.NoError(t, results[1].Error)
}

func TestProviderNamesAndCacheKey(t *testing.T) {
	svc := newService(nil, &stubProvider{name: "vidsrc"}, &stubProvider{name: "4khdhub"})

	req, err := domain.ParseContentRequest(domain.KindSeries, "tt1:1:2")
	require.NoError(t, err)

	assert.Equal(t, []string{"vidsrc", "4khdhub"}, svc.ProviderNames())
	assert.Equal(t, "vidsrc+4khdhub|series:tt1:1:2", svc.CacheKey(req))
}

type providerFunc func(ctx context.Context) ([]domain.ResolvedStream, error)

func (providerFunc) Name() string { return "func" }

func (f providerFunc) Resolve(ctx context.Context, _ domain.ContentRequest) ([]domain.ResolvedStream, error) {
	return f(ctx)
}
