// Package vidsrc implements the embed-based stream provider.
//
// Resolution chain: embed page -> per-server RCP page -> optional PRORCP
// page -> media URL. Each server is resolved independently on a bounded
// worker pool; a failing server only drops its own stream.
package vidsrc

import (
	"context"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"stream-resolver/internal/domain"
	"stream-resolver/internal/infra/provider"
)

// Name is the default provider identifier.
const Name = "vidsrc"

// Config holds the embed provider settings.
type Config struct {
	Name           string
	Client         provider.ClientConfig // BaseURL is the embed site
	DefaultHopBase string                // used when the embed page has no player iframe
	MaxConcurrency int
	Stagger        time.Duration
}

// Client implements domain.Provider for the embed-based source.
type Client struct {
	name     string
	cfg      Config
	client   *resty.Client
	cb       *gobreaker.CircuitBreaker[*provider.Page]
	pool     pond.Pool
	analyzer domain.ManifestAnalyzer
	logger   *zap.Logger
}

// New creates a new embed provider client. analyzer may be nil.
func New(cfg Config, analyzer domain.ManifestAnalyzer, logger *zap.Logger) *Client {
	if cfg.Name == "" {
		cfg.Name = Name
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}

	return &Client{
		name:     cfg.Name,
		cfg:      cfg,
		client:   provider.NewRestyClient(cfg.Client),
		cb:       provider.NewCircuitBreaker[*provider.Page](cfg.Name, cfg.Client.CB, logger),
		pool:     pond.NewPool(cfg.MaxConcurrency),
		analyzer: analyzer,
		logger:   logger.With(zap.String("provider", cfg.Name)),
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return c.name
}

// EmbedURL returns the embed page URL for req.
func (c *Client) EmbedURL(req domain.ContentRequest) string {
	if req.IsSeries() {
		return fmt.Sprintf("%s/embed/tv/%s/%d-%d", c.cfg.Client.BaseURL, req.CanonicalID, req.Season, req.Episode)
	}

	return fmt.Sprintf("%s/embed/movie/%s", c.cfg.Client.BaseURL, req.CanonicalID)
}

// Resolve returns one stream per server that reached a media URL.
func (c *Client) Resolve(ctx context.Context, req domain.ContentRequest) ([]domain.ResolvedStream, error) {
	embedURL := c.EmbedURL(req)
	log := c.logger.With(zap.String("content_id", req.ContentID))

	page, err := provider.GetPageGuarded(ctx, c.cb, c.client, embedURL, nil)
	if err != nil {
		log.Warn("embed page fetch failed",
			zap.Error(err),
			zap.String("state", c.cb.State().String()),
		)

		return nil, nil
	}

	embed, err := parseEmbed(page.Body)
	if err != nil {
		log.Warn("embed page parse failed", zap.Error(err))

		return nil, nil
	}
	if len(embed.Servers) == 0 {
		log.Debug("embed page lists no servers")

		return nil, nil
	}

	hopBase := embed.HopBase
	if hopBase == "" {
		hopBase = c.cfg.DefaultHopBase
	}

	// Index-addressed results keep server discovery order.
	results := make([]*domain.ResolvedStream, len(embed.Servers))
	group := c.pool.NewGroup()

	for i, server := range embed.Servers {
		if i > 0 && c.cfg.Stagger > 0 {
			if !sleep(ctx, c.cfg.Stagger) {
				break
			}
		}

		group.Submit(func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("server resolution panicked",
						zap.String("server", server.Label),
						zap.Any("panic", r),
					)
				}
			}()

			stream, err := c.resolveServer(ctx, req, embed.Title, embedURL, hopBase, server)
			if err != nil {
				log.Debug("server dropped",
					zap.String("server", server.Label),
					zap.Error(err),
				)

				return
			}
			results[i] = stream
		})
	}

	if err := group.Wait(); err != nil {
		log.Warn("server group finished with errors", zap.Error(err))
	}

	streams := make([]domain.ResolvedStream, 0, len(results))
	for _, s := range results {
		if s != nil {
			streams = append(streams, *s)
		}
	}

	log.Info("embed provider resolved",
		zap.Int("servers", len(embed.Servers)),
		zap.Int("streams", len(streams)),
	)

	return streams, nil
}

func (c *Client) resolveServer(
	ctx context.Context,
	req domain.ContentRequest,
	title, embedURL, hopBase string,
	server domain.ServerDescriptor,
) (*domain.ResolvedStream, error) {
	rcpURL := hopBase + "/rcp/" + server.OpaqueHandle

	rcp, err := provider.GetPage(ctx, c.client, rcpURL, map[string]string{"Referer": embedURL})
	if err != nil {
		return nil, err
	}

	src, ok := extractRCPSource(rcp.Body)
	if !ok {
		return nil, fmt.Errorf("no source reference on %s", rcpURL)
	}

	var final string
	switch {
	case isProrcp(src):
		prorcpURL, err := provider.ResolveURL(hopBase, src)
		if err != nil {
			return nil, err
		}
		pro, err := provider.GetPage(ctx, c.client, prorcpURL, map[string]string{"Referer": rcpURL})
		if err != nil {
			return nil, err
		}
		file, ok := extractProrcpFile(pro.Body)
		if !ok {
			return nil, fmt.Errorf("no file reference on %s", prorcpURL)
		}
		if final, err = provider.ResolveURL(hopBase, file); err != nil {
			return nil, err
		}
	case looksPlayable(src):
		if final, err = provider.ResolveURL(hopBase, src); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unrecognised source reference %q", src)
	}

	referer := hopBase + "/"
	var info *domain.ManifestInfo
	if c.analyzer != nil {
		info = c.analyzer.Analyze(ctx, final, referer)
	}

	return &domain.ResolvedStream{
		ProviderName: c.name,
		DisplayTitle: displayTitle(title, server.Label, info),
		StreamURL:    final,
		RefererURL:   referer,
		QualityInfo:  info,
		ContentID:    req.ContentID,
	}, nil
}

func displayTitle(title, server string, info *domain.ManifestInfo) string {
	label := server
	if info != nil && info.Highest != nil && info.Highest.Label != "" {
		label += " " + info.Highest.Label
	}
	if title == "" {
		return label
	}

	return title + "\n" + label
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
