// Package hdhub implements the catalogue-search stream provider.
//
// Resolution chain: metadata lookup -> title queries -> search pages ->
// fuzzy match -> content page -> per-link redirect decode and file host
// extraction -> liveness validation.
package hdhub

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stream-resolver/internal/domain"
	"stream-resolver/internal/infra/provider"
)

// Name is the default provider identifier.
const Name = "4khdhub"

// Config holds the search provider settings.
type Config struct {
	Name           string
	DisplayName    string
	Client         provider.ClientConfig // BaseURL is the catalogue site
	MaxConcurrency int                   // links extracted in parallel
}

// LinkValidator confirms a link is fetchable.
type LinkValidator interface {
	Validate(ctx context.Context, rawURL string) bool
}

// Client implements domain.Provider for the search-based source.
type Client struct {
	name      string
	display   string
	cfg       Config
	client    *resty.Client
	cb        *gobreaker.CircuitBreaker[*provider.Page]
	metadata  domain.MetadataLookup
	validator LinkValidator
	logger    *zap.Logger
}

// New creates a new search provider client.
func New(cfg Config, metadata domain.MetadataLookup, validator LinkValidator, logger *zap.Logger) *Client {
	if cfg.Name == "" {
		cfg.Name = Name
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = "4KHDHub"
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}

	return &Client{
		name:      cfg.Name,
		display:   cfg.DisplayName,
		cfg:       cfg,
		client:    provider.NewRestyClient(cfg.Client),
		cb:        provider.NewCircuitBreaker[*provider.Page](cfg.Name, cfg.Client.CB, logger),
		metadata:  metadata,
		validator: validator,
		logger:    logger.With(zap.String("provider", cfg.Name)),
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return c.name
}

// Resolve returns one stream per live download link of the matched content.
func (c *Client) Resolve(ctx context.Context, req domain.ContentRequest) ([]domain.ResolvedStream, error) {
	log := c.logger.With(zap.String("content_id", req.ContentID))

	meta, err := c.metadata.Lookup(ctx, req)
	if err != nil {
		log.Warn("metadata lookup failed", zap.Error(err))

		return nil, nil
	}
	if meta == nil || meta.Title == "" {
		log.Debug("metadata not found")

		return nil, nil
	}

	match, ok := c.search(ctx, meta)
	if !ok {
		log.Info("no search result cleared the match threshold", zap.String("title", meta.Title))

		return nil, nil
	}
	log.Debug("content matched",
		zap.String("title", match.Title),
		zap.Float64("score", match.Score),
	)

	page, err := provider.GetPageGuarded(ctx, c.cb, c.client, match.URL, nil)
	if err != nil {
		log.Warn("content page fetch failed", zap.String("url", match.URL), zap.Error(err))

		return nil, nil
	}
	content, err := parseContent(page.Body, c.cfg.Client.BaseURL)
	if err != nil {
		log.Warn("content page parse failed", zap.Error(err))

		return nil, nil
	}

	links := content.Links(req.Season, req.Episode)
	if req.IsSeries() && !content.Series {
		log.Debug("matched content is not a series")

		return nil, nil
	}
	if len(links) == 0 {
		log.Info("no download links for request",
			zap.Int("season", req.Season),
			zap.Int("episode", req.Episode),
		)

		return nil, nil
	}

	results := make([][]extracted, len(links))
	var g errgroup.Group
	g.SetLimit(c.cfg.MaxConcurrency)

	for i, link := range links {
		g.Go(func() error {
			var live []extracted
			for _, e := range c.extractLink(ctx, link) {
				if c.validator == nil || c.validator.Validate(ctx, e.URL) {
					live = append(live, e)
				}
			}
			results[i] = live

			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	streams := make([]domain.ResolvedStream, 0, len(links))
	for _, group := range results {
		for _, e := range group {
			if _, dup := seen[e.URL]; dup {
				continue
			}
			seen[e.URL] = struct{}{}

			streams = append(streams, domain.ResolvedStream{
				ProviderName: c.name,
				DisplayTitle: c.displayTitle(e),
				StreamURL:    e.URL,
				RefererURL:   e.Referer,
				ContentID:    req.ContentID,
			})
		}
	}

	log.Info("search provider resolved",
		zap.Int("links", len(links)),
		zap.Int("streams", len(streams)),
	)

	return streams, nil
}

// search runs every query in order and matches across all results.
func (c *Client) search(ctx context.Context, meta *domain.Metadata) (*domain.MatchCandidate, bool) {
	var candidates []domain.SearchCandidate

	for _, q := range BuildQueries(meta.Title, meta.OriginalTitle) {
		searchURL := c.cfg.Client.BaseURL + "/?s=" + url.QueryEscape(q)

		page, err := provider.GetPageGuarded(ctx, c.cb, c.client, searchURL, nil)
		if err != nil {
			c.logger.Debug("search failed", zap.String("query", q), zap.Error(err))

			continue
		}
		candidates = append(candidates, parseSearchResults(page.Body, c.cfg.Client.BaseURL)...)
	}

	return domain.FindBestMatch(candidates, meta.Title, meta.Year)
}

func (c *Client) displayTitle(e extracted) string {
	title := fmt.Sprintf("%s | %s | %s", c.display, e.Label, e.Quality)
	if e.Filename == "" {
		return title
	}

	return title + "\n" + e.Filename
}
