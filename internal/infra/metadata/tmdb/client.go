// Package tmdb implements domain.MetadataLookup against The Movie Database API.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coocood/freecache"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"stream-resolver/internal/domain"
	"stream-resolver/internal/infra/provider"
)

// Config holds TMDB client settings.
type Config struct {
	Client    provider.ClientConfig
	APIKey    string
	CacheTTL  time.Duration
	CacheSize int // bytes
}

// Client implements domain.MetadataLookup.
type Client struct {
	client   *resty.Client
	cb       *gobreaker.CircuitBreaker[*resty.Response]
	cache    *freecache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// New creates a new TMDB client.
func New(cfg Config, logger *zap.Logger) *Client {
	client := provider.NewRestyClient(cfg.Client).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = 8 * 1024 * 1024
	}

	return &Client{
		client:   client,
		cb:       provider.NewCircuitBreaker[*resty.Response]("tmdb", cfg.Client.CB, logger),
		cache:    freecache.NewCache(size),
		cacheTTL: cfg.CacheTTL,
		logger:   logger.Named("tmdb"),
	}
}

// Lookup resolves req.CanonicalID into title and year. IMDb ids ("tt...")
// go through the find endpoint, numeric ids are treated as TMDB ids.
// Unknown ids yield nil, nil.
func (c *Client) Lookup(ctx context.Context, req domain.ContentRequest) (*domain.Metadata, error) {
	key := []byte(string(req.Kind) + ":" + req.CanonicalID)

	if cached, err := c.cache.Get(key); err == nil {
		var meta domain.Metadata
		if err := json.Unmarshal(cached, &meta); err == nil {
			return &meta, nil
		}
	}

	meta, err := c.fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, nil
	}

	if c.cacheTTL > 0 {
		if data, err := json.Marshal(meta); err == nil {
			if err := c.cache.Set(key, data, int(c.cacheTTL.Seconds())); err != nil {
				c.logger.Debug("metadata cache set failed", zap.Error(err))
			}
		}
	}

	return meta, nil
}

func (c *Client) fetch(ctx context.Context, req domain.ContentRequest) (*domain.Metadata, error) {
	id := strings.TrimSpace(req.CanonicalID)

	if strings.HasPrefix(id, "tt") {
		var result FindResponse
		if err := c.get(ctx, "/find/"+id, map[string]string{"external_source": "imdb_id"}, &result); err != nil {
			return nil, notFoundAsNil(err)
		}

		if req.IsSeries() {
			if len(result.TVResults) == 0 {
				return nil, nil
			}

			return result.TVResults[0].ToDomain(), nil
		}
		if len(result.MovieResults) == 0 {
			return nil, nil
		}

		return result.MovieResults[0].ToDomain(), nil
	}

	if req.IsSeries() {
		var result TVResult
		err := c.get(ctx, "/tv/"+id, nil, &result)
		if err != nil || result.Name == "" {
			return nil, notFoundAsNil(err)
		}

		return result.ToDomain(), nil
	}

	var result MovieResult
	err := c.get(ctx, "/movie/"+id, nil, &result)
	if err != nil || result.Title == "" {
		return nil, notFoundAsNil(err)
	}

	return result.ToDomain(), nil
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, out any) error {
	resp, err := c.cb.Execute(func() (*resty.Response, error) {
		r, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(query).
			SetResult(out).
			Get(path)
		if err != nil {
			return nil, err
		}
		// 404 means unknown id, not an unhealthy upstream.
		if r.IsError() && r.StatusCode() != 404 {
			return nil, &provider.StatusError{URL: path, StatusCode: r.StatusCode()}
		}

		return r, nil
	})
	if err != nil {
		c.logger.Warn("tmdb request failed",
			zap.String("path", path),
			zap.Error(err),
			zap.String("state", c.cb.State().String()),
		)

		return fmt.Errorf("tmdb %s: %w", path, err)
	}
	if resp.StatusCode() == 404 {
		return errNotFound
	}

	return nil
}

var errNotFound = errors.New("not found")

func notFoundAsNil(err error) error {
	if errors.Is(err, errNotFound) {
		return nil
	}

	return err
}
