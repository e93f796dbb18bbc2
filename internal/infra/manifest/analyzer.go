// Package manifest extracts quality information from HLS playlists.
package manifest

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/grafov/m3u8"
	"go.uber.org/zap"

	"stream-resolver/internal/domain"
	"stream-resolver/internal/infra/provider"
)

// Analyzer implements domain.ManifestAnalyzer.
type Analyzer struct {
	client *resty.Client
	logger *zap.Logger
}

// NewAnalyzer creates a new manifest Analyzer.
func NewAnalyzer(cfg provider.ClientConfig, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		client: provider.NewRestyClient(cfg),
		logger: logger,
	}
}

// Analyze fetches streamURL and returns its quality variants. Any failure is
// logged and reported as nil; the stream itself stays usable.
func (a *Analyzer) Analyze(ctx context.Context, streamURL, referer string) *domain.ManifestInfo {
	headers := map[string]string{}
	if referer != "" {
		headers["Referer"] = referer
		if origin, ok := provider.Origin(referer); ok {
			headers["Origin"] = origin
		}
	}

	page, err := provider.GetPage(ctx, a.client, streamURL, headers)
	if err != nil {
		a.logger.Debug("manifest fetch failed", zap.String("url", streamURL), zap.Error(err))

		return nil
	}

	info, err := Parse(streamURL, []byte(page.Body))
	if err != nil {
		a.logger.Debug("manifest parse failed", zap.String("url", streamURL), zap.Error(err))

		return nil
	}

	return info
}

// Parse decodes an HLS playlist body fetched from playlistURL.
//
// Master playlists yield one variant per stream-inf with URIs resolved
// against playlistURL. Media playlists yield a single "auto" variant.
func Parse(playlistURL string, body []byte) (*domain.ManifestInfo, error) {
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, fmt.Errorf("decoding playlist: %w", err)
	}

	switch listType {
	case m3u8.MASTER:
		master, ok := playlist.(*m3u8.MasterPlaylist)
		if !ok || len(master.Variants) == 0 {
			return nil, fmt.Errorf("master playlist without variants")
		}

		return fromMaster(playlistURL, master), nil
	case m3u8.MEDIA:
		auto := domain.QualityVariant{URL: playlistURL, Label: "auto"}

		return &domain.ManifestInfo{
			Variants: []domain.QualityVariant{auto},
			Highest:  &auto,
		}, nil
	default:
		return nil, fmt.Errorf("unknown playlist type")
	}
}

func fromMaster(playlistURL string, master *m3u8.MasterPlaylist) *domain.ManifestInfo {
	info := &domain.ManifestInfo{
		Variants: make([]domain.QualityVariant, 0, len(master.Variants)),
	}

	for _, v := range master.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		uri, err := provider.ResolveURL(playlistURL, v.URI)
		if err != nil {
			continue
		}

		height := resolutionHeight(v.Resolution)
		info.Variants = append(info.Variants, domain.QualityVariant{
			URL:       uri,
			Label:     variantLabel(height, int(v.Bandwidth)),
			Bandwidth: int(v.Bandwidth),
			Height:    height,
		})
	}

	for i := range info.Variants {
		if info.Highest == nil || higher(info.Variants[i], *info.Highest) {
			best := info.Variants[i]
			info.Highest = &best
		}
	}

	return info
}

// higher orders variants by height, then bandwidth.
func higher(a, b domain.QualityVariant) bool {
	if a.Height != b.Height {
		return a.Height > b.Height
	}

	return a.Bandwidth > b.Bandwidth
}

// resolutionHeight parses "1920x1080" into 1080.
func resolutionHeight(res string) int {
	_, h, ok := strings.Cut(strings.ToLower(res), "x")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0
	}

	return n
}

func variantLabel(height, bandwidth int) string {
	switch {
	case height > 0:
		return strconv.Itoa(height) + "p"
	case bandwidth > 0:
		return strconv.Itoa(bandwidth/1000) + "kbps"
	default:
		return "unknown"
	}
}
