package provider

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// LinkValidator confirms that a candidate stream URL is fetchable.
type LinkValidator struct {
	client       *resty.Client
	trustedHosts []string
	logger       *zap.Logger
}

// NewLinkValidator creates a validator. Hosts containing any of trustedHosts
// are accepted without a network check.
func NewLinkValidator(cfg ClientConfig, trustedHosts []string, logger *zap.Logger) *LinkValidator {
	hosts := make([]string, 0, len(trustedHosts))
	for _, h := range trustedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}

	return &LinkValidator{
		client:       NewRestyClient(cfg),
		trustedHosts: hosts,
		logger:       logger,
	}
}

// Validate reports whether rawURL should be returned to the caller: trusted
// hosts pass, every other URL must answer HEAD with 2xx or 206.
func (v *LinkValidator) Validate(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	host := strings.ToLower(u.Host)
	for _, trusted := range v.trustedHosts {
		if strings.Contains(host, trusted) {
			return true
		}
	}

	r, err := v.client.R().SetContext(ctx).Head(rawURL)
	if err != nil {
		v.logger.Debug("link validation failed", zap.String("url", rawURL), zap.Error(err))

		return false
	}

	// 2xx includes 206 Partial Content from range-aware CDNs.
	status := r.StatusCode()
	ok := status >= http.StatusOK && status < http.StatusMultipleChoices
	if !ok {
		v.logger.Debug("link validation rejected",
			zap.String("url", rawURL),
			zap.Int("status", status),
		)
	}

	return ok
}
