// Package registry builds the configured provider set.
package registry

import (
	"fmt"

	"go.uber.org/zap"

	"stream-resolver/internal/config"
	"stream-resolver/internal/domain"
	"stream-resolver/internal/infra/provider"
	"stream-resolver/internal/infra/provider/hdhub"
	"stream-resolver/internal/infra/provider/vidsrc"
)

// Deps are the shared collaborators handed to providers.
type Deps struct {
	Metadata  domain.MetadataLookup
	Analyzer  domain.ManifestAnalyzer // may be nil
	Validator hdhub.LinkValidator
}

// NewProviders creates the enabled providers in declaration order.
// Declaration order is also the order of the merged output.
func NewProviders(cfg config.ProvidersConfig, deps Deps, logger *zap.Logger) ([]domain.Provider, error) {
	providers := make([]domain.Provider, 0, len(cfg.Enabled))

	for _, name := range cfg.Enabled {
		switch name {
		case vidsrc.Name:
			providers = append(providers, vidsrc.New(
				vidsrc.Config{
					Name:           name,
					Client:         ClientConfig(cfg.Vidsrc.Endpoint),
					DefaultHopBase: cfg.Vidsrc.DefaultHopBase,
					MaxConcurrency: cfg.Vidsrc.MaxConcurrency,
					Stagger:        cfg.Vidsrc.Stagger,
				},
				deps.Analyzer,
				logger,
			))
		case hdhub.Name:
			providers = append(providers, hdhub.New(
				hdhub.Config{
					Name:           name,
					DisplayName:    cfg.HDHub.DisplayName,
					Client:         ClientConfig(cfg.HDHub.Endpoint),
					MaxConcurrency: cfg.HDHub.MaxConcurrency,
				},
				deps.Metadata,
				deps.Validator,
				logger,
			))
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}

	return providers, nil
}

// ClientConfig converts an endpoint section into a provider client config.
func ClientConfig(e config.Endpoint) provider.ClientConfig {
	return provider.ClientConfig{
		BaseURL:   e.BaseURL,
		Timeout:   e.Timeout,
		UserAgent: e.UserAgent,
		Retry: provider.RetryConfig{
			MaxAttempts: e.Retry.MaxAttempts,
			WaitTime:    e.Retry.WaitTime,
			MaxWaitTime: e.Retry.MaxWaitTime,
		},
		CB: provider.CBConfig{
			MaxRequests:  e.CB.MaxRequests,
			Interval:     e.CB.Interval,
			Timeout:      e.CB.Timeout,
			FailureRatio: e.CB.FailureRatio,
		},
	}
}
