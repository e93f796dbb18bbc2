// Package provider provides HTTP client utilities shared by stream providers.
package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// DefaultUserAgent is sent on every upstream request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// ClientConfig holds configuration for a provider client.
type ClientConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Retry     RetryConfig
	CB        CBConfig
}

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxAttempts int
	WaitTime    time.Duration
	MaxWaitTime time.Duration
}

// CBConfig holds circuit breaker configuration.
type CBConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
}

// StatusError is returned when an upstream answers with a non-success status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// NewRestyClient creates a new Resty HTTP client with retry configuration.
func NewRestyClient(cfg ClientConfig) *resty.Client {
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", ua).
		SetRetryCount(cfg.Retry.MaxAttempts).
		SetRetryWaitTime(cfg.Retry.WaitTime).
		SetRetryMaxWaitTime(cfg.Retry.MaxWaitTime).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Retry on network errors or 5xx status codes
			if err != nil {
				return true
			}

			return r.StatusCode() >= 500
		})
	if cfg.BaseURL != "" {
		client.SetBaseURL(cfg.BaseURL)
	}

	return client
}

// NewCircuitBreaker creates a new circuit breaker for a provider.
func NewCircuitBreaker[T any](name string, cfg CBConfig, logger *zap.Logger) *gobreaker.CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)

			return counts.Requests >= 3 && failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return gobreaker.NewCircuitBreaker[T](settings)
}

// Page is a fetched upstream document.
type Page struct {
	URL    string
	Body   string
	Header map[string][]string
}

// GetPage fetches rawURL and fails on transport errors and non-2xx statuses.
func GetPage(ctx context.Context, client *resty.Client, rawURL string, headers map[string]string) (*Page, error) {
	r, err := client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	if r.IsError() {
		return nil, &StatusError{URL: rawURL, StatusCode: r.StatusCode()}
	}

	return &Page{
		URL:    rawURL,
		Body:   r.String(),
		Header: r.Header(),
	}, nil
}

// GetPageGuarded runs GetPage through a circuit breaker.
func GetPageGuarded(
	ctx context.Context,
	cb *gobreaker.CircuitBreaker[*Page],
	client *resty.Client,
	rawURL string,
	headers map[string]string,
) (*Page, error) {
	return cb.Execute(func() (*Page, error) {
		return GetPage(ctx, client, rawURL, headers)
	})
}

// ResolveURL resolves ref against base. Scheme-relative references are
// upgraded to https; absolute references are returned unchanged.
func ResolveURL(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty reference")
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref, nil
	}

	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing reference %q: %w", ref, err)
	}
	if r.IsAbs() {
		return r.String(), nil
	}

	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return "", fmt.Errorf("invalid base %q for relative reference %q", base, ref)
	}

	return b.ResolveReference(r).String(), nil
}

// Origin returns scheme://host of rawURL, upgrading scheme-relative URLs to https.
func Origin(rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if strings.HasPrefix(rawURL, "//") {
		rawURL = "https:" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}

	return u.Scheme + "://" + u.Host, true
}
