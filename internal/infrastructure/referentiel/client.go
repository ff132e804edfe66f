// Package referentiel implements the company registry and the geographic
// referential over their public HTTP APIs.
package referentiel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/config"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

const userAgent = "api-apprentissage-importer/1.0"

// maxErrorBody bounds how much of an error response is kept in the detail.
const maxErrorBody = 512

// apiClient is the shared transport of both referentials: one rate limiter
// per upstream API, a bearer token when configured.
type apiClient struct {
	name       string
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logging.Logger
}

// Option customizes a referential client.
type Option func(*apiClient)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *apiClient) { a.httpClient = c }
}

// WithLimiter replaces the limiter built from the configured rate.
func WithLimiter(l *rate.Limiter) Option {
	return func(a *apiClient) { a.limiter = l }
}

func newAPIClient(name, baseURL, token string, cfg config.ReferentielConfig, log logging.Logger, opts ...Option) (*apiClient, error) {
	if baseURL == "" {
		return nil, errors.InvalidParam(name + " base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, name+" base url is invalid")
	}
	if log == nil {
		return nil, errors.InvalidParam("logger cannot be nil")
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &apiClient{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     log.Named(name),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// getJSON fetches path and decodes the body into out. A 404 reports
// found=false without error.
func (c *apiClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, errors.Wrap(err, errors.ErrCodeRegistryRateLimited, c.name+" rate limiter rejected the request")
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to build "+c.name+" request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, errors.Wrap(err, errors.ErrCodeRegistryUnavailable, c.name+" request failed").WithDetail("path=" + path)
	}
	defer resp.Body.Close()

	c.logger.Debug("referential call",
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("latency", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return false, errors.New(errors.ErrCodeRegistryRateLimited, c.name+" rate limit exceeded").
			WithDetailf("path=%s retry_after=%s", path, resp.Header.Get("Retry-After"))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return false, errors.New(errors.ErrCodeRegistryUnavailable, c.name+" returned an unexpected status").
			WithDetailf("path=%s status=%d body=%q", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeRegistryParseError, "failed to decode "+c.name+" response").WithDetail("path=" + path)
	}
	return true, nil
}
