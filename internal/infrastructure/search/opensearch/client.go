// Package opensearch indexes composed formations into an OpenSearch cluster so
// that the catalogue can be searched by certification, organisme and place.
package opensearch

import (
	"context"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v3"
	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/config"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// Client wraps the OpenSearch API client.
type Client struct {
	api    *opensearchapi.Client
	cfg    config.SearchConfig
	logger logging.Logger
}

// NewClient builds a client and verifies the cluster answers.
func NewClient(cfg config.SearchConfig, logger logging.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.InvalidParam("logger is required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	api, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses:     cfg.Addresses,
			Username:      cfg.Username,
			Password:      cfg.Password,
			MaxRetries:    cfg.MaxRetries,
			RetryOnStatus: []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
			RetryBackoff:  func(attempt int) time.Duration { return time.Duration(attempt) * 100 * time.Millisecond },
			Transport: &http.Transport{
				MaxIdleConnsPerHost:   10,
				ResponseHeaderTimeout: cfg.RequestTimeout,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create opensearch client")
	}

	c := &Client{api: api, cfg: cfg, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}

	logger.Info("OpenSearch client connected", logging.Int("addresses", len(cfg.Addresses)))
	return c, nil
}

// Ping checks the cluster answers. It backs the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.api.Ping(ctx, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		c.logger.Warn("OpenSearch ping failed", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "opensearch unreachable")
	}
	if resp.IsError() {
		return errors.New(errors.ErrCodeServiceUnavailable, "opensearch ping returned error status").
			WithDetailf("status=%d", resp.StatusCode)
	}
	return nil
}

// ValidateConfig validates the client configuration.
func ValidateConfig(cfg config.SearchConfig) error {
	if len(cfg.Addresses) == 0 {
		return errors.Validation("at least one opensearch address is required")
	}
	if cfg.MaxRetries < 0 {
		return errors.Validation("max_retries must be >= 0")
	}
	if cfg.RequestTimeout <= 0 {
		return errors.Validation("request_timeout must be > 0")
	}
	return nil
}
