package backendapi

import (
	"context"
	"fmt"
	"time"

	"FinSight/internal/domain/models"
	drepo "FinSight/internal/domain/repository"
	"FinSight/pkg/config"
	xhttp "FinSight/pkg/http"
)

// Client talks to the portfolio backend's REST surface. It is the single
// ingestion boundary for that collaborator: every response is normalized
// to canonical models before anything downstream sees it.
type Client struct {
	baseURL string
	client  *xhttp.Client
}

// NewClient builds an HTTP client with timeout and base URL from config.
func NewClient(cfg *config.Config) *Client {
	timeout := cfg.Backend.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL: cfg.Backend.BaseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type healthResponse struct {
	Status string `json:"status"`
}

// Check probes the backend health endpoint once. Anything but a 2xx with
// status "healthy" fails.
func (c *Client) Check(ctx context.Context) error {
	var hr healthResponse
	if err := c.getJSON(ctx, "/health/", &hr); err != nil {
		return fmt.Errorf("%w: %v", drepo.ErrHealthCheckFailed, err)
	}
	if hr.Status != "healthy" {
		return fmt.Errorf("%w: backend reports %q", drepo.ErrHealthCheckFailed, hr.Status)
	}
	return nil
}

// Fetch retrieves the live portfolio metrics used by the poller input.
func (c *Client) Fetch(ctx context.Context) (*models.PortfolioMetrics, error) {
	var mw metricsWire
	if err := c.getJSON(ctx, "/api/portfolio/metrics", &mw); err != nil {
		return nil, fmt.Errorf("fetch metrics: %w", err)
	}
	return mw.toModel(models.SourcePoller), nil
}

// Summary retrieves the heavier portfolio summary behind the cached query.
func (c *Client) Summary(ctx context.Context) (*models.PortfolioMetrics, error) {
	var mw metricsWire
	if err := c.getJSON(ctx, "/api/portfolio/summary", &mw); err != nil {
		return nil, fmt.Errorf("fetch summary: %w", err)
	}
	return mw.toModel(models.SourceCached), nil
}

func (c *Client) getJSON(ctx context.Context, path string, dest interface{}) error {
	if c.client == nil || c.baseURL == "" {
		return fmt.Errorf("backend http client not initialized")
	}
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + path,
		Headers: map[string]string{
			"Accept": "application/json",
		},
	}, dest)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

var _ drepo.HealthChecker = (*Client)(nil)
var _ drepo.MetricsSource = (*Client)(nil)
