// Package grafana connects the panel tooling to a Grafana server through the
// Grafana HTTP API: data source references are resolved against the server
// and dashboards loaded by UID are edited and saved back.
package grafana

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	goapi "github.com/grafana/grafana-openapi-client-go/client"

	"goa.design/dashpanels/runtime/telemetry"
)

type (
	// Config configures the Grafana API client.
	Config struct {
		// URL is the Grafana root URL, for example https://grafana.example.com.
		URL string
		// APIKey is an API key or service account token.
		APIKey string
		// OrgID selects the organization. Only used with basic auth.
		OrgID int64
		// Username and Password enable basic auth when APIKey is empty.
		Username string
		Password string
		// NumRetries is the number of retries of failed requests.
		NumRetries int
		// RetryStatusCodes lists the retried status codes, "x" matches any
		// digit. Defaults to 429 and 5xx.
		RetryStatusCodes []string
		// Timeout bounds each request. Defaults to 30s.
		Timeout time.Duration
		// Headers are added to every request.
		Headers map[string]string
	}

	// Client wraps the generated Grafana API client.
	Client struct {
		api     *goapi.GrafanaHTTPAPI
		timeout time.Duration
		logger  telemetry.Logger
	}

	// Option configures a Client.
	Option func(*Client)
)

// DefaultTimeout is the request timeout used when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// WithLogger sets the client logger.
func WithLogger(l telemetry.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient validates cfg and returns a client for the Grafana API.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("grafana url is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse grafana url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("grafana url %q has no host", cfg.URL)
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	tc := &goapi.TransportConfig{
		Host:             u.Host,
		BasePath:         strings.TrimSuffix(u.Path, "/") + "/api",
		Schemes:          []string{scheme},
		APIKey:           cfg.APIKey,
		NumRetries:       cfg.NumRetries,
		RetryStatusCodes: cfg.RetryStatusCodes,
		HTTPHeaders:      cfg.Headers,
	}
	if cfg.APIKey == "" && cfg.Username != "" {
		tc.BasicAuth = url.UserPassword(cfg.Username, cfg.Password)
		tc.OrgID = cfg.OrgID
	}
	if tc.HTTPHeaders == nil {
		tc.HTTPHeaders = map[string]string{}
	}
	c := &Client{
		api:     goapi.NewHTTPClientWithConfig(strfmt.Default, tc),
		timeout: cfg.Timeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = telemetry.NewNoopLogger()
	}
	return c, nil
}

// Resolver returns a data source resolver backed by the client.
func (c *Client) Resolver() *DataSourceResolver {
	return &DataSourceResolver{client: c}
}
