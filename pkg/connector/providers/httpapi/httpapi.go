// Package httpapi provides a generic REST provider adapter. Providers
// without a dedicated adapter can be reached through it by configuring a
// base URL and a health endpoint.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/junctionhq/junction/pkg/clients"
	"github.com/junctionhq/junction/pkg/config"
	"github.com/junctionhq/junction/pkg/connector/core"
	"github.com/junctionhq/junction/pkg/connector/registry"
	cerrors "github.com/junctionhq/junction/pkg/errors"
	"github.com/junctionhq/junction/pkg/logger"
)

// Settings keys recognized by this adapter.
const (
	SettingBaseURL    = "base_url"
	SettingHealthPath = "health_path"
	SettingUserAgent  = "user_agent"
)

const defaultHealthPath = "/health"

func init() {
	// Registration failure here means a duplicate provider ID, which is
	// a programming error.
	if err := registry.Register(core.Descriptor{
		ID:             "httpapi",
		Name:           "Generic HTTP API",
		Capabilities:   []string{"request", "health"},
		RequiredConfig: []string{SettingBaseURL},
	}, New); err != nil {
		panic(err)
	}
}

// Connector talks to a JSON-over-HTTP provider API. It implements only
// the transport contract; lifecycle, retry, and rate limiting live in
// the resilient wrapper.
type Connector struct {
	client     *clients.HTTPClient
	logger     *zap.Logger
	baseURL    string
	healthPath string

	mu    sync.RWMutex
	creds *core.Credentials
}

// New builds an adapter from connector configuration.
func New(cfg *config.ConnectorConfig) (core.Connector, error) {
	baseURL := strings.TrimRight(cfg.Settings[SettingBaseURL], "/")
	if baseURL == "" {
		return nil, cerrors.New(cerrors.CategoryConfig, "httpapi adapter requires base_url")
	}

	httpCfg := clients.DefaultHTTPConfig()
	if ua := cfg.Settings[SettingUserAgent]; ua != "" {
		httpCfg.UserAgent = ua
	}
	client, err := clients.NewHTTPClient(httpCfg)
	if err != nil {
		return nil, err
	}

	healthPath := cfg.Settings[SettingHealthPath]
	if healthPath == "" {
		healthPath = defaultHealthPath
	}

	return &Connector{
		client:     client,
		logger:     logger.Get().With(zap.String("connector", cfg.ID)),
		baseURL:    baseURL,
		healthPath: healthPath,
	}, nil
}

// Connect stores the credentials and probes the health endpoint to prove
// the provider is reachable with them.
func (c *Connector) Connect(ctx context.Context, cfg *config.ConnectorConfig, creds *core.Credentials) error {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()

	if err := c.client.DoJSON(ctx, http.MethodGet, c.baseURL+c.healthPath, c.authHeaders(), nil, nil); err != nil {
		return err
	}

	c.logger.Info("provider reachable", zap.String("base_url", c.baseURL))
	return nil
}

// Disconnect drops credentials and releases pooled connections.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.creds = nil
	c.mu.Unlock()
	c.client.Close()
	return nil
}

// HealthCheck probes the configured health endpoint.
func (c *Connector) HealthCheck(ctx context.Context) (core.HealthCheckResult, error) {
	start := time.Now()
	err := c.client.DoJSON(ctx, http.MethodGet, c.baseURL+c.healthPath, c.authHeaders(), nil, nil)
	elapsed := time.Since(start)

	result := core.HealthCheckResult{
		Healthy:      err == nil,
		ResponseTime: elapsed,
		CheckedAt:    start,
	}
	if err != nil {
		result.Message = err.Error()
		return result, err
	}
	return result, nil
}

// Do issues an authorized JSON request against the provider. Intended to
// be wrapped in the resilient connector's retry execution.
func (c *Connector) Do(ctx context.Context, method, path string, body, out interface{}) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.client.DoJSON(ctx, method, c.baseURL+path, c.authHeaders(), body, out)
}

func (c *Connector) authHeaders() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.creds == nil || c.creds.AccessToken == "" {
		return nil
	}
	tokenType := c.creds.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return map[string]string{"Authorization": tokenType + " " + c.creds.AccessToken}
}
