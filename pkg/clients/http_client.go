// Package clients provides the pooled HTTP client used by provider
// adapters for outbound API calls.
package clients

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	cerrors "github.com/junctionhq/junction/pkg/errors"
	"github.com/junctionhq/junction/pkg/logger"
)

// HTTPConfig configures connection pooling and timeouts.
type HTTPConfig struct {
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `json:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`

	DialTimeout           time.Duration `json:"dial_timeout"`
	KeepAlive             time.Duration `json:"keep_alive"`
	TLSHandshakeTimeout   time.Duration `json:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `json:"response_header_timeout"`
	RequestTimeout        time.Duration `json:"request_timeout"`

	EnableHTTP2        bool   `json:"enable_http2"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify"`
	UserAgent          string `json:"user_agent"`
}

// DefaultHTTPConfig returns pooling defaults suitable for provider APIs.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		DialTimeout:           10 * time.Second,
		KeepAlive:             30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		RequestTimeout:        60 * time.Second,
		EnableHTTP2:           true,
		UserAgent:             "junction/1.0",
	}
}

// HTTPClient wraps net/http with connection reuse, request counting, and
// error classification. Safe for concurrent use.
type HTTPClient struct {
	config *HTTPConfig
	logger *zap.Logger
	client *http.Client

	totalRequests  int64
	failedRequests int64
}

// Stats is a point-in-time request counter snapshot.
type Stats struct {
	TotalRequests  int64
	FailedRequests int64
}

// NewHTTPClient builds a pooled client from the configuration. A nil
// config uses the defaults.
func NewHTTPClient(cfg *HTTPConfig) (*HTTPClient, error) {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		},
		ForceAttemptHTTP2: cfg.EnableHTTP2,
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("configuring http2 transport: %w", err)
		}
	}

	return &HTTPClient{
		config: cfg,
		logger: logger.Get().With(zap.String("component", "http_client")),
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
	}, nil
}

// Do executes a request and classifies transport failures. The caller
// owns the response body.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	atomic.AddInt64(&c.totalRequests, 1)

	if c.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, cerrors.Classify(err, req.URL.Host)
	}
	return resp, nil
}

// DoJSON executes a request with a JSON body and decodes a JSON response
// into out. Non-2xx statuses become classified errors carrying the
// status code; out may be nil to discard the body.
func (c *HTTPClient) DoJSON(ctx context.Context, method, url string, headers map[string]string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return cerrors.Wrap(err, cerrors.CategoryData, "encoding request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return cerrors.Wrap(err, cerrors.CategoryConfig, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		atomic.AddInt64(&c.failedRequests, 1)
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return cerrors.Classify(
			fmt.Errorf("%s %s returned %d: %s", method, url, resp.StatusCode, payload),
			req.URL.Host,
		).WithStatusCode(resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return cerrors.Wrap(err, cerrors.CategoryData, "decoding response body")
	}
	return nil
}

// Stats returns the request counters.
func (c *HTTPClient) Stats() Stats {
	return Stats{
		TotalRequests:  atomic.LoadInt64(&c.totalRequests),
		FailedRequests: atomic.LoadInt64(&c.failedRequests),
	}
}

// Close releases idle pooled connections.
func (c *HTTPClient) Close() {
	c.client.CloseIdleConnections()
}
