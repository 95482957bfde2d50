// Package config provides the configuration surface for Junction connectors
// and the webhook receiver. It defines per-connector settings (identity,
// provider settings, rate limit and retry tuning) with validation that
// applies sensible defaults.
//
// Example usage:
//
//	cfg := config.NewConnectorConfig("jira-prod", "jira")
//	cfg.RateLimit.MaxRequests = 50
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"
)

// ConnectorConfig holds immutable per-connection settings. It is supplied
// to Connect, retained by the connector until Disconnect, and never mutated
// by the framework.
type ConnectorConfig struct {
	// ID identifies the connector instance
	ID string `yaml:"id" json:"id"`
	// Provider names the external service (github, jira, slack, ...)
	Provider string `yaml:"provider" json:"provider"`
	// Settings carries provider-specific configuration
	Settings map[string]string `yaml:"settings" json:"settings"`

	// RateLimit bounds outbound request volume
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	// Retry tunes the retry-wrapped call behavior
	Retry RetryConfig `yaml:"retry" json:"retry"`
}

// RateLimitConfig configures the fixed-window request counter.
type RateLimitConfig struct {
	// MaxRequests permitted per window
	MaxRequests int `yaml:"max_requests" json:"max_requests"`
	// Window is the fixed window duration
	Window time.Duration `yaml:"window" json:"window"`
}

// RetryConfig configures bounded-retry request execution. Immutable per
// connector instance.
type RetryConfig struct {
	// MaxAttempts is the number of retries after the initial try
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// InitialDelay is the backoff delay for the first retry
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	// MaxDelay caps the exponential backoff
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`
	// BackoffMultiplier grows the delay between attempts
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	// JitterFactor adds randomized delay on top of the base backoff
	JitterFactor float64 `yaml:"jitter_factor" json:"jitter_factor"`
}

// NewConnectorConfig creates a connector configuration with default rate
// limit and retry settings.
func NewConnectorConfig(id, provider string) *ConnectorConfig {
	return &ConnectorConfig{
		ID:        id,
		Provider:  provider,
		Settings:  make(map[string]string),
		RateLimit: DefaultRateLimit(),
		Retry:     DefaultRetry(),
	}
}

// DefaultRateLimit returns the default fixed-window rate limit.
func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 100,
		Window:      time.Minute,
	}
}

// DefaultRetry returns the default retry tuning.
func DefaultRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFactor:      0.1,
	}
}

// Validate checks required fields and applies defaults for zero values.
func (c *ConnectorConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("connector id is required")
	}
	if c.Provider == "" {
		return fmt.Errorf("connector provider is required")
	}

	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = DefaultRateLimit().MaxRequests
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = DefaultRateLimit().Window
	}

	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry max_attempts cannot be negative")
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = DefaultRetry().InitialDelay
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = DefaultRetry().MaxDelay
	}
	if c.Retry.BackoffMultiplier <= 0 {
		c.Retry.BackoffMultiplier = DefaultRetry().BackoffMultiplier
	}
	if c.Retry.JitterFactor < 0 {
		c.Retry.JitterFactor = 0
	}

	return nil
}

// ServerConfig configures the webhook receiver process.
type ServerConfig struct {
	// Addr is the listen address for the HTTP server
	Addr string `yaml:"addr" json:"addr" mapstructure:"addr"`
	// ReadTimeout bounds request body reads
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout" mapstructure:"read_timeout"`
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	// Sources maps webhook source names to their shared secrets.
	// Sources without a secret skip signature verification.
	Sources map[string]SourceConfig `yaml:"sources" json:"sources" mapstructure:"sources"`
	// Log configures structured logging
	Log LogConfig `yaml:"log" json:"log" mapstructure:"log"`
	// Tracing configures OpenTelemetry span recording
	Tracing TracingConfig `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
}

// SourceConfig configures one inbound webhook source.
type SourceConfig struct {
	// Secret is the shared HMAC secret; empty disables verification
	Secret string `yaml:"secret" json:"secret" mapstructure:"secret"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level       string `yaml:"level" json:"level" mapstructure:"level"`
	Development bool   `yaml:"development" json:"development" mapstructure:"development"`
	Encoding    string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
}

// TracingConfig configures span sampling and export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate" mapstructure:"sampling_rate"`
	// Stdout emits spans to stdout for local debugging
	Stdout bool `yaml:"stdout" json:"stdout" mapstructure:"stdout"`
}

// Validate applies defaults for the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = "json"
	}
	if c.Tracing.Enabled && c.Tracing.SamplingRate <= 0 {
		c.Tracing.SamplingRate = 1.0
	}
	return nil
}
