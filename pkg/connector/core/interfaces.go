// Package core defines the contracts between the resilient connector
// framework and provider adapters. Adapters implement the Connector
// interface; the framework owns lifecycle, rate limiting, retry, and
// health history around it.
package core

import (
	"context"
	"time"

	"github.com/junctionhq/junction/pkg/config"
)

// State represents the connector lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateRateLimited  State = "rate_limited"
	StateDisabled     State = "disabled"
	StateError        State = "error"
)

// States lists every lifecycle state, in no particular order.
var States = []State{
	StateDisconnected, StateConnecting, StateConnected,
	StateRateLimited, StateDisabled, StateError,
}

// Connector is the provider adapter contract. Implementations supply only
// the transport-specific logic; everything else (state machine, retry,
// rate limiting, events) lives in the framework wrapper.
type Connector interface {
	// Connect establishes the provider connection
	Connect(ctx context.Context, cfg *config.ConnectorConfig, creds *Credentials) error
	// Disconnect tears the connection down
	Disconnect(ctx context.Context) error
	// HealthCheck probes the provider; an error marks the check unhealthy
	HealthCheck(ctx context.Context) (HealthCheckResult, error)
}

// Credentials holds provider access credentials. The connector owns them
// while connected; refresh replaces the whole value, never a field.
type Credentials struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	TokenType    string            `json:"token_type,omitempty"`
	Scope        string            `json:"scope,omitempty"`
	ExpiresAt    time.Time         `json:"expires_at,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the access token is past its expiry. A zero
// ExpiresAt means the token does not expire.
func (c *Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// HealthCheckResult is the outcome of a single health probe.
type HealthCheckResult struct {
	Healthy             bool          `json:"healthy"`
	ResponseTime        time.Duration `json:"response_time"`
	Message             string        `json:"message,omitempty"`
	CheckedAt           time.Time     `json:"checked_at"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
}

// RequestLogEntry records one outbound request for observability. Entries
// are never consulted by control flow.
type RequestLogEntry struct {
	ID          string        `json:"id"`
	ConnectorID string        `json:"connector_id"`
	Timestamp   time.Time     `json:"timestamp"`
	Method      string        `json:"method,omitempty"`
	URL         string        `json:"url,omitempty"`
	StatusCode  int           `json:"status_code,omitempty"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
}

// Descriptor is the static catalog entry for a provider adapter.
type Descriptor struct {
	// ID is the provider identifier (github, jira, slack, ...)
	ID string `json:"id"`
	// Name is the human-readable provider name
	Name string `json:"name"`
	// Capabilities lists supported operations (issues, messages, ...)
	Capabilities []string `json:"capabilities"`
	// RequiredConfig names the settings keys an adapter needs
	RequiredConfig []string `json:"required_config"`
}
