// Package base provides the resilient connector wrapper that all Junction
// provider adapters are driven through. It owns the connection lifecycle
// state machine, fixed-window rate limiting, exponential backoff with
// jitter, error classification, bounded health history, and per-connector
// lifecycle events.
//
// # Usage
//
// Adapters implement core.Connector and are wrapped at construction:
//
//	rc, err := base.New(cfg, &jiraConnector{})
//	if err != nil {
//	    return err
//	}
//	defer rc.Close()
//
//	if err := rc.Connect(ctx, creds); err != nil {
//	    return err
//	}
//
//	err = rc.WithRetry(ctx, "create_issue", func(ctx context.Context) error {
//	    return client.CreateIssue(ctx, issue)
//	})
//
// # Lifecycle
//
// disconnected -> connecting -> connected | error; connected may move to
// rate_limited, error, or back to disconnected. disabled is reached only
// after the reconnect ceiling is exhausted and requires a fresh instance
// to recover.
package base

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/junctionhq/junction/pkg/auth"
	"github.com/junctionhq/junction/pkg/config"
	"github.com/junctionhq/junction/pkg/connector/core"
	cerrors "github.com/junctionhq/junction/pkg/errors"
	"github.com/junctionhq/junction/pkg/logger"
	"github.com/junctionhq/junction/pkg/metrics"
)

var tracer = otel.Tracer("github.com/junctionhq/junction/pkg/connector/base")

const (
	// maxReconnectAttempts is the reconnect ceiling; exceeding it disables
	// the instance until externally recreated.
	maxReconnectAttempts = 5
	// healthHistorySize bounds the retained health check results.
	healthHistorySize = 10
	// requestLogSize bounds the retained request log entries.
	requestLogSize = 100
)

var stateNames = func() []string {
	names := make([]string, len(core.States))
	for i, s := range core.States {
		names[i] = string(s)
	}
	return names
}()

// settings holds construction options.
type settings struct {
	logger      *zap.Logger
	eventBuffer int
	credSource  auth.CredentialSource
}

// Option customizes a ResilientConnector at construction.
type Option func(*settings)

// WithLogger overrides the default logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithEventBuffer sets the lifecycle event channel capacity.
func WithEventBuffer(n int) Option {
	return func(s *settings) { s.eventBuffer = n }
}

// WithCredentialSource installs a source consulted whenever a connection
// is established with missing or expired credentials. Connect may then be
// called with nil credentials.
func WithCredentialSource(src auth.CredentialSource) Option {
	return func(s *settings) { s.credSource = src }
}

// ResilientConnector wraps a provider adapter with the connection
// lifecycle state machine and retry-wrapped call execution. One instance
// manages one logical connection; instances are independent and safe to
// drive concurrently with each other.
type ResilientConnector[T core.Connector] struct {
	impl   T
	cfg    *config.ConnectorConfig
	logger *zap.Logger

	limiter    *RateLimiter
	backoff    *BackoffPolicy
	events     *EventBus
	credSource auth.CredentialSource

	mu                sync.Mutex
	state             core.State
	connCfg           *config.ConnectorConfig
	creds             *core.Credentials
	reconnectAttempts int
	healthHistory     []core.HealthCheckResult
	requestLog        []core.RequestLogEntry

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

// New wraps a provider adapter in a resilient connector. The configuration
// supplies identity plus rate-limit and retry tuning and is validated here.
func New[T core.Connector](cfg *config.ConnectorConfig, impl T, opts ...Option) (*ResilientConnector[T], error) {
	if cfg == nil {
		return nil, cerrors.New(cerrors.CategoryConfig, "connector config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, cerrors.Wrap(err, cerrors.CategoryConfig, "invalid connector config")
	}

	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().With(zap.String("connector", cfg.ID))
	}

	rc := &ResilientConnector[T]{
		impl:       impl,
		cfg:        cfg,
		logger:     s.logger,
		limiter:    NewRateLimiter(cfg.RateLimit),
		backoff:    NewBackoffPolicy(cfg.Retry),
		events:     NewEventBus(cfg.ID, s.eventBuffer, s.logger),
		credSource: s.credSource,
		state:      core.StateDisconnected,
		sleep:      sleepContext,
		now:        time.Now,
	}
	metrics.SetConnectorState(cfg.ID, string(core.StateDisconnected), stateNames)
	return rc, nil
}

// ID returns the connector instance identifier.
func (rc *ResilientConnector[T]) ID() string {
	return rc.cfg.ID
}

// Provider returns the provider name.
func (rc *ResilientConnector[T]) Provider() string {
	return rc.cfg.Provider
}

// Impl returns the wrapped provider adapter.
func (rc *ResilientConnector[T]) Impl() T {
	return rc.impl
}

// State returns the current lifecycle state.
func (rc *ResilientConnector[T]) State() core.State {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state
}

// Events returns the per-connector lifecycle event bus.
func (rc *ResilientConnector[T]) Events() *EventBus {
	return rc.events
}

// Close stops the event bus supervisor. It does not disconnect.
func (rc *ResilientConnector[T]) Close() {
	rc.events.Close()
}

// Connect establishes the provider connection. A no-op when already
// connected. On failure the classified error is returned and the state
// moves to error.
func (rc *ResilientConnector[T]) Connect(ctx context.Context, creds *core.Credentials) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.state == core.StateConnected {
		return nil
	}
	if rc.state == core.StateDisabled {
		return &cerrors.ConnectorError{
			Message:    "connector is disabled, recreate the instance",
			Category:   cerrors.CategoryConfig,
			ProviderID: rc.cfg.Provider,
			Retryable:  false,
		}
	}

	rc.setState(core.StateConnecting)
	rc.connCfg = rc.cfg
	rc.creds = creds
	rc.reconnectAttempts = 0

	if err := rc.refreshCredentialsLocked(ctx); err != nil {
		rc.setState(core.StateError)
		rc.events.Emit(Event{Type: EventError, Err: err})
		return err
	}

	return rc.connectLocked(ctx)
}

// refreshCredentialsLocked pulls fresh credentials from the configured
// source when the stored ones are missing or expired. Caller must hold
// rc.mu.
func (rc *ResilientConnector[T]) refreshCredentialsLocked(ctx context.Context) error {
	if rc.credSource == nil {
		return nil
	}
	if rc.creds != nil && !rc.creds.Expired(rc.now()) {
		return nil
	}

	creds, err := rc.credSource.Credentials(ctx)
	if err != nil {
		return cerrors.Classify(err, rc.cfg.Provider)
	}
	rc.creds = creds
	rc.events.Emit(Event{Type: EventCredentialsRefreshed})
	rc.logger.Info("credentials refreshed from source")
	return nil
}

// connectLocked runs the adapter connect hook using stored state. Caller
// must hold rc.mu.
func (rc *ResilientConnector[T]) connectLocked(ctx context.Context) error {
	if err := rc.impl.Connect(ctx, rc.connCfg, rc.creds); err != nil {
		cerr := cerrors.Classify(err, rc.cfg.Provider)
		rc.setState(core.StateError)
		rc.events.Emit(Event{Type: EventError, Err: cerr})
		rc.logger.Error("connect failed", zap.Error(cerr))
		return cerr
	}

	rc.setState(core.StateConnected)
	rc.events.Emit(Event{Type: EventConnected})
	rc.logger.Info("connected", zap.String("provider", rc.cfg.Provider))
	return nil
}

// Disconnect tears the connection down. Lifecycle cleanup (credentials,
// stored config, reconnect counter, state) always happens; a failing
// disconnect hook is still surfaced to the caller.
func (rc *ResilientConnector[T]) Disconnect(ctx context.Context) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.state == core.StateDisconnected {
		return nil
	}

	err := rc.impl.Disconnect(ctx)

	rc.connCfg = nil
	rc.creds = nil
	rc.reconnectAttempts = 0
	rc.setState(core.StateDisconnected)
	rc.events.Emit(Event{Type: EventDisconnected})
	rc.logger.Info("disconnected")

	if err != nil {
		return cerrors.Classify(err, rc.cfg.Provider)
	}
	return nil
}

// HealthCheck probes the adapter and records the result in the bounded
// history. It never returns an error: a failing probe becomes an unhealthy
// result with the consecutive failure count derived from history.
func (rc *ResilientConnector[T]) HealthCheck(ctx context.Context) core.HealthCheckResult {
	start := rc.now()
	res, err := rc.impl.HealthCheck(ctx)
	if err != nil {
		res = core.HealthCheckResult{
			Healthy:      false,
			ResponseTime: rc.now().Sub(start),
			Message:      err.Error(),
		}
	}
	res.CheckedAt = rc.now()

	rc.mu.Lock()
	if res.Healthy {
		res.ConsecutiveFailures = 0
	} else {
		res.ConsecutiveFailures = rc.consecutiveFailuresLocked() + 1
	}
	rc.healthHistory = append(rc.healthHistory, res)
	if len(rc.healthHistory) > healthHistorySize {
		rc.healthHistory = rc.healthHistory[len(rc.healthHistory)-healthHistorySize:]
	}
	rc.mu.Unlock()

	result := "healthy"
	if !res.Healthy {
		result = "unhealthy"
	}
	metrics.HealthChecks.WithLabelValues(rc.cfg.ID, result).Inc()
	rc.events.Emit(Event{Type: EventHealthCheck, Payload: res})

	return res
}

// consecutiveFailuresLocked counts unhealthy results backward from the
// most recent history entry until a healthy one is found. Caller must hold
// rc.mu.
func (rc *ResilientConnector[T]) consecutiveFailuresLocked() int {
	count := 0
	for i := len(rc.healthHistory) - 1; i >= 0; i-- {
		if rc.healthHistory[i].Healthy {
			break
		}
		count++
	}
	return count
}

// HealthHistory returns a copy of the retained health check results,
// oldest first.
func (rc *ResilientConnector[T]) HealthHistory() []core.HealthCheckResult {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	out := make([]core.HealthCheckResult, len(rc.healthHistory))
	copy(out, rc.healthHistory)
	return out
}

// Reconnect retries the connection using state stored by a previous
// Connect. Each call increments the attempt counter, waits the backoff
// delay for that attempt, then runs the connect hook; success resets the
// counter. Exceeding the ceiling disables the instance permanently.
func (rc *ResilientConnector[T]) Reconnect(ctx context.Context) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.connCfg == nil || (rc.creds == nil && rc.credSource == nil) {
		return &cerrors.ConnectorError{
			Message:    "reconnect requires a previously established connection",
			Category:   cerrors.CategoryConfig,
			ProviderID: rc.cfg.Provider,
			Retryable:  false,
		}
	}

	if rc.reconnectAttempts >= maxReconnectAttempts {
		rc.setState(core.StateDisabled)
		cerr := &cerrors.ConnectorError{
			Message:    "reconnect attempts exhausted, connector disabled",
			Category:   cerrors.CategoryNetwork,
			ProviderID: rc.cfg.Provider,
			Retryable:  false,
		}
		rc.events.Emit(Event{Type: EventError, Err: cerr})
		rc.logger.Error("connector disabled", zap.Int("attempts", rc.reconnectAttempts))
		return cerr
	}

	rc.reconnectAttempts++
	rc.setState(core.StateConnecting)
	rc.events.Emit(Event{Type: EventReconnecting, Payload: rc.reconnectAttempts})
	rc.logger.Info("reconnecting", zap.Int("attempt", rc.reconnectAttempts))

	if err := rc.sleep(ctx, rc.backoff.DelayFor(rc.reconnectAttempts)); err != nil {
		return cerrors.Wrap(err, cerrors.CategoryNetwork, "reconnect interrupted")
	}

	if err := rc.refreshCredentialsLocked(ctx); err != nil {
		rc.setState(core.StateError)
		rc.events.Emit(Event{Type: EventError, Err: err})
		return err
	}

	if err := rc.connectLocked(ctx); err != nil {
		return err
	}

	rc.reconnectAttempts = 0
	return nil
}

// RefreshCredentials replaces the stored credentials wholesale and emits
// credentials_refreshed. No partial mutation: callers construct a complete
// new value.
func (rc *ResilientConnector[T]) RefreshCredentials(creds *core.Credentials) {
	rc.mu.Lock()
	rc.creds = creds
	rc.mu.Unlock()

	rc.events.Emit(Event{Type: EventCredentialsRefreshed})
	rc.logger.Info("credentials refreshed")
}

// Credentials returns the currently stored credentials, or nil when
// disconnected.
func (rc *ResilientConnector[T]) Credentials() *core.Credentials {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.creds
}

// WithRetry executes op with rate limiting, classification, and bounded
// retries: the initial try plus MaxAttempts retries. Backoff precedes
// every attempt except the first. A denied rate-limit token is a normal
// retryable failure. Non-retryable errors and final-attempt errors are
// returned immediately, always classified.
func (rc *ResilientConnector[T]) WithRetry(ctx context.Context, operation string, op func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "connector.with_retry", trace.WithAttributes(
		attribute.String("connector.id", rc.cfg.ID),
		attribute.String("connector.operation", operation),
	))
	defer span.End()

	attempts := rc.cfg.Retry.MaxAttempts + 1
	timer := metrics.NewTimer()

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := rc.sleep(ctx, rc.backoff.DelayFor(attempt-1)); err != nil {
				return cerrors.Wrap(err, cerrors.CategoryNetwork, "retry interrupted")
			}
		}

		if !rc.limiter.Allow() {
			cerr := &cerrors.ConnectorError{
				Message:    "rate limit window exhausted",
				Category:   cerrors.CategoryRateLimit,
				ProviderID: rc.cfg.Provider,
				Retryable:  true,
			}
			metrics.RateLimitRejections.WithLabelValues(rc.cfg.ID).Inc()
			rc.markRateLimited()
			if attempt == attempts {
				span.RecordError(cerr)
				return cerr
			}
			rc.recordRetry(operation, attempt, cerr)
			continue
		}

		attemptStart := rc.now()
		err := op(ctx)
		if err == nil {
			metrics.OperationAttempts.WithLabelValues(rc.cfg.ID, operation, "success").Inc()
			metrics.OperationDuration.WithLabelValues(rc.cfg.ID, operation).Observe(timer.Stop().Seconds())
			rc.clearRateLimited()
			return nil
		}

		cerr := cerrors.Classify(err, rc.cfg.Provider)
		metrics.OperationAttempts.WithLabelValues(rc.cfg.ID, operation, "failure").Inc()
		rc.logRequest(core.RequestLogEntry{
			Method:   operation,
			Duration: rc.now().Sub(attemptStart),
			Success:  false,
			Error:    cerr.Error(),
		})

		if !cerr.Retryable || attempt == attempts {
			span.RecordError(cerr)
			return cerr
		}

		rc.recordRetry(operation, attempt, cerr)
	}

	// Unreachable when attempts >= 1; kept so the loop cannot fall through
	// to a nil error.
	return cerrors.Newf(cerrors.CategoryUnknown, "operation %s exhausted all retries", operation)
}

// WithRetryResult is WithRetry for operations that return a value.
func WithRetryResult[T core.Connector, R any](ctx context.Context, rc *ResilientConnector[T], operation string, op func(context.Context) (R, error)) (R, error) {
	var result R
	err := rc.WithRetry(ctx, operation, func(ctx context.Context) error {
		r, opErr := op(ctx)
		if opErr != nil {
			return opErr
		}
		result = r
		return nil
	})
	return result, err
}

// recordRetry logs a retry decision and records the attempt.
func (rc *ResilientConnector[T]) recordRetry(operation string, attempt int, cerr *cerrors.ConnectorError) {
	metrics.OperationAttempts.WithLabelValues(rc.cfg.ID, operation, "retry").Inc()
	rc.logger.Warn("operation failed, retrying",
		zap.String("operation", operation),
		zap.Int("attempt", attempt),
		zap.String("category", string(cerr.Category)),
		zap.Error(cerr))
}

// markRateLimited moves a connected instance to rate_limited.
func (rc *ResilientConnector[T]) markRateLimited() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.state == core.StateConnected {
		rc.setState(core.StateRateLimited)
		rc.events.Emit(Event{Type: EventRateLimited})
	}
}

// clearRateLimited restores a rate_limited instance to connected.
func (rc *ResilientConnector[T]) clearRateLimited() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.state == core.StateRateLimited {
		rc.setState(core.StateConnected)
	}
}

// logRequest appends an entry to the bounded request log, filling in
// identity fields.
func (rc *ResilientConnector[T]) logRequest(entry core.RequestLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.ConnectorID = rc.cfg.ID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = rc.now()
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.requestLog = append(rc.requestLog, entry)
	if len(rc.requestLog) > requestLogSize {
		rc.requestLog = rc.requestLog[len(rc.requestLog)-requestLogSize:]
	}
}

// RecordRequest lets adapters log outbound requests (HTTP method, URL,
// status) into the bounded request log. Entries are observability only and
// never consulted by control flow.
func (rc *ResilientConnector[T]) RecordRequest(entry core.RequestLogEntry) {
	rc.logRequest(entry)
}

// RequestLog returns a copy of the retained request log, oldest first.
func (rc *ResilientConnector[T]) RequestLog() []core.RequestLogEntry {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	out := make([]core.RequestLogEntry, len(rc.requestLog))
	copy(out, rc.requestLog)
	return out
}

// setState transitions the state machine and updates the state gauge.
// Caller must hold rc.mu (or be inside a lifecycle operation that does).
func (rc *ResilientConnector[T]) setState(s core.State) {
	rc.state = s
	metrics.SetConnectorState(rc.cfg.ID, string(s), stateNames)
}

// sleepContext waits for d or until the context is cancelled. Sleeping one
// connector never stalls another: each instance runs on its caller's
// goroutine.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
