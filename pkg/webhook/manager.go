package webhook

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/junctionhq/junction/pkg/logger"
	"github.com/junctionhq/junction/pkg/metrics"
)

var tracer = otel.Tracer("junction/webhook")

// Outcome classifies why processing succeeded or failed. It drives the
// HTTP status mapping and the per-source metrics labels.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeInvalidJSON  Outcome = "invalid_json"
	OutcomeBadSignature Outcome = "bad_signature"
	OutcomeNoHandler    Outcome = "no_handler"
	OutcomeHandlerError Outcome = "handler_error"
)

// Event is the envelope delivered to registered handlers.
type Event struct {
	Source  string
	Type    string
	Payload map[string]interface{}
	Headers map[string]string
}

// Handler processes a verified, parsed webhook event.
type Handler func(ctx context.Context, event Event) error

// Result reports the outcome of processing a single webhook request.
type Result struct {
	Success bool
	Source  string
	Event   string
	Outcome Outcome
	// Error is a human-readable failure description, empty on success.
	Error string
}

// Manager routes inbound webhooks: it parses the body, verifies the
// provider signature when a secret is configured for the source, and
// dispatches to the handler registered for that source.
//
// Registration and processing are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	secrets  map[string]string
	logger   *zap.Logger
}

// NewManager returns an empty Manager. Sources without a configured
// secret skip signature verification.
func NewManager() *Manager {
	return &Manager{
		handlers: make(map[string]Handler),
		secrets:  make(map[string]string),
		logger:   logger.Get().With(zap.String("component", "webhook_manager")),
	}
}

// RegisterHandler installs the handler for a source, replacing any
// previous registration.
func (m *Manager) RegisterHandler(source string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[source] = handler
}

// UnregisterHandler removes the handler for a source.
func (m *Manager) UnregisterHandler(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, source)
}

// SetSignatureSecret configures the verification secret for a source.
// An empty secret disables verification for that source.
func (m *Manager) SetSignatureSecret(source, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if secret == "" {
		delete(m.secrets, source)
		return
	}
	m.secrets[source] = secret
}

// ProcessWebhook runs the full inbound pipeline over a raw request:
// parse, detect source, verify signature, dispatch. It never panics;
// handler panics are recovered and reported as handler errors.
func (m *Manager) ProcessWebhook(ctx context.Context, raw []byte, headers map[string]string) Result {
	timer := metrics.NewTimer()
	ctx, span := tracer.Start(ctx, "webhook.process")
	defer span.End()

	parsed := Parse(raw, headers)
	span.SetAttributes(
		attribute.String("webhook.source", parsed.Source),
		attribute.String("webhook.event", parsed.Event),
	)

	res := m.process(ctx, raw, parsed)

	metrics.WebhooksProcessed.WithLabelValues(res.Source, string(res.Outcome)).Inc()
	metrics.WebhookDuration.WithLabelValues(res.Source).Observe(timer.Stop().Seconds())

	if res.Success {
		m.logger.Info("webhook processed",
			zap.String("source", res.Source),
			zap.String("event", res.Event))
	} else {
		m.logger.Warn("webhook rejected",
			zap.String("source", res.Source),
			zap.String("event", res.Event),
			zap.String("outcome", string(res.Outcome)),
			zap.String("error", res.Error))
	}
	return res
}

func (m *Manager) process(ctx context.Context, raw []byte, parsed ParsedWebhook) Result {
	res := Result{Source: parsed.Source, Event: parsed.Event}

	if !parsed.Valid {
		res.Outcome = OutcomeInvalidJSON
		res.Error = parsed.ValidationError
		return res
	}

	m.mu.RLock()
	secret, hasSecret := m.secrets[parsed.Source]
	handler, hasHandler := m.handlers[parsed.Source]
	m.mu.RUnlock()

	if hasSecret {
		if v := m.verify(parsed.Source, raw, parsed.Headers, secret); !v.Valid {
			res.Outcome = OutcomeBadSignature
			res.Error = v.Error
			return res
		}
	}

	if !hasHandler {
		res.Outcome = OutcomeNoHandler
		res.Error = fmt.Sprintf("no handler registered for source %q", parsed.Source)
		return res
	}

	if err := invokeHandler(ctx, handler, Event{
		Source:  parsed.Source,
		Type:    parsed.Event,
		Payload: parsed.Payload,
		Headers: parsed.Headers,
	}); err != nil {
		res.Outcome = OutcomeHandlerError
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.Outcome = OutcomeOK
	return res
}

// verify selects the provider scheme for the source. Custom sources use
// the generic x-webhook-signature header with the sha256= convention.
func (m *Manager) verify(source string, raw []byte, headers map[string]string, secret string) VerifyResult {
	switch source {
	case SourceGitHub:
		return VerifyGitHubSignature(raw, headers[headerGitHubSig], secret)
	case SourceSlack:
		return VerifySlackSignature(raw, headers[headerSlackTimestamp], headers[headerSlackSig], secret)
	case SourceJira:
		return VerifyJiraSignature(raw, headers[headerJiraSig], secret)
	default:
		return VerifySignature(raw, headers[headerCustomSig], SignatureOptions{
			Algorithm: AlgorithmSHA256,
			Prefix:    "sha256=",
			Secret:    secret,
		})
	}
}

// invokeHandler isolates handler panics so one misbehaving handler
// cannot take down the receiving server.
func invokeHandler(ctx context.Context, handler Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, event)
}
