// Package observability wires OpenTelemetry tracing for the Junction
// server. Metrics live in pkg/metrics and logging in pkg/logger; this
// package only owns the tracer provider and trace propagation.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TracingConfig controls tracer provider setup.
type TracingConfig struct {
	ServiceName string
	// SamplingRate in [0, 1]; 0 disables sampling, 1 records every span.
	SamplingRate float64
	// Stdout emits spans to stdout for local debugging. When false the
	// provider still records spans for propagation but exports nothing.
	Stdout bool
}

// InitTracing installs the global tracer provider and the W3C trace
// context propagator. The returned shutdown func flushes pending spans
// and must be called during server teardown.
func InitTracing(cfg TracingConfig) (func(context.Context) error, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
	}

	if cfg.Stdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Shutdown, nil
}

// TracingMiddleware extracts inbound trace context and opens a span per
// request.
func TracingMiddleware(serviceName string) func(http.Handler) http.Handler {
	tracer := otel.Tracer("junction/http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path))
			defer span.End()

			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("service.name", serviceName),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
