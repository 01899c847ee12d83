// Package tracing wires Jaeger spans around batch and per-file encode work.
// Without Init the global tracer is a no-op, so the engine can always create
// spans; the CLI simply never initializes a reporter.
package tracing

import (
	"context"
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	"github.com/uber/jaeger-client-go/config"
)

// Span re-exports the opentracing span so engine code does not import the
// tracing backend directly.
type Span = opentracing.Span

// Init sets up the global Jaeger tracer. The returned closer flushes
// buffered spans and must be closed on shutdown.
func Init(serviceName, collectorEndpoint string) (io.Closer, error) {
	cfg := &config.Configuration{
		ServiceName: serviceName,
		Sampler: &config.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &config.ReporterConfig{
			LogSpans:          false,
			CollectorEndpoint: collectorEndpoint,
		},
	}

	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return closer, nil
}

// StartSpan opens a child span of whatever span ctx carries.
func StartSpan(ctx context.Context, operation string) (Span, context.Context) {
	return opentracing.StartSpanFromContext(ctx, operation)
}

// LogError marks a span failed and records the error message.
func LogError(span Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.SetTag("error", true)
	span.LogKV("error", err.Error())
}
