// Package telemetry wraps OpenTelemetry tracing and metrics for hrflow.
package telemetry

import (
	"context"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/sicko7947/hrflow"

var (
	providerOnce sync.Once
	providerErr  error
	provider     *sdktrace.TracerProvider
)

// Init installs a global tracer provider exporting to stdout, or to
// outputFile when it is set. The first successful call wins.
func Init(serviceName, serviceVersion, outputFile string) error {
	var w io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return err
		}
		w = f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return err
	}
	return InitWithExporter(serviceName, serviceVersion, exporter)
}

// InitWithExporter installs a global tracer provider using exporter
func InitWithExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	if exporter == nil {
		return nil
	}

	providerOnce.Do(func() {
		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				attribute.String("service.name", serviceName),
				attribute.String("service.version", serviceVersion),
			),
		)
		if err != nil {
			providerErr = err
			return
		}

		provider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(provider)
	})

	return providerErr
}

// Shutdown flushes and stops the provider installed by Init
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}

// Span is a started span
type Span struct {
	span trace.Span
}

// SetAttributes attaches string attributes to the span
func (s *Span) SetAttributes(kv ...string) *Span {
	if s == nil || len(kv) < 2 {
		return s
	}
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}
	s.span.SetAttributes(attrs...)
	return s
}

// StartSpan starts an internal span. kv are attribute key/value pairs.
func StartSpan(ctx context.Context, name string, kv ...string) (context.Context, *Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	s := &Span{span: span}
	s.SetAttributes(kv...)
	return ctx, s
}

// StartConsumerSpan starts a span for handling a message from destination
func StartConsumerSpan(ctx context.Context, destination string) (context.Context, *Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "consume "+destination,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("messaging.destination", destination)),
	)
	return ctx, &Span{span: span}
}

// EndSpan records err (if any) and ends the span
func EndSpan(s *Span, err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
