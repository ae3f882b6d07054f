// Package otelhelper provides distributed tracing for step execution.
package otelhelper

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	WorkflowIDKey   = "formflow.workflow.id"
	ExecutionIDKey  = "formflow.execution.id"
	SubmissionIDKey = "formflow.submission.id"
	NodeIDKey       = "formflow.node.id"
	NodeTypeKey     = "formflow.node.type"
	StepKey         = "formflow.step"
	WorkerIDKey     = "formflow.worker.id"
)

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

// NewTracer exports spans over OTLP/HTTP when OTEL_EXPORTER_OTLP_ENDPOINT is set.
// Without it the global no-op provider is used and nothing leaves the process.
//
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, serviceName string) (trace.Tracer, ShutdownFunc, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		return otel.Tracer(serviceName), func(context.Context) error { return nil }, nil
	}

	provider, err := newTracerProvider(ctx, serviceName)
	if err != nil {
		return nil, nil, err
	}

	return provider.Tracer(serviceName), provider.Shutdown, nil
}

// nolint:ireturn,spancheck // Returning interface is intentional for OpenTelemetry tracing
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StepAttributes describes one scheduled step.
func StepAttributes(executionID, workflowID, nodeID string, step int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ExecutionIDKey, executionID),
		attribute.String(WorkflowIDKey, workflowID),
		attribute.String(NodeIDKey, nodeID),
		attribute.Int(StepKey, step),
	}
}

func newTracerProvider(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp, nil
}
