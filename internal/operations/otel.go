package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"emsinv/internal/infrastructure"
)

const (
	TracerName = "emsinv.operations"
)

// OperationTracer provides OpenTelemetry instrumentation for pipeline runs
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewOperationTracer creates a tracer recording spans on the global tracer
// provider and metrics on the given instruments. metrics may be nil.
func NewOperationTracer(metrics *infrastructure.PipelineMetrics) *OperationTracer {
	return &OperationTracer{
		tracer:  otel.Tracer(TracerName),
		metrics: metrics,
	}
}

// NewOperationTracerFromProviders creates a tracer backed by providers
func NewOperationTracerFromProviders(providers *infrastructure.OTelProviders) (*OperationTracer, error) {
	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	return &OperationTracer{
		tracer:  providers.Tracer,
		metrics: metrics,
	}, nil
}

// Metrics returns the pipeline instruments, which may be nil
func (pt *OperationTracer) Metrics() *infrastructure.PipelineMetrics {
	return pt.metrics
}

// TraceOperationExecution creates a span for an entire run
func (pt *OperationTracer) TraceOperationExecution(ctx context.Context, operationID string, stepIDs []string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "operation.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.StringSlice("operation.steps", stepIDs),
		),
	)
}

// TraceStageExecution creates a span for one step
func (pt *OperationTracer) TraceStageExecution(ctx context.Context, operationID, stepID string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "operation.step."+stepID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("step.id", stepID),
		),
	)
}

// RecordStageCompletion closes out a step span and records step metrics
func (pt *OperationTracer) RecordStageCompletion(ctx context.Context, span trace.Span, step *StepState, err error) {
	status := step.GetStatus()
	duration := step.Duration()

	span.SetAttributes(
		attribute.String("step.status", string(status)),
		attribute.Float64("step.duration_seconds", duration.Seconds()),
	)
	if rows, ok := step.Snapshot().Metadata["rows"].(int); ok {
		span.SetAttributes(attribute.Int("step.rows", rows))
		pt.metrics.RecordRows(ctx, step.ID, rows)
	}

	switch {
	case err != nil:
		infrastructure.RecordError(ctx, err, trace.WithAttributes(attribute.String("step.id", step.ID)))
	case status == StepStatusSkipped:
		span.SetStatus(codes.Ok, "step skipped")
	default:
		span.SetStatus(codes.Ok, "step completed successfully")
	}

	if status != StepStatusSkipped {
		pt.metrics.RecordStep(ctx, step.ID, duration, err)
	}
}

// RecordOperationCompletion closes out a run span and records run metrics
func (pt *OperationTracer) RecordOperationCompletion(ctx context.Context, span trace.Span, duration time.Duration, err error) {
	span.SetAttributes(attribute.Float64("operation.duration_seconds", duration.Seconds()))
	if err != nil {
		infrastructure.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "operation completed successfully")
	}
	pt.metrics.RecordRun(ctx, duration, err == nil)
}

// RecordSkipped counts analyses skipped for missing data
func (pt *OperationTracer) RecordSkipped(ctx context.Context, analysis string, n int) {
	pt.metrics.RecordSkipped(ctx, analysis, n)
}
