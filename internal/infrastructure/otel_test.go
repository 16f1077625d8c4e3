package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"emsinv/internal/config"
)

func testTelemetryConfig() config.TelemetryConfig {
	return config.TelemetryConfig{
		ServiceName:   "ems-inventory-test",
		EnableTracing: true,
		EnableMetrics: true,
	}
}

func TestOTelInitialization(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	providers, err := InitializeOTel(testTelemetryConfig(), logger)
	require.NoError(t, err)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelDisabled(t *testing.T) {
	providers, err := InitializeOTel(config.TelemetryConfig{ServiceName: "off"}, nil)
	require.NoError(t, err)

	assert.Nil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Meter)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestTraceCorrelation(t *testing.T) {
	providers, err := InitializeOTel(testTelemetryConfig(), nil)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := providers.Tracer.Start(context.Background(), "preprocess")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.NotEmpty(t, traceID)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)
	assert.Empty(t, TraceIDFromContext(context.Background()))

	RecordError(ctx, assert.AnError)
}

func TestPipelineMetricsExported(t *testing.T) {
	providers, err := InitializeOTel(testTelemetryConfig(), nil)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreatePipelineMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordRun(ctx, 2*time.Second, true)
	metrics.RecordStep(ctx, "preprocess", 150*time.Millisecond, nil)
	metrics.RecordStep(ctx, "ingest", 10*time.Millisecond, assert.AnError)
	metrics.RecordRows(ctx, "preprocess", 120)
	metrics.RecordSkipped(ctx, "restock", 2)
	metrics.RecordHTTPRequest(ctx, http.MethodGet, "/api/v1/items", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "pipeline_runs_total")
	assert.Contains(t, body, "pipeline_step_errors_total")
	assert.Contains(t, body, "pipeline_rows_processed_total")
	assert.Contains(t, body, "analysis_skipped_total")
}

func TestNilPipelineMetrics(t *testing.T) {
	var metrics *PipelineMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		metrics.RecordRun(ctx, time.Second, false)
		metrics.RecordStep(ctx, "analyze", time.Second, assert.AnError)
		metrics.RecordRows(ctx, "analyze", 1)
		metrics.RecordSkipped(ctx, "critical_stock", 1)
		metrics.RecordHTTPRequest(ctx, "GET", "/", 200, time.Second)
	})
}

func TestCreatePipelineMetricsNoop(t *testing.T) {
	metrics, err := CreatePipelineMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	assert.NotNil(t, metrics.StepDuration)
}
