// internal/common/observability/metrics_test.go
package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"policy-extraction-workers/internal/common/logger"
)

func TestStartSpan_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	o := &Observability{tracerProvider: tp, tracer: tp.Tracer("test")}

	ctx, parent := o.StartSpan(context.Background(), "map-policy-fields", attribute.String("jobKey", "42"))
	_, child := o.StartSpan(ctx, "engine.process")
	EndSpan(child, errors.New("boom"))
	EndSpan(parent, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "engine.process", spans[0].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}

func TestObservability_RecordAndShutdown(t *testing.T) {
	o := New("observability-test", logger.NewTestLogger(t))

	ctx := context.Background()
	o.RecordJobProcessed(ctx, "map-policy-fields", "completed")
	o.RecordJobDuration(ctx, "map-policy-fields", 15*time.Millisecond, "completed")
	o.RecordFieldsResolved(ctx, "UYU", 12)

	assert.NoError(t, o.Shutdown())
}

func TestObservability_ZeroValueIsSafe(t *testing.T) {
	var o Observability
	ctx := context.Background()

	o.RecordJobProcessed(ctx, "t", "completed")
	o.RecordJobDuration(ctx, "t", time.Second, "failed")
	o.RecordFieldsResolved(ctx, "USD", 3)

	_, span := o.StartSpan(ctx, "noop")
	EndSpan(span, nil)
	assert.NoError(t, o.Shutdown())
}

func TestRecordFieldsResolved_LabelsByCurrency(t *testing.T) {
	ctx := context.Background()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	defer provider.Shutdown(ctx)

	counter, err := provider.Meter("test").Int64Counter("policy.fields.resolved")
	require.NoError(t, err)
	o := &Observability{fieldsResolved: counter}

	o.RecordFieldsResolved(ctx, "USD", 12)
	o.RecordFieldsResolved(ctx, "USD", 3)
	o.RecordFieldsResolved(ctx, "UYU", 0)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)

	dp := sum.DataPoints[0]
	assert.Equal(t, int64(15), dp.Value)
	assert.Equal(t, 1, dp.Attributes.Len())
	currency, ok := dp.Attributes.Value("currency_code")
	require.True(t, ok)
	assert.Equal(t, "USD", currency.AsString())
}
