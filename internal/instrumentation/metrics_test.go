package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T, detailed bool) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"), detailed)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordAll(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t, false)

	m.RecordProviderOperation(ctx, GatewayAPI, "events.list", StatusSuccess, 120*time.Millisecond)
	m.RecordProviderOperation(ctx, GatewayToolCall, "events.list", StatusError, 80*time.Millisecond)
	m.RecordRetryAttempt(ctx, "events.list", OutcomeRetry, "UpstreamError")
	m.RecordRetryAttempt(ctx, "events.list", OutcomeSuccess, "")
	m.RecordRetryExhausted(ctx, "events.list", "RetryExhausted")
	m.RecordConnectionDial(ctx, GatewayAPI, StatusSuccess)
	m.RecordProseDropped(ctx, "events", 3)
	m.RecordProseDropped(ctx, "events", 0)
	m.RecordToolInvocation(ctx, "calendar_list_events", StatusSuccess, time.Second)

	got := collect(t, reader)
	assert.EqualValues(t, 2, sumOf(t, got["calendar_provider_operations_total"]))
	assert.EqualValues(t, 2, sumOf(t, got["calendar_retry_attempts_total"]))
	assert.EqualValues(t, 1, sumOf(t, got["calendar_retry_exhausted_total"]))
	assert.EqualValues(t, 1, sumOf(t, got["calendar_connection_dials_total"]))
	assert.EqualValues(t, 3, sumOf(t, got["prose_records_dropped_total"]))
	assert.EqualValues(t, 1, sumOf(t, got["mcp_tool_invocations_total"]))
	assert.Contains(t, got, "calendar_provider_operation_duration_seconds")
	assert.Contains(t, got, "mcp_tool_duration_seconds")
}

func TestMetrics_AccountLabelOnlyWhenDetailed(t *testing.T) {
	ctx := context.Background()

	for _, detailed := range []bool{false, true} {
		m, reader := newTestMetrics(t, detailed)
		m.RecordToolInvocationWithAccount(ctx, "calendar_list_events", StatusSuccess, "work", time.Second)

		sum := collect(t, reader)["mcp_tool_invocations_total"].Data.(metricdata.Sum[int64])
		require.Len(t, sum.DataPoints, 1)
		_, has := sum.DataPoints[0].Attributes.Value(attrAccount)
		assert.Equal(t, detailed, has, "detailed=%v", detailed)
	}
}

func TestMetrics_NilAndZeroAreNoOps(t *testing.T) {
	ctx := context.Background()
	var nilMetrics *Metrics
	zero := &Metrics{}

	for _, m := range []*Metrics{nilMetrics, zero} {
		assert.NotPanics(t, func() {
			m.RecordProviderOperation(ctx, GatewayAPI, "x", StatusSuccess, time.Second)
			m.RecordRetryAttempt(ctx, "x", OutcomeRetry, "")
			m.RecordRetryExhausted(ctx, "x", "RetryExhausted")
			m.RecordConnectionDial(ctx, GatewayAPI, StatusError)
			m.RecordProseDropped(ctx, "events", 1)
			m.RecordToolInvocation(ctx, "x", StatusSuccess, time.Second)
		})
	}
}
