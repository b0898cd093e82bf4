package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrOperation = "operation"
	attrGateway   = "gateway"
	attrStatus    = "status"
	attrKind      = "error_kind"
	attrOutcome   = "outcome"
	attrTool      = "tool"
	attrAccount   = "account"
	attrRecord    = "record_kind"
)

// Metrics provides methods for recording observability metrics.
// A nil *Metrics and a zero Metrics are both valid no-op recorders.
type Metrics struct {
	// Provider metrics
	providerOperationsTotal   metric.Int64Counter
	providerOperationDuration metric.Float64Histogram

	// Retry metrics
	retryAttemptsTotal  metric.Int64Counter
	retryExhaustedTotal metric.Int64Counter

	// Connection metrics
	connectionDialsTotal metric.Int64Counter

	// Prose recovery metrics
	proseDroppedTotal metric.Int64Counter

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.providerOperationsTotal, err = meter.Int64Counter(
		"calendar_provider_operations_total",
		metric.WithDescription("Total number of calendar provider calls"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_provider_operations_total counter: %w", err)
	}

	m.providerOperationDuration, err = meter.Float64Histogram(
		"calendar_provider_operation_duration_seconds",
		metric.WithDescription("Calendar provider call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_provider_operation_duration_seconds histogram: %w", err)
	}

	m.retryAttemptsTotal, err = meter.Int64Counter(
		"calendar_retry_attempts_total",
		metric.WithDescription("Total number of attempts made by the retry executor"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_retry_attempts_total counter: %w", err)
	}

	m.retryExhaustedTotal, err = meter.Int64Counter(
		"calendar_retry_exhausted_total",
		metric.WithDescription("Total number of calls that failed after all attempts"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_retry_exhausted_total counter: %w", err)
	}

	m.connectionDialsTotal, err = meter.Int64Counter(
		"calendar_connection_dials_total",
		metric.WithDescription("Total number of provider connection dials"),
		metric.WithUnit("{dial}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_connection_dials_total counter: %w", err)
	}

	m.proseDroppedTotal, err = meter.Int64Counter(
		"prose_records_dropped_total",
		metric.WithDescription("Records dropped while recovering structure from prose responses"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prose_records_dropped_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordProviderOperation records one provider call.
//
// Parameters:
//   - gateway: "api" or "toolcall"
//   - operation: logical operation (events.list, calendars.delete, ...)
//   - status: "success" or "error"
//   - duration: time taken by the call
func (m *Metrics) RecordProviderOperation(ctx context.Context, gateway, operation, status string, duration time.Duration) {
	if m == nil || m.providerOperationsTotal == nil || m.providerOperationDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrGateway, gateway),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)

	m.providerOperationsTotal.Add(ctx, 1, attrs)
	m.providerOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRetryAttempt records a single attempt. outcome is one of the
// Outcome* constants; kind is the error kind for failed attempts.
func (m *Metrics) RecordRetryAttempt(ctx context.Context, operation, outcome, kind string) {
	if m == nil || m.retryAttemptsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrOutcome, outcome),
	}
	if kind != "" {
		attrs = append(attrs, attribute.String(attrKind, kind))
	}

	m.retryAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRetryExhausted records a call that ran out of attempts.
func (m *Metrics) RecordRetryExhausted(ctx context.Context, operation, kind string) {
	if m == nil || m.retryExhaustedTotal == nil {
		return
	}

	m.retryExhaustedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrKind, kind),
	))
}

// RecordConnectionDial records a provider connection dial.
func (m *Metrics) RecordConnectionDial(ctx context.Context, gateway, status string) {
	if m == nil || m.connectionDialsTotal == nil {
		return
	}

	m.connectionDialsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrGateway, gateway),
		attribute.String(attrStatus, status),
	))
}

// RecordProseDropped records records discarded by the prose parser.
func (m *Metrics) RecordProseDropped(ctx context.Context, recordKind string, count int) {
	if m == nil || m.proseDroppedTotal == nil || count <= 0 {
		return
	}

	m.proseDroppedTotal.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(attrRecord, recordKind),
	))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	m.RecordToolInvocationWithAccount(ctx, toolName, status, "", duration)
}

// RecordToolInvocationWithAccount records an MCP tool invocation with account info.
// The account label is only attached when detailedLabels is enabled.
func (m *Metrics) RecordToolInvocationWithAccount(ctx context.Context, toolName, status, account string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrAccount, account))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
