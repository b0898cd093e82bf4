// Package instrumentation provides OpenTelemetry metrics and tracing for
// calbridge.
//
// # Metrics
//
// Provider:
//   - calendar_provider_operations_total: provider calls by gateway, operation, status
//   - calendar_provider_operation_duration_seconds: provider call durations
//
// Resilience:
//   - calendar_retry_attempts_total: attempts by operation and outcome
//   - calendar_retry_exhausted_total: calls that failed after all attempts
//   - calendar_connection_dials_total: provider connection dials by status
//   - prose_records_dropped_total: records discarded by the prose parser
//
// MCP tools:
//   - mcp_tool_invocations_total: tool invocations by tool name and status
//   - mcp_tool_duration_seconds: tool execution durations
//
// # Tracing
//
// Spans are created per tool invocation (tool.<name>), per engine
// operation (engine.<operation>) and per provider call
// (provider.<operation>). Retry attempts are recorded as span events.
//
// # Configuration
//
// Configured from the environment:
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_SERVICE_NAME (default: calbridge)
//   - METRICS_DETAILED_LABELS (default: false)
package instrumentation
