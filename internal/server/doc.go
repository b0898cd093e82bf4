// Package server provides the MCP server context and the auxiliary HTTP
// endpoints of calbridge.
//
// # Key Components
//
// ServerContext carries the calendar engine, the telemetry provider and
// the logger to every tool handler, and runs the registered shutdown hooks
// (provider disconnect, telemetry flush) exactly once.
//
// HealthChecker serves the Kubernetes probes:
//   - /healthz: the process is alive
//   - /readyz: the server is ready, not shutting down, and the provider
//     connection is established
//   - /healthz/detailed: uptime, gateway and provider state
//
// MetricsServer exposes the Prometheus registry on a dedicated address so
// operational metrics stay off the MCP listener.
package server
