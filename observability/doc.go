// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for delivery calls.
package observability
