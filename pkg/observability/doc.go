// Package observability provides structured logging, Prometheus metrics,
// health endpoints, OpenTelemetry tracing setup and graceful shutdown
// helpers shared by all quizdeck services.
package observability
