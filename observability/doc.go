// Package observability provides a metrics extension for the coordinator.
// The MetricsExtension implements lifecycle hooks to record system-wide
// counters for runs, registration failures, permission denials and
// location watch transitions.
//
// For per-tick tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
