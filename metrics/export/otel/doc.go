// Package otel publishes dashAuth counters and latency histograms as
// OpenTelemetry observable instruments.
//
// Callers own the MeterProvider and pass a Meter to [New]. Histograms are
// exported as one cumulative gauge per bucket plus a count gauge.
package otel
