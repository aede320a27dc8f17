// Package otel provides OpenTelemetry metric exporter bindings for authflow counters
// and histograms.
//
// [NewOTelExporter] registers Int64ObservableCounter instruments for each authflow
// metric and Int64ObservableGauge per histogram bucket. A single callback reads
// [authflow.Flow.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate flow state.
package otel
