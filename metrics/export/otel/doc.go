// Package otel mirrors engine metrics into OpenTelemetry instruments.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and
// one Int64ObservableGauge per latency bucket. A single callback reads
// [sessionguard.Engine.MetricsSnapshot] each collection cycle. The caller
// owns the MeterProvider.
package otel
