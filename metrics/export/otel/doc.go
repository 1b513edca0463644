// Package otel bridges engine metrics into OpenTelemetry instruments.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and
// Int64ObservableGauges per histogram bucket; a single callback reads
// [authcore.Engine.MetricsSnapshot] on each collection cycle. The caller
// owns the MeterProvider and supplies the Meter.
package otel
