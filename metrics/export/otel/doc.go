// Package otel binds engine counters and histograms to OpenTelemetry
// observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter and a set
// of gauges per histogram (cumulative buckets, count, sum). A single callback
// reads Engine.MetricsSnapshot on each collection. The caller owns the
// MeterProvider.
package otel
