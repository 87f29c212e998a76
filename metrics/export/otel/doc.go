// Package otel exposes engine metrics as OpenTelemetry observable
// instruments.
//
// Counters keep the names the Prometheus exporter uses. Each latency
// histogram becomes a "_bucket" gauge with one data point per "le" bound and
// a "_count" gauge, all read from one snapshot per collection. Callers own
// the MeterProvider; [WithAttributes] tags every data point.
package otel
