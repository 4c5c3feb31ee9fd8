// Package otel exposes the client's session metrics through OpenTelemetry.
//
// [NewExporter] registers one Int64ObservableCounter per session counter and
// one Int64ObservableGauge per cumulative histogram bucket. A single callback
// reads the client's metrics snapshot on every collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate client state.
package otel
