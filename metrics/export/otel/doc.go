// Package otel publishes storeauth metrics through an OpenTelemetry meter.
//
// Counters become Int64ObservableCounter instruments. A histogram becomes a
// <name>_bucket gauge observed once per bound with an "le" attribute plus a
// <name>_count gauge. One callback reads a store snapshot per collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider.
//   - Mutate store state.
package otel
