// Package prometheus exposes storeauth metrics through client_golang.
//
// [NewExporter] wraps a [storeauth.Store] in a collector backed by its own
// registry; mount [Exporter.Handler] on a /metrics route, or register the
// [Exporter] into an existing registry. Counters are named storeauth_*_total and the profile
// resolution histogram is storeauth_profile_resolve_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into a global Prometheus registry.
//   - Mutate store state.
package prometheus
