// Package prometheus exposes the client's session metrics as a
// client_golang [prometheus.Collector].
//
// [NewCollector] reads the client's metrics snapshot on every scrape.
// Counters are named novels_session_*_total; latency histograms are
// novels_session_*_seconds.
//
// # What this package must NOT do
//
//   - Register with the global default registry; callers choose the
//     registry, or use [Handler] which builds a private one.
//   - Mutate client state.
package prometheus
