// Package metric provides Prometheus metrics for amrsnap.
//
// Metrics live on a private registry (never the global default) and include:
//
//   - catalog sizes per kind and header cache hit/miss counts
//   - shards read, coverage gaps and boxes copied per kind
//   - reconstruction latency histograms and error counters by code
//
// Long-running commands expose them at /metrics via Handler.
package metric
