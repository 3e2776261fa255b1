// Package prometheus renders goPortal engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps an engine; its Handler is mounted on /metrics
// by package web. Counters are named portal_*_total and latency histograms
// portal_*_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into a global registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
