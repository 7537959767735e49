// Package prometheus exposes engine metrics as a client_golang Collector.
//
// [NewCollector] reads [rolegate.Engine.MetricsSnapshot] on every scrape and
// emits const counters named rolegate_*_total plus the
// rolegate_revalidate_latency_seconds histogram. Callers register the
// collector on a registry of their choosing.
package prometheus
