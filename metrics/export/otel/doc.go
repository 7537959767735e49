// Package otel publishes engine metrics through OpenTelemetry observable
// instruments.
//
// Engine counters are grouped by operation: one counter per family
// (rolegate.sign_in, rolegate.session.revalidations, rolegate.session.tokens,
// rolegate.admin.operations, ...) with an attribute naming the outcome. The
// revalidation status attribute uses the session status wire values.
// Latency buckets are a single gauge keyed by "le". One callback reads
// [rolegate.Engine.MetricsSnapshot] per collection. Callers own the Meter.
package otel
