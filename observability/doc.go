// Package observability provides a metrics extension that records
// execution and step lifecycle counts and durations via OpenTelemetry.
// Register it on the engine's extension registry to track start,
// completion, failure, suspension, and schedule-fire rates.
package observability
