// Package audit bridges engine lifecycle hooks to an audit trail.
//
// The Extension turns execution, step, and schedule events into
// structured audit records and hands them to a pluggable [Recorder].
// The default recorder writes each record as a structured slog entry,
// which suits edge deployments that ship logs rather than run a
// dedicated audit store. Callers with an audit backend supply a
// [RecorderFunc] that bridges to it.
//
// Use [WithActions] to restrict which lifecycle events are recorded.
package audit
