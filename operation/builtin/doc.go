// Package builtin ships the operation kinds available out of the box:
// outbound HTTP calls, template rendering, structured log notification,
// input reshaping, queue publishing, approval gates, and delegation to
// registered components.
//
// Every builtin follows the same output convention: config names the
// state field to write under "assign", and the handler places its
// result there. Builtins with no result (notify.log) write nothing.
package builtin
