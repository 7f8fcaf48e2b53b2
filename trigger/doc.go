// Package trigger connects external stimuli to workflow executions.
//
// A Dispatcher resolves a trigger firing (HTTP request, verified
// webhook, schedule tick, queue message, or manual invocation) to a
// workflow whose definition declares a binding for that trigger kind,
// merges any static binding input, and starts the execution.
//
// The schedule Runner fires cron-bound workflows on a tick loop, and
// the queue Consumer drains Redis list queues with rate limiting and a
// concurrency cap. Both take a DispatchFunc so the engine controls the
// wiring.
package trigger
