// Package record defines the durable execution record: the persisted
// execution row plus per-step checkpoints. After every committed step
// the executor saves a checkpoint carrying the step's output and the
// cursor of succeeded steps, so a crashed or suspended execution can
// resume without re-invoking finished work.
package record
