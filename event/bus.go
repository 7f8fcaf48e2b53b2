// Package event provides publish/subscribe coordination between trigger
// sources and suspended executions, backed by a pluggable event store.
package event

import (
	"context"
	"fmt"
	"time"

	"github.com/weftlabs/weft/id"
)

// ApprovalName returns the event name a suspended step waits on. The
// approval gate peeks this name; resuming publishes to it.
func ApprovalName(execution, step string) string {
	return fmt.Sprintf("approval:%s:%s", execution, step)
}

// Bus provides high-level publish/subscribe operations over an event
// Store. Suspended executions wait on the Bus; trigger sources and the
// API publish through it to resume them.
type Bus struct {
	store Store
}

// NewBus creates an event bus backed by the given store.
func NewBus(store Store) *Bus {
	return &Bus{store: store}
}

// Publish creates and persists a new event, making it available for subscribers.
func (b *Bus) Publish(ctx context.Context, name string, payload []byte) (*Event, error) {
	evt := &Event{
		ID:        id.NewEventID(),
		Name:      name,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := b.store.PublishEvent(ctx, evt); err != nil {
		return nil, err
	}
	return evt, nil
}

// Peek returns the oldest unacked event for the name without blocking.
// Returns nil if none exists.
func (b *Bus) Peek(ctx context.Context, name string) (*Event, error) {
	return b.store.PeekEvent(ctx, name)
}

// Subscribe waits for an unacked event matching the given name.
// Blocks until available or timeout. Returns nil on timeout.
func (b *Bus) Subscribe(ctx context.Context, name string, timeout time.Duration) (*Event, error) {
	return b.store.SubscribeEvent(ctx, name, timeout)
}

// Ack acknowledges an event, marking it as consumed.
func (b *Bus) Ack(ctx context.Context, eventID id.EventID) error {
	return b.store.AckEvent(ctx, eventID)
}

// Store returns the underlying event store.
func (b *Bus) Store() Store { return b.store }
