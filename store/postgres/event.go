package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/event"
	"github.com/weftlabs/weft/id"
)

// subscribePollInterval is how often SubscribeEvent re-checks for a
// pending event while blocking.
const subscribePollInterval = 100 * time.Millisecond

// PublishEvent persists a new event and makes it available for
// subscribers.
func (s *Store) PublishEvent(ctx context.Context, evt *event.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO weft_events (id, name, payload, acked, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		evt.ID.String(), evt.Name, evt.Payload, evt.Acked, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("weft/postgres: publish event: %w", err)
	}
	return nil
}

// PeekEvent returns the oldest unacked event for the name without
// blocking, or nil if none is pending.
func (s *Store) PeekEvent(ctx context.Context, name string) (*event.Event, error) {
	var (
		eID       string
		payload   []byte
		createdAt time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, payload, created_at
		FROM weft_events
		WHERE name = $1 AND NOT acked
		ORDER BY created_at ASC
		LIMIT 1`,
		name,
	).Scan(&eID, &payload, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("weft/postgres: peek event: %w", err)
	}

	parsed, err := id.ParseEventID(eID)
	if err != nil {
		return nil, fmt.Errorf("weft/postgres: parse event id: %w", err)
	}
	return &event.Event{
		ID:        parsed,
		Name:      name,
		Payload:   payload,
		CreatedAt: createdAt,
	}, nil
}

// SubscribeEvent blocks until an unacked event for the name is
// available or the timeout expires. Returns nil on timeout.
func (s *Store) SubscribeEvent(ctx context.Context, name string, timeout time.Duration) (*event.Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		evt, err := s.PeekEvent(ctx, name)
		if err != nil {
			return nil, err
		}
		if evt != nil {
			return evt, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(subscribePollInterval):
		}
	}
}

// AckEvent acknowledges an event, marking it as consumed.
func (s *Store) AckEvent(ctx context.Context, eventID id.EventID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE weft_events SET acked = TRUE WHERE id = $1`,
		eventID.String(),
	)
	if err != nil {
		return fmt.Errorf("weft/postgres: ack event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return weft.ErrEventNotFound
	}
	return nil
}
