package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/event"
	"github.com/weftlabs/weft/id"
)

// subscribePollInterval is how often SubscribeEvent re-checks for a
// pending event while blocking.
const subscribePollInterval = 50 * time.Millisecond

// PublishEvent persists a new event and makes it available for
// subscribers.
func (s *Store) PublishEvent(ctx context.Context, evt *event.Event) error {
	eID := evt.ID.String()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, eventKey(eID),
		"id", eID,
		"name", evt.Name,
		"payload", string(evt.Payload),
		"acked", "0",
		"created_at", evt.CreatedAt.Format(time.RFC3339Nano),
	)
	pipe.ZAdd(ctx, eventPendingKey(evt.Name), goredis.Z{
		Score:  float64(evt.CreatedAt.UnixNano()),
		Member: eID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("weft/redis: publish event: %w", err)
	}
	return nil
}

// PeekEvent returns the oldest unacked event for the name without
// blocking, or nil if none is pending.
func (s *Store) PeekEvent(ctx context.Context, name string) (*event.Event, error) {
	ids, err := s.client.ZRange(ctx, eventPendingKey(name), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("weft/redis: peek event: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	vals, err := s.client.HGetAll(ctx, eventKey(ids[0])).Result()
	if err != nil {
		return nil, fmt.Errorf("weft/redis: peek event hgetall: %w", err)
	}
	if len(vals) == 0 {
		// Orphaned index entry; drop it and report nothing pending.
		s.client.ZRem(ctx, eventPendingKey(name), ids[0])
		return nil, nil
	}
	return mapToEvent(vals)
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

// AckEvent acknowledges an event, removing it from its pending set.
func (s *Store) AckEvent(ctx context.Context, eventID id.EventID) error {
	eID := eventID.String()
	vals, err := s.client.HGetAll(ctx, eventKey(eID)).Result()
	if err != nil {
		return fmt.Errorf("weft/redis: ack event: %w", err)
	}
	if len(vals) == 0 {
		return weft.ErrEventNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, eventKey(eID), "acked", "1")
	pipe.ZRem(ctx, eventPendingKey(vals["name"]), eID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("weft/redis: ack event: %w", err)
	}
	return nil
}

func mapToEvent(m map[string]string) (*event.Event, error) {
	evtID, err := id.ParseEventID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("weft/redis: parse event id: %w", err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])

	return &event.Event{
		ID:        evtID,
		Name:      m["name"],
		Payload:   []byte(m["payload"]),
		Acked:     m["acked"] == "1",
		CreatedAt: createdAt,
	}, nil
}
