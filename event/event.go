package event

import (
	"time"

	"github.com/weftlabs/weft/id"
)

// Event represents a named external signal delivered to the engine.
// Suspended executions wait for events (approvals, callbacks); trigger
// sources publish them to resume those executions.
type Event struct {
	ID        id.EventID `json:"id" msgpack:"id"`
	Name      string     `json:"name" msgpack:"name"`
	Payload   []byte     `json:"payload,omitempty" msgpack:"payload"`
	Acked     bool       `json:"acked" msgpack:"acked"`
	CreatedAt time.Time  `json:"created_at" msgpack:"created_at"`
}
