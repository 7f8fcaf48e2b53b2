package record

import (
	"time"

	"github.com/weftlabs/weft/id"
)

// Checkpoint stores the serialized state of a committed step, enabling
// crash recovery by resuming from the last checkpoint instead of
// replaying the whole graph.
type Checkpoint struct {
	ID          id.CheckpointID `json:"id" msgpack:"id"`
	ExecutionID id.ExecutionID  `json:"execution_id" msgpack:"execution_id"`
	Step        string          `json:"step" msgpack:"step"`
	Data        []byte          `json:"data" msgpack:"data"`
	CreatedAt   time.Time       `json:"created_at" msgpack:"created_at"`
}
