package builtin

import (
	"context"
	"encoding/json"

	"github.com/weftlabs/weft/operation"
)

// Publisher pushes a payload onto a named queue. The trigger package's
// Redis source satisfies this; queue.publish steps in one workflow can
// feed queue-triggered workflows downstream.
type Publisher interface {
	Enqueue(ctx context.Context, queue string, payload []byte) error
}

// QueuePublish publishes the step's input as a JSON message. Config:
// "queue" (required), optional "assign" to record the published payload
// size. Publish failures are retryable.
type QueuePublish struct {
	pub Publisher
}

func NewQueuePublish(pub Publisher) *QueuePublish {
	return &QueuePublish{pub: pub}
}

func (q *QueuePublish) Kind() string { return "queue.publish" }

func (q *QueuePublish) Execute(ctx context.Context, req *operation.Request) (*operation.Result, error) {
	queue, err := configString(req.Config, "queue")
	if err != nil {
		return nil, &operation.Error{Kind: q.Kind(), Step: req.Step, Permanent: true, Err: err}
	}

	payload, err := json.Marshal(req.Input)
	if err != nil {
		return nil, &operation.Error{Kind: q.Kind(), Step: req.Step, Permanent: true, Err: err}
	}
	if err := q.pub.Enqueue(ctx, queue, payload); err != nil {
		return nil, &operation.Error{Kind: q.Kind(), Step: req.Step, Err: err}
	}

	out := map[string]any{}
	if assign := optString(req.Config, "assign", ""); assign != "" {
		out[assign] = float64(len(payload))
	}
	return &operation.Result{Output: out}, nil
}
