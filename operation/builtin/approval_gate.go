package builtin

import (
	"context"
	"encoding/json"

	"github.com/weftlabs/weft/event"
	"github.com/weftlabs/weft/operation"
)

// ApprovalGate suspends the execution until an approval event arrives.
// Config: "assign" (required). On each invocation the gate peeks the
// execution's approval event; if none exists it returns ErrAwaitInput
// and the executor checkpoints a suspended record. When the approval is
// published and the execution resumed, the gate consumes the event and
// writes its decoded payload to the assign field.
type ApprovalGate struct {
	bus *event.Bus
}

func NewApprovalGate(bus *event.Bus) *ApprovalGate {
	return &ApprovalGate{bus: bus}
}

func (a *ApprovalGate) Kind() string { return "approval.gate" }

func (a *ApprovalGate) Execute(ctx context.Context, req *operation.Request) (*operation.Result, error) {
	assign, err := configString(req.Config, "assign")
	if err != nil {
		return nil, &operation.Error{Kind: a.Kind(), Step: req.Step, Permanent: true, Err: err}
	}

	evt, err := a.bus.Peek(ctx, event.ApprovalName(req.Execution, req.Step))
	if err != nil {
		return nil, &operation.Error{Kind: a.Kind(), Step: req.Step, Err: err}
	}
	if evt == nil {
		return nil, operation.ErrAwaitInput
	}

	var decision any
	if len(evt.Payload) > 0 {
		if err := json.Unmarshal(evt.Payload, &decision); err != nil {
			decision = string(evt.Payload)
		}
	}
	if err := a.bus.Ack(ctx, evt.ID); err != nil {
		return nil, &operation.Error{Kind: a.Kind(), Step: req.Step, Err: err}
	}
	return &operation.Result{Output: map[string]any{assign: decision}}, nil
}
