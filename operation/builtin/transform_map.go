package builtin

import (
	"context"

	"github.com/weftlabs/weft/operation"
)

// TransformMap reshapes the step's resolved input into a single object.
// Config: "assign" (required). The entire input map, already resolved
// from expressions by the executor, becomes the value of the assign
// field. Steps use it to collect values from several scopes into one
// state field.
type TransformMap struct{}

func NewTransformMap() *TransformMap { return &TransformMap{} }

func (t *TransformMap) Kind() string { return "transform.map" }

func (t *TransformMap) Execute(_ context.Context, req *operation.Request) (*operation.Result, error) {
	assign, err := configString(req.Config, "assign")
	if err != nil {
		return nil, &operation.Error{Kind: t.Kind(), Step: req.Step, Permanent: true, Err: err}
	}

	out := make(map[string]any, len(req.Input))
	for k, v := range req.Input {
		out[k] = v
	}
	return &operation.Result{Output: map[string]any{assign: out}}, nil
}
