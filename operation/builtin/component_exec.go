package builtin

import (
	"context"
	"fmt"

	"github.com/weftlabs/weft/operation"
)

// Component is a named, reusable unit of business logic registered with
// the engine by the embedding application.
type Component interface {
	Run(ctx context.Context, input map[string]any) (map[string]any, error)
}

// ComponentFunc adapts a function to Component.
type ComponentFunc func(ctx context.Context, input map[string]any) (map[string]any, error)

func (f ComponentFunc) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	return f(ctx, input)
}

// Source resolves component names to implementations.
type Source interface {
	Component(name string) (Component, bool)
}

// ComponentExec delegates a step to a registered component. Config:
// "component" (required), "assign" (required). The component receives
// the step's resolved input and its result map is written to the assign
// field. An unknown component name is a permanent failure.
type ComponentExec struct {
	source Source
}

func NewComponentExec(source Source) *ComponentExec {
	return &ComponentExec{source: source}
}

func (c *ComponentExec) Kind() string { return "component.exec" }

func (c *ComponentExec) Execute(ctx context.Context, req *operation.Request) (*operation.Result, error) {
	name, err := configString(req.Config, "component")
	if err != nil {
		return nil, &operation.Error{Kind: c.Kind(), Step: req.Step, Permanent: true, Err: err}
	}
	assign, err := configString(req.Config, "assign")
	if err != nil {
		return nil, &operation.Error{Kind: c.Kind(), Step: req.Step, Permanent: true, Err: err}
	}

	comp, ok := c.source.Component(name)
	if !ok {
		return nil, &operation.Error{
			Kind: c.Kind(), Step: req.Step, Permanent: true,
			Err: fmt.Errorf("component %q is not registered", name),
		}
	}

	out, err := comp.Run(ctx, req.Input)
	if err != nil {
		return nil, &operation.Error{Kind: c.Kind(), Step: req.Step, Err: err}
	}
	return &operation.Result{Output: map[string]any{assign: out}}, nil
}
