package builtin

import (
	"context"
	"strings"
	"text/template"

	"github.com/weftlabs/weft/operation"
)

// RenderTemplate renders a Go text/template against the step's input.
// Config: "template" (required), "assign" (required). The rendered
// string is written to the assign field. Template errors are permanent;
// the same template and input cannot render differently on retry.
type RenderTemplate struct{}

func NewRenderTemplate() *RenderTemplate { return &RenderTemplate{} }

func (r *RenderTemplate) Kind() string { return "render.template" }

func (r *RenderTemplate) Execute(_ context.Context, req *operation.Request) (*operation.Result, error) {
	text, err := configString(req.Config, "template")
	if err != nil {
		return nil, &operation.Error{Kind: r.Kind(), Step: req.Step, Permanent: true, Err: err}
	}
	assign, err := configString(req.Config, "assign")
	if err != nil {
		return nil, &operation.Error{Kind: r.Kind(), Step: req.Step, Permanent: true, Err: err}
	}

	tmpl, err := template.New(req.Step).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, &operation.Error{Kind: r.Kind(), Step: req.Step, Permanent: true, Err: err}
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, req.Input); err != nil {
		return nil, &operation.Error{Kind: r.Kind(), Step: req.Step, Permanent: true, Err: err}
	}
	return &operation.Result{Output: map[string]any{assign: buf.String()}}, nil
}
