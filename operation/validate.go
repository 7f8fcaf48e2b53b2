package operation

import (
	"github.com/weftlabs/weft/definition"
)

// ValidateOutput checks a handler's output against the step's declared
// writes. Every declared field must be present with a schema-conforming
// value, and no undeclared field may appear. Returns a *SchemaError on
// the first mismatch.
func ValidateOutput(step string, set []string, schema definition.Schema, output map[string]any) error {
	declared := make(map[string]bool, len(set))
	for _, f := range set {
		declared[f] = true
	}

	for field := range output {
		if !declared[field] {
			return &SchemaError{
				Step:   step,
				Field:  field,
				Reason: "not declared as a write",
			}
		}
	}

	for _, field := range set {
		v, ok := output[field]
		if !ok {
			return &SchemaError{
				Step:   step,
				Field:  field,
				Reason: "declared write missing from output",
			}
		}
		if err := schema.Check(field, v); err != nil {
			return &SchemaError{
				Step:   step,
				Field:  field,
				Reason: err.Error(),
			}
		}
	}
	return nil
}
