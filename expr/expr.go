// Package expr parses and resolves ${scope.field} references used in
// workflow definitions. Expressions are parsed once at definition load
// time and resolved entirely at step-input-resolution time against a
// frozen snapshot, never lazily inside operation implementations.
package expr

import (
	"fmt"
	"strings"
)

// Ref is a single parsed ${scope.field.path...} reference. Scope is
// "input" (trigger payload), "state" (a declared state field), or the
// name of a prior step (whose output field is addressed).
type Ref struct {
	Scope string
	Field string
	Path  []string
}

// String returns the canonical ${scope.field.path} form of the reference.
func (r Ref) String() string {
	parts := append([]string{r.Scope, r.Field}, r.Path...)
	return "${" + strings.Join(parts, ".") + "}"
}

// segment is either a literal run of text or a reference.
type segment struct {
	literal string
	ref     *Ref
}

// Expr is a parsed expression: a sequence of literal text and references.
// An Expr consisting of a single reference resolves to the referenced
// value with its type preserved; mixed expressions interpolate to a string.
type Expr struct {
	raw  string
	segs []segment
}

// Parse parses a raw expression string. Plain strings with no ${...}
// markers parse to a literal expression.
func Parse(raw string) (*Expr, error) {
	e := &Expr{raw: raw}
	rest := raw

	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			if rest != "" {
				e.segs = append(e.segs, segment{literal: rest})
			}
			break
		}

		if start > 0 {
			e.segs = append(e.segs, segment{literal: rest[:start]})
		}

		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return nil, fmt.Errorf("expr: unterminated reference in %q", raw)
		}
		end += start

		ref, err := parseRef(rest[start+2 : end])
		if err != nil {
			return nil, fmt.Errorf("expr: %w in %q", err, raw)
		}
		e.segs = append(e.segs, segment{ref: ref})

		rest = rest[end+1:]
	}

	return e, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded expressions.
func MustParse(raw string) *Expr {
	e, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return e
}

func parseRef(body string) (*Ref, error) {
	parts := strings.Split(body, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("reference %q must have the form scope.field", body)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("reference %q has an empty path component", body)
		}
	}
	return &Ref{Scope: parts[0], Field: parts[1], Path: parts[2:]}, nil
}

// Raw returns the original expression string.
func (e *Expr) Raw() string { return e.raw }

// IsLiteral reports whether the expression contains no references.
func (e *Expr) IsLiteral() bool {
	for _, s := range e.segs {
		if s.ref != nil {
			return false
		}
	}
	return true
}

// Refs returns every reference in the expression, in order of appearance.
func (e *Expr) Refs() []Ref {
	var refs []Ref
	for _, s := range e.segs {
		if s.ref != nil {
			refs = append(refs, *s.ref)
		}
	}
	return refs
}

// Resolver supplies values for reference scopes during resolution.
type Resolver interface {
	// Lookup returns the value of the given scope/field pair and whether
	// it exists.
	Lookup(scope, field string) (any, bool)
}

// Resolve evaluates the expression against the given resolver. A single
// pure reference resolves to the referenced value (type preserved);
// mixed literal/reference expressions interpolate into a string.
func (e *Expr) Resolve(r Resolver) (any, error) {
	// Pure reference: preserve the value's type.
	if len(e.segs) == 1 && e.segs[0].ref != nil {
		return resolveRef(r, e.segs[0].ref)
	}

	var b strings.Builder
	for _, s := range e.segs {
		if s.ref == nil {
			b.WriteString(s.literal)
			continue
		}
		v, err := resolveRef(r, s.ref)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "%v", v)
	}
	return b.String(), nil
}

func resolveRef(r Resolver, ref *Ref) (any, error) {
	v, ok := r.Lookup(ref.Scope, ref.Field)
	if !ok {
		return nil, fmt.Errorf("expr: %s does not resolve", ref)
	}
	return traverse(v, ref.Path, ref)
}

// traverse walks a dotted path into nested maps.
func traverse(v any, path []string, ref *Ref) (any, error) {
	for _, key := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expr: %s: cannot descend into %T", ref, v)
		}
		v, ok = m[key]
		if !ok {
			return nil, fmt.Errorf("expr: %s: key %q not found", ref, key)
		}
	}
	return v, nil
}
