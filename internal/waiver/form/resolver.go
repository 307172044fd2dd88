package form

import (
	"strings"
	"time"

	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
)

// Resolver computes the final string of a field instance from user values and default
// expressions.
type Resolver struct {
	schema *schema.Schema
	now    func() time.Time
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithClock sets the clock used by the today token
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a resolver over the schema
func NewResolver(sch *schema.Schema, opts ...ResolverOption) *Resolver {
	r := &Resolver{schema: sch, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the value of fieldID at index. A non-empty entered value wins. Otherwise
// the default expression is evaluated: a reference takes the referenced field's entered
// value at the same index, falling back to the token text. References are followed one
// hop only.
func (r *Resolver) Resolve(fieldID string, index int, values Values) (string, error) {
	f, ok := r.schema.Field(fieldID)
	if !ok {
		return "", werrors.NotFoundf("unknown field %q", fieldID)
	}

	switch v := f.Variant.(type) {
	case schema.Visible:
		if raw, ok := values.Value(fieldID, index); ok {
			if formatted := Format(v.Input, raw); formatted != "" {
				return formatted, nil
			}
		}
	case schema.Generated:
	default:
		return "", werrors.Configurationf("field %q has unknown variant %T", fieldID, f.Variant)
	}

	expr := f.Default()
	if len(expr) == 0 {
		return "", werrors.UnresolvedField(fieldID, index)
	}
	return r.evaluate(expr, index, values), nil
}

func (r *Resolver) evaluate(expr schema.Expr, index int, values Values) string {
	var b strings.Builder
	for _, t := range expr {
		switch t.Kind {
		case schema.TokenField:
			b.WriteString(r.entered(t.Value, index, values))
		case schema.TokenToday:
			b.WriteString(r.now().Format(DateLayout))
		default:
			b.WriteString(t.Value)
		}
	}
	return b.String()
}

// entered returns the user-entered value of a referenced field, or the identifier itself
// when there is none
func (r *Resolver) entered(fieldID string, index int, values Values) string {
	f, ok := r.schema.Field(fieldID)
	if !ok {
		return fieldID
	}
	switch v := f.Variant.(type) {
	case schema.Visible:
		if raw, ok := values.Value(fieldID, index); ok {
			if formatted := Format(v.Input, raw); formatted != "" {
				return formatted
			}
		}
	case schema.Generated:
	}
	return fieldID
}
