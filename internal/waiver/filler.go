package waiver

import (
	"context"
	"fmt"

	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/document"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/form"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/populate"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
)

// Filler turns a session into a filled document
type Filler struct {
	schema    *schema.Schema
	loader    document.Loader
	populator *populate.Populator
	template  []byte
}

// NewFiller creates a filler over an immutable template
func NewFiller(sch *schema.Schema, loader document.Loader, template []byte, opts ...form.ResolverOption) *Filler {
	return &Filler{
		schema:    sch,
		loader:    loader,
		populator: populate.New(sch, form.NewResolver(sch, opts...)),
		template:  template,
	}
}

// Submit validates the session and renders it onto a freshly loaded copy of the template.
// Only one submission per session runs at a time; a concurrent call fails with a
// submission-in-flight error. The context is honoured until loading starts.
func (f *Filler) Submit(ctx context.Context, s *form.Session) ([]byte, *populate.Report, error) {
	if err := s.BeginSubmit(); err != nil {
		return nil, nil, err
	}
	defer s.EndSubmit()

	values := s.Snapshot()
	if err := form.Validate(f.schema, values); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	doc, err := f.loader.Load(f.template)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load template: %w", err)
	}
	report, err := f.populator.Populate(doc, values)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to populate document: %w", err)
	}
	out, err := doc.Serialize()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize document: %w", err)
	}
	return out, report, nil
}
