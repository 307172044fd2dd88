// Package populate writes resolved field values onto a document's target positions.
package populate

import (
	"errors"
	"fmt"

	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/document"
	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/form"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
)

// Draw is one planned text placement
type Draw struct {
	FieldID   string  `json:"field_id"`
	Index     int     `json:"index"`
	Page      int     `json:"page"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Text      string  `json:"text"`
	Signature bool    `json:"signature,omitempty"`
}

// Report summarizes a population pass
type Report struct {
	Draws          []Draw   `json:"draws"`
	Fields         int      `json:"fields"`
	Skipped        []string `json:"skipped,omitempty"`
	SignatureDraws int      `json:"signature_draws"`
}

// Populator resolves every field instance of a schema and draws it onto a document
type Populator struct {
	schema   *schema.Schema
	resolver *form.Resolver
}

// New creates a populator
func New(sch *schema.Schema, resolver *form.Resolver) *Populator {
	return &Populator{schema: sch, resolver: resolver}
}

// Plan resolves every field instance and maps it onto target positions without touching
// the document. Fields are visited in processing order: visible fields once per live
// instance, generated fields once. A shared field draws its value at every target; a
// sequential field draws instance i at target i only.
//
// An optional instance the user left blank, with no default to fall back on, is skipped.
// Any other unresolvable instance fails the whole plan.
func (p *Populator) Plan(values form.Values, pageCount int) (*Report, error) {
	report := &Report{}

	for _, f := range p.schema.Ordered() {
		count := 1
		if f.IsVisible() {
			count = values.Count(f.ID)
		}

		drawn := false
		for i := range count {
			targets := instanceTargets(f, i)
			if len(targets) == 0 {
				continue
			}

			text, err := p.resolver.Resolve(f.ID, i, values)
			if err != nil {
				if errors.Is(err, werrors.ErrUnresolvedField) && f.IsVisible() && i >= f.MinCount {
					report.Skipped = append(report.Skipped, fmt.Sprintf("%s[%d]", f.ID, i))
					continue
				}
				return nil, err
			}

			for _, t := range targets {
				if t.PageIndex() < 0 || t.PageIndex() >= pageCount {
					return nil, werrors.MissingPage(t.Page, pageCount).WithField(f.ID, i)
				}
				d := Draw{
					FieldID:   f.ID,
					Index:     i,
					Page:      t.PageIndex(),
					X:         t.X,
					Y:         t.Y,
					Text:      text,
					Signature: f.Font == schema.FontSignature,
				}
				if d.Signature {
					report.SignatureDraws++
				}
				report.Draws = append(report.Draws, d)
				drawn = true
			}
		}
		if drawn {
			report.Fields++
		}
	}
	return report, nil
}

// Populate plans the pass against doc and then draws every placement. Nothing is drawn
// when planning fails. The signature font is embedded once and reused for every
// signature draw.
func (p *Populator) Populate(doc document.Document, values form.Values) (*Report, error) {
	report, err := p.Plan(values, doc.PageCount())
	if err != nil {
		return nil, err
	}

	pages := make(map[int]document.Page)
	for _, d := range report.Draws {
		if _, ok := pages[d.Page]; ok {
			continue
		}
		page, err := doc.Page(d.Page)
		if err != nil {
			return nil, err
		}
		pages[d.Page] = page
	}

	var signature document.FontHandle
	if report.SignatureDraws > 0 {
		signature, err = doc.EmbedFont(document.SignatureFont)
		if err != nil {
			return nil, fmt.Errorf("failed to embed signature font: %w", err)
		}
	}

	for _, d := range report.Draws {
		opts := document.TextOptions{Size: p.schema.FontSize}
		if d.Signature {
			opts.Font = signature
		}
		page := pages[d.Page]
		page.SetCursor(d.X, d.Y)
		if err := page.DrawText(d.Text, opts); err != nil {
			return nil, fmt.Errorf("failed to draw %s[%d] on page %d: %w", d.FieldID, d.Index, d.Page+1, err)
		}
	}
	return report, nil
}

func instanceTargets(f *schema.FieldSpec, index int) []schema.Target {
	switch f.Placement {
	case schema.PlacementSequential:
		if index < len(f.Targets) {
			return f.Targets[index : index+1]
		}
		return nil
	default:
		if index > 0 {
			return nil
		}
		return f.Targets
	}
}
