package document

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
)

// PDFCPULoader implements Loader using pdfcpu. Text is drawn as foreground stamps that
// are applied to a copy of the source bytes on Serialize.
type PDFCPULoader struct {
	// Color is the fill color of drawn text in #RRGGBB form
	Color string
}

// NewPDFCPULoader creates a loader drawing black text
func NewPDFCPULoader() *PDFCPULoader {
	return &PDFCPULoader{Color: "#000000"}
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Load implements Loader
func (l *PDFCPULoader) Load(data []byte) (Document, error) {
	if len(data) == 0 {
		return nil, werrors.NewFillError(werrors.ErrorTypeParse, "template is empty")
	}

	conf := newConfiguration()
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrorTypeParse, "failed to read PDF context", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, werrors.Wrap(werrors.ErrorTypeParse, "failed to ensure page count", err)
	}

	return &PDFCPUDocument{
		source:    bytes.Clone(data),
		pageCount: ctx.PageCount,
		conf:      conf,
		color:     l.Color,
		stamps:    make(map[int][]*model.Watermark),
		fonts:     make(map[string]FontHandle),
	}, nil
}

// PDFCPUDocument implements Document using pdfcpu
type PDFCPUDocument struct {
	source    []byte
	pageCount int
	conf      *model.Configuration
	color     string
	stamps    map[int][]*model.Watermark
	fonts     map[string]FontHandle
	draws     int
}

// PageCount implements Document
func (d *PDFCPUDocument) PageCount() int {
	return d.pageCount
}

// Page implements Document
func (d *PDFCPUDocument) Page(index int) (Page, error) {
	if index < 0 || index >= d.pageCount {
		return nil, werrors.MissingPage(index+1, d.pageCount)
	}
	return &PDFCPUPage{doc: d, index: index}, nil
}

// EmbedFont implements Document. Only the standard Type 1 fonts are accepted.
func (d *PDFCPUDocument) EmbedFont(name string) (FontHandle, error) {
	if h, ok := d.fonts[name]; ok {
		return h, nil
	}
	if !font.IsCoreFont(name) {
		return nil, werrors.NewFillError(werrors.ErrorTypeConfiguration,
			fmt.Sprintf("font %q is not a standard font", name))
	}
	h := standardFont(name)
	d.fonts[name] = h
	return h, nil
}

// Serialize implements Document. The source bytes are never modified.
func (d *PDFCPUDocument) Serialize() ([]byte, error) {
	if len(d.stamps) == 0 {
		return bytes.Clone(d.source), nil
	}

	var buf bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(d.source), &buf, d.stamps, d.conf); err != nil {
		return nil, werrors.Wrap(werrors.ErrorTypeParse, "failed to write PDF", err)
	}
	return buf.Bytes(), nil
}

// Draws returns the number of DrawText calls queued so far
func (d *PDFCPUDocument) Draws() int {
	return d.draws
}

// PDFCPUPage implements Page
type PDFCPUPage struct {
	doc   *PDFCPUDocument
	index int
	x, y  float64
}

// Index implements Page
func (p *PDFCPUPage) Index() int {
	return p.index
}

// SetCursor implements Page. Coordinates are PDF user space points from the bottom left.
func (p *PDFCPUPage) SetCursor(x, y float64) {
	p.x, p.y = x, y
}

// DrawText implements Page
func (p *PDFCPUPage) DrawText(text string, opts TextOptions) error {
	fontName := DefaultFont
	if opts.Font != nil {
		fontName = opts.Font.Name()
	}
	size := int(math.Round(opts.Size))
	if size <= 0 {
		return werrors.NewFillError(werrors.ErrorTypeInvalidInput,
			fmt.Sprintf("invalid font size %v", opts.Size))
	}

	// pdfcpu places the bottom of the font box at the offset, one rounded-up descent below
	// the baseline.
	x, y := p.x, p.y-math.Ceil(font.Descent(fontName, size))
	raw, escaped := stampSegments(text)
	for i, seg := range escaped {
		desc := fmt.Sprintf(
			"fontname:%s, points:%d, position:bl, offset:%.2f %.2f, scalefactor:1 abs, rotation:0, fillcolor:%s, opacity:1",
			fontName, size, x, y, p.doc.color)
		wm, err := api.TextWatermark(seg, desc, true, false, types.POINTS)
		if err != nil {
			return fmt.Errorf("failed to prepare text on page %d: %w", p.index+1, err)
		}
		// pdfcpu page numbers are 1-based
		p.doc.stamps[p.index+1] = append(p.doc.stamps[p.index+1], wm)
		x += font.TextWidth(raw[i], fontName, size)
	}
	p.doc.draws++
	return nil
}

// placeholderVerbs are the letters pdfcpu expands after a percent sign in stamp text
const placeholderVerbs = "pPtv"

// stampSegments prepares text for pdfcpu's stamp formatter, which expands %p, %P, %t and
// %v and drops one percent sign from every run. Each run of n percent signs is written as
// n+1, and the text is split after any run followed by a placeholder letter. raw holds
// the drawn text of each segment, escaped the text handed to pdfcpu.
func stampSegments(text string) (raw, escaped []string) {
	var r, e strings.Builder
	for i := 0; i < len(text); {
		if text[i] != '%' {
			r.WriteByte(text[i])
			e.WriteByte(text[i])
			i++
			continue
		}
		j := i
		for j < len(text) && text[j] == '%' {
			j++
		}
		r.WriteString(text[i:j])
		e.WriteString(text[i:j])
		e.WriteByte('%')
		if j < len(text) && strings.IndexByte(placeholderVerbs, text[j]) >= 0 {
			raw = append(raw, r.String())
			escaped = append(escaped, e.String())
			r.Reset()
			e.Reset()
		}
		i = j
	}
	return append(raw, r.String()), append(escaped, e.String())
}

type standardFont string

func (f standardFont) Name() string {
	return string(f)
}
