// Package document defines the document primitives the populator draws against and
// provides their implementation over pdfcpu.
package document

// Standard font names
const (
	DefaultFont   = "Helvetica"
	SignatureFont = "Times-Italic"
)

// Loader parses template bytes into a fresh, independently mutable document
type Loader interface {
	Load(data []byte) (Document, error)
}

// Document is an in-memory document being populated
type Document interface {
	// PageCount returns the number of pages
	PageCount() int
	// Page returns the page at the 0-based index. An index outside the document fails
	// with a missing-page error.
	Page(index int) (Page, error)
	// EmbedFont makes a standard font available for drawing. Embedding the same font
	// twice returns the same handle.
	EmbedFont(name string) (FontHandle, error)
	// Serialize returns the document bytes including everything drawn so far
	Serialize() ([]byte, error)
}

// Page is a single page of a Document
type Page interface {
	Index() int
	SetCursor(x, y float64)
	DrawText(text string, opts TextOptions) error
}

// FontHandle identifies an embedded font
type FontHandle interface {
	Name() string
}

// TextOptions controls how DrawText renders. A nil Font draws with DefaultFont.
type TextOptions struct {
	Size float64
	Font FontHandle
}
