// Package testdoc builds small, well-formed PDF files for tests.
package testdoc

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Page dimensions of generated documents (US letter, points)
const (
	PageWidth  = 612
	PageHeight = 792
)

// Blank returns a PDF with the given number of letter-size pages. Each page carries a
// "Page N" caption in Helvetica so text extractors find something to read.
func Blank(pages int) []byte {
	if pages < 1 {
		pages = 1
	}

	var buf bytes.Buffer
	offsets := []int{0}
	object := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets)-1, body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	kids := new(bytes.Buffer)
	for i := range pages {
		fmt.Fprintf(kids, "%d 0 R ", 4+2*i)
	}

	object("<< /Type /Catalog /Pages 2 0 R >>")
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", bytes.TrimSpace(kids.Bytes()), pages))
	object("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	for i := range pages {
		object(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			PageWidth, PageHeight, 5+2*i))
		content := fmt.Sprintf("BT /F1 12 Tf 72 %d Td (Page %d) Tj ET", PageHeight-72, i+1)
		object(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets), xref)

	return buf.Bytes()
}

// WriteBlank writes a Blank document into a temporary directory and returns its path
func WriteBlank(t testing.TB, pages int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("template-%d.pdf", pages))
	if err := os.WriteFile(path, Blank(pages), 0o600); err != nil {
		t.Fatalf("write test document: %v", err)
	}
	return path
}
