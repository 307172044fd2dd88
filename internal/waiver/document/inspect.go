package document

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
)

// PageSize is a page's MediaBox width and height in points
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TemplateInfo describes a template document
type TemplateInfo struct {
	Pages int        `json:"pages"`
	Size  int64      `json:"size"`
	Title string     `json:"title,omitempty"`
	Sizes []PageSize `json:"page_sizes"`
}

// Inspect reads a template with an independent parser and reports its page layout. It
// is used to check a template against a schema before any session submits.
func Inspect(data []byte) (info *TemplateInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = werrors.NewFillError(werrors.ErrorTypeParse, fmt.Sprintf("malformed PDF: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrorTypeParse, "invalid PDF file", err)
	}

	info = &TemplateInfo{
		Pages: r.NumPage(),
		Size:  int64(len(data)),
		Title: r.Trailer().Key("Info").Key("Title").Text(),
	}
	for i := 1; i <= info.Pages; i++ {
		info.Sizes = append(info.Sizes, mediaBox(r.Page(i).V))
	}
	return info, nil
}

// CheckPages returns a missing-page error when the template has fewer than want pages
func (t *TemplateInfo) CheckPages(want int) error {
	if want > t.Pages {
		return werrors.MissingPage(want, t.Pages)
	}
	return nil
}

// mediaBox returns the page's MediaBox, following Parent inheritance
func mediaBox(v pdf.Value) PageSize {
	for node := v; !node.IsNull(); node = node.Key("Parent") {
		box := node.Key("MediaBox")
		if box.Kind() != pdf.Array || box.Len() != 4 {
			continue
		}
		return PageSize{
			Width:  box.Index(2).Float64() - box.Index(0).Float64(),
			Height: box.Index(3).Float64() - box.Index(1).Float64(),
		}
	}
	return PageSize{}
}
