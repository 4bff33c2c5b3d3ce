// Package render produces page views of a PDF held in memory.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageView is the rendered form of one page
type PageView struct {
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	Text       string `json:"text"`
}

// Renderer renders pages using ledongthuc/pdf
type Renderer struct{}

// NewRenderer creates a page renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) open(data []byte) (*pdf.Reader, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no document data")
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return reader, nil
}

// PageCount returns the number of pages in data
func (r *Renderer) PageCount(data []byte) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			n, err = 0, fmt.Errorf("failed to count pages: %v", rec)
		}
	}()

	reader, err := r.open(data)
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}

// Render returns the plain text of page pageNum (1-based) of data
func (r *Renderer) Render(data []byte, pageNum int) (view *PageView, err error) {
	reader, err := r.open(data)
	if err != nil {
		return nil, err
	}

	total := reader.NumPage()
	if pageNum < 1 || pageNum > total {
		return nil, fmt.Errorf("invalid page number %d (document has %d pages)", pageNum, total)
	}

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d not found", pageNum)
	}

	// ledongthuc/pdf panics on some malformed content streams
	defer func() {
		if rec := recover(); rec != nil {
			view, err = nil, fmt.Errorf("failed to extract text from page %d: %v", pageNum, rec)
		}
	}()

	text, err := page.GetPlainText(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from page %d: %w", pageNum, err)
	}

	return &PageView{
		Page:       pageNum,
		TotalPages: total,
		Text:       strings.TrimSpace(text),
	}, nil
}
