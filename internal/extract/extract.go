// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"ragqa/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor chooses the PDF or plain-text path by filename suffix.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

// Extract returns the document text. Every failure is a *domain.ExtractionError.
func (e *Extractor) Extract(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	if IsPDF(filename) {
		text, err = extractPDF(data)
	} else {
		text, err = extractText(data)
	}
	if err != nil {
		return "", &domain.ExtractionError{Filename: filename, Err: err}
	}
	return text, nil
}

// IsPDF reports whether filename selects the PDF path.
func IsPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

func extractText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", domain.ErrUnsupportedFormat)
	}
	return string(data), nil
}

// extractPDF joins the plain text of every non-empty page with newlines.
// The pdf package panics on some malformed inputs, so panics become errors.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", domain.ErrUnsupportedFormat, r)
		}
	}()
	if len(data) == 0 {
		return "", errors.New("empty pdf")
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i, err)
		}
		// GetPlainText starts each page with a newline
		if content = strings.TrimSpace(content); content != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, "\n"), nil
}
