// Package pdf extracts page text from PDF documents.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxPages is the number of leading pages scanned for text. The DOI
// is almost always printed on the first or second page.
const DefaultMaxPages = 2

// magic is the header every PDF file starts with.
var magic = []byte("%PDF-")

var (
	// ErrNotPDF indicates the data does not carry a PDF header.
	ErrNotPDF = errors.New("not a PDF document")

	// ErrDecode indicates the PDF structure could not be parsed.
	ErrDecode = errors.New("decoding PDF")
)

// Extractor returns the plain text of the first pages of a PDF.
type Extractor struct {
	MaxPages int
}

// NewExtractor creates an Extractor scanning at most maxPages pages.
// A non-positive maxPages means DefaultMaxPages.
func NewExtractor(maxPages int) *Extractor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Extractor{MaxPages: maxPages}
}

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// Text concatenates the plain text of the leading pages of data, one page
// per line block. Pages that fail to decode are skipped.
func (e *Extractor) Text(ctx context.Context, data []byte) (text string, err error) {
	if !IsPDF(data) {
		return "", ErrNotPDF
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// The pdf package panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrDecode, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	maxPages := e.MaxPages
	if maxPages <= 0 || maxPages > r.NumPage() {
		maxPages = r.NumPage()
	}

	var builder strings.Builder
	for i := 1; i <= maxPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(pageText)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

// TextFile reads the file at path and extracts its text.
func (e *Extractor) TextFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading PDF: %w", err)
	}
	return e.Text(ctx, data)
}
