package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor yields one element per page that carries text.
type PDFExtractor struct{}

func (p *PDFExtractor) Extract(_ context.Context, raw *Raw) (ext *Extracted, err error) {
	// The PDF reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			ext = nil
			err = extractionError(raw, "application/pdf", "malformed PDF", fmt.Errorf("%v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw.Data), int64(len(raw.Data)))
	if err != nil {
		return nil, extractionError(raw, "application/pdf", "could not read PDF", err)
	}

	var elements []string
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // Skip pages that fail to extract
		}
		if text = strings.TrimSpace(text); text != "" {
			elements = append(elements, text)
		}
	}

	if len(elements) == 0 {
		return nil, extractionError(raw, "application/pdf", "no text in PDF, it may be scanned or image-based", nil)
	}
	return &Extracted{Elements: elements}, nil
}
