package ingest

import (
	"context"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Options configures the default extractors.
type Options struct {
	// Readability narrows HTML documents to their main article before partitioning.
	Readability bool
}

// AutoExtractor dispatches to a format-specific extractor by media type.
type AutoExtractor struct {
	html *HTMLExtractor
	pdf  *PDFExtractor
	text *TextExtractor
}

// NewAutoExtractor creates an extractor for HTML, PDF and plain text content.
func NewAutoExtractor(opts Options) *AutoExtractor {
	return &AutoExtractor{
		html: &HTMLExtractor{Readability: opts.Readability},
		pdf:  &PDFExtractor{},
		text: &TextExtractor{},
	}
}

func (a *AutoExtractor) Extract(ctx context.Context, raw *Raw) (*Extracted, error) {
	mediaType := MediaType(raw.ContentType, raw.Data)
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return a.html.Extract(ctx, raw)
	case "application/pdf":
		return a.pdf.Extract(ctx, raw)
	case "text/plain", "text/markdown", "text/x-markdown":
		return a.text.Extract(ctx, raw)
	default:
		return nil, extractionError(raw, mediaType, "unsupported content type", nil)
	}
}

// MediaType returns the lower-cased media type of a declared content type,
// sniffing data when the declaration is missing or generic.
func MediaType(contentType string, data []byte) string {
	mediaType := parseMediaType(contentType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = parseMediaType(mimetype.Detect(data).String())
	}
	return mediaType
}

func parseMediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
