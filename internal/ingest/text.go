package ingest

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"
)

var paragraphBreak = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)

// TextExtractor splits plain text and markdown into blank-line separated paragraphs.
type TextExtractor struct{}

func (t *TextExtractor) Extract(_ context.Context, raw *Raw) (*Extracted, error) {
	if !utf8.Valid(raw.Data) {
		return nil, extractionError(raw, "text/plain", "content is not valid UTF-8", nil)
	}

	text := strings.TrimPrefix(string(raw.Data), "\ufeff")
	var elements []string
	for _, para := range paragraphBreak.Split(text, -1) {
		if para = strings.TrimSpace(para); para != "" {
			elements = append(elements, para)
		}
	}

	if len(elements) == 0 {
		return nil, extractionError(raw, "text/plain", "content is empty", nil)
	}
	return &Extracted{Elements: elements}, nil
}
