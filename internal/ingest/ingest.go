package ingest

import (
	"context"
	"fmt"
	"strings"
)

type SourceType string

const (
	SourceURL  SourceType = "url"
	SourceFile SourceType = "file"

	// MaxInputSize is the maximum allowed size for fetched content (25 MB).
	MaxInputSize = 25 * 1024 * 1024
)

func (s SourceType) String() string {
	return string(s)
}

// DetectSource reports whether a locator is fetched over HTTP or read from disk.
func DetectSource(locator string) SourceType {
	lower := strings.ToLower(locator)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return SourceURL
	}
	return SourceFile
}

// Raw is fetched content for a single locator. It is never persisted.
type Raw struct {
	Locator     string
	ContentType string
	Data        []byte
}

// Extracted holds the text elements of a document in source order.
type Extracted struct {
	Elements []string
}

// Separator joins extracted elements.
const Separator = "\n"

// Text joins the elements with Separator.
func (e *Extracted) Text() string {
	return strings.Join(e.Elements, Separator)
}

// Extractor converts raw content into text elements.
type Extractor interface {
	Extract(ctx context.Context, raw *Raw) (*Extracted, error)
}

// ExtractionError is returned when content cannot be partitioned into text.
type ExtractionError struct {
	Locator     string
	ContentType string
	Message     string
	Err         error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s (%s): %s: %v", e.Locator, e.ContentType, e.Message, e.Err)
	}
	return fmt.Sprintf("extract %s (%s): %s", e.Locator, e.ContentType, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func extractionError(raw *Raw, contentType, msg string, err error) *ExtractionError {
	return &ExtractionError{Locator: raw.Locator, ContentType: contentType, Message: msg, Err: err}
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inWord = false
		} else if !inWord {
			inWord = true
			count++
		}
	}
	return count
}
