package ingest

import "strings"

// Normalize collapses every whitespace run to a single space and trims both ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
