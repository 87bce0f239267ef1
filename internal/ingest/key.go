package ingest

import (
	"regexp"
	"strings"
)

const (
	// KeyExtension is appended to every object key.
	KeyExtension = ".txt"
	// MaxKeyStem is the number of runes kept from the sanitized locator.
	// Locators that agree on their first MaxKeyStem sanitized runes share a key.
	MaxKeyStem = 250
)

var (
	schemePrefix = regexp.MustCompile(`^https?://`)
	unsafeKeyRun = regexp.MustCompile(`[^\p{L}\p{N}_\-.]`)
)

// ObjectKey maps a locator to a stable, storage-safe object key.
func ObjectKey(locator string) string {
	clean := schemePrefix.ReplaceAllString(locator, "")
	clean = unsafeKeyRun.ReplaceAllString(clean, "_")
	if runes := []rune(clean); len(runes) > MaxKeyStem {
		clean = string(runes[:MaxKeyStem])
	}
	return clean + KeyExtension
}

// IsObjectKey reports whether key looks like a key produced by ObjectKey.
func IsObjectKey(key string) bool {
	return strings.HasSuffix(key, KeyExtension)
}
