package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  a\n\nb  ", "a b"},
		{"", ""},
		{"   \t\n ", ""},
		{"one", "one"},
		{"tabs\tand\r\nnewlines", "tabs and newlines"},
		{"no  double   spaces", "no double spaces"},
		{"nbsp\u00a0here", "nbsp here"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"  a\n\nb  ",
		"Heading\n\nParagraph one.\n\tIndented\u2003em space",
		"\n\n\n",
		"already normal",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 3, WordCount(" one two\nthree "))
}
