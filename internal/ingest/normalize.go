// Package ingest turns incoming chat messages into Design catalog entries
// (spec §4.11): idempotent message storage, attachment classification,
// caption normalization, title extraction, and external-platform link
// detection.
package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	urlPattern        = regexp.MustCompile(`https?://\S+`)
	nonAlphanumPattern = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// NormalizeCaption implements spec §4.11's search-normalization pipeline:
// NFKC -> lowercase -> strip URLs -> strip non-alphanumeric -> collapse
// whitespace.
func NormalizeCaption(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFKC.String(text)
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, " ")
	text = nonAlphanumPattern.ReplaceAllString(text, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
