// Package library implements the template-rendered library import of spec
// §4.9: moving a design's staged files into a human-browsable folder tree.
package library

import "regexp"

var (
	invalidChars  = regexp.MustCompile(`[/\\:*?"<>|]`)
	collapseRuns  = regexp.MustCompile(`[_\s]+`)
	maxNameLength = 200
)

// SanitizeName makes name safe for use as a path component: invalid
// characters and runs of `_`/whitespace collapse to a single `_`, leading
// and trailing `_`/whitespace are trimmed, the result is capped at 200
// characters, and an empty result becomes "Unknown" (spec §4.9).
func SanitizeName(name string) string {
	s := invalidChars.ReplaceAllString(name, "_")
	s = collapseRuns.ReplaceAllString(s, "_")
	s = trimUnderscoreAndSpace(s)

	if len(s) > maxNameLength {
		s = s[:maxNameLength]
	}
	if s == "" {
		s = "Unknown"
	}
	return s
}

func trimUnderscoreAndSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == '_' || s[start] == ' ') {
		start++
	}
	for end > start && (s[end-1] == '_' || s[end-1] == ' ') {
		end--
	}
	return s[start:end]
}
