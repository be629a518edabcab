package ingest

import (
	"fmt"
	"strings"
	"time"
)

const maxTitleLength = 200

// ExtractTitle implements spec §4.11's title extraction fallback chain:
// first non-URL, non-hashtag-only caption line over 3 characters, else the
// first candidate attachment filename without its extension (when that is
// over 3 characters), else a generic date-based title.
func ExtractTitle(caption string, firstCandidateFilename string, postedAt time.Time) string {
	if title, ok := titleFromCaption(caption); ok {
		return title
	}
	if firstCandidateFilename != "" {
		stripped := StripExtension(firstCandidateFilename)
		if len(stripped) > 3 {
			return stripped
		}
	}
	return fmt.Sprintf("Design from %s", postedAt.Format("2006-01-02"))
}

func titleFromCaption(caption string) (string, bool) {
	for _, line := range strings.Split(strings.TrimSpace(caption), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "http") || len(line) <= 3 {
			continue
		}
		if isHashtagOnly(line) {
			continue
		}
		if len(line) > maxTitleLength {
			line = line[:maxTitleLength-3] + "..."
		}
		return line, true
	}
	return "", false
}

func isHashtagOnly(line string) bool {
	for _, word := range strings.Fields(line) {
		if !strings.HasPrefix(word, "#") {
			return false
		}
	}
	return true
}
