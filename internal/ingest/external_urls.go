package ingest

import (
	"fmt"
	"regexp"

	"github.com/polyforge/polyforge/internal/types"
)

var thangsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)thangs\.com/([^/]+)/([^/\s]+)-(\d+)(?:\?|$|/|\s)`),
	regexp.MustCompile(`(?i)thangs\.com/m/(\d+)(?:\?|$|/|\s)`),
	regexp.MustCompile(`(?i)thangs\.com/model/(\d+)(?:\?|$|/|\s)`),
}

var printablesPattern = regexp.MustCompile(`(?i)printables\.com/model/(\d+)(?:[/-]|$|\s|\?)`)
var thingiversePattern = regexp.MustCompile(`(?i)thingiverse\.com/thing:(\d+)(?:\s|$|/|\?)`)

// ExternalLink is one detected external-platform reference (spec §4.11).
type ExternalLink struct {
	Type       types.ExternalMetadataType
	ExternalID string
	URL        string
}

// DetectExternalLinks finds thangs.com, printables.com, and thingiverse.com
// references in text, deduped by (type, id) and normalized to a canonical
// URL shape (spec §4.11's "three URL shapes -> canonical thangs.com/m/{id}").
func DetectExternalLinks(text string) []ExternalLink {
	if text == "" {
		return nil
	}

	var links []ExternalLink
	seen := map[string]bool{}

	add := func(t types.ExternalMetadataType, id, url string) {
		key := string(t) + ":" + id
		if seen[key] {
			return
		}
		seen[key] = true
		links = append(links, ExternalLink{Type: t, ExternalID: id, URL: url})
	}

	for _, pattern := range thangsPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			var id string
			if len(m) == 4 {
				id = m[3]
			} else {
				id = m[1]
			}
			add(types.ExternalThangs, id, fmt.Sprintf("https://thangs.com/m/%s", id))
		}
	}

	for _, m := range printablesPattern.FindAllStringSubmatch(text, -1) {
		id := m[1]
		add(types.ExternalPrintables, id, fmt.Sprintf("https://www.printables.com/model/%s", id))
	}

	for _, m := range thingiversePattern.FindAllStringSubmatch(text, -1) {
		id := m[1]
		add(types.ExternalThingiverse, id, fmt.Sprintf("https://www.thingiverse.com/thing:%s", id))
	}

	return links
}
