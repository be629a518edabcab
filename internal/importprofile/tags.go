package importprofile

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/polyforge/polyforge/internal/types"
)

var stopWords = map[string]bool{"the": true, "and": true, "for": true}

// ExtractAutoTags implements spec §4.5's auto_tags group: ancestor folder
// names (with strip_patterns applied) and/or keyword extraction from the
// design folder's own name.
func ExtractAutoTags(designPath string, cfg types.AutoTagsConfig) []string {
	var tags []string
	seen := map[string]bool{}
	add := func(tag string) {
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	if cfg.FromSubfolders {
		patterns := make([]*regexp.Regexp, 0, len(cfg.StripPatterns))
		for _, p := range cfg.StripPatterns {
			if re, err := regexp.Compile(p); err == nil {
				patterns = append(patterns, re)
			}
		}

		current := filepath.Dir(designPath)
		for i := 0; i < cfg.SubfolderLevels; i++ {
			parent := filepath.Dir(current)
			if parent == current {
				break
			}
			tag := filepath.Base(current)
			for _, re := range patterns {
				tag = strings.TrimSpace(re.ReplaceAllString(tag, ""))
			}
			add(tag)
			current = parent
		}
	}

	if cfg.FromFilename {
		words := wordPattern.FindAllString(filepath.Base(designPath), -1)
		for _, w := range words {
			if len(w) > 2 && !stopWords[strings.ToLower(w)] {
				add(w)
			}
		}
	}

	return tags
}

var wordPattern = regexp.MustCompile(`[A-Za-z]+`)
