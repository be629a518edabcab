package tagger

import (
	"encoding/json"
	"fmt"
	"strings"
)

type rawAnalysisResponse struct {
	Tags             []string `json:"tags"`
	BestPreviewIndex *int     `json:"best_preview_index"`
}

// parseResponse extracts strict JSON from the model's raw text, stripping
// a markdown code fence if the model wrapped its answer in one, and
// normalizes the tag list (spec §4.13).
func parseResponse(raw string, maxTags int) (*AnalysisResult, error) {
	text := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(text, "```json"):
		text = text[len("```json"):]
	case strings.HasPrefix(text, "```"):
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)

	var parsed rawAnalysisResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	return &AnalysisResult{
		Tags:             normalizeTags(parsed.Tags, maxTags),
		BestPreviewIndex: parsed.BestPreviewIndex,
		RawResponse:      raw,
	}, nil
}

// normalizeTags lowercases, trims, dedupes (preserving first-seen order),
// and caps the tag list at maxTags.
func normalizeTags(tags []string, maxTags int) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) >= maxTags {
			break
		}
	}
	return out
}
