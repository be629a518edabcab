// Package tagger implements the AI tagging pass that attaches suggested
// tags (and optionally a primary preview) to a Design by sending a handful
// of its preview images and metadata to an external vision model (spec
// §4.13).
package tagger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/preview"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// maxPreviewsPerAnalysis caps how many images get sent to the model in a
// single call.
const maxPreviewsPerAnalysis = 4

// maxCaptionChars truncates a message caption before it goes into the
// prompt.
const maxCaptionChars = 1000

// maxExistingTags caps how many of a design's already-known tags are
// listed in the prompt, to bound prompt size.
const maxExistingTags = 200

// analysisPreviewPriority orders preview sources for *analysis selection*,
// favoring creator-provided photos over generated renders — the inverse of
// preview.Service.AutoSelectPrimary's display-primary ordering, which
// favors renders. A low number sorts first.
var analysisPreviewPriority = map[types.PreviewSource]int{
	types.PreviewSourceTelegram:    1,
	types.PreviewSourceThangs:      2,
	types.PreviewSourceArchive:     3,
	types.PreviewSourceEmbedded3MF: 4,
	types.PreviewSourceRendered:    5,
}

// AnalysisResult is the normalized outcome of one Analyze call.
type AnalysisResult struct {
	Tags             []string
	BestPreviewIndex *int
	RawResponse      string
}

// Service runs the AI tagging pass for a Design.
type Service struct {
	designs  interfaces.DesignRepository
	channels interfaces.ChannelRepository
	previews *preview.Service
	limiter  interfaces.RateLimiter
	client   *Client
	maxTags  int
}

// NewService builds a Service. maxTags caps how many tags Analyze keeps
// per design (0 falls back to 20).
func NewService(designs interfaces.DesignRepository, channels interfaces.ChannelRepository, previews *preview.Service, limiter interfaces.RateLimiter, client *Client, maxTags int) *Service {
	if maxTags <= 0 {
		maxTags = 20
	}
	return &Service{designs: designs, channels: channels, previews: previews, limiter: limiter, client: client, maxTags: maxTags}
}

// Analyze selects preview images for designID, prompts the model, and
// returns the parsed tags and best-preview pick. It does not write
// anything back to the database; callers apply the result (spec §4.13:
// the worker owns tag/preview persistence so it can enforce the
// already-analyzed skip check before spending an API call).
func (s *Service) Analyze(ctx context.Context, designID string) (*AnalysisResult, []*types.PreviewAsset, error) {
	design, err := s.designs.GetWithRelations(ctx, designID)
	if err != nil {
		return nil, nil, err
	}
	if design == nil {
		return nil, nil, polyerrors.NewInput(fmt.Errorf("tagger: design %s not found", designID))
	}

	selected := selectPreviewsForAnalysis(design.Previews)
	if len(selected) == 0 {
		return nil, nil, polyerrors.NewInput(fmt.Errorf("tagger: design %s has no preview images", designID))
	}

	images := make([]ImagePart, 0, len(selected))
	for _, p := range selected {
		abs, err := s.previews.ResolveServingPath(p.RelativePath)
		if err != nil {
			logger.Warn(ctx, "tagger_preview_unreadable", "design_id", designID, "preview_id", p.ID, "error", err)
			continue
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			logger.Warn(ctx, "tagger_preview_read_failed", "design_id", designID, "preview_id", p.ID, "error", err)
			continue
		}
		images = append(images, ImagePart{MimeType: mimeTypeForPath(p.RelativePath), Data: data})
	}
	if len(images) == 0 {
		return nil, nil, polyerrors.NewInput(fmt.Errorf("tagger: design %s has no readable preview images", designID))
	}

	existingTags := existingTagNames(design.Tags)
	prompt := s.buildPrompt(ctx, design, existingTags)

	if err := s.limiter.Acquire(ctx, "gemini"); err != nil {
		return nil, nil, err
	}

	raw, err := s.client.Generate(ctx, prompt, images)
	if err != nil {
		if e, ok := asRateLimit(err); ok {
			s.limiter.Backoff("gemini", secondsToDuration(e.RetryAfterSeconds))
		}
		return nil, nil, err
	}

	result, err := parseResponse(raw, s.maxTags)
	if err != nil {
		return nil, nil, polyerrors.NewInput(fmt.Errorf("tagger: parse response for design %s: %w", designID, err))
	}
	return result, selected, nil
}

// buildPrompt mirrors the original tagger's prompt shape: design identity,
// channel/caption context, and the existing tag list, so the model avoids
// re-suggesting tags the design already carries.
func (s *Service) buildPrompt(ctx context.Context, design *types.Design, existingTags []string) string {
	var b strings.Builder
	b.WriteString("You are cataloging a 3D-printable model for a personal design library.\n")
	b.WriteString("Look at the attached image(s) and respond with strict JSON only, no markdown fences, of the form:\n")
	b.WriteString(`{"tags": ["tag1", "tag2"], "best_preview_index": 0}` + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- tags: 3 to 10 short lowercase descriptive tags (object type, theme, use case). Do not repeat existing tags verbatim.\n")
	b.WriteString("- best_preview_index: the 0-based index of the attached image that best represents the finished print, or null if unsure.\n\n")

	fmt.Fprintf(&b, "Title: %s\n", design.Title)
	if design.Designer != "" {
		fmt.Fprintf(&b, "Designer: %s\n", design.Designer)
	}

	if caption := s.captionFor(ctx, design); caption != "" {
		if len(caption) > maxCaptionChars {
			caption = caption[:maxCaptionChars]
		}
		fmt.Fprintf(&b, "Caption: %s\n", caption)
	}

	if len(existingTags) > 0 {
		if len(existingTags) > maxExistingTags {
			existingTags = existingTags[:maxExistingTags]
		}
		fmt.Fprintf(&b, "Existing tags: %s\n", strings.Join(existingTags, ", "))
	}

	return b.String()
}

// captionFor looks up the channel title and message caption behind a
// design's preferred source, best-effort.
func (s *Service) captionFor(ctx context.Context, design *types.Design) string {
	src, err := s.designs.GetPreferredSource(ctx, design.ID)
	if err != nil || src == nil || src.MessageID == nil {
		return ""
	}
	msg, err := s.channels.GetMessage(ctx, *src.MessageID)
	if err != nil || msg == nil {
		return ""
	}

	var parts []string
	if ch, err := s.channels.Get(ctx, msg.ChannelID); err == nil && ch != nil && ch.Title != "" {
		parts = append(parts, "channel: "+ch.Title)
	}
	if msg.CaptionNormalized != "" {
		parts = append(parts, msg.CaptionNormalized)
	} else if msg.CaptionRaw != "" {
		parts = append(parts, msg.CaptionRaw)
	}
	return strings.Join(parts, " — ")
}

// selectPreviewsForAnalysis picks up to maxPreviewsPerAnalysis previews,
// favoring creator-provided sources over generated renders (spec §4.13),
// and drops RENDERED entries from the pick whenever at least one
// non-RENDERED preview is available among the top candidates.
func selectPreviewsForAnalysis(previews []types.PreviewAsset) []*types.PreviewAsset {
	if len(previews) == 0 {
		return nil
	}
	sorted := make([]*types.PreviewAsset, len(previews))
	for i := range previews {
		sorted[i] = &previews[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := analysisPreviewPriority[sorted[i].Source], analysisPreviewPriority[sorted[j].Source]
		if pi != pj {
			return pi < pj
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	if len(sorted) > maxPreviewsPerAnalysis {
		sorted = sorted[:maxPreviewsPerAnalysis]
	}

	hasNonRendered := false
	for _, p := range sorted {
		if p.Source != types.PreviewSourceRendered {
			hasNonRendered = true
			break
		}
	}
	if !hasNonRendered {
		return sorted
	}

	picked := sorted[:0:0]
	for _, p := range sorted {
		if p.Source == types.PreviewSourceRendered {
			continue
		}
		picked = append(picked, p)
	}
	return picked
}

func existingTagNames(tags []types.DesignTag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Tag)
	}
	return names
}

func mimeTypeForPath(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

func asRateLimit(err error) (*polyerrors.RateLimitError, bool) {
	e, ok := err.(*polyerrors.RateLimitError)
	return e, ok
}

func secondsToDuration(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}
