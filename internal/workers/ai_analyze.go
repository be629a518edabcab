package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/preview"
	"github.com/polyforge/polyforge/internal/tagger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
)

// AIAnalyzePayload is the JobAIAnalyze job's payload.
type AIAnalyzePayload struct {
	DesignID string `json:"design_id"`
	Force    bool   `json:"force"`
}

// AIAnalyzeWorker runs the AI tagging pass over a design's preview images
// and attaches the resulting tags (spec §4.13).
type AIAnalyzeWorker struct {
	designs           interfaces.DesignRepository
	previews          *preview.Service
	tagger            *tagger.Service
	selectBestPreview bool
}

// NewAIAnalyzeWorker builds an AIAnalyzeWorker. selectBestPreview mirrors
// the ai_select_best_preview setting: when false, the model's
// best_preview_index pick is ignored and only tags are applied.
func NewAIAnalyzeWorker(designs interfaces.DesignRepository, previews *preview.Service, tg *tagger.Service, selectBestPreview bool) *AIAnalyzeWorker {
	return &AIAnalyzeWorker{designs: designs, previews: previews, tagger: tg, selectBestPreview: selectBestPreview}
}

func (w *AIAnalyzeWorker) Name() string { return "ai_analyze" }

func (w *AIAnalyzeWorker) JobTypes() []types.JobType {
	return []types.JobType{types.JobAIAnalyze}
}

func (w *AIAnalyzeWorker) Process(ctx context.Context, job *types.Job, payload []byte) (any, error) {
	var p AIAnalyzePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("ai_analyze: decode payload: %w", err)
	}
	if p.DesignID == "" && job.DesignID != nil {
		p.DesignID = *job.DesignID
	}
	if p.DesignID == "" {
		return nil, polyerrors.NewInput(fmt.Errorf("ai_analyze: missing design_id"))
	}

	if !p.Force {
		already, err := w.designs.HasTagsFromSource(ctx, p.DesignID, types.TagSourceAutoAI)
		if err != nil {
			return nil, err
		}
		if already {
			logger.Debug(ctx, "ai_analyze_skipped_already_tagged", "design_id", p.DesignID)
			return map[string]any{"design_id": p.DesignID, "tags_added": 0, "message": "already analyzed"}, nil
		}
	}

	result, selected, err := w.tagger.Analyze(ctx, p.DesignID)
	if err != nil {
		return nil, err
	}

	added := w.applyTags(ctx, p.DesignID, result.Tags)

	if w.selectBestPreview && result.BestPreviewIndex != nil {
		idx := *result.BestPreviewIndex
		if idx >= 0 && idx < len(selected) {
			if err := w.previews.SetPrimary(ctx, p.DesignID, selected[idx].ID); err != nil {
				logger.Warn(ctx, "ai_analyze_set_primary_failed", "design_id", p.DesignID, "error", err)
			}
		}
	}

	logger.Info(ctx, "ai_analyze_complete", "design_id", p.DesignID, "tags_added", added, "previews_considered", len(selected))
	return map[string]any{"design_id": p.DesignID, "tags_added": added, "tags": result.Tags}, nil
}

// applyTags creates a DesignTag row per tag name, best-effort: a failure
// on one tag (e.g. a uniqueness conflict with an existing user tag) does
// not abort the rest.
func (w *AIAnalyzeWorker) applyTags(ctx context.Context, designID string, tagNames []string) int {
	var added int
	for _, name := range tagNames {
		err := w.designs.CreateTag(ctx, &types.DesignTag{
			ID:       uuid.NewString(),
			DesignID: designID,
			Tag:      name,
			Source:   types.TagSourceAutoAI,
		})
		if err != nil {
			logger.Debug(ctx, "ai_analyze_tag_skip", "design_id", designID, "tag", name, "error", err)
			continue
		}
		added++
	}
	return added
}
