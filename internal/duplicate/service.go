package duplicate

import (
	"context"

	"github.com/google/uuid"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// AutoMergeThreshold is the confidence at or above which ProcessDuplicates
// merges automatically instead of asking a reviewer (spec §4.8).
const AutoMergeThreshold = 0.9

// FilenameSizeTolerance is the ±1% size window for the filename+size
// heuristic (spec §4.8).
const FilenameSizeTolerance = 0.01

var confidenceFor = map[types.DuplicateMatchType]float64{
	types.DuplicateMatchHash:       1.0,
	types.DuplicateMatchExternalID: 1.0,
	types.DuplicateMatchFuzzyTitle: 0.7,
	types.DuplicateMatchFilename:   0.5,
}

// Service implements find/process/merge duplicate detection over
// DesignRepository and DuplicateRepository.
type Service struct {
	designs    interfaces.DesignRepository
	duplicates interfaces.DuplicateRepository
}

// NewService builds a Service.
func NewService(designs interfaces.DesignRepository, duplicates interfaces.DuplicateRepository) *Service {
	return &Service{designs: designs, duplicates: duplicates}
}

// FindDuplicates returns, for design, the best (design, candidate) pair per
// matching signal — no duplicates across signals for the same candidate
// design (spec §4.8).
func (s *Service) FindDuplicates(ctx context.Context, design *types.Design) ([]*types.DuplicateCandidate, error) {
	seen := map[string]bool{}
	var candidates []*types.DuplicateCandidate

	add := func(candidateID string, matchType types.DuplicateMatchType) {
		if seen[candidateID] {
			return
		}
		seen[candidateID] = true
		candidates = append(candidates, &types.DuplicateCandidate{
			ID:         uuid.NewString(),
			DesignAID:  design.ID,
			DesignBID:  candidateID,
			MatchType:  matchType,
			Confidence: confidenceFor[matchType],
			Status:     types.DuplicatePending,
		})
	}

	files, err := s.designs.ListFiles(ctx, design.ID)
	if err != nil {
		return nil, err
	}

	for _, f := range files {
		if f.SHA256 == "" {
			continue
		}
		matches, err := s.designs.FindByFileHash(ctx, f.SHA256, design.ID)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			add(m.ID, types.DuplicateMatchHash)
		}
	}

	externals, err := s.designs.ListExternalMetadata(ctx, design.ID)
	if err != nil {
		return nil, err
	}
	for _, ext := range externals {
		matches, err := s.designs.FindByExternalID(ctx, ext.Type, ext.ExternalID, design.ID)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			add(m.ID, types.DuplicateMatchExternalID)
		}
	}

	if design.Title != "" && design.Designer != "" {
		others, err := s.designs.ListAll(ctx, design.ID)
		if err != nil {
			return nil, err
		}
		for _, other := range others {
			if other.Title == "" || other.Designer == "" {
				continue
			}
			if similarityRatio(design.Title, other.Title) >= TitleSimilarityThreshold &&
				similarityRatio(design.Designer, other.Designer) >= TitleSimilarityThreshold {
				add(other.ID, types.DuplicateMatchFuzzyTitle)
			}
		}
	}

	for _, f := range files {
		if f.Filename == "" || f.SizeBytes == 0 {
			continue
		}
		minSize, maxSize := sizeWindow(f.SizeBytes)
		matches, err := s.designs.FindByFilenameSize(ctx, f.Filename, minSize, maxSize, design.ID)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			add(m.ID, types.DuplicateMatchFilename)
		}
	}

	logger.Info(ctx, "duplicates_found", "design_id", design.ID, "candidate_count", len(candidates))
	return candidates, nil
}

func sizeWindow(size int64) (int64, int64) {
	min := int64(float64(size) * (1 - FilenameSizeTolerance))
	max := int64(float64(size) * (1 + FilenameSizeTolerance))
	return min, max
}

// ProcessDuplicates finds candidates for design and either auto-merges the
// best one (confidence >= AutoMergeThreshold) or persists every candidate
// as PENDING for review (spec §4.8). Returns the surviving design when a
// merge happened.
func (s *Service) ProcessDuplicates(ctx context.Context, design *types.Design) (bool, *types.Design, error) {
	candidates, err := s.FindDuplicates(ctx, design)
	if err != nil {
		return false, nil, err
	}
	if len(candidates) == 0 {
		return false, nil, nil
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}

	if best.Confidence >= AutoMergeThreshold {
		target, err := s.designs.Get(ctx, best.DesignBID)
		if err != nil {
			return false, nil, err
		}
		if target == nil {
			return false, nil, nil
		}

		merged, err := s.MergeDesigns(ctx, design, target)
		if err != nil {
			return false, nil, err
		}

		best.Status = types.DuplicateMerged
		if err := s.duplicates.Create(ctx, best); err != nil {
			return false, nil, err
		}

		logger.Info(ctx, "auto_merged_duplicate", "source_design_id", design.ID,
			"target_design_id", target.ID, "match_type", string(best.MatchType), "confidence", best.Confidence)
		return true, merged, nil
	}

	for _, c := range candidates {
		if err := s.duplicates.Create(ctx, c); err != nil {
			return false, nil, err
		}
	}
	logger.Info(ctx, "duplicate_candidates_created", "design_id", design.ID, "count", len(candidates))
	return false, nil, nil
}

// MergeDesigns folds source into target per spec §4.8's five steps and
// deletes source.
func (s *Service) MergeDesigns(ctx context.Context, source, target *types.Design) (*types.Design, error) {
	logger.Info(ctx, "merging_designs", "source_id", source.ID, "target_id", target.ID)

	if err := s.designs.ReassignSources(ctx, source.ID, target.ID); err != nil {
		return nil, err
	}

	targetFiles, err := s.designs.ListFiles(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	targetHashes := make(map[string]bool, len(targetFiles))
	for _, f := range targetFiles {
		if f.SHA256 != "" {
			targetHashes[f.SHA256] = true
		}
	}
	if err := s.designs.MoveFiles(ctx, source.ID, target.ID, targetHashes); err != nil {
		return nil, err
	}

	if err := s.designs.ReassignExternalMetadata(ctx, source.ID, target.ID); err != nil {
		return nil, err
	}

	mergeMetadata(source, target)

	if err := s.recalculateSize(ctx, target); err != nil {
		return nil, err
	}

	if err := s.designs.Update(ctx, target); err != nil {
		return nil, err
	}

	source.Status = types.DesignDeleted
	if err := s.designs.Delete(ctx, source.ID); err != nil {
		return nil, err
	}

	logger.Info(ctx, "designs_merged", "target_id", target.ID)
	return target, nil
}

func mergeMetadata(source, target *types.Design) {
	if target.Title == "" && source.Title != "" {
		target.Title = source.Title
	}
	if target.Designer == "" && source.Designer != "" {
		target.Designer = source.Designer
	}
	if target.Description == "" && source.Description != "" {
		target.Description = source.Description
	}
	if source.Status == types.DesignOrganized &&
		(target.Status == types.DesignDiscovered || target.Status == types.DesignWanted) {
		target.Status = source.Status
	}
}

func (s *Service) recalculateSize(ctx context.Context, design *types.Design) error {
	files, err := s.designs.ListFiles(ctx, design.ID)
	if err != nil {
		return err
	}
	var total int64
	for _, f := range files {
		total += f.SizeBytes
	}
	design.TotalSizeBytes = total
	return nil
}

// FileHint is a filename+size pair used by CheckPreDownload (spec §4.8).
type FileHint struct {
	Filename string
	Size     int64
}

// CheckPreDownload looks for an existing design matching title+designer or
// any of files before a download starts (spec §4.8). excludeDesignID
// omits a design that already exists (e.g. a chat-platform Design created
// at ingest, ahead of its own download job) from matching itself. Returns
// (matched, matchType, confidence) per SPEC_FULL.md's Open Question
// decision to surface the richer 3-tuple everywhere, plus the matched
// design itself (nil when no match).
func (s *Service) CheckPreDownload(ctx context.Context, title, designer string, files []FileHint, excludeDesignID string) (bool, types.DuplicateMatchType, float64, *types.Design, error) {
	if title != "" && designer != "" {
		others, err := s.designs.ListAll(ctx, excludeDesignID)
		if err != nil {
			return false, "", 0, nil, err
		}
		for _, other := range others {
			if other.Title == "" || other.Designer == "" {
				continue
			}
			if similarityRatio(title, other.Title) >= TitleSimilarityThreshold &&
				similarityRatio(designer, other.Designer) >= TitleSimilarityThreshold {
				return true, types.DuplicateMatchFuzzyTitle, confidenceFor[types.DuplicateMatchFuzzyTitle], other, nil
			}
		}
	}

	for _, f := range files {
		if f.Filename == "" || f.Size == 0 {
			continue
		}
		minSize, maxSize := sizeWindow(f.Size)
		matches, err := s.designs.FindByFilenameSize(ctx, f.Filename, minSize, maxSize, excludeDesignID)
		if err != nil {
			return false, "", 0, nil, err
		}
		if len(matches) > 0 {
			return true, types.DuplicateMatchFilename, confidenceFor[types.DuplicateMatchFilename], matches[0], nil
		}
	}

	return false, "", 0, nil, nil
}
