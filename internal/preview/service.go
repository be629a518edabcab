package preview

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

var errTraversal = errors.New("preview: path escapes previews root")

// Service stores preview images on disk and keeps their PreviewAsset
// records and primary-selection state in sync.
type Service struct {
	designs interfaces.DesignRepository
	root    string
}

// NewService builds a Service rooted at root (spec §4.10:
// cache/previews/{source}/{design_id}/{uuid}.{ext}).
func NewService(designs interfaces.DesignRepository, root string) *Service {
	return &Service{designs: designs, root: root}
}

// SaveOptions carries the optional metadata save() accepts.
type SaveOptions struct {
	Filename             string
	Kind                 types.PreviewKind
	UpstreamFileID       string
}

// Save writes imageData under the source's directory and creates the
// corresponding PreviewAsset row. It does not alter is_primary; call
// AutoSelectPrimary afterward if desired.
func (s *Service) Save(ctx context.Context, designID string, source types.PreviewSource, imageData []byte, opts SaveOptions) (*types.PreviewAsset, error) {
	relPath := buildRelativePath(source, designID, opts.Filename)
	absPath := filepath.Join(s.root, relPath)

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, polyerrors.NewTransient(err)
	}
	if err := os.WriteFile(absPath, imageData, 0o644); err != nil {
		return nil, polyerrors.NewTransient(err)
	}

	width, height := dimensions(imageData)

	kind := opts.Kind
	if kind == "" {
		kind = types.PreviewKindThumbnail
	}

	preview := &types.PreviewAsset{
		ID:             uuid.NewString(),
		DesignID:       designID,
		Source:         source,
		Kind:           kind,
		RelativePath:   relPath,
		SizeBytes:      int64(len(imageData)),
		Width:          width,
		Height:         height,
		UpstreamFileID: opts.UpstreamFileID,
	}
	if err := s.designs.CreatePreview(ctx, preview); err != nil {
		return nil, err
	}

	logger.Info(ctx, "preview_saved", "design_id", designID, "source", string(source),
		"path", relPath, "size", len(imageData))

	return preview, nil
}

// AutoSelectPrimary picks the preview with the lowest PreviewSource
// priority number, ties broken by creation order, and marks it the sole
// is_primary=true row for the design (spec §4.10).
func (s *Service) AutoSelectPrimary(ctx context.Context, designID string) (*types.PreviewAsset, error) {
	previews, err := s.designs.ListPreviews(ctx, designID)
	if err != nil {
		return nil, err
	}
	if len(previews) == 0 {
		return nil, nil
	}

	sort.SliceStable(previews, func(i, j int) bool {
		pi, pj := previews[i].Source.Priority(), previews[j].Source.Priority()
		if pi != pj {
			return pi < pj
		}
		return previews[i].CreatedAt.Before(previews[j].CreatedAt)
	})
	best := previews[0]

	if err := s.designs.ClearPrimaryPreview(ctx, designID); err != nil {
		return nil, err
	}
	best.IsPrimary = true
	if err := s.designs.UpdatePreview(ctx, best); err != nil {
		return nil, err
	}

	logger.Info(ctx, "preview_auto_selected", "design_id", designID, "preview_id", best.ID,
		"source", string(best.Source))
	return best, nil
}

// SetPrimary marks previewID as the design's sole primary preview.
func (s *Service) SetPrimary(ctx context.Context, designID, previewID string) error {
	previews, err := s.designs.ListPreviews(ctx, designID)
	if err != nil {
		return err
	}
	var target *types.PreviewAsset
	for _, p := range previews {
		if p.ID == previewID {
			target = p
			break
		}
	}
	if target == nil {
		return polyerrors.NewInput(errors.New("preview: not found for design"))
	}

	if err := s.designs.ClearPrimaryPreview(ctx, designID); err != nil {
		return err
	}
	target.IsPrimary = true
	return s.designs.UpdatePreview(ctx, target)
}

// ResolveServingPath returns the absolute, on-disk path for a preview's
// relative_path, rejecting any attempt to escape the previews root.
func (s *Service) ResolveServingPath(relativePath string) (string, error) {
	abs, err := resolveServingPath(s.root, relativePath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", os.ErrNotExist
	}
	return abs, nil
}
