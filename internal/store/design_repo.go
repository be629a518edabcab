package store

import (
	"context"
	"errors"

	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
	"gorm.io/gorm"
)

type designRepository struct {
	db *gorm.DB
}

// NewDesignRepository builds the gorm-backed DesignRepository.
func NewDesignRepository(db *gorm.DB) interfaces.DesignRepository {
	return &designRepository{db: db}
}

func (r *designRepository) Create(ctx context.Context, d *types.Design) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *designRepository) Get(ctx context.Context, id string) (*types.Design, error) {
	var d types.Design
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *designRepository) GetWithRelations(ctx context.Context, id string) (*types.Design, error) {
	var d types.Design
	err := r.db.WithContext(ctx).
		Preload("Sources").
		Preload("Files").
		Preload("Previews").
		Preload("Tags").
		First(&d, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *designRepository) Update(ctx context.Context, d *types.Design) error {
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *designRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("design_id = ?", id).Delete(&types.DesignFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("design_id = ?", id).Delete(&types.DesignSource{}).Error; err != nil {
			return err
		}
		if err := tx.Where("design_id = ?", id).Delete(&types.PreviewAsset{}).Error; err != nil {
			return err
		}
		if err := tx.Where("design_id = ?", id).Delete(&types.DesignTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("design_id = ?", id).Delete(&types.ExternalMetadataSource{}).Error; err != nil {
			return err
		}
		return tx.Delete(&types.Design{}, "id = ?", id).Error
	})
}

func (r *designRepository) List(ctx context.Context, status types.DesignStatus) ([]*types.Design, error) {
	q := r.db.WithContext(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var designs []*types.Design
	if err := q.Find(&designs).Error; err != nil {
		return nil, err
	}
	return designs, nil
}

func (r *designRepository) CreateSource(ctx context.Context, s *types.DesignSource) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *designRepository) ListSources(ctx context.Context, designID string) ([]*types.DesignSource, error) {
	var sources []*types.DesignSource
	if err := r.db.WithContext(ctx).Where("design_id = ?", designID).Order("rank asc").Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *designRepository) GetPreferredSource(ctx context.Context, designID string) (*types.DesignSource, error) {
	var s types.DesignSource
	err := r.db.WithContext(ctx).
		Where("design_id = ? AND is_preferred = ?", designID, true).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *designRepository) ReassignSources(ctx context.Context, fromDesignID, toDesignID string) error {
	return r.db.WithContext(ctx).Model(&types.DesignSource{}).
		Where("design_id = ?", fromDesignID).
		Update("design_id", toDesignID).Error
}

func (r *designRepository) CreateFile(ctx context.Context, f *types.DesignFile) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *designRepository) ListFiles(ctx context.Context, designID string) ([]*types.DesignFile, error) {
	var files []*types.DesignFile
	if err := r.db.WithContext(ctx).Where("design_id = ?", designID).Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

func (r *designRepository) UpdateFile(ctx context.Context, f *types.DesignFile) error {
	return r.db.WithContext(ctx).Save(f).Error
}

func (r *designRepository) FindFileBySHA256(ctx context.Context, designID, sha256 string) (*types.DesignFile, error) {
	var f types.DesignFile
	err := r.db.WithContext(ctx).Where("design_id = ? AND sha256 = ?", designID, sha256).First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *designRepository) MoveFiles(ctx context.Context, fromDesignID, toDesignID string, skipSHA256 map[string]bool) error {
	var files []*types.DesignFile
	if err := r.db.WithContext(ctx).Where("design_id = ?", fromDesignID).Find(&files).Error; err != nil {
		return err
	}
	for _, f := range files {
		if skipSHA256[f.SHA256] {
			continue
		}
		f.DesignID = toDesignID
		if err := r.db.WithContext(ctx).Save(f).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *designRepository) CreatePreview(ctx context.Context, p *types.PreviewAsset) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *designRepository) ListPreviews(ctx context.Context, designID string) ([]*types.PreviewAsset, error) {
	var previews []*types.PreviewAsset
	if err := r.db.WithContext(ctx).Where("design_id = ?", designID).Order("sort_order asc").Find(&previews).Error; err != nil {
		return nil, err
	}
	return previews, nil
}

func (r *designRepository) UpdatePreview(ctx context.Context, p *types.PreviewAsset) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *designRepository) ClearPrimaryPreview(ctx context.Context, designID string) error {
	return r.db.WithContext(ctx).Model(&types.PreviewAsset{}).
		Where("design_id = ? AND is_primary = ?", designID, true).
		Update("is_primary", false).Error
}

func (r *designRepository) CreateTag(ctx context.Context, t *types.DesignTag) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *designRepository) ListTags(ctx context.Context, designID string) ([]*types.DesignTag, error) {
	var tags []*types.DesignTag
	if err := r.db.WithContext(ctx).Where("design_id = ?", designID).Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *designRepository) HasTagsFromSource(ctx context.Context, designID string, source types.TagSource) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&types.DesignTag{}).
		Where("design_id = ? AND source = ?", designID, source).
		Count(&count).Error
	return count > 0, err
}

func (r *designRepository) CreateExternalMetadata(ctx context.Context, e *types.ExternalMetadataSource) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *designRepository) ListExternalMetadata(ctx context.Context, designID string) ([]*types.ExternalMetadataSource, error) {
	var list []*types.ExternalMetadataSource
	if err := r.db.WithContext(ctx).Where("design_id = ?", designID).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *designRepository) ReassignExternalMetadata(ctx context.Context, fromDesignID, toDesignID string) error {
	return r.db.WithContext(ctx).Model(&types.ExternalMetadataSource{}).
		Where("design_id = ?", fromDesignID).
		Update("design_id", toDesignID).Error
}

func (r *designRepository) FindByFileHash(ctx context.Context, sha256 string, excludeDesignID string) ([]*types.Design, error) {
	var designIDs []string
	if err := r.db.WithContext(ctx).Model(&types.DesignFile{}).
		Where("sha256 = ? AND design_id <> ?", sha256, excludeDesignID).
		Distinct("design_id").
		Pluck("design_id", &designIDs).Error; err != nil {
		return nil, err
	}
	return r.fetchByIDs(ctx, designIDs)
}

func (r *designRepository) FindByExternalID(ctx context.Context, extType types.ExternalMetadataType, externalID string, excludeDesignID string) ([]*types.Design, error) {
	var designIDs []string
	if err := r.db.WithContext(ctx).Model(&types.ExternalMetadataSource{}).
		Where("type = ? AND external_id = ? AND design_id <> ?", extType, externalID, excludeDesignID).
		Distinct("design_id").
		Pluck("design_id", &designIDs).Error; err != nil {
		return nil, err
	}
	return r.fetchByIDs(ctx, designIDs)
}

func (r *designRepository) FindByFilenameSize(ctx context.Context, filename string, minSize, maxSize int64, excludeDesignID string) ([]*types.Design, error) {
	var designIDs []string
	if err := r.db.WithContext(ctx).Model(&types.DesignFile{}).
		Where("filename = ? AND size_bytes BETWEEN ? AND ? AND design_id <> ?", filename, minSize, maxSize, excludeDesignID).
		Distinct("design_id").
		Pluck("design_id", &designIDs).Error; err != nil {
		return nil, err
	}
	return r.fetchByIDs(ctx, designIDs)
}

func (r *designRepository) ListAll(ctx context.Context, excludeDesignID string) ([]*types.Design, error) {
	var designs []*types.Design
	q := r.db.WithContext(ctx)
	if excludeDesignID != "" {
		q = q.Where("id <> ?", excludeDesignID)
	}
	if err := q.Where("status <> ?", types.DesignDeleted).Find(&designs).Error; err != nil {
		return nil, err
	}
	return designs, nil
}

func (r *designRepository) fetchByIDs(ctx context.Context, ids []string) ([]*types.Design, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var designs []*types.Design
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&designs).Error; err != nil {
		return nil, err
	}
	return designs, nil
}
