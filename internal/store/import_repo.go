package store

import (
	"context"
	"errors"
	"time"

	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type importRepository struct {
	db *gorm.DB
}

// NewImportRepository builds the gorm-backed ImportRepository.
func NewImportRepository(db *gorm.DB) interfaces.ImportRepository {
	return &importRepository{db: db}
}

func (r *importRepository) CreateSource(ctx context.Context, s *types.ImportSource) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *importRepository) GetSource(ctx context.Context, id string) (*types.ImportSource, error) {
	var s types.ImportSource
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *importRepository) UpdateSource(ctx context.Context, s *types.ImportSource) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *importRepository) DeleteSource(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&types.ImportSource{}, "id = ?", id).Error
}

func (r *importRepository) ListSources(ctx context.Context) ([]*types.ImportSource, error) {
	var sources []*types.ImportSource
	if err := r.db.WithContext(ctx).Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

// ListDueSources returns enabled+ACTIVE sources; callers apply
// ImportSource.DueForSync, since the due calculation depends on a
// non-deterministic "now" that must not be pushed into SQL for portability
// across sqlite/postgres.
func (r *importRepository) ListDueSources(ctx context.Context) ([]*types.ImportSource, error) {
	var sources []*types.ImportSource
	err := r.db.WithContext(ctx).
		Where("sync_enabled = ? AND status = ?", true, types.ImportSourceActive).
		Find(&sources).Error
	return sources, err
}

func (r *importRepository) UpsertRecord(ctx context.Context, rec *types.ImportRecord) (bool, error) {
	existing, err := r.GetRecordByPath(ctx, rec.ImportSourceID, rec.SourcePath)
	if err != nil {
		return false, err
	}
	if existing == nil {
		rec.Status = types.ImportRecordPending
		return true, r.db.WithContext(ctx).Create(rec).Error
	}

	changed := existing.Fingerprint != rec.Fingerprint
	existing.DetectedTitle = rec.DetectedTitle
	existing.DetectedDesigner = rec.DetectedDesigner
	existing.SizeBytes = rec.SizeBytes
	existing.Fingerprint = rec.Fingerprint
	existing.Mtime = rec.Mtime
	existing.DriveFolderID = rec.DriveFolderID
	if changed && existing.Status == types.ImportRecordImported {
		existing.Status = types.ImportRecordPending
	}
	*rec = *existing
	return false, r.db.WithContext(ctx).Save(existing).Error
}

func (r *importRepository) GetRecord(ctx context.Context, id string) (*types.ImportRecord, error) {
	var rec types.ImportRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *importRepository) GetRecordByPath(ctx context.Context, sourceID, path string) (*types.ImportRecord, error) {
	var rec types.ImportRecord
	err := r.db.WithContext(ctx).
		Where("import_source_id = ? AND source_path = ?", sourceID, path).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *importRepository) UpdateRecord(ctx context.Context, rec *types.ImportRecord) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *importRepository) ListRecords(ctx context.Context, sourceID string) ([]*types.ImportRecord, error) {
	var recs []*types.ImportRecord
	if err := r.db.WithContext(ctx).Where("import_source_id = ?", sourceID).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *importRepository) ListRecordsByStatus(ctx context.Context, sourceID string, status types.ImportRecordStatus) ([]*types.ImportRecord, error) {
	var recs []*types.ImportRecord
	q := r.db.WithContext(ctx).Where("status = ?", status)
	if sourceID != "" {
		q = q.Where("import_source_id = ?", sourceID)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// ListOrphanRecords returns imported records whose design_id no longer
// exists (spec §4.14 cleanup action 3).
func (r *importRepository) ListOrphanRecords(ctx context.Context) ([]*types.ImportRecord, error) {
	var recs []*types.ImportRecord
	err := r.db.WithContext(ctx).
		Where("design_id IS NOT NULL AND design_id NOT IN (?)",
			r.db.Model(&types.Design{}).Select("id")).
		Find(&recs).Error
	return recs, err
}

func (r *importRepository) CreateProfile(ctx context.Context, p *types.ImportProfile) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *importRepository) GetProfile(ctx context.Context, id string) (*types.ImportProfile, error) {
	var p types.ImportProfile
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// UpsertBuiltinProfile creates or updates a built-in profile row to match
// the shipped config (spec §4.5: "on every startup, built-in rows are
// created or updated ... user profiles are untouched").
func (r *importRepository) UpsertBuiltinProfile(ctx context.Context, p *types.ImportProfile) error {
	p.IsBuiltin = true
	p.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "config", "updated_at"}),
	}).Create(p).Error
}

func (r *importRepository) UpdateProfile(ctx context.Context, p *types.ImportProfile) error {
	if p.IsBuiltin {
		return errBuiltinImmutable
	}
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *importRepository) DeleteProfile(ctx context.Context, id string) error {
	p, err := r.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if p != nil && p.IsBuiltin {
		return errBuiltinImmutable
	}
	return r.db.WithContext(ctx).Delete(&types.ImportProfile{}, "id = ?", id).Error
}

func (r *importRepository) ListProfiles(ctx context.Context) ([]*types.ImportProfile, error) {
	var profiles []*types.ImportProfile
	if err := r.db.WithContext(ctx).Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

var errBuiltinImmutable = errors.New("store: built-in import profiles cannot be modified or deleted")
