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

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository builds the gorm-backed SettingsRepository.
func NewSettingsRepository(db *gorm.DB) interfaces.SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (*types.Setting, error) {
	var s types.Setting
	if err := r.db.WithContext(ctx).First(&s, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepository) Set(ctx context.Context, s *types.Setting) error {
	s.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "type", "min", "max", "default", "restart_required", "updated_at"}),
	}).Create(s).Error
}

func (r *settingsRepository) List(ctx context.Context) ([]*types.Setting, error) {
	var list []*types.Setting
	if err := r.db.WithContext(ctx).Order("key asc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *settingsRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Delete(&types.Setting{}, "key = ?", key).Error
}
