package store

import (
	"context"

	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
	"gorm.io/gorm"
)

type duplicateRepository struct {
	db *gorm.DB
}

// NewDuplicateRepository builds the gorm-backed DuplicateRepository.
func NewDuplicateRepository(db *gorm.DB) interfaces.DuplicateRepository {
	return &duplicateRepository{db: db}
}

func (r *duplicateRepository) Create(ctx context.Context, c *types.DuplicateCandidate) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *duplicateRepository) ListPending(ctx context.Context) ([]*types.DuplicateCandidate, error) {
	var list []*types.DuplicateCandidate
	err := r.db.WithContext(ctx).
		Where("status = ?", types.DuplicatePending).
		Order("confidence desc").
		Find(&list).Error
	return list, err
}

func (r *duplicateRepository) Update(ctx context.Context, c *types.DuplicateCandidate) error {
	return r.db.WithContext(ctx).Save(c).Error
}
