package store

import (
	"context"
	"errors"
	"time"

	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
	"gorm.io/gorm"
)

type credentialsRepository struct {
	db *gorm.DB
}

// NewCredentialsRepository builds the gorm-backed CredentialsRepository.
func NewCredentialsRepository(db *gorm.DB) interfaces.CredentialsRepository {
	return &credentialsRepository{db: db}
}

func (r *credentialsRepository) Upsert(ctx context.Context, c *types.Credential) error {
	existing, err := r.Get(ctx, c.Provider, c.RefID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if existing == nil {
		c.CreatedAt = now
		c.UpdatedAt = now
		return r.db.WithContext(ctx).Create(c).Error
	}
	existing.CiphertextB64 = c.CiphertextB64
	existing.ExpiresAt = c.ExpiresAt
	existing.UpdatedAt = now
	*c = *existing
	return r.db.WithContext(ctx).Save(existing).Error
}

func (r *credentialsRepository) Get(ctx context.Context, provider types.CredentialProvider, refID string) (*types.Credential, error) {
	var c types.Credential
	err := r.db.WithContext(ctx).
		Where("provider = ? AND ref_id = ?", provider, refID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *credentialsRepository) Delete(ctx context.Context, provider types.CredentialProvider, refID string) error {
	return r.db.WithContext(ctx).
		Where("provider = ? AND ref_id = ?", provider, refID).
		Delete(&types.Credential{}).Error
}
