package importprofile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// Service is the CRUD + detection facade over ImportRepository's profile
// methods (spec §4.5, §6 profile endpoints).
type Service struct {
	repo interfaces.ImportRepository
}

// NewService builds a Service over repo.
func NewService(repo interfaces.ImportRepository) *Service {
	return &Service{repo: repo}
}

// EnsureBuiltins seeds/updates the shipped profiles; called once at startup.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return SeedBuiltinProfiles(ctx, s.repo)
}

// Create validates configJSON against the derived schema, then persists a
// new user profile.
func (s *Service) Create(ctx context.Context, name, description string, configJSON []byte) (*types.ImportProfile, error) {
	if err := ValidateConfigJSON(configJSON); err != nil {
		return nil, polyerrors.NewInput(err)
	}

	var cfg types.ImportProfileConfig
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return nil, polyerrors.NewInput(fmt.Errorf("decode profile config: %w", err))
	}

	profile := &types.ImportProfile{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Config:      cfg,
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	logger.Info(ctx, "import_profile_created", "profile_id", profile.ID, "name", name)
	return profile, nil
}

// Update validates and replaces a non-builtin profile's config.
func (s *Service) Update(ctx context.Context, id, name, description string, configJSON []byte) (*types.ImportProfile, error) {
	profile, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, polyerrors.NewInput(fmt.Errorf("profile %s not found", id))
	}
	if profile.IsBuiltin {
		return nil, polyerrors.NewInput(fmt.Errorf("profile %s is built-in and cannot be modified", id))
	}

	if len(configJSON) > 0 {
		if err := ValidateConfigJSON(configJSON); err != nil {
			return nil, polyerrors.NewInput(err)
		}
		var cfg types.ImportProfileConfig
		if err := json.Unmarshal(configJSON, &cfg); err != nil {
			return nil, polyerrors.NewInput(fmt.Errorf("decode profile config: %w", err))
		}
		profile.Config = cfg
	}
	if name != "" {
		profile.Name = name
	}
	if description != "" {
		profile.Description = description
	}

	if err := s.repo.UpdateProfile(ctx, profile); err != nil {
		return nil, err
	}
	logger.Info(ctx, "import_profile_updated", "profile_id", id)
	return profile, nil
}

// Delete removes a non-builtin profile.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteProfile(ctx, id)
}

// List returns every profile, built-in and user-created.
func (s *Service) List(ctx context.Context) ([]*types.ImportProfile, error) {
	return s.repo.ListProfiles(ctx)
}

// ConfigFor returns the ImportProfileConfig for profileID, or the built-in
// "standard" default when profileID is empty or unknown.
func (s *Service) ConfigFor(ctx context.Context, profileID string) (types.ImportProfileConfig, error) {
	if profileID == "" {
		return DefaultConfig(), nil
	}
	profile, err := s.repo.GetProfile(ctx, profileID)
	if err != nil {
		return types.ImportProfileConfig{}, err
	}
	if profile == nil {
		return DefaultConfig(), nil
	}
	return profile.Config, nil
}
