package importprofile

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/polyforge/polyforge/internal/store"
	"github.com/polyforge/polyforge/internal/types"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.ImportProfile{}, &types.ImportSource{}, &types.ImportRecord{}, &types.Design{}))
	repo := store.NewImportRepository(db)
	return NewService(repo), db
}

func TestEnsureBuiltinsCreatesAllProfiles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureBuiltins(ctx))

	profiles, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, len(builtinProfiles))
	for _, p := range profiles {
		assert.True(t, p.IsBuiltin)
	}
}

func TestEnsureBuiltinsIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureBuiltins(ctx))
	require.NoError(t, svc.EnsureBuiltins(ctx))

	profiles, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, len(builtinProfiles))
}

func TestCreateUserProfileValidatesConfig(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "Bad Profile", "", []byte(`{not valid json`))
	assert.Error(t, err)
}

func TestCreateAndUpdateUserProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	configJSON := []byte(`{"detection":{"model_extensions":[".stl"],"archive_extensions":[],"min_model_files":1,"structure":"flat"},"title":{"source":"folder_name","case_transform":"none"},"preview":{"include_root":true},"ignore":{},"auto_tags":{}}`)
	profile, err := svc.Create(ctx, "My Profile", "custom", configJSON)
	require.NoError(t, err)
	assert.False(t, profile.IsBuiltin)

	updated, err := svc.Update(ctx, profile.ID, "My Profile Renamed", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "My Profile Renamed", updated.Name)
}

func TestUpdateRejectsBuiltin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.EnsureBuiltins(ctx))

	_, err := svc.Update(ctx, "standard", "Hacked", "", nil)
	assert.Error(t, err)
}

func TestConfigForFallsBackToStandard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.ConfigFor(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = svc.ConfigFor(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
