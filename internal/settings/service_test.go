package settings

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/polyforge/polyforge/internal/config"
	"github.com/polyforge/polyforge/internal/store"
	"github.com/polyforge/polyforge/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Setting{}))
	repo := store.NewSettingsRepository(db)
	return NewService(repo, &config.Config{SyncPollInterval: 5 * time.Minute, AIRateLimitRPM: 15, AIMaxTagsPerDesign: 20, AISelectBestPreview: true})
}

func TestGetFallsBackThroughCacheDbEnvDefault(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	// no row, no env mapping for this key -> schema default
	v, err := svc.Get(ctx, "max_concurrent_downloads")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	// no row, but an env mapping exists for this key
	v, err = svc.Get(ctx, "ai_rate_limit_rpm")
	require.NoError(t, err)
	assert.Equal(t, 15, v)

	// unknown key entirely
	v, err = svc.Get(ctx, "nonexistent_key")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSetThenGetReturnsPersistedValue(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Set(ctx, "max_concurrent_downloads", 7))

	n, err := svc.GetInt(ctx, "max_concurrent_downloads")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestSetRejectsOutOfRangeValue(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	err := svc.Set(ctx, "max_concurrent_downloads", 99)
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSetRejectsWrongType(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	err := svc.Set(ctx, "sync_enabled", "not-a-bool")
	require.Error(t, err)
}

func TestSetLibraryTemplateRequiresTitleToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	err := svc.Set(ctx, "library_template_global", "{designer}/{channel}")
	require.Error(t, err)

	require.NoError(t, svc.Set(ctx, "library_template_global", "{designer}/{title}"))
}

func TestGetAllMergesDefaultsAndOverrides(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Set(ctx, "sync_batch_size", 250))

	all, err := svc.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250, all["sync_batch_size"])
	assert.Equal(t, 3, all["max_concurrent_downloads"])
}

func TestResetToDefaultsClearsOverridesAndCache(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Set(ctx, "max_concurrent_downloads", 9))
	n, err := svc.GetInt(ctx, "max_concurrent_downloads")
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	defaults, err := svc.ResetToDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, defaults["max_concurrent_downloads"])

	n, err = svc.GetInt(ctx, "max_concurrent_downloads")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "cache must be cleared so the cached override isn't served after reset")
}

func TestDeleteRevertsSingleKeyToDefault(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Set(ctx, "upload_max_size_mb", 900))
	deleted, err := svc.Delete(ctx, "upload_max_size_mb")
	require.NoError(t, err)
	assert.True(t, deleted)

	v, err := svc.Get(ctx, "upload_max_size_mb")
	require.NoError(t, err)
	assert.Equal(t, 500, v)

	deletedAgain, err := svc.Delete(ctx, "upload_max_size_mb")
	require.NoError(t, err)
	assert.False(t, deletedAgain)
}

func TestCacheServesWithinTTLWithoutHittingRepo(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	svc.ttl = time.Hour

	require.NoError(t, svc.Set(ctx, "max_concurrent_downloads", 5))
	n, err := svc.GetInt(ctx, "max_concurrent_downloads")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// simulate an external direct db change; the cache should still win
	require.NoError(t, svc.repo.Set(ctx, &types.Setting{Key: "max_concurrent_downloads", Value: "8", Type: types.SettingTypeInt}))
	n, err = svc.GetInt(ctx, "max_concurrent_downloads")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, ok := svc.fromCache("max_concurrent_downloads")
	assert.True(t, ok)
}
