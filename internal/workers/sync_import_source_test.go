package workers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/polyforge/polyforge/internal/store"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

type fakeScanner struct {
	designs []interfaces.DetectedDesign
	err     error
}

func (f *fakeScanner) Scan(ctx context.Context, source *types.ImportSource) ([]interfaces.DetectedDesign, error) {
	return f.designs, f.err
}

func newImportTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.ImportSource{}, &types.ImportRecord{}, &types.ImportProfile{}))
	return db
}

func TestSyncImportSourceWorkerCreatesRecords(t *testing.T) {
	ctx := context.Background()
	db := newImportTestDB(t)
	repo := store.NewImportRepository(db)

	source := &types.ImportSource{ID: "src-1", Type: types.ImportSourceBulkFolder, SyncEnabled: true, Status: types.ImportSourceActive}
	require.NoError(t, repo.CreateSource(ctx, source))

	scanner := &fakeScanner{designs: []interfaces.DetectedDesign{
		{RelativePath: "vase.zip", Title: "Vase", SizeBytes: 100, Mtime: time.Now()},
	}}
	w := NewSyncImportSourceWorker(repo, map[types.ImportSourceType]interfaces.Scanner{
		types.ImportSourceBulkFolder: scanner,
	})

	payload, err := json.Marshal(SyncImportSourcePayload{SourceID: "src-1"})
	require.NoError(t, err)

	result, err := w.Process(ctx, &types.Job{ID: "job-1", Type: types.JobSyncImportSource}, payload)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"designs_detected": 1, "records_upserted": 1}, result)

	records, err := repo.ListRecords(ctx, "src-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "vase.zip", records[0].SourcePath)

	updated, err := repo.GetSource(ctx, "src-1")
	require.NoError(t, err)
	assert.NotNil(t, updated.LastSyncAt)
	assert.Empty(t, updated.LastError)
}

func TestSyncImportSourceWorkerRecordsScanError(t *testing.T) {
	ctx := context.Background()
	db := newImportTestDB(t)
	repo := store.NewImportRepository(db)

	source := &types.ImportSource{ID: "src-2", Type: types.ImportSourcePHPBB, SyncEnabled: true, Status: types.ImportSourceActive}
	require.NoError(t, repo.CreateSource(ctx, source))

	scanner := &fakeScanner{err: assert.AnError}
	w := NewSyncImportSourceWorker(repo, map[types.ImportSourceType]interfaces.Scanner{
		types.ImportSourcePHPBB: scanner,
	})

	payload, _ := json.Marshal(SyncImportSourcePayload{SourceID: "src-2"})
	_, err := w.Process(ctx, &types.Job{ID: "job-2", Type: types.JobSyncImportSource}, payload)
	require.Error(t, err)

	updated, err := repo.GetSource(ctx, "src-2")
	require.NoError(t, err)
	assert.NotEmpty(t, updated.LastError)
}

func TestSyncImportSourceWorkerUnknownTypeIsInputError(t *testing.T) {
	ctx := context.Background()
	db := newImportTestDB(t)
	repo := store.NewImportRepository(db)

	source := &types.ImportSource{ID: "src-3", Type: types.ImportSourceGoogleDrive, SyncEnabled: true, Status: types.ImportSourceActive}
	require.NoError(t, repo.CreateSource(ctx, source))

	w := NewSyncImportSourceWorker(repo, map[types.ImportSourceType]interfaces.Scanner{})

	payload, _ := json.Marshal(SyncImportSourcePayload{SourceID: "src-3"})
	_, err := w.Process(ctx, &types.Job{ID: "job-3", Type: types.JobSyncImportSource}, payload)
	require.Error(t, err)
}

func TestSyncImportSourceWorkerMissingSourceIDIsInputError(t *testing.T) {
	ctx := context.Background()
	db := newImportTestDB(t)
	repo := store.NewImportRepository(db)

	w := NewSyncImportSourceWorker(repo, map[types.ImportSourceType]interfaces.Scanner{})
	_, err := w.Process(ctx, &types.Job{ID: "job-4", Type: types.JobSyncImportSource}, json.RawMessage(`{}`))
	require.Error(t, err)
}
