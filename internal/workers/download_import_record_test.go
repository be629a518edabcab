package workers

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/polyforge/polyforge/internal/duplicate"
	"github.com/polyforge/polyforge/internal/jobqueue"
	"github.com/polyforge/polyforge/internal/scanners/clouddrive"
	"github.com/polyforge/polyforge/internal/store"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

type fakeRecordDriveClient struct {
	folderContents map[string][]clouddrive.DriveFile
	fileBodies     map[string]string
}

func (f *fakeRecordDriveClient) GetFolder(ctx context.Context, folderID string) (*clouddrive.DriveFile, error) {
	return &clouddrive.DriveFile{ID: folderID, Name: folderID}, nil
}
func (f *fakeRecordDriveClient) ListFolderPage(ctx context.Context, folderID, pageToken string) ([]clouddrive.DriveFile, string, error) {
	return f.folderContents[folderID], "", nil
}
func (f *fakeRecordDriveClient) GetStartPageToken(ctx context.Context) (string, error) { return "", nil }
func (f *fakeRecordDriveClient) ListChanges(ctx context.Context, pageToken string) ([]string, string, error) {
	return nil, "", nil
}
func (f *fakeRecordDriveClient) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.fileBodies[fileID])), nil
}

func newImportRecordTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.ImportSource{}, &types.ImportRecord{}, &types.ImportProfile{},
		&types.Design{}, &types.DesignSource{}, &types.DesignFile{}, &types.PreviewAsset{},
		&types.DesignTag{}, &types.ExternalMetadataSource{}, &types.Job{}, &types.DuplicateCandidate{}))
	return db
}

func TestDownloadImportRecordWorkerDownloadsFolderAndCreatesDesign(t *testing.T) {
	ctx := context.Background()
	db := newImportRecordTestDB(t)
	importRepo := store.NewImportRepository(db)
	designRepo := store.NewDesignRepository(db)
	queue := jobqueue.New(db, nil, nil)

	source := &types.ImportSource{ID: "src-1", Type: types.ImportSourceGoogleDrive, DefaultDesigner: "Jane"}
	require.NoError(t, importRepo.CreateSource(ctx, source))
	record := &types.ImportRecord{
		ID: "rec-1", ImportSourceID: "src-1", SourcePath: "Cool Vase", DetectedTitle: "Cool Vase",
		DriveFolderID: "folder-1", SizeBytes: 0,
	}
	require.NoError(t, importRepo.CreateSource(ctx, source))
	_, err := importRepo.UpsertRecord(ctx, record)
	require.NoError(t, err)

	drive := &fakeRecordDriveClient{
		folderContents: map[string][]clouddrive.DriveFile{
			"folder-1": {{ID: "file-stl", Name: "vase.stl"}},
		},
		fileBodies: map[string]string{"file-stl": "stl-bytes"},
	}

	root := t.TempDir()
	dupSvc := duplicate.NewService(designRepo, store.NewDuplicateRepository(db))
	w := NewDownloadImportRecordWorker(importRepo, designRepo, drive, queue, dupSvc, root)

	payload, _ := json.Marshal(DownloadImportRecordPayload{ImportRecordID: "rec-1"})
	result, err := w.Process(ctx, &types.Job{ID: "job-1", Type: types.JobDownloadImportRecord}, payload)
	require.NoError(t, err)

	res := result.(map[string]any)
	designID := res["design_id"].(string)
	assert.NotEmpty(t, designID)

	design, err := designRepo.GetWithRelations(ctx, designID)
	require.NoError(t, err)
	assert.Equal(t, types.DesignDownloaded, design.Status)
	require.Len(t, design.Files, 1)
	assert.Equal(t, "vase.stl", design.Files[0].Filename)
	assert.FileExists(t, filepath.Join(root, designID, "vase.stl"))

	updatedRecord, err := importRepo.GetRecord(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, types.ImportRecordImported, updatedRecord.Status)
	require.NotNil(t, updatedRecord.DesignID)
	assert.Equal(t, designID, *updatedRecord.DesignID)

	stats, err := queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ByType[types.JobImportToLibrary])
	assert.Equal(t, int64(1), stats.ByType[types.JobGenerateRender])
}

func TestDownloadImportRecordWorkerLinksDuplicateWithoutDownloading(t *testing.T) {
	ctx := context.Background()
	db := newImportRecordTestDB(t)
	importRepo := store.NewImportRepository(db)
	designRepo := store.NewDesignRepository(db)
	queue := jobqueue.New(db, nil, nil)

	existing := &types.Design{ID: "design-existing", Title: "Cool Vase"}
	require.NoError(t, designRepo.Create(ctx, existing))
	require.NoError(t, designRepo.CreateFile(ctx, &types.DesignFile{
		ID: "f1", DesignID: "design-existing", Filename: "Cool Vase", SizeBytes: 1000, SHA256: "x",
	}))

	source := &types.ImportSource{ID: "src-2", Type: types.ImportSourceGoogleDrive}
	require.NoError(t, importRepo.CreateSource(ctx, source))
	record := &types.ImportRecord{
		ID: "rec-2", ImportSourceID: "src-2", SourcePath: "Cool Vase", DetectedTitle: "Cool Vase",
		DriveFolderID: "folder-2", SizeBytes: 1000,
	}
	_, err := importRepo.UpsertRecord(ctx, record)
	require.NoError(t, err)

	drive := &fakeRecordDriveClient{}
	dupSvc := duplicate.NewService(designRepo, store.NewDuplicateRepository(db))
	w := NewDownloadImportRecordWorker(importRepo, designRepo, drive, queue, dupSvc, t.TempDir())

	payload, _ := json.Marshal(DownloadImportRecordPayload{ImportRecordID: "rec-2"})
	result, err := w.Process(ctx, &types.Job{ID: "job-2", Type: types.JobDownloadImportRecord}, payload)
	require.NoError(t, err)

	res := result.(map[string]any)
	assert.Equal(t, true, res["linked_existing"])
	assert.Equal(t, "design-existing", res["design_id"])
}
