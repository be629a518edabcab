package workers

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/polyforge/polyforge/internal/duplicate"
	"github.com/polyforge/polyforge/internal/library"
	"github.com/polyforge/polyforge/internal/store"
	"github.com/polyforge/polyforge/internal/types"
)

func newWorkerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Design{}, &types.DesignSource{}, &types.DesignFile{},
		&types.PreviewAsset{}, &types.DesignTag{}, &types.ExternalMetadataSource{},
		&types.Channel{}, &types.Message{}, &types.Attachment{}, &types.DuplicateCandidate{}))
	return db
}

func TestImportToLibraryWorkerMovesFiles(t *testing.T) {
	ctx := context.Background()
	db := newWorkerTestDB(t)
	designRepo := store.NewDesignRepository(db)
	channelRepo := store.NewChannelRepository(db)

	root := t.TempDir()
	stagingRoot := filepath.Join(root, "staging")
	libraryRoot := filepath.Join(root, "library")

	require.NoError(t, designRepo.Create(ctx, &types.Design{ID: "design-1", Title: "Cool Vase", Designer: "Jane Doe", Status: types.DesignExtracted}))
	stagingDir := filepath.Join(stagingRoot, "design-1")
	require.NoError(t, os.MkdirAll(stagingDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stagingDir, "vase.stl"), []byte("data"), 0o644))
	require.NoError(t, designRepo.CreateFile(ctx, &types.DesignFile{
		ID: "f1", DesignID: "design-1", RelativePath: "vase.stl", Filename: "vase.stl",
		Ext: ".stl", SizeBytes: 4, SHA256: "abc", Kind: types.FileKindModel,
	}))

	imp := library.NewImporter(designRepo, channelRepo, libraryRoot, stagingRoot, nil)
	dupRepo := store.NewDuplicateRepository(db)
	w := NewImportToLibraryWorker(designRepo, duplicate.NewService(designRepo, dupRepo), imp)

	assert.Equal(t, []types.JobType{types.JobImportToLibrary}, w.JobTypes())

	payload, err := json.Marshal(ImportToLibraryPayload{DesignID: "design-1"})
	require.NoError(t, err)

	result, err := w.Process(ctx, &types.Job{ID: "job-1", Type: types.JobImportToLibrary}, payload)
	require.NoError(t, err)

	res, ok := result.(*library.Result)
	require.True(t, ok)
	assert.Equal(t, 1, res.FilesImported)

	design, err := designRepo.Get(ctx, "design-1")
	require.NoError(t, err)
	assert.Equal(t, types.DesignOrganized, design.Status)
}

func TestImportToLibraryWorkerFallsBackToJobDesignID(t *testing.T) {
	ctx := context.Background()
	db := newWorkerTestDB(t)
	designRepo := store.NewDesignRepository(db)
	channelRepo := store.NewChannelRepository(db)

	root := t.TempDir()
	require.NoError(t, designRepo.Create(ctx, &types.Design{ID: "design-2", Title: "Empty", Designer: "X"}))

	imp := library.NewImporter(designRepo, channelRepo, filepath.Join(root, "library"), filepath.Join(root, "staging"), nil)
	dupRepo := store.NewDuplicateRepository(db)
	w := NewImportToLibraryWorker(designRepo, duplicate.NewService(designRepo, dupRepo), imp)

	designID := "design-2"
	result, err := w.Process(ctx, &types.Job{ID: "job-2", Type: types.JobImportToLibrary, DesignID: &designID}, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 0, result.(*library.Result).FilesImported)
}
