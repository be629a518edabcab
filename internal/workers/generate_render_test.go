package workers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/polyforge/polyforge/internal/preview"
	"github.com/polyforge/polyforge/internal/store"
	"github.com/polyforge/polyforge/internal/types"
)

func newRenderTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Design{}, &types.DesignSource{}, &types.DesignFile{},
		&types.PreviewAsset{}, &types.DesignTag{}, &types.ExternalMetadataSource{}))
	return db
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeThreeMF(t *testing.T, path string, thumbPath string, thumbData []byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	w, err := zw.Create(thumbPath)
	require.NoError(t, err)
	_, err = w.Write(thumbData)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func TestGenerateRenderWorkerExtracts3MFThumbnail(t *testing.T) {
	ctx := context.Background()
	db := newRenderTestDB(t)
	designs := store.NewDesignRepository(db)
	libraryRoot := t.TempDir()
	previews := preview.NewService(designs, t.TempDir())

	design := &types.Design{ID: "design-1", Title: "Gear"}
	require.NoError(t, designs.Create(ctx, design))

	designDir := filepath.Join(libraryRoot, design.ID)
	require.NoError(t, os.MkdirAll(designDir, 0o755))
	writeThreeMF(t, filepath.Join(designDir, "gear.3mf"), "Metadata/thumbnail.png", pngBytes(t))

	require.NoError(t, designs.CreateFile(ctx, &types.DesignFile{
		ID: "f1", DesignID: design.ID, RelativePath: "gear.3mf", Filename: "gear.3mf",
		Ext: ".3mf", Kind: types.FileKindModel, ModelKind: types.ModelKind3MF, SizeBytes: 100,
	}))

	w := NewGenerateRenderWorker(designs, previews, nil, libraryRoot, "definitely-not-a-real-binary-xyz")
	payload, _ := json.Marshal(GenerateRenderPayload{DesignID: design.ID})
	result, err := w.Process(ctx, &types.Job{ID: "job-1", Type: types.JobGenerateRender}, payload)
	require.NoError(t, err)

	res := result.(map[string]any)
	assert.Equal(t, 1, res["renders"])
	assert.Equal(t, "gear.3mf", res["threemf_file"])

	list, err := designs.ListPreviews(ctx, design.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsPrimary)
	assert.Equal(t, types.PreviewSourceEmbedded3MF, list[0].Source)
}

func TestGenerateRenderWorkerNoModelFiles(t *testing.T) {
	ctx := context.Background()
	db := newRenderTestDB(t)
	designs := store.NewDesignRepository(db)
	previews := preview.NewService(designs, t.TempDir())

	design := &types.Design{ID: "design-2", Title: "Empty"}
	require.NoError(t, designs.Create(ctx, design))

	w := NewGenerateRenderWorker(designs, previews, nil, t.TempDir(), "definitely-not-a-real-binary-xyz")
	payload, _ := json.Marshal(GenerateRenderPayload{DesignID: design.ID})
	result, err := w.Process(ctx, &types.Job{ID: "job-2", Type: types.JobGenerateRender}, payload)
	require.NoError(t, err)

	res := result.(map[string]any)
	assert.Equal(t, 0, res["renders"])
}

func TestGenerateRenderWorkerMissingDesignIDIsInputError(t *testing.T) {
	ctx := context.Background()
	db := newRenderTestDB(t)
	designs := store.NewDesignRepository(db)
	previews := preview.NewService(designs, t.TempDir())

	w := NewGenerateRenderWorker(designs, previews, nil, t.TempDir(), "")
	_, err := w.Process(ctx, &types.Job{ID: "job-3", Type: types.JobGenerateRender}, []byte(`{}`))
	require.Error(t, err)
}
