package preview

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/polyforge/polyforge/internal/store"
	"github.com/polyforge/polyforge/internal/types"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Design{}, &types.PreviewAsset{}))

	repo := store.NewDesignRepository(db)
	require.NoError(t, repo.Create(context.Background(), &types.Design{ID: "design-1", Title: "Widget"}))

	return NewService(repo, t.TempDir()), "design-1"
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSaveWritesFileAndRecord(t *testing.T) {
	svc, designID := newTestService(t)
	ctx := context.Background()

	data := pngBytes(t, 10, 20)
	preview, err := svc.Save(ctx, designID, types.PreviewSourceTelegram, data, SaveOptions{Filename: "photo.png"})
	require.NoError(t, err)

	assert.Equal(t, 10, preview.Width)
	assert.Equal(t, 20, preview.Height)
	assert.Equal(t, ".png", filepath.Ext(preview.RelativePath))
	assert.Contains(t, preview.RelativePath, "telegram")
	assert.Contains(t, preview.RelativePath, designID)

	abs, err := svc.ResolveServingPath(preview.RelativePath)
	require.NoError(t, err)
	assert.FileExists(t, abs)
}

func TestSaveForcesUnknownExtensionToJPG(t *testing.T) {
	svc, designID := newTestService(t)
	ctx := context.Background()

	preview, err := svc.Save(ctx, designID, types.PreviewSourceArchive, []byte("not really an image"), SaveOptions{Filename: "cover.bmp"})
	require.NoError(t, err)
	assert.Equal(t, ".jpg", filepath.Ext(preview.RelativePath))
}

func TestAutoSelectPrimaryPrefersRenderedOverTelegram(t *testing.T) {
	svc, designID := newTestService(t)
	ctx := context.Background()

	tg, err := svc.Save(ctx, designID, types.PreviewSourceTelegram, pngBytes(t, 1, 1), SaveOptions{Filename: "a.png"})
	require.NoError(t, err)
	rendered, err := svc.Save(ctx, designID, types.PreviewSourceRendered, pngBytes(t, 1, 1), SaveOptions{Filename: "b.png"})
	require.NoError(t, err)

	best, err := svc.AutoSelectPrimary(ctx, designID)
	require.NoError(t, err)
	assert.Equal(t, rendered.ID, best.ID)
	assert.True(t, best.IsPrimary)

	_ = tg
}

func TestAutoSelectPrimaryNoPreviews(t *testing.T) {
	svc, designID := newTestService(t)
	best, err := svc.AutoSelectPrimary(context.Background(), designID)
	require.NoError(t, err)
	assert.Nil(t, best)
}

func TestResolveServingPathRejectsTraversal(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ResolveServingPath("../../etc/passwd")
	assert.Error(t, err)
}

func TestResolveServingPathRejectsMissingFile(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ResolveServingPath("telegram/design-1/does-not-exist.jpg")
	assert.Error(t, err)
}

func TestSetPrimarySwitchesBetweenPreviews(t *testing.T) {
	svc, designID := newTestService(t)
	ctx := context.Background()

	first, err := svc.Save(ctx, designID, types.PreviewSourceTelegram, pngBytes(t, 1, 1), SaveOptions{Filename: "a.png"})
	require.NoError(t, err)
	second, err := svc.Save(ctx, designID, types.PreviewSourceArchive, pngBytes(t, 1, 1), SaveOptions{Filename: "b.png"})
	require.NoError(t, err)

	require.NoError(t, svc.SetPrimary(ctx, designID, first.ID))
	require.NoError(t, svc.SetPrimary(ctx, designID, second.ID))

	previews, err := svc.designs.ListPreviews(ctx, designID)
	require.NoError(t, err)
	for _, p := range previews {
		if p.ID == second.ID {
			assert.True(t, p.IsPrimary)
		} else {
			assert.False(t, p.IsPrimary)
		}
	}
}
