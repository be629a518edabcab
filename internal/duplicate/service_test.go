package duplicate

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
	require.NoError(t, db.AutoMigrate(
		&types.Design{}, &types.DesignSource{}, &types.DesignFile{},
		&types.PreviewAsset{}, &types.DesignTag{}, &types.ExternalMetadataSource{},
		&types.DuplicateCandidate{},
	))

	designs := store.NewDesignRepository(db)
	duplicates := store.NewDuplicateRepository(db)
	return NewService(designs, duplicates), db
}

func TestFindDuplicatesByHash(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	existing := &types.Design{ID: "d1", Title: "Vase", Designer: "Jane"}
	require.NoError(t, svc.designs.Create(ctx, existing))
	require.NoError(t, svc.designs.CreateFile(ctx, &types.DesignFile{
		ID: "f1", DesignID: "d1", Filename: "vase.stl", SizeBytes: 1000, SHA256: "abc123",
	}))

	newDesign := &types.Design{ID: "d2", Title: "Vase Copy", Designer: "Someone Else"}
	require.NoError(t, svc.designs.Create(ctx, newDesign))
	require.NoError(t, svc.designs.CreateFile(ctx, &types.DesignFile{
		ID: "f2", DesignID: "d2", Filename: "vase2.stl", SizeBytes: 1000, SHA256: "abc123",
	}))

	candidates, err := svc.FindDuplicates(ctx, newDesign)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, types.DuplicateMatchHash, candidates[0].MatchType)
	assert.Equal(t, "d1", candidates[0].DesignBID)
	assert.Equal(t, 1.0, candidates[0].Confidence)
}

func TestFindDuplicatesByFuzzyTitleDesigner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	existing := &types.Design{ID: "d1", Title: "Articulated Dragon", Designer: "Jane Doe"}
	require.NoError(t, svc.designs.Create(ctx, existing))

	newDesign := &types.Design{ID: "d2", Title: "Articulated Dragn", Designer: "Jane Do"}
	require.NoError(t, svc.designs.Create(ctx, newDesign))

	candidates, err := svc.FindDuplicates(ctx, newDesign)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, types.DuplicateMatchFuzzyTitle, candidates[0].MatchType)
}

func TestFindDuplicatesNoDoubleCountingAcrossSignals(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	existing := &types.Design{ID: "d1", Title: "Vase", Designer: "Jane"}
	require.NoError(t, svc.designs.Create(ctx, existing))
	require.NoError(t, svc.designs.CreateFile(ctx, &types.DesignFile{
		ID: "f1", DesignID: "d1", Filename: "vase.stl", SizeBytes: 1000, SHA256: "abc123",
	}))

	newDesign := &types.Design{ID: "d2", Title: "Vase", Designer: "Jane"}
	require.NoError(t, svc.designs.Create(ctx, newDesign))
	require.NoError(t, svc.designs.CreateFile(ctx, &types.DesignFile{
		ID: "f2", DesignID: "d2", Filename: "vase.stl", SizeBytes: 1000, SHA256: "abc123",
	}))

	candidates, err := svc.FindDuplicates(ctx, newDesign)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, types.DuplicateMatchHash, candidates[0].MatchType)
}

func TestProcessDuplicatesAutoMergesHighConfidence(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	target := &types.Design{ID: "d1", Title: "Vase", Designer: "Jane", Status: types.DesignOrganized}
	require.NoError(t, svc.designs.Create(ctx, target))
	require.NoError(t, svc.designs.CreateFile(ctx, &types.DesignFile{
		ID: "f1", DesignID: "d1", Filename: "vase.stl", SizeBytes: 1000, SHA256: "abc123",
	}))

	source := &types.Design{ID: "d2", Title: "", Designer: "", Status: types.DesignDiscovered}
	require.NoError(t, svc.designs.Create(ctx, source))
	require.NoError(t, svc.designs.CreateFile(ctx, &types.DesignFile{
		ID: "f2", DesignID: "d2", Filename: "vase2.stl", SizeBytes: 1000, SHA256: "abc123",
	}))

	merged, result, err := svc.ProcessDuplicates(ctx, source)
	require.NoError(t, err)
	assert.True(t, merged)
	require.NotNil(t, result)
	assert.Equal(t, "d1", result.ID)

	survivor, err := svc.designs.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), survivor.TotalSizeBytes)

	gone, err := svc.designs.Get(ctx, "d2")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestProcessDuplicatesPersistsPendingCandidatesWhenBelowThreshold(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	existing := &types.Design{ID: "d1", Title: "Articulated Dragon", Designer: "Jane Doe"}
	require.NoError(t, svc.designs.Create(ctx, existing))

	newDesign := &types.Design{ID: "d2", Title: "Articulated Dragn", Designer: "Jane Do"}
	require.NoError(t, svc.designs.Create(ctx, newDesign))

	merged, result, err := svc.ProcessDuplicates(ctx, newDesign)
	require.NoError(t, err)
	assert.False(t, merged)
	assert.Nil(t, result)

	pending, err := svc.duplicates.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestCheckPreDownloadMatchesByFilenameSize(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	existing := &types.Design{ID: "d1", Title: "Vase"}
	require.NoError(t, svc.designs.Create(ctx, existing))
	require.NoError(t, svc.designs.CreateFile(ctx, &types.DesignFile{
		ID: "f1", DesignID: "d1", Filename: "vase.stl", SizeBytes: 1000,
	}))

	matched, matchType, confidence, match, err := svc.CheckPreDownload(ctx, "", "", []FileHint{
		{Filename: "vase.stl", Size: 1005},
	}, "")
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, types.DuplicateMatchFilename, matchType)
	assert.Equal(t, 0.5, confidence)
	require.NotNil(t, match)
	assert.Equal(t, "d1", match.ID)
}

func TestCheckPreDownloadExcludesSelf(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	self := &types.Design{ID: "d-self", Title: "Cool Vase", Designer: "Jane Doe"}
	require.NoError(t, svc.designs.Create(ctx, self))

	matched, _, _, match, err := svc.CheckPreDownload(ctx, "Cool Vase", "Jane Doe", nil, "d-self")
	require.NoError(t, err)
	assert.False(t, matched)
	assert.Nil(t, match)
}

func TestCheckPreDownloadNoMatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	matched, _, _, match, err := svc.CheckPreDownload(ctx, "Nothing", "Nobody", nil, "")
	require.NoError(t, err)
	assert.False(t, matched)
	assert.Nil(t, match)
}
