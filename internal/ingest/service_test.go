package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/polyforge/polyforge/internal/store"
	"github.com/polyforge/polyforge/internal/types"
)

func newTestService(t *testing.T) (*Service, *types.Channel, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.Channel{}, &types.Message{}, &types.Attachment{},
		&types.Design{}, &types.DesignSource{}, &types.DesignFile{},
		&types.PreviewAsset{}, &types.DesignTag{}, &types.ExternalMetadataSource{},
	))

	channels := store.NewChannelRepository(db)
	designs := store.NewDesignRepository(db)

	channel := &types.Channel{ID: "ch1", PeerID: "peer1", Title: "Test Channel"}
	require.NoError(t, channels.Create(context.Background(), channel))

	return NewService(channels, designs), channel, db
}

func TestIngestMessageCreatesDesignForCandidateFile(t *testing.T) {
	svc, channel, db := newTestService(t)
	ctx := context.Background()

	msg, designID, err := svc.IngestMessage(ctx, channel, RawMessage{
		UpstreamMessageID: 100,
		PostedAt:          time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		AuthorLabel:       "alice",
		CaptionRaw:        "Articulated Dragon\n#3dprint #dragon",
		Attachments: []RawAttachment{
			{UpstreamFileID: "f1", Type: types.AttachmentDocument, Filename: "dragon.stl", SizeBytes: 2048},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, designID)
	assert.NotEmpty(t, msg.ID)
	assert.Contains(t, msg.CaptionNormalized, "articulated dragon")

	var design types.Design
	require.NoError(t, db.First(&design).Error)
	assert.Equal(t, "Articulated Dragon", design.Title)
	assert.Equal(t, types.DesignDiscovered, design.Status)
	assert.Equal(t, types.MulticolorUnknown, design.Multicolor)

	var source types.DesignSource
	require.NoError(t, db.First(&source).Error)
	assert.True(t, source.IsPreferred)
	assert.Equal(t, 1, source.Rank)
	require.NotNil(t, source.MessageID)
	assert.Equal(t, msg.ID, *source.MessageID)
}

func TestIngestMessageIsIdempotentOnUpstreamID(t *testing.T) {
	svc, channel, _ := newTestService(t)
	ctx := context.Background()

	raw := RawMessage{
		UpstreamMessageID: 200,
		CaptionRaw:        "Vase model",
		Attachments: []RawAttachment{
			{Filename: "vase.stl", SizeBytes: 500},
		},
	}

	first, designID, err := svc.IngestMessage(ctx, channel, raw)
	require.NoError(t, err)
	assert.NotEmpty(t, designID)

	second, designIDAgain, err := svc.IngestMessage(ctx, channel, raw)
	require.NoError(t, err)
	assert.Empty(t, designIDAgain)
	assert.Equal(t, first.ID, second.ID)
}

func TestIngestMessageWithoutDesignFileSkipsDesignCreation(t *testing.T) {
	svc, channel, db := newTestService(t)
	ctx := context.Background()

	_, designID, err := svc.IngestMessage(ctx, channel, RawMessage{
		UpstreamMessageID: 300,
		CaptionRaw:        "just chatting, no files here",
		Attachments: []RawAttachment{
			{Filename: "selfie.jpg", SizeBytes: 100},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, designID)

	var count int64
	require.NoError(t, db.Model(&types.Design{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestIngestMessageDetectsExternalLinks(t *testing.T) {
	svc, channel, _ := newTestService(t)
	ctx := context.Background()

	_, designID, err := svc.IngestMessage(ctx, channel, RawMessage{
		UpstreamMessageID: 400,
		CaptionRaw:        "Check out https://www.thangs.com/designer/someone/3d-model/Cool-Thing-123456",
		Attachments: []RawAttachment{
			{Filename: "thing.3mf", SizeBytes: 4096},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, designID)
}

func TestIngestMessageUsesFilenameFallbackForTitle(t *testing.T) {
	svc, channel, db := newTestService(t)
	ctx := context.Background()

	_, designID, err := svc.IngestMessage(ctx, channel, RawMessage{
		UpstreamMessageID: 500,
		CaptionRaw:        "",
		Attachments: []RawAttachment{
			{Filename: "Articulated_Dragon_v2.stl", SizeBytes: 8192},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, designID)

	var design types.Design
	require.NoError(t, db.First(&design).Error)
	assert.Equal(t, "Articulated_Dragon_v2", design.Title)
	assert.Equal(t, "STL", design.PrimaryFileTypes)
}

func TestIngestMessageUsesDateFallbackForTitle(t *testing.T) {
	svc, channel, db := newTestService(t)
	ctx := context.Background()

	_, designID, err := svc.IngestMessage(ctx, channel, RawMessage{
		UpstreamMessageID: 600,
		CaptionRaw:        "",
		PostedAt:          time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
		Attachments: []RawAttachment{
			{Filename: "a.stl", SizeBytes: 10},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, designID)

	var design types.Design
	require.NoError(t, db.First(&design).Error)
	assert.Equal(t, "Design from 2026-02-14", design.Title)
}
