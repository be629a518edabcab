package sync

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/polyforge/polyforge/internal/chatclient"
	"github.com/polyforge/polyforge/internal/discovery"
	"github.com/polyforge/polyforge/internal/ingest"
	"github.com/polyforge/polyforge/internal/jobqueue"
	"github.com/polyforge/polyforge/internal/store"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

func newSyncTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.Channel{}, &types.Message{}, &types.Attachment{},
		&types.Design{}, &types.DesignSource{}, &types.DesignFile{},
		&types.PreviewAsset{}, &types.DesignTag{}, &types.ExternalMetadataSource{},
		&types.DiscoveredChannel{}, &types.Job{},
	))
	return db
}

func newTestService(t *testing.T) (*Service, *chatclient.Fake, interfaces.ChannelRepository, *jobqueue.Queue) {
	t.Helper()
	db := newSyncTestDB(t)
	channels := store.NewChannelRepository(db)
	designs := store.NewDesignRepository(db)
	discovered := store.NewDiscoveredChannelRepository(db)
	queue := jobqueue.New(db, nil, nil)
	fake := chatclient.NewFake()

	svc := NewService(fake, channels, designs,
		ingest.NewService(channels, designs),
		discovery.NewService(channels, discovered),
		queue, 20*time.Millisecond)
	return svc, fake, channels, queue
}

func TestIngestOneCreatesDesignAndQueuesDownloadForAutoMode(t *testing.T) {
	svc, _, channels, queue := newTestService(t)
	ctx := context.Background()

	channel := &types.Channel{ID: "ch1", PeerID: "100", Title: "AutoChan", Enabled: true, DownloadMode: types.DownloadModeDownloadAll}
	require.NoError(t, channels.Create(ctx, channel))

	msg := &interfaces.ChatMessage{
		UpstreamID: 1,
		PeerID:     "100",
		CaptionRaw: "Cool Vase",
		Attachments: []interfaces.ChatAttachment{
			{UpstreamFileID: "f1", Type: "DOCUMENT", Filename: "vase.stl", SizeBytes: 1024},
		},
	}

	require.NoError(t, svc.ingestOne(ctx, channel, msg))

	updated, err := channels.Get(ctx, channel.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.LastIngestedMessageID)
	require.NotNil(t, updated.LastSyncAt)

	stats, err := queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ByType[types.JobDownloadDesign])
}

func TestIngestOneSkipsAutoDownloadInManualMode(t *testing.T) {
	svc, _, channels, queue := newTestService(t)
	ctx := context.Background()

	channel := &types.Channel{ID: "ch2", PeerID: "200", Title: "ManualChan", Enabled: true, DownloadMode: types.DownloadModeManual}
	require.NoError(t, channels.Create(ctx, channel))

	msg := &interfaces.ChatMessage{
		UpstreamID: 1,
		PeerID:     "200",
		CaptionRaw: "Another Vase",
		Attachments: []interfaces.ChatAttachment{
			{UpstreamFileID: "f2", Type: "DOCUMENT", Filename: "vase2.stl", SizeBytes: 1024},
		},
	}

	require.NoError(t, svc.ingestOne(ctx, channel, msg))

	stats, err := queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.ByType[types.JobDownloadDesign])
}

func TestIngestOneDownloadAllNewSkipsDesignsBeforeModeEnabled(t *testing.T) {
	svc, _, channels, queue := newTestService(t)
	ctx := context.Background()

	future := time.Now().UTC().Add(time.Hour)
	channel := &types.Channel{
		ID: "ch3", PeerID: "300", Title: "NewOnlyChan", Enabled: true,
		DownloadMode: types.DownloadModeDownloadAllNew, DownloadModeEnabledAt: &future,
	}
	require.NoError(t, channels.Create(ctx, channel))

	msg := &interfaces.ChatMessage{
		UpstreamID: 1,
		PeerID:     "300",
		CaptionRaw: "Old Vase",
		Attachments: []interfaces.ChatAttachment{
			{UpstreamFileID: "f3", Type: "DOCUMENT", Filename: "vase3.stl", SizeBytes: 1024},
		},
	}

	require.NoError(t, svc.ingestOne(ctx, channel, msg))

	stats, err := queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.ByType[types.JobDownloadDesign], "enabled_at in the future must not match a design created now")
}

func TestCatchUpChannelFetchesMessagesPastCursor(t *testing.T) {
	svc, fake, channels, _ := newTestService(t)
	ctx := context.Background()

	channel := &types.Channel{ID: "ch4", PeerID: "400", Title: "Cursor", Enabled: true, LastIngestedMessageID: 5}
	require.NoError(t, channels.Create(ctx, channel))

	fake.SeedMessages("400",
		&interfaces.ChatMessage{UpstreamID: 6, PeerID: "400", CaptionRaw: "six", Attachments: []interfaces.ChatAttachment{{Filename: "a.stl"}}},
		&interfaces.ChatMessage{UpstreamID: 7, PeerID: "400", CaptionRaw: "seven", Attachments: []interfaces.ChatAttachment{{Filename: "b.stl"}}},
	)

	require.NoError(t, svc.catchUpChannel(ctx, channel))

	updated, err := channels.Get(ctx, channel.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), updated.LastIngestedMessageID)
}

func TestHandleRealtimeMessageIgnoresDisabledChannel(t *testing.T) {
	svc, _, channels, _ := newTestService(t)
	ctx := context.Background()

	channel := &types.Channel{ID: "ch5", PeerID: "500", Title: "Disabled", Enabled: false}
	require.NoError(t, channels.Create(ctx, channel))
	// gorm stores the column default (true) for a zero-valued bool on
	// create, so disable the channel with an explicit update.
	channel.Enabled = false
	require.NoError(t, channels.Update(ctx, channel))

	msg := &interfaces.ChatMessage{UpstreamID: 1, PeerID: "500", CaptionRaw: "ignored"}
	require.NoError(t, svc.handleRealtimeMessage(ctx, msg))

	updated, err := channels.Get(ctx, channel.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated.LastIngestedMessageID)
}
