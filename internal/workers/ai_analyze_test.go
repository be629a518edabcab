package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/polyforge/polyforge/internal/preview"
	"github.com/polyforge/polyforge/internal/ratelimit"
	"github.com/polyforge/polyforge/internal/store"
	"github.com/polyforge/polyforge/internal/tagger"
	"github.com/polyforge/polyforge/internal/types"
)

func newAIAnalyzeTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Design{}, &types.DesignSource{}, &types.DesignFile{},
		&types.PreviewAsset{}, &types.DesignTag{}, &types.ExternalMetadataSource{},
		&types.Channel{}, &types.Message{}, &types.Attachment{}))
	return db
}

func newAIAnalyzeStub(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": reply}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestAIAnalyzeWorkerAttachesTagsAndSetsPrimary(t *testing.T) {
	ctx := context.Background()
	db := newAIAnalyzeTestDB(t)
	designs := store.NewDesignRepository(db)
	channels := store.NewChannelRepository(db)
	previews := preview.NewService(designs, t.TempDir())

	design := &types.Design{ID: "design-1", Title: "Vase"}
	require.NoError(t, designs.Create(ctx, design))
	p1, err := previews.Save(ctx, design.ID, types.PreviewSourceTelegram, []byte("a"), preview.SaveOptions{Filename: "a.jpg"})
	require.NoError(t, err)
	_, err = previews.Save(ctx, design.ID, types.PreviewSourceTelegram, []byte("b"), preview.SaveOptions{Filename: "b.jpg"})
	require.NoError(t, err)

	server := newAIAnalyzeStub(t, `{"tags": ["vase", "planter"], "best_preview_index": 0}`)
	defer server.Close()

	client := tagger.NewClient("test-key", server.URL, "gemini-test")
	limiter := ratelimit.NewAILimiter(60, nil)
	tg := tagger.NewService(designs, channels, previews, limiter, client, 10)

	w := NewAIAnalyzeWorker(designs, previews, tg, true)
	payload, _ := json.Marshal(AIAnalyzePayload{DesignID: design.ID})
	result, err := w.Process(ctx, &types.Job{ID: "job-1", Type: types.JobAIAnalyze}, payload)
	require.NoError(t, err)

	res := result.(map[string]any)
	assert.Equal(t, 2, res["tags_added"])

	tags, err := designs.ListTags(ctx, design.ID)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	for _, tag := range tags {
		assert.Equal(t, types.TagSourceAutoAI, tag.Source)
	}

	list, err := designs.ListPreviews(ctx, design.ID)
	require.NoError(t, err)
	var primary *types.PreviewAsset
	for _, p := range list {
		if p.IsPrimary {
			primary = p
		}
	}
	require.NotNil(t, primary)
	assert.Equal(t, p1.ID, primary.ID)
}

func TestAIAnalyzeWorkerSkipsWhenAlreadyTagged(t *testing.T) {
	ctx := context.Background()
	db := newAIAnalyzeTestDB(t)
	designs := store.NewDesignRepository(db)
	channels := store.NewChannelRepository(db)
	previews := preview.NewService(designs, t.TempDir())

	design := &types.Design{ID: "design-2", Title: "Gear"}
	require.NoError(t, designs.Create(ctx, design))
	require.NoError(t, designs.CreateTag(ctx, &types.DesignTag{ID: "t1", DesignID: design.ID, Tag: "gear", Source: types.TagSourceAutoAI}))

	client := tagger.NewClient("test-key", "http://unused.invalid", "gemini-test")
	limiter := ratelimit.NewAILimiter(60, nil)
	tg := tagger.NewService(designs, channels, previews, limiter, client, 10)

	w := NewAIAnalyzeWorker(designs, previews, tg, true)
	payload, _ := json.Marshal(AIAnalyzePayload{DesignID: design.ID})
	result, err := w.Process(ctx, &types.Job{ID: "job-2", Type: types.JobAIAnalyze}, payload)
	require.NoError(t, err)

	res := result.(map[string]any)
	assert.Equal(t, 0, res["tags_added"])
}

func TestAIAnalyzeWorkerMissingDesignIDIsInputError(t *testing.T) {
	ctx := context.Background()
	db := newAIAnalyzeTestDB(t)
	designs := store.NewDesignRepository(db)
	channels := store.NewChannelRepository(db)
	previews := preview.NewService(designs, t.TempDir())

	client := tagger.NewClient("test-key", "http://unused.invalid", "gemini-test")
	limiter := ratelimit.NewAILimiter(60, nil)
	tg := tagger.NewService(designs, channels, previews, limiter, client, 10)

	w := NewAIAnalyzeWorker(designs, previews, tg, true)
	_, err := w.Process(ctx, &types.Job{ID: "job-3", Type: types.JobAIAnalyze}, []byte(`{}`))
	require.Error(t, err)
}
