package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/polyforge/polyforge/internal/config"
	"github.com/polyforge/polyforge/internal/discovery"
	"github.com/polyforge/polyforge/internal/jobqueue"
	"github.com/polyforge/polyforge/internal/settings"
	"github.com/polyforge/polyforge/internal/store"
	"github.com/polyforge/polyforge/internal/types"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Channel{}, &types.Message{}, &types.Attachment{},
		&types.Design{}, &types.DesignSource{}, &types.DesignFile{}, &types.PreviewAsset{}, &types.DesignTag{},
		&types.Job{}, &types.Setting{}, &types.DiscoveredChannel{}))

	channels := store.NewChannelRepository(db)
	discovered := store.NewDiscoveredChannelRepository(db)

	deps := Deps{
		Config:     &config.Config{DatabaseDriver: "sqlite"},
		Channels:   channels,
		Designs:    store.NewDesignRepository(db),
		Queue:      jobqueue.New(db, nil, nil),
		Settings:   settings.NewService(store.NewSettingsRepository(db), &config.Config{}),
		Discovered: discovered,
		Discovery:  discovery.NewService(channels, discovered),
	}

	return NewRouter(deps), db
}

func doRequest(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpointReturnsOK(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSystemInfoEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(r, http.MethodGet, "/api/v1/system/info", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp SystemInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sqlite", resp.DatabaseDriver)
}

func TestChannelListAndUpdate(t *testing.T) {
	r, db := newTestRouter(t)

	channel := &types.Channel{ID: "chan-1", PeerID: "peer-1", Title: "Test Channel", DownloadMode: types.DownloadModeManual, Enabled: true}
	require.NoError(t, db.Create(channel).Error)

	rec := doRequest(r, http.MethodGet, "/api/v1/channels", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := []byte(`{"download_mode":"DOWNLOAD_ALL_NEW"}`)
	rec = doRequest(r, http.MethodPatch, "/api/v1/channels/chan-1", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	var updated types.Channel
	require.NoError(t, db.First(&updated, "id = ?", "chan-1").Error)
	assert.Equal(t, types.DownloadModeDownloadAllNew, updated.DownloadMode)
	assert.NotNil(t, updated.DownloadModeEnabledAt)
}

func TestDesignNotFoundReturns404(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(r, http.MethodGet, "/api/v1/designs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDesignRequeueDownloadEnqueuesJob(t *testing.T) {
	r, db := newTestRouter(t)

	design := &types.Design{ID: "design-1", Title: "Widget", Status: types.DesignDiscovered, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, db.Create(design).Error)

	rec := doRequest(r, http.MethodPost, "/api/v1/designs/design-1/download", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var job types.Job
	require.NoError(t, db.First(&job, "design_id = ?", "design-1").Error)
	assert.Equal(t, types.JobDownloadDesign, job.Type)
}

func TestSettingsGetSetDelete(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(r, http.MethodGet, "/api/v1/settings/max_concurrent_downloads", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(r, http.MethodPut, "/api/v1/settings/max_concurrent_downloads", []byte(`{"value":5}`))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(r, http.MethodPut, "/api/v1/settings/max_concurrent_downloads", []byte(`{"value":999}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(r, http.MethodDelete, "/api/v1/settings/max_concurrent_downloads", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestJobPriorityUpdate(t *testing.T) {
	r, db := newTestRouter(t)

	job := &types.Job{ID: "job-1", Type: types.JobDownloadDesign, Status: types.JobQueued, Priority: 0}
	require.NoError(t, db.Create(job).Error)

	rec := doRequest(r, http.MethodPatch, "/api/v1/jobs/job-1/priority", []byte(`{"priority":8}`))
	assert.Equal(t, http.StatusOK, rec.Code)

	var updated types.Job
	require.NoError(t, db.First(&updated, "id = ?", "job-1").Error)
	assert.Equal(t, 8, updated.Priority)
}

func TestJobPriorityUpdateNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(r, http.MethodPatch, "/api/v1/jobs/missing/priority", []byte(`{"priority":8}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDiscoveredChannelListGetDeleteAdd(t *testing.T) {
	r, db := newTestRouter(t)

	dc := &types.DiscoveredChannel{
		ID: "dc-1", PeerID: "peer-9", Username: "found_shop", Title: "Found Shop",
		ReferenceCount: 1, SourceTypes: string(types.DiscoveryMention),
		FirstSeenAt: time.Now(), LastSeenAt: time.Now(),
	}
	require.NoError(t, db.Create(dc).Error)

	rec := doRequest(r, http.MethodGet, "/api/v1/discovered-channels", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var listBody map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listBody))
	assert.EqualValues(t, 1, listBody["total"])

	rec = doRequest(r, http.MethodGet, "/api/v1/discovered-channels/dc-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(r, http.MethodGet, "/api/v1/discovered-channels/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(r, http.MethodPost, "/api/v1/discovered-channels/dc-1/add", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var channel types.Channel
	require.NoError(t, db.First(&channel, "peer_id = ?", "peer-9").Error)
	assert.Equal(t, "found_shop", channel.Username)

	var remaining int64
	require.NoError(t, db.Model(&types.DiscoveredChannel{}).Count(&remaining).Error)
	assert.Equal(t, int64(0), remaining)
}

func TestDiscoveredChannelDelete(t *testing.T) {
	r, db := newTestRouter(t)

	dc := &types.DiscoveredChannel{ID: "dc-2", Username: "other_shop", ReferenceCount: 1, FirstSeenAt: time.Now(), LastSeenAt: time.Now()}
	require.NoError(t, db.Create(dc).Error)

	rec := doRequest(r, http.MethodDelete, "/api/v1/discovered-channels/dc-2", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	require.NoError(t, db.Model(&types.DiscoveredChannel{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
