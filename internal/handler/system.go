package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polyforge/polyforge/internal/config"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// SystemHandler serves process-level health and build info.
type SystemHandler struct {
	cfg   *config.Config
	queue interfaces.JobQueue
}

// NewSystemHandler builds a SystemHandler.
func NewSystemHandler(cfg *config.Config, queue interfaces.JobQueue) *SystemHandler {
	return &SystemHandler{cfg: cfg, queue: queue}
}

// Build info injected at link time via -ldflags.
var (
	Version   = "dev"
	CommitID  = "unknown"
	BuildTime = "unknown"
)

// SystemInfoResponse is GetSystemInfo's response body.
type SystemInfoResponse struct {
	Version        string `json:"version"`
	CommitID       string `json:"commit_id,omitempty"`
	BuildTime      string `json:"build_time,omitempty"`
	DatabaseDriver string `json:"database_driver"`
	StorageBackend string `json:"storage_backend"`
	QueueBackend   string `json:"queue_backend"`
}

// GetSystemInfo godoc
// @Summary      Get system info
// @Description  Version, build metadata, and the storage/queue/database backends this instance is wired to
// @Tags         system
// @Produce      json
// @Success      200  {object}  SystemInfoResponse
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	ctx := c.Request.Context()

	storageBackend := "filesystem"
	if h.cfg != nil && h.cfg.MinioEndpoint != "" {
		storageBackend = "minio"
	}

	resp := SystemInfoResponse{
		Version:        Version,
		CommitID:       CommitID,
		BuildTime:      BuildTime,
		DatabaseDriver: h.cfg.DatabaseDriver,
		StorageBackend: storageBackend,
		QueueBackend:   "asynq/redis",
	}

	logger.Debug(ctx, "system_info_served")
	c.JSON(http.StatusOK, resp)
}

// HealthResponse is GetHealth's response body.
type HealthResponse struct {
	Status string         `json:"status"`
	Queue  map[string]any `json:"queue,omitempty"`
}

// GetHealth godoc
// @Summary      Health check
// @Description  Liveness probe; also surfaces queue depth so readiness checks can detect a stuck worker fleet
// @Tags         system
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Router       /health [get]
func (h *SystemHandler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	resp := HealthResponse{Status: "ok"}

	if h.queue != nil {
		if stats, err := h.queue.Stats(ctx); err == nil {
			resp.Queue = map[string]any{
				"total":     stats.Total,
				"by_status": stats.ByStatus,
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}
