package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/polyforge/polyforge/internal/discovery"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// DiscoveredChannelHandler exposes channel references found via forwards,
// links, and @mentions in monitored content (spec §4.11, §6).
type DiscoveredChannelHandler struct {
	discovered interfaces.DiscoveredChannelRepository
	service    *discovery.Service
}

// NewDiscoveredChannelHandler builds a DiscoveredChannelHandler.
func NewDiscoveredChannelHandler(discovered interfaces.DiscoveredChannelRepository, service *discovery.Service) *DiscoveredChannelHandler {
	return &DiscoveredChannelHandler{discovered: discovered, service: service}
}

// ListDiscoveredChannels godoc
// @Summary      List discovered channels
// @Description  Sorted by reference_count desc by default
// @Tags         discovered-channels
// @Produce      json
// @Param        sort    query  string  false  "sort field: reference_count, first_seen_at, last_seen_at"
// @Param        limit   query  int     false  "page size, default 50"
// @Param        offset  query  int     false  "page offset"
// @Success      200  {object}  map[string]any
// @Router       /discovered-channels [get]
func (h *DiscoveredChannelHandler) ListDiscoveredChannels(c *gin.Context) {
	sortBy := c.DefaultQuery("sort", "reference_count")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = 50
	}

	items, total, err := h.discovered.List(c.Request.Context(), sortBy, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

// GetDiscoveredChannel godoc
// @Summary      Get a discovered channel
// @Tags         discovered-channels
// @Produce      json
// @Param        id  path  string  true  "Discovered channel ID"
// @Success      200  {object}  types.DiscoveredChannel
// @Failure      404  {object}  map[string]string
// @Router       /discovered-channels/{id} [get]
func (h *DiscoveredChannelHandler) GetDiscoveredChannel(c *gin.Context) {
	dc, err := h.discovered.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if dc == nil {
		notFound(c, "discovered channel not found")
		return
	}
	c.JSON(http.StatusOK, dc)
}

// DeleteDiscoveredChannel godoc
// @Summary      Dismiss a discovered channel reference
// @Tags         discovered-channels
// @Param        id  path  string  true  "Discovered channel ID"
// @Success      204
// @Router       /discovered-channels/{id} [delete]
func (h *DiscoveredChannelHandler) DeleteDiscoveredChannel(c *gin.Context) {
	if err := h.discovered.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetDiscoveredChannelStats godoc
// @Summary      Discovered channel counts by source type
// @Tags         discovered-channels
// @Produce      json
// @Success      200  {object}  map[string]int64
// @Router       /discovered-channels/stats [get]
func (h *DiscoveredChannelHandler) GetDiscoveredChannelStats(c *gin.Context) {
	stats, err := h.discovered.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// AddDiscoveredChannel godoc
// @Summary      Promote a discovered channel to a monitored channel
// @Tags         discovered-channels
// @Produce      json
// @Param        id  path  string  true  "Discovered channel ID"
// @Success      200  {object}  types.Channel
// @Failure      400  {object}  map[string]string
// @Router       /discovered-channels/{id}/add [post]
func (h *DiscoveredChannelHandler) AddDiscoveredChannel(c *gin.Context) {
	ctx := c.Request.Context()
	ch, err := h.service.Promote(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	logger.Info(ctx, "discovered_channel_added", "channel_id", ch.ID, "peer_id", ch.PeerID)
	c.JSON(http.StatusOK, ch)
}
