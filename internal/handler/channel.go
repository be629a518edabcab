package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// ChannelHandler manages monitored chat-platform channels (spec §3, §4.11).
type ChannelHandler struct {
	channels interfaces.ChannelRepository
}

// NewChannelHandler builds a ChannelHandler.
func NewChannelHandler(channels interfaces.ChannelRepository) *ChannelHandler {
	return &ChannelHandler{channels: channels}
}

// ListChannels godoc
// @Summary      List channels
// @Description  All monitored channels, enabled or not
// @Tags         channels
// @Produce      json
// @Success      200  {array}  types.Channel
// @Router       /channels [get]
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	channels, err := h.channels.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// GetChannel godoc
// @Summary      Get a channel
// @Tags         channels
// @Produce      json
// @Param        id  path  string  true  "Channel ID"
// @Success      200  {object}  types.Channel
// @Failure      404  {object}  map[string]string
// @Router       /channels/{id} [get]
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	channel, err := h.channels.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if channel == nil {
		notFound(c, "channel not found")
		return
	}
	c.JSON(http.StatusOK, channel)
}

// UpdateChannelRequest is UpdateChannel's request body. Only non-nil
// fields are applied.
type UpdateChannelRequest struct {
	DownloadMode     *types.DownloadMode `json:"download_mode"`
	Enabled          *bool               `json:"enabled"`
	TemplateOverride *string             `json:"template_override"`
}

// UpdateChannel godoc
// @Summary      Update a channel's download mode, enabled flag, or library template override
// @Description  Setting download_mode away from MANUAL stamps download_mode_enabled_at so the sync loop's DOWNLOAD_ALL_NEW invariant (spec §4.4) has a cutover point
// @Tags         channels
// @Accept       json
// @Produce      json
// @Param        id       path  string                 true  "Channel ID"
// @Param        request  body  UpdateChannelRequest   true  "Fields to update"
// @Success      200  {object}  types.Channel
// @Failure      404  {object}  map[string]string
// @Router       /channels/{id} [patch]
func (h *ChannelHandler) UpdateChannel(c *gin.Context) {
	ctx := c.Request.Context()

	channel, err := h.channels.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if channel == nil {
		notFound(c, "channel not found")
		return
	}

	var req UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.DownloadMode != nil && *req.DownloadMode != channel.DownloadMode {
		channel.DownloadMode = *req.DownloadMode
		if *req.DownloadMode != types.DownloadModeManual {
			now := time.Now().UTC()
			channel.DownloadModeEnabledAt = &now
		}
	}
	if req.Enabled != nil {
		channel.Enabled = *req.Enabled
	}
	if req.TemplateOverride != nil {
		channel.TemplateOverride = *req.TemplateOverride
	}

	if err := h.channels.Update(ctx, channel); err != nil {
		respondError(c, err)
		return
	}

	logger.Info(ctx, "channel_updated", "channel_id", channel.ID, "download_mode", channel.DownloadMode, "enabled", channel.Enabled)
	c.JSON(http.StatusOK, channel)
}
