package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polyforge/polyforge/internal/settings"
)

// SettingsHandler exposes the typed runtime settings store (spec §3/§6).
type SettingsHandler struct {
	svc *settings.Service
}

// NewSettingsHandler builds a SettingsHandler.
func NewSettingsHandler(svc *settings.Service) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// GetAllSettings godoc
// @Summary      Get every recognised setting, schema defaults merged with persisted overrides
// @Tags         settings
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /settings [get]
func (h *SettingsHandler) GetAllSettings(c *gin.Context) {
	all, err := h.svc.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

// GetSetting godoc
// @Summary      Get one setting, resolved through cache/database/env/default
// @Tags         settings
// @Produce      json
// @Param        key  path  string  true  "Setting key"
// @Success      200  {object}  map[string]interface{}
// @Router       /settings/{key} [get]
func (h *SettingsHandler) GetSetting(c *gin.Context) {
	key := c.Param("key")
	v, err := h.svc.Get(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": v})
}

// SetSettingRequest is SetSetting's request body.
type SetSettingRequest struct {
	Value any `json:"value"`
}

// SetSetting godoc
// @Summary      Set one setting, validated against its schema entry
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        key      path  string             true  "Setting key"
// @Param        request  body  SetSettingRequest  true  "New value"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /settings/{key} [put]
func (h *SettingsHandler) SetSetting(c *gin.Context) {
	key := c.Param("key")

	var req SetSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.Set(c.Request.Context(), key, req.Value); err != nil {
		var verr *settings.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}

// DeleteSetting godoc
// @Summary      Revert one setting to its schema default
// @Tags         settings
// @Produce      json
// @Param        key  path  string  true  "Setting key"
// @Success      204
// @Router       /settings/{key} [delete]
func (h *SettingsHandler) DeleteSetting(c *gin.Context) {
	deleted, err := h.svc.Delete(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		notFound(c, "no override set for this key")
		return
	}
	c.Status(http.StatusNoContent)
}

// ResetSettings godoc
// @Summary      Revert every setting to its schema default
// @Tags         settings
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /settings/reset [post]
func (h *SettingsHandler) ResetSettings(c *gin.Context) {
	defaults, err := h.svc.ResetToDefaults(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, defaults)
}
