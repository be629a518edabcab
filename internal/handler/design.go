package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// DesignHandler serves the design catalog (spec §3, §4.7/§4.9) and lets
// callers re-queue the render/download pipeline for a design.
type DesignHandler struct {
	designs interfaces.DesignRepository
	queue   interfaces.JobQueue
}

// NewDesignHandler builds a DesignHandler.
func NewDesignHandler(designs interfaces.DesignRepository, queue interfaces.JobQueue) *DesignHandler {
	return &DesignHandler{designs: designs, queue: queue}
}

// ListDesigns godoc
// @Summary      List designs
// @Description  Optionally filtered by lifecycle status
// @Tags         designs
// @Produce      json
// @Param        status  query  string  false  "DesignStatus filter"
// @Success      200  {array}  types.Design
// @Router       /designs [get]
func (h *DesignHandler) ListDesigns(c *gin.Context) {
	status := types.DesignStatus(c.Query("status"))
	designs, err := h.designs.List(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, designs)
}

// GetDesign godoc
// @Summary      Get a design with its sources, files, previews, and tags
// @Tags         designs
// @Produce      json
// @Param        id  path  string  true  "Design ID"
// @Success      200  {object}  types.Design
// @Failure      404  {object}  map[string]string
// @Router       /designs/{id} [get]
func (h *DesignHandler) GetDesign(c *gin.Context) {
	design, err := h.designs.GetWithRelations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if design == nil {
		notFound(c, "design not found")
		return
	}
	c.JSON(http.StatusOK, design)
}

// DeleteDesign godoc
// @Summary      Delete a design and cancel its pending jobs
// @Tags         designs
// @Produce      json
// @Param        id  path  string  true  "Design ID"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Router       /designs/{id} [delete]
func (h *DesignHandler) DeleteDesign(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	design, err := h.designs.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if design == nil {
		notFound(c, "design not found")
		return
	}

	if n, err := h.queue.CancelJobsForDesign(ctx, id); err != nil {
		respondError(c, err)
		return
	} else if n > 0 {
		logger.Info(ctx, "design_jobs_canceled", "design_id", id, "count", n)
	}

	if err := h.designs.Delete(ctx, id); err != nil {
		respondError(c, err)
		return
	}

	logger.Info(ctx, "design_deleted", "design_id", id)
	c.Status(http.StatusNoContent)
}

// requeueDesign enqueues jobType for design, used by both
// RequeueDownload and RequeueRender.
func (h *DesignHandler) requeueDesign(c *gin.Context, jobType types.JobType) {
	ctx := c.Request.Context()
	id := c.Param("id")

	design, err := h.designs.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if design == nil {
		notFound(c, "design not found")
		return
	}

	job, err := h.queue.Enqueue(ctx, jobType, interfaces.EnqueueOptions{
		DesignID:    id,
		Payload:     map[string]string{"design_id": id},
		DisplayName: fmt.Sprintf("%s %s", jobType, design.Title),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// RequeueDownload godoc
// @Summary      Re-queue a download job for this design
// @Tags         designs
// @Produce      json
// @Param        id  path  string  true  "Design ID"
// @Success      202  {object}  types.Job
// @Failure      404  {object}  map[string]string
// @Router       /designs/{id}/download [post]
func (h *DesignHandler) RequeueDownload(c *gin.Context) {
	h.requeueDesign(c, types.JobDownloadDesign)
}

// RequeueRender godoc
// @Summary      Re-queue a preview render job for this design
// @Tags         designs
// @Produce      json
// @Param        id  path  string  true  "Design ID"
// @Success      202  {object}  types.Job
// @Failure      404  {object}  map[string]string
// @Router       /designs/{id}/render [post]
func (h *DesignHandler) RequeueRender(c *gin.Context) {
	h.requeueDesign(c, types.JobGenerateRender)
}
