package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// JobHandler exposes the job queue for dashboards/CLIs (spec §4.1/§4.2).
type JobHandler struct {
	queue interfaces.JobQueue
}

// NewJobHandler builds a JobHandler.
func NewJobHandler(queue interfaces.JobQueue) *JobHandler {
	return &JobHandler{queue: queue}
}

// GetJob godoc
// @Summary      Get a job by id
// @Tags         jobs
// @Produce      json
// @Param        id  path  string  true  "Job ID"
// @Success      200  {object}  types.Job
// @Failure      404  {object}  map[string]string
// @Router       /jobs/{id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.queue.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if job == nil {
		notFound(c, "job not found")
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobsForDesign godoc
// @Summary      List jobs for a design
// @Tags         jobs
// @Produce      json
// @Param        design_id  query  string  true  "Design ID"
// @Success      200  {array}  types.Job
// @Router       /jobs [get]
func (h *JobHandler) ListJobsForDesign(c *gin.Context) {
	designID := c.Query("design_id")
	if designID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "design_id is required"})
		return
	}
	jobs, err := h.queue.ListForDesign(c.Request.Context(), designID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// CancelJob godoc
// @Summary      Cancel a queued or running job
// @Tags         jobs
// @Produce      json
// @Param        id  path  string  true  "Job ID"
// @Success      200  {object}  types.Job
// @Failure      404  {object}  map[string]string
// @Router       /jobs/{id}/cancel [post]
func (h *JobHandler) CancelJob(c *gin.Context) {
	ctx := c.Request.Context()
	job, err := h.queue.Cancel(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if job == nil {
		notFound(c, "job not found")
		return
	}
	logger.Info(ctx, "job_canceled", "job_id", job.ID)
	c.JSON(http.StatusOK, job)
}

// UpdateJobPriorityRequest is UpdateJobPriority's request body.
type UpdateJobPriorityRequest struct {
	Priority int `json:"priority" binding:"required"`
}

// UpdateJobPriority godoc
// @Summary      Change a queued job's priority
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        id       path  string                     true  "Job ID"
// @Param        request  body  UpdateJobPriorityRequest   true  "New priority"
// @Success      200  {object}  types.Job
// @Failure      404  {object}  map[string]string
// @Router       /jobs/{id}/priority [patch]
func (h *JobHandler) UpdateJobPriority(c *gin.Context) {
	var req UpdateJobPriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	job, err := h.queue.UpdatePriority(ctx, c.Param("id"), req.Priority)
	if err != nil {
		respondError(c, err)
		return
	}
	if job == nil {
		notFound(c, "queued job not found")
		return
	}
	logger.Info(ctx, "job_priority_updated", "job_id", job.ID, "priority", job.Priority)
	c.JSON(http.StatusOK, job)
}

// GetQueueStats godoc
// @Summary      Queue depth by status and job type
// @Tags         jobs
// @Produce      json
// @Success      200  {object}  interfaces.QueueStats
// @Router       /jobs/stats [get]
func (h *JobHandler) GetQueueStats(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
