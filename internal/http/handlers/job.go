package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studygen/internal/http/response"
	"github.com/yungbote/studygen/internal/pkg/dbctx"
	"github.com/yungbote/studygen/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// POST /api/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var in services.CreateJobInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	job, err := h.jobs.Create(dbctx.Of(c.Request.Context()), in)
	if err != nil {
		response.RespondAPIError(c, err, "create_job_failed")
		return
	}
	response.RespondCreated(c, gin.H{"job": job})
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	job, err := h.jobs.Get(dbctx.Of(c.Request.Context()), jobID)
	if err != nil {
		response.RespondAPIError(c, err, "get_job_failed")
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	job, err := h.jobs.Cancel(dbctx.Of(c.Request.Context()), jobID)
	if err != nil {
		response.RespondAPIError(c, err, "cancel_job_failed")
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

func jobIDParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" || len(id) > 64 {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", nil)
		return "", false
	}
	return id, true
}
