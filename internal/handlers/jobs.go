package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/inspectd/internal/services"
	"github.com/charlesng35/inspectd/pkg/response"
)

// JobHandler exposes job scheduling and assignment.
type JobHandler struct {
	jobs *services.JobService
}

// NewJobHandler constructs a JobHandler.
func NewJobHandler(jobs *services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

type createJobRequest struct {
	Title        string     `json:"title" validate:"required,max=255"`
	Address      string     `json:"address" validate:"required"`
	Notes        string     `json:"notes"`
	ScheduledFor *time.Time `json:"scheduled_for"`
	InspectorID  string     `json:"inspector_id" validate:"omitempty,uuid4"`
}

type assignJobRequest struct {
	InspectorID string `json:"inspector_id" validate:"required"`
}

// Create handles POST /api/jobs.
func (h *JobHandler) Create(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req createJobRequest
	if !bindAndValidate(c, &req) {
		return
	}

	job, err := h.jobs.Create(requestContext(c), services.CreateJobInput{
		Title:        req.Title,
		Address:      req.Address,
		Notes:        req.Notes,
		ScheduledFor: req.ScheduledFor,
		InspectorID:  req.InspectorID,
		CreatedBy:    actorID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, job)
}

// Get handles GET /api/jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	jobID, ok := pathID(c, "id")
	if !ok {
		return
	}
	job, err := h.jobs.Get(requestContext(c), jobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, job)
}

// Assign handles POST /api/jobs/:id/assign.
func (h *JobHandler) Assign(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assignJobRequest
	if !bindAndValidate(c, &req) {
		return
	}

	job, err := h.jobs.Assign(requestContext(c), jobID, req.InspectorID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, job)
}
