package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/inspectd/internal/services"
	"github.com/charlesng35/inspectd/pkg/errors"
	"github.com/charlesng35/inspectd/pkg/response"
)

const (
	maxReportImages     = 50
	maxMultipartMemory  = 32 << 20
	imagesFormField     = "images"
	labelsFormField     = "labels"
	defaultImageContent = "application/octet-stream"
)

// ReportHandler exposes report submission and review.
type ReportHandler struct {
	reports *services.ReportService
	jobs    *services.JobService
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(reports *services.ReportService, jobs *services.JobService) *ReportHandler {
	return &ReportHandler{reports: reports, jobs: jobs}
}

type updateReportStatusRequest struct {
	Status string `json:"status" validate:"required,report_status"`
}

// Create handles POST /api/jobs/:id/report. The multipart form carries one
// labels value per images file, in the same order.
func (h *ReportHandler) Create(c *gin.Context) {
	inspectorID, ok := currentUserID(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id")
	if !ok {
		return
	}

	job, err := h.jobs.Get(requestContext(c), jobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if job.InspectorID == nil || *job.InspectorID != inspectorID {
		response.Error(c, errors.ErrForbidden.WithMessage("job is not assigned to you"))
		return
	}
	if err := h.reports.EnsureNoReport(requestContext(c), jobID); err != nil {
		response.Error(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, errors.NewBadRequest("expected a multipart form"))
		return
	}
	uploads, err := imageUploads(form)
	if err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.reports.CreateReport(requestContext(c), services.CreateReportInput{
		JobID:       jobID,
		InspectorID: inspectorID,
		Images:      uploads,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

func imageUploads(form *multipart.Form) ([]services.ImageUpload, error) {
	files := form.File[imagesFormField]
	labels := form.Value[labelsFormField]
	if len(files) == 0 {
		return nil, errors.NewValidation("at least one image is required")
	}
	if len(files) > maxReportImages {
		return nil, errors.NewValidation("at most %d images are accepted", maxReportImages)
	}
	if len(labels) != len(files) {
		return nil, errors.NewValidation("expected %d labels, got %d", len(files), len(labels))
	}

	uploads := make([]services.ImageUpload, len(files))
	for i, fh := range files {
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = defaultImageContent
		}
		uploads[i] = services.ImageUpload{
			LabelID:     strings.TrimSpace(labels[i]),
			FileName:    fh.Filename,
			ContentType: contentType,
			Size:        fh.Size,
			Open:        openFileHeader(fh),
		}
	}
	return uploads, nil
}

func openFileHeader(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// Get handles GET /api/reports/:id.
func (h *ReportHandler) Get(c *gin.Context) {
	reportID, ok := pathID(c, "id")
	if !ok {
		return
	}
	report, err := h.reports.Get(requestContext(c), reportID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// UpdateStatus handles PATCH /api/reports/:id/status.
func (h *ReportHandler) UpdateStatus(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	reportID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateReportStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	report, err := h.reports.UpdateStatus(requestContext(c), reportID, strings.ToLower(req.Status), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// Delete handles DELETE /api/reports/:id.
func (h *ReportHandler) Delete(c *gin.Context) {
	reportID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.reports.Delete(requestContext(c), reportID); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
