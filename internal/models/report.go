package models

import (
	"time"

	"gorm.io/datatypes"
)

// Report statuses.
const (
	ReportStatusSubmitted = "submitted"
	ReportStatusInReview  = "in_review"
	ReportStatusCompleted = "completed"
	ReportStatusRejected  = "rejected"
)

// ReportStatuses lists every accepted report status.
var ReportStatuses = []string{
	ReportStatusSubmitted,
	ReportStatusInReview,
	ReportStatusCompleted,
	ReportStatusRejected,
}

// ReportImage describes one photo attached to a report. URL and Key stay empty
// while the owning report is a draft.
type ReportImage struct {
	LabelID    string `json:"label_id"`
	Label      string `json:"label"`
	URL        string `json:"url"`
	Key        string `json:"key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	Size       int64  `json:"size"`
	UploadedBy string `json:"uploaded_by"`
}

// Report is the photographic outcome of a job. A job has at most one report.
type Report struct {
	BaseModel

	JobID         string                           `gorm:"type:varchar(36);uniqueIndex;not null" json:"job_id"`
	InspectorID   string                           `gorm:"type:varchar(36);index;not null" json:"inspector_id"`
	Images        datatypes.JSONSlice[ReportImage] `json:"images"`
	Status        string                           `gorm:"type:varchar(32);index;not null" json:"status"`
	LastUpdatedBy string                           `gorm:"type:varchar(36)" json:"last_updated_by,omitempty"`
	CommittedAt   *time.Time                       `gorm:"index" json:"committed_at,omitempty"`
}

// IsDraft reports whether the report's images have not been committed yet.
func (r *Report) IsDraft() bool {
	return r.CommittedAt == nil
}
