package models

import "time"

// Job statuses.
const (
	JobStatusPending         = "pending"
	JobStatusAssigned        = "assigned"
	JobStatusReportSubmitted = "report_submitted"
	JobStatusCompleted       = "completed"
	JobStatusCancelled       = "cancelled"
)

// Job is a scheduled property inspection.
type Job struct {
	BaseModel

	Title        string     `gorm:"type:varchar(255);not null" json:"title"`
	Address      string     `gorm:"type:text" json:"address"`
	Notes        string     `gorm:"type:text" json:"notes,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	Status       string     `gorm:"type:varchar(32);index;not null" json:"status"`
	InspectorID  *string    `gorm:"type:varchar(36);index" json:"inspector_id,omitempty"`
	CreatedBy    string     `gorm:"type:varchar(36)" json:"created_by"`
}

// ImageLabel is a reusable caption for report photos ("Roof", "Kitchen", ...).
type ImageLabel struct {
	BaseModel

	Name        string `gorm:"type:varchar(128);uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
}
