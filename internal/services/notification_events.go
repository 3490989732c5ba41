package services

import (
	"fmt"

	"github.com/charlesng35/inspectd/internal/models"
)

// Notification event types.
const (
	EventJobCreated          = "job.created"
	EventJobAssigned         = "job.assigned"
	EventReportCreated       = "report.created"
	EventReportStatusUpdated = "report.status_updated"
	EventUserRegistered      = "user.registered"
	EventUserApproved        = "user.approved"
	EventUserSuspended       = "user.suspended"
	EventUserUnsuspended     = "user.unsuspended"
)

// RoleQuery selects recipients by role.
type RoleQuery struct {
	Role               string
	ActiveApprovedOnly bool
	ExcludeIDs         []string
}

// Event is a business event to be fanned out as a push notification. Exactly
// one recipient selector is used, checked in the order RecipientID,
// RecipientIDs, Roles.
type Event struct {
	Type         string
	Title        string
	Body         string
	Data         map[string]any
	AuthorID     string
	RecipientID  string
	RecipientIDs []string
	Roles        *RoleQuery
}

func activeAdmins(exclude ...string) *RoleQuery {
	return &RoleQuery{Role: models.RoleAdmin, ActiveApprovedOnly: true, ExcludeIDs: exclude}
}

// JobCreatedEvent tells administrators about a new job.
func JobCreatedEvent(job *models.Job, actorID string) Event {
	return Event{
		Type:     EventJobCreated,
		Title:    "New inspection job",
		Body:     fmt.Sprintf("Job %q was created", job.Title),
		Data:     map[string]any{"jobId": job.ID, "status": job.Status},
		AuthorID: actorID,
		Roles:    activeAdmins(),
	}
}

// JobAssignedEvent tells the assigned inspector about the job.
func JobAssignedEvent(job *models.Job, actorID string) Event {
	return Event{
		Type:        EventJobAssigned,
		Title:       "Job assigned",
		Body:        fmt.Sprintf("You have been assigned %q", job.Title),
		Data:        map[string]any{"jobId": job.ID, "scheduledFor": job.ScheduledFor, "address": job.Address},
		AuthorID:    actorID,
		RecipientID: stringValue(job.InspectorID),
	}
}

// ReportCreatedEvent tells administrators a report was submitted.
func ReportCreatedEvent(report *models.Report, job *models.Job) Event {
	title := report.JobID
	if job != nil {
		title = job.Title
	}
	return Event{
		Type:  EventReportCreated,
		Title: "Report submitted",
		Body:  fmt.Sprintf("A report with %d images was submitted for %q", len(report.Images), title),
		Data: map[string]any{
			"reportId":   report.ID,
			"jobId":      report.JobID,
			"imageCount": len(report.Images),
		},
		AuthorID: report.InspectorID,
		Roles:    activeAdmins(),
	}
}

// ReportStatusUpdatedEvent tells the report's inspector about a review decision.
func ReportStatusUpdatedEvent(report *models.Report, actorID string) Event {
	return Event{
		Type:        EventReportStatusUpdated,
		Title:       "Report status updated",
		Body:        fmt.Sprintf("Your report is now %s", report.Status),
		Data:        map[string]any{"reportId": report.ID, "jobId": report.JobID, "status": report.Status},
		AuthorID:    actorID,
		RecipientID: report.InspectorID,
	}
}

// UserRegisteredEvent asks administrators to review a new account.
func UserRegisteredEvent(user *models.User) Event {
	return Event{
		Type:     EventUserRegistered,
		Title:    "New registration",
		Body:     fmt.Sprintf("%s registered as %s and awaits approval", user.Name, user.Role),
		Data:     map[string]any{"userId": user.ID, "role": user.Role},
		AuthorID: user.ID,
		Roles:    activeAdmins(user.ID),
	}
}

// UserApprovedEvent tells the user their account is approved.
func UserApprovedEvent(user *models.User, actorID string) Event {
	return Event{
		Type:        EventUserApproved,
		Title:       "Account approved",
		Body:        "Your account has been approved",
		Data:        map[string]any{"userId": user.ID},
		AuthorID:    actorID,
		RecipientID: user.ID,
	}
}

// UserSuspendedEvent tells the other active administrators about a suspension.
func UserSuspendedEvent(user *models.User, actorID string) Event {
	return Event{
		Type:     EventUserSuspended,
		Title:    "User suspended",
		Body:     fmt.Sprintf("%s has been suspended", user.Name),
		Data:     map[string]any{"userId": user.ID, "role": user.Role},
		AuthorID: actorID,
		Roles:    activeAdmins(user.ID),
	}
}

// UserUnsuspendedEvent tells the user their account is active again.
func UserUnsuspendedEvent(user *models.User, actorID string) Event {
	return Event{
		Type:        EventUserUnsuspended,
		Title:       "Account reactivated",
		Body:        "Your account has been reactivated",
		Data:        map[string]any{"userId": user.ID},
		AuthorID:    actorID,
		RecipientID: user.ID,
	}
}
