package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/inspectd/internal/models"
)

func TestEventRecipientSelectors(t *testing.T) {
	inspectorID := "insp-1"
	when := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	job := &models.Job{BaseModel: models.BaseModel{ID: "job-1"}, Title: "Loft", InspectorID: &inspectorID, ScheduledFor: &when}
	report := &models.Report{BaseModel: models.BaseModel{ID: "rep-1"}, JobID: job.ID, InspectorID: inspectorID, Status: models.ReportStatusRejected}
	user := &models.User{BaseModel: models.BaseModel{ID: "user-1"}, Name: "Cal", Role: models.RoleAdmin}

	require.Equal(t, inspectorID, JobAssignedEvent(job, "admin").RecipientID)
	require.Equal(t, when, *JobAssignedEvent(job, "admin").Data["scheduledFor"].(*time.Time))
	require.Equal(t, models.RoleAdmin, JobCreatedEvent(job, "admin").Roles.Role)
	require.Equal(t, models.RoleAdmin, ReportCreatedEvent(report, job).Roles.Role)
	require.Equal(t, inspectorID, ReportStatusUpdatedEvent(report, "admin").RecipientID)
	require.Equal(t, user.ID, UserApprovedEvent(user, "admin").RecipientID)
	require.Equal(t, user.ID, UserUnsuspendedEvent(user, "admin").RecipientID)

	suspended := UserSuspendedEvent(user, "admin")
	require.Equal(t, &RoleQuery{Role: models.RoleAdmin, ActiveApprovedOnly: true, ExcludeIDs: []string{user.ID}}, suspended.Roles)
	require.Empty(t, suspended.RecipientID)

	require.Equal(t, EventUserRegistered, UserRegisteredEvent(user).Type)
	require.Equal(t, models.RoleAdmin, UserRegisteredEvent(user).Data["role"])
}
