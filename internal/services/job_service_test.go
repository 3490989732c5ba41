package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/inspectd/internal/models"
	apperrors "github.com/charlesng35/inspectd/pkg/errors"
)

func TestJobServiceCreateAndAssign(t *testing.T) {
	db := openServiceTestDB(t)
	notifier := &recordingNotifier{}
	svc, err := NewJobService(db, notifier)
	require.NoError(t, err)
	ctx := context.Background()

	admin := createUser(t, db, "Ada", activeUser(models.RoleAdmin))
	inspector := createUser(t, db, "Ivy", activeUser(models.RoleInspector))

	job, err := svc.Create(ctx, CreateJobInput{Title: "  Roof survey ", Address: "1 Main St", CreatedBy: admin.ID})
	require.NoError(t, err)
	require.Equal(t, "Roof survey", job.Title)
	require.Equal(t, models.JobStatusPending, job.Status)
	require.Nil(t, job.InspectorID)
	require.Equal(t, []string{EventJobCreated}, notifier.Types())

	assigned, err := svc.Assign(ctx, job.ID, inspector.ID, admin.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusAssigned, assigned.Status)
	require.Equal(t, inspector.ID, *assigned.InspectorID)

	event := notifier.Last()
	require.Equal(t, EventJobAssigned, event.Type)
	require.Equal(t, inspector.ID, event.RecipientID)
	require.Equal(t, admin.ID, event.AuthorID)

	stored, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, inspector.ID, *stored.InspectorID)
}

func TestJobServiceCreateWithInspectorNotifiesBoth(t *testing.T) {
	db := openServiceTestDB(t)
	notifier := &recordingNotifier{}
	svc, err := NewJobService(db, notifier)
	require.NoError(t, err)

	inspector := createUser(t, db, "Ivy", activeUser(models.RoleInspector))
	job, err := svc.Create(context.Background(), CreateJobInput{Title: "Kitchen", InspectorID: inspector.ID})
	require.NoError(t, err)
	require.Equal(t, models.JobStatusAssigned, job.Status)
	require.Equal(t, []string{EventJobCreated, EventJobAssigned}, notifier.Types())
}

func TestJobServiceRejectsInvalidAssignments(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewJobService(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	admin := createUser(t, db, "Ada", activeUser(models.RoleAdmin))
	pending := createUser(t, db, "Pat", userOpts{role: models.RoleInspector, active: true})
	job := createJob(t, db, nil)

	_, err = svc.Create(ctx, CreateJobInput{})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Assign(ctx, job.ID, admin.ID, admin.ID)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Assign(ctx, job.ID, pending.ID, admin.ID)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Assign(ctx, "missing", pending.ID, admin.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, db.Model(&models.Job{}).Where("id = ?", job.ID).Update("status", models.JobStatusCompleted).Error)
	inspector := createUser(t, db, "Ivy", activeUser(models.RoleInspector))
	_, err = svc.Assign(ctx, job.ID, inspector.ID, admin.ID)
	require.ErrorIs(t, err, apperrors.ErrConflict)
}
