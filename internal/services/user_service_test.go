package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/inspectd/internal/models"
	apperrors "github.com/charlesng35/inspectd/pkg/errors"
)

func TestUserServiceRegisterAndApprove(t *testing.T) {
	db := openServiceTestDB(t)
	notifier := &recordingNotifier{}
	svc, err := NewUserService(db, notifier)
	require.NoError(t, err)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Name: "Ivy", Email: " Ivy@Example.com ", Password: "correct-horse", Role: models.RoleInspector})
	require.NoError(t, err)
	require.Equal(t, "ivy@example.com", user.Email)
	require.True(t, user.IsActive)
	require.False(t, user.IsApproved)
	require.NotEqual(t, "correct-horse", user.Password)

	event := notifier.Last()
	require.Equal(t, EventUserRegistered, event.Type)
	require.Equal(t, []string{user.ID}, event.Roles.ExcludeIDs)
	require.Equal(t, models.RoleInspector, event.Data["role"])

	_, err = svc.Authenticate(ctx, "ivy@example.com", "correct-horse")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	approved, err := svc.Approve(ctx, user.ID, "admin-1")
	require.NoError(t, err)
	require.True(t, approved.IsApproved)
	require.NotNil(t, approved.ApprovedAt)
	require.Equal(t, EventUserApproved, notifier.Last().Type)
	require.Equal(t, user.ID, notifier.Last().RecipientID)

	authed, err := svc.Authenticate(ctx, "IVY@example.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, user.ID, authed.ID)

	_, err = svc.Authenticate(ctx, "ivy@example.com", "wrong-password")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestUserServiceRegisterValidation(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewUserService(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "long-enough", Role: "owner"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "short", Role: models.RoleAdmin})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "long-enough", Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Name: "B", Email: "A@example.com", Password: "long-enough", Role: models.RoleAdmin})
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestUserServiceSuspendEndsSessionsAndUnsuspend(t *testing.T) {
	db := openServiceTestDB(t)
	notifier := &recordingNotifier{}
	svc, err := NewUserService(db, notifier)
	require.NoError(t, err)
	ctx := context.Background()

	admin := createUser(t, db, "Ada", activeUser(models.RoleAdmin))
	inspector := createUser(t, db, "Ivy", activeUser(models.RoleInspector))
	device := registerDevice(t, db, inspector.ID, "phone", deviceOpts{loggedIn: true, notifications: true, lastLogin: time.Now()})

	_, err = svc.Suspend(ctx, admin.ID, admin.ID)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	suspended, err := svc.Suspend(ctx, inspector.ID, admin.ID)
	require.NoError(t, err)
	require.False(t, suspended.IsActive)
	require.NotNil(t, suspended.SuspendedAt)

	event := notifier.Last()
	require.Equal(t, EventUserSuspended, event.Type)
	require.Equal(t, []string{inspector.ID}, event.Roles.ExcludeIDs)
	require.True(t, event.Roles.ActiveApprovedOnly)

	var session models.PushTokenSession
	require.NoError(t, db.First(&session, "push_token_id = ?", device.ID).Error)
	require.False(t, session.LoggedInStatus)

	restored, err := svc.Unsuspend(ctx, inspector.ID, admin.ID)
	require.NoError(t, err)
	require.True(t, restored.IsActive)
	require.Nil(t, restored.SuspendedAt)
	require.Equal(t, EventUserUnsuspended, notifier.Last().Type)

	_, err = svc.Approve(ctx, "missing", admin.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserServiceEnsureAdminIsIdempotent(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewUserService(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := svc.EnsureAdmin(ctx, "", "root@example.com", "bootstrap-pass")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, first.Role)
	require.True(t, first.IsApproved)
	require.Equal(t, "Administrator", first.Name)

	second, err := svc.EnsureAdmin(ctx, "Other", "ROOT@example.com", "ignored")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}
