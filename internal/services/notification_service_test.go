package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/charlesng35/inspectd/internal/models"
	apperrors "github.com/charlesng35/inspectd/pkg/errors"
)

func seedNotification(t *testing.T, svc *NotificationService, n models.Notification) *models.Notification {
	t.Helper()
	if n.Status == "" {
		n.Status = models.NotificationStatusSent
	}
	require.NoError(t, svc.db.Create(&n).Error)
	return &n
}

func TestNotificationServiceListForUser(t *testing.T) {
	svc, err := NewNotificationService(openServiceTestDB(t))
	require.NoError(t, err)

	direct := "u1"
	seedNotification(t, svc, models.Notification{Type: EventUserApproved, Title: "direct", RecipientID: &direct, Recipients: datatypes.JSONSlice[string]{"u1"}})
	seedNotification(t, svc, models.Notification{Type: EventJobCreated, Title: "broadcast", Recipients: datatypes.JSONSlice[string]{"u2", "u1"}})
	seedNotification(t, svc, models.Notification{Type: EventJobCreated, Title: "other", Recipients: datatypes.JSONSlice[string]{"u2"}})
	seedNotification(t, svc, models.Notification{Type: EventJobCreated, Title: "prefix", Recipients: datatypes.JSONSlice[string]{"u10"}})

	list, err := svc.ListForUser(context.Background(), ListNotificationsInput{UserID: "u1"})
	require.NoError(t, err)
	titles := make([]string, 0, len(list))
	for _, item := range list {
		titles = append(titles, item.Title)
		require.False(t, item.IsRead)
	}
	require.ElementsMatch(t, []string{"direct", "broadcast"}, titles)

	_, err = svc.ListForUser(context.Background(), ListNotificationsInput{})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestNotificationServiceMarkRead(t *testing.T) {
	svc, err := NewNotificationService(openServiceTestDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	n := seedNotification(t, svc, models.Notification{Type: EventJobCreated, Title: "broadcast", Recipients: datatypes.JSONSlice[string]{"u1", "u2"}})

	read, err := svc.MarkRead(ctx, n.ID, "u1")
	require.NoError(t, err)
	require.True(t, read.IsRead)

	_, err = svc.MarkRead(ctx, n.ID, "u1")
	require.NoError(t, err)

	var stored models.Notification
	require.NoError(t, svc.db.First(&stored, "id = ?", n.ID).Error)
	require.Equal(t, []string{"u1"}, []string(stored.ReadBy))

	_, err = svc.MarkRead(ctx, n.ID, "outsider")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	list, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.True(t, list[0].IsRead)
}
