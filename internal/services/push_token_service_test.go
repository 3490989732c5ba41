package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/inspectd/internal/models"
	apperrors "github.com/charlesng35/inspectd/pkg/errors"
)

func TestPushTokenLoginCreatesAndRefreshesDevice(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewPushTokenService(db)
	require.NoError(t, err)
	ctx := context.Background()

	device, err := svc.Login(ctx, DeviceLoginInput{UserID: "u1", DeviceID: "phone", Token: "tok-1", Platform: "Android"})
	require.NoError(t, err)
	require.Equal(t, models.PlatformAndroid, device.Platform)
	require.Len(t, device.Sessions, 1)
	require.True(t, device.Sessions[0].LoggedInStatus)
	require.True(t, device.Sessions[0].NotificationActive)

	// A second user signs in on the same device, then the first one again with a rotated token.
	_, err = svc.Login(ctx, DeviceLoginInput{UserID: "u2", DeviceID: "phone", Token: "tok-1", Platform: "android"})
	require.NoError(t, err)
	device, err = svc.Login(ctx, DeviceLoginInput{UserID: "u1", DeviceID: "phone", Token: "tok-2", Platform: "android"})
	require.NoError(t, err)
	require.Equal(t, "tok-2", device.Token)
	require.Len(t, device.Sessions, 2)

	var count int64
	require.NoError(t, db.Model(&models.PushToken{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestPushTokenLoginMovesTokenBetweenDevices(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewPushTokenService(db)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Login(ctx, DeviceLoginInput{UserID: "u1", DeviceID: "old-install", Token: "tok", Platform: "ios"})
	require.NoError(t, err)
	_, err = svc.Login(ctx, DeviceLoginInput{UserID: "u1", DeviceID: "new-install", Token: "tok", Platform: "ios"})
	require.NoError(t, err)

	var devices []string
	require.NoError(t, db.Model(&models.PushToken{}).Pluck("device_id", &devices).Error)
	require.Equal(t, []string{"new-install"}, devices)

	var sessions int64
	require.NoError(t, db.Model(&models.PushTokenSession{}).Count(&sessions).Error)
	require.Equal(t, int64(1), sessions)
}

func TestPushTokenLoginValidatesInput(t *testing.T) {
	svc, err := NewPushTokenService(openServiceTestDB(t))
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), DeviceLoginInput{UserID: "u1", DeviceID: "d", Token: "t", Platform: "symbian"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.Login(context.Background(), DeviceLoginInput{UserID: "u1", Platform: "web"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestPushTokenLogoutFlipsOnlyCallerSession(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewPushTokenService(db)
	require.NoError(t, err)
	ctx := context.Background()

	for _, user := range []string{"parent", "child"} {
		_, err := svc.Login(ctx, DeviceLoginInput{UserID: user, DeviceID: "tablet", Token: "tok", Platform: "web"})
		require.NoError(t, err)
	}

	require.NoError(t, svc.Logout(ctx, "child", "tablet"))

	var device models.PushToken
	require.NoError(t, db.Preload("Sessions").First(&device, "device_id = ?", "tablet").Error)
	parent, _ := device.SessionFor("parent")
	child, _ := device.SessionFor("child")
	require.True(t, parent.LoggedInStatus)
	require.False(t, child.LoggedInStatus)
	require.NotNil(t, child.LastLoggedOutAt)

	require.ErrorIs(t, svc.Logout(ctx, "stranger", "tablet"), apperrors.ErrNotFound)
	require.ErrorIs(t, svc.Logout(ctx, "child", "unknown"), apperrors.ErrNotFound)
}

func TestPushTokenSetNotificationsActive(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewPushTokenService(db)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Login(ctx, DeviceLoginInput{UserID: "u1", DeviceID: "phone", Token: "tok", Platform: "ios"})
	require.NoError(t, err)
	require.NoError(t, svc.SetNotificationsActive(ctx, "u1", "phone", false))

	var session models.PushTokenSession
	require.NoError(t, db.First(&session, "user_id = ?", "u1").Error)
	require.False(t, session.NotificationActive)
	require.True(t, session.LoggedInStatus)
}
