package services

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/inspectd/internal/database/testutil"
	"github.com/charlesng35/inspectd/internal/models"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithSeedData())
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(_ context.Context, event Event) DispatchOutcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return DispatchOutcome{Notification: &models.Notification{Type: event.Type, Status: models.NotificationStatusSent}}
}

func (n *recordingNotifier) Types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]string, 0, len(n.events))
	for _, event := range n.events {
		types = append(types, event.Type)
	}
	return types
}

func (n *recordingNotifier) Last() Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return Event{}
	}
	return n.events[len(n.events)-1]
}

type userOpts struct {
	role     string
	active   bool
	approved bool
}

func createUser(t *testing.T, db *gorm.DB, name string, opts userOpts) *models.User {
	t.Helper()
	if opts.role == "" {
		opts.role = models.RoleInspector
	}
	user := &models.User{
		Name:       name,
		Email:      strings.ToLower(name) + "-" + uuid.NewString()[:8] + "@example.com",
		Password:   "x",
		Role:       opts.role,
		IsActive:   opts.active,
		IsApproved: opts.approved,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func activeUser(role string) userOpts {
	return userOpts{role: role, active: true, approved: true}
}

func createJob(t *testing.T, db *gorm.DB, inspector *models.User) *models.Job {
	t.Helper()
	job := &models.Job{Title: "12 Harbour St", Address: "12 Harbour St", Status: models.JobStatusPending}
	if inspector != nil {
		job.InspectorID = &inspector.ID
		job.Status = models.JobStatusAssigned
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

type deviceOpts struct {
	loggedIn      bool
	notifications bool
	lastLogin     time.Time
}

func registerDevice(t *testing.T, db *gorm.DB, userID, token string, opts deviceOpts) *models.PushToken {
	t.Helper()
	device := &models.PushToken{DeviceID: "device-" + token, Token: token, Platform: models.PlatformAndroid}
	require.NoError(t, db.Create(device).Error)
	addSession(t, db, device, userID, opts)
	return device
}

func addSession(t *testing.T, db *gorm.DB, device *models.PushToken, userID string, opts deviceOpts) *models.PushTokenSession {
	t.Helper()
	session := &models.PushTokenSession{
		PushTokenID:        device.ID,
		UserID:             userID,
		NotificationActive: opts.notifications,
		LoggedInStatus:     opts.loggedIn,
	}
	if !opts.lastLogin.IsZero() {
		at := opts.lastLogin.UTC()
		session.LastLoggedInAt = &at
	}
	require.NoError(t, db.Create(session).Error)
	return session
}

func imageUpload(labelID, name, content string) ImageUpload {
	return ImageUpload{
		LabelID:     labelID,
		FileName:    name,
		ContentType: "image/jpeg",
		Size:        int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}
