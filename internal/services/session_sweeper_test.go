package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/inspectd/internal/models"
)

var sweepNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestSweeper(t *testing.T, db *gorm.DB, opts ...SweeperOption) *SessionSweeper {
	t.Helper()
	opts = append([]SweeperOption{WithSweeperClock(func() time.Time { return sweepNow })}, opts...)
	sweeper, err := NewSessionSweeper(db, "7d", opts...)
	require.NoError(t, err)
	return sweeper
}

func loadSession(t *testing.T, db *gorm.DB, id string) models.PushTokenSession {
	t.Helper()
	var session models.PushTokenSession
	require.NoError(t, db.First(&session, "id = ?", id).Error)
	return session
}

func TestSweepLogsOutSessionsOlderThanTTL(t *testing.T) {
	db := openServiceTestDB(t)

	staleDevice := registerDevice(t, db, "u-stale", "stale", deviceOpts{loggedIn: true, notifications: true, lastLogin: sweepNow.Add(-8 * 24 * time.Hour)})
	freshDevice := registerDevice(t, db, "u-fresh", "fresh", deviceOpts{loggedIn: true, notifications: true, lastLogin: sweepNow.Add(-24 * time.Hour)})
	registerDevice(t, db, "u-out", "out", deviceOpts{loggedIn: false, notifications: true, lastLogin: sweepNow.Add(-30 * 24 * time.Hour)})

	stats, err := newTestSweeper(t, db).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepStats{Scanned: 1, Updated: 1, Batches: 1}, stats)

	var stale models.PushToken
	require.NoError(t, db.Preload("Sessions").First(&stale, "id = ?", staleDevice.ID).Error)
	session := stale.Sessions[0]
	require.False(t, session.LoggedInStatus)
	require.Nil(t, session.LastLoggedInAt)
	require.NotNil(t, session.LastLoggedOutAt)
	require.True(t, session.LastLoggedOutAt.Equal(sweepNow))
	require.True(t, session.NotificationActive)
	require.NotNil(t, stale.LastUsed)
	require.True(t, stale.LastUsed.Equal(sweepNow))

	var fresh models.PushToken
	require.NoError(t, db.Preload("Sessions").First(&fresh, "id = ?", freshDevice.ID).Error)
	require.True(t, fresh.Sessions[0].LoggedInStatus)
	require.NotNil(t, fresh.Sessions[0].LastLoggedInAt)
	require.Nil(t, fresh.LastUsed)
}

func TestSweepOnlyTouchesStaleEntriesOfSharedDevice(t *testing.T) {
	db := openServiceTestDB(t)
	device := registerDevice(t, db, "parent", "family-tablet", deviceOpts{loggedIn: true, notifications: true, lastLogin: sweepNow.Add(-10 * 24 * time.Hour)})
	child := addSession(t, db, device, "child", deviceOpts{loggedIn: true, notifications: true, lastLogin: sweepNow.Add(-time.Hour)})

	_, err := newTestSweeper(t, db).Sweep(context.Background())
	require.NoError(t, err)

	var sessions []models.PushTokenSession
	require.NoError(t, db.Where("push_token_id = ?", device.ID).Order("user_id").Find(&sessions).Error)
	require.Len(t, sessions, 2)
	require.Equal(t, "child", sessions[0].UserID)
	require.True(t, sessions[0].LoggedInStatus)
	require.Equal(t, child.ID, sessions[0].ID)
	require.Equal(t, "parent", sessions[1].UserID)
	require.False(t, sessions[1].LoggedInStatus)
}

func TestSweepPagesAndFlushesInBatches(t *testing.T) {
	db := openServiceTestDB(t)
	for i := 0; i < 7; i++ {
		registerDevice(t, db, fmt.Sprintf("user-%d", i), fmt.Sprintf("tok-%d", i), deviceOpts{
			loggedIn: true, notifications: true, lastLogin: sweepNow.Add(-9 * 24 * time.Hour),
		})
	}
	registerDevice(t, db, "user-fresh", "tok-fresh", deviceOpts{loggedIn: true, notifications: true, lastLogin: sweepNow})

	sweeper := newTestSweeper(t, db, WithSweepBatchSize(3))
	stats, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, stats.Scanned)
	require.Equal(t, 7, stats.Updated)
	require.Equal(t, 3, stats.Batches)

	var stillLoggedIn int64
	require.NoError(t, db.Model(&models.PushTokenSession{}).Where("logged_in_status = ?", true).Count(&stillLoggedIn).Error)
	require.Equal(t, int64(1), stillLoggedIn)

	again, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepStats{}, again)
}

func TestSweeperUsesParsedTTL(t *testing.T) {
	db := openServiceTestDB(t)
	session := addSession(t, db,
		registerDevice(t, db, "other", "tok", deviceOpts{}),
		"u1", deviceOpts{loggedIn: true, notifications: true, lastLogin: sweepNow.Add(-2 * time.Hour)},
	)

	sweeper, err := NewSessionSweeper(db, "1h", WithSweeperClock(func() time.Time { return sweepNow }))
	require.NoError(t, err)
	stats, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Updated)
	require.False(t, loadSession(t, db, session.ID).LoggedInStatus)
}

var errSessionWriteRefused = errors.New("session write refused")

// refuseSessionUpdates fails every push_token_sessions update whose conditions
// reference the given device id.
func refuseSessionUpdates(t *testing.T, db *gorm.DB, deviceID string) {
	t.Helper()
	err := db.Callback().Update().Before("gorm:update").Register("test:refuse_session_update", func(tx *gorm.DB) {
		if tx.Statement.Table != "push_token_sessions" {
			return
		}
		where, ok := tx.Statement.Clauses["WHERE"].Expression.(clause.Where)
		if !ok {
			return
		}
		for _, expr := range where.Exprs {
			cond, ok := expr.(clause.Expr)
			if !ok {
				continue
			}
			for _, v := range cond.Vars {
				switch v := v.(type) {
				case string:
					if v == deviceID {
						_ = tx.AddError(errSessionWriteRefused)
						return
					}
				case []string:
					if slices.Contains(v, deviceID) {
						_ = tx.AddError(errSessionWriteRefused)
						return
					}
				}
			}
		}
	})
	require.NoError(t, err)
}

func TestSweepContinuesPastFailedRecord(t *testing.T) {
	db := openServiceTestDB(t)
	stale := deviceOpts{loggedIn: true, notifications: true, lastLogin: sweepNow.Add(-9 * 24 * time.Hour)}
	first := registerDevice(t, db, "user-a", "tok-a", stale)
	broken := registerDevice(t, db, "user-b", "tok-b", stale)
	last := registerDevice(t, db, "user-c", "tok-c", stale)
	refuseSessionUpdates(t, db, broken.ID)

	stats, err := newTestSweeper(t, db).Sweep(context.Background())
	require.ErrorIs(t, err, errSessionWriteRefused)
	require.ErrorContains(t, err, broken.ID)
	require.Equal(t, SweepStats{Scanned: 3, Updated: 2, Failed: 1, Batches: 1}, stats)

	for _, device := range []*models.PushToken{first, last} {
		var session models.PushTokenSession
		require.NoError(t, db.First(&session, "push_token_id = ?", device.ID).Error)
		require.False(t, session.LoggedInStatus, "device %s should be swept", device.DeviceID)
	}
	var kept models.PushTokenSession
	require.NoError(t, db.First(&kept, "push_token_id = ?", broken.ID).Error)
	require.True(t, kept.LoggedInStatus)

	var untouched models.PushToken
	require.NoError(t, db.First(&untouched, "id = ?", broken.ID).Error)
	require.Nil(t, untouched.LastUsed)
}

func TestSweepWritesEachBatchInOneStatement(t *testing.T) {
	db := openServiceTestDB(t)
	for i := 0; i < 7; i++ {
		registerDevice(t, db, fmt.Sprintf("user-%d", i), fmt.Sprintf("tok-%d", i), deviceOpts{loggedIn: true, notifications: true, lastLogin: sweepNow.Add(-10 * 24 * time.Hour)})
	}

	var sessionUpdates int
	require.NoError(t, db.Callback().Update().After("gorm:update").Register("test:count_session_updates", func(tx *gorm.DB) {
		if tx.Statement.Table == "push_token_sessions" && tx.Error == nil {
			sessionUpdates++
		}
	}))

	stats, err := newTestSweeper(t, db, WithSweepBatchSize(3)).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, stats.Updated)
	require.Equal(t, 3, stats.Batches)
	require.Equal(t, 3, sessionUpdates)
}
