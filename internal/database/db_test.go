package database

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/inspectd/internal/models"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestAutoMigrateAndSeedData(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrateAndSeed(db))
	// Seeding twice must not duplicate labels.
	require.NoError(t, SeedData(db))

	var labels int64
	require.NoError(t, db.Model(&models.ImageLabel{}).Count(&labels).Error)
	require.Equal(t, int64(len(DefaultImageLabels)), labels)

	migrator := db.Migrator()
	for _, model := range []any{
		&models.User{}, &models.Job{}, &models.Report{},
		&models.Notification{}, &models.PushToken{}, &models.PushTokenSession{},
	} {
		require.True(t, migrator.HasTable(model), "missing table for %T", model)
	}
}

func TestReportJobIDIsUnique(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	first := models.Report{JobID: "job-1", InspectorID: "insp", Status: models.ReportStatusSubmitted}
	require.NoError(t, db.Create(&first).Error)

	second := models.Report{JobID: "job-1", InspectorID: "insp", Status: models.ReportStatusSubmitted}
	err := db.Create(&second).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString()),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
