package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/inspectd/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Job{},
		&models.ImageLabel{},
		&models.Report{},
		&models.Notification{},
		&models.PushToken{},
		&models.PushTokenSession{},
	)
}

// DefaultImageLabels are the captions available on a fresh install.
var DefaultImageLabels = []models.ImageLabel{
	{BaseModel: models.BaseModel{ID: "label-exterior"}, Name: "Exterior"},
	{BaseModel: models.BaseModel{ID: "label-roof"}, Name: "Roof"},
	{BaseModel: models.BaseModel{ID: "label-kitchen"}, Name: "Kitchen"},
	{BaseModel: models.BaseModel{ID: "label-bathroom"}, Name: "Bathroom"},
	{BaseModel: models.BaseModel{ID: "label-electrical"}, Name: "Electrical"},
	{BaseModel: models.BaseModel{ID: "label-plumbing"}, Name: "Plumbing"},
}

// SeedData populates the default image labels.
func SeedData(db *gorm.DB) error {
	for _, label := range DefaultImageLabels {
		if err := db.Where(models.ImageLabel{Name: label.Name}).Attrs(label).FirstOrCreate(&models.ImageLabel{}).Error; err != nil {
			return err
		}
	}
	return nil
}
