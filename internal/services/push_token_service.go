package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/inspectd/internal/models"
	apperrors "github.com/charlesng35/inspectd/pkg/errors"
)

// DeviceLoginInput registers a device for a signed-in user.
type DeviceLoginInput struct {
	UserID   string
	DeviceID string
	Token    string
	Platform string
}

// PushTokenService manages device registrations and their per-user sessions.
type PushTokenService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPushTokenService constructs a PushTokenService.
func NewPushTokenService(db *gorm.DB) (*PushTokenService, error) {
	if db == nil {
		return nil, errors.New("push token service: db is required")
	}
	return &PushTokenService{db: db, now: time.Now}, nil
}

// Login upserts the device record and marks the user's session on it as
// logged in with notifications enabled. A token previously registered by a
// different device moves to this one.
func (s *PushTokenService) Login(ctx context.Context, input DeviceLoginInput) (*models.PushToken, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	deviceID := strings.TrimSpace(input.DeviceID)
	token := strings.TrimSpace(input.Token)
	platform := strings.ToLower(strings.TrimSpace(input.Platform))
	if userID == "" || deviceID == "" || token == "" {
		return nil, apperrors.NewValidation("user id, device id and token are required")
	}
	switch platform {
	case models.PlatformAndroid, models.PlatformIOS, models.PlatformWeb:
	default:
		return nil, apperrors.NewValidation("unsupported platform %q", input.Platform)
	}

	now := s.now().UTC()
	var device models.PushToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stale []string
		if err := tx.Model(&models.PushToken{}).
			Where("token = ? AND device_id <> ?", token, deviceID).
			Pluck("id", &stale).Error; err != nil {
			return err
		}
		if len(stale) > 0 {
			if err := tx.Where("push_token_id IN ?", stale).Delete(&models.PushTokenSession{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", stale).Delete(&models.PushToken{}).Error; err != nil {
				return err
			}
		}

		err := tx.First(&device, "device_id = ?", deviceID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			device = models.PushToken{DeviceID: deviceID, Token: token, Platform: platform, LastUsed: &now}
			if err := tx.Create(&device).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&models.PushToken{}).
				Where("id = ?", device.ID).
				Updates(map[string]any{"token": token, "platform": platform, "last_used": now}).Error; err != nil {
				return err
			}
		}

		res := tx.Model(&models.PushTokenSession{}).
			Where("push_token_id = ? AND user_id = ?", device.ID, userID).
			Updates(map[string]any{
				"logged_in_status":    true,
				"notification_active": true,
				"last_logged_in_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			session := models.PushTokenSession{
				PushTokenID:        device.ID,
				UserID:             userID,
				NotificationActive: true,
				LoggedInStatus:     true,
				LastLoggedInAt:     &now,
			}
			if err := tx.Create(&session).Error; err != nil {
				return err
			}
		}

		return tx.Preload("Sessions").First(&device, "id = ?", device.ID).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("device %s is being registered concurrently", deviceID)
		}
		return nil, fmt.Errorf("push token service: login: %w", err)
	}
	return &device, nil
}

// Logout flips only the caller's session on the device.
func (s *PushTokenService) Logout(ctx context.Context, userID, deviceID string) error {
	now := s.now().UTC()
	return s.updateSession(ensureContext(ctx), userID, deviceID, map[string]any{
		"logged_in_status":   false,
		"last_logged_out_at": now,
	})
}

// SetNotificationsActive toggles delivery to the caller on the device.
func (s *PushTokenService) SetNotificationsActive(ctx context.Context, userID, deviceID string, active bool) error {
	return s.updateSession(ensureContext(ctx), userID, deviceID, map[string]any{
		"notification_active": active,
	})
}

func (s *PushTokenService) updateSession(ctx context.Context, userID, deviceID string, updates map[string]any) error {
	userID = strings.TrimSpace(userID)
	deviceID = strings.TrimSpace(deviceID)
	if userID == "" || deviceID == "" {
		return apperrors.NewValidation("user id and device id are required")
	}

	devices := s.db.Model(&models.PushToken{}).Select("id").Where("device_id = ?", deviceID)
	res := s.db.WithContext(ctx).
		Model(&models.PushTokenSession{}).
		Where("user_id = ? AND push_token_id IN (?)", userID, devices).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("push token service: update session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFound("device session", deviceID)
	}
	return nil
}
