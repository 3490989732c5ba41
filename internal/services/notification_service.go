package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/inspectd/internal/models"
	apperrors "github.com/charlesng35/inspectd/pkg/errors"
)

// NotificationDTO is the API view of a notification for one reader.
type NotificationDTO struct {
	*models.Notification
	IsRead bool `json:"is_read"`
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID string
	Limit  int
	Offset int
}

// NotificationService exposes the notification inbox of a user.
type NotificationService struct {
	db *gorm.DB
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db}, nil
}

// ListForUser returns notifications addressed to the user, directly or as a
// member of the recipient list, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.NewValidation("user id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	var rows []models.Notification
	err := s.db.WithContext(ctx).
		Where(s.addressedTo(userID)).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(max(0, input.Offset)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	out := make([]NotificationDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NotificationDTO{
			Notification: &rows[i],
			IsRead:       containsString(rows[i].ReadBy, userID),
		})
	}
	return out, nil
}

// MarkRead records that the user read the notification. Repeated calls are no-ops.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	notificationID = strings.TrimSpace(notificationID)
	userID = strings.TrimSpace(userID)
	if notificationID == "" || userID == "" {
		return nil, apperrors.NewValidation("notification id and user id are required")
	}

	var notification models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", notificationID).Where(s.addressedTo(userID)).First(&notification).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("notification", notificationID)
			}
			return fmt.Errorf("notification service: load notification: %w", err)
		}
		if containsString(notification.ReadBy, userID) {
			return nil
		}
		notification.ReadBy = append(notification.ReadBy, userID)
		if err := tx.Model(&models.Notification{}).
			Where("id = ?", notification.ID).
			Update("read_by", notification.ReadBy).Error; err != nil {
			return fmt.Errorf("notification service: mark read: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &NotificationDTO{Notification: &notification, IsRead: true}, nil
}

// addressedTo matches the direct recipient or membership of the JSON recipient list.
func (s *NotificationService) addressedTo(userID string) clause.Expression {
	member := datatypes.JSONArrayQuery("recipients").Contains(userID)
	return clause.Or(clause.Eq{Column: clause.Column{Name: "recipient_id"}, Value: userID}, member)
}
