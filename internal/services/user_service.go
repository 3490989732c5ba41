package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/inspectd/internal/models"
	"github.com/charlesng35/inspectd/pkg/crypto"
	apperrors "github.com/charlesng35/inspectd/pkg/errors"
	"github.com/charlesng35/inspectd/pkg/logger"
)

// RegisterInput describes a self-service registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// UserService manages the account lifecycle: registration, approval and suspension.
type UserService struct {
	db       *gorm.DB
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewUserService constructs a UserService. notifier may be nil.
func NewUserService(db *gorm.DB, notifier Notifier) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db, notifier: notifier, log: logger.WithModule("users"), now: time.Now}, nil
}

// Register creates an active account awaiting approval and tells the administrators.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	role := strings.TrimSpace(input.Role)
	if name == "" {
		return nil, apperrors.NewValidation("name is required")
	}
	if email == "" {
		return nil, apperrors.NewValidation("email is required")
	}
	if role != models.RoleAdmin && role != models.RoleInspector {
		return nil, apperrors.NewValidation("role must be %s or %s", models.RoleAdmin, models.RoleInspector)
	}
	if err := crypto.ValidatePassword(input.Password); err != nil {
		return nil, apperrors.NewValidation("%s", err.Error())
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hashed,
		Role:     role,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("email %s is already registered", email)
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	s.notify(ctx, UserRegisteredEvent(user))
	return user, nil
}

// EnsureAdmin creates an approved administrator if the email is unknown. It
// is used to bootstrap the first account.
func (s *UserService) EnsureAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidation("admin email and password are required")
	}

	var existing models.User
	err := s.db.WithContext(ctx).First(&existing, "email = ?", email).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user service: load admin: %w", err)
	}

	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}
	now := s.now().UTC()
	user := &models.User{
		Name:       strings.TrimSpace(name),
		Email:      email,
		Password:   hashed,
		Role:       models.RoleAdmin,
		IsActive:   true,
		IsApproved: true,
		ApprovedAt: &now,
	}
	if user.Name == "" {
		user.Name = "Administrator"
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("user service: create admin: %w", err)
	}
	s.log.Info("bootstrap administrator created", zap.String("email", email))
	return user, nil
}

// Authenticate verifies credentials of an active, approved account.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthorized.WithMessage("invalid credentials")
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	if !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrUnauthorized.WithMessage("invalid credentials")
	}
	if !user.IsActive {
		return nil, apperrors.ErrForbidden.WithMessage("account is suspended")
	}
	if !user.IsApproved {
		return nil, apperrors.ErrForbidden.WithMessage("account is awaiting approval")
	}
	return &user, nil
}

// Get loads a user by id.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	userID = strings.TrimSpace(userID)
	var user models.User
	if err := s.db.WithContext(ensureContext(ctx)).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("user", userID)
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// Approve lets a registered user sign in.
func (s *UserService) Approve(ctx context.Context, userID, actorID string) (*models.User, error) {
	ctx = ensureContext(ctx)
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsApproved {
		return user, nil
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{"is_approved": true, "approved_at": now}).Error; err != nil {
		return nil, fmt.Errorf("user service: approve user: %w", err)
	}
	user.IsApproved = true
	user.ApprovedAt = &now

	s.notify(ctx, UserApprovedEvent(user, actorID))
	return user, nil
}

// Suspend deactivates the account, ends its device sessions and tells the
// remaining administrators.
func (s *UserService) Suspend(ctx context.Context, userID, actorID string) (*models.User, error) {
	ctx = ensureContext(ctx)
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ID == actorID {
		return nil, apperrors.NewValidation("administrators cannot suspend themselves")
	}
	if !user.IsActive {
		return user, nil
	}

	now := s.now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]any{"is_active": false, "suspended_at": now}).Error; err != nil {
			return err
		}
		return tx.Model(&models.PushTokenSession{}).
			Where("user_id = ? AND logged_in_status = ?", user.ID, true).
			Updates(map[string]any{"logged_in_status": false, "last_logged_out_at": now}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("user service: suspend user: %w", err)
	}
	user.IsActive = false
	user.SuspendedAt = &now

	s.notify(ctx, UserSuspendedEvent(user, actorID))
	return user, nil
}

// Unsuspend reactivates the account.
func (s *UserService) Unsuspend(ctx context.Context, userID, actorID string) (*models.User, error) {
	ctx = ensureContext(ctx)
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsActive {
		return user, nil
	}

	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{"is_active": true, "suspended_at": nil}).Error; err != nil {
		return nil, fmt.Errorf("user service: unsuspend user: %w", err)
	}
	user.IsActive = true
	user.SuspendedAt = nil

	s.notify(ctx, UserUnsuspendedEvent(user, actorID))
	return user, nil
}

func (s *UserService) notify(ctx context.Context, event Event) {
	if s.notifier == nil {
		return
	}
	if outcome := s.notifier.Notify(ctx, event); outcome.Err != nil {
		s.log.Warn("user notification failed", zap.String("type", event.Type), zap.Error(outcome.Err))
	}
}
