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
	apperrors "github.com/charlesng35/inspectd/pkg/errors"
	"github.com/charlesng35/inspectd/pkg/logger"
)

// CreateJobInput describes a new inspection job.
type CreateJobInput struct {
	Title        string
	Address      string
	Notes        string
	ScheduledFor *time.Time
	InspectorID  string
	CreatedBy    string
}

// JobService manages inspection jobs.
type JobService struct {
	db       *gorm.DB
	notifier Notifier
	log      *zap.Logger
}

// NewJobService constructs a JobService. notifier may be nil.
func NewJobService(db *gorm.DB, notifier Notifier) (*JobService, error) {
	if db == nil {
		return nil, errors.New("job service: db is required")
	}
	return &JobService{db: db, notifier: notifier, log: logger.WithModule("jobs")}, nil
}

// Create stores a job. When an inspector is given the job starts assigned.
func (s *JobService) Create(ctx context.Context, input CreateJobInput) (*models.Job, error) {
	ctx = ensureContext(ctx)
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidation("title is required")
	}

	job := &models.Job{
		Title:        title,
		Address:      strings.TrimSpace(input.Address),
		Notes:        strings.TrimSpace(input.Notes),
		ScheduledFor: input.ScheduledFor,
		Status:       models.JobStatusPending,
		CreatedBy:    input.CreatedBy,
	}

	if inspectorID := strings.TrimSpace(input.InspectorID); inspectorID != "" {
		if err := s.requireInspector(ctx, inspectorID); err != nil {
			return nil, err
		}
		job.InspectorID = &inspectorID
		job.Status = models.JobStatusAssigned
	}

	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("job service: create job: %w", err)
	}

	s.notify(ctx, JobCreatedEvent(job, input.CreatedBy))
	if job.InspectorID != nil {
		s.notify(ctx, JobAssignedEvent(job, input.CreatedBy))
	}
	return job, nil
}

// Assign hands the job to an inspector.
func (s *JobService) Assign(ctx context.Context, jobID, inspectorID, actorID string) (*models.Job, error) {
	ctx = ensureContext(ctx)
	inspectorID = strings.TrimSpace(inspectorID)
	if inspectorID == "" {
		return nil, apperrors.NewValidation("inspector id is required")
	}

	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case models.JobStatusPending, models.JobStatusAssigned:
	default:
		return nil, apperrors.NewConflict("job %s can no longer be assigned (status %s)", job.ID, job.Status)
	}
	if err := s.requireInspector(ctx, inspectorID); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{"inspector_id": inspectorID, "status": models.JobStatusAssigned}).Error; err != nil {
		return nil, fmt.Errorf("job service: assign job: %w", err)
	}
	job.InspectorID = &inspectorID
	job.Status = models.JobStatusAssigned

	s.notify(ctx, JobAssignedEvent(job, actorID))
	return job, nil
}

// Get loads a job by id.
func (s *JobService) Get(ctx context.Context, jobID string) (*models.Job, error) {
	jobID = strings.TrimSpace(jobID)
	var job models.Job
	if err := s.db.WithContext(ensureContext(ctx)).First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("job", jobID)
		}
		return nil, fmt.Errorf("job service: load job: %w", err)
	}
	return &job, nil
}

func (s *JobService) requireInspector(ctx context.Context, userID string) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFound("user", userID)
		}
		return fmt.Errorf("job service: load inspector: %w", err)
	}
	if user.Role != models.RoleInspector || !user.IsActive || !user.IsApproved {
		return apperrors.NewValidation("user %s is not an active inspector", userID)
	}
	return nil
}

func (s *JobService) notify(ctx context.Context, event Event) {
	if s.notifier == nil {
		return
	}
	if outcome := s.notifier.Notify(ctx, event); outcome.Err != nil {
		s.log.Warn("job notification failed", zap.String("type", event.Type), zap.Error(outcome.Err))
	}
}
