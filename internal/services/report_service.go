package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/charlesng35/inspectd/internal/models"
	"github.com/charlesng35/inspectd/internal/storage"
	apperrors "github.com/charlesng35/inspectd/pkg/errors"
	"github.com/charlesng35/inspectd/pkg/logger"
	"github.com/charlesng35/inspectd/pkg/metrics"
)

// DefaultUploadConcurrency bounds parallel image uploads per report.
const DefaultUploadConcurrency = 4

// ImageUpload is one photo submitted with a report.
type ImageUpload struct {
	LabelID     string
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// CreateReportInput describes a report submission.
type CreateReportInput struct {
	JobID       string
	InspectorID string
	Images      []ImageUpload
}

// ReportServiceOption customises a ReportService.
type ReportServiceOption func(*ReportService)

// WithUploadConcurrency sets how many images upload at once.
func WithUploadConcurrency(n int) ReportServiceOption {
	return func(s *ReportService) {
		if n > 0 {
			s.uploadConcurrency = n
		}
	}
}

// WithReportClock overrides the clock used for keys and commit timestamps.
func WithReportClock(now func() time.Time) ReportServiceOption {
	return func(s *ReportService) {
		if now != nil {
			s.now = now
		}
	}
}

// ReportService creates and reviews inspection reports.
//
// CreateReport is a saga over two systems that cannot share a transaction: the
// media store and the database. A draft row reserves the report id, images are
// uploaded under reports/{id}/, and a single guarded update commits them. Any
// failure in between deletes the draft and every uploaded object.
type ReportService struct {
	db                *gorm.DB
	store             storage.Store
	notifier          Notifier
	log               *zap.Logger
	now               func() time.Time
	uploadConcurrency int
}

// NewReportService constructs a ReportService. notifier may be nil.
func NewReportService(db *gorm.DB, store storage.Store, notifier Notifier, opts ...ReportServiceOption) (*ReportService, error) {
	if db == nil {
		return nil, errors.New("report service: db is required")
	}
	if store == nil {
		return nil, errors.New("report service: media store is required")
	}
	s := &ReportService{
		db:                db,
		store:             store,
		notifier:          notifier,
		log:               logger.WithModule("reports"),
		now:               time.Now,
		uploadConcurrency: DefaultUploadConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateReport validates the submission, uploads the images and commits the report.
func (s *ReportService) CreateReport(ctx context.Context, input CreateReportInput) (*models.Report, error) {
	ctx = ensureContext(ctx)

	job, labels, err := s.checkPreconditions(ctx, input)
	if err != nil {
		metrics.ReportSagaOutcomes.WithLabelValues("rejected").Inc()
		return nil, err
	}

	report := &models.Report{
		JobID:       job.ID,
		InspectorID: strings.TrimSpace(input.InspectorID),
		Status:      models.ReportStatusSubmitted,
		Images:      make([]models.ReportImage, len(input.Images)),
	}
	for i, upload := range input.Images {
		report.Images[i] = models.ReportImage{
			LabelID:    upload.LabelID,
			Label:      labels[upload.LabelID],
			FileName:   upload.FileName,
			MimeType:   upload.ContentType,
			Size:       upload.Size,
			UploadedBy: report.InspectorID,
		}
	}

	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		metrics.ReportSagaOutcomes.WithLabelValues("rejected").Inc()
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("a report already exists for job %s", job.ID)
		}
		return nil, fmt.Errorf("report service: create draft: %w", err)
	}

	keys, err := s.uploadImages(ctx, report, input.Images)
	if err != nil {
		s.rollback(ctx, report.ID, keys, err)
		return nil, apperrors.NewUpload(err)
	}

	committedAt := s.now().UTC()
	res := s.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("id = ? AND committed_at IS NULL", report.ID).
		Updates(map[string]any{
			"images":       report.Images,
			"committed_at": committedAt,
		})
	if res.Error == nil && res.RowsAffected == 0 {
		res.Error = fmt.Errorf("draft %s is no longer pending", report.ID)
	}
	if res.Error != nil {
		s.rollback(ctx, report.ID, keys, res.Error)
		return nil, fmt.Errorf("report service: commit report: %w", res.Error)
	}
	report.CommittedAt = &committedAt
	metrics.ReportSagaOutcomes.WithLabelValues("committed").Inc()

	if err := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", job.ID).
		Update("status", models.JobStatusReportSubmitted).Error; err != nil {
		s.log.Warn("failed to mark job report_submitted", zap.String("job_id", job.ID), zap.Error(err))
	} else {
		job.Status = models.JobStatusReportSubmitted
	}

	s.log.Info("report committed",
		zap.String("report_id", report.ID),
		zap.String("job_id", job.ID),
		zap.Int("images", len(report.Images)),
	)
	s.notify(ctx, ReportCreatedEvent(report, job))

	return report, nil
}

func (s *ReportService) checkPreconditions(ctx context.Context, input CreateReportInput) (*models.Job, map[string]string, error) {
	jobID := strings.TrimSpace(input.JobID)
	if jobID == "" {
		return nil, nil, apperrors.NewValidation("job id is required")
	}
	if strings.TrimSpace(input.InspectorID) == "" {
		return nil, nil, apperrors.NewValidation("inspector id is required")
	}

	var job models.Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.NewNotFound("job", jobID)
		}
		return nil, nil, fmt.Errorf("report service: load job: %w", err)
	}

	// an existing report wins over any problem with the submitted images
	if err := s.EnsureNoReport(ctx, jobID); err != nil {
		return nil, nil, err
	}

	if len(input.Images) == 0 {
		return nil, nil, apperrors.NewValidation("at least one image is required")
	}
	labelIDs := make([]string, 0, len(input.Images))
	for i, upload := range input.Images {
		if upload.Open == nil {
			return nil, nil, apperrors.NewValidation("image %d has no content", i)
		}
		if strings.TrimSpace(upload.LabelID) == "" {
			return nil, nil, apperrors.NewValidation("image %d has no label", i)
		}
		labelIDs = append(labelIDs, upload.LabelID)
	}

	labelIDs = normaliseIDs(labelIDs)
	var rows []models.ImageLabel
	if err := s.db.WithContext(ctx).Where("id IN ?", labelIDs).Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("report service: load labels: %w", err)
	}
	labels := make(map[string]string, len(rows))
	for _, row := range rows {
		labels[row.ID] = row.Name
	}
	var unknown []string
	for _, id := range labelIDs {
		if _, ok := labels[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return nil, nil, apperrors.NewValidation("unknown image labels: %s", strings.Join(unknown, ", "))
	}

	return &job, labels, nil
}

// EnsureNoReport fails with a conflict when the job already has a report,
// committed or still a draft.
func (s *ReportService) EnsureNoReport(ctx context.Context, jobID string) error {
	ctx = ensureContext(ctx)
	jobID = strings.TrimSpace(jobID)
	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Report{}).Where("job_id = ?", jobID).Count(&existing).Error; err != nil {
		return fmt.Errorf("report service: check existing report: %w", err)
	}
	if existing > 0 {
		return apperrors.NewConflict("a report already exists for job %s", jobID)
	}
	return nil
}

// uploadImages stores every image and fills in report.Images. Once an upload
// fails no new upload starts; uploads already running complete and their keys
// are returned so they can be removed.
func (s *ReportService) uploadImages(ctx context.Context, report *models.Report, uploads []ImageUpload) ([]string, error) {
	var (
		mu   sync.Mutex
		keys []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.uploadConcurrency)
	for i, upload := range uploads {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			key := storage.ReportImageKey(report.ID, upload.FileName, s.now())
			obj, err := s.putImage(ctx, key, upload)
			if err != nil {
				return fmt.Errorf("upload %s: %w", upload.FileName, err)
			}

			mu.Lock()
			keys = append(keys, obj.Key)
			report.Images[i].Key = obj.Key
			report.Images[i].URL = obj.URL
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if err == nil && len(keys) != len(uploads) {
		err = ctx.Err()
		if err == nil {
			err = errors.New("upload aborted")
		}
	}
	return keys, err
}

func (s *ReportService) putImage(ctx context.Context, key string, upload ImageUpload) (storage.Object, error) {
	body, err := upload.Open()
	if err != nil {
		return storage.Object{}, fmt.Errorf("open image: %w", err)
	}
	defer body.Close()
	return s.store.Put(ctx, body, key, upload.ContentType)
}

// rollback removes the draft and every uploaded object. It runs on a context
// detached from the caller so a cancelled request still cleans up.
func (s *ReportService) rollback(ctx context.Context, reportID string, keys []string, cause error) {
	cleanupCtx := detached(ctx)

	var errs error
	if err := s.db.WithContext(cleanupCtx).Where("id = ?", reportID).Delete(&models.Report{}).Error; err != nil {
		errs = multierr.Append(errs, fmt.Errorf("delete draft: %w", err))
	}
	if len(keys) > 0 {
		if err := s.store.DeleteMany(cleanupCtx, keys); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete %d objects: %w", len(keys), err))
		} else {
			metrics.MediaCompensations.Add(float64(len(keys)))
		}
	}
	metrics.ReportSagaOutcomes.WithLabelValues("rolled_back").Inc()

	fields := []zap.Field{
		zap.String("report_id", reportID),
		zap.Int("uploaded", len(keys)),
		zap.NamedError("cause", cause),
	}
	if errs != nil {
		s.log.Error("report rollback incomplete", append(fields, zap.Error(errs))...)
		return
	}
	s.log.Warn("report rolled back", fields...)
}

// UpdateStatus records a review decision and tells the inspector.
func (s *ReportService) UpdateStatus(ctx context.Context, reportID, status, actorID string) (*models.Report, error) {
	ctx = ensureContext(ctx)
	status = strings.TrimSpace(status)
	if !slices.Contains(models.ReportStatuses, status) {
		return nil, apperrors.NewValidation("invalid report status %q", status)
	}

	report, err := s.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("id = ?", report.ID).
		Updates(map[string]any{"status": status, "last_updated_by": actorID}).Error; err != nil {
		return nil, fmt.Errorf("report service: update status: %w", err)
	}
	report.Status = status
	report.LastUpdatedBy = actorID

	if status == models.ReportStatusCompleted {
		if err := s.db.WithContext(ctx).
			Model(&models.Job{}).
			Where("id = ?", report.JobID).
			Update("status", models.JobStatusCompleted).Error; err != nil {
			s.log.Warn("failed to complete job", zap.String("job_id", report.JobID), zap.Error(err))
		}
	}

	s.notify(ctx, ReportStatusUpdatedEvent(report, actorID))
	return report, nil
}

// Get loads a committed report.
func (s *ReportService) Get(ctx context.Context, reportID string) (*models.Report, error) {
	return s.findOne(ensureContext(ctx), "id = ?", strings.TrimSpace(reportID))
}

// GetByJob loads the committed report of a job.
func (s *ReportService) GetByJob(ctx context.Context, jobID string) (*models.Report, error) {
	return s.findOne(ensureContext(ctx), "job_id = ?", strings.TrimSpace(jobID))
}

func (s *ReportService) findOne(ctx context.Context, cond string, value string) (*models.Report, error) {
	var report models.Report
	err := s.db.WithContext(ctx).Where(cond, value).Where("committed_at IS NOT NULL").First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("report", value)
		}
		return nil, fmt.Errorf("report service: load report: %w", err)
	}
	return &report, nil
}

// Delete removes a report with its images and reopens the job.
func (s *ReportService) Delete(ctx context.Context, reportID string) error {
	ctx = ensureContext(ctx)
	report, err := s.Get(ctx, reportID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", report.ID).Delete(&models.Report{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", report.JobID, models.JobStatusReportSubmitted).
			Update("status", models.JobStatusAssigned).Error
	})
	if err != nil {
		return fmt.Errorf("report service: delete report: %w", err)
	}

	keys := make([]string, 0, len(report.Images))
	for _, image := range report.Images {
		if image.Key != "" {
			keys = append(keys, image.Key)
		}
	}
	if err := s.store.DeleteMany(detached(ctx), keys); err != nil {
		s.log.Warn("report deleted but images remain", zap.String("report_id", report.ID), zap.Error(err))
	}
	return nil
}

func (s *ReportService) notify(ctx context.Context, event Event) {
	if s.notifier == nil {
		return
	}
	outcome := s.notifier.Notify(ctx, event)
	if outcome.Err != nil {
		s.log.Warn("report notification failed", zap.String("type", event.Type), zap.Error(outcome.Err))
	}
}
