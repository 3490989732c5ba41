// Package maintenance runs the recurring background jobs.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/inspectd/internal/models"
	"github.com/charlesng35/inspectd/internal/services"
	"github.com/charlesng35/inspectd/pkg/logger"
)

const (
	// SweepLockKey guards the session sweep across instances.
	SweepLockKey = "session-sweep"

	defaultSweepInterval       = time.Hour
	defaultLockTTL             = 5 * time.Minute
	defaultRetentionSchedule   = "@daily"
	defaultNotificationRetains = 90
)

// SweepStatus describes the most recent session sweep on this instance.
type SweepStatus struct {
	At    time.Time
	Ran   bool
	Stats services.SweepStats
	Err   error
}

// Sweeper reconciles stale device sessions.
type Sweeper interface {
	Sweep(ctx context.Context) (services.SweepStats, error)
}

// Locker grants cross-instance exclusion, e.g. cache.Locker.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// Scheduler runs the session sweep every interval and prunes old notifications daily.
// Overlapping sweep ticks are not serialised in process; the optional Locker
// only stops two instances from sweeping at the same time.
type Scheduler struct {
	db        *gorm.DB
	sweeper   Sweeper
	locker    Locker
	lockTTL   time.Duration
	cron      *cron.Cron
	interval  time.Duration
	retention int
	now       func() time.Time
	log       *zap.Logger

	retentionSchedule string

	mu   sync.RWMutex
	last SweepStatus
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepInterval sets how often the session sweep runs.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLocker enables the cross-instance sweep lock.
func WithLocker(locker Locker, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.locker = locker
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithNotificationRetentionDays sets how long terminal notifications are kept.
// Zero or less disables the retention job.
func WithNotificationRetentionDays(days int) Option {
	return func(s *Scheduler) {
		s.retention = days
	}
}

// NewScheduler constructs a Scheduler. A nil sweeper or db disables the
// corresponding job.
func NewScheduler(db *gorm.DB, sweeper Sweeper, opts ...Option) *Scheduler {
	s := &Scheduler{
		db:                db,
		sweeper:           sweeper,
		lockTTL:           defaultLockTTL,
		interval:          defaultSweepInterval,
		retention:         defaultNotificationRetains,
		now:               time.Now,
		log:               logger.WithModule("maintenance"),
		retentionSchedule: defaultRetentionSchedule,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

// SweepSpec is the cron expression of the session sweep.
func (s *Scheduler) SweepSpec() string {
	return fmt.Sprintf("@every %dms", s.interval.Milliseconds())
}

// Start registers the jobs and launches the cron scheduler.
func (s *Scheduler) Start() error {
	if s.sweeper != nil {
		if _, err := s.cron.AddFunc(s.SweepSpec(), func() {
			if _, _, err := s.RunSweep(context.Background()); err != nil {
				s.log.Warn("session sweep failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule session sweep: %w", err)
		}
	}

	if s.db != nil && s.retention > 0 {
		if _, err := s.cron.AddFunc(s.retentionSchedule, func() {
			if _, err := CleanupNotifications(context.Background(), s.db, s.retentionCutoff()); err != nil {
				s.log.Warn("notification cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule notification cleanup: %w", err)
		}
	}

	s.cron.Start()
	s.log.Info("maintenance scheduler started", zap.String("sweep", s.SweepSpec()), zap.Bool("lock", s.locker != nil))
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunSweep performs one sweep. ran is false when another instance holds the lock.
func (s *Scheduler) RunSweep(ctx context.Context) (stats services.SweepStats, ran bool, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.sweeper == nil {
		return stats, false, nil
	}

	if s.locker != nil {
		release, acquired, lockErr := s.locker.TryLock(ctx, SweepLockKey, s.lockTTL)
		if lockErr != nil {
			err = fmt.Errorf("maintenance: acquire sweep lock: %w", lockErr)
			s.record(SweepStatus{At: s.now().UTC(), Err: err})
			return stats, false, err
		}
		if !acquired {
			s.log.Debug("session sweep skipped, lock held elsewhere")
			return stats, false, nil
		}
		defer func() {
			if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
				s.log.Warn("failed to release sweep lock", zap.Error(relErr))
			}
		}()
	}

	stats, err = s.sweeper.Sweep(ctx)
	s.record(SweepStatus{At: s.now().UTC(), Ran: true, Stats: stats, Err: err})
	return stats, true, err
}

// LastSweep reports the outcome of the latest sweep this instance ran. A run
// skipped because of the lock leaves it unchanged.
func (s *Scheduler) LastSweep() SweepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Scheduler) record(status SweepStatus) {
	s.mu.Lock()
	s.last = status
	s.mu.Unlock()
}

// RunOnce executes every job sequentially. Used in tests and by the CLI.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if _, _, err := s.RunSweep(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if s.db != nil && s.retention > 0 {
		if _, err := CleanupNotifications(ctx, s.db, s.retentionCutoff()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (s *Scheduler) retentionCutoff() time.Time {
	return s.now().UTC().AddDate(0, 0, -s.retention)
}

// CleanupNotifications deletes sent or failed notifications created before cutoff.
func CleanupNotifications(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup notifications: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Where("created_at < ? AND status IN ?", cutoff, []string{models.NotificationStatusSent, models.NotificationStatusFailed}).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}
