package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/inspectd/internal/auth"
	"github.com/charlesng35/inspectd/internal/models"
	"github.com/charlesng35/inspectd/pkg/logger"
	"github.com/charlesng35/inspectd/pkg/metrics"
)

// DefaultSweepBatchSize is the page and bulk-write size of a sweep.
const DefaultSweepBatchSize = 500

// SweepStats summarises one sweep.
type SweepStats struct {
	Scanned int
	Updated int
	Failed  int
	Batches int
}

// SweeperOption customises a SessionSweeper.
type SweeperOption func(*SessionSweeper)

// WithSweeperClock overrides the sweep clock.
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *SessionSweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepBatchSize sets the page and flush size.
func WithSweepBatchSize(size int) SweeperOption {
	return func(s *SessionSweeper) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// SessionSweeper logs out device sessions whose login is older than the
// session TTL, so tokens of users whose JWT expired stop receiving pushes.
type SessionSweeper struct {
	db        *gorm.DB
	ttl       time.Duration
	batchSize int
	log       *zap.Logger
	now       func() time.Time
}

// NewSessionSweeper builds a sweeper. ttl uses the auth.ParseSessionTTL format.
func NewSessionSweeper(db *gorm.DB, ttl string, opts ...SweeperOption) (*SessionSweeper, error) {
	if db == nil {
		return nil, errors.New("session sweeper: db is required")
	}
	s := &SessionSweeper{
		db:        db,
		ttl:       auth.ParseSessionTTL(ttl),
		batchSize: DefaultSweepBatchSize,
		log:       logger.WithModule("session-sweeper"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sweep pages through stale device records by id and flushes one partial
// update per record every batchSize records. A failed update is counted and
// the sweep moves on; only a failed page read stops it.
func (s *SessionSweeper) Sweep(ctx context.Context) (SweepStats, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()
	expiry := now.Add(-s.ttl)

	var (
		stats  SweepStats
		errs   error
		cursor string
		queue  = make([]string, 0, s.batchSize)
	)

	flush := func() {
		if len(queue) == 0 {
			return
		}
		updated, err := s.flush(ctx, queue, now, expiry)
		stats.Batches++
		stats.Updated += updated
		stats.Failed += len(queue) - updated
		if err != nil {
			errs = multierr.Append(errs, err)
			s.log.Warn("session sweep batch had failures",
				zap.Int("batch", stats.Batches),
				zap.Int("failed", len(queue)-updated),
				zap.Error(err),
			)
		}
		queue = queue[:0]
	}

	for {
		ids, err := s.page(ctx, cursor, expiry)
		if err != nil {
			flush()
			return stats, multierr.Append(errs, err)
		}
		if len(ids) == 0 {
			break
		}
		cursor = ids[len(ids)-1]
		stats.Scanned += len(ids)

		for _, id := range ids {
			queue = append(queue, id)
			if len(queue) >= s.batchSize {
				flush()
			}
		}
		if len(ids) < s.batchSize {
			break
		}
	}
	flush()

	if stats.Scanned > 0 {
		s.log.Info("session sweep finished",
			zap.Int("scanned", stats.Scanned),
			zap.Int("updated", stats.Updated),
			zap.Int("failed", stats.Failed),
			zap.Time("expiry", expiry),
		)
	}
	return stats, errs
}

func (s *SessionSweeper) page(ctx context.Context, cursor string, expiry time.Time) ([]string, error) {
	query := s.db.WithContext(ctx).
		Model(&models.PushToken{}).
		Where("EXISTS (SELECT 1 FROM push_token_sessions WHERE push_token_sessions.push_token_id = push_tokens.id AND push_token_sessions.logged_in_status = ? AND push_token_sessions.last_logged_in_at < ?)", true, expiry)
	if cursor != "" {
		query = query.Where("push_tokens.id > ?", cursor)
	}

	var ids []string
	if err := query.Order("push_tokens.id ASC").Limit(s.batchSize).Pluck("push_tokens.id", &ids).Error; err != nil {
		return nil, fmt.Errorf("session sweeper: read page after %q: %w", cursor, err)
	}
	return ids, nil
}

// flush logs out the queued records with one predicate-scoped statement per
// table. When that batch fails the records are retried one by one so a single
// bad record does not hold back the rest.
func (s *SessionSweeper) flush(ctx context.Context, ids []string, now, expiry time.Time) (int, error) {
	batchErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return logOutStale(tx, ids, now, expiry)
	})
	if batchErr == nil {
		metrics.SessionsSwept.WithLabelValues("updated").Add(float64(len(ids)))
		return len(ids), nil
	}
	s.log.Debug("batch update failed; retrying per record", zap.Int("records", len(ids)), zap.Error(batchErr))

	var (
		updated int
		errs    error
	)
	for _, id := range ids {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return logOutStale(tx, []string{id}, now, expiry)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("session sweeper: update %s: %w", id, err))
			metrics.SessionsSwept.WithLabelValues("failed").Inc()
			continue
		}
		updated++
		metrics.SessionsSwept.WithLabelValues("updated").Inc()
	}
	return updated, errs
}

func logOutStale(tx *gorm.DB, ids []string, now, expiry time.Time) error {
	if err := tx.Model(&models.PushTokenSession{}).
		Where("push_token_id IN ? AND logged_in_status = ? AND last_logged_in_at < ?", ids, true, expiry).
		Updates(map[string]any{
			"logged_in_status":   false,
			"last_logged_in_at":  nil,
			"last_logged_out_at": now,
		}).Error; err != nil {
		return err
	}
	return tx.Model(&models.PushToken{}).Where("id IN ?", ids).Update("last_used", now).Error
}
