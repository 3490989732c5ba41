package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/inspectd/internal/models"
	"github.com/charlesng35/inspectd/internal/push"
	"github.com/charlesng35/inspectd/pkg/logger"
	"github.com/charlesng35/inspectd/pkg/metrics"
)

// Delivery warnings recorded in a notification result. They never fail a dispatch.
const (
	WarningNoTargets      = "no-targets"
	WarningPartialFailure = "partial-failure"
)

// Delivery modes recorded in a notification result.
const (
	DeliveryModeMulticast = "multicast"
	DeliveryModeFallback  = "fallback"
	DeliveryModeNone      = "none"
)

var errEmptyMulticastResponse = errors.New("push gateway returned no response")

// Notifier fans business events out to devices.
type Notifier interface {
	Notify(ctx context.Context, event Event) DispatchOutcome
}

// DispatchOutcome is the result of one dispatch. Err is informational: callers
// log it and carry on.
type DispatchOutcome struct {
	Notification *models.Notification
	Err          error
}

// Failed reports whether the dispatch ended in the failed state.
func (o DispatchOutcome) Failed() bool {
	return o.Err != nil || o.Notification == nil || o.Notification.Status != models.NotificationStatusSent
}

// DispatchResult is persisted as the notification result.
type DispatchResult struct {
	Mode         string               `json:"mode"`
	Warning      string               `json:"warning,omitempty"`
	SuccessCount int                  `json:"successCount"`
	FailureCount int                  `json:"failureCount"`
	Batches      []push.BatchResponse `json:"batches,omitempty"`
	ChunkErrors  []string             `json:"chunkErrors,omitempty"`
	Deliveries   []FallbackDelivery   `json:"deliveries,omitempty"`
	Pruned       int                  `json:"pruned,omitempty"`
}

// FallbackDelivery is one single-token send on the fallback path.
type FallbackDelivery struct {
	Token     string `json:"token"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DispatcherOption customises a NotificationDispatcher.
type DispatcherOption func(*NotificationDispatcher)

// WithDispatcherClock overrides the clock used for sent_at.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *NotificationDispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithDispatcherLogger overrides the module logger.
func WithDispatcherLogger(log *zap.Logger) DispatcherOption {
	return func(d *NotificationDispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// NotificationDispatcher resolves recipients to device tokens, delivers through
// the push gateway and records exactly one terminal outcome per event.
type NotificationDispatcher struct {
	db      *gorm.DB
	gateway push.Gateway
	log     *zap.Logger
	now     func() time.Time
}

// NewNotificationDispatcher constructs a dispatcher.
func NewNotificationDispatcher(db *gorm.DB, gateway push.Gateway, opts ...DispatcherOption) (*NotificationDispatcher, error) {
	if db == nil {
		return nil, errors.New("notification dispatcher: db is required")
	}
	if gateway == nil {
		return nil, errors.New("notification dispatcher: gateway is required")
	}
	d := &NotificationDispatcher{
		db:      db,
		gateway: gateway,
		log:     logger.WithModule("notifications"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Notify dispatches event. It never panics and the returned notification is
// always either sent or failed.
func (d *NotificationDispatcher) Notify(ctx context.Context, event Event) (outcome DispatchOutcome) {
	ctx = ensureContext(ctx)

	notification := &models.Notification{
		Type:     strings.TrimSpace(event.Type),
		Title:    event.Title,
		Body:     event.Body,
		Data:     datatypes.NewJSONType(coerceData(event.Data)),
		AuthorID: event.AuthorID,
		Status:   models.NotificationStatusPending,
	}
	if id := strings.TrimSpace(event.RecipientID); id != "" {
		notification.RecipientID = &id
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("notification dispatcher: panic: %v", r)
			d.log.Error("notification dispatch panicked", zap.String("type", notification.Type), zap.Any("panic", r))
			notification.Status = models.NotificationStatusFailed
			outcome = DispatchOutcome{Notification: notification, Err: err}
		}
	}()

	if err := d.db.WithContext(ctx).Create(notification).Error; err != nil {
		err = fmt.Errorf("notification dispatcher: create notification: %w", err)
		d.log.Error("notification not recorded", zap.String("type", notification.Type), zap.Error(err))
		notification.Status = models.NotificationStatusFailed
		metrics.NotificationDispatches.WithLabelValues(notification.Type, notification.Status).Inc()
		return DispatchOutcome{Notification: notification, Err: err}
	}

	result, dispatchErr := d.dispatchSafely(ctx, notification, event)
	return d.finalise(ctx, notification, result, dispatchErr)
}

func (d *NotificationDispatcher) dispatchSafely(ctx context.Context, notification *models.Notification, event Event) (result *DispatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification dispatcher: panic: %v", r)
		}
	}()
	return d.dispatch(ctx, notification, event)
}

func (d *NotificationDispatcher) dispatch(ctx context.Context, notification *models.Notification, event Event) (*DispatchResult, error) {
	recipients, err := d.resolveRecipients(ctx, event)
	if err != nil {
		return nil, err
	}
	notification.Recipients = recipients

	tokens, err := d.activeTokens(ctx, recipients)
	if err != nil {
		return nil, err
	}
	notification.Tokens = tokens

	message := push.Message{
		Title: notification.Title,
		Body:  notification.Body,
		Data:  notification.Data.Data(),
	}

	var (
		result       *DispatchResult
		unregistered []string
		sendErr      error
	)
	switch {
	case len(tokens) > 0:
		result, unregistered, sendErr = d.multicast(ctx, tokens, message)
	case len(recipients) == 1:
		result, unregistered, sendErr = d.fallback(ctx, recipients[0], message)
	default:
		result = &DispatchResult{Mode: DeliveryModeNone, Warning: WarningNoTargets}
	}

	if len(unregistered) > 0 {
		pruned, err := d.pruneTokens(ctx, unregistered)
		if err != nil {
			d.log.Warn("failed to prune unregistered tokens", zap.Int("count", len(unregistered)), zap.Error(err))
		}
		if result != nil {
			result.Pruned = pruned
		}
	}

	return result, sendErr
}

func (d *NotificationDispatcher) multicast(ctx context.Context, tokens []string, message push.Message) (*DispatchResult, []string, error) {
	result := &DispatchResult{Mode: DeliveryModeMulticast}
	var (
		unregistered []string
		lastErr      error
	)

	chunks := push.Chunk(tokens, push.MaxMulticastTokens)
	for _, chunk := range chunks {
		resp, err := d.gateway.SendMulticast(ctx, chunk, message)
		if err == nil && resp == nil {
			err = errEmptyMulticastResponse
		}
		if err != nil {
			lastErr = err
			result.FailureCount += len(chunk)
			result.ChunkErrors = append(result.ChunkErrors, err.Error())
			continue
		}
		result.SuccessCount += resp.SuccessCount
		result.FailureCount += resp.FailureCount
		result.Batches = append(result.Batches, *resp)
		for _, r := range resp.Responses {
			if r.Unregistered && r.Token != "" {
				unregistered = append(unregistered, r.Token)
			}
		}
	}

	if len(result.ChunkErrors) == len(chunks) {
		return result, unregistered, fmt.Errorf("notification dispatcher: all %d multicast batches failed: %w", len(chunks), lastErr)
	}
	if len(result.ChunkErrors) > 0 {
		result.Warning = WarningPartialFailure
	}
	return result, unregistered, nil
}

func (d *NotificationDispatcher) fallback(ctx context.Context, userID string, message push.Message) (*DispatchResult, []string, error) {
	var tokens []string
	err := d.db.WithContext(ctx).
		Model(&models.PushToken{}).
		Distinct().
		Joins("JOIN push_token_sessions ON push_token_sessions.push_token_id = push_tokens.id").
		Where("push_token_sessions.user_id = ? AND push_token_sessions.notification_active = ?", userID, true).
		Order("push_tokens.token").
		Pluck("push_tokens.token", &tokens).Error
	if err != nil {
		return nil, nil, fmt.Errorf("notification dispatcher: load fallback tokens: %w", err)
	}

	result := &DispatchResult{Mode: DeliveryModeFallback}
	if len(tokens) == 0 {
		result.Warning = WarningNoTargets
		return result, nil, nil
	}

	var (
		unregistered []string
		lastErr      error
	)
	for _, token := range tokens {
		id, err := d.gateway.Send(ctx, token, message)
		if err != nil {
			lastErr = err
			result.FailureCount++
			result.Deliveries = append(result.Deliveries, FallbackDelivery{Token: token, Error: err.Error()})
			if errors.Is(err, push.ErrUnregistered) {
				unregistered = append(unregistered, token)
			}
			continue
		}
		result.SuccessCount++
		result.Deliveries = append(result.Deliveries, FallbackDelivery{Token: token, MessageID: id})
	}

	if result.SuccessCount == 0 {
		return result, unregistered, fmt.Errorf("notification dispatcher: fallback delivery failed: %w", lastErr)
	}
	if result.FailureCount > 0 {
		result.Warning = WarningPartialFailure
	}
	return result, unregistered, nil
}

func (d *NotificationDispatcher) resolveRecipients(ctx context.Context, event Event) ([]string, error) {
	if id := strings.TrimSpace(event.RecipientID); id != "" {
		return []string{id}, nil
	}
	if len(event.RecipientIDs) > 0 {
		return normaliseIDs(event.RecipientIDs), nil
	}
	if event.Roles == nil {
		return nil, nil
	}

	query := d.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", event.Roles.Role)
	if event.Roles.ActiveApprovedOnly {
		query = query.Where("is_active = ? AND is_approved = ?", true, true)
	}
	if exclude := normaliseIDs(event.Roles.ExcludeIDs); len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}

	var ids []string
	if err := query.Order("created_at ASC, id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("notification dispatcher: resolve %s recipients: %w", event.Roles.Role, err)
	}
	return ids, nil
}

func (d *NotificationDispatcher) activeTokens(ctx context.Context, recipients []string) ([]string, error) {
	if len(recipients) == 0 {
		return nil, nil
	}
	var tokens []string
	err := d.db.WithContext(ctx).
		Model(&models.PushToken{}).
		Distinct().
		Joins("JOIN push_token_sessions ON push_token_sessions.push_token_id = push_tokens.id").
		Where("push_token_sessions.user_id IN ?", recipients).
		Where("push_token_sessions.notification_active = ? AND push_token_sessions.logged_in_status = ?", true, true).
		Order("push_tokens.token").
		Pluck("push_tokens.token", &tokens).Error
	if err != nil {
		return nil, fmt.Errorf("notification dispatcher: resolve tokens: %w", err)
	}
	return tokens, nil
}

func (d *NotificationDispatcher) pruneTokens(ctx context.Context, tokens []string) (int, error) {
	tokens = normaliseIDs(tokens)
	var pruned int
	err := d.db.WithContext(detached(ctx)).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.PushToken{}).Where("token IN ?", tokens).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("push_token_id IN ?", ids).Delete(&models.PushTokenSession{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.PushToken{})
		if res.Error != nil {
			return res.Error
		}
		pruned = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("notification dispatcher: prune tokens: %w", err)
	}
	if pruned > 0 {
		metrics.PushTokensPruned.Add(float64(pruned))
		d.log.Info("pruned unregistered push tokens", zap.Int("count", pruned))
	}
	return pruned, nil
}

// finalise writes the terminal state. The guard on status keeps the write to
// exactly one transition out of pending.
func (d *NotificationDispatcher) finalise(ctx context.Context, notification *models.Notification, result *DispatchResult, dispatchErr error) DispatchOutcome {
	updates := map[string]any{
		"recipients": notification.Recipients,
		"tokens":     notification.Tokens,
	}

	if dispatchErr != nil {
		notification.Status = models.NotificationStatusFailed
		payload := map[string]any{"error": dispatchErr.Error()}
		if result != nil {
			payload["delivery"] = result
		}
		notification.Result = mustJSON(payload)
	} else {
		now := d.now().UTC()
		notification.Status = models.NotificationStatusSent
		notification.SentAt = &now
		notification.Result = mustJSON(result)
		updates["sent_at"] = now
	}
	updates["status"] = notification.Status
	updates["result"] = notification.Result

	err := d.db.WithContext(detached(ctx)).
		Model(&models.Notification{}).
		Where("id = ? AND status = ?", notification.ID, models.NotificationStatusPending).
		Updates(updates).Error
	if err != nil {
		d.log.Error("failed to persist notification outcome",
			zap.String("notification_id", notification.ID),
			zap.String("status", notification.Status),
			zap.Error(err),
		)
		if dispatchErr == nil {
			dispatchErr = fmt.Errorf("notification dispatcher: persist outcome: %w", err)
		}
	}

	metrics.NotificationDispatches.WithLabelValues(notification.Type, notification.Status).Inc()

	fields := []zap.Field{
		zap.String("notification_id", notification.ID),
		zap.String("type", notification.Type),
		zap.String("status", notification.Status),
		zap.Int("recipients", len(notification.Recipients)),
		zap.Int("tokens", len(notification.Tokens)),
	}
	switch {
	case dispatchErr != nil:
		d.log.Warn("notification dispatch failed", append(fields, zap.Error(dispatchErr))...)
	case result != nil && result.Warning != "":
		d.log.Warn("notification dispatched with warning", append(fields, zap.String("warning", result.Warning))...)
	default:
		d.log.Debug("notification dispatched", fields...)
	}

	return DispatchOutcome{Notification: notification, Err: dispatchErr}
}

func mustJSON(value any) datatypes.JSON {
	raw, err := json.Marshal(value)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return datatypes.JSON(raw)
}

// coerceData flattens event data to the string map push payloads require.
func coerceData(data map[string]any) map[string]string {
	out := make(map[string]string, len(data))
	for key, value := range data {
		out[key] = coerceValue(value)
	}
	return out
}

func coerceValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	}

	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return ""
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(raw)
}
