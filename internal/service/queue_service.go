package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"relayq/internal/errors"
	"relayq/internal/metrics"
	"relayq/internal/models"
	"relayq/internal/privacy"
	"relayq/internal/retry"
	"relayq/internal/tracing"
	"relayq/pkg/relay/types"

	"github.com/sirupsen/logrus"
)

// ErrSyncInProgress is returned when SyncQueue is called while another
// drain pass is running. The call is a no-op; the running pass already
// covers every message that was queued before it started.
var ErrSyncInProgress = errors.New(errors.ErrCodeInternalError, "queue sync already in progress")

// Store is the durable queue table the service drains. Both the SQLite
// store and the in-memory store satisfy it.
type Store interface {
	Put(ctx context.Context, msg *models.QueuedMessage) error
	Get(ctx context.Context, id string) (*models.QueuedMessage, error)
	Delete(ctx context.Context, id string) error
	QueryUnsynced(ctx context.Context) ([]*models.QueuedMessage, error)
	QueryByStatus(ctx context.Context, status models.MessageStatus) ([]*models.QueuedMessage, error)
	CountUnsynced(ctx context.Context) (int, error)
	CountUnsyncedByStatus(ctx context.Context, status models.MessageStatus) (int, error)
	Clear(ctx context.Context) error
	DeleteSynced(ctx context.Context) (int, error)
	CleanupOldSynced(ctx context.Context, retentionDays int) error
}

// Sender delivers one message to the relay server.
type Sender interface {
	SendMessage(ctx context.Context, req *types.SendMessageRequest) (*types.SendMessageResponse, error)
}

// SyncResult summarizes one drain pass.
type SyncResult struct {
	Attempted int `json:"attempted"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// QueueService is the offline message queue. Messages are accepted
// instantly into the store and drained to the relay server in FIFO
// order, one at a time, with exponential backoff between retries.
type QueueService interface {
	QueueMessage(ctx context.Context, draft *models.MessageDraft) (*models.QueuedMessage, error)
	GetQueue(ctx context.Context) ([]*models.QueuedMessage, error)
	GetQueueCount(ctx context.Context) (int, error)
	GetQueueCountByStatus(ctx context.Context, status models.MessageStatus) (int, error)
	SyncQueue(ctx context.Context) (*SyncResult, error)
	GetRetryDelay(retryCount int) time.Duration
	RetryFailed(ctx context.Context) (int, error)
	GetFailedMessages(ctx context.Context) ([]*models.QueuedMessage, error)
	RemoveFromQueue(ctx context.Context, id string) error
	ClearSyncedMessages(ctx context.Context) (int, error)
	ClearQueue(ctx context.Context) error
	CleanupOldSynced(ctx context.Context, retentionDays int) error
	IsSyncing() bool
}

type queueService struct {
	store      Store
	sender     Sender
	breaker    *CircuitBreaker
	backoff    *retry.Backoff
	maxRetries int
	logger     *errors.Logger

	syncing atomic.Bool

	// clockMu guards lastCreatedAt so that two enqueues landing in the
	// same millisecond still get strictly increasing timestamps and a
	// stable FIFO order.
	clockMu       sync.Mutex
	lastCreatedAt int64
	now           func() time.Time
}

// NewQueueService creates the queue service. breaker may be nil, in
// which case sends go straight to the sender.
func NewQueueService(store Store, sender Sender, breaker *CircuitBreaker, queueCfg models.QueueConfig, logger *logrus.Logger) QueueService {
	backoffCfg := retry.DefaultBackoffConfig()
	if queueCfg.InitialDelayMs > 0 {
		backoffCfg.InitialDelay = time.Duration(queueCfg.InitialDelayMs) * time.Millisecond
	}
	if queueCfg.BackoffMultiplier > 0 {
		backoffCfg.Multiplier = queueCfg.BackoffMultiplier
	}

	maxRetries := queueCfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = backoffCfg.MaxAttempts
	}

	return &queueService{
		store:      store,
		sender:     sender,
		breaker:    breaker,
		backoff:    retry.NewBackoff(backoffCfg),
		maxRetries: maxRetries,
		logger:     errors.WrapLogger(logger),
		now:        time.Now,
	}
}

// QueueMessage validates a draft and persists it as pending. It never
// sends; delivery happens on the next drain pass.
func (s *queueService) QueueMessage(ctx context.Context, draft *models.MessageDraft) (*models.QueuedMessage, error) {
	if draft == nil {
		return nil, models.ValidationError{Field: "draft", Message: "draft is required"}
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	createdAt := s.nextTimestamp()

	msg := &models.QueuedMessage{
		ID:                   draft.ID,
		ConversationID:       draft.ConversationID,
		SenderID:             draft.SenderID,
		EncryptedContent:     draft.EncryptedContent,
		InitializationVector: draft.InitializationVector,
		Status:               models.MessageStatusPending,
		Synced:               false,
		Retries:              0,
		CreatedAt:            createdAt,
		UpdatedAt:            createdAt,
	}

	if err := s.store.Put(ctx, msg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to queue message")
	}

	metrics.IncrementCounter("queue_messages_enqueued", nil, "Messages accepted into the queue")
	s.logger.Logger.WithFields(logrus.Fields{
		LogFieldMessageID:      privacy.MaskID(msg.ID),
		LogFieldConversationID: privacy.MaskID(msg.ConversationID),
	}).Debug("Message queued")

	copied := *msg
	return &copied, nil
}

// GetQueue returns all unsynced messages in delivery order.
func (s *queueService) GetQueue(ctx context.Context) ([]*models.QueuedMessage, error) {
	msgs, err := s.store.QueryUnsynced(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to read queue")
	}
	return msgs, nil
}

func (s *queueService) GetQueueCount(ctx context.Context) (int, error) {
	count, err := s.store.CountUnsynced(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to count queue")
	}
	return count, nil
}

func (s *queueService) GetQueueCountByStatus(ctx context.Context, status models.MessageStatus) (int, error) {
	if !models.ValidStatus(status) {
		return 0, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown status %q", status))
	}
	count, err := s.store.CountUnsyncedByStatus(ctx, status)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to count queue")
	}
	return count, nil
}

// SyncQueue drains the queue: unsynced messages are sent to the relay
// server one at a time in FIFO order. At most one pass runs at a time;
// a concurrent call returns ErrSyncInProgress without touching the
// store. Messages that are failed, or whose backoff delay has not
// elapsed yet, are skipped. A store error aborts the pass; a send
// error only advances that message's retry bookkeeping.
func (s *queueService) SyncQueue(ctx context.Context) (*SyncResult, error) {
	if !s.syncing.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer s.syncing.Store(false)

	ctx, span := tracing.StartSpan(ctx, "queue.sync")
	defer span.End()

	start := s.now()
	result := &SyncResult{}

	msgs, err := s.store.QueryUnsynced(ctx)
	if err != nil {
		wrapped := errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to read queue for sync")
		tracing.RecordError(ctx, wrapped)
		return nil, wrapped
	}

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if msg.Status == models.MessageStatusFailed {
			result.Skipped++
			continue
		}
		if msg.NextRetryAt > 0 && msg.NextRetryAt > s.nowMillis() {
			result.Skipped++
			continue
		}

		result.Attempted++
		if err := s.drainOne(ctx, msg, result); err != nil {
			tracing.RecordError(ctx, err)
			return result, err
		}
	}

	s.recordSyncMetrics(ctx, result, s.now().Sub(start))
	s.logger.Logger.WithFields(logrus.Fields{
		"attempted":      result.Attempted,
		"sent":           result.Sent,
		"failed":         result.Failed,
		"skipped":        result.Skipped,
		LogFieldDuration: s.now().Sub(start).Milliseconds(),
	}).Info("Queue sync pass completed")

	return result, nil
}

// drainOne sends a single message and persists the outcome. Only store
// failures are returned; send failures are absorbed into the message's
// retry state.
func (s *queueService) drainOne(ctx context.Context, msg *models.QueuedMessage, result *SyncResult) error {
	msg.Status = models.MessageStatusSending
	msg.UpdatedAt = s.nowMillis()
	if err := s.store.Put(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to mark message sending")
	}

	sendErr := s.send(ctx, msg)
	msg.UpdatedAt = s.nowMillis()

	if sendErr == nil {
		msg.Status = models.MessageStatusSent
		msg.Synced = true
		msg.LastError = ""
		msg.NextRetryAt = 0
		if err := s.store.Put(ctx, msg); err != nil {
			return errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to mark message sent")
		}
		result.Sent++
		metrics.IncrementCounter("queue_messages_sent", nil, "Messages delivered to the relay server")
		s.logger.Logger.WithField(LogFieldMessageID, privacy.MaskID(msg.ID)).Debug("Message delivered")
		return nil
	}

	msg.Retries++
	msg.LastError = sendErr.Error()

	if msg.Retries >= s.maxRetries {
		msg.Status = models.MessageStatusFailed
		msg.NextRetryAt = 0
		metrics.IncrementCounter("queue_messages_failed", nil, "Messages that exhausted their retry budget")
		s.logger.LogError(sendErr, "Message exhausted retries", logrus.Fields{
			LogFieldMessageID:  privacy.MaskID(msg.ID),
			LogFieldRetryCount: msg.Retries,
		})
	} else {
		delay := s.backoff.GetNextDelay(msg.Retries)
		msg.Status = models.MessageStatusPending
		msg.NextRetryAt = s.nowMillis() + delay.Milliseconds()
		metrics.IncrementCounter("queue_send_retries", nil, "Send attempts that failed and were rescheduled")
		s.logger.LogWarn(sendErr, "Message send failed, will retry", logrus.Fields{
			LogFieldMessageID:  privacy.MaskID(msg.ID),
			LogFieldRetryCount: msg.Retries,
			"retry_delay_ms":   delay.Milliseconds(),
		})
	}

	if err := s.store.Put(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to record send failure")
	}
	if msg.Status == models.MessageStatusFailed {
		result.Failed++
	}
	return nil
}

func (s *queueService) send(ctx context.Context, msg *models.QueuedMessage) error {
	req := &types.SendMessageRequest{
		ID:                   msg.ID,
		ConversationID:       msg.ConversationID,
		SenderID:             msg.SenderID,
		EncryptedContent:     msg.EncryptedContent,
		InitializationVector: msg.InitializationVector,
	}

	doSend := func(ctx context.Context) error {
		_, err := s.sender.SendMessage(ctx, req)
		return err
	}

	if s.breaker != nil {
		return s.breaker.Execute(ctx, doSend)
	}
	return doSend(ctx)
}

// GetRetryDelay returns the backoff delay applied after the given
// retry count, 1-indexed. It is pure: same input, same output.
func (s *queueService) GetRetryDelay(retryCount int) time.Duration {
	return s.backoff.GetNextDelay(retryCount)
}

// RetryFailed requeues every failed message as pending with a zeroed
// retry counter, making it eligible for the next drain pass. Returns
// the number of messages requeued.
func (s *queueService) RetryFailed(ctx context.Context) (int, error) {
	failed, err := s.store.QueryByStatus(ctx, models.MessageStatusFailed)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to read failed messages")
	}

	requeued := 0
	for _, msg := range failed {
		if msg.Synced {
			continue
		}
		msg.Status = models.MessageStatusPending
		msg.Retries = 0
		msg.LastError = ""
		msg.NextRetryAt = 0
		msg.UpdatedAt = s.nowMillis()
		if err := s.store.Put(ctx, msg); err != nil {
			return requeued, errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to requeue message")
		}
		requeued++
	}

	if requeued > 0 {
		metrics.AddToCounter("queue_messages_requeued", float64(requeued), nil, "Failed messages reset for another delivery cycle")
		s.logger.Logger.WithField(LogFieldCount, requeued).Info("Requeued failed messages")
	}
	return requeued, nil
}

func (s *queueService) GetFailedMessages(ctx context.Context) ([]*models.QueuedMessage, error) {
	msgs, err := s.store.QueryByStatus(ctx, models.MessageStatusFailed)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to read failed messages")
	}
	return msgs, nil
}

// RemoveFromQueue deletes one message by ID. Removing an absent ID is
// not an error.
func (s *queueService) RemoveFromQueue(ctx context.Context, id string) error {
	if id == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message id is required")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to remove message")
	}
	return nil
}

// ClearSyncedMessages deletes delivered messages and returns how many
// were removed. Unsynced messages are untouched.
func (s *queueService) ClearSyncedMessages(ctx context.Context) (int, error) {
	removed, err := s.store.DeleteSynced(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to clear synced messages")
	}
	if removed > 0 {
		s.logger.Logger.WithField(LogFieldCount, removed).Info("Cleared synced messages")
	}
	return removed, nil
}

// ClearQueue deletes every message regardless of state.
func (s *queueService) ClearQueue(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to clear queue")
	}
	s.logger.Logger.Warn("Queue cleared")
	return nil
}

// CleanupOldSynced removes delivered messages older than the retention
// window.
func (s *queueService) CleanupOldSynced(ctx context.Context, retentionDays int) error {
	if err := s.store.CleanupOldSynced(ctx, retentionDays); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreQuery, "failed to clean up old synced messages")
	}
	return nil
}

// IsSyncing reports whether a drain pass is currently running.
func (s *queueService) IsSyncing() bool {
	return s.syncing.Load()
}

func (s *queueService) nowMillis() int64 {
	return s.now().UnixMilli()
}

// nextTimestamp returns a strictly increasing epoch-millisecond value
// so enqueue order is preserved even within one millisecond.
func (s *queueService) nextTimestamp() int64 {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	t := s.now().UnixMilli()
	if t <= s.lastCreatedAt {
		t = s.lastCreatedAt + 1
	}
	s.lastCreatedAt = t
	return t
}

func (s *queueService) recordSyncMetrics(ctx context.Context, result *SyncResult, elapsed time.Duration) {
	metrics.IncrementCounter("queue_sync_passes", nil, "Completed drain passes")
	metrics.RecordTimer("queue_sync_duration", elapsed, nil, "Drain pass duration")

	if depth, err := s.store.CountUnsynced(ctx); err == nil {
		metrics.SetGauge("queue_depth", float64(depth), nil, "Unsynced messages awaiting delivery")
	}
}
