package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/nimasrn/rent-reminders/pkg/redis"
)

var (
	ErrAlreadyDelivered   = errors.New("reminder already delivered")
	ErrLockAcquireFailed  = errors.New("failed to acquire delivery lock")
	ErrMaxRetriesExceeded = errors.New("maximum delivery retries exceeded")
)

// KeyStore is the subset of the Redis adapter the guard needs.
type KeyStore interface {
	Exist(key string) (int64, error)
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
	SetNX(key string, value []byte, ttl time.Duration) (bool, error)
	Del(key string) error
}

type IdempotencyConfig struct {
	LockTTL      time.Duration
	DeliveredTTL time.Duration
	MaxRetries   int
	KeyPrefix    string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:      30 * time.Second,
		DeliveredTTL: 72 * time.Hour,
		MaxRetries:   3,
		KeyPrefix:    "dispatch:",
	}
}

// IdempotencyService makes sure one reminder is handed to the messaging
// collaborator at most once per success, even when the same payload is
// published twice or consumed by two workers.
type IdempotencyService struct {
	store  KeyStore
	config IdempotencyConfig
}

func NewIdempotencyService(store KeyStore, config IdempotencyConfig) *IdempotencyService {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultIdempotencyConfig().MaxRetries
	}
	return &IdempotencyService{store: store, config: config}
}

func (s *IdempotencyService) deliveredKey(id string) string {
	return s.config.KeyPrefix + "delivered:" + id
}

func (s *IdempotencyService) retryKey(id string) string {
	return s.config.KeyPrefix + "retry:" + id
}

func (s *IdempotencyService) lockKey(id string) string {
	return s.config.KeyPrefix + "lock:" + id
}

// Attempt is one held delivery lock for a reminder.
type Attempt struct {
	ReminderID string
	RetryCount int
	held       bool
}

func (a *Attempt) IsRetry() bool {
	return a.RetryCount > 0
}

func (s *IdempotencyService) Acquire(ctx context.Context, reminderID string) (*Attempt, error) {
	exists, err := s.store.Exist(s.deliveredKey(reminderID))
	if err != nil {
		// a lookup failure must not block delivery; the lifecycle guard still
		// rejects a second sent transition
		logger.Warn("delivery marker lookup failed", "reminder_id", reminderID, "error", err)
	} else if exists > 0 {
		return nil, ErrAlreadyDelivered
	}

	retries, err := s.RetryCount(ctx, reminderID)
	if err != nil {
		logger.Warn("retry counter lookup failed", "reminder_id", reminderID, "error", err)
	}
	if retries >= s.config.MaxRetries {
		return nil, fmt.Errorf("%w: reminder_id=%s, retries=%d", ErrMaxRetriesExceeded, reminderID, retries)
	}

	token := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := s.store.SetNX(s.lockKey(reminderID), token, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("delivery lock acquired", "reminder_id", reminderID, "retry_count", retries)
	return &Attempt{ReminderID: reminderID, RetryCount: retries, held: true}, nil
}

// Exhausted reports whether a failure of attempt spends the retry budget, so
// the next Acquire would refuse the reminder.
func (s *IdempotencyService) Exhausted(a *Attempt) bool {
	return a.RetryCount+1 >= s.config.MaxRetries
}

// MarkDelivered records a final outcome. Later Acquire calls for the same
// reminder return ErrAlreadyDelivered.
func (s *IdempotencyService) MarkDelivered(ctx context.Context, a *Attempt) error {
	if err := s.store.Set(s.deliveredKey(a.ReminderID), []byte("1"), s.config.DeliveredTTL); err != nil {
		return fmt.Errorf("failed to mark delivered: %w", err)
	}
	if err := s.store.Del(s.retryKey(a.ReminderID)); err != nil {
		logger.Warn("retry counter cleanup failed", "reminder_id", a.ReminderID, "error", err)
	}
	return s.Release(ctx, a)
}

// MarkRetry bumps the retry counter and frees the lock for the next attempt.
func (s *IdempotencyService) MarkRetry(ctx context.Context, a *Attempt, reason error) error {
	next := a.RetryCount + 1
	if err := s.store.Set(s.retryKey(a.ReminderID), []byte(strconv.Itoa(next)), s.config.DeliveredTTL); err != nil {
		logger.Error("retry counter update failed", "reminder_id", a.ReminderID, "error", err)
	}
	logger.Warn("delivery failed, will retry",
		"reminder_id", a.ReminderID,
		"retry_count", next,
		"max_retries", s.config.MaxRetries,
		"reason", reason)
	return s.Release(ctx, a)
}

func (s *IdempotencyService) Release(ctx context.Context, a *Attempt) error {
	if a == nil || !a.held {
		return nil
	}
	if err := s.store.Del(s.lockKey(a.ReminderID)); err != nil {
		logger.Warn("delivery lock release failed", "reminder_id", a.ReminderID, "error", err)
		return err
	}
	a.held = false
	return nil
}

func (s *IdempotencyService) RetryCount(ctx context.Context, reminderID string) (int, error) {
	raw, err := s.store.Get(s.retryKey(reminderID))
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("corrupt retry counter %q: %w", raw, err)
	}
	return n, nil
}
