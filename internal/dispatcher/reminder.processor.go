package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/rent-reminders/internal/messaging"
	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/internal/queue"
	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/nimasrn/rent-reminders/pkg/prom"
)

const (
	ResultSent      = "sent"
	ResultRejected  = "rejected"
	ResultRetry     = "retry"
	ResultExhausted = "exhausted"
	ResultDuplicate = "duplicate"
)

const exhaustedReason = "delivery retries exhausted"

type Sender interface {
	Send(ctx context.Context, payload *model.MessagePayload) (*model.DeliveryResult, error)
}

// StatusRecorder reports delivery outcomes back to the reminder lifecycle.
type StatusRecorder interface {
	MarkSent(ctx context.Context, id, deliveryID string) (*model.TransitionResult, error)
	MarkFailed(ctx context.Context, id, reason string) (*model.TransitionResult, error)
}

type ReminderProcessor struct {
	sender      Sender
	recorder    StatusRecorder
	idempotency *IdempotencyService
}

func NewReminderProcessor(sender Sender, recorder StatusRecorder, idempotency *IdempotencyService) *ReminderProcessor {
	return &ReminderProcessor{
		sender:      sender,
		recorder:    recorder,
		idempotency: idempotency,
	}
}

func (p *ReminderProcessor) GetType() string {
	return "reminder"
}

// Process delivers one queued payload. A nil return acks the queue entry;
// an error leaves it pending for redelivery.
func (p *ReminderProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var payload model.MessagePayload
	if err := msg.Decode(&payload); err != nil {
		// redelivery ends in the dead letter stream where it can be inspected
		logger.Error("malformed reminder payload", "queue_id", msg.ID, "error", err)
		return err
	}
	id := payload.Metadata.ReminderID
	if id == "" {
		logger.Error("reminder payload without reminder id", "queue_id", msg.ID)
		return fmt.Errorf("payload %s has no reminder id", msg.ID)
	}

	attempt, err := p.idempotency.Acquire(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyDelivered):
		logger.Info("reminder already delivered, skipping", "reminder_id", id)
		prom.IncDispatchResult(ResultDuplicate)
		return nil
	case errors.Is(err, ErrMaxRetriesExceeded):
		logger.Error("reminder delivery gave up", "reminder_id", id, "error", err)
		prom.IncDispatchResult(ResultExhausted)
		if _, ferr := p.recorder.MarkFailed(ctx, id, exhaustedReason); ferr != nil {
			return fmt.Errorf("record exhausted reminder %s: %w", id, ferr)
		}
		return nil
	default:
		return err
	}
	defer p.idempotency.Release(ctx, attempt)

	start := time.Now()
	logger.Info("delivering reminder",
		"reminder_id", id,
		"reminder_type", payload.Metadata.ReminderType,
		"retry_count", attempt.RetryCount,
		"is_retry", attempt.IsRetry())

	res, err := p.sender.Send(ctx, &payload)
	if err != nil {
		var rejected *messaging.RejectedError
		if errors.As(err, &rejected) {
			return p.reject(ctx, attempt, rejected)
		}
		_ = p.idempotency.MarkRetry(ctx, attempt, err)
		if msg.LastDelivery() || p.idempotency.Exhausted(attempt) {
			return p.giveUp(ctx, attempt, err)
		}
		prom.IncDispatchResult(ResultRetry)
		return err
	}

	prom.AddDispatchDuration(string(payload.Metadata.ReminderType), time.Since(start).Seconds())
	prom.IncDispatchResult(ResultSent)

	// the message is out; from here on nothing may trigger a resend
	if err := p.idempotency.MarkDelivered(ctx, attempt); err != nil {
		logger.Error("failed to record delivery marker", "reminder_id", id, "error", err)
	}
	tr, err := p.recorder.MarkSent(ctx, id, res.DeliveryID)
	if err != nil {
		logger.Error("failed to mark reminder sent", "reminder_id", id, "delivery_id", res.DeliveryID, "error", err)
		return nil
	}
	if !tr.Applied {
		logger.Warn("reminder was no longer pending when delivery finished",
			"reminder_id", id,
			"status", tr.Reminder.Status)
	}
	return nil
}

// giveUp fails the reminder once no further delivery will be attempted,
// either because the queue would dead-letter the entry or the retry budget
// is spent.
func (p *ReminderProcessor) giveUp(ctx context.Context, attempt *Attempt, cause error) error {
	id := attempt.ReminderID
	prom.IncDispatchResult(ResultExhausted)
	logger.Error("reminder delivery gave up", "reminder_id", id, "retry_count", attempt.RetryCount+1, "error", cause)

	if _, err := p.recorder.MarkFailed(ctx, id, exhaustedReason+": "+cause.Error()); err != nil {
		return fmt.Errorf("record exhausted reminder %s: %w", id, err)
	}
	if err := p.idempotency.MarkDelivered(ctx, attempt); err != nil {
		logger.Error("failed to record delivery marker", "reminder_id", id, "error", err)
	}
	return nil
}

func (p *ReminderProcessor) reject(ctx context.Context, attempt *Attempt, rejected *messaging.RejectedError) error {
	id := attempt.ReminderID
	prom.IncDispatchResult(ResultRejected)

	reason := rejected.Reason
	if reason == "" {
		reason = rejected.Error()
	}
	if _, err := p.recorder.MarkFailed(ctx, id, reason); err != nil {
		_ = p.idempotency.MarkRetry(ctx, attempt, err)
		return fmt.Errorf("record rejected reminder %s: %w", id, err)
	}
	if err := p.idempotency.MarkDelivered(ctx, attempt); err != nil {
		logger.Error("failed to record delivery marker", "reminder_id", id, "error", err)
	}
	logger.Warn("reminder rejected by provider", "reminder_id", id, "provider", rejected.Provider, "reason", reason)
	return nil
}
