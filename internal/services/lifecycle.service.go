package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/nimasrn/rent-reminders/pkg/prom"
)

type ReminderTransitioner interface {
	GetByID(ctx context.Context, id string) (*model.ReminderSchedule, error)
	Transition(ctx context.Context, t model.ReminderTransition) (*model.ReminderSchedule, error)
}

// LifecycleService moves reminders out of pending. A transition that finds
// the reminder already terminal is reported with Applied=false, never as an
// error, so delivery callbacks can be retried safely.
type LifecycleService struct {
	repo ReminderTransitioner
	now  func() time.Time
}

func NewLifecycleService(repo ReminderTransitioner) *LifecycleService {
	return &LifecycleService{repo: repo, now: time.Now}
}

func (s *LifecycleService) Get(ctx context.Context, id string) (*model.ReminderSchedule, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *LifecycleService) MarkSent(ctx context.Context, id, deliveryID string) (*model.TransitionResult, error) {
	return s.transition(ctx, model.ReminderTransition{ID: id, Target: model.ReminderStatusSent, DeliveryID: deliveryID})
}

func (s *LifecycleService) MarkFailed(ctx context.Context, id, reason string) (*model.TransitionResult, error) {
	if reason == "" {
		return nil, model.NewValidationError("reason", "is required")
	}
	return s.transition(ctx, model.ReminderTransition{ID: id, Target: model.ReminderStatusFailed, Reason: reason})
}

func (s *LifecycleService) Cancel(ctx context.Context, id string) (*model.TransitionResult, error) {
	return s.transition(ctx, model.ReminderTransition{ID: id, Target: model.ReminderStatusCancelled})
}

// Apply dispatches a caller-supplied status to the matching transition.
func (s *LifecycleService) Apply(ctx context.Context, id string, status model.ReminderStatus, deliveryID, reason string) (*model.TransitionResult, error) {
	switch status {
	case model.ReminderStatusSent:
		return s.MarkSent(ctx, id, deliveryID)
	case model.ReminderStatusFailed:
		return s.MarkFailed(ctx, id, reason)
	case model.ReminderStatusCancelled:
		return s.Cancel(ctx, id)
	}
	return nil, model.NewValidationError("status", "must be sent, failed or cancelled")
}

func (s *LifecycleService) transition(ctx context.Context, t model.ReminderTransition) (*model.TransitionResult, error) {
	if t.ID == "" {
		return nil, model.NewValidationError("id", "is required")
	}
	t.At = s.now().UTC()

	r, err := s.repo.Transition(ctx, t)
	var stateErr *model.InvalidStateError
	switch {
	case errors.As(err, &stateErr):
		logger.Warn("reminder transition ignored",
			"reminder_id", t.ID, "current", stateErr.Current, "target", stateErr.Target)
		prom.IncTransition(string(t.Target), false)
		return &model.TransitionResult{Reminder: r, Applied: false}, nil
	case errors.Is(err, model.ErrNotFound), model.IsValidationError(err):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("transition reminder %s: %w", t.ID, err)
	}

	prom.IncTransition(string(t.Target), true)
	logger.Info("reminder transitioned", "reminder_id", t.ID, "status", t.Target)
	return &model.TransitionResult{Reminder: r, Applied: true}, nil
}
