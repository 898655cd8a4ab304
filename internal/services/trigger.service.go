package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/pkg/logger"
)

type TriggerRepository interface {
	List(ctx context.Context, f model.TriggerFilter) ([]*model.Trigger, error)
	Upsert(ctx context.Context, t *model.Trigger) (*model.Trigger, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type TriggerService struct {
	repo TriggerRepository
}

func NewTriggerService(repo TriggerRepository) *TriggerService {
	return &TriggerService{repo: repo}
}

// ListActive returns the triggers used by generation, by priority ascending.
func (s *TriggerService) ListActive(ctx context.Context) ([]*model.Trigger, error) {
	return s.repo.List(ctx, model.TriggerFilter{ActiveOnly: true})
}

func (s *TriggerService) List(ctx context.Context, activeOnly bool) ([]*model.Trigger, error) {
	return s.repo.List(ctx, model.TriggerFilter{ActiveOnly: activeOnly})
}

// Upsert validates p and creates or replaces the trigger with the same name.
func (s *TriggerService) Upsert(ctx context.Context, p model.TriggerUpsertRequest) (*model.Trigger, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	t, err := s.repo.Upsert(ctx, p.ToTrigger())
	if err != nil {
		return nil, fmt.Errorf("upsert trigger %s: %w", p.Name, err)
	}
	return t, nil
}

// SeedDefaults installs the default trigger set in one transaction.
// Existing triggers with the same names are overwritten.
func (s *TriggerService) SeedDefaults(ctx context.Context) ([]*model.Trigger, error) {
	defaults := model.DefaultTriggers()
	var out []*model.Trigger
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		out = make([]*model.Trigger, 0, len(defaults))
		for _, p := range defaults {
			t, err := s.Upsert(ctx, p)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, t := range out {
		logger.Info("trigger seeded", "name", t.Name, "type", t.Type, "day_offset", t.DayOffset)
	}
	return out, nil
}
