package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/nimasrn/rent-reminders/pkg/prom"
)

const DefaultRetentionDays = 90

type ReminderSweeper interface {
	DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SweeperService deletes sent reminders older than the retention window.
// Pending, failed and cancelled rows are kept.
type SweeperService struct {
	repo ReminderSweeper
	loc  *time.Location
	now  func() time.Time
}

func NewSweeperService(repo ReminderSweeper, loc *time.Location) *SweeperService {
	if loc == nil {
		loc = time.UTC
	}
	return &SweeperService{repo: repo, loc: loc, now: time.Now}
}

// Sweep removes sent reminders whose trigger date is before today minus
// retentionDays. Zero selects DefaultRetentionDays.
func (s *SweeperService) Sweep(ctx context.Context, retentionDays int) (*model.SweepResult, error) {
	if retentionDays < 0 {
		return nil, model.NewValidationError("retention_days", "must not be negative")
	}
	if retentionDays == 0 {
		retentionDays = DefaultRetentionDays
	}

	cutoff := model.DateOf(s.now().In(s.loc)).AddDate(0, 0, -retentionDays)
	deleted, err := s.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sweep reminders: %w", err)
	}

	prom.AddSwept(deleted)
	logger.Info("sent reminders swept", "deleted", deleted, "retention_days", retentionDays, "cutoff", model.FormatDate(cutoff))
	return &model.SweepResult{
		DeletedCount:  deleted,
		RetentionDays: retentionDays,
		Cutoff:        model.FormatDate(cutoff),
	}, nil
}
