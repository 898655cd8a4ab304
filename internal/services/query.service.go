package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
)

type ReminderReader interface {
	GetDetails(ctx context.Context, id string) (*model.ReminderDetails, error)
	ListDue(ctx context.Context, date time.Time) ([]*model.ReminderDetails, error)
	List(ctx context.Context, f model.ReminderFilter) ([]*model.ReminderSchedule, error)
	Count(ctx context.Context, f model.ReminderFilter) (int64, error)
	CountBy(ctx context.Context, column string, f model.ReminderFilter) ([]model.GroupCount, error)
}

// Group columns understood by ReminderReader.CountBy.
const (
	GroupByStatus = "status"
	GroupByType   = "reminder_type"
)

type QueryService struct {
	repo ReminderReader
	loc  *time.Location
	now  func() time.Time
}

// NewQueryService builds the read side. loc decides which calendar day is
// "today"; nil means UTC.
func NewQueryService(repo ReminderReader, loc *time.Location) *QueryService {
	if loc == nil {
		loc = time.UTC
	}
	return &QueryService{repo: repo, loc: loc, now: time.Now}
}

func (s *QueryService) Today() time.Time {
	return model.DateOf(s.now().In(s.loc))
}

func (s *QueryService) Get(ctx context.Context, id string) (*model.ReminderDetails, error) {
	return s.repo.GetDetails(ctx, id)
}

// GetDue returns pending reminders firing on date, by priority then
// creation time.
func (s *QueryService) GetDue(ctx context.Context, date time.Time) ([]*model.ReminderDetails, error) {
	items, err := s.repo.ListDue(ctx, model.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return items, nil
}

func (s *QueryService) GetToday(ctx context.Context) ([]*model.ReminderDetails, error) {
	return s.GetDue(ctx, s.Today())
}

// GetByRange returns reminders with start <= trigger_date <= end.
func (s *QueryService) GetByRange(ctx context.Context, start, end time.Time, status *model.ReminderStatus, typ *model.TriggerType) ([]*model.ReminderSchedule, error) {
	start, end = model.DateOf(start), model.DateOf(end)
	if end.Before(start) {
		return nil, model.NewValidationError("end_date", "must not be before start_date")
	}
	if status != nil && !status.Valid() {
		return nil, model.NewValidationError("status", fmt.Sprintf("unknown status %q", *status))
	}
	if typ != nil && !typ.Valid() {
		return nil, model.NewValidationError("type", fmt.Sprintf("unknown type %q", *typ))
	}

	items, err := s.repo.List(ctx, model.ReminderFilter{From: &start, To: &end, Status: status, Type: typ})
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return items, nil
}

func (s *QueryService) GetStatistics(ctx context.Context) (*model.Statistics, error) {
	total, err := s.repo.Count(ctx, model.ReminderFilter{})
	if err != nil {
		return nil, fmt.Errorf("count reminders: %w", err)
	}
	byStatus, err := s.repo.CountBy(ctx, GroupByStatus, model.ReminderFilter{})
	if err != nil {
		return nil, fmt.Errorf("count reminders by status: %w", err)
	}
	today := s.Today()
	todayByStatus, err := s.repo.CountBy(ctx, GroupByStatus, model.ReminderFilter{From: &today, To: &today})
	if err != nil {
		return nil, fmt.Errorf("count today's reminders: %w", err)
	}
	byType, err := s.repo.CountBy(ctx, GroupByType, model.ReminderFilter{})
	if err != nil {
		return nil, fmt.Errorf("count reminders by type: %w", err)
	}

	return &model.Statistics{
		Total:    total,
		ByStatus: nonNil(byStatus),
		Today:    nonNil(todayByStatus),
		ByType:   nonNil(byType),
	}, nil
}

func nonNil(rows []model.GroupCount) []model.GroupCount {
	if rows == nil {
		return []model.GroupCount{}
	}
	return rows
}
