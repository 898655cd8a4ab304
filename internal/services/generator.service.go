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

const (
	MinGenerationYear = 2000
	MaxGenerationYear = 2100
)

type ActiveTriggerLister interface {
	ListActive(ctx context.Context) ([]*model.Trigger, error)
}

type LeaseRepository interface {
	ListActiveOverlapping(ctx context.Context, from, to time.Time) ([]*model.LeaseContext, error)
}

type ReminderWriter interface {
	Exists(ctx context.Context, leaseID, triggerName string, triggerDate time.Time) (bool, error)
	CreateIfAbsent(ctx context.Context, m *model.ReminderSchedule) (*model.ReminderSchedule, error)
}

// GeneratorService materializes reminders for every active lease and
// trigger pair of a month. Re-running it for the same month only fills gaps.
type GeneratorService struct {
	triggers     ActiveTriggerLister
	leases       LeaseRepository
	reminders    ReminderWriter
	materializer *Materializer
}

func NewGeneratorService(triggers ActiveTriggerLister, leases LeaseRepository, reminders ReminderWriter, materializer *Materializer) *GeneratorService {
	if materializer == nil {
		materializer = NewMaterializer()
	}
	return &GeneratorService{
		triggers:     triggers,
		leases:       leases,
		reminders:    reminders,
		materializer: materializer,
	}
}

// GenerateFor generates the month that contains date.
func (s *GeneratorService) GenerateFor(ctx context.Context, date time.Time) (*model.GenerationResult, error) {
	return s.Generate(ctx, int(date.Month()), date.Year())
}

// Generate reconciles stored reminders for month/year against the active
// triggers and leases. Per-pair problems are counted in the result; only a
// failure to load triggers or leases is returned as an error.
func (s *GeneratorService) Generate(ctx context.Context, month, year int) (*model.GenerationResult, error) {
	if month < 1 || month > 12 {
		return nil, model.NewValidationError("month", "must be between 1 and 12")
	}
	if year < MinGenerationYear || year > MaxGenerationYear {
		return nil, model.NewValidationError("year", fmt.Sprintf("must be between %d and %d", MinGenerationYear, MaxGenerationYear))
	}

	res := &model.GenerationResult{Month: month, Year: year}

	triggers, err := s.triggers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load triggers: %w", err)
	}
	from, to := model.MonthBounds(year, time.Month(month))
	leases, err := s.leases.ListActiveOverlapping(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load leases: %w", err)
	}

	for _, lc := range leases {
		for _, t := range triggers {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			s.generatePair(ctx, res, lc, t, year, time.Month(month))
		}
	}

	prom.AddGenerationResult(res.Generated, res.Skipped, res.Errors)
	logger.Info("reminders generated",
		"month", month, "year", year,
		"leases", len(leases), "triggers", len(triggers),
		"generated", res.Generated, "skipped", res.Skipped, "errors", res.Errors)
	return res, nil
}

func (s *GeneratorService) generatePair(ctx context.Context, res *model.GenerationResult, lc *model.LeaseContext, t *model.Trigger, year int, month time.Month) {
	fail := func(err error) {
		res.Errors++
		res.Failures = append(res.Failures, model.GenerationFailure{
			LeaseID:     lc.Lease.ID,
			TriggerName: t.Name,
			Reason:      err.Error(),
		})
		logger.Warn("reminder generation failed", "lease_id", lc.Lease.ID, "trigger", t.Name, "error", err)
	}

	anchor, ok, err := AnchorDate(lc.Lease, t.Type, year, month)
	if err != nil {
		fail(err)
		return
	}
	if !ok {
		return
	}
	triggerDate := anchor.AddDate(0, 0, t.DayOffset)
	// Renewal anchors sit outside the month most of the time; the reminder
	// belongs to the month it fires in.
	if t.Type == model.TriggerTypeLeaseRenewal && (triggerDate.Year() != year || triggerDate.Month() != month) {
		return
	}
	if !lc.Lease.Covers(triggerDate) {
		return
	}

	exists, err := s.reminders.Exists(ctx, lc.Lease.ID, t.Name, triggerDate)
	if err != nil {
		fail(fmt.Errorf("check existing reminder: %w", err))
		return
	}
	if exists {
		res.Skipped++
		return
	}

	rendered, err := s.materializer.Render(t, lc, anchor, triggerDate)
	if err != nil {
		fail(err)
		return
	}

	_, err = s.reminders.CreateIfAbsent(ctx, &model.ReminderSchedule{
		LeaseID:             lc.Lease.ID,
		TenantID:            lc.Lease.TenantID,
		PropertyID:          lc.Lease.PropertyID,
		TriggerName:         t.Name,
		ReminderType:        t.Type,
		TriggerDate:         model.FormatDate(triggerDate),
		Status:              model.ReminderStatusPending,
		Priority:            t.Priority,
		MessageTemplate:     t.MessageTemplate,
		PersonalizedMessage: rendered.Message,
		TriggerConfig:       model.TriggerConfigOf(t),
		TemplateVariables:   rendered.Variables,
		Metadata:            rendered.Metadata,
	})
	switch {
	case errors.Is(err, model.ErrConflict):
		res.Skipped++
	case err != nil:
		fail(fmt.Errorf("store reminder: %w", err))
	default:
		res.Generated++
	}
}

// AnchorDate returns the date a trigger of type typ measures its offset from
// for lease l in the given month. ok is false when the lease has nothing to
// remind about that month.
func AnchorDate(l *model.Lease, typ model.TriggerType, year int, month time.Month) (anchor time.Time, ok bool, err error) {
	switch typ {
	case model.TriggerTypeRentDue:
		if l.DueDay < 1 || l.DueDay > 31 {
			return time.Time{}, false, model.NewValidationError("due_date", fmt.Sprintf("lease %s has invalid due day %d", l.ID, l.DueDay))
		}
		if !l.RentDueIn(year, month) {
			return time.Time{}, false, nil
		}
		return clampDay(year, month, l.DueDay), true, nil
	case model.TriggerTypeLeaseRenewal:
		if l.EndDate.IsZero() {
			return time.Time{}, false, model.NewValidationError("end_date", fmt.Sprintf("lease %s has no end date", l.ID))
		}
		return model.DateOf(l.EndDate), true, nil
	case model.TriggerTypeMaintenance, model.TriggerTypeInspection:
		if l.StartDate.IsZero() {
			return time.Time{}, false, model.NewValidationError("start_date", fmt.Sprintf("lease %s has no start date", l.ID))
		}
		return clampDay(year, month, l.StartDate.Day()), true, nil
	}
	return time.Time{}, false, model.NewValidationError("type", fmt.Sprintf("unknown trigger type %q", typ))
}

// clampDay builds year-month-day, moving day back to the month's last day
// when the month is shorter.
func clampDay(year int, month time.Month, day int) time.Time {
	if last := model.DaysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return model.NewDate(year, month, day)
}
