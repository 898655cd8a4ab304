package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/pkg/logger"
)

const dispatchLockTTL = 36 * time.Hour

type MonthGenerator interface {
	GenerateFor(ctx context.Context, date time.Time) (*model.GenerationResult, error)
}

type DueReminderLister interface {
	Today() time.Time
	GetDue(ctx context.Context, date time.Time) ([]*model.ReminderDetails, error)
}

type PayloadPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// RunLocker is satisfied by the redis adapter.
type RunLocker interface {
	SetNX(key string, value []byte, ttl time.Duration) (bool, error)
	Del(key string) error
}

// CronService is the scheduled entry point: generate the current month,
// then hand today's due reminders to the dispatch queue.
type CronService struct {
	generator    MonthGenerator
	query        DueReminderLister
	materializer *Materializer
	publisher    PayloadPublisher
	locker       RunLocker
}

// NewCronService wires the cron run. publisher and locker are optional;
// without a publisher payloads are built and counted but not enqueued.
func NewCronService(generator MonthGenerator, query DueReminderLister, materializer *Materializer, publisher PayloadPublisher, locker RunLocker) *CronService {
	if materializer == nil {
		materializer = NewMaterializer()
	}
	return &CronService{
		generator:    generator,
		query:        query,
		materializer: materializer,
		publisher:    publisher,
		locker:       locker,
	}
}

func (s *CronService) Run(ctx context.Context) (*model.CronResult, error) {
	today := s.query.Today()

	generated, err := s.generator.GenerateFor(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("generate reminders: %w", err)
	}

	res, err := s.Dispatch(ctx)
	if err != nil {
		return nil, err
	}
	res.Generated = generated
	return res, nil
}

// Dispatch builds payloads for today's pending reminders and publishes each
// one at most once per day. A reminder whose publish failed, or one that
// became due after an earlier run, is picked up by the next run.
func (s *CronService) Dispatch(ctx context.Context) (*model.CronResult, error) {
	today := s.query.Today()
	due, err := s.query.GetDue(ctx, today)
	if err != nil {
		return nil, err
	}
	payloads := s.materializer.BulkBuildPayloads(due)

	res := &model.CronResult{
		TodaysReminders: len(due),
		Messages:        len(payloads),
	}
	if s.publisher == nil || len(payloads) == 0 {
		return res, nil
	}

	day := model.FormatDate(today)
	for _, p := range payloads {
		id := p.Metadata.ReminderID
		key := "cron:dispatch:" + day + ":" + id
		if !s.claim(key, id) {
			res.AlreadyQueued++
			continue
		}

		_, err := s.publisher.PublishJSON(ctx, p, map[string]string{
			"reminder_id":   id,
			"reminder_type": string(p.Metadata.ReminderType),
		})
		if err != nil {
			logger.Error("publish reminder failed", "reminder_id", id, "error", err)
			s.unclaim(key, id)
			continue
		}
		res.Published++
	}
	logger.Info("due reminders published", "date", day, "due", res.TodaysReminders, "published", res.Published, "already_queued", res.AlreadyQueued)
	return res, nil
}

// claim marks a reminder as published for the day. Without a locker, or when
// the lock store is unreachable, it lets the publish through; the consumer's
// delivery guard drops duplicates.
func (s *CronService) claim(key, id string) bool {
	if s.locker == nil {
		return true
	}
	ok, err := s.locker.SetNX(key, []byte(time.Now().UTC().Format(time.RFC3339)), dispatchLockTTL)
	if err != nil {
		logger.Warn("publish marker unavailable, publishing anyway", "reminder_id", id, "error", err)
		return true
	}
	return ok
}

func (s *CronService) unclaim(key, id string) {
	if s.locker == nil {
		return
	}
	if err := s.locker.Del(key); err != nil {
		logger.Warn("publish marker cleanup failed", "reminder_id", id, "error", err)
	}
}
