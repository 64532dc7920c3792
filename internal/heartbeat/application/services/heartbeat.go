package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/heartbeat/domain"
	schedulingDomain "github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/engine"
	sharedApplication "github.com/mugi0227/nagi-sub000/internal/shared/application"
	sharedDomain "github.com/mugi0227/nagi-sub000/internal/shared/domain"
	"github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/outbox"
)

// HeartbeatConfig tunes how aggressively risk nudges are delivered.
type HeartbeatConfig struct {
	DailyLimit      int
	Cooldown        time.Duration
	WindowStartHour int
	WindowEndHour   int
}

func (c HeartbeatConfig) normalized() HeartbeatConfig {
	if c.DailyLimit <= 0 {
		c.DailyLimit = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 24 * time.Hour
	}
	if c.WindowEndHour <= c.WindowStartHour {
		c.WindowStartHour, c.WindowEndHour = 9, 21
	}
	return c
}

// HeartbeatService surfaces deadline risk as feed messages and events. The
// worker drives RunForUser on a fixed cadence; the gate keeps repeated runs
// from nagging.
type HeartbeatService struct {
	tasks      schedulingDomain.TaskRepository
	settings   schedulingDomain.ScheduleSettingsRepository
	messages   domain.MessageRepository
	gate       domain.NotificationGate
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	cfg        HeartbeatConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewHeartbeatService creates a new HeartbeatService.
func NewHeartbeatService(
	tasks schedulingDomain.TaskRepository,
	settings schedulingDomain.ScheduleSettingsRepository,
	messages domain.MessageRepository,
	gate domain.NotificationGate,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	cfg HeartbeatConfig,
	logger *slog.Logger,
) *HeartbeatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeartbeatService{
		tasks:      tasks,
		settings:   settings,
		messages:   messages,
		gate:       gate,
		outboxRepo: outboxRepo,
		uow:        uow,
		cfg:        cfg.normalized(),
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *HeartbeatService) WithClock(now func() time.Time) *HeartbeatService {
	s.now = now
	return s
}

// RunForUser evaluates the user's open tasks and raises at most the
// configured number of nudges, respecting the local delivery window, the
// per-task cooldown, and the per-day cap. It returns how many nudges were
// raised this run.
func (s *HeartbeatService) RunForUser(ctx context.Context, user *schedulingDomain.User) (int, error) {
	now := s.now()
	loc := user.Location()
	if hour := now.In(loc).Hour(); hour < s.cfg.WindowStartHour || hour >= s.cfg.WindowEndHour {
		return 0, nil
	}

	settings, err := s.settings.Get(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	if settings == nil {
		settings = schedulingDomain.DefaultScheduleSettings(user.ID)
	}
	weekly := engine.WeeklyCapacityMinutes(settings.Normalized())

	tasks, err := s.tasks.List(ctx, user.ID, false, 0)
	if err != nil {
		return 0, err
	}

	risks := make([]domain.RiskAssessment, 0, len(tasks))
	for _, t := range tasks {
		risk, ok := domain.EvaluateTask(t, weekly, now, loc)
		if !ok || !risk.Severity.AtLeast(domain.MinNotifySeverity) {
			continue
		}
		risks = append(risks, risk)
	}
	if len(risks) == 0 {
		return 0, nil
	}
	sort.SliceStable(risks, func(i, j int) bool {
		if risks[i].Severity != risks[j].Severity {
			return risks[i].Severity.Rank() > risks[j].Severity.Rank()
		}
		return risks[i].Score > risks[j].Score
	})

	dateKey := schedulingDomain.DateKey(schedulingDomain.DateOf(now, loc))
	sent, err := s.gate.SentToday(ctx, user.ID, dateKey)
	if err != nil {
		return 0, err
	}

	notified := 0
	for _, risk := range risks {
		if sent+notified >= s.cfg.DailyLimit {
			break
		}
		cooling, err := s.gate.InCooldown(ctx, user.ID, risk.TaskID)
		if err != nil {
			return notified, err
		}
		if cooling {
			continue
		}
		if err := s.raise(ctx, user.ID, risk, now); err != nil {
			// One bad task must not starve the rest of the batch.
			s.logger.Error("heartbeat nudge failed",
				"user_id", user.ID, "task_id", risk.TaskID, "error", err)
			continue
		}
		if err := s.gate.MarkSent(ctx, user.ID, risk.TaskID, dateKey, s.cfg.Cooldown); err != nil {
			// The message is already persisted; worst case is one
			// extra nudge after the next tick.
			s.logger.Warn("notification gate not updated",
				"user_id", user.ID, "task_id", risk.TaskID, "error", err)
		}
		notified++
	}

	if notified > 0 {
		s.logger.Info("heartbeat nudges raised", "user_id", user.ID, "count", notified)
	}
	return notified, nil
}

// raise persists the feed message and the at-risk event in one transaction.
func (s *HeartbeatService) raise(ctx context.Context, userID uuid.UUID, risk domain.RiskAssessment, now time.Time) error {
	return sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		if err := s.messages.Save(txCtx, domain.NewRiskMessage(userID, risk, now)); err != nil {
			return err
		}

		event := domain.NewTaskAtRisk(userID, risk)
		events := []sharedDomain.DomainEvent{&event}
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(userID))

		record, err := outbox.NewMessage(&event)
		if err != nil {
			return err
		}
		return s.outboxRepo.SaveBatch(txCtx, []*outbox.Message{record})
	})
}
