package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/mugi0227/nagi-sub000/internal/heartbeat/domain"
	schedulingDomain "github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
	sharedApplication "github.com/mugi0227/nagi-sub000/internal/shared/application"
	sharedDomain "github.com/mugi0227/nagi-sub000/internal/shared/domain"
	"github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/outbox"
)

// RetrospectiveService closes weekly Friday-to-Friday periods with an
// achievement summary. Runs are idempotent: the persisted period end marks
// how far a user has been summarized, so catch-up after downtime needs no
// extra bookkeeping.
type RetrospectiveService struct {
	tasks      schedulingDomain.TaskRepository
	retros     domain.RetrospectiveRepository
	messages   domain.MessageRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	logger     *slog.Logger
	now        func() time.Time
}

// NewRetrospectiveService creates a new RetrospectiveService.
func NewRetrospectiveService(
	tasks schedulingDomain.TaskRepository,
	retros domain.RetrospectiveRepository,
	messages domain.MessageRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
) *RetrospectiveService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrospectiveService{
		tasks:      tasks,
		retros:     retros,
		messages:   messages,
		outboxRepo: outboxRepo,
		uow:        uow,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *RetrospectiveService) WithClock(now func() time.Time) *RetrospectiveService {
	s.now = now
	return s
}

// RunForUser closes the user's most recent open period, ending at the last
// Friday midnight in their timezone. Nothing is written when the period is
// already closed or nothing was completed in it; a quiet week is folded
// into the next summary's window instead of producing an empty row.
func (s *RetrospectiveService) RunForUser(ctx context.Context, user *schedulingDomain.User) (*domain.Retrospective, error) {
	now := s.now()
	boundary := domain.LastFridayBoundary(now, user.Location())

	latest, err := s.retros.GetLatest(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil && !latest.PeriodEnd.Before(boundary) {
		return nil, nil
	}
	periodStart := boundary.AddDate(0, 0, -7)
	if latest != nil {
		periodStart = latest.PeriodEnd
	}

	completed, err := s.tasks.ListCompletedInPeriod(ctx, user.ID, periodStart, boundary, nil)
	if err != nil {
		return nil, err
	}
	if len(completed) == 0 {
		return nil, nil
	}

	retro := domain.NewRetrospective(user.ID, periodStart, boundary, completed, now)
	err = sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		if err := s.retros.Save(txCtx, retro); err != nil {
			return err
		}
		if err := s.messages.Save(txCtx, domain.NewRetrospectiveMessage(user.ID, retro.Summary, now)); err != nil {
			return err
		}

		event := domain.NewRetrospectiveCompleted(retro)
		events := []sharedDomain.DomainEvent{&event}
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(user.ID))

		record, err := outbox.NewMessage(&event)
		if err != nil {
			return err
		}
		return s.outboxRepo.SaveBatch(txCtx, []*outbox.Message{record})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("retrospective closed",
		"user_id", user.ID,
		"period_end", schedulingDomain.DateKey(retro.PeriodEnd),
		"completed", retro.CompletedCount)
	return retro, nil
}
