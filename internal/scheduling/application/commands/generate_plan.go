package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/services"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
	sharedApplication "github.com/mugi0227/nagi-sub000/internal/shared/application"
	sharedDomain "github.com/mugi0227/nagi-sub000/internal/shared/domain"
	"github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/outbox"
)

// GeneratePlanCommand requests a fresh plan generation for a user.
type GeneratePlanCommand struct {
	UserID               uuid.UUID
	Start                time.Time
	MaxDays              int
	FilterByAssignee     bool
	ApplyPlanConstraints bool
	FromNow              bool
	Now                  time.Time
}

// CommandName implements application.Command.
func (GeneratePlanCommand) CommandName() string { return "schedule.generate_plan" }

// GeneratePlanHandler runs the planner and persists the resulting rows
// atomically alongside the generation event.
type GeneratePlanHandler struct {
	planner    *services.Planner
	planRepo   domain.DailySchedulePlanRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
}

// NewGeneratePlanHandler creates a new GeneratePlanHandler.
func NewGeneratePlanHandler(
	planner *services.Planner,
	planRepo domain.DailySchedulePlanRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
) *GeneratePlanHandler {
	return &GeneratePlanHandler{
		planner:    planner,
		planRepo:   planRepo,
		outboxRepo: outboxRepo,
		uow:        uow,
	}
}

// Handle generates and stores a plan, returning the materialised view.
func (h *GeneratePlanHandler) Handle(ctx context.Context, cmd GeneratePlanCommand) (*services.PlanView, error) {
	var view *services.PlanView
	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		result, err := h.planner.BuildPlan(txCtx, services.PlanRequest{
			UserID:               cmd.UserID,
			Start:                cmd.Start,
			MaxDays:              cmd.MaxDays,
			FilterByAssignee:     cmd.FilterByAssignee,
			ApplyPlanConstraints: cmd.ApplyPlanConstraints,
			FromNow:              cmd.FromNow,
			Now:                  cmd.Now,
		})
		if err != nil {
			return err
		}
		if err := h.planRepo.UpsertMany(txCtx, cmd.UserID, result.Plans); err != nil {
			return err
		}

		// Save domain events to outbox
		event := result.Event
		events := []sharedDomain.DomainEvent{&event}
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(cmd.UserID))

		msgs := make([]*outbox.Message, 0, len(events))
		for _, e := range events {
			msg, err := outbox.NewMessage(e)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := h.outboxRepo.SaveBatch(txCtx, msgs); err != nil {
			return err
		}

		view = result.View
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}
